// Package gcovtext implements the gcov-intermediate text format producer:
// the line-oriented `file:`/`function:`/`lcount:`/`branch:` format emitted
// by `gcov -i`.
package gcovtext

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/grcov/internal/domain/coverage"
)

// Producer parses gcov-intermediate text into CoverageRecord values.
type Producer struct{}

// New creates a new gcov-intermediate producer.
func New() *Producer { return &Producer{} }

// Produce reads the work item's payload (or opens its path) and emits one
// record per `file:` header.
func (Producer) Produce(item coverage.WorkItem) ([]*coverage.Record, error) {
	r, closer, err := openItem(item)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		defer closer()
	}
	return Parse(r)
}

func openItem(item coverage.WorkItem) (io.Reader, func(), error) {
	if item.Payload != nil {
		return bytes.NewReader(item.Payload), nil, nil
	}
	f, err := os.Open(item.Path) // #nosec G304 - path comes from discovery of trusted input roots
	if err != nil {
		return nil, nil, fmt.Errorf("open gcov intermediate file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// Parse parses gcov-intermediate text from r into one record per `file:`
// header.
func Parse(r io.Reader) ([]*coverage.Record, error) {
	var records []*coverage.Record
	var current *coverage.Record
	lastBranchLine := -1
	branchIdx := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "file:"):
			if current != nil {
				records = append(records, current)
			}
			current = coverage.NewRecord(strings.TrimPrefix(line, "file:"))
			lastBranchLine = -1
			branchIdx = 0

		case strings.HasPrefix(line, "lcount:"):
			if current == nil {
				continue
			}
			lineNo, count, ok := parseLcount(line)
			if ok {
				current.AddLine(lineNo, count)
			}

		case strings.HasPrefix(line, "function:"):
			if current == nil {
				continue
			}
			lineNo, count, name, ok := parseFunction(line)
			if ok {
				current.AddFunction(name, lineNo, count > 0)
			}

		case strings.HasPrefix(line, "branch:"):
			if current == nil {
				continue
			}
			lineNo, kind, ok := parseBranch(line)
			if !ok {
				continue
			}
			if lineNo != lastBranchLine {
				lastBranchLine = lineNo
				branchIdx = 0
			}
			current.AddBranch(lineNo, branchIdx, branchFromKind(kind))
			branchIdx++
		}
	}
	if err := scanner.Err(); err != nil {
		return records, fmt.Errorf("scan gcov intermediate: %w", err)
	}
	if current != nil {
		records = append(records, current)
	}
	return records, nil
}

func parseLcount(line string) (int, uint64, bool) {
	fields := strings.SplitN(strings.TrimPrefix(line, "lcount:"), ",", 2)
	if len(fields) < 2 {
		return 0, 0, false
	}
	lineNo, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, false
	}
	count, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return lineNo, count, true
}

func parseFunction(line string) (int, uint64, string, bool) {
	fields := strings.SplitN(strings.TrimPrefix(line, "function:"), ",", 3)
	if len(fields) < 3 {
		return 0, 0, "", false
	}
	lineNo, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, "", false
	}
	count, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0, 0, "", false
	}
	return lineNo, count, fields[2], true
}

func parseBranch(line string) (int, string, bool) {
	fields := strings.SplitN(strings.TrimPrefix(line, "branch:"), ",", 2)
	if len(fields) < 2 {
		return 0, "", false
	}
	lineNo, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, "", false
	}
	return lineNo, fields[1], true
}

func branchFromKind(kind string) coverage.Branch {
	switch kind {
	case "taken":
		return coverage.Branch{Taken: true, Executed: true}
	case "nottaken":
		return coverage.Branch{Taken: false, Executed: true}
	default: // "notexec"
		return coverage.Branch{Taken: false, Executed: false}
	}
}
