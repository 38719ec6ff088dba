// Package lcov implements the lcov INFO format producer, recognizing the
// TN/SF/DA/BRDA/FN/FNDA/end_of_record tag vocabulary.
package lcov

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

// Producer parses lcov INFO text into CoverageRecord values.
type Producer struct{}

// New creates a new lcov producer.
func New() *Producer { return &Producer{} }

// Produce reads the work item and emits one record per SF:/end_of_record
// pair.
func (Producer) Produce(item coverage.WorkItem) ([]*coverage.Record, error) {
	var r io.Reader
	if item.Payload != nil {
		r = bytes.NewReader(item.Payload)
	} else {
		f, err := os.Open(item.Path) // #nosec G304 - path comes from discovery of trusted input roots
		if err != nil {
			return nil, fmt.Errorf("open lcov file: %w", err)
		}
		defer f.Close()
		r = f
	}
	return Parse(r)
}

// Parse parses lcov INFO text into one record per SF:/end_of_record pair.
func Parse(r io.Reader) ([]*coverage.Record, error) {
	var records []*coverage.Record
	var current *coverage.Record
	branchIdx := make(map[int]int)
	// FNDA lines that arrived before their FN line; applied once the FN
	// supplies the real start line, or with start line 1 at end_of_record
	// if no FN ever names the function.
	pendingHits := make(map[string]bool)

	flush := func() {
		if current == nil {
			return
		}
		for name, executed := range pendingHits {
			current.AddFunction(name, 1, executed)
		}
		records = append(records, current)
		current = nil
		pendingHits = make(map[string]bool)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "SF:"):
			flush()
			current = coverage.NewRecord(strings.TrimPrefix(line, "SF:"))
			branchIdx = make(map[int]int)

		case strings.HasPrefix(line, "DA:"):
			if current == nil {
				continue
			}
			lineNo, count, ok := parseDA(line)
			if ok {
				current.AddLine(lineNo, count)
			}

		case strings.HasPrefix(line, "BRDA:"):
			if current == nil {
				continue
			}
			lineNo, taken, executed, ok := parseBRDA(line)
			if !ok {
				continue
			}
			idx := branchIdx[lineNo]
			branchIdx[lineNo] = idx + 1
			current.AddBranch(lineNo, idx, coverage.Branch{Taken: taken, Executed: executed})

		case strings.HasPrefix(line, "FN:"):
			if current == nil {
				continue
			}
			lineNo, name, ok := parseFN(line)
			if ok {
				executed := pendingHits[name]
				delete(pendingHits, name)
				current.AddFunction(name, lineNo, executed)
			}

		case strings.HasPrefix(line, "FNDA:"):
			if current == nil {
				continue
			}
			count, name, ok := parseFNDA(line)
			if ok {
				if existing, has := current.Functions[name]; has {
					current.AddFunction(name, existing.StartLine, count > 0)
				} else {
					pendingHits[name] = pendingHits[name] || count > 0
				}
			}

		case line == "end_of_record":
			flush()
		}
	}
	if err := scanner.Err(); err != nil {
		flush()
		return records, fmt.Errorf("scan lcov file: %w", err)
	}
	flush()
	return records, nil
}

func parseDA(line string) (int, uint64, bool) {
	parts := strings.Split(strings.TrimPrefix(line, "DA:"), ",")
	if len(parts) < 2 {
		return 0, 0, false
	}
	lineNo, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	count, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return lineNo, count, true
}

// parseBRDA parses BRDA:L,BLOCK,BRANCH,TAKEN.
// TAKEN="-" -> {false,false}; TAKEN="0" -> {false,true}; TAKEN>=1 -> {true,true}.
func parseBRDA(line string) (int, bool, bool, bool) {
	parts := strings.Split(strings.TrimPrefix(line, "BRDA:"), ",")
	if len(parts) < 4 {
		return 0, false, false, false
	}
	lineNo, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false, false, false
	}
	taken := parts[3]
	if taken == "-" {
		return lineNo, false, false, true
	}
	count, err := strconv.ParseInt(taken, 10, 64)
	if err != nil {
		return 0, false, false, false
	}
	if count >= 1 {
		return lineNo, true, true, true
	}
	return lineNo, false, true, true
}

func parseFN(line string) (int, string, bool) {
	parts := strings.SplitN(strings.TrimPrefix(line, "FN:"), ",", 2)
	if len(parts) < 2 {
		return 0, "", false
	}
	lineNo, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, "", false
	}
	return lineNo, parts[1], true
}

func parseFNDA(line string) (uint64, string, bool) {
	parts := strings.SplitN(strings.TrimPrefix(line, "FNDA:"), ",", 2)
	if len(parts) < 2 {
		return 0, "", false
	}
	count, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, "", false
	}
	return count, parts[1], true
}
