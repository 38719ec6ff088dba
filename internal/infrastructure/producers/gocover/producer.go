// Package gocover implements the Go coverprofile producer. Each statement
// span's count is split across the lines it covers; a line hit by several
// spans accumulates.
package gocover

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

// Producer parses Go coverprofiles into CoverageRecord values.
type Producer struct{}

// New creates a new Go coverprofile producer.
func New() *Producer { return &Producer{} }

// Produce reads the work item and emits one record per source file named
// in the profile.
func (Producer) Produce(item coverage.WorkItem) ([]*coverage.Record, error) {
	var r io.Reader
	if item.Payload != nil {
		r = bytes.NewReader(item.Payload)
	} else {
		f, err := os.Open(item.Path) // #nosec G304 - path comes from discovery of trusted input roots
		if err != nil {
			return nil, fmt.Errorf("open coverprofile: %w", err)
		}
		defer f.Close()
		r = f
	}
	return Parse(r)
}

// Parse parses a `mode:` + span-record Go coverprofile.
func Parse(r io.Reader) ([]*coverage.Record, error) {
	records := make(map[string]*coverage.Record)
	var order []string

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	lineNo := 0
	for scanner.Scan() {
		line := scanner.Text()
		lineNo++
		if lineNo == 1 {
			if !strings.HasPrefix(line, "mode:") {
				return nil, fmt.Errorf("invalid coverage mode line")
			}
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		file, startLine, endLine, count, err := parseSpan(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		rec, ok := records[file]
		if !ok {
			rec = coverage.NewRecord(file)
			records[file] = rec
			order = append(order, file)
		}
		for l := startLine; l <= endLine; l++ {
			rec.AddLine(l, count)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan coverprofile: %w", err)
	}

	out := make([]*coverage.Record, 0, len(order))
	for _, file := range order {
		out = append(out, records[file])
	}
	return out, nil
}

// parseSpan parses "file:startL.startC,endL.endC numStmts count".
func parseSpan(line string) (file string, startLine, endLine int, count uint64, err error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return "", 0, 0, 0, fmt.Errorf("invalid coverage line")
	}
	spanPart := fields[0]
	countPart := fields[2]

	colon := strings.Index(spanPart, ":")
	if colon < 0 {
		return "", 0, 0, 0, fmt.Errorf("missing file separator")
	}
	file = spanPart[:colon]
	span := spanPart[colon+1:]

	rangeParts := strings.SplitN(span, ",", 2)
	if len(rangeParts) != 2 {
		return "", 0, 0, 0, fmt.Errorf("invalid span")
	}
	startLine, err = startOf(rangeParts[0])
	if err != nil {
		return "", 0, 0, 0, err
	}
	endLine, err = startOf(rangeParts[1])
	if err != nil {
		return "", 0, 0, 0, err
	}

	n, err := strconv.ParseUint(countPart, 10, 64)
	if err != nil {
		return "", 0, 0, 0, fmt.Errorf("invalid count")
	}
	return file, startLine, endLine, n, nil
}

func startOf(pos string) (int, error) {
	dot := strings.Index(pos, ".")
	if dot < 0 {
		return strconv.Atoi(pos)
	}
	return strconv.Atoi(pos[:dot])
}
