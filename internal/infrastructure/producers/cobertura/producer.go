// Package cobertura implements the Cobertura XML producer. Branch state
// comes from nested <conditions> elements when present, falling back to
// the condition-coverage attribute's "(covered/total)" suffix.
package cobertura

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/grcov/internal/domain/coverage"
)

// Producer parses Cobertura XML coverage into CoverageRecord values.
type Producer struct{}

// New creates a new Cobertura producer.
func New() *Producer { return &Producer{} }

type coverageXML struct {
	XMLName  xml.Name `xml:"coverage"`
	Packages []pkgXML `xml:"packages>package"`
}

type pkgXML struct {
	Classes []classXML `xml:"classes>class"`
}

type classXML struct {
	Filename string    `xml:"filename,attr"`
	Lines    []lineXML `xml:"lines>line"`
	Methods  []methodXML `xml:"methods>method"`
}

type methodXML struct {
	Name      string    `xml:"name,attr"`
	Signature string    `xml:"signature,attr"`
	Lines     []lineXML `xml:"lines>line"`
}

type lineXML struct {
	Number      int    `xml:"number,attr"`
	Hits        int64  `xml:"hits,attr"`
	Branch      string `xml:"branch,attr"`
	Conditions  []conditionXML `xml:"conditions>condition"`
	CondCoverage string `xml:"condition-coverage,attr"`
}

type conditionXML struct {
	Number  int    `xml:"number,attr"`
	Type    string `xml:"type,attr"`
	Coverage string `xml:"coverage,attr"`
}

// Produce reads the work item and emits one record per <class filename>.
func (Producer) Produce(item coverage.WorkItem) ([]*coverage.Record, error) {
	var r io.Reader
	if item.Payload != nil {
		r = bytes.NewReader(item.Payload)
	} else {
		f, err := os.Open(item.Path) // #nosec G304 - path comes from discovery of trusted input roots
		if err != nil {
			return nil, fmt.Errorf("open cobertura xml: %w", err)
		}
		defer f.Close()
		r = f
	}
	return Parse(r)
}

// Parse decodes Cobertura XML and emits one record per distinct class
// filename, merging lines across classes/methods that share a file.
func Parse(r io.Reader) ([]*coverage.Record, error) {
	var doc coverageXML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode cobertura xml: %w", err)
	}

	records := make(map[string]*coverage.Record)
	var order []string

	for _, pkg := range doc.Packages {
		for _, cls := range pkg.Classes {
			if cls.Filename == "" {
				continue
			}
			rec, ok := records[cls.Filename]
			if !ok {
				rec = coverage.NewRecord(cls.Filename)
				records[cls.Filename] = rec
				order = append(order, cls.Filename)
			}

			for _, ln := range cls.Lines {
				applyLine(rec, ln)
			}
			for _, m := range cls.Methods {
				startLine := 0
				executed := false
				for _, ln := range m.Lines {
					applyLine(rec, ln)
					if startLine == 0 || ln.Number < startLine {
						startLine = ln.Number
					}
					if ln.Hits > 0 {
						executed = true
					}
				}
				if startLine == 0 {
					startLine = 1
				}
				rec.AddFunction(methodName(m), startLine, executed)
			}
		}
	}

	out := make([]*coverage.Record, 0, len(order))
	for _, file := range order {
		out = append(out, records[file])
	}
	return out, nil
}

func applyLine(rec *coverage.Record, ln lineXML) {
	hits := ln.Hits
	if hits < 0 {
		hits = 0
	}
	rec.AddLine(ln.Number, uint64(hits))

	if ln.Branch != "true" {
		return
	}
	if len(ln.Conditions) > 0 {
		for i, c := range ln.Conditions {
			taken := conditionTaken(c.Coverage)
			rec.AddBranch(ln.Number, i, coverage.Branch{Taken: taken, Executed: true})
		}
		return
	}
	covered, total, ok := parseConditionCoverage(ln.CondCoverage)
	if !ok {
		return
	}
	for i := 0; i < total; i++ {
		rec.AddBranch(ln.Number, i, coverage.Branch{Taken: i < covered, Executed: true})
	}
}

func conditionTaken(coverage string) bool {
	return strings.Contains(coverage, "100%") || strings.HasPrefix(coverage, "2/2") || strings.HasPrefix(coverage, "1/1")
}

// parseConditionCoverage parses Cobertura's "NN% (covered/total)" attribute.
func parseConditionCoverage(s string) (covered, total int, ok bool) {
	open := strings.IndexByte(s, '(')
	close := strings.IndexByte(s, ')')
	if open < 0 || close < 0 || close <= open {
		return 0, 0, false
	}
	parts := strings.SplitN(s[open+1:close], "/", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	c, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	t, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return c, t, true
}

func methodName(m methodXML) string {
	if m.Signature != "" {
		return m.Name + m.Signature
	}
	return m.Name
}
