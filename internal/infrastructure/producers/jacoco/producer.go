// Package jacoco implements the JaCoCo XML producer. One record is
// emitted per <sourcefile>; method info is joined in from the <class>
// elements that name the same source file.
package jacoco

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"

	"github.com/felixgeelhaar/grcov/internal/domain/coverage"
)

// Producer parses JaCoCo XML reports into CoverageRecord values.
type Producer struct{}

// New creates a new JaCoCo producer.
func New() *Producer { return &Producer{} }

type reportXML struct {
	XMLName     xml.Name      `xml:"report"`
	SourceFiles []sourceFileXML `xml:"package>sourcefile"`
	Methods     []methodOwnerXML `xml:"package>class"`
}

type methodOwnerXML struct {
	SourceFileName string      `xml:"sourcefilename,attr"`
	Methods        []methodXML `xml:"method"`
}

type methodXML struct {
	Name string `xml:"name,attr"`
	Line int    `xml:"line,attr"`
}

type sourceFileXML struct {
	Name  string   `xml:"name,attr"`
	Lines []lineXML `xml:"line"`
}

type lineXML struct {
	Nr int `xml:"nr,attr"`
	MI int `xml:"mi,attr"`
	CI int `xml:"ci,attr"`
	MB int `xml:"mb,attr"`
	CB int `xml:"cb,attr"`
}

// Produce reads the work item and emits one record per <sourcefile>.
func (Producer) Produce(item coverage.WorkItem) ([]*coverage.Record, error) {
	var r io.Reader
	if item.Payload != nil {
		r = bytes.NewReader(item.Payload)
	} else {
		f, err := os.Open(item.Path) // #nosec G304 - path comes from discovery of trusted input roots
		if err != nil {
			return nil, fmt.Errorf("open jacoco xml: %w", err)
		}
		defer f.Close()
		r = f
	}
	return Parse(r)
}

// Parse decodes a JaCoCo XML document and emits one record per
// <sourcefile>, attaching <method> entries from every <class> element,
// in any package, whose sourcefilename matches that source file's name.
func Parse(r io.Reader) ([]*coverage.Record, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false
	var doc reportXML
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode jacoco xml: %w", err)
	}

	methodsByFile := make(map[string][]methodXML)
	for _, owner := range doc.Methods {
		methodsByFile[owner.SourceFileName] = append(methodsByFile[owner.SourceFileName], owner.Methods...)
	}

	records := make([]*coverage.Record, 0, len(doc.SourceFiles))
	for _, sf := range doc.SourceFiles {
		rec := coverage.NewRecord(sf.Name)
		for _, ln := range sf.Lines {
			count := uint64(0)
			if ln.CI > 0 {
				count = uint64(ln.CI)
			}
			rec.AddLine(ln.Nr, count)

			total := ln.MB + ln.CB
			for i := 0; i < total; i++ {
				taken := i < ln.CB
				rec.AddBranch(ln.Nr, i, coverage.Branch{Taken: taken, Executed: true})
			}
		}
		for _, m := range methodsByFile[sf.Name] {
			rec.AddFunction(m.Name, m.Line, lineExecuted(sf.Lines, m.Line))
		}
		records = append(records, rec)
	}
	return records, nil
}

func lineExecuted(lines []lineXML, nr int) bool {
	for _, l := range lines {
		if l.Nr == nr {
			return l.CI > 0
		}
	}
	return false
}
