package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/grcov/internal/application"
	"github.com/felixgeelhaar/grcov/internal/domain/coverage"
)

func sampleMap() *coverage.Map {
	m := coverage.NewMap()
	rec := coverage.NewRecord("a.go")
	rec.AddLine(1, 1)
	rec.AddLine(2, 0)
	rec.AddBranch(1, 0, coverage.Branch{Taken: true, Executed: true})
	rec.AddFunction("main", 1, true)
	m.MergeRecord("a.go", rec)
	return m
}

func TestWriteTextProducesTotalsRow(t *testing.T) {
	var buf bytes.Buffer
	err := Writer{}.Write(&buf, sampleMap(), application.Config{}, "text")
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "a.go")
	assert.Contains(t, out, "Total")
	assert.Contains(t, out, "1/2")
}

func TestWriteTextBranchColumnOnlyWhenRequested(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Writer{}.Write(&buf, sampleMap(), application.Config{Branch: true}, "text"))
	assert.Contains(t, buf.String(), "Branches")
}

func TestWriteJSONRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Writer{}.Write(&buf, sampleMap(), application.Config{}, "json"))

	var decoded struct {
		Files []struct {
			Path  string            `json:"path"`
			Lines map[string]uint64 `json:"lines"`
		} `json:"files"`
		Summary coverage.Summary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded.Files, 1)
	assert.Equal(t, "a.go", decoded.Files[0].Path)
	assert.Equal(t, uint64(1), decoded.Files[0].Lines["1"])
	assert.Equal(t, 1, decoded.Summary.CoveredLines)
	assert.Equal(t, 2, decoded.Summary.TotalLines)
}

func TestWriteHTMLEmbedsFilePath(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Writer{}.Write(&buf, sampleMap(), application.Config{}, "html"))
	assert.True(t, strings.Contains(buf.String(), "a.go"))
	assert.True(t, strings.Contains(buf.String(), "<!DOCTYPE html>"))
}

func TestWriteLcovEmitsRoundTrippableRecord(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Writer{}.Write(&buf, sampleMap(), application.Config{Branch: true}, "lcov"))
	out := buf.String()
	assert.Contains(t, out, "SF:a.go")
	assert.Contains(t, out, "FN:1,main")
	assert.Contains(t, out, "DA:1,1")
	assert.Contains(t, out, "BRDA:1,0,0,1")
	assert.Contains(t, out, "end_of_record")
}

func TestWriteUnsupportedFormatErrors(t *testing.T) {
	var buf bytes.Buffer
	err := Writer{}.Write(&buf, sampleMap(), application.Config{}, "yaml")
	assert.Error(t, err)
}
