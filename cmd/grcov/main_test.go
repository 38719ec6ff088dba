package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGlobalFlagsStopsAtFirstUnknownToken(t *testing.T) {
	g, rest := parseGlobalFlags([]string{"--quiet", "--no-color", "--ci", "/some/path", "--branch"})
	assert.True(t, g.quiet)
	assert.True(t, g.noColor)
	assert.True(t, g.ci)
	assert.Equal(t, []string{"/some/path", "--branch"}, rest)
}

func TestRunPrintsVersionAndExitsZero(t *testing.T) {
	var out bytes.Buffer
	code := run([]string{"grcov", "--version"}, &out, &out)
	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "grcov version")
}

func TestRunPrintsUsageAndExitsZero(t *testing.T) {
	var out bytes.Buffer
	code := run([]string{"grcov", "--help"}, &out, &out)
	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "Usage:")
}

func TestRunRequiresAtLeastOnePath(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run([]string{"grcov"}, &out, &errOut)
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut.String(), "input path is required")
}

func TestRunEndToEndProducesTextReport(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "coverage.out"),
		[]byte("mode: set\na.go:1.1,1.5 1 1\n"),
		0o600,
	))
	outPath := filepath.Join(dir, "report.txt")

	var out, errOut bytes.Buffer
	code := run([]string{"grcov", "--quiet", "--output-path", outPath, dir}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "a.go")
}

func TestRunRejectsUnknownFlag(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run([]string{"grcov", "--not-a-real-flag", t.TempDir()}, &out, &errOut)
	assert.Equal(t, 2, code)
}

func TestPathMappingListRejectsMissingColon(t *testing.T) {
	var p pathMappingList
	assert.Error(t, p.Set("no-colon-here"))
}

func TestPathMappingListParsesFromTo(t *testing.T) {
	var p pathMappingList
	require.NoError(t, p.Set("src:internal"))
	require.Len(t, p, 1)
	assert.Equal(t, "src", p[0].From)
	assert.Equal(t, "internal", p[0].To)
}

func TestSplitCSVTrimsAndDropsEmpty(t *testing.T) {
	assert.Equal(t, []string{"text", "json"}, splitCSV(" text ,json,"))
	assert.Nil(t, splitCSV(""))
}

func TestExitWithErrorFormatsCIAnnotations(t *testing.T) {
	var errOut bytes.Buffer
	code := exitWithError(assertErr{}, 4, &errOut, globalOptions{ci: true})
	assert.Equal(t, 4, code)
	assert.Contains(t, errOut.String(), "::error::")
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
