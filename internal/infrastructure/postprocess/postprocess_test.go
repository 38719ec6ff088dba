package postprocess

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/grcov/internal/domain/coverage"
)

func newRecord(path string, lines map[int]uint64) *coverage.Record {
	rec := coverage.NewRecord(path)
	for line, count := range lines {
		rec.AddLine(line, count)
	}
	return rec
}

func TestRunExclusionRangeStripsLinesAndBranches(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "foo.c")
	content := "int main() {\n" + // 1
		"  // GRCOV_EXCL_START\n" + // 2
		"  dead_code();\n" + // 3
		"  // GRCOV_EXCL_STOP\n" + // 4
		"  return 0;\n" + // 5
		"}\n" // 6
	require.NoError(t, os.WriteFile(src, []byte(content), 0o600))

	m := coverage.NewMap()
	rec := newRecord("foo.c", map[int]uint64{1: 1, 3: 0, 5: 1})
	rec.AddBranch(3, 0, coverage.Branch{Taken: false, Executed: true})
	rec.AddFunction("dead_code", 3, false)
	m.MergeRecord("foo.c", rec)

	opts := Options{
		SourceDir: dir,
		Exclusions: ExclusionRegexes{
			Start: regexp.MustCompile(`GRCOV_EXCL_START`),
			Stop:  regexp.MustCompile(`GRCOV_EXCL_STOP`),
		},
	}
	require.NoError(t, Run(m, opts))

	got, ok := m.Get("foo.c")
	require.True(t, ok)
	_, hasLine1 := got.Lines[1]
	_, hasLine3 := got.Lines[3]
	_, hasLine5 := got.Lines[5]
	assert.True(t, hasLine1)
	assert.False(t, hasLine3, "line inside exclusion range must be removed")
	assert.True(t, hasLine5)
	assert.Empty(t, got.Branches, "branch on excluded line must be removed too")
	_, hasFn := got.Functions["dead_code"]
	assert.True(t, hasFn, "functions are never removed by exclusion markers")
}

func TestRunExclusionIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "foo.c")
	require.NoError(t, os.WriteFile(src, []byte("a\nskip me // EXCL\nb\n"), 0o600))

	build := func() *coverage.Map {
		m := coverage.NewMap()
		m.MergeRecord("foo.c", newRecord("foo.c", map[int]uint64{1: 1, 2: 1, 3: 0}))
		return m
	}
	opts := Options{
		SourceDir:  dir,
		Exclusions: ExclusionRegexes{Line: regexp.MustCompile(`EXCL`)},
	}

	once := build()
	require.NoError(t, Run(once, opts))

	twice := build()
	require.NoError(t, Run(twice, opts))
	require.NoError(t, Run(twice, opts))

	onceRec, _ := once.Get("foo.c")
	twiceRec, _ := twice.Get("foo.c")
	assert.Equal(t, onceRec.Lines, twiceRec.Lines)
}

func TestRunKeepOnlyAndIgnoreAreOrthogonal(t *testing.T) {
	m := coverage.NewMap()
	m.MergeRecord("src/a.go", newRecord("src/a.go", map[int]uint64{1: 1}))
	m.MergeRecord("src/b.go", newRecord("src/b.go", map[int]uint64{1: 1}))
	m.MergeRecord("vendor/c.go", newRecord("vendor/c.go", map[int]uint64{1: 1}))

	opts := Options{
		KeepOnlyGlobs: []string{"src/**"},
		IgnoreGlobs:   []string{"src/b.go"},
	}
	require.NoError(t, Run(m, opts))

	keys := m.Keys()
	assert.Equal(t, []string{"src/a.go"}, keys, "keep-only narrows to src/*, then ignore removes b.go: result is src/a.go only")
}

func TestRunKeepOnlySubtreeMinusIgnoredVendor(t *testing.T) {
	m := coverage.NewMap()
	for _, k := range []string{"src/a.c", "src/vendor/b.c", "lib/c.c"} {
		m.MergeRecord(k, newRecord(k, map[int]uint64{1: 1}))
	}

	opts := Options{
		KeepOnlyGlobs: []string{"src/**"},
		IgnoreGlobs:   []string{"src/vendor/**"},
	}
	require.NoError(t, Run(m, opts))

	assert.Equal(t, []string{"src/a.c"}, m.Keys())
}

func TestRunIgnoreNotExistingRemovesMissingFiles(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "present.go")
	require.NoError(t, os.WriteFile(present, []byte("package p\n"), 0o600))

	m := coverage.NewMap()
	m.MergeRecord("present.go", newRecord("present.go", map[int]uint64{1: 1}))
	m.MergeRecord("missing.go", newRecord("missing.go", map[int]uint64{1: 1}))

	opts := Options{SourceDir: dir, IgnoreNotExisting: true}
	require.NoError(t, Run(m, opts))

	assert.Equal(t, []string{"present.go"}, m.Keys())
}

func TestRunCoveredFilterKeepsOnlyRecordsWithExecutedLine(t *testing.T) {
	m := coverage.NewMap()
	m.MergeRecord("hit.go", newRecord("hit.go", map[int]uint64{1: 1}))
	m.MergeRecord("miss.go", newRecord("miss.go", map[int]uint64{1: 0}))

	require.NoError(t, Run(m, Options{Filter: "covered"}))
	assert.Equal(t, []string{"hit.go"}, m.Keys())
}

func TestRunUncoveredFilterKeepsOnlyRecordsWithUncoveredLine(t *testing.T) {
	m := coverage.NewMap()
	m.MergeRecord("hit.go", newRecord("hit.go", map[int]uint64{1: 1}))
	m.MergeRecord("miss.go", newRecord("miss.go", map[int]uint64{1: 0}))

	require.NoError(t, Run(m, Options{Filter: "uncovered"}))
	assert.Equal(t, []string{"miss.go"}, m.Keys())
}

func TestRunPrefixStripAndPathMapping(t *testing.T) {
	m := coverage.NewMap()
	m.MergeRecord("/build/src/main.go", newRecord("/build/src/main.go", map[int]uint64{1: 1}))

	opts := Options{
		PrefixStrip:  "/build",
		PathMappings: []PathMapping{{From: "src", To: "internal"}},
	}
	require.NoError(t, Run(m, opts))

	assert.Equal(t, []string{"internal/main.go"}, m.Keys())
}

func TestRunInvalidGlobReturnsError(t *testing.T) {
	m := coverage.NewMap()
	err := Run(m, Options{IgnoreGlobs: []string{"["}})
	assert.Error(t, err)
}
