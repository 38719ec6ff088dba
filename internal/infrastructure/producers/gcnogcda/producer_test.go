package gcnogcda

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/grcov/internal/domain/coverage"
)

func TestNewDefaultsGcovPath(t *testing.T) {
	p := New(false)
	assert.Equal(t, "gcov", p.GcovPath)
	assert.False(t, p.LLVM)
}

func TestCommandUsesLLVMCovWhenLLVMSet(t *testing.T) {
	p := New(true)
	name, args := p.command("/src", "/src/foo.gcda")
	assert.Equal(t, "llvm-cov", name)
	assert.Equal(t, []string{"gcov", "-i", "-o", "/src", "/src/foo.gcda"}, args)
}

func TestCommandUsesConfiguredGcovPath(t *testing.T) {
	p := New(false)
	p.GcovPath = "/opt/bin/gcov"
	name, args := p.command("/src", "/src/foo.gcda")
	assert.Equal(t, "/opt/bin/gcov", name)
	assert.Equal(t, []string{"-i", "-o", "/src", "/src/foo.gcda"}, args)
}

func TestProduceRejectsWorkItemWithNoPaths(t *testing.T) {
	p := New(false)
	_, err := p.Produce(coverage.WorkItem{Kind: coverage.KindGcnoGcdaPair})
	assert.Error(t, err)
}

func TestProduceParsesGcovOutputFromScratchDir(t *testing.T) {
	p := New(false)
	var gotName string
	var gotArgs []string
	p.Exec = func(_ context.Context, dir, name string, args []string) error {
		gotName = name
		gotArgs = args
		return os.WriteFile(
			filepath.Join(dir, "foo.c.gcov"),
			[]byte("file:foo.c\nlcount:1,2\nlcount:2,0\n"),
			0o600,
		)
	}

	records, err := p.Produce(coverage.WorkItem{
		Kind:     coverage.KindGcnoGcdaPair,
		GcnoPath: "/build/foo.gcno",
		GcdaPath: "/build/foo.gcda",
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "foo.c", records[0].SourcePath)
	assert.Equal(t, uint64(2), records[0].Lines[1])
	assert.Equal(t, uint64(0), records[0].Lines[2])

	assert.Equal(t, "gcov", gotName)
	assert.Equal(t, []string{"-i", "-o", "/build", "/build/foo.gcda"}, gotArgs)
}

func TestProduceCollectsEveryGcovFileInScratchDir(t *testing.T) {
	p := New(false)
	p.Exec = func(_ context.Context, dir, _ string, _ []string) error {
		if err := os.WriteFile(filepath.Join(dir, "a.c.gcov"), []byte("file:a.c\nlcount:1,1\n"), 0o600); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, "b.c.gcov"), []byte("file:b.c\nlcount:1,0\n"), 0o600); err != nil {
			return err
		}
		// gcov engines also drop non-.gcov artifacts; those are skipped.
		return os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600)
	}

	records, err := p.Produce(coverage.WorkItem{
		Kind:     coverage.KindGcnoGcdaPair,
		GcdaPath: "/build/foo.gcda",
	})
	require.NoError(t, err)
	require.Len(t, records, 2)

	paths := []string{records[0].SourcePath, records[1].SourcePath}
	assert.ElementsMatch(t, []string{"a.c", "b.c"}, paths)
}

func TestProduceGcnoWithoutGcdaTargetsGcno(t *testing.T) {
	p := New(false)
	var gotArgs []string
	p.Exec = func(_ context.Context, dir, _ string, args []string) error {
		gotArgs = args
		return os.WriteFile(filepath.Join(dir, "foo.c.gcov"), []byte("file:foo.c\nlcount:1,0\n"), 0o600)
	}

	records, err := p.Produce(coverage.WorkItem{
		Kind:     coverage.KindGcnoGcdaPair,
		GcnoPath: "/build/foo.gcno",
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"-i", "-o", "/build", "/build/foo.gcno"}, gotArgs)
}

func TestProduceSurfacesEngineFailure(t *testing.T) {
	p := New(false)
	p.Exec = func(context.Context, string, string, []string) error {
		return errors.New("exit status 1: foo.gcda:version mismatch")
	}

	_, err := p.Produce(coverage.WorkItem{Kind: coverage.KindGcnoGcdaPair, GcdaPath: "/build/foo.gcda"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version mismatch")
}

func TestProduceEngineProducingNoOutputYieldsNoRecords(t *testing.T) {
	p := New(false)
	p.Exec = func(context.Context, string, string, []string) error { return nil }

	records, err := p.Produce(coverage.WorkItem{Kind: coverage.KindGcnoGcdaPair, GcdaPath: "/build/foo.gcda"})
	require.NoError(t, err)
	assert.Empty(t, records)
}
