// Package llvmprof implements the LLVM profraw-derived producer. LLVM
// source-based coverage (clang -fprofile-instr-generate
// -fcoverage-mapping) emits raw profile data that only becomes a
// per-line/per-region coverage report once merged and paired with the
// instrumented binary that carries the coverage mapping. This producer
// shells out to llvm-profdata and llvm-cov, keeping the unversioned
// binary profile format behind a narrow external-tool contract, the same
// way the gcnogcda producer leans on gcov.
package llvmprof

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/felixgeelhaar/grcov/internal/domain/coverage"
)

// Producer parses LLVM profraw directories into CoverageRecord values by
// invoking llvm-profdata and llvm-cov export.
type Producer struct {
	// ProfdataPath and CovPath are the llvm-profdata / llvm-cov binaries
	// to invoke. Default to "llvm-profdata" / "llvm-cov".
	ProfdataPath string
	CovPath      string
	// Timeout bounds each external invocation. Defaults to 60s.
	Timeout time.Duration
	// Exec runs llvm-profdata merge; ExecOutput runs llvm-cov export and
	// returns its stdout. Nil fields select the real os/exec
	// implementations; tests substitute fakes to drive Produce without
	// installed LLVM tools.
	Exec       func(ctx context.Context, dir, name string, args []string) error
	ExecOutput func(ctx context.Context, dir, name string, args []string) ([]byte, error)
}

// New creates a new LLVM profraw producer.
func New() *Producer {
	return &Producer{ProfdataPath: "llvm-profdata", CovPath: "llvm-cov", Timeout: 60 * time.Second}
}

// Produce merges every .profraw/.profdata file under item.Path and
// exports JSON coverage for item.BinaryPath, then converts that JSON into
// records.
func (p *Producer) Produce(item coverage.WorkItem) ([]*coverage.Record, error) {
	if item.BinaryPath == "" {
		return nil, fmt.Errorf("llvmprof: work item has no --binary-path hint, cannot resolve coverage mapping")
	}

	profraws, err := profrawFiles(item.Path)
	if err != nil {
		return nil, fmt.Errorf("list profraw files: %w", err)
	}
	if len(profraws) == 0 {
		return nil, fmt.Errorf("llvmprof: no .profraw or .profdata files found under %s", item.Path)
	}

	scratch, err := os.MkdirTemp("", "grcov-llvmprof-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	merged := filepath.Join(scratch, "merged.profdata")
	if err := p.merge(profraws, merged, timeout); err != nil {
		return nil, err
	}

	exported, err := p.export(item.BinaryPath, merged, timeout)
	if err != nil {
		return nil, err
	}

	return parseExport(exported)
}

func profrawFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && (strings.HasSuffix(path, ".profraw") || strings.HasSuffix(path, ".profdata")) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func (p *Producer) merge(profraws []string, outPath string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	execFn := p.Exec
	if execFn == nil {
		execFn = runCommand
	}
	args := append([]string{"merge", "-sparse", "-o", outPath}, profraws...)
	if err := execFn(ctx, "", p.ProfdataPath, args); err != nil {
		return fmt.Errorf("run %s merge: %w", p.ProfdataPath, err)
	}
	return nil
}

func (p *Producer) export(binaryPath, profdataPath string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	outFn := p.ExecOutput
	if outFn == nil {
		outFn = runCommandOutput
	}
	args := []string{"export", "-format=text", "-instr-profile=" + profdataPath, binaryPath}
	out, err := outFn(ctx, "", p.CovPath, args)
	if err != nil {
		return nil, fmt.Errorf("run %s export: %w", p.CovPath, err)
	}
	return out, nil
}

func runCommand(ctx context.Context, dir, name string, args []string) error {
	cmd := exec.CommandContext(ctx, name, args...) // #nosec G204 - binary fixed, paths from trusted discovery
	cmd.Dir = dir
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, stderr.String())
	}
	return nil
}

func runCommandOutput(ctx context.Context, dir, name string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) // #nosec G204 - binary fixed, paths from trusted discovery
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("%w: %s", err, string(ee.Stderr))
		}
		return nil, err
	}
	return out, nil
}

// llvm-cov export -format=text JSON schema (subset used here):
// {"data":[{"files":[{"filename":"...","segments":[[line,col,count,hasCount,isRegionEntry,isGapRegion],...],
// "branches":[[line,col,endLine,endCol,count,falseCount,...]]}],"functions":[{"name":"...","filenames":["..."],
// "count":N,"regions":[[line,col,...,executionCount,...]]}]}]}
type exportDoc struct {
	Data []struct {
		Files []struct {
			Filename string          `json:"filename"`
			Segments [][]json.Number `json:"segments"`
			Branches [][]json.Number `json:"branches"`
		} `json:"files"`
		Functions []struct {
			Name      string          `json:"name"`
			Filenames []string        `json:"filenames"`
			Count     json.Number     `json:"count"`
			Regions   [][]json.Number `json:"regions"`
		} `json:"functions"`
	} `json:"data"`
}

func parseExport(raw []byte) ([]*coverage.Record, error) {
	var doc exportDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode llvm-cov export json: %w", err)
	}

	records := make(map[string]*coverage.Record)
	var order []string
	getRecord := func(file string) *coverage.Record {
		rec, ok := records[file]
		if !ok {
			rec = coverage.NewRecord(file)
			records[file] = rec
			order = append(order, file)
		}
		return rec
	}

	for _, export := range doc.Data {
		for _, file := range export.Files {
			rec := getRecord(file.Filename)
			applySegments(rec, file.Segments)
			applyBranches(rec, file.Branches)
		}
		for _, fn := range export.Functions {
			if len(fn.Filenames) == 0 {
				continue
			}
			rec := getRecord(fn.Filenames[0])
			line := firstRegionLine(fn.Regions)
			count, _ := fn.Count.Float64()
			rec.AddFunction(fn.Name, line, count > 0)
		}
	}

	out := make([]*coverage.Record, 0, len(order))
	for _, file := range order {
		out = append(out, records[file])
	}
	return out, nil
}

// applySegments walks llvm-cov's per-file segment list. Each segment is
// [line, col, count, hasCount, isRegionEntry, isGapRegion]; a line's
// executable count is the count of the segment that starts it.
func applySegments(rec *coverage.Record, segments [][]json.Number) {
	seen := make(map[int]bool)
	for _, seg := range segments {
		if len(seg) < 4 {
			continue
		}
		line := numInt(seg[0])
		count := numInt(seg[2])
		hasCount := numInt(seg[3])
		if hasCount == 0 || seen[line] {
			continue
		}
		seen[line] = true
		rec.AddLine(line, uint64(count))
	}
}

// applyBranches maps llvm-cov's branch regions, each
// [line, col, endLine, endCol, count, falseCount, ...], into two indexed
// Branch entries per region: the true arm and the false arm.
func applyBranches(rec *coverage.Record, branches [][]json.Number) {
	idx := make(map[int]int)
	for _, br := range branches {
		if len(br) < 6 {
			continue
		}
		line := numInt(br[0])
		trueCount := numInt(br[4])
		falseCount := numInt(br[5])

		i := idx[line]
		rec.AddBranch(line, i, coverage.Branch{Taken: trueCount > 0, Executed: true})
		rec.AddBranch(line, i+1, coverage.Branch{Taken: falseCount > 0, Executed: true})
		idx[line] = i + 2
	}
}

func firstRegionLine(regions [][]json.Number) int {
	if len(regions) == 0 || len(regions[0]) == 0 {
		return 1
	}
	return numInt(regions[0][0])
}

func numInt(n json.Number) int {
	v, _ := n.Float64()
	return int(v)
}
