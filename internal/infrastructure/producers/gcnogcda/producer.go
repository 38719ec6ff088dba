// Package gcnogcda implements the GCC/LLVM gcno/gcda binary note-and-data
// file producer. Rather than reimplementing the versioned gcno/gcda
// binary format, it shells out to the installed gcov (or llvm-cov gcov)
// binary with -i to request the intermediate text format, then feeds the
// output through the gcovtext producer already built for that format.
// The binary format's version skew stays the engine's problem.
package gcnogcda

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/felixgeelhaar/grcov/internal/domain/coverage"
	"github.com/felixgeelhaar/grcov/internal/infrastructure/producers/gcovtext"
)

// Producer parses gcno/gcda pairs by invoking an external gcov engine.
type Producer struct {
	// GcovPath is the gcov binary to invoke. Defaults to "gcov".
	GcovPath string
	// LLVM restricts parsing to the LLVM variant, invoking "llvm-cov gcov"
	// instead of plain gcov. LLVM's gcno/gcda emitter targets a single
	// fixed format version and has no GCC-only extension fields.
	LLVM bool
	// Timeout bounds each gcov invocation. Defaults to 30s.
	Timeout time.Duration
	// Exec invokes the gcov engine with dir as its working directory.
	// Nil selects the real os/exec implementation; tests substitute a
	// fake to drive Produce without an installed gcov.
	Exec func(ctx context.Context, dir, name string, args []string) error
}

// New creates a new gcno/gcda producer. llvm selects the LLVM gcov engine
// (corresponds to the --llvm configuration switch).
func New(llvm bool) *Producer {
	return &Producer{GcovPath: "gcov", LLVM: llvm, Timeout: 30 * time.Second}
}

// Produce runs gcov against the work item's gcno/gcda pair in a scratch
// directory and parses the resulting intermediate-format output.
func (p *Producer) Produce(item coverage.WorkItem) ([]*coverage.Record, error) {
	if item.GcdaPath == "" && item.GcnoPath == "" {
		return nil, fmt.Errorf("gcnogcda: work item has neither gcno nor gcda path")
	}

	scratch, err := os.MkdirTemp("", "grcov-gcov-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	target := item.GcdaPath
	if target == "" {
		target = item.GcnoPath
	}
	sourceDir := filepath.Dir(target)

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	execFn := p.Exec
	if execFn == nil {
		execFn = runCommand
	}

	name, args := p.command(sourceDir, target)
	if err := execFn(ctx, scratch, name, args); err != nil {
		return nil, fmt.Errorf("run %s: %w", name, err)
	}

	entries, err := os.ReadDir(scratch)
	if err != nil {
		return nil, fmt.Errorf("read gcov scratch dir: %w", err)
	}

	var records []*coverage.Record
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".gcov") {
			continue
		}
		f, err := os.Open(filepath.Join(scratch, entry.Name())) // #nosec G304 - path is our own scratch dir
		if err != nil {
			return nil, fmt.Errorf("open gcov output %s: %w", entry.Name(), err)
		}
		recs, parseErr := gcovtext.Parse(f)
		f.Close()
		if parseErr != nil {
			return nil, fmt.Errorf("parse gcov output %s: %w", entry.Name(), parseErr)
		}
		records = append(records, recs...)
	}
	return records, nil
}

func (p *Producer) command(sourceDir, target string) (string, []string) {
	args := []string{"-i", "-o", sourceDir, target}
	if p.LLVM {
		return "llvm-cov", append([]string{"gcov"}, args...)
	}
	return p.GcovPath, args
}

func runCommand(ctx context.Context, dir, name string, args []string) error {
	cmd := exec.CommandContext(ctx, name, args...) // #nosec G204 - binary name/args are fixed, path comes from trusted discovery roots
	cmd.Dir = dir
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, stderr.String())
	}
	return nil
}
