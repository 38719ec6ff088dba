package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/grcov/internal/application"
	"github.com/felixgeelhaar/grcov/internal/domain/coverage"
	"github.com/felixgeelhaar/grcov/internal/infrastructure/badge"
	"github.com/felixgeelhaar/grcov/internal/pathutil"
)

// extensions maps an --output-types name to the file extension used when
// --output-path names a directory (multiple writers selected).
var extensions = map[string]string{
	"text": "txt",
	"json": "json",
	"html": "html",
	"lcov": "info",
}

// Reporter implements application.Reporter, writing one file per
// configured --output-types entry. A single type may be written directly
// to --output-path; multiple types are written under it as a directory.
type Reporter struct {
	Writer Writer
}

// NewReporter creates a Reporter.
func NewReporter() *Reporter { return &Reporter{} }

// Report renders m in every format named by cfg.OutputTypes, plus an SVG
// badge when cfg.Badge is set.
func (r *Reporter) Report(ctx context.Context, m *coverage.Map, cfg application.Config) error {
	if cfg.Badge != "" {
		total := totalSummary(buildViews(m))
		if err := badge.WriteFile(cfg.Badge, total.LinePercent()); err != nil {
			return fmt.Errorf("write badge: %w", err)
		}
	}
	return r.report(ctx, m, cfg)
}

func (r *Reporter) report(_ context.Context, m *coverage.Map, cfg application.Config) error {
	types := cfg.OutputTypes
	if len(types) == 0 {
		types = []string{"text"}
	}

	if len(types) == 1 {
		out, closer, err := openOutput(cfg.OutputPath)
		if err != nil {
			return err
		}
		defer closer()
		return r.Writer.Write(out, m, cfg, types[0])
	}

	if cfg.OutputPath == "" {
		return fmt.Errorf("--output-path must name a directory when multiple --output-types are given")
	}
	if err := os.MkdirAll(cfg.OutputPath, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	for _, t := range types {
		ext, ok := extensions[t]
		if !ok {
			return fmt.Errorf("unsupported output format: %s", t)
		}
		path := filepath.Join(cfg.OutputPath, "coverage."+ext)
		f, err := os.Create(path) // #nosec G304 - path built from configured output directory
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		err = r.Writer.Write(f, m, cfg, t)
		closeErr := f.Close()
		if err != nil {
			return err
		}
		if closeErr != nil {
			return closeErr
		}
	}
	return nil
}

func openOutput(path string) (*os.File, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	if !pathutil.IsPathSafe(path) {
		return nil, nil, fmt.Errorf("unsafe output path: %q", path)
	}
	f, err := os.Create(path) // #nosec G304 - path comes from --output-path configuration
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
