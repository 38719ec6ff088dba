package application

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/felixgeelhaar/grcov/internal/domain/coverage"
	"github.com/felixgeelhaar/grcov/internal/infrastructure/pipeline"
	"github.com/felixgeelhaar/grcov/internal/infrastructure/postprocess"
	"github.com/felixgeelhaar/grcov/internal/infrastructure/producers"
)

// Service runs the full discover → produce → aggregate → post-process
// pipeline for one Config and hands the finalized map to a Reporter for
// emission.
type Service struct {
	Logger *slog.Logger
}

// NewService creates a Service. A nil logger falls back to slog.Default().
func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{Logger: logger}
}

// Reporter emits a finalized coverage map in one or more output formats.
// Implemented by internal/infrastructure/report.
type Reporter interface {
	Report(ctx context.Context, m *coverage.Map, cfg Config) error
}

// Run executes one end-to-end pipeline invocation: discovery and
// production and aggregation (internal/infrastructure/pipeline), then
// post-processing (internal/infrastructure/postprocess), then emission
// via the given Reporter.
func (s *Service) Run(ctx context.Context, cfg Config, reporter Reporter) (Result, error) {
	if len(cfg.Roots) == 0 {
		return Result{}, fmt.Errorf("no input paths configured")
	}

	excl, err := compileExclusions(cfg.Exclusions)
	if err != nil {
		return Result{}, fmt.Errorf("invalid exclusion pattern: %w", err)
	}

	registry := producers.NewRegistry(producers.Options{LLVM: cfg.LLVM, GcovPath: cfg.GcovPath})
	m := coverage.NewMap()

	var warnings []string
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := pipeline.Run(ctx, pipeline.Options{
		Roots:      cfg.Roots,
		Registry:   registry,
		Logger:     logger,
		Threads:    cfg.Threads,
		BinaryPath: cfg.BinaryPath,
	}, m); err != nil {
		return Result{}, fmt.Errorf("pipeline: %w", err)
	}

	ppMappings := make([]postprocess.PathMapping, 0, len(cfg.PathMappings))
	for _, pm := range cfg.PathMappings {
		ppMappings = append(ppMappings, postprocess.PathMapping{From: pm.From, To: pm.To})
	}

	if err := postprocess.Run(m, postprocess.Options{
		PrefixStrip:       cfg.PrefixDir,
		PathMappings:      ppMappings,
		SourceDir:         cfg.SourceDir,
		IgnoreNotExisting: cfg.IgnoreNotExisting,
		IgnoreGlobs:       cfg.Ignore,
		KeepOnlyGlobs:     cfg.KeepOnly,
		Exclusions:        excl,
		Filter:            cfg.Filter,
	}); err != nil {
		return Result{}, fmt.Errorf("post-process: %w", err)
	}

	filesReported := m.Len()

	if reporter != nil {
		if err := reporter.Report(ctx, m, cfg); err != nil {
			return Result{FilesReported: filesReported, Warnings: warnings}, fmt.Errorf("emit: %w", err)
		}
	}

	return Result{FilesReported: filesReported, Warnings: warnings}, nil
}

func compileExclusions(cfg ExclusionConfig) (postprocess.ExclusionRegexes, error) {
	var out postprocess.ExclusionRegexes
	var err error
	if out.Line, err = compileOptional(cfg.Line); err != nil {
		return out, err
	}
	if out.Start, err = compileOptional(cfg.Start); err != nil {
		return out, err
	}
	if out.Stop, err = compileOptional(cfg.Stop); err != nil {
		return out, err
	}
	if out.BranchLine, err = compileOptional(cfg.BranchLine); err != nil {
		return out, err
	}
	if out.BranchStart, err = compileOptional(cfg.BranchStart); err != nil {
		return out, err
	}
	if out.BranchStop, err = compileOptional(cfg.BranchStop); err != nil {
		return out, err
	}
	return out, nil
}

func compileOptional(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	return regexp.Compile(pattern)
}
