// Package pipeline wires Discovery, the Producer worker pool, and the
// Aggregator into a concurrent pipeline: discovery on one goroutine,
// producers on a worker pool sized by default to the CPU count, and
// aggregation as the consumer side of a bounded channel.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/grcov/internal/domain/coverage"
	"github.com/felixgeelhaar/grcov/internal/infrastructure/discovery"
	"github.com/felixgeelhaar/grcov/internal/infrastructure/paths"
	"github.com/felixgeelhaar/grcov/internal/infrastructure/producers"
)

// Options configures pipeline concurrency and the producer registry it
// drives.
type Options struct {
	Roots    []string
	Registry *producers.Registry
	Logger   *slog.Logger
	// Threads sets the producer worker pool size. Zero selects
	// runtime.NumCPU(), matching the --threads flag default.
	Threads int
	// BinaryPath is the --binary-path hint attached to profraw work
	// items so the LLVM producer can resolve its coverage mapping.
	BinaryPath string
}

// produced carries one producer's output records. Per-item parse errors
// are logged at the worker, never propagated.
type produced struct {
	records []*coverage.Record
}

// Run discovers coverage artifacts under opts.Roots, fans their WorkItems
// out across a producer worker pool, and merges every resulting record
// into m. A fatal aggregator error cancels the pipeline context, which
// drains and stops the work-item channel so producers exit at their next
// send.
func Run(ctx context.Context, opts Options, m *coverage.Map) error {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	threads := opts.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	group, gctx := errgroup.WithContext(ctx)

	workCh := make(chan coverage.WorkItem, threads*4)
	recordCh := make(chan produced, threads*4)

	// Discovery stage: one goroutine, never itself fatal.
	group.Go(func() error {
		defer close(workCh)
		items := discovery.Discover(opts.Roots, func(path string, err error) {
			opts.Logger.Warn("discovery skipped entry", "path", path, "error", err)
		})
		for _, item := range items {
			if item.Kind == coverage.KindProfrawDirectory && item.BinaryPath == "" {
				item.BinaryPath = opts.BinaryPath
			}
			select {
			case workCh <- item:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	// Producer worker pool: work-stealing over workCh, sized to threads.
	for i := 0; i < threads; i++ {
		group.Go(func() error {
			for {
				select {
				case item, ok := <-workCh:
					if !ok {
						return nil
					}
					recs, err := opts.Registry.Produce(item)
					if err != nil {
						opts.Logger.Warn("producer parse error", "kind", item.Kind, "path", itemIdentity(item), "error", err)
						continue
					}
					select {
					case recordCh <- produced{records: recs}:
					case <-gctx.Done():
						return nil
					}
				case <-gctx.Done():
					return nil
				}
			}
		})
	}

	// Aggregator: consumes recordCh until it is closed and merges by
	// canonical path. It watches ctx rather than gctx, since errgroup
	// cancels gctx as soon as Wait returns, while records may still sit in
	// the channel buffer. A fatal merge error returned here makes Run
	// return, and the deferred cancel then stops discovery and the
	// producers; ordinary content never produces one, since Merge itself
	// cannot fail.
	aggDone := make(chan error, 1)
	go func() {
		aggDone <- aggregate(ctx, recordCh, m)
	}()

	// Close recordCh once every producer has exited.
	go func() {
		_ = group.Wait()
		close(recordCh)
	}()

	if err := <-aggDone; err != nil {
		return fmt.Errorf("aggregator: %w", err)
	}
	if err := group.Wait(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	return nil
}

func aggregate(ctx context.Context, recordCh <-chan produced, m *coverage.Map) error {
	for {
		select {
		case p, ok := <-recordCh:
			if !ok {
				return nil
			}
			for _, rec := range p.records {
				m.MergeRecord(paths.Canonicalize(rec.SourcePath), rec)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func itemIdentity(item coverage.WorkItem) string {
	if item.ArchiveName != "" {
		return item.ArchiveName + "!" + item.ArchiveMember
	}
	if item.Path != "" {
		return item.Path
	}
	if item.GcdaPath != "" {
		return item.GcdaPath
	}
	return item.GcnoPath
}
