package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors coverage artifact directories for changes, backing
// --watch: rerun the pipeline whenever new gcda/profraw/lcov/etc.
// artifacts land. A test run writes its .gcda files (one per compilation
// unit) as a burst spread over however long the suite takes, not as one
// atomic write; a plain reset-on-every-event debounce would keep
// deferring for as long as the suite keeps writing and never fire until
// it's fully idle. Events instead coalesces a burst but caps it with a
// maxWait ceiling, so a long-running suite still gets periodic reruns,
// and reports how many distinct artifact paths changed in the coalesced
// batch.
type Watcher struct {
	watcher    *fsnotify.Watcher
	debounce   time.Duration
	maxWait    time.Duration
	extensions []string
}

// Option configures the watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet-period duration: Events fires this long
// after the most recent relevant file change, provided the burst hasn't
// already hit WithMaxWait.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithMaxWait caps how long a continuously-arriving burst of artifact
// writes can defer a rerun. Defaults to 10x the debounce duration.
func WithMaxWait(d time.Duration) Option {
	return func(w *Watcher) {
		w.maxWait = d
	}
}

// WithExtensions sets the file extensions to watch.
func WithExtensions(exts ...string) Option {
	return func(w *Watcher) {
		w.extensions = exts
	}
}

// New creates a new file watcher.
func New(opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:    fsw,
		debounce:   500 * time.Millisecond,
		extensions: []string{".gcno", ".gcda", ".info", ".xml", ".json", ".out", ".profraw", ".profdata", ".zip"},
	}

	for _, opt := range opts {
		opt(w)
	}
	if w.maxWait <= 0 {
		w.maxWait = 10 * w.debounce
	}

	return w, nil
}

// WatchDir adds a directory and its subdirectories to the watch list.
func (w *Watcher) WatchDir(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		// Skip hidden directories and common non-source directories
		base := filepath.Base(path)
		if strings.HasPrefix(base, ".") || base == "vendor" || base == "node_modules" {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// Events returns a channel that emits the number of distinct artifact
// paths coalesced into each rerun trigger. A trigger fires either after
// the burst goes quiet for the debounce duration, or once the burst has
// run continuously for maxWait, whichever comes first.
func (w *Watcher) Events(ctx context.Context) <-chan int {
	out := make(chan int)

	go func() {
		defer close(out)

		var debounceTimer, maxWaitTimer *time.Timer
		var debounceCh, maxWaitCh <-chan time.Time
		changed := make(map[string]struct{})

		stopTimers := func() {
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			if maxWaitTimer != nil {
				maxWaitTimer.Stop()
			}
		}

		flush := func() bool {
			n := len(changed)
			changed = make(map[string]struct{})
			debounceCh, maxWaitCh = nil, nil
			select {
			case out <- n:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case <-ctx.Done():
				stopTimers()
				return

			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !isWriteEvent(event.Op) || !w.hasRelevantExtension(event.Name) {
					continue
				}

				firstInBurst := len(changed) == 0
				changed[event.Name] = struct{}{}

				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.NewTimer(w.debounce)
				debounceCh = debounceTimer.C

				if firstInBurst {
					maxWaitTimer = time.NewTimer(w.maxWait)
					maxWaitCh = maxWaitTimer.C
				}

			case <-debounceCh:
				if maxWaitTimer != nil {
					maxWaitTimer.Stop()
				}
				if !flush() {
					return
				}

			case <-maxWaitCh:
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				if !flush() {
					return
				}

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				// Errors are discarded; watching continues
				_ = err
			}
		}
	}()

	return out
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func isWriteEvent(op fsnotify.Op) bool {
	return op&fsnotify.Write == fsnotify.Write ||
		op&fsnotify.Create == fsnotify.Create
}

func (w *Watcher) hasRelevantExtension(path string) bool {
	ext := filepath.Ext(path)
	for _, e := range w.extensions {
		if ext == e {
			return true
		}
	}
	return false
}
