// Package watch monitors a suite's source tree and reruns environments
// when matching files change. Events are debounced so editor save bursts
// and branch switches trigger a single rerun.
package watch

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period applied when Options.Debounce is
// not positive.
const DefaultDebounce = 500 * time.Millisecond

// defaultIgnores are always merged with Options.Ignore. They cover VCS
// metadata, interpreter caches, editor swap files, and gauntlet's own
// env work area (which changes on every run and would otherwise retrigger
// the rerun it belongs to).
var defaultIgnores = []string{
	"**/.git/**",
	"**/.hg/**",
	"**/.gauntlet/**",
	"**/.venv/**",
	"**/node_modules/**",
	"**/__pycache__/**",
	"**/*.pyc",
	"**/*.swp",
	"**/*.swo",
	"**/*~",
	"**/.DS_Store",
}

// Options configures a Watcher.
type Options struct {
	// Root is the directory tree to monitor. Usually the directory
	// containing the suite file. Required.
	Root string

	// Patterns are doublestar globs, relative to Root, selecting which
	// changed paths trigger a rerun. Empty means every path that is not
	// ignored.
	Patterns []string

	// Ignore globs are merged with the built-in defaults. A path matching
	// any ignore glob never triggers a rerun even if a pattern matches it.
	Ignore []string

	// Debounce is the quiet period after the last filesystem event before
	// OnChange fires. Non-positive values use DefaultDebounce.
	Debounce time.Duration

	// OnChange runs after each debounced batch with the affected paths,
	// relative to Root and sorted. A non-nil error is logged but does not
	// stop the watcher; only context cancellation or a fatal filesystem
	// error ends Run.
	OnChange func(ctx context.Context, changed []string) error

	// Stderr receives diagnostics. Nil means os.Stderr.
	Stderr io.Writer
}

// Watcher reruns a callback when files under a root change. A Watcher is
// single-use: Run may be called at most once.
type Watcher struct {
	root     string
	patterns []string
	ignore   []string
	debounce time.Duration
	onChange func(ctx context.Context, changed []string) error
	stderr   io.Writer

	fs      *fsnotify.Watcher
	started atomic.Bool
}

// New validates opts, creates the underlying filesystem watcher, and
// registers every directory under Root that is not ignored.
func New(opts Options) (*Watcher, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("watch: root directory is required")
	}
	if opts.OnChange == nil {
		return nil, fmt.Errorf("watch: OnChange callback is required")
	}

	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("watch: resolving root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("watch: root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch: root %s is not a directory", root)
	}

	// doublestar only reports syntax errors at match time, so probe each
	// glob once up front instead of failing on the first event.
	for _, pat := range opts.Patterns {
		if _, err := doublestar.Match(pat, ""); err != nil {
			return nil, fmt.Errorf("watch: pattern %q: %w", pat, err)
		}
	}
	for _, pat := range opts.Ignore {
		if _, err := doublestar.Match(pat, ""); err != nil {
			return nil, fmt.Errorf("watch: ignore %q: %w", pat, err)
		}
	}

	ignore := expandIgnores(slices.Concat(defaultIgnores, opts.Ignore))

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: creating filesystem watcher: %w", err)
	}

	w := &Watcher{
		root:     root,
		patterns: slices.Clone(opts.Patterns),
		ignore:   ignore,
		debounce: debounce,
		onChange: opts.OnChange,
		stderr:   stderr,
		fs:       fs,
	}
	if err := w.watchTree(root); err != nil {
		fs.Close()
		return nil, err
	}
	return w, nil
}

// Run blocks, dispatching debounced change batches to OnChange, until ctx
// is cancelled or the filesystem watcher fails fatally. It returns nil on
// cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return fmt.Errorf("watch: Run called twice")
	}
	defer w.fs.Close()

	// queued collects paths seen since the last flush; the timer resets on
	// every relevant event so a burst of saves coalesces into one rerun.
	queued := make(map[string]struct{})
	var running atomic.Bool
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	flushCh := make(chan struct{}, 1)
	flush := func() {
		select {
		case flushCh <- struct{}{}:
		default:
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-flushCh:
			if len(queued) == 0 {
				continue
			}
			if running.Load() {
				// A rerun is in flight. Hold the batch and try again after
				// another quiet period so the changes are not lost.
				timer.Reset(w.debounce)
				continue
			}
			changed := slices.Sorted(maps.Keys(queued))
			clear(queued)
			running.Store(true)
			go func() {
				defer running.Store(false)
				if err := w.onChange(ctx, changed); err != nil && ctx.Err() == nil {
					fmt.Fprintf(w.stderr, "watch: rerun failed: %v\n", err)
				}
				flush()
			}()

		case ev, ok := <-w.fs.Events:
			if !ok {
				return fmt.Errorf("watch: event channel closed")
			}
			rel, match := w.relevant(ev)
			if !match {
				continue
			}
			queued[rel] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, flush)
			} else {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return fmt.Errorf("watch: error channel closed")
			}
			if isFatalWatchError(err) {
				return fmt.Errorf("watch: filesystem watcher failed: %w", err)
			}
			fmt.Fprintf(w.stderr, "watch: %v\n", err)
		}
	}
}

// relevant decides whether an event should queue a rerun and returns the
// path relative to the root. Newly created directories are added to the
// watch set as a side effect.
func (w *Watcher) relevant(ev fsnotify.Event) (string, bool) {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return "", false
	}

	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil || rel == "." {
		return "", false
	}
	rel = filepath.ToSlash(rel)

	if matchAny(w.ignore, rel) {
		return "", false
	}

	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.watchTree(ev.Name); err != nil {
				fmt.Fprintf(w.stderr, "watch: %v\n", err)
			}
		}
	}

	if len(w.patterns) > 0 && !matchAny(w.patterns, rel) {
		return "", false
	}
	return rel, true
}

// watchTree registers dir and every non-ignored directory below it.
// Unreadable subdirectories are skipped with a diagnostic rather than
// aborting the walk.
func (w *Watcher) watchTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("watch: walking %s: %w", dir, err)
			}
			fmt.Fprintf(w.stderr, "watch: skipping %s: %v\n", path, err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root {
			rel, relErr := filepath.Rel(w.root, path)
			if relErr == nil && matchAny(w.ignore, filepath.ToSlash(rel)) {
				return filepath.SkipDir
			}
		}
		if err := w.fs.Add(path); err != nil {
			if path == dir {
				return fmt.Errorf("watch: watching %s: %w", path, err)
			}
			fmt.Fprintf(w.stderr, "watch: cannot watch %s: %v\n", path, err)
		}
		return nil
	})
}

// matchAny reports whether rel matches at least one of the globs. rel must
// be slash-separated. Malformed globs were rejected by New, so match errors
// cannot occur here.
func matchAny(globs []string, rel string) bool {
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, rel); ok {
			return true
		}
	}
	return false
}

// expandIgnores adds the bare directory form of every "dir/**" glob.
// "**/.git/**" alone matches paths under .git but not the .git directory
// itself, so creating the directory would slip past the filter and its
// subtree would never be skipped during registration.
func expandIgnores(globs []string) []string {
	out := make([]string, 0, 2*len(globs))
	for _, g := range globs {
		out = append(out, g)
		if base, ok := strings.CutSuffix(g, "/**"); ok && base != "" {
			out = append(out, base)
		}
	}
	return out
}
