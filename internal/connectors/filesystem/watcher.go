// Package filesystem watches local document files and reports debounced
// changes so edited documents can be re-ingested.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/shopbot/internal/logger"
)

// DefaultDebounce is how long a path must stay quiet before its change is
// delivered. Editors often write a file several times per save.
const DefaultDebounce = 250 * time.Millisecond

// ChangeType classifies a file change.
type ChangeType string

const (
	// ChangeUpdated means the file was created or written.
	ChangeUpdated ChangeType = "updated"
	// ChangeDeleted means the file was removed or renamed away.
	ChangeDeleted ChangeType = "deleted"
)

// Change is a single debounced file change.
type Change struct {
	Path string
	Type ChangeType
}

// ErrNoPaths is returned when a watcher is created without any paths.
var ErrNoPaths = errors.New("no paths to watch")

// Watcher reports changes under a set of files and directories.
// Directories are watched recursively; hidden entries are skipped.
type Watcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]struct{}
	dirs     map[string]struct{}
	filter   func(path string) bool
	debounce time.Duration

	mu     sync.Mutex
	closed bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithFilter restricts reported changes to paths accepted by fn.
func WithFilter(fn func(path string) bool) Option {
	return func(w *Watcher) { w.filter = fn }
}

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher starts watching paths. Files are watched through their parent
// directory and only events for the named file are reported.
func NewWatcher(paths []string, opts ...Option) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, ErrNoPaths
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	w := &Watcher{
		watcher:  fw,
		files:    make(map[string]struct{}),
		dirs:     make(map[string]struct{}),
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}

	for _, p := range paths {
		if err := w.add(p); err != nil {
			_ = fw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}

	if !info.IsDir() {
		w.files[abs] = struct{}{}
		return w.watchDir(filepath.Dir(abs))
	}

	w.dirs[abs] = struct{}{}
	return filepath.WalkDir(abs, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != abs && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		return w.watchDir(p)
	})
}

func (w *Watcher) watchDir(dir string) error {
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	return nil
}

// Watch delivers debounced changes to fn until ctx is cancelled or the
// watcher is closed. fn runs on the watch goroutine.
func (w *Watcher) Watch(ctx context.Context, fn func(Change)) error {
	pending := make(map[string]ChangeType)
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	flush := func() {
		for path, typ := range pending {
			fn(Change{Path: path, Type: typ})
		}
		clear(pending)
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				flush()
				return nil
			}
			change := w.handleFsEvent(event)
			if change == nil {
				continue
			}
			pending[change.Path] = change.Type
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				flush()
				return nil
			}
			logger.Warn("watch error: %v", err)

		case <-timer.C:
			flush()
		}
	}
}

// handleFsEvent maps a raw fsnotify event to a change, or nil when the
// event is irrelevant. New directories under a watched root are added.
func (w *Watcher) handleFsEvent(event fsnotify.Event) *Change {
	path := filepath.Clean(event.Name)
	if isHidden(filepath.Base(path)) {
		return nil
	}

	switch {
	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if event.Has(fsnotify.Create) && w.underDir(path) {
				if err := w.watchDir(path); err != nil {
					logger.Warn("%v", err)
				}
			}
			return nil
		}
		if !w.wanted(path) {
			return nil
		}
		return &Change{Path: path, Type: ChangeUpdated}

	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		if !w.wanted(path) {
			return nil
		}
		return &Change{Path: path, Type: ChangeDeleted}
	}
	return nil
}

func (w *Watcher) wanted(path string) bool {
	if _, ok := w.files[path]; !ok && !w.underDir(path) {
		return false
	}
	return w.filter == nil || w.filter(path)
}

func (w *Watcher) underDir(path string) bool {
	for dir := range w.dirs {
		rel, err := filepath.Rel(dir, path)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		if !hasHiddenSegment(rel) {
			return true
		}
	}
	return false
}

// Close stops the watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.watcher.Close()
}

// isHidden reports whether a single path element is a dotfile.
// "." and ".." are not hidden.
func isHidden(name string) bool {
	return name != "." && name != ".." && strings.HasPrefix(name, ".")
}

func hasHiddenSegment(rel string) bool {
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if isHidden(part) {
			return true
		}
	}
	return false
}
