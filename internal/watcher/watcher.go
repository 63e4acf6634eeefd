// Package watcher ingests files dropped into an inbox directory.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Handler reacts to inbox changes.
type Handler interface {
	// Ingest is called once writes to path have settled.
	Ingest(ctx context.Context, path string) error
	// Remove is called when path is deleted or moved out of the inbox.
	Remove(ctx context.Context, path string) error
}

// Inbox watches a directory tree and forwards settled file changes to a Handler.
type Inbox struct {
	root     string
	accept   func(path string) bool
	handler  Handler
	debounce time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	timers   map[string]*time.Timer
	ctx      context.Context
	done     chan struct{}
	stopOnce sync.Once
}

// Option configures an Inbox.
type Option func(*Inbox)

// WithLogger sets a logger for inbox events.
func WithLogger(l *zap.Logger) Option {
	return func(in *Inbox) {
		if l != nil {
			in.logger = l
		}
	}
}

// WithDebounce sets how long a file must be quiet before it is ingested.
func WithDebounce(d time.Duration) Option {
	return func(in *Inbox) {
		if d > 0 {
			in.debounce = d
		}
	}
}

// New creates an inbox over root. accept filters which files are handled; nil accepts all.
func New(root string, accept func(path string) bool, handler Handler, opts ...Option) *Inbox {
	if accept == nil {
		accept = func(string) bool { return true }
	}
	in := &Inbox{
		root:     filepath.Clean(root),
		accept:   accept,
		handler:  handler,
		debounce: defaultDebounce,
		logger:   zap.NewNop(),
		timers:   make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Root returns the watched directory.
func (in *Inbox) Root() string {
	return in.root
}

// Start creates the root if needed, watches it recursively and processes events until ctx
// is cancelled or Stop is called.
func (in *Inbox) Start(ctx context.Context) error {
	if err := os.MkdirAll(in.root, 0755); err != nil {
		return err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	in.mu.Lock()
	in.fsw = fsw
	in.ctx = ctx
	in.mu.Unlock()
	if err := in.watchTree(in.root); err != nil {
		_ = fsw.Close()
		return err
	}
	in.logger.Info("inbox watching", zap.String("root", in.root))
	go in.run(ctx, fsw)
	return nil
}

func (in *Inbox) run(ctx context.Context, fsw *fsnotify.Watcher) {
	defer fsw.Close()
	for {
		select {
		case <-ctx.Done():
			in.Stop()
			return
		case <-in.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			in.handleEvent(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			in.logger.Warn("inbox watch error", zap.Error(err))
		}
	}
}

func (in *Inbox) handleEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if !inDir(in.root, path) {
		return
	}
	in.logger.Debug("inbox event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			if err := in.watchTree(path); err != nil {
				in.logger.Warn("inbox failed to watch directory", zap.String("path", path), zap.Error(err))
			}
			in.syncTree(path)
			return
		}
		if in.accept(path) {
			in.schedule(path)
		}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		in.cancel(path)
		if in.accept(path) {
			in.remove(path)
		}
	}
}

func (in *Inbox) watchTree(root string) error {
	in.mu.Lock()
	fsw := in.fsw
	in.mu.Unlock()
	if fsw == nil {
		return nil
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}

// Sync ingests every accepted file already in the inbox.
func (in *Inbox) Sync() {
	in.syncTree(in.root)
}

func (in *Inbox) syncTree(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if in.accept(path) {
			in.schedule(path)
		}
		return nil
	})
}

func (in *Inbox) schedule(path string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.fsw == nil {
		return
	}
	if t, ok := in.timers[path]; ok {
		t.Stop()
	}
	in.timers[path] = time.AfterFunc(in.debounce, func() {
		in.mu.Lock()
		delete(in.timers, path)
		ctx := in.ctx
		in.mu.Unlock()
		if ctx == nil || ctx.Err() != nil {
			return
		}
		if err := in.handler.Ingest(ctx, path); err != nil {
			in.logger.Warn("inbox ingest failed", zap.String("path", path), zap.Error(err))
			return
		}
		in.logger.Info("inbox file ingested", zap.String("path", path))
	})
}

func (in *Inbox) cancel(path string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if t, ok := in.timers[path]; ok {
		t.Stop()
		delete(in.timers, path)
	}
}

func (in *Inbox) remove(path string) {
	in.mu.Lock()
	ctx := in.ctx
	in.mu.Unlock()
	if ctx == nil {
		return
	}
	if err := in.handler.Remove(ctx, path); err != nil {
		in.logger.Warn("inbox remove failed", zap.String("path", path), zap.Error(err))
	}
}

// Stop stops watching and cancels pending ingests.
func (in *Inbox) Stop() {
	in.stopOnce.Do(func() {
		in.mu.Lock()
		for path, t := range in.timers {
			t.Stop()
			delete(in.timers, path)
		}
		in.fsw = nil
		in.mu.Unlock()
		close(in.done)
	})
}

// inDir reports whether path is dir or inside it.
func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
