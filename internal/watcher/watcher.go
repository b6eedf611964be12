// Package watcher hands newly created transcript files in a directory to a
// handler, running at most a fixed number of handlers at once.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"meeting-router-go/internal/logger"
)

// Pattern is the file name glob of transcripts picked up in watch mode.
const Pattern = "meeting_transcript_*.txt"

// ErrWatcherFailed indicates the filesystem watcher could not be set up.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// Handler processes one transcript. It runs on its own goroutine.
type Handler func(ctx context.Context, path string)

type Options struct {
	// Concurrency bounds how many handlers run at once. Values below 1 mean 1.
	Concurrency int
	// Settle is how long to wait after a create event before handling the
	// file, so writers have a chance to finish.
	Settle time.Duration
	Logger *logrus.Entry
}

type Watcher struct {
	dir     string
	opts    Options
	handle  Handler
	fs      *fsnotify.Watcher
	log     *logrus.Entry
	mu      sync.Mutex
	pending map[string]bool
}

// New starts watching dir. Events are not handled until Run is called.
func New(dir string, handle Handler, opts Options) (*Watcher, error) {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	log := opts.Logger
	if log == nil {
		log = logger.Discard().Entry
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	return &Watcher{
		dir:     dir,
		opts:    opts,
		handle:  handle,
		fs:      fw,
		log:     log.WithFields(logrus.Fields{"component": "watcher", "dir": dir}),
		pending: map[string]bool{},
	}, nil
}

// Matches reports whether name (a path or base name) is a transcript file.
func Matches(name string) bool {
	ok, _ := filepath.Match(Pattern, filepath.Base(name))
	return ok
}

// Run dispatches create events until ctx is done, then waits for running
// handlers to return. The underlying watcher is closed on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	sem := make(chan struct{}, w.opts.Concurrency)
	var wg sync.WaitGroup
	defer wg.Wait()

	w.log.WithField("pattern", Pattern).Info("watching for transcripts")
	for {
		select {
		case <-ctx.Done():
			w.log.Info("watcher stopping")
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) || !Matches(ev.Name) || !w.claim(ev.Name) {
				continue
			}
			w.log.WithField("path", ev.Name).Info("new transcript detected")

			wg.Add(1)
			go func(path string) {
				defer wg.Done()
				defer w.release(path)
				if !w.settle(ctx) {
					return
				}
				select {
				case sem <- struct{}{}:
				case <-ctx.Done():
					return
				}
				defer func() { <-sem }()
				w.handle(ctx, path)
			}(ev.Name)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("filesystem watcher error")
		}
	}
}

// claim marks path as in flight. A second create for the same path while
// the first is still pending or running is dropped.
func (w *Watcher) claim(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending[path] {
		return false
	}
	w.pending[path] = true
	return true
}

func (w *Watcher) release(path string) {
	w.mu.Lock()
	delete(w.pending, path)
	w.mu.Unlock()
}

func (w *Watcher) settle(ctx context.Context) bool {
	if w.opts.Settle <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(w.opts.Settle)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
