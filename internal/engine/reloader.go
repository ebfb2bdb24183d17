package engine

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// BuildFunc produces a fresh engine, typically by re-reading the corpus.
type BuildFunc func() (*Engine, error)

// Reloader rebuilds the engine when the corpus file changes and swaps it
// into a Holder. A failed rebuild keeps the engine already being served.
type Reloader struct {
	holder   *Holder
	build    BuildFunc
	path     string
	debounce time.Duration
	logger   *zap.Logger
	onReload func(ok bool)

	fw      *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

// ReloaderOption configures a Reloader.
type ReloaderOption func(*Reloader)

// WithDebounce sets how long the file must stay quiet before a rebuild.
func WithDebounce(d time.Duration) ReloaderOption {
	return func(r *Reloader) { r.debounce = d }
}

// WithReloadHook is called after every rebuild attempt.
func WithReloadHook(fn func(ok bool)) ReloaderOption {
	return func(r *Reloader) { r.onReload = fn }
}

// NewReloader prepares a watcher for path. Call Start to begin watching.
func NewReloader(holder *Holder, path string, build BuildFunc, logger *zap.Logger, opts ...ReloaderOption) *Reloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reloader{
		holder:   holder,
		build:    build,
		path:     filepath.Clean(path),
		debounce: 250 * time.Millisecond,
		logger:   logger,
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Start watches the corpus file's directory, so editors that replace the
// file by rename are still seen.
func (r *Reloader) Start() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(filepath.Dir(r.path)); err != nil {
		_ = fw.Close()
		return err
	}
	r.fw = fw
	r.wg.Add(1)
	go r.loop()
	return nil
}

func (r *Reloader) loop() {
	defer r.wg.Done()
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case ev, ok := <-r.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != r.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(r.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(r.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			r.Reload()
		case err, ok := <-r.fw.Errors:
			if !ok {
				return
			}
			r.logger.Warn("corpus watcher error", zap.Error(err))
		case <-r.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// Reload rebuilds now and swaps on success.
func (r *Reloader) Reload() bool {
	next, err := r.build()
	ok := err == nil && next != nil
	if ok {
		r.holder.Swap(next)
		r.logger.Info("engine reloaded", zap.String("path", r.path), zap.Int("sections", len(next.entries)))
	} else {
		r.logger.Error("engine reload failed; keeping current engine", zap.String("path", r.path), zap.Error(err))
	}
	if r.onReload != nil {
		r.onReload(ok)
	}
	return ok
}

// Stop ends watching. Safe to call more than once.
func (r *Reloader) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return nil
	}
	r.stopped = true
	close(r.done)
	var err error
	if r.fw != nil {
		err = r.fw.Close()
	}
	r.wg.Wait()
	return err
}
