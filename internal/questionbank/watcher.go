package questionbank

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher reloads a bank file whenever it changes on disk. Bursts of events,
// such as an editor writing a file in several steps, trigger one reload.
type Watcher struct {
	path     string
	onChange func(context.Context, Bank) error
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
}

// NewWatcher watches path. The parent directory is watched so that files
// replaced by rename are picked up.
func NewWatcher(path string, onChange func(context.Context, Bank) error) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{
		path:     abs,
		onChange: onChange,
		debounce: defaultDebounce,
		watcher:  fw,
		logger:   slog.Default(),
	}, nil
}

// Run handles events until ctx is cancelled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var pending *time.Timer
	var fire <-chan time.Time
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			w.logger.Debug("question bank changed", "path", w.path, "op", ev.Op.String())
			if pending == nil {
				pending = time.NewTimer(w.debounce)
			} else {
				pending.Reset(w.debounce)
			}
			fire = pending.C

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("question bank watcher error", "error", err)

		case <-fire:
			fire = nil
			w.reload(ctx)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	b, err := Load(w.path)
	if err != nil {
		w.logger.Warn("question bank reload failed, keeping current questions", "path", w.path, "error", err)
		return
	}
	if err := w.onChange(ctx, b); err != nil {
		w.logger.Error("applying question bank failed", "path", w.path, "error", err)
		return
	}
	w.logger.Info("question bank reloaded", "path", w.path, "questions", len(b.Questions))
}
