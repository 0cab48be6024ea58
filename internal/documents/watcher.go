package documents

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 250 * time.Millisecond

// Watcher reports changes made to the documents directory outside the API,
// such as files copied in by an operator.
type Watcher struct {
	dir      string
	debounce time.Duration
	onChange func(ctx context.Context)
}

// NewWatcher calls onChange once per burst of changes to supported files in dir.
func NewWatcher(dir string, onChange func(ctx context.Context)) *Watcher {
	return &Watcher{dir: dir, debounce: defaultDebounce, onChange: onChange}
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fs watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	slog.Info("watching documents directory", "dir", w.dir)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(event.Name)
			if ValidateName(name) != nil {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			slog.Debug("document changed on disk", "filename", name, "op", event.Op.String())
			timer.Reset(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("documents watcher error", "error", err)
		case <-timer.C:
			slog.Info("documents directory changed, refreshing knowledge")
			w.onChange(ctx)
		}
	}
}
