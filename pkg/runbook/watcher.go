package runbook

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reloads the Table whenever dir changes and invokes onReload with
// the new table. Opt-in, local-dev only (RUNBOOK_WATCH=false by default):
// production still calls Load once at process start. Swaps the table
// reference atomically via onReload; never mutates a Runbook in place.
func Watch(ctx context.Context, dir string, isKnownAction IsKnownActionFunc, log *zap.Logger, onReload func(*Table)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				table, err := Load(dir, isKnownAction)
				if err != nil {
					log.Warn("runbook hot reload failed, keeping previous table", zap.Error(err))
					continue
				}
				onReload(table)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("runbook watcher error", zap.Error(err))
			}
		}
	}()

	return nil
}
