package templates

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// debounce window: editors emit bursts of write events per save.
const watchDebounce = 500 * time.Millisecond

// Watch reloads the store when its domain config or any template library
// changes on disk. Blocks until ctx is cancelled; run it in a goroutine.
// A failed reload logs and keeps the active generation serving.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	paths := append([]string{s.configPath}, s.libraryPaths...)
	for _, p := range paths {
		if err := watcher.Add(p); err != nil {
			return err
		}
	}

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			// Re-add renamed paths: many editors replace files on save.
			if ev.Has(fsnotify.Rename) {
				_ = watcher.Add(ev.Name)
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
				timerC = timer.C
			} else {
				timer.Reset(watchDebounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			if err := s.Reload(ctx); err != nil {
				s.logger.Error("Template reload failed, keeping prior generation",
					zap.String("domain", s.domainName), zap.Error(err))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("Template watcher error", zap.Error(err))
		}
	}
}
