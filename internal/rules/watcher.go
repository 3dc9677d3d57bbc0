package rules

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/droidagent/slack-gateway-go/internal/logger"
	"github.com/droidagent/slack-gateway-go/internal/metrics"
)

// debounce absorbs the bursts of events editors and atomic-save tools emit
// for a single logical file change.
const debounce = 500 * time.Millisecond

// Watch reloads the store whenever its rule file changes on disk. It watches
// the parent directory because most editors replace the file rather than
// writing it in place. Watch blocks until ctx is canceled and is intended to
// run in its own goroutine; a reload failure keeps the previous set active.
func Watch(ctx context.Context, store *Store, m *metrics.Metrics, log *logger.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(store.Path())
	if err := watcher.Add(dir); err != nil {
		return err
	}

	target := filepath.Clean(store.Path())
	var timer *time.Timer
	pending := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(debounce, func() {
					select {
					case pending <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(debounce)
			}

		case <-pending:
			timer = nil
			if err := store.Reload(); err != nil {
				m.RecordRuleReload("error")
				log.WithError(err).Error("Rule reload failed; previous set stays active")
				continue
			}
			summary := store.Current().Summarize()
			m.RecordRuleReload("success")
			m.SetRulesLoaded(summary.Enabled)
			log.WithField("enabled", summary.Enabled).
				WithField("disabled", summary.Disabled).
				Info("Rule set reloaded")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("Rule file watcher error")
		}
	}
}
