package session

import (
	"context"
	"log/slog"
	"time"
)

// Watcher runs CheckExpiry on a fixed interval until its context ends.
type Watcher struct {
	store    *Store
	interval time.Duration
	logger   *slog.Logger
	onStatus func(ExpiryStatus)
}

// NewWatcher creates a watcher for store. onStatus may be nil.
func NewWatcher(store *Store, interval time.Duration, logger *slog.Logger, onStatus func(ExpiryStatus)) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{store: store, interval: interval, logger: logger, onStatus: onStatus}
}

// Run checks once immediately, then every interval. It returns when ctx is
// cancelled or the session has ended.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	if w.tick() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.tick() {
				return
			}
		}
	}
}

// tick reports whether the session is over.
func (w *Watcher) tick() bool {
	st := w.store.CheckExpiry(w.store.now())
	if w.onStatus != nil {
		w.onStatus(st)
	}
	if st.Kind == ExpiryExpired || !w.store.Authenticated() {
		w.logger.Info("expiry watch finished", "state", w.store.State())
		return true
	}
	return false
}
