package cert

import (
	"github.com/fsnotify/fsnotify"

	"github.com/TaIos/mod-tls/pkg/telemetry/logging"
)

// Watcher observes certificate and key files after startup. Compiled
// server contexts are immutable, so a change on disk cannot be picked
// up live; the watcher logs a warning so operators know a restart is
// needed to serve the renewed certificate.
type Watcher struct {
	fsw    *fsnotify.Watcher
	logger *logging.Logger
	done   chan struct{}
}

// NewWatcher starts a watcher over the given file paths. Paths that
// cannot be watched are logged and skipped.
func NewWatcher(paths []string, logger *logging.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:    fsw,
		logger: logger,
		done:   make(chan struct{}),
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := fsw.Add(p); err != nil {
			logger.Warn("cannot watch certificate file", "path", p, "error", err)
		}
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Remove) {
				w.logger.Warn("certificate file changed on disk, restart required to serve it",
					"path", ev.Name,
					"op", ev.Op.String(),
				)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("certificate watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
