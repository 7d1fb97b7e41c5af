package ledger

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mvoigt/decledger/internal/config"
)

// Reloader watches the config file and hot-applies the reloadable
// parameters when it changes.
type Reloader struct {
	watcher *fsnotify.Watcher
	ledger  *Ledger
	path    string
}

// NewReloader creates a file watcher for the config path. A missing
// file is not an error; the reloader simply stays idle.
func NewReloader(l *Ledger, path string) (*Reloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := watcher.Add(path); err != nil {
				watcher.Close()
				return nil, fmt.Errorf("watch %q: %w", path, err)
			}
		}
	}
	return &Reloader{watcher: watcher, ledger: l, path: path}, nil
}

// Run watches for config changes and reapplies the configuration.
// Blocks until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	// Debounce: wait 500ms after the last write before reloading.
	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, r.reload)
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "config watcher error: %v\n", err)
		}
	}
}

func (r *Reloader) reload() {
	cfg, err := config.Load(r.path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hot-reload failed: %v\n", err)
		return
	}
	r.ledger.ApplyConfig(cfg)
	fmt.Fprintf(os.Stderr, "hot-reload: configuration reapplied\n")
}
