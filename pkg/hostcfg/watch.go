package hostcfg

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/telemetrykit/cfgsync/pkg/types"
)

// Watch monitors a configuration file and merges it into st each time the
// file is written. It runs until ctx is cancelled.
//
// If a reload fails (e.g., invalid YAML/JSON), the error is logged and the
// previous config remains active — Watch does not call UpdateConfig.
func Watch(ctx context.Context, path string, st *Store) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	slog.Info("hostcfg: watching for changes", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Reload on write or create. Editors often save atomically —
			// rename a temp file over the target — which detaches the watch
			// from the old inode and surfaces as Rename or Remove; re-attach
			// to the new file before reloading.
			if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				if err := watcher.Add(path); err != nil {
					slog.Error("hostcfg: re-watch after replace failed",
						"path", path, "err", err)
					continue
				}
			} else if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := LoadFile(path)
			if err != nil {
				slog.Error("hostcfg: reload failed — keeping previous config",
					"path", path, "err", err)
				continue
			}

			slog.Info("hostcfg: reloaded", "path", path)
			st.UpdateConfig(cfg)

			// Re-add the file in case an atomic save replaced the inode.
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("hostcfg: watcher error", "err", err)
		}
	}
}

// LoadFile reads and parses the config file at path. The format is selected
// by extension: .json parses as JSON, anything else as YAML.
func LoadFile(path string) (types.ConfigSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("hostcfg: read file: %w", err)
	}

	var cfg types.ConfigSnapshot
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("hostcfg: parse json: %w", err)
		}
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("hostcfg: parse yaml: %w", err)
	}
	return cfg, nil
}
