// Package watch finds audio files in a directory and reports new ones as
// they appear.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"PlayDeck/logger"

	"github.com/fsnotify/fsnotify"
)

const audioExt = ".mp3"

// DefaultSettle is how long a file must go without writes before it is reported.
const DefaultSettle = 200 * time.Millisecond

func isAudio(name string) bool {
	return strings.EqualFold(filepath.Ext(name), audioExt)
}

// Scan lists the audio files directly inside dir, sorted by name.
func Scan(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.Type().IsRegular() && isAudio(e.Name()) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Watch calls found with batches of audio files created in dir until ctx is
// done. A file is reported once, after it has been quiet for settle.
func Watch(ctx context.Context, dir string, settle time.Duration, found func([]string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	logger.Info("watching for new tracks", logger.String("dir", dir))

	pending := make(map[string]time.Time)
	seen := make(map[string]bool)
	ticker := time.NewTicker(settle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 && isAudio(event.Name) && !seen[event.Name] {
				pending[event.Name] = time.Now()
			}

		case <-ticker.C:
			now := time.Now()
			var ready []string
			for path, last := range pending {
				if now.Sub(last) < settle {
					continue
				}
				delete(pending, path)
				seen[path] = true
				ready = append(ready, path)
			}
			if len(ready) > 0 {
				sort.Strings(ready)
				found(ready)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", logger.ErrorField(err))
		}
	}
}
