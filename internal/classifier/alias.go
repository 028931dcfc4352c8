package classifier

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// AliasMap maps user-facing package names to their canonical pkgbase.
// An absent or empty map is the identity mapping; canonical names map
// to themselves, so applying the map twice is a no-op.
type AliasMap struct {
	mu      sync.RWMutex
	path    string
	entries map[string]string

	watcher *fsnotify.Watcher
}

// LoadAliasMap reads a JSON object of name -> canonical-name from path.
// A missing file is not an error and yields the identity mapping.
func LoadAliasMap(path string) (*AliasMap, error) {
	m := &AliasMap{path: path, entries: map[string]string{}}
	if path == "" {
		return m, nil
	}
	if err := m.reload(); err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, err
	}
	return m, nil
}

// Canonical resolves a package name through the map; unknown names are
// returned unchanged.
func (m *AliasMap) Canonical(pkg string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if canonical, ok := m.entries[pkg]; ok {
		return canonical
	}
	return pkg
}

func (m *AliasMap) reload() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return err
	}
	entries := map[string]string{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	m.mu.Lock()
	m.entries = entries
	m.mu.Unlock()
	return nil
}

// Watch reloads the map whenever the file is written. Errors during a
// reload keep the previous entries in place.
func (m *AliasMap) Watch() error {
	if m.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(m.path); err != nil {
		watcher.Close()
		return err
	}
	m.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := m.reload(); err != nil {
					log.Warn().Err(err).Str("path", m.path).
						Msg("alias map reload failed, keeping previous entries")
					continue
				}
				log.Info().Str("path", m.path).Msg("alias map reloaded")
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("alias map watcher error")
			}
		}
	}()

	return nil
}

// Close stops the watcher, if one was started.
func (m *AliasMap) Close() error {
	if m.watcher == nil {
		return nil
	}
	return m.watcher.Close()
}
