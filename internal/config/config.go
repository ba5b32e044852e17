// Package config provides a manager that loads and watches the JSON contact mapping file.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/forgehomes/lead-intake/internal/crm"
)

// Conf represents the mapping file structure.
//
// Fields missing from the file keep their default value.
type Conf struct {
	StatusProperty *string `json:"statusProperty"`
	ComposeAddress *bool   `json:"composeAddress"`
	IncludeDetails *bool   `json:"includeDetails"`
}

func (c Conf) apply(m crm.Mapping) crm.Mapping {
	if c.StatusProperty != nil && *c.StatusProperty != "" {
		m.StatusProperty = *c.StatusProperty
	}
	if c.ComposeAddress != nil {
		m.ComposeAddress = *c.ComposeAddress
	}
	if c.IncludeDetails != nil {
		m.IncludeDetails = *c.IncludeDetails
	}
	return m
}

// Manager holds the current contact mapping.
type Manager struct {
	mapping    crm.Mapping
	lock       sync.RWMutex
	configPath string

	log *slog.Logger
}

type options struct {
	Logger *slog.Logger
}

// Options represents an optional function to override Manager default values.
type Options func(*options)

// New creates a new mapping manager for the file at path.
// An empty path keeps the default mapping forever.
func New(path string, args ...Options) *Manager {
	opts := options{
		Logger: slog.Default(),
	}

	for _, opt := range args {
		opt(&opts)
	}

	return &Manager{
		mapping:    crm.DefaultMapping(),
		configPath: path,
		log:        opts.Logger,
	}
}

// Load reads the mapping file and updates the internal state.
func (cm *Manager) Load() error {
	if cm.configPath == "" {
		return nil
	}

	file, err := os.Open(cm.configPath)
	if err != nil {
		return fmt.Errorf("opening mapping file: %w", err)
	}
	defer file.Close()

	var newConfig Conf
	decoder := json.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&newConfig); err != nil {
		return fmt.Errorf("decoding mapping JSON: %w", err)
	}

	m := newConfig.apply(crm.DefaultMapping())

	cm.lock.Lock()
	cm.mapping = m
	cm.lock.Unlock()

	cm.log.Info("Contact mapping loaded", "mapping", m)
	return nil
}

// Watch starts watching the mapping file for changes.
//
// It returns two channels: one for changes which result in a successful load and another for unrecoverable watcher errors.
// Without a mapping file, both channels stay open and idle until ctx is done.
func (cm *Manager) Watch(ctx context.Context) (changes <-chan struct{}, errors <-chan error, err error) {
	changesCh := make(chan struct{}, 1)
	errorsCh := make(chan error, 1)

	if cm.configPath == "" {
		go func() {
			<-ctx.Done()
			close(changesCh)
			close(errorsCh)
		}()
		return changesCh, errorsCh, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create watcher: %v", err)
	}

	configDir, _ := filepath.Split(cm.configPath)
	if configDir == "" {
		configDir = "."
	}
	if err := watcher.Add(configDir); err != nil {
		watcher.Close()
		return nil, nil, fmt.Errorf("failed to add directory %s to watcher: %v", configDir, err)
	}

	cm.log.Info("Watching mapping directory", "dir", configDir)

	if err := cm.Load(); err != nil {
		cm.log.Warn("Error loading initial mapping", "err", err)
	}

	go func() {
		defer close(changesCh)
		defer close(errorsCh)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				cm.log.Info("Mapping watcher stopped")
				return
			case event, ok := <-watcher.Events:
				if !ok {
					errorsCh <- fmt.Errorf("watcher events channel closed unexpectedly")
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}

				if filepath.Clean(event.Name) != filepath.Clean(cm.configPath) {
					continue
				}

				cm.log.Debug("Mapping file changed. Reloading...")
				if err := cm.Load(); err != nil {
					cm.log.Warn("Error reloading mapping", "err", err)
					continue
				}

				select {
				case changesCh <- struct{}{}:
				default:
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					errorsCh <- fmt.Errorf("watcher errors channel closed unexpectedly")
					return
				}
				cm.log.Warn("Watcher error", "err", err)
			}
		}
	}()

	return changesCh, errorsCh, nil
}

// Mapping returns the current contact mapping.
func (cm *Manager) Mapping() crm.Mapping {
	cm.lock.RLock()
	defer cm.lock.RUnlock()
	return cm.mapping
}
