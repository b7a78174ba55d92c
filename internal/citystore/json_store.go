package citystore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bassista/weather_collector/internal/logger"
	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
)

// JSONStore keeps the city list in a JSON array file.
//
// Without a watcher every GetCityList reads the file. Once StartWatcher runs,
// reads are served from the last load result (list or error) and the file is
// reloaded when it changes on disk.
type JSONStore struct {
	path      string
	dir       string
	base      string
	validator *validator.Validate
	mu        sync.Mutex

	cacheMu  sync.RWMutex
	watching bool
	cached   []City
	cacheErr error
}

// NewJSONStore creates a store for the given JSON file path.
func NewJSONStore(path string) (*JSONStore, error) {
	if path == "" {
		return nil, errors.New("city list file path is required")
	}

	dir := filepath.Dir(path)
	if dir == "" {
		dir = "."
	}

	return &JSONStore{
		path:      path,
		dir:       dir,
		base:      filepath.Base(path),
		validator: validator.New(),
	}, nil
}

// Path returns the backing file path.
func (s *JSONStore) Path() string {
	return s.path
}

// GetCityList returns the cities in file order.
func (s *JSONStore) GetCityList(ctx context.Context) ([]City, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.cacheMu.RLock()
	if s.watching {
		list, err := cloneCities(s.cached), s.cacheErr
		s.cacheMu.RUnlock()
		return list, err
	}
	s.cacheMu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadUnlocked()
}

// AddCity appends name when it is not already listed.
func (s *JSONStore) AddCity(ctx context.Context, name string) ([]City, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	city := City{Name: name}
	if err := s.validator.Struct(city); err != nil {
		return nil, fmt.Errorf("validate city: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.loadUnlocked()
	if err != nil {
		return nil, err
	}
	if containsCity(list, name) >= 0 {
		logger.WithComponent("citystore").Debugf("%s already in list", name)
		return list, nil
	}

	list = append(list, city)
	if err := s.saveUnlocked(list); err != nil {
		return nil, err
	}
	logger.WithComponent("citystore").Debugf("%s added in list", name)
	return cloneCities(list), nil
}

// RemoveCity deletes name from the list or returns ErrCityNotFound.
func (s *JSONStore) RemoveCity(ctx context.Context, name string) ([]City, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.loadUnlocked()
	if err != nil {
		return nil, err
	}
	idx := containsCity(list, name)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrCityNotFound, name)
	}

	list = append(list[:idx], list[idx+1:]...)
	if err := s.saveUnlocked(list); err != nil {
		return nil, err
	}
	logger.WithComponent("citystore").Debugf("city %s is removed from city list", name)
	return cloneCities(list), nil
}

// loadUnlocked reads, classifies and validates the file (caller must hold mu).
func (s *JSONStore) loadUnlocked() ([]City, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("read city list: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	var cities []City
	decoder := json.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&cities); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJSONWrongStructure, err)
	}
	if decoder.More() {
		return nil, fmt.Errorf("%w: trailing data after array", ErrJSONWrongStructure)
	}
	if cities == nil {
		cities = []City{}
	}

	if err := s.validator.Struct(cityList{Cities: cities}); err != nil {
		return nil, fmt.Errorf("validate city list: %w", err)
	}
	return cities, nil
}

// saveUnlocked writes the list atomically (caller must hold mu).
func (s *JSONStore) saveUnlocked(list []City) error {
	payload, err := json.MarshalIndent(list, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal city list: %w", err)
	}

	tmpFile, err := os.CreateTemp(s.dir, s.base+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
	}()

	if _, err := tmpFile.Write(payload); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpFile.Name(), s.path); err != nil {
		return fmt.Errorf("replace city list file: %w", err)
	}

	s.setCache(cloneCities(list), nil)
	return nil
}

func (s *JSONStore) setCache(list []City, err error) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cached = list
	s.cacheErr = err
}

// reload refreshes the cached load result from disk.
func (s *JSONStore) reload() {
	s.mu.Lock()
	list, err := s.loadUnlocked()
	s.mu.Unlock()

	s.setCache(list, err)
	if err != nil {
		logger.WithComponent("citystore").Errorf("city list reload failed: %v", err)
		return
	}
	logger.WithComponent("citystore").Infof("city list reloaded: %d cities", len(list))
}

// StartWatcher primes the cache and keeps it in sync with the file.
// It watches the parent directory so temp+rename replacements are seen.
// Cancel ctx to stop the watcher.
func (s *JSONStore) StartWatcher(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch dir: %w", err)
	}

	s.reload()
	s.cacheMu.Lock()
	s.watching = true
	s.cacheMu.Unlock()

	go func() {
		defer watcher.Close()
		defer func() {
			s.cacheMu.Lock()
			s.watching = false
			s.cacheMu.Unlock()
		}()

		// Editors and atomic replaces emit bursts; coalesce them into one reload.
		var debounce *time.Timer
		schedule := func() {
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, s.reload)
		}

		for {
			select {
			case <-ctx.Done():
				if debounce != nil {
					debounce.Stop()
				}
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != s.base {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Chmod) != 0 {
					schedule()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.WithComponent("citystore").Warnf("watcher error: %v", err)
			}
		}
	}()

	return nil
}
