package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// ChangeFunc is called with the key whose value changed on disk
type ChangeFunc func(key string)

// FileStore keeps one JSON document per origin. Every operation reads the
// document from disk so writes from sibling processes are observed, and
// writes replace it atomically with a rename.
type FileStore struct {
	mu     sync.Mutex
	dir    string
	path   string
	closed bool

	watchMu  sync.Mutex
	watchers []*fsnotify.Watcher
}

var _ Storage = (*FileStore)(nil)

// NewFileStore creates a file store for origin under dir
func NewFileStore(dir, origin string) (*FileStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, ".ticketdesk", "storage")
	}
	if err := ValidateOrigin(origin); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &FileStore{
		dir:  dir,
		path: filepath.Join(dir, origin+".json"),
	}, nil
}

// Path returns the document path
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", false, ErrClosed
	}

	data, err := s.readLocked()
	if err != nil {
		return "", false, err
	}
	v, ok := data[key]
	return v, ok, nil
}

func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	data, err := s.readLocked()
	if err != nil {
		return err
	}
	data[key] = value
	return s.writeLocked(data)
}

func (s *FileStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	data, err := s.readLocked()
	if err != nil {
		return err
	}
	if _, ok := data[key]; !ok {
		return nil
	}
	delete(data, key)
	return s.writeLocked(data)
}

// Close stops all watchers
func (s *FileStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	var errs []error
	for _, w := range s.watchers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.watchers = nil
	return errors.Join(errs...)
}

// Watch calls fn for every key whose value changes on disk until ctx is
// done or the store is closed. Changes made through this store are
// reported too.
func (s *FileStore) Watch(ctx context.Context, fn ChangeFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch storage directory: %w", err)
	}

	s.watchMu.Lock()
	s.watchers = append(s.watchers, watcher)
	s.watchMu.Unlock()

	s.mu.Lock()
	previous, err := s.readLocked()
	s.mu.Unlock()
	if err != nil {
		previous = map[string]string{}
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != s.path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}

				s.mu.Lock()
				current, err := s.readLocked()
				s.mu.Unlock()
				if err != nil {
					log.Warn().Err(err).Str("path", s.path).Msg("Failed to reload storage after change")
					continue
				}
				for _, key := range changedKeys(previous, current) {
					fn(key)
				}
				previous = current
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Str("path", s.path).Msg("Storage watcher error")
			}
		}
	}()

	return nil
}

func (s *FileStore) readLocked() (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read storage: %w", err)
	}
	data := map[string]string{}
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse storage: %w", err)
	}
	return data, nil
}

func (s *FileStore) writeLocked(data map[string]string) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal storage: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".storage-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write storage: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace storage: %w", err)
	}
	return nil
}

func changedKeys(before, after map[string]string) []string {
	var keys []string
	for k, v := range after {
		if old, ok := before[k]; !ok || old != v {
			keys = append(keys, k)
		}
	}
	for k := range before {
		if _, ok := after[k]; !ok {
			keys = append(keys, k)
		}
	}
	return keys
}
