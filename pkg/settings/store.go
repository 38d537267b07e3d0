/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/carverauto/sidecast/pkg/logger"
	"github.com/gofrs/flock"
)

// FileName is the settings file inside the user config directory.
const FileName = "sidecast-settings.json"

// DefaultPath returns <user config dir>/sidecast/sidecast-settings.json.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}

	return filepath.Join(dir, "sidecast", FileName), nil
}

type fileStamp struct {
	exists  bool
	size    int64
	modTime time.Time
}

// Store holds the current settings and persists changes to a JSON file.
// Writers in other processes are serialized through a lock file next to it,
// and Snapshot re-reads the file whenever it changed on disk.
type Store struct {
	path   string
	lock   *flock.Flock
	logger logger.Logger

	mu      sync.Mutex
	current Settings
	stamp   fileStamp
}

// Open loads the store at path. A missing file yields the defaults; the
// file is only created by the first write. A file that does not parse also
// yields the defaults and is replaced on the next write.
func Open(path string, log logger.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create settings dir: %w", err)
	}

	s := &Store{
		path:    path,
		lock:    flock.New(path + ".lock"),
		logger:  logger.OrNop(log),
		current: Defaults(),
	}

	err := s.withSharedLock(s.reloadLocked)

	switch {
	case errors.Is(err, ErrCorruptFile):
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Ignoring unreadable settings file, using defaults")
	case err != nil:
		return nil, err
	}

	return s, nil
}

// NewMemory returns a store that never touches disk.
func NewMemory(initial Settings) *Store {
	return &Store{current: initial, logger: logger.Nop()}
}

// Path returns the backing file, or "" for an in-memory store.
func (s *Store) Path() string {
	return s.path
}

// Snapshot returns the current settings, picking up external edits first.
// A file that fails to parse keeps the last good settings.
func (s *Store) Snapshot() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return s.current
	}

	stamp, err := s.statFile()
	if err == nil && stamp == s.stamp {
		return s.current
	}

	if err := s.withSharedLock(s.reloadLocked); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Keeping previous settings")
	}

	return s.current
}

// Get returns the value stored under key.
func (s *Store) Get(key string) (any, error) {
	snap := s.Snapshot()

	f, ok := fieldByKey(&snap, key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}

	return f.Interface(), nil
}

// All returns every key with its current value.
func (s *Store) All() map[string]any {
	snap := s.Snapshot()
	v := reflect.ValueOf(snap)
	out := make(map[string]any, v.NumField())

	for i, key := range Keys() {
		out[key] = v.Field(i).Interface()
	}

	return out
}

// Set validates value against the key's type and persists it. Strings are
// accepted for numeric and boolean keys and parsed.
func (s *Store) Set(key string, value any) error {
	return s.update(func(next *Settings) error {
		f, ok := fieldByKey(next, key)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownKey, key)
		}

		return assign(f, key, value)
	})
}

// Reset restores the defaults.
func (s *Store) Reset() error {
	return s.update(func(next *Settings) error {
		*next = Defaults()

		return nil
	})
}

func (s *Store) update(mutate func(*Settings) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		next := s.current
		if err := mutate(&next); err != nil {
			return err
		}

		s.current = next

		return nil
	}

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("acquire settings lock: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	// Start from what is on disk so a concurrent writer's change survives.
	// An unreadable file is overwritten starting from the last good settings.
	err := s.reloadLocked()

	switch {
	case errors.Is(err, ErrCorruptFile):
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Overwriting unreadable settings file")
	case err != nil:
		return err
	}

	next := s.current
	if err := mutate(&next); err != nil {
		return err
	}

	if err := s.writeLocked(next); err != nil {
		return err
	}

	s.current = next

	stamp, err := s.statFile()
	if err != nil {
		return err
	}

	s.stamp = stamp

	return nil
}

func (s *Store) withSharedLock(fn func() error) error {
	if err := s.lock.RLock(); err != nil {
		return fmt.Errorf("acquire settings lock: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	return fn()
}

func (s *Store) reloadLocked() error {
	stamp, err := s.statFile()
	if err != nil {
		return err
	}

	if !stamp.exists {
		s.current = Defaults()
		s.stamp = stamp

		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}

	next := Defaults()
	if err := json.Unmarshal(data, &next); err != nil {
		// Remember the stamp so an unchanged bad file is not reparsed.
		s.stamp = stamp

		return fmt.Errorf("%w: %s: %w", ErrCorruptFile, s.path, err)
	}

	s.current = next
	s.stamp = stamp

	s.logger.Debug().Str("path", s.path).Msg("Settings loaded")

	return nil
}

func (s *Store) writeLocked(next Settings) error {
	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".settings-*.json")
	if err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	tmpName := tmp.Name()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)

		return fmt.Errorf("write settings: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("write settings: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("replace settings: %w", err)
	}

	return nil
}

func (s *Store) statFile() (fileStamp, error) {
	info, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return fileStamp{}, nil
	}

	if err != nil {
		return fileStamp{}, fmt.Errorf("stat settings: %w", err)
	}

	return fileStamp{exists: true, size: info.Size(), modTime: info.ModTime()}, nil
}

// Keys lists every settings key in declaration order.
func Keys() []string {
	t := reflect.TypeOf(Settings{})
	keys := make([]string, t.NumField())

	for i := range keys {
		keys[i] = jsonName(t.Field(i))
	}

	return keys
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")

	return name
}

func fieldByKey(s *Settings, key string) (reflect.Value, bool) {
	v := reflect.ValueOf(s).Elem()
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		if jsonName(t.Field(i)) == key {
			return v.Field(i), true
		}
	}

	return reflect.Value{}, false
}

func assign(f reflect.Value, key string, value any) error {
	switch f.Kind() {
	case reflect.String:
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: %s expects a string, got %T", ErrInvalidValue, key, value)
		}

		f.SetString(str)

	case reflect.Int:
		n, err := toInt(value)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidValue, key, err)
		}

		f.SetInt(n)

	case reflect.Bool:
		b, err := toBool(value)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidValue, key, err)
		}

		f.SetBool(b)

	default:
		return fmt.Errorf("%w: %s has unsupported kind %s", ErrInvalidValue, key, f.Kind())
	}

	return nil
}

var (
	errNotInteger = errors.New("expects an integer")
	errNotBool    = errors.New("expects a boolean")
)

func toInt(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, errNotInteger
		}

		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, errNotInteger
		}

		return n, nil
	default:
		return 0, errNotInteger
	}
}

func toBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, errNotBool
		}

		return b, nil
	default:
		return false, errNotBool
	}
}
