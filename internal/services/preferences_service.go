package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/bytedance/sonic"

	"autodash/pkg/dashtypes"
)

// Preference keys.
const (
	PrefBannerDismissed = "banner_dismissed"
	PrefChatVisible     = "chat_visible"
	PrefViewMode        = "view_mode"
)

// View modes for the chart listing.
const (
	ViewGrid = "grid"
	ViewList = "list"
)

// MemoryStore is a process-scoped KVStore.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get returns the value for key.
func (m *MemoryStore) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

// Set stores value under key.
func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Delete removes key.
func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// FileStore is a KVStore persisted as a JSON object. Every write rewrites the
// file through a temporary file and rename.
type FileStore struct {
	path string

	mu     sync.Mutex
	values map[string]string
	loaded bool
}

// NewFileStore creates a store backed by path. The file is read lazily.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) loadLocked() error {
	if f.loaded {
		return nil
	}
	f.values = make(map[string]string)
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			f.loaded = true
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", f.path, err)
	}
	if len(data) > 0 {
		if err := sonic.Unmarshal(data, &f.values); err != nil {
			return fmt.Errorf("failed to parse %s: %w", f.path, err)
		}
	}
	f.loaded = true
	return nil
}

// Get returns the value for key. Read failures are treated as absent.
func (f *FileStore) Get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.loadLocked(); err != nil {
		return "", false
	}
	v, ok := f.values[key]
	return v, ok
}

// Set stores value under key and persists the file.
func (f *FileStore) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.loadLocked(); err != nil {
		return err
	}
	f.values[key] = value
	return f.flushLocked()
}

// Delete removes key and persists the file.
func (f *FileStore) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.loadLocked(); err != nil {
		return err
	}
	delete(f.values, key)
	return f.flushLocked()
}

// Keys returns the stored keys in order.
func (f *FileStore) Keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.loadLocked(); err != nil {
		return nil
	}
	keys := make([]string, 0, len(f.values))
	for k := range f.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (f *FileStore) flushLocked() error {
	data, err := sonic.ConfigStd.MarshalIndent(f.values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	return writeFileAtomic(f.path, data)
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// PreferencesService exposes the user's UI preferences. Banner dismissal lives
// in session scope; chat visibility and view mode persist locally.
type PreferencesService struct {
	initialized bool
	session     dashtypes.KVStore
	local       dashtypes.KVStore
}

// NewPreferencesService creates a service over the two stores.
func NewPreferencesService(session, local dashtypes.KVStore) *PreferencesService {
	return &PreferencesService{session: session, local: local}
}

// Name returns the service name "preferences" for registration.
func (p *PreferencesService) Name() string {
	return "preferences"
}

// Initialize sets up the PreferencesService for operation.
func (p *PreferencesService) Initialize() error {
	if p.session == nil {
		p.session = NewMemoryStore()
	}
	if p.local == nil {
		p.local = NewMemoryStore()
	}
	p.initialized = true
	return nil
}

// BannerDismissed reports whether the status banner was dismissed this session.
func (p *PreferencesService) BannerDismissed() bool {
	v, _ := p.session.Get(PrefBannerDismissed)
	return v == "true"
}

// DismissBanner records that the banner was dismissed.
func (p *PreferencesService) DismissBanner() error {
	return p.session.Set(PrefBannerDismissed, "true")
}

// ChatVisible reports whether the chat transcript is shown. Defaults to true.
func (p *PreferencesService) ChatVisible() bool {
	v, ok := p.local.Get(PrefChatVisible)
	if !ok {
		return true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return true
	}
	return b
}

// SetChatVisible stores chat visibility.
func (p *PreferencesService) SetChatVisible(visible bool) error {
	return p.local.Set(PrefChatVisible, strconv.FormatBool(visible))
}

// ViewMode returns grid or list. Defaults to grid.
func (p *PreferencesService) ViewMode() string {
	v, ok := p.local.Get(PrefViewMode)
	if !ok || (v != ViewGrid && v != ViewList) {
		return ViewGrid
	}
	return v
}

// SetViewMode stores the chart listing mode.
func (p *PreferencesService) SetViewMode(mode string) error {
	if mode != ViewGrid && mode != ViewList {
		return fmt.Errorf("invalid view mode %q: expected %s or %s", mode, ViewGrid, ViewList)
	}
	return p.local.Set(PrefViewMode, mode)
}

// Reset clears every preference.
func (p *PreferencesService) Reset() error {
	if err := p.session.Delete(PrefBannerDismissed); err != nil {
		return err
	}
	if err := p.local.Delete(PrefChatVisible); err != nil {
		return err
	}
	return p.local.Delete(PrefViewMode)
}

func init() {
	if err := GlobalRegistry.RegisterService(NewPreferencesService(nil, nil)); err != nil {
		panic(fmt.Sprintf("failed to register preferences service: %v", err))
	}
}
