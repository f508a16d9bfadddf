// Package services holds the client-side services of the AutoDash CLI: display
// theme, markdown, colour palettes, code diffs, clipboard, preferences and
// workspace persistence. Services register with a Registry and become usable
// after Initialize.
package services

import (
	"fmt"
	"sort"
	"sync"

	"autodash/pkg/dashtypes"
)

// Registry manages service registration and lifecycle.
type Registry struct {
	mu       sync.RWMutex
	services map[string]dashtypes.Service
}

// NewRegistry creates a new service registry with an empty service map.
func NewRegistry() *Registry {
	return &Registry{
		services: make(map[string]dashtypes.Service),
	}
}

// RegisterService adds a service to the registry, returning an error if already registered.
func (r *Registry) RegisterService(service dashtypes.Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := service.Name()
	if _, exists := r.services[name]; exists {
		return fmt.Errorf("service %s already registered", name)
	}

	r.services[name] = service
	return nil
}

// ReplaceService registers service, replacing any service with the same name.
func (r *Registry) ReplaceService(service dashtypes.Service) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[service.Name()] = service
}

// GetService retrieves a service by name, returning an error if not found.
func (r *Registry) GetService(name string) (dashtypes.Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	service, exists := r.services[name]
	if !exists {
		return nil, fmt.Errorf("service %s not found", name)
	}

	return service, nil
}

// InitializeAll initializes all registered services in name order.
func (r *Registry) InitializeAll() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := r.services[name].Initialize(); err != nil {
			return fmt.Errorf("failed to initialize service %s: %w", name, err)
		}
	}

	return nil
}

// GetAllServices returns a copy of all registered services.
func (r *Registry) GetAllServices() map[string]dashtypes.Service {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]dashtypes.Service)
	for name, service := range r.services {
		result[name] = service
	}

	return result
}

// lookup fetches a service of type T registered under name.
func lookup[T dashtypes.Service](r *Registry, name string) (T, error) {
	var zero T
	service, err := r.GetService(name)
	if err != nil {
		return zero, err
	}
	typed, ok := service.(T)
	if !ok {
		return zero, fmt.Errorf("service %s has unexpected type %T", name, service)
	}
	return typed, nil
}

// GlobalRegistry is the process-wide service registry.
var GlobalRegistry = NewRegistry()

// globalRegistryMu protects access to the GlobalRegistry variable itself
var globalRegistryMu sync.RWMutex

// GetGlobalRegistry returns the global service registry instance in a thread-safe manner
func GetGlobalRegistry() *Registry {
	globalRegistryMu.RLock()
	defer globalRegistryMu.RUnlock()
	return GlobalRegistry
}

// SetGlobalRegistry sets the global service registry instance in a thread-safe manner
func SetGlobalRegistry(registry *Registry) {
	globalRegistryMu.Lock()
	defer globalRegistryMu.Unlock()
	GlobalRegistry = registry
}

// GetGlobalThemeService returns the registered theme service.
func GetGlobalThemeService() (*ThemeService, error) {
	return lookup[*ThemeService](GetGlobalRegistry(), "theme")
}

// GetGlobalMarkdownService returns the registered markdown service.
func GetGlobalMarkdownService() (*MarkdownService, error) {
	return lookup[*MarkdownService](GetGlobalRegistry(), "markdown")
}

// GetGlobalPaletteService returns the registered palette service.
func GetGlobalPaletteService() (*PaletteService, error) {
	return lookup[*PaletteService](GetGlobalRegistry(), "palette")
}

// GetGlobalDiffService returns the registered diff service.
func GetGlobalDiffService() (*DiffService, error) {
	return lookup[*DiffService](GetGlobalRegistry(), "diff")
}

// GetGlobalClipboardService returns the registered clipboard service.
func GetGlobalClipboardService() (*ClipboardService, error) {
	return lookup[*ClipboardService](GetGlobalRegistry(), "clipboard")
}

// GetGlobalPreferencesService returns the registered preferences service.
func GetGlobalPreferencesService() (*PreferencesService, error) {
	return lookup[*PreferencesService](GetGlobalRegistry(), "preferences")
}

// GetGlobalWorkspaceService returns the registered workspace service.
func GetGlobalWorkspaceService() (*WorkspaceService, error) {
	return lookup[*WorkspaceService](GetGlobalRegistry(), "workspace")
}

// GetGlobalAutoCompleteService returns the registered completion service.
func GetGlobalAutoCompleteService() (*AutoCompleteService, error) {
	return lookup[*AutoCompleteService](GetGlobalRegistry(), "autocomplete")
}

// GetGlobalPromptColorService returns the registered prompt colour service.
func GetGlobalPromptColorService() (*PromptColorService, error) {
	return lookup[*PromptColorService](GetGlobalRegistry(), "prompt_color")
}

// GetGlobalEditorService returns the registered editor service.
func GetGlobalEditorService() (*EditorService, error) {
	return lookup[*EditorService](GetGlobalRegistry(), "editor")
}

// GetGlobalDebugTransportService returns the registered HTTP trace service.
func GetGlobalDebugTransportService() (*DebugTransportService, error) {
	return lookup[*DebugTransportService](GetGlobalRegistry(), "debug-transport")
}
