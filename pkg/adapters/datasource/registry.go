package datasource

import (
	"sync"

	"github.com/queryline-io/queryline-engine/pkg/models"
)

// AdapterInfo describes a registered engine for discovery endpoints.
type AdapterInfo struct {
	Kind        models.EngineKind `json:"kind"`
	DisplayName string            `json:"display_name"`
	Description string            `json:"description"`
}

// Registration pairs an engine's info with its factory.
type Registration struct {
	Info    AdapterInfo
	Factory Factory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[models.EngineKind]Registration)
)

// Register is called by each engine package's init function. Thread-safe
// for concurrent init calls.
func Register(reg Registration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Kind] = reg
}

// GetFactory returns the factory for an engine kind, or nil when the kind
// is not registered.
func GetFactory(kind models.EngineKind) Factory {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if reg, ok := registry[kind]; ok {
		return reg.Factory
	}
	return nil
}

// RegisteredAdapters returns info for all registered engines.
func RegisteredAdapters() []AdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]AdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	return result
}

// IsRegistered reports whether an engine kind is available.
func IsRegistered(kind models.EngineKind) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[kind]
	return ok
}
