package backend

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/gogpu/gopromax/compute"
)

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)

	// preferred lists the backends Default tries before all others.
	preferred = []string{BackendWGPU}
)

// Register makes factory available under name, replacing any factory
// registered before. Backend packages call it from init.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = factory
}

// Unregister removes name from the registry.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// Available returns the sorted names of registered backends.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	return slices.Sorted(maps.Keys(factories))
}

// IsRegistered reports whether a factory is registered under name.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[name]
	return ok
}

// Open opens a device on the named backend.
func Open(name string) (compute.Device, error) {
	registryMu.RLock()
	factory, ok := factories[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, name)
	}
	dev, err := factory()
	if err != nil {
		return nil, fmt.Errorf("backend %s: %w", name, err)
	}
	return dev, nil
}

// Default opens a device on the best available backend. Backends in the
// priority list are tried first, then the remaining ones by name. The
// errors of every failed backend are joined.
func Default() (compute.Device, error) {
	order := make([]string, 0, len(preferred))
	for _, name := range preferred {
		if IsRegistered(name) {
			order = append(order, name)
		}
	}
	for _, name := range Available() {
		if !slices.Contains(order, name) {
			order = append(order, name)
		}
	}
	if len(order) == 0 {
		return nil, ErrBackendNotAvailable
	}

	var errs []error
	for _, name := range order {
		dev, err := Open(name)
		if err == nil {
			return dev, nil
		}
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("%w: %w", ErrBackendNotAvailable, errors.Join(errs...))
}
