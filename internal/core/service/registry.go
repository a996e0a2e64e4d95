package service

import (
	"sync"

	"github.com/olusolaa/cost-parker/internal/core/domain"
	"github.com/olusolaa/cost-parker/internal/core/ports"
	"github.com/olusolaa/cost-parker/internal/errors"
)

// DriverRegistry holds the drivers of one project, keyed by kind and
// identifier. Iteration follows registration order.
type DriverRegistry struct {
	mu      sync.RWMutex
	order   []string
	drivers map[string]ports.ResourceDriver
}

func NewDriverRegistry() *DriverRegistry {
	return &DriverRegistry{
		drivers: make(map[string]ports.ResourceDriver),
	}
}

func (r *DriverRegistry) Register(driver ports.ResourceDriver) error {
	if driver == nil {
		return errors.New(errors.CodeInternal, "attempted to register nil resource driver")
	}
	kind := driver.Kind()
	if !kind.Known() {
		return errors.Newf(errors.CodeInternal, "resource driver kind '%s' is not supported", kind)
	}
	id := driver.Identifier()
	if id == "" {
		return errors.Newf(errors.CodeConfigValidation, "%s driver identifier cannot be empty", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := domain.SnapshotKey(kind, id)
	if _, exists := r.drivers[key]; exists {
		return errors.Newf(errors.CodeConfigValidation, "resource '%s' is configured more than once", key)
	}
	r.drivers[key] = driver
	r.order = append(r.order, key)
	return nil
}

func (r *DriverRegistry) Get(kind domain.ResourceKind, identifier string) (ports.ResourceDriver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	driver, exists := r.drivers[domain.SnapshotKey(kind, identifier)]
	return driver, exists
}

// Drivers returns every registered driver in registration order.
func (r *DriverRegistry) Drivers() []ports.ResourceDriver {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ports.ResourceDriver, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.drivers[key])
	}
	return out
}

func (r *DriverRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
