package jobs

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Cache shares one Registry per parent resource between the components that
// observe it.
type Cache struct {
	logger *slog.Logger

	mu         sync.Mutex
	registries map[uuid.UUID]*Registry
}

// NewCache creates an empty cache.
func NewCache(logger *slog.Logger) *Cache {
	return &Cache{logger: logger, registries: make(map[uuid.UUID]*Registry)}
}

// Registry returns the registry for parentID, creating it on first use.
func (c *Cache) Registry(parentID uuid.UUID) *Registry {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.registries[parentID]
	if !ok {
		r = NewRegistry(parentID, c.logger)
		c.registries[parentID] = r
	}
	return r
}

// Evict closes and forgets the registry for parentID.
func (c *Cache) Evict(parentID uuid.UUID) {
	c.mu.Lock()
	r, ok := c.registries[parentID]
	delete(c.registries, parentID)
	c.mu.Unlock()
	if ok {
		r.Close()
	}
}
