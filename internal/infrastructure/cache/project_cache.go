package cache

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/projexia/projexia/internal/core/domain"
)

const (
	defaultSize = 100
	defaultTTL  = 5 * time.Minute
)

// ProjectCache is a bounded LRU of denormalized project views whose entries
// expire after a fixed TTL. It is safe for concurrent use.
//
// Every Invalidate bumps a per-project generation. Loaders read Generation
// before hitting storage and pass it to AddIfCurrent, so a view loaded
// before a concurrent write is never stored.
type ProjectCache struct {
	lru *expirable.LRU[string, *domain.ProjectView]

	mu   sync.Mutex
	gens map[string]uint64
}

func NewProjectCache(size int, ttl time.Duration) *ProjectCache {
	if size <= 0 {
		size = defaultSize
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &ProjectCache{
		lru:  expirable.NewLRU[string, *domain.ProjectView](size, nil, ttl),
		gens: make(map[string]uint64),
	}
}

func (c *ProjectCache) Get(projectID string) (*domain.ProjectView, bool) {
	return c.lru.Get(projectID)
}

func (c *ProjectCache) Generation(projectID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[projectID]
}

// AddIfCurrent stores view unless projectID was invalidated after gen was read.
func (c *ProjectCache) AddIfCurrent(projectID string, view *domain.ProjectView, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[projectID] != gen {
		return false
	}
	c.lru.Add(projectID, view)
	return true
}

func (c *ProjectCache) Invalidate(projectID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[projectID]++
	c.lru.Remove(projectID)
}

// Len reports the number of live entries.
func (c *ProjectCache) Len() int {
	return c.lru.Len()
}

// Purge drops every entry and resets generations.
func (c *ProjectCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
	c.gens = make(map[string]uint64)
}
