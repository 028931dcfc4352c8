package api

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/triagebot/internal/metadata"
)

type maintainerResult struct {
	Pkgbase     string   `json:"pkgbase"`
	Maintainers []string `json:"maintainers"`
}

// handleMaintainers answers /maintainers?q=pkg1,pkg2 with the resolved
// maintainers per package. Results are cached briefly since callers
// tend to poll; unknown packages resolve to an empty list.
func (s *Server) handleMaintainers(c echo.Context) error {
	var packages []string
	if q := c.QueryParam("q"); q != "" {
		packages = strings.Split(q, ",")
	}

	results := make([]maintainerResult, 0, len(packages))
	for _, pkgbase := range packages {
		maintainers, ok := s.maintainerCache.get(pkgbase)
		if !ok {
			resolved, err := s.store.Maintainers(pkgbase)
			if err != nil && !errors.Is(err, metadata.ErrNotFound) {
				return c.JSON(http.StatusInternalServerError, map[string]string{
					"error": "maintainer lookup failed",
				})
			}
			maintainers = resolved
			s.maintainerCache.set(pkgbase, maintainers)
		}
		if maintainers == nil {
			maintainers = []string{}
		}
		results = append(results, maintainerResult{
			Pkgbase:     pkgbase,
			Maintainers: maintainers,
		})
	}

	c.Response().Header().Set("Cache-Control", "public, max-age=60")
	return c.JSON(http.StatusOK, map[string]interface{}{
		"result": results,
	})
}

// ttlCache is a tiny expiring map for maintainer lookups. There is no
// TTL cache in the dependency set and the need here is a single
// endpoint, so a mutex and a timestamp per entry suffice.
type ttlCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]ttlEntry
}

type ttlEntry struct {
	value   []string
	expires time.Time
}

func newTTLCache(ttl time.Duration) *ttlCache {
	return &ttlCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]ttlEntry),
	}
}

func (c *ttlCache) get(key string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok || c.now().After(entry.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.value, true
}

func (c *ttlCache) set(key string, value []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = ttlEntry{value: value, expires: c.now().Add(c.ttl)}
}
