package core

// resolver.go implements catalog lookup-or-create for product names.
//
// Lookup-then-create for one title is a critical section: concurrent callers
// for the same title share one in-flight call (singleflight), and the whole
// sequence runs under the resolver mutex so two titles never interleave
// their find/create pairs against the store. A store that still reports a
// duplicate title (another process won the race) is answered by reading the
// winner's entry back.
//
// Cached entries belong to a scope, normally an import job, so a price
// changed in the catalog is seen by the next job. Within one scope an entry
// lives until the scope is forgotten or the TTL runs out.

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// DefaultResolverCacheTTL is how long resolved titles stay cached.
const DefaultResolverCacheTTL = 15 * time.Minute

// Resolver resolves product titles to catalog entries, creating missing ones.
type Resolver struct {
	catalog Catalog
	group   singleflight.Group
	mu      sync.Mutex
	cache   *cache.Cache
}

// NewResolver creates a resolver over catalog. Resolved items are cached
// for ttl (DefaultResolverCacheTTL if zero).
func NewResolver(catalog Catalog, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = DefaultResolverCacheTTL
	}
	return &Resolver{
		catalog: catalog,
		cache:   cache.New(ttl, 2*ttl),
	}
}

// Resolve returns the catalog entry with exactly this title. When none
// exists a minimal entry (price 0) authored by op is created.
func (r *Resolver) Resolve(ctx context.Context, title string, op Operator) (CatalogItem, error) {
	return r.ResolveIn(ctx, "", title, op)
}

// ResolveIn is Resolve with the result cached under scope only.
func (r *Resolver) ResolveIn(ctx context.Context, scope, title string, op Operator) (CatalogItem, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return CatalogItem{}, fmt.Errorf("resolve catalog item: empty title")
	}

	key := cacheKey(scope, title)
	if v, ok := r.cache.Get(key); ok {
		return v.(CatalogItem), nil
	}

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.lookupOrCreate(ctx, title, op)
	})
	if err != nil {
		return CatalogItem{}, err
	}

	item := v.(CatalogItem)
	r.cache.Set(key, item, cache.DefaultExpiration)
	return item, nil
}

func cacheKey(scope, title string) string {
	return scope + "\x00" + title
}

func (r *Resolver) lookupOrCreate(ctx context.Context, title string, op Operator) (CatalogItem, error) {
	item, found, err := r.catalog.FindByTitle(ctx, title)
	if err != nil {
		return CatalogItem{}, fmt.Errorf("find catalog item %q: %w", title, err)
	}
	if found {
		return item, nil
	}

	item, err = r.catalog.CreateItem(ctx, title, op.ID)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, ErrDuplicateTitle) {
		return CatalogItem{}, fmt.Errorf("create catalog item %q: %w", title, err)
	}

	item, found, err = r.catalog.FindByTitle(ctx, title)
	if err != nil {
		return CatalogItem{}, fmt.Errorf("re-read catalog item %q: %w", title, err)
	}
	if !found {
		return CatalogItem{}, fmt.Errorf("catalog item %q reported duplicate but not found", title)
	}
	return item, nil
}

// Forget drops a cached title from every scope.
func (r *Resolver) Forget(title string) {
	suffix := "\x00" + strings.TrimSpace(title)
	for key := range r.cache.Items() {
		if strings.HasSuffix(key, suffix) {
			r.cache.Delete(key)
		}
	}
}

// ForgetScope drops every title cached under scope.
func (r *Resolver) ForgetScope(scope string) {
	prefix := scope + "\x00"
	for key := range r.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			r.cache.Delete(key)
		}
	}
}

// CachedCount returns the number of cached titles.
func (r *Resolver) CachedCount() int {
	return r.cache.ItemCount()
}
