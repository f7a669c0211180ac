// Package schema provides cached access to datasource schema descriptors.
// Introspection is expensive on large databases, so descriptors are cached
// per connection profile with a TTL and explicit invalidation.
package schema

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/queryline-io/queryline-engine/pkg/apperrors"
	"github.com/queryline-io/queryline-engine/pkg/models"
)

// DefaultTTL is how long a cached descriptor stays fresh.
const DefaultTTL = 5 * time.Minute

// Introspector fetches the live schema for a connection profile. The
// datasource connection manager satisfies this.
type Introspector interface {
	IntrospectSchema(ctx context.Context, profile *models.ConnectionProfile) (*models.SchemaDescriptor, error)
}

type cacheEntry struct {
	descriptor *models.SchemaDescriptor
	fetchedAt  time.Time
}

// Provider serves schema descriptors from a per-profile cache, falling back
// to live introspection on miss or expiry.
type Provider struct {
	introspector Introspector
	ttl          time.Duration
	logger       *zap.Logger

	mu    sync.RWMutex
	cache map[string]*cacheEntry

	// fetchMu serializes introspection per profile so concurrent misses do
	// not hammer the datasource.
	fetchMuMu sync.Mutex
	fetchMu   map[string]*sync.Mutex
}

// NewProvider creates a schema provider. A ttl of zero uses DefaultTTL.
func NewProvider(introspector Introspector, ttl time.Duration, logger *zap.Logger) *Provider {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Provider{
		introspector: introspector,
		ttl:          ttl,
		logger:       logger.Named("schema"),
		cache:        make(map[string]*cacheEntry),
		fetchMu:      make(map[string]*sync.Mutex),
	}
}

// Get returns the schema descriptor for the profile, from cache when fresh.
// Callers receive a deep copy; mutating it cannot poison the cache. A
// descriptor with zero tables is an error: translation cannot proceed
// without table knowledge. Partial descriptors (some tables missing column
// detail) are served as-is.
func (p *Provider) Get(ctx context.Context, profile *models.ConnectionProfile) (*models.SchemaDescriptor, error) {
	key := profile.Fingerprint()

	if descriptor := p.cached(key); descriptor != nil {
		return descriptor.Clone(), nil
	}

	lock := p.profileLock(key)
	lock.Lock()
	defer lock.Unlock()

	// Another goroutine may have filled the cache while we waited.
	if descriptor := p.cached(key); descriptor != nil {
		return descriptor.Clone(), nil
	}

	started := time.Now()
	descriptor, err := p.introspector.IntrospectSchema(ctx, profile)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindSchemaUnavailable, "schema",
			"introspection failed", err)
	}
	if descriptor == nil || descriptor.IsEmpty() {
		return nil, apperrors.New(apperrors.KindSchemaUnavailable, "schema",
			"introspection returned no tables")
	}

	p.mu.Lock()
	p.cache[key] = &cacheEntry{descriptor: descriptor, fetchedAt: time.Now()}
	p.mu.Unlock()

	p.logger.Info("schema introspected",
		zap.String("profile", key),
		zap.Int("tables", len(descriptor.Tables)),
		zap.Duration("elapsed", time.Since(started)))

	return descriptor.Clone(), nil
}

// Invalidate drops the cached descriptor for the profile. The next Get
// introspects live.
func (p *Provider) Invalidate(profile *models.ConnectionProfile) {
	key := profile.Fingerprint()
	p.mu.Lock()
	delete(p.cache, key)
	p.mu.Unlock()
	p.logger.Debug("schema cache invalidated", zap.String("profile", key))
}

// InvalidateAll drops every cached descriptor.
func (p *Provider) InvalidateAll() {
	p.mu.Lock()
	p.cache = make(map[string]*cacheEntry)
	p.mu.Unlock()
}

func (p *Provider) cached(key string) *models.SchemaDescriptor {
	p.mu.RLock()
	defer p.mu.RUnlock()
	entry, ok := p.cache[key]
	if !ok || time.Since(entry.fetchedAt) > p.ttl {
		return nil
	}
	return entry.descriptor
}

func (p *Provider) profileLock(key string) *sync.Mutex {
	p.fetchMuMu.Lock()
	defer p.fetchMuMu.Unlock()
	lock, ok := p.fetchMu[key]
	if !ok {
		lock = &sync.Mutex{}
		p.fetchMu[key] = lock
	}
	return lock
}
