package datasource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/queryline-io/queryline-engine/pkg/apperrors"
	"github.com/queryline-io/queryline-engine/pkg/models"
	"github.com/queryline-io/queryline-engine/pkg/retry"
)

const (
	// DefaultMaxConcurrent bounds in-flight executions per profile.
	DefaultMaxConcurrent = 4
	// DefaultQueueTimeout is how long an execution waits for a slot.
	DefaultQueueTimeout = 10 * time.Second
)

type managedAdapter struct {
	adapter     Adapter
	fingerprint string
	slots       chan struct{}
}

// ConnectionManager owns at most one live adapter per connection profile.
// Connecting is idempotent: repeated calls for the same profile reuse the
// handle, and a credential or target change closes the prior handle before
// opening a new one. Executions per profile are bounded by a slot queue.
type ConnectionManager struct {
	maxConcurrent int
	queueTimeout  time.Duration
	logger        *zap.Logger

	mu       sync.Mutex
	adapters map[string]*managedAdapter // keyed by profile identity
	// keyLocks serializes connect/close per identity so concurrent callers
	// never race a handle swap.
	keyLocks map[string]*sync.Mutex
}

// NewConnectionManager creates a connection manager. Zero values fall back
// to the defaults.
func NewConnectionManager(maxConcurrent int, queueTimeout time.Duration, logger *zap.Logger) *ConnectionManager {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if queueTimeout <= 0 {
		queueTimeout = DefaultQueueTimeout
	}
	return &ConnectionManager{
		maxConcurrent: maxConcurrent,
		queueTimeout:  queueTimeout,
		logger:        logger.Named("datasource"),
		adapters:      make(map[string]*managedAdapter),
		keyLocks:      make(map[string]*sync.Mutex),
	}
}

// identityKey identifies the target independent of credentials, so a
// password rotation maps to the same slot and replaces the old handle.
func identityKey(p *models.ConnectionProfile) string {
	return fmt.Sprintf("%s|%s|%d|%s|%s", p.EngineKind, p.Host, p.Port, p.Database, p.Username)
}

// Execute runs a query against the profile's datasource, connecting first
// if needed. Waiting longer than the queue timeout for an execution slot
// fails with ConnectionError.
func (m *ConnectionManager) Execute(ctx context.Context, profile *models.ConnectionProfile, req *models.ExecutionRequest) (*models.ResultSet, error) {
	entry, err := m.getOrConnect(ctx, profile)
	if err != nil {
		return nil, err
	}

	release, err := m.acquireSlot(ctx, entry)
	if err != nil {
		return nil, err
	}
	defer release()

	return entry.adapter.Execute(ctx, req)
}

// IntrospectSchema reads schema metadata through the profile's adapter.
// Satisfies schema.Introspector.
func (m *ConnectionManager) IntrospectSchema(ctx context.Context, profile *models.ConnectionProfile) (*models.SchemaDescriptor, error) {
	entry, err := m.getOrConnect(ctx, profile)
	if err != nil {
		return nil, err
	}

	release, err := m.acquireSlot(ctx, entry)
	if err != nil {
		return nil, err
	}
	defer release()

	return entry.adapter.IntrospectSchema(ctx)
}

// Ping verifies the profile's datasource is reachable.
func (m *ConnectionManager) Ping(ctx context.Context, profile *models.ConnectionProfile) error {
	entry, err := m.getOrConnect(ctx, profile)
	if err != nil {
		return err
	}
	return entry.adapter.Ping(ctx)
}

// CloseAll closes every live adapter. Used at shutdown.
func (m *ConnectionManager) CloseAll() {
	m.mu.Lock()
	adapters := m.adapters
	m.adapters = make(map[string]*managedAdapter)
	m.mu.Unlock()

	for key, entry := range adapters {
		if err := entry.adapter.Close(); err != nil {
			m.logger.Warn("close adapter", zap.String("profile", key), zap.Error(err))
		}
	}
}

func (m *ConnectionManager) getOrConnect(ctx context.Context, profile *models.ConnectionProfile) (*managedAdapter, error) {
	if err := profile.Validate(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindConnectionError, "datasource",
			"invalid connection profile", err)
	}

	key := identityKey(profile)
	fingerprint := profile.Fingerprint()

	lock := m.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	entry, ok := m.adapters[key]
	m.mu.Unlock()

	if ok && entry.fingerprint == fingerprint {
		return entry, nil
	}

	if ok {
		// Profile changed underneath the same identity; retire the old handle.
		m.logger.Info("profile changed, replacing connection",
			zap.String("profile", fingerprint))
		if err := entry.adapter.Close(); err != nil {
			m.logger.Warn("close stale adapter", zap.Error(err))
		}
		m.mu.Lock()
		delete(m.adapters, key)
		m.mu.Unlock()
	}

	factory := GetFactory(profile.EngineKind)
	if factory == nil {
		return nil, apperrors.New(apperrors.KindConnectionError, "datasource",
			fmt.Sprintf("no adapter registered for engine %q", profile.EngineKind))
	}

	adapter, err := factory(profile, m.logger)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindConnectionError, "datasource",
			"create adapter", err)
	}

	started := time.Now()
	if err := retry.DoIfRetryable(ctx, retry.DefaultConfig(), func() error {
		return adapter.Connect(ctx)
	}); err != nil {
		_ = adapter.Close()
		return nil, apperrors.Wrap(apperrors.KindConnectionError, "datasource",
			"connect failed", err)
	}

	m.logger.Info("datasource connected",
		zap.String("profile", fingerprint),
		zap.Duration("elapsed", time.Since(started)))

	entry = &managedAdapter{
		adapter:     adapter,
		fingerprint: fingerprint,
		slots:       make(chan struct{}, m.maxConcurrent),
	}
	m.mu.Lock()
	m.adapters[key] = entry
	m.mu.Unlock()

	return entry, nil
}

func (m *ConnectionManager) acquireSlot(ctx context.Context, entry *managedAdapter) (func(), error) {
	timer := time.NewTimer(m.queueTimeout)
	defer timer.Stop()

	select {
	case entry.slots <- struct{}{}:
		return func() { <-entry.slots }, nil
	case <-timer.C:
		return nil, apperrors.New(apperrors.KindConnectionError, "datasource",
			"timed out waiting for an execution slot")
	case <-ctx.Done():
		return nil, apperrors.Wrap(apperrors.KindConnectionError, "datasource",
			"canceled while waiting for an execution slot", ctx.Err())
	}
}

func (m *ConnectionManager) keyLock(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.keyLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		m.keyLocks[key] = lock
	}
	return lock
}
