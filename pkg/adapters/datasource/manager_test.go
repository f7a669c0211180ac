package datasource

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/queryline-io/queryline-engine/pkg/apperrors"
	"github.com/queryline-io/queryline-engine/pkg/models"
)

type fakeAdapter struct {
	connects atomic.Int64
	closes   atomic.Int64
	executes atomic.Int64
	block    chan struct{} // non-nil makes Execute wait until closed
}

func (f *fakeAdapter) Connect(context.Context) error {
	f.connects.Add(1)
	return nil
}

func (f *fakeAdapter) Execute(ctx context.Context, _ *models.ExecutionRequest) (*models.ResultSet, error) {
	f.executes.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &models.ResultSet{}, nil
}

func (f *fakeAdapter) IntrospectSchema(context.Context) (*models.SchemaDescriptor, error) {
	return &models.SchemaDescriptor{
		Tables: []models.TableDescriptor{{Name: "inventory"}},
	}, nil
}

func (f *fakeAdapter) Ping(context.Context) error { return nil }

func (f *fakeAdapter) Close() error {
	f.closes.Add(1)
	return nil
}

// registerFake installs a factory for the postgres kind that hands out the
// given adapters in order. The registry is package-global, so each test
// re-registers to reset state.
func registerFake(adapters ...*fakeAdapter) {
	var next atomic.Int64
	Register(Registration{
		Info: AdapterInfo{Kind: models.EnginePostgres, DisplayName: "fake"},
		Factory: func(_ *models.ConnectionProfile, _ *zap.Logger) (Adapter, error) {
			i := next.Add(1) - 1
			return adapters[i], nil
		},
	})
}

func managerProfile() *models.ConnectionProfile {
	return &models.ConnectionProfile{
		EngineKind: models.EnginePostgres,
		Host:       "localhost",
		Port:       5432,
		Database:   "trialsupply",
		Username:   "app",
		Password:   "pw1",
	}
}

func TestManager_IdempotentConnect(t *testing.T) {
	fake := &fakeAdapter{}
	registerFake(fake)
	m := NewConnectionManager(2, time.Second, zap.NewNop())

	req := &models.ExecutionRequest{Query: "SELECT 1", Dialect: models.DialectSQL}
	_, err := m.Execute(context.Background(), managerProfile(), req)
	require.NoError(t, err)
	_, err = m.Execute(context.Background(), managerProfile(), req)
	require.NoError(t, err)

	assert.Equal(t, int64(1), fake.connects.Load())
	assert.Equal(t, int64(2), fake.executes.Load())
}

func TestManager_ProfileChangeReplacesHandle(t *testing.T) {
	first := &fakeAdapter{}
	second := &fakeAdapter{}
	registerFake(first, second)
	m := NewConnectionManager(2, time.Second, zap.NewNop())

	req := &models.ExecutionRequest{Query: "SELECT 1", Dialect: models.DialectSQL}
	_, err := m.Execute(context.Background(), managerProfile(), req)
	require.NoError(t, err)

	rotated := managerProfile()
	rotated.Password = "pw2"
	_, err = m.Execute(context.Background(), rotated, req)
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.closes.Load())
	assert.Equal(t, int64(1), second.connects.Load())
}

func TestManager_UnregisteredEngine(t *testing.T) {
	m := NewConnectionManager(2, time.Second, zap.NewNop())

	profile := managerProfile()
	profile.EngineKind = models.EngineMySQL

	_, err := m.Execute(context.Background(), profile,
		&models.ExecutionRequest{Query: "SELECT 1"})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConnectionError, apperrors.KindOf(err))
}

func TestManager_InvalidProfile(t *testing.T) {
	m := NewConnectionManager(2, time.Second, zap.NewNop())

	_, err := m.Execute(context.Background(), &models.ConnectionProfile{},
		&models.ExecutionRequest{Query: "SELECT 1"})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConnectionError, apperrors.KindOf(err))
}

func TestManager_QueueTimeout(t *testing.T) {
	block := make(chan struct{})
	fake := &fakeAdapter{block: block}
	registerFake(fake)
	m := NewConnectionManager(1, 50*time.Millisecond, zap.NewNop())

	req := &models.ExecutionRequest{Query: "SELECT 1", Dialect: models.DialectSQL}

	errCh := make(chan error, 1)
	go func() {
		_, err := m.Execute(context.Background(), managerProfile(), req)
		errCh <- err
	}()

	// Wait for the first execution to hold the only slot.
	require.Eventually(t, func() bool { return fake.executes.Load() == 1 },
		time.Second, 5*time.Millisecond)

	_, err := m.Execute(context.Background(), managerProfile(), req)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConnectionError, apperrors.KindOf(err))
	assert.ErrorContains(t, err, "execution slot")

	close(block)
	require.NoError(t, <-errCh)
}

func TestManager_IntrospectSchema(t *testing.T) {
	registerFake(&fakeAdapter{})
	m := NewConnectionManager(2, time.Second, zap.NewNop())

	descriptor, err := m.IntrospectSchema(context.Background(), managerProfile())
	require.NoError(t, err)
	require.Len(t, descriptor.Tables, 1)
	assert.Equal(t, "inventory", descriptor.Tables[0].Name)
}

func TestManager_CloseAll(t *testing.T) {
	fake := &fakeAdapter{}
	registerFake(fake)
	m := NewConnectionManager(2, time.Second, zap.NewNop())

	require.NoError(t, m.Ping(context.Background(), managerProfile()))
	m.CloseAll()

	assert.Equal(t, int64(1), fake.closes.Load())
}
