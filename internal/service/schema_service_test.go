package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/formledger/formledger-backend/internal/common"
	"github.com/formledger/formledger-backend/internal/domain"
	"github.com/formledger/formledger-backend/pkg/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// noCache is the cache service backed by no Redis client; every read misses
// and every write is a no-op.
func noCache() cache.Service {
	return cache.NewService(nil)
}

func TestSchemaCreate_RejectsBadVersionID(t *testing.T) {
	repo := new(MockSchemaRepository)
	svc := NewSchemaService(repo, noCache())

	for _, id := range []string{"1.0.0", "v1.0", "v1", "va.b.c", "v1.0.0-beta", ""} {
		_, err := svc.Create(&domain.CreateSchemaRequest{
			FormVersionID:    id,
			FormName:         "order-intake",
			FieldDefinitions: json.RawMessage(`{"fields":[]}`),
			CreatedBy:        "admin",
		})
		assert.ErrorIs(t, err, common.ErrInvalidInput, "id %q", id)
	}
	repo.AssertNotCalled(t, "Create", mock.Anything)
}

func TestSchemaCreate_RejectsInvalidFieldDefinitions(t *testing.T) {
	repo := new(MockSchemaRepository)
	svc := NewSchemaService(repo, noCache())

	_, err := svc.Create(&domain.CreateSchemaRequest{
		FormVersionID:    "v1.0.0",
		FormName:         "order-intake",
		FieldDefinitions: json.RawMessage(`{not json`),
		CreatedBy:        "admin",
	})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestSchemaCreate_StoresInactive(t *testing.T) {
	repo := new(MockSchemaRepository)
	svc := NewSchemaService(repo, noCache())

	var stored *domain.FormSchema
	repo.On("Create", mock.MatchedBy(func(s *domain.FormSchema) bool {
		stored = s
		return true
	})).Return(nil)

	created, err := svc.Create(&domain.CreateSchemaRequest{
		FormVersionID:    "v1.0.0",
		FormName:         "order-intake",
		Description:      "initial schema",
		FieldDefinitions: json.RawMessage(`{"fields":[{"name":"customer"}]}`),
		CreatedBy:        "admin",
	})

	assert.NoError(t, err)
	assert.False(t, created.IsActive)
	assert.Equal(t, domain.SchemaStatusInactive, created.Status)
	if assert.NotNil(t, stored) {
		assert.False(t, stored.IsActive)
	}
}

func TestSchemaDeprecate_ActiveSchemaFails(t *testing.T) {
	repo := new(MockSchemaRepository)
	svc := NewSchemaService(repo, noCache())

	repo.On("DeprecateIfInactive", "v1.0.0").
		Return(nil, fmt.Errorf("schema v1.0.0 is active: %w", common.ErrInvariantViolation))

	_, err := svc.Deprecate(context.Background(), "v1.0.0")

	assert.ErrorIs(t, err, common.ErrInvariantViolation)
}

func TestSchemaDeprecate_InactiveSchema(t *testing.T) {
	repo := new(MockSchemaRepository)
	svc := NewSchemaService(repo, noCache())

	deprecatedRow := &domain.FormSchema{FormVersionID: "v0.9.0", Status: domain.SchemaStatusDeprecated}
	repo.On("DeprecateIfInactive", "v0.9.0").Return(deprecatedRow, nil)

	deprecated, err := svc.Deprecate(context.Background(), "v0.9.0")

	assert.NoError(t, err)
	assert.Equal(t, domain.SchemaStatusDeprecated, deprecated.Status)
	repo.AssertExpectations(t)
}

// fakeSchemaRegistry implements the single-active invariant in memory so the
// activation and deprecation flows can be checked end to end through the
// service. The mutex stands in for the store's row locks: each operation is
// one atomic unit, the way the real transactions serialize.
type fakeSchemaRegistry struct {
	MockSchemaRepository
	mu      sync.Mutex
	schemas map[string]*domain.FormSchema
}

func newFakeSchemaRegistry(ids ...string) *fakeSchemaRegistry {
	r := &fakeSchemaRegistry{schemas: map[string]*domain.FormSchema{}}
	for _, id := range ids {
		r.schemas[id] = &domain.FormSchema{FormVersionID: id, Status: domain.SchemaStatusInactive}
	}
	return r
}

func (r *fakeSchemaRegistry) Activate(formVersionID string) (*domain.FormSchema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.schemas[formVersionID]
	if !ok {
		return nil, fmt.Errorf("schema %s: %w", formVersionID, common.ErrNotFound)
	}
	if target.IsActive {
		return target, nil
	}
	for _, s := range r.schemas {
		if s.IsActive {
			s.IsActive = false
			s.Status = domain.SchemaStatusInactive
		}
	}
	target.IsActive = true
	target.Status = domain.SchemaStatusActive
	return target, nil
}

func (r *fakeSchemaRegistry) DeprecateIfInactive(formVersionID string) (*domain.FormSchema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.schemas[formVersionID]
	if !ok {
		return nil, fmt.Errorf("schema %s: %w", formVersionID, common.ErrNotFound)
	}
	if target.IsActive {
		return nil, fmt.Errorf("schema %s is active: %w", formVersionID, common.ErrInvariantViolation)
	}
	target.Status = domain.SchemaStatusDeprecated
	return target, nil
}

func TestSchemaActivate_LastActivationWins(t *testing.T) {
	registry := newFakeSchemaRegistry("v1.0.0", "v1.1.0")
	svc := NewSchemaService(registry, noCache())
	ctx := context.Background()

	first, err := svc.Activate(ctx, "v1.0.0")
	assert.NoError(t, err)
	assert.True(t, first.IsActive)

	second, err := svc.Activate(ctx, "v1.1.0")
	assert.NoError(t, err)
	assert.True(t, second.IsActive)

	activeCount := 0
	for _, s := range registry.schemas {
		if s.IsActive {
			activeCount++
			assert.Equal(t, "v1.1.0", s.FormVersionID)
		}
	}
	assert.Equal(t, 1, activeCount)
	assert.False(t, registry.schemas["v1.0.0"].IsActive)
}

func TestSchemaActivate_Idempotent(t *testing.T) {
	registry := newFakeSchemaRegistry("v1.0.0")
	svc := NewSchemaService(registry, noCache())
	ctx := context.Background()

	_, err := svc.Activate(ctx, "v1.0.0")
	assert.NoError(t, err)
	again, err := svc.Activate(ctx, "v1.0.0")
	assert.NoError(t, err)
	assert.True(t, again.IsActive)
}

func TestSchemaDeprecate_ConcurrentActivateNeverLeavesActiveDeprecated(t *testing.T) {
	registry := newFakeSchemaRegistry("v1.0.0", "v1.1.0")
	svc := NewSchemaService(registry, noCache())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = svc.Activate(ctx, "v1.0.0")
		}()
		go func() {
			defer wg.Done()
			_, _ = svc.Deprecate(ctx, "v1.0.0")
		}()
	}
	wg.Wait()

	for _, s := range registry.schemas {
		if s.IsActive {
			assert.NotEqual(t, domain.SchemaStatusDeprecated, s.Status,
				"active schema %s must never be deprecated", s.FormVersionID)
		}
	}
}

func TestSchemaActivate_NotFound(t *testing.T) {
	registry := newFakeSchemaRegistry("v1.0.0")
	svc := NewSchemaService(registry, noCache())

	_, err := svc.Activate(context.Background(), "v2.0.0")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
