package service

import (
	"testing"

	"github.com/formledger/formledger-backend/internal/common"
	"github.com/formledger/formledger-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockVersionRepository is a mock implementation of VersionRepository
type MockVersionRepository struct {
	mock.Mock
}

// AppendNext invokes build with the mocked previous-latest version (Return's
// first value) and returns whatever build produces, mirroring the store's
// locked transaction.
func (m *MockVersionRepository) AppendNext(orderID string, build func(prev *domain.OrderVersion) (*domain.OrderVersion, error)) (*domain.OrderVersion, error) {
	args := m.Called(orderID)
	if args.Error(1) != nil {
		return nil, args.Error(1)
	}
	var prev *domain.OrderVersion
	if args.Get(0) != nil {
		prev = args.Get(0).(*domain.OrderVersion)
	}
	return build(prev)
}

func (m *MockVersionRepository) FindLatest(orderID string) (*domain.OrderVersion, error) {
	args := m.Called(orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OrderVersion), args.Error(1)
}

func (m *MockVersionRepository) FindVersion(orderID string, versionNumber int) (*domain.OrderVersion, error) {
	args := m.Called(orderID, versionNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OrderVersion), args.Error(1)
}

func (m *MockVersionRepository) ListVersions(orderID string) ([]domain.OrderVersion, error) {
	args := m.Called(orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.OrderVersion), args.Error(1)
}

func (m *MockVersionRepository) ListCommitted(orderID string) ([]domain.OrderVersion, error) {
	args := m.Called(orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.OrderVersion), args.Error(1)
}

func (m *MockVersionRepository) UpdateStatus(orderID string, versionNumber int, status string) error {
	args := m.Called(orderID, versionNumber, status)
	return args.Error(0)
}

func (m *MockVersionRepository) GroupWipByOrder() ([]domain.WipGroup, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.WipGroup), args.Error(1)
}

func (m *MockVersionRepository) DeleteWipVersion(orderID string, versionNumber int) error {
	args := m.Called(orderID, versionNumber)
	return args.Error(0)
}

// MockSchemaRepository is a mock implementation of SchemaRepository
type MockSchemaRepository struct {
	mock.Mock
}

func (m *MockSchemaRepository) Create(schema *domain.FormSchema) error {
	args := m.Called(schema)
	return args.Error(0)
}

func (m *MockSchemaRepository) Get(formVersionID string) (*domain.FormSchema, error) {
	args := m.Called(formVersionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FormSchema), args.Error(1)
}

func (m *MockSchemaRepository) ListAll() ([]domain.FormSchema, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.FormSchema), args.Error(1)
}

func (m *MockSchemaRepository) FindActive() (*domain.FormSchema, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FormSchema), args.Error(1)
}

func (m *MockSchemaRepository) Activate(formVersionID string) (*domain.FormSchema, error) {
	args := m.Called(formVersionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FormSchema), args.Error(1)
}

func (m *MockSchemaRepository) DeprecateIfInactive(formVersionID string) (*domain.FormSchema, error) {
	args := m.Called(formVersionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FormSchema), args.Error(1)
}

func activeSchema() *domain.FormSchema {
	return &domain.FormSchema{
		FormVersionID: "v1.0.0",
		FormName:      "order-intake",
		IsActive:      true,
		Status:        domain.SchemaStatusActive,
	}
}

func TestCreateVersion_FirstVersion(t *testing.T) {
	versions := new(MockVersionRepository)
	schemas := new(MockSchemaRepository)
	svc := NewVersionService(versions, schemas)

	schemas.On("Get", "v1.0.0").Return(activeSchema(), nil)
	versions.On("AppendNext", "ORD-00001").Return(nil, nil)

	created, err := svc.CreateVersion("ORD-00001", &domain.CreateVersionRequest{
		FormVersionID: "v1.0.0",
		Payload:       []byte(`{"customer":"acme"}`),
		UserName:      "jkim",
		FinalSave:     false,
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, created.VersionNumber)
	assert.Nil(t, created.PreviousVersionNumber)
	assert.Equal(t, domain.StatusWIP, created.Status)
	assert.True(t, created.IsLatestVersion)
}

func TestCreateVersion_IncrementsFromLatest(t *testing.T) {
	versions := new(MockVersionRepository)
	schemas := new(MockSchemaRepository)
	svc := NewVersionService(versions, schemas)

	prev := &domain.OrderVersion{OrderID: "ORD-00001", VersionNumber: 3, Status: domain.StatusWIP, IsLatestVersion: true}
	schemas.On("Get", "v1.0.0").Return(activeSchema(), nil)
	versions.On("AppendNext", "ORD-00001").Return(prev, nil)

	created, err := svc.CreateVersion("ORD-00001", &domain.CreateVersionRequest{
		FormVersionID: "v1.0.0",
		Payload:       []byte(`{}`),
		UserName:      "jkim",
		FinalSave:     true,
	})

	assert.NoError(t, err)
	assert.Equal(t, 4, created.VersionNumber)
	if assert.NotNil(t, created.PreviousVersionNumber) {
		assert.Equal(t, 3, *created.PreviousVersionNumber)
	}
	assert.Equal(t, domain.StatusCommitted, created.Status)
	assert.True(t, created.IsLatestVersion)
}

func TestCreateVersion_UnknownSchema(t *testing.T) {
	versions := new(MockVersionRepository)
	schemas := new(MockSchemaRepository)
	svc := NewVersionService(versions, schemas)

	schemas.On("Get", "v9.9.9").Return(nil, common.ErrNotFound)

	_, err := svc.CreateVersion("ORD-00001", &domain.CreateVersionRequest{
		FormVersionID: "v9.9.9",
		Payload:       []byte(`{}`),
		UserName:      "jkim",
	})

	assert.ErrorIs(t, err, common.ErrNotFound)
	versions.AssertNotCalled(t, "AppendNext", mock.Anything)
}

func TestCreateVersion_DeprecatedSchemaRejected(t *testing.T) {
	versions := new(MockVersionRepository)
	schemas := new(MockSchemaRepository)
	svc := NewVersionService(versions, schemas)

	deprecated := &domain.FormSchema{FormVersionID: "v1.0.0", Status: domain.SchemaStatusDeprecated}
	schemas.On("Get", "v1.0.0").Return(deprecated, nil)

	_, err := svc.CreateVersion("ORD-00001", &domain.CreateVersionRequest{
		FormVersionID: "v1.0.0",
		Payload:       []byte(`{}`),
		UserName:      "jkim",
	})

	assert.ErrorIs(t, err, common.ErrInvalidInput)
	versions.AssertNotCalled(t, "AppendNext", mock.Anything)
}

func TestPromote_FlipsWipToCommitted(t *testing.T) {
	versions := new(MockVersionRepository)
	schemas := new(MockSchemaRepository)
	svc := NewVersionService(versions, schemas)

	wip := &domain.OrderVersion{OrderID: "ORD-00001", VersionNumber: 2, Status: domain.StatusWIP, IsLatestVersion: true}
	versions.On("FindVersion", "ORD-00001", 2).Return(wip, nil)
	versions.On("UpdateStatus", "ORD-00001", 2, domain.StatusCommitted).Return(nil)

	promoted, err := svc.Promote("ORD-00001", 2)

	assert.NoError(t, err)
	assert.Equal(t, domain.StatusCommitted, promoted.Status)
	assert.Equal(t, 2, promoted.VersionNumber)
	assert.True(t, promoted.IsLatestVersion)
	versions.AssertExpectations(t)
}

func TestPromote_Idempotent(t *testing.T) {
	versions := new(MockVersionRepository)
	schemas := new(MockSchemaRepository)
	svc := NewVersionService(versions, schemas)

	committed := &domain.OrderVersion{OrderID: "ORD-00001", VersionNumber: 2, Status: domain.StatusCommitted}
	versions.On("FindVersion", "ORD-00001", 2).Return(committed, nil)

	first, err := svc.Promote("ORD-00001", 2)
	assert.NoError(t, err)
	second, err := svc.Promote("ORD-00001", 2)
	assert.NoError(t, err)

	assert.Equal(t, first, second)
	versions.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestPromote_ConcurrentDoublePromoteSucceeds(t *testing.T) {
	versions := new(MockVersionRepository)
	schemas := new(MockSchemaRepository)
	svc := NewVersionService(versions, schemas)

	// Both callers read the version while it is still WIP; the store treats
	// the second, no-change write as a success rather than a missing row.
	wip := &domain.OrderVersion{OrderID: "ORD-00001", VersionNumber: 2, Status: domain.StatusWIP, IsLatestVersion: true}
	versions.On("FindVersion", "ORD-00001", 2).Return(wip, nil)
	versions.On("UpdateStatus", "ORD-00001", 2, domain.StatusCommitted).Return(nil)

	first, err := svc.Promote("ORD-00001", 2)
	assert.NoError(t, err)
	second, err := svc.Promote("ORD-00001", 2)
	assert.NoError(t, err)

	assert.Equal(t, domain.StatusCommitted, first.Status)
	assert.Equal(t, domain.StatusCommitted, second.Status)
}

func TestPromote_NotFound(t *testing.T) {
	versions := new(MockVersionRepository)
	schemas := new(MockSchemaRepository)
	svc := NewVersionService(versions, schemas)

	versions.On("FindVersion", "ORD-00001", 7).Return(nil, common.ErrNotFound)

	_, err := svc.Promote("ORD-00001", 7)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetHistory_Aggregates(t *testing.T) {
	versions := new(MockVersionRepository)
	schemas := new(MockSchemaRepository)
	svc := NewVersionService(versions, schemas)

	stored := []domain.OrderVersion{
		{OrderID: "ORD-00001", VersionNumber: 1, Status: domain.StatusWIP},
		{OrderID: "ORD-00001", VersionNumber: 2, Status: domain.StatusCommitted},
		{OrderID: "ORD-00001", VersionNumber: 3, Status: domain.StatusWIP, IsLatestVersion: true},
	}
	versions.On("ListVersions", "ORD-00001").Return(stored, nil)

	history, err := svc.GetHistory("ORD-00001")

	assert.NoError(t, err)
	assert.Equal(t, "ORD-00001", history.OrderID)
	assert.Equal(t, 3, history.TotalVersions)
	assert.Equal(t, 1, history.CommittedVersions)
	assert.Equal(t, 2, history.WipVersions)
	assert.Len(t, history.Versions, 3)
	assert.Equal(t, 1, history.Versions[0].VersionNumber)
	assert.True(t, history.Versions[2].IsLatestVersion)
}

// fakeVersionStore is a minimal in-memory store for exercising the numbering
// rules over a whole save sequence.
type fakeVersionStore struct {
	MockVersionRepository
	versions []*domain.OrderVersion
}

func (f *fakeVersionStore) AppendNext(orderID string, build func(prev *domain.OrderVersion) (*domain.OrderVersion, error)) (*domain.OrderVersion, error) {
	var prev *domain.OrderVersion
	for _, v := range f.versions {
		if v.OrderID == orderID && v.IsLatestVersion {
			prev = v
		}
	}
	next, err := build(prev)
	if err != nil {
		return nil, err
	}
	if prev != nil {
		prev.IsLatestVersion = false
	}
	f.versions = append(f.versions, next)
	return next, nil
}

func TestCreateVersion_SequenceKeepsSingleLatest(t *testing.T) {
	store := &fakeVersionStore{}
	schemas := new(MockSchemaRepository)
	schemas.On("Get", "v1.0.0").Return(activeSchema(), nil)
	svc := NewVersionService(store, schemas)

	for i := 1; i <= 5; i++ {
		created, err := svc.CreateVersion("ORD-00001", &domain.CreateVersionRequest{
			FormVersionID: "v1.0.0",
			Payload:       []byte(`{}`),
			UserName:      "jkim",
			FinalSave:     i%2 == 0,
		})
		assert.NoError(t, err)
		assert.Equal(t, i, created.VersionNumber)

		latestCount := 0
		for _, v := range store.versions {
			if v.IsLatestVersion {
				latestCount++
				assert.Equal(t, i, v.VersionNumber)
			}
		}
		assert.Equal(t, 1, latestCount, "exactly one latest after save %d", i)
	}
}
