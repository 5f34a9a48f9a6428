package service

import (
	"fmt"

	"github.com/formledger/formledger-backend/internal/common"
	"github.com/formledger/formledger-backend/internal/domain"
	"github.com/formledger/formledger-backend/internal/repository"
)

// VersionService enforces the version-numbering and promotion rules on top of
// the version store: numbers increase by one per order starting at 1, exactly
// one version per order carries the latest flag, and promotion flips a WIP
// version to COMMITTED in place without touching its identity.
type VersionService interface {
	// CreateVersion appends a new version for the order. FinalSave commits,
	// otherwise the version is a WIP draft.
	CreateVersion(orderID string, req *domain.CreateVersionRequest) (*domain.OrderVersionDetail, error)
	// GetLatest returns the order's latest version.
	GetLatest(orderID string) (*domain.OrderVersionDetail, error)
	// GetVersion returns one exact version.
	GetVersion(orderID string, versionNumber int) (*domain.OrderVersionDetail, error)
	// ListVersions returns all versions of an order, oldest first.
	ListVersions(orderID string) ([]domain.OrderVersionDetail, error)
	// ListCommitted returns only the permanently retained versions.
	ListCommitted(orderID string) ([]domain.OrderVersionDetail, error)
	// Promote flips a WIP version to COMMITTED. Idempotent on an already
	// committed version.
	Promote(orderID string, versionNumber int) (*domain.OrderVersionDetail, error)
	// GetHistory returns the aggregate version history of an order.
	GetHistory(orderID string) (*domain.OrderHistory, error)
}

type versionService struct {
	versions repository.VersionRepository
	schemas  repository.SchemaRepository
}

// NewVersionService creates a new VersionService
func NewVersionService(versions repository.VersionRepository, schemas repository.SchemaRepository) VersionService {
	return &versionService{versions: versions, schemas: schemas}
}

func (s *versionService) CreateVersion(orderID string, req *domain.CreateVersionRequest) (*domain.OrderVersionDetail, error) {
	if orderID == "" {
		return nil, fmt.Errorf("order id is required: %w", common.ErrInvalidInput)
	}

	schema, err := s.schemas.Get(req.FormVersionID)
	if err != nil {
		return nil, fmt.Errorf("form schema %s: %w", req.FormVersionID, err)
	}
	if schema.IsDeprecated() {
		return nil, fmt.Errorf("form schema %s is deprecated: %w", req.FormVersionID, common.ErrInvalidInput)
	}

	status := domain.StatusWIP
	if req.FinalSave {
		status = domain.StatusCommitted
	}

	created, err := s.versions.AppendNext(orderID, func(prev *domain.OrderVersion) (*domain.OrderVersion, error) {
		next := &domain.OrderVersion{
			OrderID:           orderID,
			VersionNumber:     1,
			Status:            status,
			FormVersionID:     req.FormVersionID,
			Payload:           string(req.Payload),
			UserName:          req.UserName,
			IsLatestVersion:   true,
			ChangeDescription: req.ChangeDescription,
		}
		if prev != nil {
			prevNumber := prev.VersionNumber
			next.VersionNumber = prevNumber + 1
			next.PreviousVersionNumber = &prevNumber
		}
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	return created.Detail(), nil
}

func (s *versionService) GetLatest(orderID string) (*domain.OrderVersionDetail, error) {
	version, err := s.versions.FindLatest(orderID)
	if err != nil {
		return nil, err
	}
	return version.Detail(), nil
}

func (s *versionService) GetVersion(orderID string, versionNumber int) (*domain.OrderVersionDetail, error) {
	version, err := s.versions.FindVersion(orderID, versionNumber)
	if err != nil {
		return nil, err
	}
	return version.Detail(), nil
}

func (s *versionService) ListVersions(orderID string) ([]domain.OrderVersionDetail, error) {
	versions, err := s.versions.ListVersions(orderID)
	if err != nil {
		return nil, err
	}
	details := make([]domain.OrderVersionDetail, len(versions))
	for i := range versions {
		details[i] = *versions[i].Detail()
	}
	return details, nil
}

func (s *versionService) ListCommitted(orderID string) ([]domain.OrderVersionDetail, error) {
	versions, err := s.versions.ListCommitted(orderID)
	if err != nil {
		return nil, err
	}
	details := make([]domain.OrderVersionDetail, len(versions))
	for i := range versions {
		details[i] = *versions[i].Detail()
	}
	return details, nil
}

func (s *versionService) Promote(orderID string, versionNumber int) (*domain.OrderVersionDetail, error) {
	version, err := s.versions.FindVersion(orderID, versionNumber)
	if err != nil {
		return nil, err
	}

	// Promoting an already committed version is a no-op.
	if version.Status == domain.StatusCommitted {
		return version.Detail(), nil
	}

	if err := s.versions.UpdateStatus(orderID, versionNumber, domain.StatusCommitted); err != nil {
		return nil, err
	}

	version.Status = domain.StatusCommitted
	return version.Detail(), nil
}

func (s *versionService) GetHistory(orderID string) (*domain.OrderHistory, error) {
	versions, err := s.versions.ListVersions(orderID)
	if err != nil {
		return nil, err
	}

	history := &domain.OrderHistory{
		OrderID:       orderID,
		TotalVersions: len(versions),
		Versions:      make([]domain.VersionSummary, len(versions)),
	}
	for i, v := range versions {
		if v.Status == domain.StatusCommitted {
			history.CommittedVersions++
		} else {
			history.WipVersions++
		}
		history.Versions[i] = domain.VersionSummary{
			VersionNumber:     v.VersionNumber,
			Status:            v.Status,
			FormVersionID:     v.FormVersionID,
			UserName:          v.UserName,
			IsLatestVersion:   v.IsLatestVersion,
			ChangeDescription: v.ChangeDescription,
			CreatedAt:         v.CreatedAt,
		}
	}
	return history, nil
}
