package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/formledger/formledger-backend/internal/common"
	"github.com/formledger/formledger-backend/internal/domain"
	"github.com/formledger/formledger-backend/internal/repository"
	"github.com/formledger/formledger-backend/pkg/cache"
	"github.com/formledger/formledger-backend/pkg/logger"
)

// SchemaService owns the schema lifecycle: registration, the single-active
// state machine, and deprecation. It is the only writer of the active flag,
// and it keeps the Redis cache coherent by invalidating on every write.
type SchemaService interface {
	Create(req *domain.CreateSchemaRequest) (*domain.FormSchemaDetail, error)
	Get(ctx context.Context, formVersionID string) (*domain.FormSchemaDetail, error)
	List(ctx context.Context) ([]domain.FormSchemaDetail, error)
	GetActive(ctx context.Context) (*domain.FormSchemaDetail, error)
	// Activate makes the target the single active schema. Idempotent when the
	// target is already active.
	Activate(ctx context.Context, formVersionID string) (*domain.FormSchemaDetail, error)
	// Deprecate marks a schema unusable for new versions. Fails on the
	// currently active schema; activate a replacement first.
	Deprecate(ctx context.Context, formVersionID string) (*domain.FormSchemaDetail, error)
}

type schemaService struct {
	repo  repository.SchemaRepository
	cache cache.Service
}

// NewSchemaService creates a new SchemaService
func NewSchemaService(repo repository.SchemaRepository, cacheSvc cache.Service) SchemaService {
	return &schemaService{repo: repo, cache: cacheSvc}
}

func (s *schemaService) Create(req *domain.CreateSchemaRequest) (*domain.FormSchemaDetail, error) {
	if !domain.ValidFormVersionID(req.FormVersionID) {
		return nil, fmt.Errorf("form version id %q must match vMAJOR.MINOR.PATCH: %w", req.FormVersionID, common.ErrInvalidInput)
	}
	if !json.Valid(req.FieldDefinitions) {
		return nil, fmt.Errorf("field definitions must be a JSON document: %w", common.ErrInvalidInput)
	}

	schema := &domain.FormSchema{
		FormVersionID:    req.FormVersionID,
		FormName:         req.FormName,
		Description:      req.Description,
		FieldDefinitions: string(req.FieldDefinitions),
		IsActive:         false,
		Status:           domain.SchemaStatusInactive,
		CreatedBy:        req.CreatedBy,
	}
	if err := s.repo.Create(schema); err != nil {
		return nil, err
	}

	s.invalidate(req.FormVersionID)
	return schema.Detail(), nil
}

func (s *schemaService) Get(ctx context.Context, formVersionID string) (*domain.FormSchemaDetail, error) {
	if data, err := s.cache.GetSchema(ctx, formVersionID); err == nil {
		var detail domain.FormSchemaDetail
		if json.Unmarshal(data, &detail) == nil {
			return &detail, nil
		}
	}

	schema, err := s.repo.Get(formVersionID)
	if err != nil {
		return nil, err
	}

	detail := schema.Detail()
	_ = s.cache.SetSchema(ctx, formVersionID, detail)
	return detail, nil
}

func (s *schemaService) List(ctx context.Context) ([]domain.FormSchemaDetail, error) {
	if data, err := s.cache.GetSchemaList(ctx); err == nil {
		var details []domain.FormSchemaDetail
		if json.Unmarshal(data, &details) == nil {
			return details, nil
		}
	}

	schemas, err := s.repo.ListAll()
	if err != nil {
		return nil, err
	}

	details := make([]domain.FormSchemaDetail, len(schemas))
	for i := range schemas {
		details[i] = *schemas[i].Detail()
	}
	_ = s.cache.SetSchemaList(ctx, details)
	return details, nil
}

func (s *schemaService) GetActive(ctx context.Context) (*domain.FormSchemaDetail, error) {
	if data, err := s.cache.GetActiveSchema(ctx); err == nil {
		var detail domain.FormSchemaDetail
		if json.Unmarshal(data, &detail) == nil {
			return &detail, nil
		}
	}

	schema, err := s.repo.FindActive()
	if err != nil {
		return nil, err
	}

	detail := schema.Detail()
	_ = s.cache.SetActiveSchema(ctx, detail)
	return detail, nil
}

func (s *schemaService) Activate(ctx context.Context, formVersionID string) (*domain.FormSchemaDetail, error) {
	schema, err := s.repo.Activate(formVersionID)
	if err != nil {
		return nil, err
	}

	log := logger.WithComponent("schema-service")
	log.Info().Str("form_version_id", formVersionID).Msg("schema activated")

	s.invalidate(formVersionID)
	return schema.Detail(), nil
}

func (s *schemaService) Deprecate(ctx context.Context, formVersionID string) (*domain.FormSchemaDetail, error) {
	schema, err := s.repo.DeprecateIfInactive(formVersionID)
	if err != nil {
		return nil, err
	}

	log := logger.WithComponent("schema-service")
	log.Info().Str("form_version_id", formVersionID).Msg("schema deprecated")

	s.invalidate(formVersionID)
	return schema.Detail(), nil
}

// invalidate drops the schema cache entries touched by a write. Best-effort;
// anything missed expires at its TTL.
func (s *schemaService) invalidate(formVersionIDs ...string) {
	if err := s.cache.InvalidateSchemas(context.Background(), formVersionIDs...); err != nil {
		log := logger.WithComponent("schema-service")
		log.Warn().Err(err).Msg("schema cache invalidation failed")
	}
}
