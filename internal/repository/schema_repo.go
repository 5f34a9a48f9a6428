package repository

import (
	"errors"
	"fmt"

	"github.com/formledger/formledger-backend/internal/common"
	"github.com/formledger/formledger-backend/internal/domain"
	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SchemaRepository is the durable form schema registry. The is_active flag is
// only ever written through Activate/DeprecateIfInactive, called by the
// schema service.
type SchemaRepository interface {
	Create(schema *domain.FormSchema) error
	Get(formVersionID string) (*domain.FormSchema, error)
	ListAll() ([]domain.FormSchema, error)
	FindActive() (*domain.FormSchema, error)
	// Activate atomically clears the currently active schema (if any) and sets
	// the target active. Concurrent activations serialize on the locked rows,
	// so exactly one schema ends up active. Idempotent for an already-active
	// target.
	Activate(formVersionID string) (*domain.FormSchema, error)
	// DeprecateIfInactive marks the schema deprecated, guarding the active
	// flag under the same locked transaction. A concurrent Activate of the
	// same schema serializes on the row lock, so the active schema can never
	// end up deprecated. ErrInvariantViolation if the schema is active.
	DeprecateIfInactive(formVersionID string) (*domain.FormSchema, error)
}

type schemaRepository struct {
	db *gorm.DB
}

// NewSchemaRepository creates a new SchemaRepository
func NewSchemaRepository(db *gorm.DB) SchemaRepository {
	return &schemaRepository{db: db}
}

func (r *schemaRepository) Create(schema *domain.FormSchema) error {
	if err := r.db.Create(schema).Error; err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return fmt.Errorf("schema %s: %w", schema.FormVersionID, common.ErrConflict)
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("schema %s: %w", schema.FormVersionID, common.ErrConflict)
		}
		return err
	}
	return nil
}

func (r *schemaRepository) Get(formVersionID string) (*domain.FormSchema, error) {
	var schema domain.FormSchema
	err := r.db.Where("form_version_id = ?", formVersionID).First(&schema).Error
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &schema, nil
}

func (r *schemaRepository) ListAll() ([]domain.FormSchema, error) {
	var schemas []domain.FormSchema
	err := r.db.Order("created_at ASC, form_version_id ASC").Find(&schemas).Error
	return schemas, err
}

func (r *schemaRepository) FindActive() (*domain.FormSchema, error) {
	var schema domain.FormSchema
	err := r.db.Where("is_active = ?", true).First(&schema).Error
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &schema, nil
}

func (r *schemaRepository) Activate(formVersionID string) (*domain.FormSchema, error) {
	var activated *domain.FormSchema

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var target domain.FormSchema
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("form_version_id = ?", formVersionID).
			First(&target).Error
		if err != nil {
			return notFoundOr(err)
		}

		if target.IsActive {
			activated = &target
			return nil
		}

		// Clear whoever is active right now. The locked scan serializes
		// concurrent activations; the loser re-reads after the winner commits.
		var current domain.FormSchema
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("is_active = ?", true).
			First(&current).Error
		switch {
		case err == nil:
			if err := tx.Model(&domain.FormSchema{}).
				Where("id = ?", current.ID).
				Updates(map[string]interface{}{"is_active": false, "status": domain.SchemaStatusInactive}).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			// nothing active yet
		default:
			return err
		}

		if err := tx.Model(&domain.FormSchema{}).
			Where("id = ?", target.ID).
			Updates(map[string]interface{}{"is_active": true, "status": domain.SchemaStatusActive}).Error; err != nil {
			return err
		}

		target.IsActive = true
		target.Status = domain.SchemaStatusActive
		activated = &target
		return nil
	})
	if err != nil {
		return nil, err
	}
	return activated, nil
}

func (r *schemaRepository) DeprecateIfInactive(formVersionID string) (*domain.FormSchema, error) {
	var deprecated *domain.FormSchema

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var target domain.FormSchema
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("form_version_id = ?", formVersionID).
			First(&target).Error
		if err != nil {
			return notFoundOr(err)
		}

		if target.IsActive {
			return fmt.Errorf("schema %s is active and cannot be deprecated, activate a replacement first: %w",
				formVersionID, common.ErrInvariantViolation)
		}

		if err := tx.Model(&domain.FormSchema{}).
			Where("id = ?", target.ID).
			Update("status", domain.SchemaStatusDeprecated).Error; err != nil {
			return err
		}

		target.Status = domain.SchemaStatusDeprecated
		deprecated = &target
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deprecated, nil
}
