package migration

import (
	"github.com/formledger/formledger-backend/internal/domain"
	"gorm.io/gorm"
)

// Run creates the version ledger and schema registry tables if missing.
// No seeding: schemas are only ever created through the API.
func Run(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.OrderVersion{},
		&domain.FormSchema{},
	)
}
