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

// VersionRepository is the durable version store. It owns latest-version
// bookkeeping; all writes to order_versions go through it.
type VersionRepository interface {
	// AppendNext runs the whole "read latest, compute next, flip pointer,
	// insert" sequence as one transaction. The current latest row (nil if the
	// order has no versions yet) is locked for the duration, so two concurrent
	// saves for the same order serialize. build receives the locked latest and
	// returns the fully-populated new version.
	AppendNext(orderID string, build func(prev *domain.OrderVersion) (*domain.OrderVersion, error)) (*domain.OrderVersion, error)
	// FindLatest returns the version flagged latest for the order.
	FindLatest(orderID string) (*domain.OrderVersion, error)
	// FindVersion returns one exact version.
	FindVersion(orderID string, versionNumber int) (*domain.OrderVersion, error)
	// ListVersions returns all versions of an order, version ascending.
	ListVersions(orderID string) ([]domain.OrderVersion, error)
	// ListCommitted returns the COMMITTED versions of an order, version ascending.
	ListCommitted(orderID string) ([]domain.OrderVersion, error)
	// UpdateStatus flips a version's status in place (used by promote). A
	// write that leaves the row unchanged succeeds; ErrNotFound only when the
	// row is missing.
	UpdateStatus(orderID string, versionNumber int, status string) error
	// GroupWipByOrder returns, per order with at least one WIP version, all of
	// that order's WIP version numbers. Computed from a single query so the
	// purge engine sees a consistent snapshot.
	GroupWipByOrder() ([]domain.WipGroup, error)
	// DeleteWipVersion deletes exactly one WIP version. ErrNotFound if absent,
	// ErrInvariantViolation if the row is the order's latest or not WIP.
	DeleteWipVersion(orderID string, versionNumber int) error
}

type versionRepository struct {
	db *gorm.DB
}

// NewVersionRepository creates a new VersionRepository
func NewVersionRepository(db *gorm.DB) VersionRepository {
	return &versionRepository{db: db}
}

func (r *versionRepository) AppendNext(orderID string, build func(prev *domain.OrderVersion) (*domain.OrderVersion, error)) (*domain.OrderVersion, error) {
	var created *domain.OrderVersion

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var prev *domain.OrderVersion
		var latest domain.OrderVersion
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("order_id = ? AND is_latest_version = ?", orderID, true).
			First(&latest).Error
		switch {
		case err == nil:
			prev = &latest
		case errors.Is(err, gorm.ErrRecordNotFound):
			// first version of this order
		default:
			return err
		}

		next, err := build(prev)
		if err != nil {
			return err
		}

		if prev != nil {
			if err := tx.Model(&domain.OrderVersion{}).
				Where("id = ?", prev.ID).
				Update("is_latest_version", false).Error; err != nil {
				return err
			}
		}

		if err := tx.Create(next).Error; err != nil {
			return translateDuplicate(err, orderID, next.VersionNumber)
		}
		created = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *versionRepository) FindLatest(orderID string) (*domain.OrderVersion, error) {
	var version domain.OrderVersion
	err := r.db.Where("order_id = ? AND is_latest_version = ?", orderID, true).
		First(&version).Error
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &version, nil
}

func (r *versionRepository) FindVersion(orderID string, versionNumber int) (*domain.OrderVersion, error) {
	var version domain.OrderVersion
	err := r.db.Where("order_id = ? AND version_number = ?", orderID, versionNumber).
		First(&version).Error
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &version, nil
}

func (r *versionRepository) ListVersions(orderID string) ([]domain.OrderVersion, error) {
	var versions []domain.OrderVersion
	err := r.db.Where("order_id = ?", orderID).
		Order("version_number ASC").
		Find(&versions).Error
	return versions, err
}

func (r *versionRepository) ListCommitted(orderID string) ([]domain.OrderVersion, error) {
	var versions []domain.OrderVersion
	err := r.db.Where("order_id = ? AND status = ?", orderID, domain.StatusCommitted).
		Order("version_number ASC").
		Find(&versions).Error
	return versions, err
}

func (r *versionRepository) UpdateStatus(orderID string, versionNumber int, status string) error {
	result := r.db.Model(&domain.OrderVersion{}).
		Where("order_id = ? AND version_number = ?", orderID, versionNumber).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// MySQL reports zero affected rows both for a missing row and for a
		// write that changed nothing (a concurrent promote already landed).
		// Only the former is an error.
		var count int64
		if err := r.db.Model(&domain.OrderVersion{}).
			Where("order_id = ? AND version_number = ?", orderID, versionNumber).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("version %s/%d: %w", orderID, versionNumber, common.ErrNotFound)
		}
	}
	return nil
}

// wipRow is the projection GroupWipByOrder scans into.
type wipRow struct {
	OrderID       string
	VersionNumber int
}

func (r *versionRepository) GroupWipByOrder() ([]domain.WipGroup, error) {
	var rows []wipRow
	err := r.db.Model(&domain.OrderVersion{}).
		Select("order_id, version_number").
		Where("status = ?", domain.StatusWIP).
		Order("order_id ASC, version_number ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return groupWipRows(rows), nil
}

// groupWipRows folds the ordered (order_id, version_number) projection into
// per-order groups. Rows must be sorted by order_id.
func groupWipRows(rows []wipRow) []domain.WipGroup {
	groups := make([]domain.WipGroup, 0)
	for _, row := range rows {
		n := len(groups)
		if n == 0 || groups[n-1].OrderID != row.OrderID {
			groups = append(groups, domain.WipGroup{OrderID: row.OrderID})
			n++
		}
		groups[n-1].VersionNumbers = append(groups[n-1].VersionNumbers, row.VersionNumber)
	}
	return groups
}

func (r *versionRepository) DeleteWipVersion(orderID string, versionNumber int) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var version domain.OrderVersion
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("order_id = ? AND version_number = ?", orderID, versionNumber).
			First(&version).Error
		if err != nil {
			return notFoundOr(err)
		}

		// Contract guards. Callers filter these out up front; hitting either
		// means a programming error upstream, not a user-recoverable path.
		if version.IsLatestVersion {
			return fmt.Errorf("version %s/%d is the latest version: %w", orderID, versionNumber, common.ErrInvariantViolation)
		}
		if version.Status != domain.StatusWIP {
			return fmt.Errorf("version %s/%d is not WIP: %w", orderID, versionNumber, common.ErrInvariantViolation)
		}

		return tx.Delete(&version).Error
	})
}

// notFoundOr maps gorm's record-not-found to the service taxonomy.
func notFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return common.ErrNotFound
	}
	return err
}

// translateDuplicate maps a MySQL duplicate-entry error on the
// (order_id, version_number) unique index to ErrConflict.
func translateDuplicate(err error, orderID string, versionNumber int) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return fmt.Errorf("version %s/%d: %w", orderID, versionNumber, common.ErrConflict)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("version %s/%d: %w", orderID, versionNumber, common.ErrConflict)
	}
	return err
}
