package domain

import (
	"encoding/json"
	"time"
)

// Version status values
const (
	StatusWIP       = "WIP"
	StatusCommitted = "COMMITTED"
)

// OrderVersion represents one immutable saved snapshot of an order.
// Every save appends a new row; rows are only ever mutated to move the
// latest-version flag, and only WIP rows are ever deleted (by the purge job).
type OrderVersion struct {
	ID                    uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	OrderID               string    `gorm:"column:order_id;type:varchar(64);uniqueIndex:uq_order_version,priority:1;index:idx_order_status" json:"order_id"`
	VersionNumber         int       `gorm:"column:version_number;uniqueIndex:uq_order_version,priority:2" json:"version_number"`
	Status                string    `gorm:"column:status;type:varchar(20);index:idx_order_status" json:"status"`
	FormVersionID         string    `gorm:"column:form_version_id;type:varchar(32)" json:"form_version_id"`
	Payload               string    `gorm:"column:payload;type:json" json:"-"`
	UserName              string    `gorm:"column:user_name;type:varchar(100)" json:"user_name"`
	IsLatestVersion       bool      `gorm:"column:is_latest_version;index" json:"is_latest_version"`
	PreviousVersionNumber *int      `gorm:"column:previous_version_number" json:"previous_version_number"`
	ChangeDescription     string    `gorm:"column:change_description;type:varchar(500)" json:"change_description"`
	CreatedAt             time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (OrderVersion) TableName() string { return "order_versions" }

// IsWIP reports whether the version is still an unfinalized draft.
func (v *OrderVersion) IsWIP() bool { return v.Status == StatusWIP }

// CreateVersionRequest is the body for saving a new order version.
// FinalSave=false is an auto-save (WIP), FinalSave=true commits.
type CreateVersionRequest struct {
	FormVersionID     string          `json:"form_version_id" binding:"required"`
	Payload           json.RawMessage `json:"payload" binding:"required"`
	UserName          string          `json:"user_name" binding:"required"`
	FinalSave         bool            `json:"final_save"`
	ChangeDescription string          `json:"change_description"`
}

// OrderVersionDetail is the full API view of a version, payload included.
type OrderVersionDetail struct {
	OrderID               string          `json:"order_id"`
	VersionNumber         int             `json:"version_number"`
	Status                string          `json:"status"`
	FormVersionID         string          `json:"form_version_id"`
	Payload               json.RawMessage `json:"payload"`
	UserName              string          `json:"user_name"`
	IsLatestVersion       bool            `json:"is_latest_version"`
	PreviousVersionNumber *int            `json:"previous_version_number"`
	ChangeDescription     string          `json:"change_description"`
	CreatedAt             time.Time       `json:"created_at"`
}

// Detail converts the stored row to its API representation.
func (v *OrderVersion) Detail() *OrderVersionDetail {
	return &OrderVersionDetail{
		OrderID:               v.OrderID,
		VersionNumber:         v.VersionNumber,
		Status:                v.Status,
		FormVersionID:         v.FormVersionID,
		Payload:               json.RawMessage(v.Payload),
		UserName:              v.UserName,
		IsLatestVersion:       v.IsLatestVersion,
		PreviousVersionNumber: v.PreviousVersionNumber,
		ChangeDescription:     v.ChangeDescription,
		CreatedAt:             v.CreatedAt,
	}
}

// VersionSummary is one line of an order's history listing.
type VersionSummary struct {
	VersionNumber     int       `json:"version_number"`
	Status            string    `json:"status"`
	FormVersionID     string    `json:"form_version_id"`
	UserName          string    `json:"user_name"`
	IsLatestVersion   bool      `json:"is_latest_version"`
	ChangeDescription string    `json:"change_description"`
	CreatedAt         time.Time `json:"created_at"`
}

// OrderHistory aggregates all versions of one order.
type OrderHistory struct {
	OrderID           string           `json:"order_id"`
	TotalVersions     int              `json:"total_versions"`
	CommittedVersions int              `json:"committed_versions"`
	WipVersions       int              `json:"wip_versions"`
	Versions          []VersionSummary `json:"versions"`
}

// WipGroup is the purge engine's per-order view of WIP versions.
// Derived per run from storage, never persisted.
type WipGroup struct {
	OrderID        string
	VersionNumbers []int
}
