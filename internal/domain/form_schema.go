package domain

import (
	"encoding/json"
	"regexp"
	"time"
)

// Schema status values
const (
	SchemaStatusInactive   = "inactive"
	SchemaStatusActive     = "active"
	SchemaStatusDeprecated = "deprecated"
)

// formVersionIDPattern: vMAJOR.MINOR.PATCH, e.g. v1.0.0
var formVersionIDPattern = regexp.MustCompile(`^v\d+\.\d+\.\d+$`)

// ValidFormVersionID reports whether id matches the vMAJOR.MINOR.PATCH pattern.
func ValidFormVersionID(id string) bool {
	return formVersionIDPattern.MatchString(id)
}

// FormSchema is one immutable version of the order form definition.
// Field definitions never change after creation; new content means a new
// FormVersionID. At most one schema is active at any time.
type FormSchema struct {
	ID               uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	FormVersionID    string    `gorm:"column:form_version_id;type:varchar(32);uniqueIndex" json:"form_version_id"`
	FormName         string    `gorm:"column:form_name;type:varchar(255)" json:"form_name"`
	Description      string    `gorm:"column:description;type:varchar(500)" json:"description"`
	FieldDefinitions string    `gorm:"column:field_definitions;type:json" json:"-"`
	IsActive         bool      `gorm:"column:is_active;index" json:"is_active"`
	Status           string    `gorm:"column:status;type:varchar(20);default:inactive" json:"status"`
	CreatedBy        string    `gorm:"column:created_by;type:varchar(100)" json:"created_by"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (FormSchema) TableName() string { return "form_schemas" }

// IsDeprecated reports whether the schema is marked unusable for new versions.
func (s *FormSchema) IsDeprecated() bool { return s.Status == SchemaStatusDeprecated }

// CreateSchemaRequest is the body for registering a new form schema version.
type CreateSchemaRequest struct {
	FormVersionID    string          `json:"form_version_id" binding:"required"`
	FormName         string          `json:"form_name" binding:"required"`
	Description      string          `json:"description"`
	FieldDefinitions json.RawMessage `json:"field_definitions" binding:"required"`
	CreatedBy        string          `json:"created_by" binding:"required"`
}

// FormSchemaDetail is the full API view including field definitions.
type FormSchemaDetail struct {
	FormVersionID    string          `json:"form_version_id"`
	FormName         string          `json:"form_name"`
	Description      string          `json:"description"`
	FieldDefinitions json.RawMessage `json:"field_definitions"`
	IsActive         bool            `json:"is_active"`
	Status           string          `json:"status"`
	CreatedBy        string          `json:"created_by"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Detail converts the stored row to its API representation.
func (s *FormSchema) Detail() *FormSchemaDetail {
	return &FormSchemaDetail{
		FormVersionID:    s.FormVersionID,
		FormName:         s.FormName,
		Description:      s.Description,
		FieldDefinitions: json.RawMessage(s.FieldDefinitions),
		IsActive:         s.IsActive,
		Status:           s.Status,
		CreatedBy:        s.CreatedBy,
		CreatedAt:        s.CreatedAt,
	}
}
