package handler

import (
	"net/http"

	"github.com/formledger/formledger-backend/internal/common"
	"github.com/formledger/formledger-backend/internal/domain"
	"github.com/formledger/formledger-backend/internal/service"
	"github.com/gin-gonic/gin"
)

// SchemaHandler handles form schema requests
type SchemaHandler struct {
	service service.SchemaService
}

// NewSchemaHandler creates a new SchemaHandler
func NewSchemaHandler(service service.SchemaService) *SchemaHandler {
	return &SchemaHandler{service: service}
}

// Create handles POST /api/v1/schemas
// @Summary Register a new form schema version
// @Description Stores a new immutable schema version, inactive by default.
// @Tags schemas
// @Accept json
// @Produce json
// @Param request body domain.CreateSchemaRequest true "Schema definition"
// @Success 201 {object} common.APIResponse{data=domain.FormSchemaDetail}
// @Failure 400 {object} common.APIResponse
// @Failure 409 {object} common.APIResponse
// @Router /schemas [post]
func (h *SchemaHandler) Create(c *gin.Context) {
	var req domain.CreateSchemaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	created, err := h.service.Create(&req)
	if err != nil {
		common.FailFromError(c, err)
		return
	}

	common.CreatedResponse(c, created)
}

// List handles GET /api/v1/schemas
// @Summary List all form schema versions
// @Tags schemas
// @Produce json
// @Success 200 {object} common.APIResponse{data=[]domain.FormSchemaDetail}
// @Router /schemas [get]
func (h *SchemaHandler) List(c *gin.Context) {
	schemas, err := h.service.List(c.Request.Context())
	if err != nil {
		common.FailFromError(c, err)
		return
	}

	common.SuccessResponse(c, schemas, &common.Meta{Total: int64(len(schemas))})
}

// Get handles GET /api/v1/schemas/:form_version_id
// @Summary Get one form schema version
// @Tags schemas
// @Produce json
// @Param form_version_id path string true "Form version ID (vX.Y.Z)"
// @Success 200 {object} common.APIResponse{data=domain.FormSchemaDetail}
// @Failure 404 {object} common.APIResponse
// @Router /schemas/{form_version_id} [get]
func (h *SchemaHandler) Get(c *gin.Context) {
	schema, err := h.service.Get(c.Request.Context(), c.Param("form_version_id"))
	if err != nil {
		common.FailFromError(c, err)
		return
	}

	common.SuccessResponse(c, schema, nil)
}

// GetActive handles GET /api/v1/schemas/active
// @Summary Get the currently active form schema
// @Tags schemas
// @Produce json
// @Success 200 {object} common.APIResponse{data=domain.FormSchemaDetail}
// @Failure 404 {object} common.APIResponse
// @Router /schemas/active [get]
func (h *SchemaHandler) GetActive(c *gin.Context) {
	schema, err := h.service.GetActive(c.Request.Context())
	if err != nil {
		common.FailFromError(c, err)
		return
	}

	common.SuccessResponse(c, schema, nil)
}

// Activate handles POST /api/v1/schemas/:form_version_id/activate
// @Summary Activate a form schema version
// @Description Makes the target the single active schema, deactivating the previous one in the same transaction.
// @Tags schemas
// @Produce json
// @Param form_version_id path string true "Form version ID (vX.Y.Z)"
// @Success 200 {object} common.APIResponse{data=domain.FormSchemaDetail}
// @Failure 404 {object} common.APIResponse
// @Router /schemas/{form_version_id}/activate [post]
func (h *SchemaHandler) Activate(c *gin.Context) {
	schema, err := h.service.Activate(c.Request.Context(), c.Param("form_version_id"))
	if err != nil {
		common.FailFromError(c, err)
		return
	}

	common.SuccessResponse(c, schema, nil)
}

// Deprecate handles POST /api/v1/schemas/:form_version_id/deprecate
// @Summary Deprecate a form schema version
// @Description Marks the schema unusable for new versions. The active schema cannot be deprecated.
// @Tags schemas
// @Produce json
// @Param form_version_id path string true "Form version ID (vX.Y.Z)"
// @Success 200 {object} common.APIResponse{data=domain.FormSchemaDetail}
// @Failure 404 {object} common.APIResponse
// @Failure 422 {object} common.APIResponse
// @Router /schemas/{form_version_id}/deprecate [post]
func (h *SchemaHandler) Deprecate(c *gin.Context) {
	schema, err := h.service.Deprecate(c.Request.Context(), c.Param("form_version_id"))
	if err != nil {
		common.FailFromError(c, err)
		return
	}

	common.SuccessResponse(c, schema, nil)
}
