package handler

import (
	"net/http"
	"strconv"

	"github.com/formledger/formledger-backend/internal/common"
	"github.com/formledger/formledger-backend/internal/domain"
	"github.com/formledger/formledger-backend/internal/service"
	"github.com/gin-gonic/gin"
)

// VersionHandler handles order version requests
type VersionHandler struct {
	service service.VersionService
}

// NewVersionHandler creates a new VersionHandler
func NewVersionHandler(service service.VersionService) *VersionHandler {
	return &VersionHandler{service: service}
}

// Create handles POST /api/v1/orders/:order_id/versions
// @Summary Save a new order version
// @Description Appends a new version for the order. final_save=false stores a WIP draft, final_save=true commits.
// @Tags versions
// @Accept json
// @Produce json
// @Param order_id path string true "Order ID"
// @Param request body domain.CreateVersionRequest true "Version content"
// @Success 201 {object} common.APIResponse{data=domain.OrderVersionDetail}
// @Failure 400 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Failure 409 {object} common.APIResponse
// @Router /orders/{order_id}/versions [post]
func (h *VersionHandler) Create(c *gin.Context) {
	orderID := c.Param("order_id")

	var req domain.CreateVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	created, err := h.service.CreateVersion(orderID, &req)
	if err != nil {
		common.FailFromError(c, err)
		return
	}

	common.CreatedResponse(c, created)
}

// GetLatest handles GET /api/v1/orders/:order_id/versions/latest
// @Summary Get the latest version of an order
// @Tags versions
// @Produce json
// @Param order_id path string true "Order ID"
// @Success 200 {object} common.APIResponse{data=domain.OrderVersionDetail}
// @Failure 404 {object} common.APIResponse
// @Router /orders/{order_id}/versions/latest [get]
func (h *VersionHandler) GetLatest(c *gin.Context) {
	orderID := c.Param("order_id")

	version, err := h.service.GetLatest(orderID)
	if err != nil {
		common.FailFromError(c, err)
		return
	}

	common.SuccessResponse(c, version, &common.Meta{OrderID: orderID})
}

// GetVersion handles GET /api/v1/orders/:order_id/versions/:version
// @Summary Get a specific version of an order
// @Tags versions
// @Produce json
// @Param order_id path string true "Order ID"
// @Param version path int true "Version number"
// @Success 200 {object} common.APIResponse{data=domain.OrderVersionDetail}
// @Failure 404 {object} common.APIResponse
// @Router /orders/{order_id}/versions/{version} [get]
func (h *VersionHandler) GetVersion(c *gin.Context) {
	orderID := c.Param("order_id")

	versionNumber, err := strconv.Atoi(c.Param("version"))
	if err != nil || versionNumber < 1 {
		common.ErrorResponse(c, http.StatusBadRequest, "version must be a positive integer")
		return
	}

	version, err := h.service.GetVersion(orderID, versionNumber)
	if err != nil {
		common.FailFromError(c, err)
		return
	}

	common.SuccessResponse(c, version, &common.Meta{OrderID: orderID})
}

// List handles GET /api/v1/orders/:order_id/versions
// @Summary List all versions of an order
// @Tags versions
// @Produce json
// @Param order_id path string true "Order ID"
// @Param status query string false "Filter by status (COMMITTED)"
// @Success 200 {object} common.APIResponse{data=[]domain.OrderVersionDetail}
// @Router /orders/{order_id}/versions [get]
func (h *VersionHandler) List(c *gin.Context) {
	orderID := c.Param("order_id")

	var versions []domain.OrderVersionDetail
	var err error
	switch status := c.Query("status"); status {
	case "":
		versions, err = h.service.ListVersions(orderID)
	case domain.StatusCommitted:
		versions, err = h.service.ListCommitted(orderID)
	default:
		common.ErrorResponse(c, http.StatusBadRequest, "unsupported status filter: "+status)
		return
	}
	if err != nil {
		common.FailFromError(c, err)
		return
	}

	common.SuccessResponse(c, versions, &common.Meta{OrderID: orderID, Total: int64(len(versions))})
}

// Promote handles POST /api/v1/orders/:order_id/versions/:version/promote
// @Summary Promote a WIP version to COMMITTED
// @Description Flips the version's status in place. Idempotent for already committed versions.
// @Tags versions
// @Produce json
// @Param order_id path string true "Order ID"
// @Param version path int true "Version number"
// @Success 200 {object} common.APIResponse{data=domain.OrderVersionDetail}
// @Failure 404 {object} common.APIResponse
// @Router /orders/{order_id}/versions/{version}/promote [post]
func (h *VersionHandler) Promote(c *gin.Context) {
	orderID := c.Param("order_id")

	versionNumber, err := strconv.Atoi(c.Param("version"))
	if err != nil || versionNumber < 1 {
		common.ErrorResponse(c, http.StatusBadRequest, "version must be a positive integer")
		return
	}

	version, err := h.service.Promote(orderID, versionNumber)
	if err != nil {
		common.FailFromError(c, err)
		return
	}

	common.SuccessResponse(c, version, &common.Meta{OrderID: orderID})
}

// History handles GET /api/v1/orders/:order_id/history
// @Summary Get the aggregate version history of an order
// @Tags versions
// @Produce json
// @Param order_id path string true "Order ID"
// @Success 200 {object} common.APIResponse{data=domain.OrderHistory}
// @Router /orders/{order_id}/history [get]
func (h *VersionHandler) History(c *gin.Context) {
	orderID := c.Param("order_id")

	history, err := h.service.GetHistory(orderID)
	if err != nil {
		common.FailFromError(c, err)
		return
	}

	common.SuccessResponse(c, history, nil)
}
