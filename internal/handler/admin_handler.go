package handler

import (
	"github.com/formledger/formledger-backend/internal/common"
	"github.com/formledger/formledger-backend/internal/jobs"
	"github.com/formledger/formledger-backend/internal/scheduler"
	"github.com/gin-gonic/gin"
)

// AdminHandler exposes operational endpoints: the manual purge trigger and
// scheduled task state.
type AdminHandler struct {
	purge *jobs.PurgeEngine
	sched *scheduler.Scheduler
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(purge *jobs.PurgeEngine, sched *scheduler.Scheduler) *AdminHandler {
	return &AdminHandler{purge: purge, sched: sched}
}

// RunPurge handles POST /api/v1/admin/purge/run
// @Summary Trigger a WIP purge run
// @Description Runs the purge once, with the same semantics as the scheduled run. Returns 429 if a run is already in flight.
// @Tags admin
// @Produce json
// @Success 200 {object} common.APIResponse{data=jobs.RunSummary}
// @Failure 429 {object} common.APIResponse
// @Security ApiKeyAuth
// @Router /admin/purge/run [post]
func (h *AdminHandler) RunPurge(c *gin.Context) {
	summary, err := h.purge.Run(c.Request.Context())
	if err != nil {
		common.FailFromError(c, err)
		return
	}

	common.SuccessResponse(c, summary, nil)
}

// Tasks handles GET /api/v1/admin/tasks
// @Summary List scheduled task state
// @Tags admin
// @Produce json
// @Success 200 {object} common.APIResponse{data=[]scheduler.TaskInfo}
// @Security ApiKeyAuth
// @Router /admin/tasks [get]
func (h *AdminHandler) Tasks(c *gin.Context) {
	common.SuccessResponse(c, h.sched.GetTasks(), nil)
}
