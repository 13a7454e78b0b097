package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	syncapp "github.com/erp/portal/internal/application/sync"
	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/erp/portal/internal/infrastructure/scheduler"
	"github.com/erp/portal/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// SyncRunner runs and reports master-data syncs
type SyncRunner interface {
	Sync(ctx context.Context, entity masterdata.SyncEntity, actor string) (*syncapp.Result, error)
	Status(ctx context.Context) ([]syncapp.Status, error)
}

// SyncJobs is the background scheduler as seen by the API
type SyncJobs interface {
	TriggerNow(entity masterdata.SyncEntity) (scheduler.SyncJob, error)
	History(limit int) []scheduler.SyncJob
	Active() []masterdata.SyncEntity
}

// SyncHandler handles the master-data sync endpoints
type SyncHandler struct {
	BaseHandler
	runner SyncRunner
	jobs   SyncJobs
}

// NewSyncHandler creates a SyncHandler. jobs may be nil when the scheduler is disabled.
func NewSyncHandler(runner SyncRunner, jobs SyncJobs) *SyncHandler {
	return &SyncHandler{runner: runner, jobs: jobs}
}

// SyncJobsResponse lists the scheduler state
type SyncJobsResponse struct {
	Enabled bool                    `json:"enabled"`
	Active  []masterdata.SyncEntity `json:"active"`
	History []scheduler.SyncJob     `json:"history"`
}

var syncActions = map[masterdata.SyncEntity]string{
	masterdata.SyncEntityItem:     dto.ActionSyncItems,
	masterdata.SyncEntityCustomer: dto.ActionSyncCustomers,
	masterdata.SyncEntitySupplier: dto.ActionSyncSuppliers,
}

// SyncItems runs the item master sync
// POST /sync/items
func (h *SyncHandler) SyncItems(c *gin.Context) {
	h.run(c, masterdata.SyncEntityItem)
}

// SyncCustomers runs the customer master sync
// POST /sync/customers
func (h *SyncHandler) SyncCustomers(c *gin.Context) {
	h.run(c, masterdata.SyncEntityCustomer)
}

// SyncSuppliers runs the supplier master sync
// POST /sync/suppliers
func (h *SyncHandler) SyncSuppliers(c *gin.Context) {
	h.run(c, masterdata.SyncEntitySupplier)
}

func (h *SyncHandler) run(c *gin.Context, entity masterdata.SyncEntity) {
	action := syncActions[entity]

	result, err := h.runner.Sync(c.Request.Context(), entity, actor(c))
	if err != nil {
		h.ActionFailed(c, action, err, nil)
		return
	}
	h.Action(c, dto.NewActionSuccess(action, syncMessage(result), result))
}

func syncMessage(r *syncapp.Result) string {
	msg := fmt.Sprintf("%s sync completed: %d created, %d updated, %d unchanged",
		r.Entity.Label(), r.Created, r.Updated, r.Skipped)
	if len(r.Degraded) > 0 {
		msg += fmt.Sprintf(" (unavailable: %s)", strings.Join(r.Degraded, ", "))
	}
	return msg
}

// Status reports the last successful sync of every entity
// GET /sync/status
func (h *SyncHandler) Status(c *gin.Context) {
	status, err := h.runner.Status(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, status)
}

// Jobs lists active and recent scheduler jobs
// GET /sync/jobs?limit=
func (h *SyncHandler) Jobs(c *gin.Context) {
	if h.jobs == nil {
		h.Success(c, SyncJobsResponse{Active: []masterdata.SyncEntity{}, History: []scheduler.SyncJob{}})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 0 {
		h.BadRequest(c, "limit must be a non-negative integer")
		return
	}
	h.Success(c, SyncJobsResponse{
		Enabled: true,
		Active:  h.jobs.Active(),
		History: h.jobs.History(limit),
	})
}

// Trigger queues a background sync of one entity
// POST /sync/jobs/:entity
func (h *SyncHandler) Trigger(c *gin.Context) {
	if h.jobs == nil {
		h.Action(c, dto.NewActionError(dto.ActionTriggerScheduled, http.StatusServiceUnavailable, "Sync scheduler is disabled", nil))
		return
	}
	entity, err := masterdata.ParseSyncEntity(c.Param("entity"))
	if err != nil {
		h.ActionFailed(c, dto.ActionTriggerScheduled, err, nil)
		return
	}

	job, err := h.jobs.TriggerNow(entity)
	switch {
	case err == nil:
		msg := fmt.Sprintf("%s sync queued", entity.Label())
		h.Action(c, dto.ActionResult{Status: http.StatusAccepted, Message: msg, Action: dto.ActionTriggerScheduled, Data: job})
	case errors.Is(err, scheduler.ErrSyncAlreadyInProgress):
		h.Action(c, dto.NewActionError(dto.ActionTriggerScheduled, http.StatusConflict,
			fmt.Sprintf("%s sync is already in progress", entity.Label()), nil))
	case errors.Is(err, scheduler.ErrJobQueueFull), errors.Is(err, scheduler.ErrSchedulerNotRunning):
		h.Action(c, dto.NewActionError(dto.ActionTriggerScheduled, http.StatusServiceUnavailable, "Sync scheduler is busy, try again later", nil))
	default:
		h.ActionFailed(c, dto.ActionTriggerScheduled, err, nil)
	}
}
