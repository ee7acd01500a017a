package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	httpapi "github.com/credfluxo/restructure-backend/internal/api/http"
	"github.com/credfluxo/restructure-backend/internal/api/http/middleware"
	"github.com/credfluxo/restructure-backend/internal/audit"
	"github.com/credfluxo/restructure-backend/internal/workflow/domain"
	"github.com/credfluxo/restructure-backend/internal/workflow/repository"
	"github.com/credfluxo/restructure-backend/internal/workflow/service"
)

// CounterSource serves cached per-queue counts; nil means counts come
// straight from the database.
type CounterSource interface {
	QueueCounters(ctx context.Context, states ...domain.State) (map[domain.State]int64, error)
}

type Handler struct {
	sm       *service.StateMachine
	repo     repository.Repository
	trail    audit.Repository
	counters CounterSource
}

func Register(rg *gin.RouterGroup, sm *service.StateMachine, repo repository.Repository, trail audit.Repository, counters CounterSource) {
	h := &Handler{sm: sm, repo: repo, trail: trail, counters: counters}

	rg.POST("/cases", h.create)
	rg.GET("/cases", h.list)
	rg.GET("/cases/:id", h.get)
	rg.POST("/cases/:id/claim", h.claim)
	rg.POST("/cases/:id/actions", h.apply)
	rg.POST("/cases/:id/lock/release", h.releaseLock)
	rg.POST("/cases/:id/lock/renew", h.renewLock)
	rg.GET("/cases/:id/audit", h.auditTrail)
	rg.GET("/queues", h.queues)
}

func (h *Handler) create(c *gin.Context) {
	var req createCaseReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	created, err := h.sm.CreateCase(c.Request.Context(), req.ClientName, req.ClientDocument)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "case": created})
}

func (h *Handler) list(c *gin.Context) {
	var f repository.Filter
	if s := c.Query("status"); s != "" {
		state := domain.State(s)
		if !domain.ValidState(state) {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "unknown status"})
			return
		}
		f.Status = &state
	}
	if a := c.Query("assigned_agent"); a != "" {
		f.AssignedAgent = &a
	}

	items, err := h.repo.List(c.Request.Context(), f)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "cases": items})
}

func (h *Handler) get(c *gin.Context) {
	id, ok := caseID(c)
	if !ok {
		return
	}

	found, err := h.repo.Get(c.Request.Context(), id)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "case": found})
}

func (h *Handler) claim(c *gin.Context) {
	id, ok := caseID(c)
	if !ok {
		return
	}

	updated, err := h.sm.Apply(c.Request.Context(), id, domain.ActionClaim, middleware.Actor(c), nil)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "case": updated})
}

func (h *Handler) apply(c *gin.Context) {
	id, ok := caseID(c)
	if !ok {
		return
	}

	var req actionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	action := domain.Action(req.Action)
	if !domain.ValidAction(action) {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "unknown action"})
		return
	}

	updated, err := h.sm.Apply(c.Request.Context(), id, action, middleware.Actor(c), req.Payload)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "case": updated})
}

func (h *Handler) releaseLock(c *gin.Context) {
	id, ok := caseID(c)
	if !ok {
		return
	}

	updated, err := h.sm.ReleaseLock(c.Request.Context(), id, middleware.Actor(c))
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "case": updated})
}

func (h *Handler) renewLock(c *gin.Context) {
	id, ok := caseID(c)
	if !ok {
		return
	}

	updated, err := h.sm.RenewLock(c.Request.Context(), id, middleware.Actor(c))
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "case": updated})
}

func (h *Handler) auditTrail(c *gin.Context) {
	id, ok := caseID(c)
	if !ok {
		return
	}

	entries, err := h.trail.ListByCase(c.Request.Context(), id)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "entries": entries})
}

var queueStates = []domain.State{
	domain.StateNew, domain.StateInProgress, domain.StatePendingCalculation,
	domain.StateCalculationApproved, domain.StateCalculationRejected,
	domain.StatePendingClosing, domain.StateClosingApproved,
	domain.StatePendingFinance, domain.StateNoContact,
}

func (h *Handler) queues(c *gin.Context) {
	if h.counters != nil {
		counts, err := h.counters.QueueCounters(c.Request.Context(), queueStates...)
		if err == nil {
			c.JSON(http.StatusOK, gin.H{"ok": true, "queues": counts, "source": "cache"})
			return
		}
	}

	counts, err := h.repo.CountByStatus(c.Request.Context())
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "queues": counts, "source": "db"})
}

func caseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid case id"})
		return uuid.Nil, false
	}
	return id, true
}
