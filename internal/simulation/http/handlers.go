package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	httpapi "github.com/credfluxo/restructure-backend/internal/api/http"
	"github.com/credfluxo/restructure-backend/internal/api/http/middleware"
	"github.com/credfluxo/restructure-backend/internal/simulation/domain"
	"github.com/credfluxo/restructure-backend/internal/simulation/service"
)

type Handler struct {
	store *service.Store
}

func Register(rg *gin.RouterGroup, store *service.Store) {
	h := &Handler{store: store}

	rg.POST("/cases/:id/simulations", h.submit)
	rg.GET("/cases/:id/simulations", h.listByCase)
	rg.GET("/simulations/:id", h.get)
	rg.POST("/simulations/:id/approve", h.approve)
	rg.POST("/simulations/:id/reject", h.reject)
	rg.POST("/simulations/:id/final", h.setFinal)
}

type bankEntryReq struct {
	BankCode    string          `json:"bank_code" binding:"required"`
	Balance     decimal.Decimal `json:"balance"`
	Installment decimal.Decimal `json:"installment"`
	Released    decimal.Decimal `json:"released"`
}

type submitReq struct {
	Entries            []bankEntryReq  `json:"entries" binding:"required"`
	TermMonths         int             `json:"term_months" binding:"required"`
	Insurance          decimal.Decimal `json:"insurance"`
	ConsultancyPercent decimal.Decimal `json:"consultancy_percent"`
}

type rejectReq struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *Handler) submit(c *gin.Context) {
	caseID, ok := pathID(c)
	if !ok {
		return
	}

	var req submitReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	entries := make([]domain.BankEntry, len(req.Entries))
	for i, e := range req.Entries {
		entries[i] = domain.BankEntry{
			BankCode:    e.BankCode,
			Balance:     e.Balance,
			Installment: e.Installment,
			Released:    e.Released,
		}
	}

	attempt, err := h.store.Submit(c.Request.Context(), caseID, middleware.Actor(c), service.SubmitInput{
		Entries:            entries,
		TermMonths:         req.TermMonths,
		Insurance:          req.Insurance,
		ConsultancyPercent: req.ConsultancyPercent,
	})
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "attempt": attempt})
}

func (h *Handler) listByCase(c *gin.Context) {
	caseID, ok := pathID(c)
	if !ok {
		return
	}

	attempts, err := h.store.ListByCase(c.Request.Context(), caseID)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "attempts": attempts})
}

func (h *Handler) get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	attempt, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "attempt": attempt})
}

func (h *Handler) approve(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	updated, err := h.store.Approve(c.Request.Context(), id, middleware.Actor(c))
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "case": updated})
}

func (h *Handler) reject(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req rejectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	updated, err := h.store.Reject(c.Request.Context(), id, middleware.Actor(c), req.Reason)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "case": updated})
}

func (h *Handler) setFinal(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	attempt, err := h.store.SetAsFinal(c.Request.Context(), id, middleware.Actor(c))
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "attempt": attempt})
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}
