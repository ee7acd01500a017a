package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	simdomain "github.com/credfluxo/restructure-backend/internal/simulation/domain"
	wfdomain "github.com/credfluxo/restructure-backend/internal/workflow/domain"
)

// Error maps the workflow error taxonomy onto HTTP statuses:
// authorization 403, conflicts 409, precondition/validation 422,
// missing resources 404, everything else 500.
func Error(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"ok": false, "error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, wfdomain.ErrCaseNotFound),
		errors.Is(err, simdomain.ErrAttemptNotFound):
		return http.StatusNotFound
	case errors.Is(err, wfdomain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, wfdomain.ErrAlreadyLocked),
		errors.Is(err, wfdomain.ErrLockConflict),
		errors.Is(err, wfdomain.ErrNotOwner),
		errors.Is(err, wfdomain.ErrVersionConflict),
		errors.Is(err, simdomain.ErrNotDraft),
		errors.Is(err, simdomain.ErrNotApproved):
		return http.StatusConflict
	case errors.Is(err, wfdomain.ErrInvalidTransition),
		errors.Is(err, wfdomain.ErrSimulationRequired),
		errors.Is(err, simdomain.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
