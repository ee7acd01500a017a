package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credfluxo/restructure-backend/internal/api/http/middleware"
	"github.com/credfluxo/restructure-backend/internal/locking"
	simrepo "github.com/credfluxo/restructure-backend/internal/simulation/repository"
	"github.com/credfluxo/restructure-backend/internal/workflow/permissions"
	"github.com/credfluxo/restructure-backend/internal/workflow/repository"
	"github.com/credfluxo/restructure-backend/internal/workflow/service"
)

func newTestRouter(t *testing.T) (*gin.Engine, *repository.Memory) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cases := repository.NewMemory()
	mutex := locking.NewKeyedMutex()
	clock := locking.SystemClock{}
	locks := locking.NewManager(cases, mutex, clock, zerolog.Nop())
	sm := service.NewStateMachine(cases, permissions.New(), locks, mutex, simrepo.NewMemory(), nil,
		service.Config{LockTTL: time.Hour}, zerolog.Nop())

	r := gin.New()
	rg := r.Group("/api/v1")
	rg.Use(middleware.WithActor())
	Register(rg, sm, cases, cases, nil)
	return r, cases
}

type header struct{ id, role string }

func do(t *testing.T, r *gin.Engine, method, path string, h header, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if h.id != "" {
		req.Header.Set("X-Actor-Id", h.id)
	}
	if h.role != "" {
		req.Header.Set("X-Actor-Role", h.role)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func createCase(t *testing.T, r *gin.Engine) string {
	t.Helper()
	w := do(t, r, http.MethodPost, "/api/v1/cases", header{"agent-1", "agent"}, gin.H{
		"client_name":     "Joana Dias",
		"client_document": "32165498700",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	return body["case"].(map[string]any)["id"].(string)
}

func TestActorMiddleware(t *testing.T) {
	r, _ := newTestRouter(t)

	t.Run("missing identity", func(t *testing.T) {
		w := do(t, r, http.MethodGet, "/api/v1/cases", header{}, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unrecognized role", func(t *testing.T) {
		w := do(t, r, http.MethodGet, "/api/v1/cases", header{"u1", "intern"}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCreateAndGetCase(t *testing.T) {
	r, _ := newTestRouter(t)
	id := createCase(t, r)

	w := do(t, r, http.MethodGet, "/api/v1/cases/"+id, header{"agent-1", "agent"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	got := body["case"].(map[string]any)
	assert.Equal(t, "new", got["status"])

	t.Run("unknown id", func(t *testing.T) {
		w := do(t, r, http.MethodGet, "/api/v1/cases/4ce1e7b3-0000-0000-0000-000000000000", header{"agent-1", "agent"}, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		w := do(t, r, http.MethodGet, "/api/v1/cases/not-a-uuid", header{"agent-1", "agent"}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing body field", func(t *testing.T) {
		w := do(t, r, http.MethodPost, "/api/v1/cases", header{"agent-1", "agent"}, gin.H{"client_name": "x"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestClaimAndActions(t *testing.T) {
	r, _ := newTestRouter(t)
	id := createCase(t, r)

	w := do(t, r, http.MethodPost, "/api/v1/cases/"+id+"/claim", header{"agent-1", "agent"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode(t, w)["case"].(map[string]any)
	assert.Equal(t, "in_progress", got["status"])
	assert.Equal(t, true, got["lock_active"])

	t.Run("competing claim conflicts", func(t *testing.T) {
		w := do(t, r, http.MethodPost, "/api/v1/cases/"+id+"/claim", header{"agent-2", "agent"}, nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("unknown action name", func(t *testing.T) {
		w := do(t, r, http.MethodPost, "/api/v1/cases/"+id+"/actions", header{"agent-1", "agent"},
			gin.H{"action": "teleport"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("undefined transition", func(t *testing.T) {
		w := do(t, r, http.MethodPost, "/api/v1/cases/"+id+"/actions", header{"fin-1", "finance"},
			gin.H{"action": "confirm_finance"})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("forbidden role", func(t *testing.T) {
		w := do(t, r, http.MethodPost, "/api/v1/cases/"+id+"/actions", header{"calc-1", "calculator"},
			gin.H{"action": "submit_to_calculation"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("owner advances the case", func(t *testing.T) {
		w := do(t, r, http.MethodPost, "/api/v1/cases/"+id+"/actions", header{"agent-1", "agent"},
			gin.H{"action": "submit_to_calculation", "payload": gin.H{"note": "docs complete"}})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		got := decode(t, w)["case"].(map[string]any)
		assert.Equal(t, "pending_calculation", got["status"])
		assert.Equal(t, false, got["lock_active"])
	})
}

func TestLockEndpoints(t *testing.T) {
	r, _ := newTestRouter(t)
	id := createCase(t, r)
	w := do(t, r, http.MethodPost, "/api/v1/cases/"+id+"/claim", header{"agent-1", "agent"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	t.Run("renew by owner", func(t *testing.T) {
		w := do(t, r, http.MethodPost, "/api/v1/cases/"+id+"/lock/renew", header{"agent-1", "agent"}, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("release by stranger conflicts", func(t *testing.T) {
		w := do(t, r, http.MethodPost, "/api/v1/cases/"+id+"/lock/release", header{"agent-2", "agent"}, nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("release by supervisor", func(t *testing.T) {
		w := do(t, r, http.MethodPost, "/api/v1/cases/"+id+"/lock/release", header{"boss-1", "supervisor"}, nil)
		require.Equal(t, http.StatusOK, w.Code)
		got := decode(t, w)["case"].(map[string]any)
		assert.Equal(t, false, got["lock_active"])
	})
}

func TestAuditAndQueues(t *testing.T) {
	r, _ := newTestRouter(t)
	id := createCase(t, r)
	w := do(t, r, http.MethodPost, "/api/v1/cases/"+id+"/claim", header{"agent-1", "agent"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	t.Run("audit trail lists events in order", func(t *testing.T) {
		w := do(t, r, http.MethodGet, "/api/v1/cases/"+id+"/audit", header{"boss-1", "supervisor"}, nil)
		require.Equal(t, http.StatusOK, w.Code)
		entries := decode(t, w)["entries"].([]any)
		require.Len(t, entries, 2)
		assert.Equal(t, "case_created", entries[0].(map[string]any)["event_type"])
		assert.Equal(t, "claim", entries[1].(map[string]any)["event_type"])
	})

	t.Run("queues fall back to the database", func(t *testing.T) {
		w := do(t, r, http.MethodGet, "/api/v1/queues", header{"boss-1", "supervisor"}, nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "db", body["source"])
		queues := body["queues"].(map[string]any)
		assert.Equal(t, float64(1), queues["in_progress"])
	})
}
