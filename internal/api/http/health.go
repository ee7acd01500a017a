package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// HealthResponse reports the service and the state of its two hard
// dependencies: Postgres (cases, attempts, audit) and redis (events,
// queue counters).
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	DB        string    `json:"db,omitempty"`
	Redis     string    `json:"redis,omitempty"`
}

type HealthHandler struct {
	serviceName string
	version     string
	db          *pgxpool.Pool
	redis       *redis.Client
}

func NewHealthHandler(serviceName, version string, db *pgxpool.Pool, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{
		serviceName: serviceName,
		version:     version,
		db:          db,
		redis:       rdb,
	}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Service:   h.serviceName,
		Version:   h.version,
		DB:        h.probeDB(ctx),
		Redis:     h.probeRedis(ctx),
	}

	code := http.StatusOK
	if resp.DB == "down" || resp.Redis == "down" {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}

func (h *HealthHandler) probeDB(ctx context.Context) string {
	if h.db == nil {
		return "disabled"
	}
	if err := h.db.Ping(ctx); err != nil {
		return "down"
	}
	return "up"
}

func (h *HealthHandler) probeRedis(ctx context.Context) string {
	if h.redis == nil {
		return "disabled"
	}
	if err := h.redis.Ping(ctx).Err(); err != nil {
		return "down"
	}
	return "up"
}

func (h *HealthHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.HealthCheck)
	r.GET("/healthz", h.HealthCheck)
}
