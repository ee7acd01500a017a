package bootstrap

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	httpapi "github.com/credfluxo/restructure-backend/internal/api/http"
	"github.com/credfluxo/restructure-backend/internal/api/http/middleware"
	auditrepo "github.com/credfluxo/restructure-backend/internal/audit/repository"
	"github.com/credfluxo/restructure-backend/internal/events"
	"github.com/credfluxo/restructure-backend/internal/locking"
	simhttp "github.com/credfluxo/restructure-backend/internal/simulation/http"
	simrepo "github.com/credfluxo/restructure-backend/internal/simulation/repository"
	simservice "github.com/credfluxo/restructure-backend/internal/simulation/service"
	wfhttp "github.com/credfluxo/restructure-backend/internal/workflow/http"
	"github.com/credfluxo/restructure-backend/internal/workflow/permissions"
	wfrepo "github.com/credfluxo/restructure-backend/internal/workflow/repository"
	wfservice "github.com/credfluxo/restructure-backend/internal/workflow/service"
)

type RouterDeps struct {
	ServiceName    string
	Version        string
	DB             *pgxpool.Pool
	Redis          *redis.Client
	Log            zerolog.Logger
	LockTTL        time.Duration
	CORSOrigins    []string
	RateLimitRPS   int
	RateLimitBurst int
}

func SetGinMode(env string) {
	if env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(dep.Log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     dep.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-Actor-Id", "X-Actor-Role", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, dep.DB, dep.Redis)
	healthHandler.RegisterRoutes(r)

	caseRepo := wfrepo.NewCaseRepo(dep.DB)
	attemptRepo := simrepo.NewAttemptRepo(dep.DB)
	trail := auditrepo.NewAuditRepo(dep.DB)

	publisher := events.NewRedisPublisher(dep.Redis)
	mutex := locking.NewKeyedMutex()
	clock := locking.SystemClock{}
	lockManager := locking.NewManager(caseRepo, mutex, clock, dep.Log)
	matrix := permissions.New()

	sm := wfservice.NewStateMachine(
		caseRepo, matrix, lockManager, mutex, attemptRepo, publisher,
		wfservice.Config{LockTTL: dep.LockTTL}, dep.Log,
	)
	store := simservice.NewStore(attemptRepo, caseRepo, matrix, mutex, publisher, clock, dep.Log)

	api := r.Group("/api/v1")
	api.Use(middleware.WithActor())
	api.Use(middleware.RateLimit(rate.Limit(dep.RateLimitRPS), dep.RateLimitBurst))

	wfhttp.Register(api, sm, caseRepo, trail, publisher)
	simhttp.Register(api, store)

	return r
}
