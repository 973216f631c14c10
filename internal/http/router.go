package http

import (
	"context"
	"os"
	"time"

	"github.com/geocoder89/whatsflow/internal/config"
	"github.com/geocoder89/whatsflow/internal/http/handlers"
	"github.com/geocoder89/whatsflow/internal/http/middlewares"
	"github.com/geocoder89/whatsflow/internal/ingress"
	"github.com/geocoder89/whatsflow/internal/repo/postgres"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// NewRouter builds the public ingress surface (Altegio + WhatsApp webhooks,
// health/ready) and the admin job-management surface, guarded by an
// HS256-signed bearer JWT carrying the admin scope.
func NewRouter(pool *pgxpool.Pool, cfg config.Config) *gin.Engine {
	if os.Getenv("APP_ENV") != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("whatsflow-api"))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger())
	r.Use(middlewares.CORSMiddleware([]string{
		"http://localhost:3000",
	}))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.MaxBodyBytes(1 << 20)) // 1MB max body
	r.Use(middlewares.RequireJSON())

	readyCheck := func() error {
		if pool == nil {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()
		return pool.Ping(ctx)
	}

	eventsRepo := postgres.NewEventsRepo(pool)
	jobsRepo := postgres.NewJobsRepo(pool, nil)

	h := handlers.NewHealthHandler(readyCheck)
	dedup := ingress.New(eventsRepo, cfg.AltegioWebhookSecret)
	webhooksHandler := handlers.NewWebhooksHandler(dedup, cfg.WhatsAppWebhookVerifyToken)
	adminJobsHandler := handlers.NewAdminJobsHandler(jobsRepo)

	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	r.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	r.POST("/webhooks/altegio", webhooksHandler.Altegio)
	r.GET("/webhook/whatsapp", webhooksHandler.WhatsAppVerify)
	r.POST("/webhook/whatsapp", webhooksHandler.WhatsAppIngest)

	admin := r.Group("/admin")
	admin.Use(middlewares.RequireAdminToken(cfg.AdminAPIToken))
	{
		admin.GET("/jobs", adminJobsHandler.List)
		admin.GET("/jobs/:id", adminJobsHandler.GetByID)
		admin.POST("/jobs/:id/retry", adminJobsHandler.Retry)
		admin.POST("/jobs/reprocess-dead", adminJobsHandler.ReprocessDead)
	}

	return r
}
