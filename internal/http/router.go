package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/geocoder89/requesthub/internal/http/handlers"
	"github.com/geocoder89/requesthub/internal/http/middlewares"
	"github.com/geocoder89/requesthub/internal/observability"
)

type RouterDeps struct {
	Requests *handlers.RequestsHandler
	DBPing   handlers.PingFunc

	Prom  *observability.Prom
	Redis *redis.Client
	Auth  middlewares.TokenVerifier
	Log   *slog.Logger

	Env             string
	AllowedOrigins  []string
	RateLimit       int
	RateLimitWindow time.Duration
}

func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(deps.Log))
	r.Use(otelgin.Middleware("requesthub"))

	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}

	r.Use(middlewares.CORSMiddleware(deps.AllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(1 << 20))
	r.Use(middlewares.RequireJSON())

	r.GET("/healthz", handlers.Healthz())
	r.GET("/readyz", handlers.Readyz(deps.DBPing))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/")

	if deps.Redis != nil {
		api.Use(middlewares.RateLimiter(deps.Redis, deps.RateLimit, deps.RateLimitWindow, deps.Log))
	}

	users := api.Group("/users/:userId")
	{
		users.GET("/requests", deps.Requests.ListOwn)
		users.POST("/requests", deps.Requests.Create)
		users.PATCH("/requests/:requestId/cancel", deps.Requests.Cancel)

		users.GET("/events/:eventId/requests", deps.Requests.ListForEvent)
		users.PATCH("/events/:eventId/requests", deps.Requests.Decide)
	}

	internal := api.Group("/internal", middlewares.RequireServiceToken(deps.Auth))
	{
		internal.POST("/requests/stats", deps.Requests.ConfirmedStats)
		internal.GET("/requests/confirmed", deps.Requests.HasConfirmed)
	}

	return r
}
