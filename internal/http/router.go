package http

import (
	"log/slog"
	"time"

	"github.com/geocoder89/mealplanner/internal/auth"
	"github.com/geocoder89/mealplanner/internal/conversation"
	"github.com/geocoder89/mealplanner/internal/domain/user"
	"github.com/geocoder89/mealplanner/internal/http/handlers"
	"github.com/geocoder89/mealplanner/internal/http/middlewares"
	"github.com/geocoder89/mealplanner/internal/identity"
	"github.com/geocoder89/mealplanner/internal/observability"
	"github.com/geocoder89/mealplanner/internal/planner"
	"github.com/geocoder89/mealplanner/internal/reservation"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxBodyBytes = 64 << 10

type Deps struct {
	Env         string
	ServiceName string
	Tracing     bool
	Log         *slog.Logger
	Prom        *observability.Prom
	Gatherer    prometheus.Gatherer

	Engine       *conversation.Engine
	Identity     *identity.Registry
	Catalog      handlers.MenuReader
	Planner      *planner.Store
	Reservations *reservation.Service
	JWT          *auth.Manager
	Ready        map[string]handlers.Pinger

	// ChatSecret must accompany every chat event; the chatId in the body is
	// trusted only behind it.
	ChatSecret string

	RateLimitCount  int
	RateLimitWindow time.Duration
}

// NewRouter wires the chat transport, the admin API and the reservation API.
// It returns the rate limiter so the caller can prune it periodically.
func NewRouter(d Deps) (*gin.Engine, *middlewares.RateLimiter) {
	if d.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(gin.Recovery())
	if d.Tracing {
		r.Use(otelgin.Middleware(d.ServiceName))
	}
	r.Use(d.Prom.GinHandleMiddleware())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))
	r.Use(middlewares.RequireJSON())

	health := handlers.NewHealthHandler(d.Ready)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))

	limiter := middlewares.NewRateLimiter(d.RateLimitCount, d.RateLimitWindow)
	authMW := middlewares.NewAuthMiddleware(d.JWT)

	chat := handlers.NewChatHandler(d.Engine)
	r.POST("/chat/events",
		limiter.Middleware(middlewares.KeyByIP),
		middlewares.RequireSharedSecret(middlewares.ChatSecretHeader, d.ChatSecret),
		chat.PostEvent,
	)

	authH := handlers.NewAuthHandler(d.Identity, d.JWT)
	r.POST("/auth/login", limiter.Middleware(middlewares.KeyByIP), authH.Login)

	api := r.Group("/")
	api.Use(authMW.RequireAuth(), limiter.Middleware(middlewares.KeyByUserOrIP))

	schedule := handlers.NewScheduleHandler(d.Planner, d.Identity, d.Catalog)
	api.GET("/schedule", schedule.Get)
	api.GET("/schedule/me", schedule.Mine)
	api.GET("/menu/:week/:day", schedule.Menu)

	res := handlers.NewReservationHandler(d.Reservations)
	api.GET("/reservations", res.List)
	api.GET("/reservations/:date", res.Get)
	api.PUT("/reservations/:date", res.Put)

	admin := api.Group("/admin")
	admin.Use(authMW.RequireRole(string(user.RoleAdmin)))

	adminH := handlers.NewAdminHandler(d.Identity, d.Planner, d.Log)
	admin.GET("/users", adminH.ListUsers)
	admin.POST("/users", adminH.CreateUser)
	admin.PATCH("/users/:username", adminH.SetActive)
	admin.GET("/audit", adminH.AuditLog)
	admin.GET("/export.csv", adminH.ExportCSV)

	return r, limiter
}
