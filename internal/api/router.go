package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/projexia/projexia/internal/api/handler"
	"github.com/projexia/projexia/internal/api/middleware"
	"github.com/projexia/projexia/internal/core/domain"
	"github.com/projexia/projexia/internal/core/ports"
	infrahttp "github.com/projexia/projexia/internal/infrastructure/http"
	"github.com/projexia/projexia/internal/infrastructure/http/handlers"
	"github.com/projexia/projexia/internal/pkg/config"
)

const (
	bodyLimit          = "2M"
	rateLimiterExpires = 3 * time.Minute
)

// Deps groups everything the router needs. OAuth is nil when Google sign-in
// is not configured.
type Deps struct {
	Config     *config.Config
	Log        zerolog.Logger
	Auth       ports.AuthService
	OAuth      ports.OAuthService
	Projects   ports.ProjectService
	Tasks      ports.TaskService
	Activity   ports.ActivityService
	Membership ports.Membership
	Blacklist  ports.TokenBlacklist
	Checks     map[string]handlers.Check
	// Registerer receives the HTTP metrics. Defaults to the global registry.
	Registerer prometheus.Registerer
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	cfg := d.Config

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log, cfg.IsDevelopment())

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, handler.IdempotencyHeader},
		AllowCredentials: true,
	}))
	e.Use(echomiddleware.BodyLimit(bodyLimit))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "projexia",
		Registerer: d.Registerer,
	}))

	// --- Ops: health probes, metrics, swagger (no auth required) ---
	infrahttp.RegisterOps(e, infrahttp.OpsConfig{
		Environment: cfg.Env,
		Checks:      d.Checks,
		Swagger:     true,
	})

	authHandler := handler.NewAuthHandler(d.Auth)
	oauthHandler := handler.NewOAuthHandler(d.OAuth, d.Auth, cfg.FrontendURL, d.Log)
	projectHandler := handler.NewProjectHandler(d.Projects, d.Activity)
	taskHandler := handler.NewTaskHandler(d.Tasks)

	requireAuth := middleware.Auth(cfg.JWTSecret, d.Blacklist)
	member := func(param string) echo.MiddlewareFunc {
		return middleware.ProjectAccess(d.Membership, param)
	}
	projectAdmin := middleware.ProjectAccess(d.Membership, "id", domain.MemberAdmin)

	// --- Browser OAuth flow ---
	e.GET("/auth/google", oauthHandler.Begin)
	e.GET("/auth/google/callback", oauthHandler.Callback)
	e.GET("/auth/logout", oauthHandler.Logout, middleware.OptionalAuth(cfg.JWTSecret, d.Blacklist))

	apiGroup := e.Group("/api", rateLimiter(cfg.RateLimitPerMinute))

	// --- Auth routes ---
	auth := apiGroup.Group("/auth")
	auth.POST("/signup", authHandler.Signup)
	auth.POST("/register", authHandler.Signup)
	auth.POST("/login", authHandler.Login)
	auth.POST("/logout", authHandler.Logout, requireAuth)
	auth.GET("/me", authHandler.Me, requireAuth)
	auth.GET("/current_user", authHandler.Me, requireAuth)
	auth.PUT("/me/avatar", authHandler.UpdateAvatar, requireAuth)

	// --- Project routes ---
	projects := apiGroup.Group("/projects", requireAuth)
	projects.GET("", projectHandler.List)
	projects.POST("", projectHandler.Create)
	projects.GET("/:id", projectHandler.Get, member("id"))
	projects.PUT("/:id", projectHandler.Update, projectAdmin)
	projects.DELETE("/:id", projectHandler.Delete, projectAdmin)
	projects.GET("/:id/activity", projectHandler.Activity, member("id"))
	projects.POST("/:id/invite", projectHandler.Invite, projectAdmin)
	projects.POST("/:id/members", projectHandler.Invite, projectAdmin)
	projects.PUT("/:id/members/:memberId", projectHandler.UpdateMemberRole, projectAdmin)
	projects.DELETE("/:id/members/:memberId", projectHandler.RemoveMember, projectAdmin)

	// --- Task routes (task-scoped checks run in the service) ---
	tasks := apiGroup.Group("/tasks", requireAuth)
	tasks.GET("/project/:projectId", taskHandler.ListByProject, member("projectId"))
	tasks.POST("", taskHandler.Create)
	tasks.GET("/:id", taskHandler.Get)
	tasks.PUT("/:id", taskHandler.Update)
	tasks.PATCH("/:id/status", taskHandler.UpdateStatus)
	tasks.DELETE("/:id", taskHandler.Delete)
	tasks.POST("/:id/comments", taskHandler.AddComment)

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			evt := log.Info()
			switch {
			case v.Status >= http.StatusInternalServerError:
				evt = log.Error().Err(v.Error)
			case v.Error != nil:
				evt = log.Warn().Err(v.Error)
			}
			evt.
				Str("request_id", v.RequestID).
				Str("method", v.Method).
				Str("uri", v.URI).
				Str("remote_ip", v.RemoteIP).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	})
}

// rateLimiter allows perMinute requests per client IP with a burst of the
// same size.
func rateLimiter(perMinute int) echo.MiddlewareFunc {
	store := echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(perMinute) / 60),
		Burst:     perMinute,
		ExpiresIn: rateLimiterExpires,
	})
	return echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Store: store,
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests, please try again later")
		},
	})
}
