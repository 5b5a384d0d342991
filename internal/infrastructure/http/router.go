package http

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/projexia/projexia/internal/infrastructure/http/handlers"
)

// OpsConfig describes the operational endpoints served next to the API.
type OpsConfig struct {
	Environment string
	Checks      map[string]handlers.Check
	// Swagger mounts the OpenAPI UI at /swagger/*.
	Swagger bool
}

// RegisterOps mounts the health probes, Prometheus metrics and Swagger UI.
func RegisterOps(e *echo.Echo, cfg OpsConfig) {
	healthHandler := handlers.NewHealthHandler(cfg.Environment)
	readinessHandler := handlers.NewReadinessHandler(cfg.Checks)

	e.GET("/health", healthHandler.Liveness)          // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandler())

	if cfg.Swagger {
		e.GET("/swagger/*", echoSwagger.WrapHandler)
	}
}
