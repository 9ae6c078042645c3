package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/evoquefitness/access-gateway/internal/api/handler"
	"github.com/evoquefitness/access-gateway/internal/api/middleware"
	"github.com/evoquefitness/access-gateway/internal/core/ports"
)

// Deps carries everything the router needs, wired by the application root.
type Deps struct {
	Auth      ports.AuthService
	Store     ports.SessionStore
	Guard     ports.Guard
	Health    *handler.HealthDependenciesHandler
	JWTSecret string
	Log       zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("access_gateway"))
	e.Use(middleware.SessionToken(deps.JWTSecret))

	// --- Auth routes ---
	authHandler := handler.NewAuthHandler(deps.Auth, deps.Store, deps.JWTSecret)
	e.POST("/auth/login", authHandler.Login)
	e.POST("/auth/logout", authHandler.Logout)
	e.GET("/auth/session", authHandler.Session)

	// --- Protected sector views ---
	sectorHandler := handler.NewSectorHandler()
	guarded := e.Group("/setor", middleware.Guard(deps.Guard))
	guarded.GET("/:slug", sectorHandler.View)
	guarded.GET("/:slug/*", sectorHandler.View)
	e.GET("/access-denied", sectorHandler.AccessDenied)

	// --- Health probes and metrics (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	e.GET("/health", healthHandler.Liveness)          // liveness  – is the process alive?
	e.GET("/health/ready", deps.Health.Readiness)     // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandler())

	return e
}
