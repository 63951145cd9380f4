package http

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	custommiddleware "papertrade/internal/middleware"
)

// RouterConfig holds all dependencies for routing
type RouterConfig struct {
	Auth        *custommiddleware.Auth
	AuthHandler *AuthHandler
	UserHandler *UserHandler
}

// SetupRoutes configures all HTTP routes
func SetupRoutes(e *echo.Echo, config *RouterConfig) {
	// Middleware
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/health"
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
	e.Use(middleware.Secure())
	e.HTTPErrorHandler = envelopeErrorHandler

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return SuccessResponse(c, map[string]interface{}{
			"status":    "healthy",
			"service":   "papertrade-api",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	// API group
	api := e.Group("/api")

	// Auth routes (public)
	auth := api.Group("/auth")
	{
		auth.POST("/login", config.AuthHandler.Login)
		auth.POST("/logout", config.AuthHandler.Logout)
		auth.POST("/register", config.AuthHandler.Register)
		auth.GET("/check", config.AuthHandler.CheckUsername)
	}

	// User routes (protected)
	user := api.Group("/user", config.Auth.Middleware)
	{
		user.GET("/portfolio", config.UserHandler.GetPortfolio)
		user.GET("/history", config.UserHandler.GetHistory)
		user.GET("/quote", config.UserHandler.GetQuote)
		user.POST("/buy", config.UserHandler.Buy)
		user.POST("/sell", config.UserHandler.Sell)
		user.POST("/password", config.UserHandler.ChangePassword)
	}
}
