package router

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"useradmin/internal/config"
	"useradmin/internal/handler"
	"useradmin/internal/metrics"
	"useradmin/internal/middleware"
	"useradmin/internal/model"
)

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	userHandler *handler.UserHandler,
	authHandler *handler.AuthHandler,
	seedHandler *handler.SeedHandler,
	users middleware.UserLookup,
	sessions middleware.RevocationChecker,
) {
	e.Use(echomw.RequestID())
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(metrics.Middleware())

	e.Validator = NewValidator()

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", metrics.Handler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	jwt := middleware.JWT([]byte(cfg.JWTSecret))

	// Public routes
	e.POST("/auth/login", authHandler.Login)
	e.POST("/auth/refresh", authHandler.Refresh)
	e.POST("/auth/logout", authHandler.Logout, jwt)

	// Panel routes require a moderator or an admin
	panel := e.Group("", jwt, middleware.Actor(users, sessions), middleware.RequireRole(model.RoleModerator))

	panel.GET("/", userHandler.ListUsers)
	panel.GET("/users/", userHandler.ListUsers)
	panel.GET("/users/create/", userHandler.CreateForm)
	panel.POST("/users/create/", userHandler.CreateUser)
	panel.GET("/users/edit-:id/", userHandler.EditForm)
	panel.POST("/users/edit-:id/", userHandler.EditUser)
	panel.POST("/users/delete/", userHandler.DeleteUser)
	panel.POST("/users/delete-:id/", userHandler.DeleteUser)
	panel.GET("/users/get_excel/", userHandler.ExportUsers)

	panel.POST("/users/seed/", seedHandler.SeedUsers, middleware.RequireRole(model.RoleAdmin))
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator returns the validator installed on the echo instance.
func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
