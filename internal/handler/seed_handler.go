package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"useradmin/internal/service"
)

// SeedHandler handles seed data endpoints.
type SeedHandler struct {
	seedService service.SeedService
}

// NewSeedHandler creates a new seed handler.
func NewSeedHandler(seedService service.SeedService) *SeedHandler {
	return &SeedHandler{seedService: seedService}
}

// SeedUsersResponse represents the seed response.
type SeedUsersResponse struct {
	Message string `json:"message"`
	Created int    `json:"created"`
	Skipped int    `json:"skipped"`
}

// SeedUsers godoc
// @Summary Load the demo users
// @Description Ten users per role; users whose username or email already exists are skipped.
// @Tags seed
// @Produce json
// @Security BearerAuth
// @Success 200 {object} SeedUsersResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /users/seed/ [post]
func (h *SeedHandler) SeedUsers(c echo.Context) error {
	result, err := h.seedService.SeedDemoUsers(c.Request().Context())
	if err != nil {
		return mapError(c, err)
	}

	return c.JSON(http.StatusOK, SeedUsersResponse{
		Message: "Users seeded successfully",
		Created: result.Created,
		Skipped: result.Skipped,
	})
}
