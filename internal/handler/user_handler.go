package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"useradmin/internal/errors"
	"useradmin/internal/middleware"
	"useradmin/internal/model"
	"useradmin/internal/service"
)

const (
	// MsgUserAdded is returned after a successful create.
	MsgUserAdded = "The user has been added successfully"
	// MsgUserEdited is returned after a successful edit.
	MsgUserEdited = "The user has been edited successfully"

	exportFilename    = "users.xlsx"
	exportContentType = "text/vnd.ms-excel; charset=utf-8"
	listPath          = "/users/"
)

// UserHandler serves the user administration panel.
type UserHandler struct {
	users  service.UserService
	export service.ExportService
}

// NewUserHandler creates a handler layer.
func NewUserHandler(users service.UserService, export service.ExportService) *UserHandler {
	return &UserHandler{users: users, export: export}
}

// UserListResponse is one page of users plus the role labels used to display them.
type UserListResponse struct {
	*service.UserPage
	RoleLabels map[model.Role]string `json:"role_labels"`
}

// UserResponse is returned after a successful create or edit.
type UserResponse struct {
	Message string      `json:"message"`
	User    *model.User `json:"user"`
}

// ListUsers godoc
// @Summary List users
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number, defaults to 1"
// @Success 200 {object} UserListResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /users/ [get]
func (h *UserHandler) ListUsers(c echo.Context) error {
	// a missing or malformed page is page 1
	page, _ := strconv.Atoi(c.QueryParam("page"))

	result, err := h.users.ListUsers(c.Request().Context(), page)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, UserListResponse{
		UserPage:   result,
		RoleLabels: model.RoleLabels(),
	})
}

// CreateForm godoc
// @Summary Describe the create form
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.CreateForm
// @Failure 401 {object} errors.ErrorResponse
// @Router /users/create/ [get]
func (h *UserHandler) CreateForm(c echo.Context) error {
	return c.JSON(http.StatusOK, h.users.CreateForm())
}

// CreateUser godoc
// @Summary Create user
// @Tags users
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Security BearerAuth
// @Param user body service.CreateUserInput true "User form"
// @Success 201 {object} UserResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /users/create/ [post]
func (h *UserHandler) CreateUser(c echo.Context) error {
	var input service.CreateUserInput
	if err := c.Bind(&input); err != nil {
		return badRequest()
	}

	user, err := h.users.CreateUser(c.Request().Context(), input)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusCreated, UserResponse{Message: MsgUserAdded, User: user})
}

// EditForm godoc
// @Summary Describe the edit form of a user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} service.EditForm
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /users/edit-{id}/ [get]
func (h *UserHandler) EditForm(c echo.Context) error {
	id, ok := userID(c)
	if !ok {
		return mapError(c, errors.ErrUserNotFound)
	}
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return echo.ErrUnauthorized
	}

	form, err := h.users.EditForm(c.Request().Context(), id, actor)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, form)
}

// EditUser godoc
// @Summary Edit user
// @Description Password and role are ignored when a moderator edits an admin.
// @Tags users
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param user body service.EditUserInput true "User form"
// @Success 200 {object} UserResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /users/edit-{id}/ [post]
func (h *UserHandler) EditUser(c echo.Context) error {
	id, ok := userID(c)
	if !ok {
		return mapError(c, errors.ErrUserNotFound)
	}
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return echo.ErrUnauthorized
	}

	var input service.EditUserInput
	if err := c.Bind(&input); err != nil {
		return badRequest()
	}

	user, err := h.users.EditUser(c.Request().Context(), id, input, actor)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, UserResponse{Message: MsgUserEdited, User: user})
}

// DeleteUser godoc
// @Summary Delete user
// @Description Redirects back to the referring page. Without an id nothing is deleted.
// @Tags users
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 302
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /users/delete-{id}/ [post]
func (h *UserHandler) DeleteUser(c echo.Context) error {
	if c.Param("id") != "" {
		id, ok := userID(c)
		if !ok {
			return mapError(c, errors.ErrUserNotFound)
		}
		if err := h.users.DeleteUser(c.Request().Context(), id); err != nil {
			return mapError(c, err)
		}
	}

	target := c.Request().Referer()
	if target == "" {
		target = listPath
	}
	return c.Redirect(http.StatusFound, target)
}

// ExportUsers godoc
// @Summary Export all users as a spreadsheet
// @Tags users
// @Produce application/vnd.ms-excel
// @Security BearerAuth
// @Success 200 {file} file
// @Failure 500 {object} errors.ErrorResponse
// @Router /users/get_excel/ [get]
func (h *UserHandler) ExportUsers(c echo.Context) error {
	data, err := h.export.Export(c.Request().Context())
	if err != nil {
		return mapError(c, err)
	}

	header := c.Response().Header()
	header.Set(echo.HeaderContentDisposition, `inline; filename="`+exportFilename+`"`)
	header.Set("Pragma", "public")
	header.Set("Cache-Control", "maxage=1")
	return c.Blob(http.StatusOK, exportContentType, data)
}

func userID(c echo.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func badRequest() error {
	return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
		Error: "invalid request body",
		Code:  "INVALID_REQUEST",
	})
}

// mapError converts a service error into the JSON error response.
func mapError(c echo.Context, err error) error {
	httpErr := errors.MapErrorToHTTP(err)
	if httpErr.StatusCode >= http.StatusInternalServerError {
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Request().URL.Path, err)
	}
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
}
