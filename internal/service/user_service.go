package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/gommon/log"
	"gorm.io/gorm"

	"useradmin/internal/auth"
	"useradmin/internal/cache"
	apperrors "useradmin/internal/errors"
	"useradmin/internal/metrics"
	"useradmin/internal/model"
	"useradmin/internal/repository"
)

const (
	userCacheTTL = 5 * time.Minute
	// DefaultPageSize is used when the configured page size is not positive.
	DefaultPageSize = 10
)

// Actor is the authenticated user performing an operation.
type Actor struct {
	ID   uint       `json:"id"`
	Role model.Role `json:"role"`
}

// CreateUserInput is a submitted create form.
type CreateUserInput struct {
	Username             string     `json:"username" form:"username" validate:"required"`
	Email                string     `json:"email" form:"email" validate:"required"`
	Password             string     `json:"password" form:"password" validate:"required"`
	PasswordConfirmation string     `json:"password_confirmation" form:"password_confirmation" validate:"eqfield=Password"`
	Role                 model.Role `json:"role" form:"role" validate:"required,oneof=ROLE_ADMIN ROLE_MODERATOR ROLE_USER"`
}

// EditUserInput is a submitted edit form. Password and Role are only honoured
// when CanEditRoleAndPassword allows it; a blank password keeps the current hash.
type EditUserInput struct {
	Username             string     `json:"username" form:"username" validate:"required"`
	Email                string     `json:"email" form:"email" validate:"required"`
	Password             string     `json:"password,omitempty" form:"password"`
	PasswordConfirmation string     `json:"password_confirmation,omitempty" form:"password_confirmation"`
	Role                 model.Role `json:"role,omitempty" form:"role"`
}

// RoleChoice is one selectable option of the role field.
type RoleChoice struct {
	Label string     `json:"label"`
	Value model.Role `json:"value"`
}

// CreateForm describes the create form for the presentation layer.
type CreateForm struct {
	Action      string       `json:"action"`
	Fields      []string     `json:"fields"`
	RoleChoices []RoleChoice `json:"role_choices"`
}

// EditForm describes the edit form of one user as seen by one actor.
type EditForm struct {
	Action      string       `json:"action"`
	UserID      uint         `json:"user_id"`
	Username    string       `json:"username"`
	Email       string       `json:"email"`
	Role        model.Role   `json:"role,omitempty"`
	Fields      []string     `json:"fields"`
	RoleChoices []RoleChoice `json:"role_choices,omitempty"`
}

// UserPage is one page of the user list.
type UserPage struct {
	Users    []model.User `json:"users"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
	Total    int64        `json:"total"`
	Pages    int          `json:"pages"`
}

// UserService exposes user administration operations.
type UserService interface {
	CreateUser(ctx context.Context, input CreateUserInput) (*model.User, error)
	EditUser(ctx context.Context, id uint, input EditUserInput, actor Actor) (*model.User, error)
	DeleteUser(ctx context.Context, id uint) error
	GetUser(ctx context.Context, id uint) (*model.User, error)
	ListUsers(ctx context.Context, page int) (*UserPage, error)
	CreateForm() *CreateForm
	EditForm(ctx context.Context, id uint, actor Actor) (*EditForm, error)
}

type userService struct {
	repo     repository.UserRepository
	hasher   auth.PasswordHasher
	cache    *cache.Client
	logger   *log.Logger
	validate *validator.Validate
	pageSize int
}

// NewUserService builds a UserService. cache may be nil.
func NewUserService(
	repo repository.UserRepository,
	hasher auth.PasswordHasher,
	cache *cache.Client,
	logger *log.Logger,
	pageSize int,
) UserService {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &userService{
		repo:     repo,
		hasher:   hasher,
		cache:    cache,
		logger:   logger,
		validate: newValidator(),
		pageSize: pageSize,
	}
}

// CanEditRoleAndPassword reports whether actingRole may change the password
// and role of a user whose primary role is targetRole. A moderator can never
// touch an admin's password or role.
func CanEditRoleAndPassword(actingRole, targetRole model.Role) bool {
	return !(targetRole == model.RoleAdmin && actingRole == model.RoleModerator)
}

// RoleChoices returns the roles actingRole may assign on the edit form.
func RoleChoices(actingRole model.Role) []RoleChoice {
	choices := []RoleChoice{
		{Label: model.RoleUser.Label(), Value: model.RoleUser},
		{Label: model.RoleModerator.Label(), Value: model.RoleModerator},
	}
	if actingRole == model.RoleAdmin {
		choices = append(choices, RoleChoice{Label: model.RoleAdmin.Label(), Value: model.RoleAdmin})
	}
	return choices
}

func hasChoice(choices []RoleChoice, role model.Role) bool {
	for _, c := range choices {
		if c.Value == role {
			return true
		}
	}
	return false
}

func (s *userService) cacheKey(id uint) string {
	return fmt.Sprintf("user:%d", id)
}

// CreateForm returns the fields and role choices of the create form.
func (s *userService) CreateForm() *CreateForm {
	return &CreateForm{
		Action: "add",
		Fields: []string{"username", "email", "password", "password_confirmation", "role"},
		RoleChoices: []RoleChoice{
			{Label: model.RoleUser.Label(), Value: model.RoleUser},
			{Label: model.RoleModerator.Label(), Value: model.RoleModerator},
			{Label: model.RoleAdmin.Label(), Value: model.RoleAdmin},
		},
	}
}

// CreateUser validates the submission and inserts a new user.
// Nothing is written unless every check passes.
func (s *userService) CreateUser(ctx context.Context, input CreateUserInput) (*model.User, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(input.Email)

	errs := s.structErrors(input)
	checkPasswordLength(input.Password, &errs)
	if err := s.checkUnique(ctx, input.Email, input.Username, 0, &errs); err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		metrics.ValidationFailures.WithLabelValues("create").Inc()
		return nil, errs
	}

	user := &model.User{
		Username: input.Username,
		Email:    input.Email,
		Roles:    model.Roles{input.Role},
	}
	hash, err := s.hasher.Hash(user, input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	metrics.UserMutations.WithLabelValues("create").Inc()
	s.logger.Infof("user %d (%s) created with role %s", user.ID, user.Username, input.Role)
	return user, nil
}

// EditUser applies a submitted edit form to user id on behalf of actor.
func (s *userService) EditUser(ctx context.Context, id uint, input EditUserInput, actor Actor) (*model.User, error) {
	target, err := s.findUser(ctx, id)
	if err != nil {
		return nil, err
	}

	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(input.Email)

	canEditSecrets := CanEditRoleAndPassword(actor.Role, target.PrimaryRole())

	errs := s.structErrors(input)
	if canEditSecrets {
		if input.Password != input.PasswordConfirmation {
			errs.Add("password", apperrors.MsgPasswordsMatch)
		}
		checkPasswordLength(input.Password, &errs)
		switch {
		case input.Role == "":
			errs.Add("role", apperrors.MsgNotBlank)
		case !hasChoice(RoleChoices(actor.Role), input.Role):
			errs.Add("role", apperrors.MsgInvalidChoice)
		}
	}
	if err := s.checkUnique(ctx, input.Email, input.Username, target.ID, &errs); err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		metrics.ValidationFailures.WithLabelValues("edit").Inc()
		return nil, errs
	}

	updated := *target
	updated.Username = input.Username
	updated.Email = input.Email
	if canEditSecrets {
		updated.Roles = model.Roles{input.Role}
		if input.Password != "" {
			hash, err := s.hasher.Hash(&updated, input.Password)
			if err != nil {
				return nil, fmt.Errorf("hash password: %w", err)
			}
			updated.PasswordHash = hash
		}
	}

	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, fmt.Errorf("update user %d: %w", id, err)
	}
	s.cache.Delete(ctx, s.cacheKey(id))

	metrics.UserMutations.WithLabelValues("edit").Inc()
	s.logger.Infof("user %d edited by %d (role and password editable: %t)", id, actor.ID, canEditSecrets)
	return &updated, nil
}

// DeleteUser removes user id for good.
func (s *userService) DeleteUser(ctx context.Context, id uint) error {
	user, err := s.findUser(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, user); err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	s.cache.Delete(ctx, s.cacheKey(id))

	metrics.UserMutations.WithLabelValues("delete").Inc()
	s.logger.Infof("user %d (%s) deleted", id, user.Username)
	return nil
}

// GetUser returns a user through the cache. The cached copy carries no
// password hash, so it must never be written back.
func (s *userService) GetUser(ctx context.Context, id uint) (*model.User, error) {
	var cached model.User
	if s.cache.GetJSON(ctx, s.cacheKey(id), &cached) {
		return &cached, nil
	}

	user, err := s.findUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetJSON(ctx, s.cacheKey(id), user, userCacheTTL); err != nil {
		s.logger.Warnf("cache user %d: %v", id, err)
	}
	return user, nil
}

// ListUsers returns one page of users. Pages below 1 are read as 1 and pages
// past the end come back empty.
func (s *userService) ListUsers(ctx context.Context, page int) (*UserPage, error) {
	if page < 1 {
		page = 1
	}
	// a page too large to address lies past the end; the store returns no rows
	offset := math.MaxInt
	if page-1 <= math.MaxInt/s.pageSize {
		offset = (page - 1) * s.pageSize
	}

	users, total, err := s.repo.Page(ctx, offset, s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if users == nil {
		users = []model.User{}
	}

	pages := int((total + int64(s.pageSize) - 1) / int64(s.pageSize))
	return &UserPage{
		Users:    users,
		Page:     page,
		PageSize: s.pageSize,
		Total:    total,
		Pages:    pages,
	}, nil
}

// EditForm returns the current values of user id and which fields actor may change.
func (s *userService) EditForm(ctx context.Context, id uint, actor Actor) (*EditForm, error) {
	target, err := s.findUser(ctx, id)
	if err != nil {
		return nil, err
	}

	form := &EditForm{
		Action:   "edit",
		UserID:   target.ID,
		Username: target.Username,
		Email:    target.Email,
		Fields:   []string{"username", "email"},
	}
	if CanEditRoleAndPassword(actor.Role, target.PrimaryRole()) {
		form.Role = target.PrimaryRole()
		form.Fields = append(form.Fields, "password", "password_confirmation", "role")
		form.RoleChoices = RoleChoices(actor.Role)
	}
	return form, nil
}

func (s *userService) findUser(ctx context.Context, id uint) (*model.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user %d: %w", id, err)
	}
	return user, nil
}

// checkPasswordLength rejects passwords the hasher cannot take.
func checkPasswordLength(password string, errs *apperrors.ValidationErrors) {
	if len(password) > auth.MaxPasswordBytes {
		errs.Add("password", apperrors.MsgPasswordLength)
	}
}

// checkUnique runs both the email and the username lookup so that both
// collisions are reported in one response. excludeID is the user being edited.
func (s *userService) checkUnique(ctx context.Context, email, username string, excludeID uint, errs *apperrors.ValidationErrors) error {
	if email != "" {
		existing, err := s.repo.FindByEmail(ctx, email)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("check email: %w", err)
		}
		if existing != nil && existing.ID != excludeID {
			errs.Add("email", apperrors.MsgEmailInUse)
		}
	}

	if username != "" {
		existing, err := s.repo.FindByUsername(ctx, username)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("check username: %w", err)
		}
		if existing != nil && existing.ID != excludeID {
			errs.Add("username", apperrors.MsgUsernameInUse)
		}
	}
	return nil
}

// structErrors runs the struct tags of input and translates failures into
// form field errors.
func (s *userService) structErrors(input interface{}) apperrors.ValidationErrors {
	errs := apperrors.ValidationErrors{}
	err := s.validate.Struct(input)
	if err == nil {
		return errs
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		errs.Add("form", err.Error())
		return errs
	}
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			errs.Add(fe.Field(), apperrors.MsgNotBlank)
		case "eqfield":
			errs.Add("password", apperrors.MsgPasswordsMatch)
		case "oneof":
			errs.Add(fe.Field(), apperrors.MsgInvalidChoice)
		default:
			errs.Add(fe.Field(), apperrors.MsgInvalidChoice)
		}
	}
	return errs
}

// newValidator reports fields by their form name rather than the Go name.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}
