package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"useradmin/internal/auth"
	apperrors "useradmin/internal/errors"
	"useradmin/internal/model"
	"useradmin/internal/service"
)

const (
	// AccessTokenCookie carries the access token for browser sessions.
	AccessTokenCookie = "access_token"

	tokenContextKey = "user"
	actorContextKey = "actor"
)

// UserLookup resolves the acting user from the token subject.
type UserLookup interface {
	GetUser(ctx context.Context, id uint) (*model.User, error)
}

// RevocationChecker reports whether an access token was revoked by logout.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, access *auth.Claims) bool
}

// JWT validates the access token from the Authorization header or the
// access_token cookie and stores the parsed *jwt.Token under "user".
// Refresh tokens carry the same signature and are turned away here.
func JWT(secret []byte) echo.MiddlewareFunc {
	parse := echojwt.WithConfig(echojwt.Config{
		SigningKey:  secret,
		ContextKey:  tokenContextKey,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ,cookie:" + AccessTokenCookie,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(auth.Claims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return unauthorized("missing or invalid access token")
		},
	})
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return parse(func(c echo.Context) error {
			claims, ok := ClaimsFrom(c)
			if !ok || !claims.IsAccess() {
				return unauthorized("missing or invalid access token")
			}
			return next(c)
		})
	}
}

// Actor turns the validated token into a service.Actor. The role is read from
// the store rather than the token so a demotion takes effect immediately.
func Actor(users UserLookup, sessions RevocationChecker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := ClaimsFrom(c)
			if !ok {
				return unauthorized("invalid token")
			}

			ctx := c.Request().Context()
			if sessions.IsRevoked(ctx, claims) {
				return unauthorized("token has been revoked")
			}

			user, err := users.GetUser(ctx, claims.UserID)
			if err != nil {
				if errors.Is(err, apperrors.ErrUserNotFound) {
					return unauthorized("user no longer exists")
				}
				c.Logger().Errorf("resolve acting user %d: %v", claims.UserID, err)
				httpErr := apperrors.MapErrorToHTTP(err)
				return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
			}

			SetActor(c, service.Actor{ID: user.ID, Role: user.PrimaryRole()})
			return next(c)
		}
	}
}

// RequireRole lets the request through only when the actor holds at least min.
func RequireRole(min model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, ok := ActorFrom(c)
			if !ok {
				return unauthorized("not authenticated")
			}
			if !actor.Role.AtLeast(min) {
				return echo.NewHTTPError(http.StatusForbidden, apperrors.ErrorResponse{
					Error: apperrors.ErrForbidden.Error(),
					Code:  "FORBIDDEN",
				})
			}
			return next(c)
		}
	}
}

// ClaimsFrom returns the access token claims set by JWT.
func ClaimsFrom(c echo.Context) (*auth.Claims, bool) {
	token, ok := c.Get(tokenContextKey).(*jwt.Token)
	if !ok || token == nil {
		return nil, false
	}
	claims, ok := token.Claims.(*auth.Claims)
	return claims, ok
}

// ActorFrom returns the actor set by Actor.
func ActorFrom(c echo.Context) (service.Actor, bool) {
	actor, ok := c.Get(actorContextKey).(service.Actor)
	return actor, ok
}

// SetActor stores actor on the context.
func SetActor(c echo.Context, actor service.Actor) {
	c.Set(actorContextKey, actor)
}

func unauthorized(msg string) error {
	return echo.NewHTTPError(http.StatusUnauthorized, apperrors.ErrorResponse{
		Error: msg,
		Code:  "UNAUTHORIZED",
	})
}
