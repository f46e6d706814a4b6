package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"useradmin/internal/model"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret")
	user := &model.User{ID: 7, Username: "moderator3", Roles: model.Roles{model.RoleModerator}}

	tokenID, token, err := svc.GenerateAccessToken(user)
	require.NoError(t, err)
	assert.NotEmpty(t, tokenID)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "moderator3", claims.Username)
	assert.Equal(t, model.RoleModerator, claims.Role)
	assert.Equal(t, tokenID, claims.ID)
	assert.InDelta(t, AccessTokenExpiry.Seconds(), RemainingTTL(claims).Seconds(), 5)

	assert.True(t, claims.IsAccess())
}

func TestJWTService_TokenUse(t *testing.T) {
	svc := NewJWTService("test-secret")
	user := &model.User{ID: 7, Username: "moderator3", Roles: model.Roles{model.RoleModerator}}

	refreshID, refresh, err := svc.GenerateRefreshToken(user)
	require.NoError(t, err)
	claims, err := svc.ValidateRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, refreshID, claims.ID)
	assert.False(t, claims.IsAccess())

	_, access, err := svc.GenerateAccessToken(user)
	require.NoError(t, err)
	_, err = svc.ValidateRefreshToken(access)
	assert.ErrorIs(t, err, ErrWrongTokenUse)
}

func TestJWTService_RejectsForeignSignature(t *testing.T) {
	user := &model.User{ID: 1, Username: "admin0", Roles: model.Roles{model.RoleAdmin}}
	_, token, err := NewJWTService("one").GenerateRefreshToken(user)
	require.NoError(t, err)

	_, err = NewJWTService("two").ValidateToken(token)
	assert.Error(t, err)
}

func TestRemainingTTL_Expired(t *testing.T) {
	assert.Zero(t, RemainingTTL(nil))
	claims := &Claims{}
	claims.ExpiresAt = nil
	assert.Zero(t, RemainingTTL(claims))

	past := &Claims{}
	past.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	assert.Zero(t, RemainingTTL(past))
}

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	hash, err := h.Hash(&model.User{Username: "user1"}, "secret")
	require.NoError(t, err)
	assert.NotEqual(t, "secret", hash)
	assert.NoError(t, h.Compare(hash, "secret"))
	assert.Error(t, h.Compare(hash, "wrong"))

	// out-of-range costs are clamped instead of failing
	assert.Equal(t, bcrypt.MinCost, NewBcryptHasher(1).cost)
}
