package jwt_test

import (
	"testing"
	"time"

	"mtsp/pkg/jwt"

	"github.com/stretchr/testify/require"
)

func TestJWT_RoundTrip(t *testing.T) {
	manager := jwt.NewJWTManager("test-secret", time.Hour)

	bid := uint(10)
	token, err := manager.GenerateToken(1, &bid, "owner@x.com", "owner")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := manager.VerifyToken(token)
	require.NoError(t, err)
	require.Equal(t, uint(1), claims.UserID)
	require.NotNil(t, claims.BusinessID)
	require.Equal(t, uint(10), *claims.BusinessID)
	require.Equal(t, "owner@x.com", claims.Email)
	require.Equal(t, "owner", claims.Role)
}

func TestJWT_SuperAdminNilBusiness(t *testing.T) {
	manager := jwt.NewJWTManager("test-secret", time.Hour)

	token, err := manager.GenerateToken(99, nil, "admin@x.com", "super_admin")
	require.NoError(t, err)

	claims, err := manager.VerifyToken(token)
	require.NoError(t, err)
	require.Nil(t, claims.BusinessID)
	require.Equal(t, "super_admin", claims.Role)
}

func TestJWT_WrongSecret(t *testing.T) {
	manager := jwt.NewJWTManager("test-secret", time.Hour)
	other := jwt.NewJWTManager("other-secret", time.Hour)

	token, err := manager.GenerateToken(1, nil, "a@x.com", "member")
	require.NoError(t, err)

	_, err = other.VerifyToken(token)
	require.Error(t, err)
}

func TestJWT_Expired(t *testing.T) {
	manager := jwt.NewJWTManager("test-secret", -time.Minute)

	token, err := manager.GenerateToken(1, nil, "a@x.com", "member")
	require.NoError(t, err)

	_, err = manager.VerifyToken(token)
	require.Error(t, err)
}

func TestJWT_Malformed(t *testing.T) {
	manager := jwt.NewJWTManager("test-secret", time.Hour)
	_, err := manager.VerifyToken("not-a-token")
	require.Error(t, err)
}
