package auth

import (
	"testing"
	"time"

	"github.com/erp/refunds/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService() *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret: "test-secret-key-at-least-32-chars",
		Issuer: "test-issuer",
	})
}

func TestIssueAndValidateToken(t *testing.T) {
	svc := newTestJWTService()
	userID := uuid.New()

	token, err := svc.IssueToken(userID, "cashier1", []string{"cashier"}, 15*time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, "cashier1", claims.Username)
	assert.Equal(t, "test-issuer", claims.Issuer)
	assert.True(t, claims.HasRole("cashier"))
	assert.False(t, claims.HasRole("manager"))

	parsed, err := claims.UserUUID()
	require.NoError(t, err)
	assert.Equal(t, userID, parsed)
}

func TestValidateToken_Expired(t *testing.T) {
	svc := newTestJWTService()

	token, err := svc.IssueToken(uuid.New(), "cashier1", nil, -time.Hour)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateToken_NotYetValid(t *testing.T) {
	svc := newTestJWTService()
	svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	token, err := svc.IssueToken(uuid.New(), "cashier1", nil, 2*time.Hour)
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenNotYetValid)
}

func TestValidateToken_Malformed(t *testing.T) {
	svc := newTestJWTService()

	_, err := svc.ValidateToken("invalid-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_DifferentSecret(t *testing.T) {
	other := NewJWTService(config.JWTConfig{Secret: "another-secret-key-32-characters", Issuer: "test-issuer"})
	token, err := other.IssueToken(uuid.New(), "cashier1", nil, time.Minute)
	require.NoError(t, err)

	_, err = newTestJWTService().ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_WrongIssuer(t *testing.T) {
	other := NewJWTService(config.JWTConfig{Secret: "test-secret-key-at-least-32-chars", Issuer: "someone-else"})
	token, err := other.IssueToken(uuid.New(), "cashier1", nil, time.Minute)
	require.NoError(t, err)

	_, err = newTestJWTService().ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_RejectsNoneAlgorithm(t *testing.T) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "test-issuer",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		UserID: uuid.New().String(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newTestJWTService().ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_SubjectFallback(t *testing.T) {
	svc := newTestJWTService()
	userID := uuid.New()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "test-issuer",
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(svc.secret)
	require.NoError(t, err)

	got, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), got.UserID)
}

func TestValidateToken_MissingUserID(t *testing.T) {
	svc := newTestJWTService()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "test-issuer",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(svc.secret)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrMissingUserID)
}

func TestValidateToken_NonUUIDUserID(t *testing.T) {
	svc := newTestJWTService()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "test-issuer",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		UserID: "not-a-uuid",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(svc.secret)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidClaims)
}
