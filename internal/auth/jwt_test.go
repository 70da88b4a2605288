package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestJWTGenerateAndValidate(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour, "eventops")

	token, err := manager.Generate("01HYX3KQW7ERTV9XNBM2P8QJZF", "organizer")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := manager.Validate(token)
	require.NoError(t, err)
	require.Equal(t, "01HYX3KQW7ERTV9XNBM2P8QJZF", claims.Subject)
	require.Equal(t, "organizer", claims.Role)
	require.Equal(t, "eventops", claims.Issuer)
}

func TestJWTGenerateRequiresSubjectAndRole(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour, "eventops")

	_, err := manager.Generate("", "organizer")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = manager.Generate("subject", "")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTValidateRejectsExpiredToken(t *testing.T) {
	manager := NewJWTManager("test-secret", -time.Minute, "eventops")

	token, err := manager.Generate("subject", "admin")
	require.NoError(t, err)

	_, err = manager.Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTValidateRejectsWrongSecret(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour, "eventops")
	other := NewJWTManager("other-secret", time.Hour, "eventops")

	token, err := manager.Generate("subject", "admin")
	require.NoError(t, err)

	_, err = other.Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTValidateRejectsWrongIssuer(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour, "eventops")
	other := NewJWTManager("test-secret", time.Hour, "someone-else")

	token, err := other.Generate("subject", "admin")
	require.NoError(t, err)

	_, err = manager.Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTValidateRejectsUnknownRole(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour, "eventops")

	token, err := manager.Generate("subject", "wizard")
	require.NoError(t, err)

	_, err = manager.Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTValidateEmptyToken(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour, "eventops")

	_, err := manager.Validate("   ")
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestTokenFromHeader(t *testing.T) {
	token, err := TokenFromHeader("Bearer abc123")
	require.NoError(t, err)
	require.Equal(t, "abc123", token)

	token, err = TokenFromHeader("bearer abc123")
	require.NoError(t, err)
	require.Equal(t, "abc123", token)

	_, err = TokenFromHeader("")
	require.ErrorIs(t, err, ErrMissingToken)

	_, err = TokenFromHeader("Basic abc123")
	require.ErrorIs(t, err, ErrMissingToken)

	_, err = TokenFromHeader("Bearer")
	require.ErrorIs(t, err, ErrMissingToken)
}
