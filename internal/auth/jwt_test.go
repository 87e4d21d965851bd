package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuer_GenerateAndValidate(t *testing.T) {
	issuer, err := NewIssuer("", time.Hour)
	require.NoError(t, err)

	token, err := issuer.Generate(&User{Username: "admin", IsAdmin: true})
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(token, "."), "JWT состоит из трёх частей")

	claims, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	assert.True(t, claims.IsAdmin)
	assert.Equal(t, "coin-collector", claims.Issuer)
}

func TestIssuer_RejectsInvalidTokens(t *testing.T) {
	issuer, err := NewIssuer("", time.Hour)
	require.NoError(t, err)

	for _, tok := range []string{
		"",
		"invalid.token.here",
		"not.a.jwt",
		"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.invalid.signature",
	} {
		_, err := issuer.Validate(tok)
		assert.ErrorIs(t, err, ErrInvalidToken, tok)
	}
}

func TestIssuer_RejectsForeignSecret(t *testing.T) {
	a, err := NewIssuer(GenerateSecureSecret(), time.Hour)
	require.NoError(t, err)
	b, err := NewIssuer(GenerateSecureSecret(), time.Hour)
	require.NoError(t, err)

	token, err := a.Generate(&User{Username: "admin", IsAdmin: true})
	require.NoError(t, err)

	_, err = b.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_Expired(t *testing.T) {
	issuer, err := NewIssuer("", time.Minute)
	require.NoError(t, err)

	base := time.Now()
	issuer.now = func() time.Time { return base }
	token, err := issuer.Generate(&User{Username: "admin"})
	require.NoError(t, err)

	issuer.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = issuer.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_RejectsNoneAlgorithm(t *testing.T) {
	issuer, err := NewIssuer("", time.Hour)
	require.NoError(t, err)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Username: "admin", IsAdmin: true})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = issuer.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewIssuer_SecretValidation(t *testing.T) {
	_, err := NewIssuer("c2hvcnQ=", time.Hour)
	assert.Error(t, err, "короткий секрет")

	_, err = NewIssuer("%%%", time.Hour)
	assert.Error(t, err, "не base64")
}

func TestAdminAccount(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	acc := NewAdminAccount("Admin", hash)

	user, err := acc.Authenticate("admin", "s3cret")
	require.NoError(t, err)
	assert.True(t, user.IsAdmin)

	_, err = acc.Authenticate("admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = acc.Authenticate("root", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	disabled := NewAdminAccount("admin", "")
	assert.False(t, disabled.Enabled())
	_, err = disabled.Authenticate("admin", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
