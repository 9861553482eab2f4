package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuerRoundTrip(t *testing.T) {
	iss, err := NewIssuer("s3cret", time.Hour)
	require.NoError(t, err)

	token, err := iss.Generate("admin")
	require.NoError(t, err)

	sub, err := iss.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", sub)
}

func TestIssuerRejects(t *testing.T) {
	iss, err := NewIssuer("s3cret", time.Hour)
	require.NoError(t, err)
	other, err := NewIssuer("different", time.Hour)
	require.NoError(t, err)

	foreign, err := other.Generate("admin")
	require.NoError(t, err)
	_, err = iss.Validate(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = iss.Validate("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	token, err := iss.Generate("admin")
	require.NoError(t, err)
	iss.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = iss.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "admin"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = iss.Validate(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	_, err := NewIssuer("", time.Hour)
	assert.ErrorIs(t, err, ErrEmptySecret)

	iss, err := NewIssuer("x", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTokenTTL, iss.ttl)
}

func TestCheckCredentials(t *testing.T) {
	assert.NoError(t, CheckCredentials("admin", "pw", "admin", "pw"))
	assert.ErrorIs(t, CheckCredentials("admin", "nope", "admin", "pw"), ErrInvalidCredentials)
	assert.ErrorIs(t, CheckCredentials("root", "pw", "admin", "pw"), ErrInvalidCredentials)
	assert.ErrorIs(t, CheckCredentials("", "", "", ""), ErrInvalidCredentials)
}
