package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxidocs/pkg/errs"
	"taxidocs/pkg/models"
)

var secret = []byte("test-secret")

func TestRoundTrip(t *testing.T) {
	driverID := int64(42)
	tok, err := GenerateToken(models.Actor{ID: "u-1", Role: models.RoleDriver, DriverID: &driverID}, secret, time.Hour)
	require.NoError(t, err)

	actor, err := ParseToken(tok, secret)
	require.NoError(t, err)
	assert.Equal(t, "u-1", actor.ID)
	assert.Equal(t, models.RoleDriver, actor.Role)
	require.NotNil(t, actor.DriverID)
	assert.Equal(t, int64(42), *actor.DriverID)
}

func TestParseTokenRejects(t *testing.T) {
	expired, err := GenerateToken(models.Actor{ID: "u-1", Role: models.RoleReviewer}, secret, -time.Minute)
	require.NoError(t, err)

	otherKey, err := GenerateToken(models.Actor{ID: "u-1", Role: models.RoleReviewer}, []byte("other"), time.Hour)
	require.NoError(t, err)

	noRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u-2"},
	}).SignedString(secret)
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u-2"}, Role: models.RoleAdmin,
	}).SignedString(secret)
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"expired":     expired,
		"wrong key":   otherKey,
		"no role":     noRole,
		"wrong alg":   hs512,
		"not a token": "abc.def",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseToken(tok, secret)
			require.ErrorIs(t, err, errs.ErrUnauthorized)
		})
	}
}

func TestFromHeader(t *testing.T) {
	tok, err := FromHeader("Bearer abc.def.ghi")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", tok)

	for _, h := range []string{"", "Bearer", "Basic abc", "Bearer   "} {
		_, err := FromHeader(h)
		assert.ErrorIs(t, err, errs.ErrUnauthorized, h)
	}
}
