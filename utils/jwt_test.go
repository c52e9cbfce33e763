package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken_RoundTrip(t *testing.T) {
	tok, err := GenerateToken("s3cret", "user-1", "alice", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken("s3cret", tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestToken_Rejections(t *testing.T) {
	tok, err := GenerateToken("s3cret", "user-1", "alice", time.Hour)
	require.NoError(t, err)
	_, err = ParseToken("other", tok)
	assert.Error(t, err, "wrong secret")

	expired, err := GenerateToken("s3cret", "user-1", "alice", -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken("s3cret", expired)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	anon, err := GenerateToken("s3cret", "", "ghost", time.Hour)
	require.NoError(t, err)
	_, err = ParseToken("s3cret", anon)
	assert.Error(t, err, "no user id")

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "user-1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseToken("s3cret", unsigned)
	assert.Error(t, err, "alg none")
}
