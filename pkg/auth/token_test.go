package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockmart/blockmart-backend/pkg/config"
	"github.com/blockmart/blockmart-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "blockmart-test",
		ExpirationMinutes: 60,
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now()

	token, err := MintAccessToken(cfg, now, AccessTokenPayload{
		UserID: "123456789",
		Role:   enums.ActorRoleBuyer,
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, "123456789", claims.UserID)
	assert.Equal(t, enums.ActorRoleBuyer, claims.Role)
	assert.Equal(t, cfg.Issuer, claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestMintAccessToken_Validation(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now()

	_, err := MintAccessToken(cfg, now, AccessTokenPayload{Role: enums.ActorRoleBuyer})
	assert.Error(t, err, "missing user id should fail")

	_, err = MintAccessToken(cfg, now, AccessTokenPayload{UserID: "1", Role: enums.ActorRole("owner")})
	assert.Error(t, err, "unknown role should fail")

	cfg.Secret = ""
	_, err = MintAccessToken(cfg, now, AccessTokenPayload{UserID: "1", Role: enums.ActorRoleAdmin})
	assert.Error(t, err, "missing secret should fail")
}

func TestParseAccessToken_RejectsWrongSecret(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{
		UserID: "42",
		Role:   enums.ActorRoleAdmin,
	})
	require.NoError(t, err)

	other := cfg
	other.Secret = "different"
	_, err = ParseAccessToken(other, token)
	assert.Error(t, err)
}

func TestParseAccessToken_RejectsExpired(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), AccessTokenPayload{
		UserID: "42",
		Role:   enums.ActorRoleAgent,
	})
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, token)
	assert.Error(t, err)
}
