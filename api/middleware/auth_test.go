package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgAuth "github.com/blockmart/blockmart-backend/pkg/auth"
	"github.com/blockmart/blockmart-backend/pkg/config"
	"github.com/blockmart/blockmart-backend/pkg/enums"
	"github.com/blockmart/blockmart-backend/pkg/logger"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "blockmart",
		ExpirationMinutes: 60,
	}
}

func authHarness(t *testing.T) (http.Handler, *string, *string) {
	t.Helper()
	var seenUser, seenRole string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser = UserIDFromContext(r.Context())
		seenRole = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	logg := logger.New(logger.Options{ServiceName: "middleware-test"})
	return Auth(testJWTConfig(), logg)(inner), &seenUser, &seenRole
}

func TestAuthSeedsClaimsIntoContext(t *testing.T) {
	handler, seenUser, seenRole := authHarness(t)

	token, err := pkgAuth.MintAccessToken(testJWTConfig(), time.Now(), pkgAuth.AccessTokenPayload{
		UserID: "123456789",
		Role:   enums.ActorRoleBuyer,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "123456789", *seenUser)
	assert.Equal(t, string(enums.ActorRoleBuyer), *seenRole)
}

func TestAuthRejectsMissingHeader(t *testing.T) {
	handler, _, _ := authHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsGarbageToken(t *testing.T) {
	handler, _, _ := authHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsWrongSecret(t *testing.T) {
	handler, _, _ := authHarness(t)

	otherCfg := testJWTConfig()
	otherCfg.Secret = "different-secret"
	token, err := pkgAuth.MintAccessToken(otherCfg, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: "123456789",
		Role:   enums.ActorRoleAdmin,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAnyRole(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "middleware-test"})
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := RequireAnyRole(logg, string(enums.ActorRoleAdmin), string(enums.ActorRoleAgent))(inner)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/items", nil)
	req = req.WithContext(WithRole(req.Context(), string(enums.ActorRoleAgent)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/v1/items", nil)
	req = req.WithContext(WithRole(req.Context(), string(enums.ActorRoleBuyer)))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
