package routes

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

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "8080"},
		JWT: config.JWTConfig{
			Secret:            "router-test-secret",
			Issuer:            "blockmart",
			ExpirationMinutes: 60,
		},
	}
}

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	return NewRouter(Deps{
		Config: testConfig(),
		Logger: logger.New(logger.Options{ServiceName: "router-test"}),
	})
}

func mintToken(t *testing.T, role enums.ActorRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(testConfig().JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: "123456789",
		Role:   role,
	})
	require.NoError(t, err)
	return token
}

func TestHealthEndpointsAreOpen(t *testing.T) {
	router := testRouter(t)

	for _, path := range []string{"/health/live", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "test", rec.Header().Get("X-BlockMart-Env"))
	}
}

func TestAPIRequiresAuth(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminSurfaceRejectsBuyers(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/settings", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, enums.ActorRoleBuyer))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAgentSurfaceRejectsBuyers(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/agent/carts", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, enums.ActorRoleBuyer))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPaymentPagesAreOpen(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/payments/success", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
}
