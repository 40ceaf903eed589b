package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/blockmart/blockmart-backend/pkg/logger"
)

type memIdempotencyStore struct {
	records map[string]string
}

func (m *memIdempotencyStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("bm:idempotency:%s:%s", scope, id)
}

func (m *memIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	return m.records[key], nil
}

func (m *memIdempotencyStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if m.records == nil {
		m.records = make(map[string]string)
	}
	if _, ok := m.records[key]; ok {
		return false, nil
	}
	m.records[key] = value.(string)
	return true, nil
}

func idempotentHandler(store idempotencyStore, calls *int) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "middleware-test"})
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"ok":true}}`))
	})
	return Idempotency(store, logg)(inner)
}

func checkoutRequest(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/checkout", strings.NewReader(body))
	req = req.WithContext(WithUserID(req.Context(), "user-1"))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := &memIdempotencyStore{}
	calls := 0
	handler := idempotentHandler(store, &calls)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, checkoutRequest("key-1", `{}`))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, calls)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, checkoutRequest("key-1", `{}`))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"data":{"ok":true}}`, rec.Body.String())
	assert.Equal(t, 1, calls, "second call must be served from the stored record")
}

func TestIdempotencyRejectsKeyReuseWithDifferentBody(t *testing.T) {
	store := &memIdempotencyStore{}
	calls := 0
	handler := idempotentHandler(store, &calls)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, checkoutRequest("key-1", `{"a":1}`))
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, checkoutRequest("key-1", `{"a":2}`))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 1, calls)
}

func TestIdempotencyRequiresHeaderOnMatchedRoutes(t *testing.T) {
	store := &memIdempotencyStore{}
	calls := 0
	handler := idempotentHandler(store, &calls)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, checkoutRequest("", `{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, calls)
}

func TestIdempotencyIgnoresUnmatchedRoutes(t *testing.T) {
	store := &memIdempotencyStore{}
	calls := 0
	handler := idempotentHandler(store, &calls)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, calls)
}
