package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func limited(t *testing.T, cfg RateLimitConfig) http.Handler {
	t.Helper()
	return RateLimit(cfg)(okHandler())
}

func hit(handler http.Handler, remoteAddr string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestRateLimitUnderLimit(t *testing.T) {
	handler := limited(t, RateLimitConfig{Max: 5, Window: time.Minute})

	for i := range 5 {
		w := hit(handler, "192.0.2.10:40000", nil)
		assert.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimitRejectsWithEnvelope(t *testing.T) {
	handler := limited(t, RateLimitConfig{Max: 2, Window: time.Minute})

	for range 2 {
		w := hit(handler, "192.0.2.20:40000", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := hit(handler, "192.0.2.20:40000", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "rate limit exceeded", body["error"])
}

func TestRateLimitKeysByClientIP(t *testing.T) {
	handler := limited(t, RateLimitConfig{Max: 1, Window: time.Minute})

	assert.Equal(t, http.StatusOK, hit(handler, "192.0.2.30:1000", nil).Code)
	assert.Equal(t, http.StatusOK, hit(handler, "192.0.2.31:1000", nil).Code)

	// Port changes must not reset the budget.
	assert.Equal(t, http.StatusTooManyRequests, hit(handler, "192.0.2.30:2000", nil).Code)
}

func TestRateLimitCustomKeyFunc(t *testing.T) {
	handler := limited(t, RateLimitConfig{
		Max:    1,
		Window: time.Minute,
		KeyFunc: func(r *http.Request) string {
			return r.Header.Get("X-Session")
		},
	})

	assert.Equal(t, http.StatusOK, hit(handler, "192.0.2.40:1", map[string]string{"X-Session": "s1"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(handler, "192.0.2.40:1", map[string]string{"X-Session": "s1"}).Code)
	assert.Equal(t, http.StatusOK, hit(handler, "192.0.2.40:1", map[string]string{"X-Session": "s2"}).Code)
}

func TestRateLimitUsesForwardedFor(t *testing.T) {
	handler := limited(t, RateLimitConfig{Max: 1, Window: time.Minute})

	xff := map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"}
	assert.Equal(t, http.StatusOK, hit(handler, "10.0.0.1:1", xff).Code)

	// Same originating client through a different proxy hop.
	assert.Equal(t, http.StatusTooManyRequests, hit(handler, "10.0.0.2:1", xff).Code)
}
