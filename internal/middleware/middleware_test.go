package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"payhub-be/internal/auth"
	"payhub-be/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticate(t *testing.T) {
	tokens := auth.NewTokens("test-secret", time.Hour)

	t.Run("Missing Token", func(t *testing.T) {
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, ok := utils.GetUserIDFromContext(r.Context())
			assert.False(t, ok, "context should not contain a user")
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		w := httptest.NewRecorder()
		Authenticate(tokens)(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Invalid Token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer invalid-token")
		w := httptest.NewRecorder()

		Authenticate(tokens)(okHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Valid Token", func(t *testing.T) {
		tok, err := tokens.Issue("u1", "u1@example.com", "user")
		require.NoError(t, err)

		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := utils.GetUserIDFromContext(r.Context())
			assert.True(t, ok)
			assert.Equal(t, "u1", userID)
			assert.Equal(t, "u1@example.com", utils.GetUserEmailFromContext(r.Context()))
			assert.False(t, utils.IsAdmin(r.Context()))
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()
		Authenticate(tokens)(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Malformed Header", func(t *testing.T) {
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, ok := utils.GetUserIDFromContext(r.Context())
			assert.False(t, ok)
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Basic user:pass")
		w := httptest.NewRecorder()
		Authenticate(tokens)(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRequireAuthAndRole(t *testing.T) {
	anonymous := httptest.NewRequest(http.MethodGet, "/", nil)
	user := anonymous.WithContext(utils.SetUserContext(anonymous.Context(), "u1", "", "user"))
	admin := anonymous.WithContext(utils.SetUserContext(anonymous.Context(), "a1", "", utils.RoleAdmin))

	tests := []struct {
		name    string
		handler http.Handler
		req     *http.Request
		want    int
	}{
		{"AuthAnonymous", RequireAuth(okHandler()), anonymous, http.StatusUnauthorized},
		{"AuthUser", RequireAuth(okHandler()), user, http.StatusOK},
		{"RoleAnonymous", RequireRole(utils.RoleAdmin)(okHandler()), anonymous, http.StatusUnauthorized},
		{"RoleUser", RequireRole(utils.RoleAdmin)(okHandler()), user, http.StatusForbidden},
		{"RoleAdmin", RequireRole(utils.RoleAdmin)(okHandler()), admin, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.handler.ServeHTTP(w, tt.req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRateLimiter(t *testing.T) {
	t.Run("StrictTierForWebhooks", func(t *testing.T) {
		l := NewRateLimiter("")
		h := l.Middleware(okHandler())

		codes := map[int]int{}
		for i := 0; i < burstStrict+3; i++ {
			req := httptest.NewRequest(http.MethodPost, "/webhooks/wallet/ipn", nil)
			req.RemoteAddr = "10.0.0.1:1234"
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			codes[w.Code]++
		}

		assert.Equal(t, burstStrict, codes[http.StatusOK])
		assert.Equal(t, 3, codes[http.StatusTooManyRequests])
	})

	t.Run("SeparateIdentities", func(t *testing.T) {
		l := NewRateLimiter("")
		h := l.Middleware(okHandler())

		for i := 0; i < burstStrict; i++ {
			req := httptest.NewRequest(http.MethodPost, "/webhooks/card", nil)
			req.RemoteAddr = "10.0.0.1:1234"
			h.ServeHTTP(httptest.NewRecorder(), req)
		}

		req := httptest.NewRequest(http.MethodPost, "/webhooks/card", nil)
		req.RemoteAddr = "10.0.0.2:1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Tiers", func(t *testing.T) {
		l := NewRateLimiter("svc-secret")

		internal := httptest.NewRequest(http.MethodPost, "/webhooks/card", nil)
		internal.Header.Set("X-Service-Auth", "svc-secret")
		_, _, tier := l.resolveTier(internal)
		assert.Equal(t, "internal", tier)

		_, _, tier = l.resolveTier(httptest.NewRequest(http.MethodPost, "/api/v1/payments/qr", nil))
		assert.Equal(t, "strict", tier)

		_, _, tier = l.resolveTier(httptest.NewRequest(http.MethodGet, "/api/v1/payments/pay-1", nil))
		assert.Equal(t, "general", tier)
	})

	t.Run("CleanupDropsIdleVisitors", func(t *testing.T) {
		l := NewRateLimiter("")
		now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		l.now = func() time.Time { return now }

		l.get("ip:1:general", limitGeneral, burstGeneral)
		now = now.Add(visitorIdleTTL + time.Second)
		l.get("ip:2:general", limitGeneral, burstGeneral)
		l.cleanup()

		assert.Len(t, l.visitors, 1)
		assert.Contains(t, l.visitors, "ip:2:general")
	})
}

func TestIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.9:5555"
	assert.Equal(t, "ip:10.0.0.9", identity(req))

	req.Header.Set("X-Device-ID", "dev-1")
	assert.Equal(t, "device:dev-1", identity(req))

	req = req.WithContext(utils.SetUserContext(req.Context(), "u1", "", "user"))
	assert.Equal(t, "user:u1", identity(req))
}
