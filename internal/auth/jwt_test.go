package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cafeplease/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoPrincipal() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, _ := GetPrincipal(r.Context())
		w.Write([]byte(p.UserID + "|" + string(p.Role)))
	})
}

func TestMiddleware_Bearer(t *testing.T) {
	cfg := NewJWTConfig("secret", false)
	token, err := cfg.Issue(Principal{UserID: "m1", Role: model.RoleManager}, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	cfg.Middleware(echoPrincipal()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "m1|MANAGER", rec.Body.String())
}

func TestMiddleware_Rejects(t *testing.T) {
	cfg := NewJWTConfig("secret", false)
	other := NewJWTConfig("other", false)
	forged, err := other.Issue(Principal{UserID: "m1", Role: model.RoleAdmin}, time.Hour)
	require.NoError(t, err)
	expired, err := cfg.Issue(Principal{UserID: "m1"}, -time.Minute)
	require.NoError(t, err)
	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "m1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"missing":   "",
		"malformed": "Token abc",
		"wrong key": "Bearer " + forged,
		"expired":   "Bearer " + expired,
		"alg none":  "Bearer " + unsigned,
	}
	for name, header := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			cfg.Middleware(echoPrincipal()).ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestMiddleware_DevHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("X-User-Role", "ASSISTANT")

	rec := httptest.NewRecorder()
	NewJWTConfig("secret", true).Middleware(echoPrincipal()).ServeHTTP(rec, req)
	assert.Equal(t, "u1|ASSISTANT", rec.Body.String())

	rec = httptest.NewRecorder()
	NewJWTConfig("secret", false).Middleware(echoPrincipal()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireManager(t *testing.T) {
	h := RequireManager(echoPrincipal())

	for role, want := range map[model.Role]int{
		model.RoleAssistant: http.StatusForbidden,
		model.RoleManager:   http.StatusOK,
		model.RoleAdmin:     http.StatusOK,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithPrincipal(req.Context(), Principal{UserID: "x", Role: role}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, role)
	}
}
