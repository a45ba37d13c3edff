package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"cafeplease/internal/model"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated caller. Role comes from the token as-is.
type Principal struct {
	UserID string
	Role   model.Role
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SecretKey string
	// AllowDevHeaders accepts X-User-ID / X-User-Role instead of a token.
	AllowDevHeaders bool
}

// NewJWTConfig creates a new JWT config
func NewJWTConfig(secretKey string, allowDevHeaders bool) *JWTConfig {
	if secretKey == "" {
		secretKey = "default-secret-key-change-in-production"
	}
	return &JWTConfig{SecretKey: secretKey, AllowDevHeaders: allowDevHeaders}
}

// Issue signs an HS256 token for p.
func (c *JWTConfig) Issue(p Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  p.UserID,
		"role": string(p.Role),
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	})
	return token.SignedString([]byte(c.SecretKey))
}

// Parse validates tokenString and returns its principal.
func (c *JWTConfig) Parse(tokenString string) (Principal, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(c.SecretKey), nil
	})
	if err != nil || !token.Valid {
		return Principal{}, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, errors.New("invalid token claims")
	}
	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if sub == "" {
		return Principal{}, errors.New("token has no subject")
	}
	return Principal{UserID: sub, Role: model.Role(role)}, nil
}

// FromRequest authenticates r from the Authorization header, a token query
// parameter (websocket clients) or the dev headers.
func (c *JWTConfig) FromRequest(r *http.Request) (Principal, bool, error) {
	if c.AllowDevHeaders {
		if id := r.Header.Get("X-User-ID"); id != "" {
			return Principal{UserID: id, Role: model.Role(r.Header.Get("X-User-Role"))}, true, nil
		}
	}

	tokenString := r.URL.Query().Get("token")
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return Principal{}, false, errors.New("invalid authorization header")
		}
		tokenString = parts[1]
	}
	if tokenString == "" {
		return Principal{}, false, nil
	}

	p, err := c.Parse(tokenString)
	if err != nil {
		return Principal{}, false, err
	}
	return p, true, nil
}

// Middleware rejects requests without a valid principal
func (c *JWTConfig) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok, err := c.FromRequest(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		if !ok {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// RequireManager lets only MANAGER and ADMIN callers through
func RequireManager(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := GetPrincipal(r.Context())
		if !ok || !p.Role.CanManage() {
			http.Error(w, "manager role required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// GetPrincipal extracts the caller from context
func GetPrincipal(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
