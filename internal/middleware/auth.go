package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"livemap/internal/shared/errors"
	"livemap/internal/shared/response"
)

type contextKey string

const OperatorContextKey contextKey = "operator"

// Claims identify the operator allowed to steer the dashboard.
type Claims struct {
	Operator string `json:"operator"`
	jwt.RegisteredClaims
}

// JWTAuth guards mutating endpoints with an HS256 bearer token. With an
// empty secret every request passes.
type JWTAuth struct {
	secret []byte
	issuer string
}

func NewJWTAuth(secret, issuer string) *JWTAuth {
	return &JWTAuth{secret: []byte(secret), issuer: issuer}
}

func (a *JWTAuth) Enabled() bool {
	return len(a.secret) > 0
}

// IssueToken signs a token for operator valid for ttl.
func (a *JWTAuth) IssueToken(operator string, ttl time.Duration) (string, error) {
	if !a.Enabled() {
		return "", errors.Unavailable("JWT secret not configured")
	}
	now := time.Now()
	claims := Claims{
		Operator: operator,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   operator,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *JWTAuth) Validate(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	// Browsers cannot set headers on the websocket upgrade.
	return r.URL.Query().Get("token")
}

func (a *JWTAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		logger := slog.With(
			"middleware", "jwt",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		token := bearerToken(r)
		if token == "" {
			response.Error(w, r, logger, errors.Unauthorized("authentication required"))
			return
		}

		claims, err := a.Validate(token)
		if err != nil {
			logger.Debug("Token rejected", "error", err)
			response.Error(w, r, logger, errors.Unauthorized("invalid token"))
			return
		}

		ctx := context.WithValue(r.Context(), OperatorContextKey, claims)
		logger.Debug("JWT authentication successful", "operator", claims.Operator)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Mutating guards every method except GET, HEAD and OPTIONS.
func (a *JWTAuth) Mutating(next http.Handler) http.Handler {
	guarded := a.Middleware(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
		default:
			guarded.ServeHTTP(w, r)
		}
	})
}

func OperatorFromContext(r *http.Request) *Claims {
	if claims, ok := r.Context().Value(OperatorContextKey).(*Claims); ok {
		return claims
	}
	return nil
}
