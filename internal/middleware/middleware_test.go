package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const secret = "0123456789abcdef0123456789abcdef"

func ok() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c := OperatorFromContext(r); c != nil {
			w.Header().Set("X-Operator", c.Operator)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestJWTAuthMutating(t *testing.T) {
	auth := NewJWTAuth(secret, "livemap")
	token, err := auth.IssueToken("ops", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	foreign, _ := NewJWTAuth(secret, "someone-else").IssueToken("ops", time.Hour)
	expired, _ := auth.IssueToken("ops", -time.Minute)

	h := auth.Mutating(ok())

	tests := []struct {
		name   string
		method string
		header string
		want   int
	}{
		{"read needs no token", http.MethodGet, "", http.StatusOK},
		{"write without token", http.MethodPost, "", http.StatusUnauthorized},
		{"write with token", http.MethodPut, "Bearer " + token, http.StatusOK},
		{"wrong issuer", http.MethodPost, "Bearer " + foreign, http.StatusUnauthorized},
		{"expired", http.MethodPost, "Bearer " + expired, http.StatusUnauthorized},
		{"garbage", http.MethodDelete, "Bearer nope", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/preferences", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestJWTAuthQueryToken(t *testing.T) {
	auth := NewJWTAuth(secret, "")
	token, _ := auth.IssueToken("ops", time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	rec := httptest.NewRecorder()
	auth.Middleware(ok()).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Header().Get("X-Operator") != "ops" {
		t.Errorf("status = %d, operator = %q", rec.Code, rec.Header().Get("X-Operator"))
	}
}

func TestJWTAuthDisabled(t *testing.T) {
	auth := NewJWTAuth("", "")
	if _, err := auth.IssueToken("ops", time.Hour); err == nil {
		t.Error("token issued without a secret")
	}
	rec := httptest.NewRecorder()
	auth.Middleware(ok()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/location", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want pass-through", rec.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 2, Enabled: true})
	defer rl.Close()
	h := rl.Middleware(ok())

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.RemoteAddr = "10.0.0.2:5000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("second client limited: %d", rec.Code)
	}
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	if got := getClientIP(req, false); got != "192.168.1.1" {
		t.Errorf("untrusted = %q", got)
	}
	if got := getClientIP(req, true); got != "203.0.113.7" {
		t.Errorf("trusted = %q", got)
	}
}
