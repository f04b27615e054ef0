package upstream

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2/clientcredentials"
)

// AuthConfig selects how requests to the backend are authenticated.
// OAuth2 client credentials take precedence over a shared secret.
type AuthConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string

	SharedSecret string
	Subject      string
	TokenTTL     time.Duration
}

// NewHTTPClient returns a client that authenticates every request per cfg,
// or a plain client when nothing is configured.
func NewHTTPClient(ctx context.Context, cfg AuthConfig) *http.Client {
	switch {
	case cfg.ClientID != "" && cfg.ClientSecret != "" && cfg.TokenURL != "":
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		return cc.Client(ctx)
	case cfg.SharedSecret != "":
		return &http.Client{Transport: &bearerTransport{
			base:    http.DefaultTransport,
			secret:  []byte(cfg.SharedSecret),
			subject: cfg.Subject,
			ttl:     cfg.TokenTTL,
			now:     time.Now,
		}}
	}
	return &http.Client{}
}

// bearerTransport signs a short-lived HS256 token for each request.
type bearerTransport struct {
	base    http.RoundTripper
	secret  []byte
	subject string
	ttl     time.Duration
	now     func() time.Time
}

func (t *bearerTransport) token() (string, error) {
	ttl := t.ttl
	if ttl <= 0 {
		ttl = time.Minute
	}
	now := t.now()
	claims := jwt.RegisteredClaims{
		Subject:   t.subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    "livemap",
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.token()
	if err != nil {
		return nil, fmt.Errorf("failed to sign upstream token: %w", err)
	}
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(r)
}
