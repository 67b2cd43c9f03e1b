// Package auth guards page routes with a signed session token and
// delegates sign-in to an OAuth2 identity provider.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aretw0/pinboard/pkg/core"
)

// CookieName is the session cookie.
const CookieName = "pinboard_session"

// DefaultTTL is the lifetime of an issued session.
const DefaultTTL = 30 * 24 * time.Hour

// minSecretLen is the shortest accepted HMAC key.
const minSecretLen = 16

var (
	// ErrNoSession is returned when a request carries no token.
	ErrNoSession = errors.New("no session")
	// ErrInvalidSession is returned for malformed, forged or expired tokens.
	ErrInvalidSession = errors.New("invalid session")
)

// Claims is the payload of a session token.
type Claims struct {
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Picture  string `json:"picture,omitempty"`
	Provider string `json:"provider,omitempty"`
	jwt.RegisteredClaims
}

// Sessions issues and verifies HS256 session tokens.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// SessionOption configures Sessions.
type SessionOption func(*Sessions)

// WithTTL overrides DefaultTTL.
func WithTTL(d time.Duration) SessionOption {
	return func(s *Sessions) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithSecureCookie marks cookies Secure (HTTPS deployments).
func WithSecureCookie(enabled bool) SessionOption {
	return func(s *Sessions) { s.secure = enabled }
}

// WithNow replaces the clock used to issue and verify tokens.
func WithNow(now func() time.Time) SessionOption {
	return func(s *Sessions) { s.now = now }
}

// NewSessions creates a token issuer keyed by secret.
func NewSessions(secret []byte, opts ...SessionOption) (*Sessions, error) {
	if len(secret) < minSecretLen {
		return nil, fmt.Errorf("session secret must be at least %d bytes", minSecretLen)
	}
	s := &Sessions{
		secret: secret,
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue signs a token for u.
func (s *Sessions) Issue(u core.User) (string, error) {
	now := s.now()
	claims := Claims{
		Email:    u.Email,
		Provider: u.Provider,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    "pinboard",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	if u.Name != nil {
		claims.Name = *u.Name
	}
	if u.Image != nil {
		claims.Picture = *u.Image
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Parse verifies token and returns its claims.
func (s *Sessions) Parse(token string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer("pinboard"),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: missing email", ErrInvalidSession)
	}
	return &claims, nil
}

// FromRequest reads the token from the session cookie, falling back to an
// Authorization Bearer header when the cookie is missing or invalid.
func (s *Sessions) FromRequest(r *http.Request) (*Claims, error) {
	var cookieErr error
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		claims, err := s.Parse(c.Value)
		if err == nil {
			return claims, nil
		}
		cookieErr = err
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if token := strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")); token != "" {
			return s.Parse(token)
		}
	}
	if cookieErr != nil {
		return nil, cookieErr
	}
	return nil, ErrNoSession
}

// Resolve adapts FromRequest to api.SessionFunc.
func (s *Sessions) Resolve(r *http.Request) (any, bool) {
	if claims, ok := ClaimsFrom(r.Context()); ok {
		return claims, true
	}
	claims, err := s.FromRequest(r)
	if err != nil {
		return nil, false
	}
	return claims, true
}

// SetCookie stores token in the session cookie.
func (s *Sessions) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func (s *Sessions) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

type claimsKey struct{}

// WithClaims returns a copy of ctx carrying c.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFrom returns the claims stored by the Gate.
func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok
}
