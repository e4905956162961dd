// Package identity resolves the caller of a ledger operation from a bearer token.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	minSecretLength = 16
	defaultTokenTTL = 24 * time.Hour
	defaultIssuer   = "modelrank"
)

// Sentinel kinds for identity errors.
var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrEmptySubject = errors.New("token subject is empty")
	ErrWeakSecret   = errors.New("signing secret must be at least 16 bytes")
	ErrNoIdentity   = errors.New("no caller identity in context")
)

// Claims carried by modelrank tokens. The subject is the participant identity.
type Claims struct {
	jwt.RegisteredClaims
}

// Option applies a configuration option to the Authority.
type Option func(*Authority)

// WithTTL sets how long minted tokens stay valid.
func WithTTL(ttl time.Duration) Option {
	return func(a *Authority) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

// WithIssuer sets the iss claim minted into and required from tokens.
func WithIssuer(issuer string) Option {
	return func(a *Authority) {
		if issuer != "" {
			a.issuer = issuer
		}
	}
}

// WithNow overrides the time source used for iat/exp.
func WithNow(now func() time.Time) Option {
	return func(a *Authority) {
		if now != nil {
			a.now = now
		}
	}
}

// Authority mints and verifies HS256 tokens.
type Authority struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewAuthority creates an authority signing with secret.
func NewAuthority(secret string, opts ...Option) (*Authority, error) {
	if len(secret) < minSecretLength {
		return nil, ErrWeakSecret
	}
	a := &Authority{
		secret: []byte(secret),
		ttl:    defaultTokenTTL,
		issuer: defaultIssuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Issue mints a token whose subject is identity.
func (a *Authority) Issue(identity string) (string, error) {
	if strings.TrimSpace(identity) == "" {
		return "", ErrEmptySubject
	}
	now := a.now()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   identity,
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
	}}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Verify parses a raw token and returns its subject.
func (a *Authority) Verify(raw string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	},
		jwt.WithIssuer(a.issuer),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", ErrEmptySubject
	}
	return claims.Subject, nil
}

// FromAuthorizationHeader extracts and verifies a "Bearer <token>" header value.
func (a *Authority) FromAuthorizationHeader(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", ErrMissingToken
	}
	return a.Verify(strings.TrimSpace(parts[1]))
}

type ctxKey struct{}

// WithIdentity stores the caller identity on ctx.
func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, ctxKey{}, identity)
}

// FromContext returns the caller identity stored on ctx.
func FromContext(ctx context.Context) (string, error) {
	id, ok := ctx.Value(ctxKey{}).(string)
	if !ok || id == "" {
		return "", ErrNoIdentity
	}
	return id, nil
}
