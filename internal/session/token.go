package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for tokens that fail signature, expiry, issuer or subject checks.
var ErrInvalidToken = errors.New("invalid session token")

// Verifier checks HS256 session tokens issued by the identity provider.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier creates a verifier. An empty issuer skips the issuer check.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Enabled reports whether a signing secret is configured.
func (v *Verifier) Enabled() bool {
	return len(v.secret) > 0
}

// Verify parses a raw token and returns the identity in its subject claim.
func (v *Verifier) Verify(raw string) (Identity, error) {
	if !v.Enabled() {
		return Guest, fmt.Errorf("%w: verification secret not configured", ErrInvalidToken)
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Guest, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Guest, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return User(claims.Subject), nil
}

// FromAuthorization resolves an Authorization header value. An empty header is a guest.
func (v *Verifier) FromAuthorization(header string) (Identity, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return Guest, nil
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return Guest, fmt.Errorf("%w: expected bearer token", ErrInvalidToken)
	}
	return v.Verify(strings.TrimSpace(token))
}
