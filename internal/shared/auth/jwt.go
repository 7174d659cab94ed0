package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the identity carried by tokens issued by the tender backend.
// Sub holds the username and Role the backend role name.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

var (
	ErrInvalidToken  = errors.New("invalid token")
	errMissingSecret = errors.New("jwt secret not configured")
)

// Verifier parses upstream bearer tokens. With an empty secret the signature is
// not checked; the tender backend remains the authority on every proxied call.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier builds a Verifier. Production requires a secret.
func NewVerifier(secret, env string) (*Verifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" && env == "production" {
		return nil, fmt.Errorf("%w: JWT_SECRET required in production", errMissingSecret)
	}
	return &Verifier{secret: []byte(secret), now: time.Now}, nil
}

// Verify returns the claims of a well-formed, unexpired token with a subject.
func (v *Verifier) Verify(token string) (Claims, error) {
	var claims Claims
	parserOpts := []jwt.ParserOption{
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	}
	if len(v.secret) == 0 {
		if _, _, err := jwt.NewParser(parserOpts...).ParseUnverified(token, &claims); err != nil {
			return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		exp, err := claims.GetExpirationTime()
		if err != nil || exp == nil || !v.now().Before(exp.Time) {
			return Claims{}, ErrInvalidToken
		}
	} else {
		parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return v.secret, nil
		}, parserOpts...)
		if err != nil || !parsed.Valid {
			return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// SignHS256 issues a token in the same shape the tender backend uses.
func SignHS256(secret string, subject, role string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("sub is required")
	}
	if strings.TrimSpace(secret) == "" {
		secret = "dev-secret"
	}
	now := time.Now().UTC()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
