// Package jwt verifica bearer tokens HS256 firmados con un secreto compartido.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pillsync/internal/ports/auth"

	gojwt "github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenEmpty    = errors.New("token is empty")
	ErrNotConfigured = errors.New("jwt secret not configured")
)

type tokenClaims struct {
	Email string `json:"email,omitempty"`
	gojwt.RegisteredClaims
}

// Verifier implementa auth.AuthVerifier. El user id sale del "sub".
type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewVerifier: issuer vacío = no se valida el "iss".
func NewVerifier(secret, issuer string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrNotConfigured
	}
	return &Verifier{
		secret: []byte(secret),
		issuer: strings.TrimSpace(issuer),
		now:    time.Now,
	}, nil
}

func (v *Verifier) Verify(ctx context.Context, token string) (auth.Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, ErrTokenEmpty
	}

	opts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithExpirationRequired(),
		gojwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, gojwt.WithIssuer(v.issuer))
	}

	parsed, err := gojwt.ParseWithClaims(token, &tokenClaims{}, func(t *gojwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return auth.Claims{}, fmt.Errorf("jwt verify failed: %w", err)
	}

	c, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return auth.Claims{}, errors.New("invalid token claims")
	}
	sub := strings.TrimSpace(c.Subject)
	if sub == "" {
		return auth.Claims{}, errors.New("jwt claims missing subject")
	}
	return auth.Claims{UserID: sub, Email: c.Email}, nil
}

// Sign emite un token para userID. Lo usan el comando `token` (dev) y los tests.
func (v *Verifier) Sign(userID, email string, ttl time.Duration) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", errors.New("user id required")
	}
	now := v.now()
	claims := tokenClaims{
		Email: email,
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    v.issuer,
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(v.secret)
}
