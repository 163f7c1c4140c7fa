// Package auth validates and issues the HS256 tokens the local front end
// presents. With no secret configured, auth is disabled entirely.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Validator struct {
	secret   []byte
	iss, aud string
}

func NewValidator(secret, issuer, audience string) *Validator {
	var key []byte
	if secret != "" {
		key = []byte(secret)
	}
	return &Validator{secret: key, iss: issuer, aud: audience}
}

// Enabled reports whether tokens are required at all.
func (v *Validator) Enabled() bool { return len(v.secret) > 0 }

func (v *Validator) Verify(tokenStr string) (jwt.MapClaims, error) {
	tok, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, errors.New("invalid token")
	}
	claims, _ := tok.Claims.(jwt.MapClaims)
	if v.iss != "" && claims["iss"] != v.iss {
		return nil, errors.New("iss mismatch")
	}
	if v.aud != "" && claims["aud"] != v.aud {
		return nil, errors.New("aud mismatch")
	}
	return claims, nil
}

// Issue mints a token for the front end to hold for the session.
func (v *Validator) Issue(subject string, ttl time.Duration) (string, error) {
	if !v.Enabled() {
		return "", errors.New("auth disabled")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if v.iss != "" {
		claims["iss"] = v.iss
	}
	if v.aud != "" {
		claims["aud"] = v.aud
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(v.secret)
}
