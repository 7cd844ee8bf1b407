// Package auth issues and verifies the anonymous visitor tokens.
// A token is an HS256 JWT whose "sub" claim is the visitor's author ID.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrNoSecret = errors.New("server is not configured to validate JWTs")

type Issuer struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{Secret: []byte(secret), TTL: ttl, Issuer: "fragment-one", now: time.Now}
}

// IssueAnonymous mints a token for a brand-new author.
func (i *Issuer) IssueAnonymous() (token, authorID string, err error) {
	if len(i.Secret) == 0 {
		return "", "", ErrNoSecret
	}
	authorID = uuid.NewString()
	token, err = i.sign(authorID)
	if err != nil {
		return "", "", err
	}
	return token, authorID, nil
}

// Refresh re-signs a token this issuer produced, keeping its author.
// Expiry is not checked, so a visitor whose token lapsed stays the same author.
func (i *Issuer) Refresh(tokenString string) (token, authorID string, err error) {
	authorID, err = i.subject(tokenString, jwt.WithoutClaimsValidation())
	if err != nil {
		return "", "", err
	}
	token, err = i.sign(authorID)
	if err != nil {
		return "", "", err
	}
	return token, authorID, nil
}

// Verify returns the author ID carried by a valid token.
func (i *Issuer) Verify(tokenString string) (string, error) {
	return i.subject(tokenString, jwt.WithTimeFunc(i.now))
}

func (i *Issuer) sign(authorID string) (string, error) {
	now := i.now()
	claims := jwt.RegisteredClaims{
		Subject:   authorID,
		Issuer:    i.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.TTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

func (i *Issuer) subject(tokenString string, opts ...jwt.ParserOption) (string, error) {
	if len(i.Secret) == 0 {
		return "", ErrNoSecret
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.Secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	authorID, err := token.Claims.GetSubject()
	if err != nil || authorID == "" {
		return "", errors.New("user ID (sub) claim is missing or invalid")
	}
	return authorID, nil
}
