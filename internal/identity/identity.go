// Package identity keeps the visitor's anonymous sign-in on the device.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fragmentone/internal/fragment/model"
	"fragmentone/internal/localcache"
	"fragmentone/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenKey    = "authToken"
	authorIDKey = "authorID"

	// Tokens this close to expiry are replaced before use.
	refreshMargin = time.Minute
)

var ErrNoSubject = errors.New("token has no subject")

// Authenticator mints anonymous identities and renews expired ones.
type Authenticator interface {
	SignInAnonymously(ctx context.Context) (model.AnonymousSignInResponse, error)
	Refresh(ctx context.Context, token string) (model.AnonymousSignInResponse, error)
}

type Identity struct {
	Token    string `json:"-"`
	AuthorID string `json:"author_id"`
}

type Provider struct {
	cache localcache.Store
	auth  Authenticator
	now   func() time.Time
}

func NewProvider(cache localcache.Store, auth Authenticator) *Provider {
	return &Provider{cache: cache, auth: auth, now: time.Now}
}

// Ensure returns the stored identity while its token is still valid. An
// expired token is refreshed so the author ID survives; only when that
// fails, or nothing is stored, does it sign in anonymously as a new author.
func (p *Provider) Ensure(ctx context.Context) (Identity, error) {
	id, fresh, ok := p.stored()
	if ok && fresh {
		return id, nil
	}

	if ok {
		refreshed, err := p.refresh(ctx, id.Token)
		if err == nil {
			logger.Sugar.Debugf("Refreshed identity token for %s", refreshed.AuthorID)
			return refreshed, nil
		}
		logger.Sugar.Warnf("Could not refresh identity for %s, signing in again: %v", id.AuthorID, err)
	}

	resp, err := p.auth.SignInAnonymously(ctx)
	if err != nil {
		return Identity{}, fmt.Errorf("anonymous sign-in: %w", err)
	}
	id, err = p.save(resp)
	if err != nil {
		return Identity{}, err
	}
	logger.Sugar.Debugf("Signed in anonymously as %s", id.AuthorID)
	return id, nil
}

func (p *Provider) refresh(ctx context.Context, token string) (Identity, error) {
	resp, err := p.auth.Refresh(ctx, token)
	if err != nil {
		return Identity{}, err
	}
	return p.save(resp)
}

func (p *Provider) save(resp model.AnonymousSignInResponse) (Identity, error) {
	id := Identity{Token: resp.Token, AuthorID: resp.AuthorID}
	if id.AuthorID == "" {
		var err error
		if id.AuthorID, err = subject(resp.Token); err != nil {
			return Identity{}, err
		}
	}

	if err := p.cache.Set(tokenKey, id.Token); err != nil {
		logger.Sugar.Warnf("Failed to persist identity token: %v", err)
	} else if err := p.cache.Set(authorIDKey, id.AuthorID); err != nil {
		logger.Sugar.Warnf("Failed to persist author ID: %v", err)
	}
	return id, nil
}

// Forget drops the stored identity; the next Ensure signs in again.
func (p *Provider) Forget() error {
	return errors.Join(p.cache.Remove(tokenKey), p.cache.Remove(authorIDKey))
}

// stored reports the identity on disk and whether its token is still fresh.
func (p *Provider) stored() (id Identity, fresh, ok bool) {
	token, ok, err := p.cache.Get(tokenKey)
	if err != nil {
		logger.Sugar.Warnf("Failed to read identity token: %v", err)
		return Identity{}, false, false
	}
	if !ok || token == "" {
		return Identity{}, false, false
	}

	// The server checks the signature; here only expiry and subject matter.
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		logger.Sugar.Warnf("Discarding unreadable identity token: %v", err)
		return Identity{}, false, false
	}
	if claims.Subject == "" {
		return Identity{}, false, false
	}

	authorID, ok, _ := p.cache.Get(authorIDKey)
	if ok && authorID != claims.Subject {
		logger.Sugar.Warnf("Stored author %s does not match token subject %s", authorID, claims.Subject)
	}
	id = Identity{Token: token, AuthorID: claims.Subject}

	if claims.ExpiresAt != nil && !p.now().Add(refreshMargin).Before(claims.ExpiresAt.Time) {
		logger.Sugar.Debugf("Identity token for %s expired at %s", claims.Subject, claims.ExpiresAt.Time)
		return id, false, true
	}
	return id, true, true
}

func subject(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", ErrNoSubject
	}
	return claims.Subject, nil
}
