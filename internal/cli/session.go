package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"fragmentone/internal/clock"
	"fragmentone/internal/exchange"
	"fragmentone/internal/fragment/client"
	"fragmentone/internal/identity"
	"fragmentone/internal/localcache"
)

const (
	cacheFile    = "cache.db"
	identityFile = "identity.db"
)

// session is one page load: identity, remote store, local cache and engine.
type session struct {
	engine   *exchange.Engine
	client   *client.Client
	clock    clock.Clock
	identity identity.Identity

	cache    *localcache.SQLite
	idCache  *localcache.SQLite
	readyErr error
}

// openSession signs in, opens the device cache and fires identity-ready.
// A reconcile or cleanup failure is kept in readyErr; the session is
// still usable.
func openSession(ctx context.Context, opts *RootOptions) (*session, error) {
	loc, err := time.LoadLocation(opts.TZ)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid time zone", err)
	}

	s := &session{clock: clock.System{Location: loc}}

	s.idCache, err = localcache.OpenSQLite(filepath.Join(opts.StateDir, identityFile))
	if err != nil {
		return nil, WrapExitError(ExitFailure, "open identity store", err)
	}
	s.identity, err = identity.NewProvider(s.idCache, client.New(opts.Server, "")).Ensure(ctx)
	if err != nil {
		s.Close()
		return nil, WrapExitError(ExitFailure, "sign in", err)
	}

	s.cache, err = localcache.OpenSQLite(filepath.Join(opts.StateDir, cacheFile))
	if err != nil {
		s.Close()
		return nil, WrapExitError(ExitFailure, "open local cache", err)
	}

	s.client = client.New(opts.Server, s.identity.Token)
	s.engine = exchange.New(s.client, s.cache, s.clock)
	_, s.readyErr = s.engine.IdentityReady(ctx, s.identity.AuthorID)
	return s, nil
}

func (s *session) viewOutput() ViewOutput {
	return newViewOutput(clock.Today(s.clock), s.identity.AuthorID, s.engine.View())
}

func (s *session) Close() error {
	var errs []error
	for _, c := range []*localcache.SQLite{s.cache, s.idCache} {
		if c != nil {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

func storeFailure(what string, err error) error {
	return WrapExitError(ExitFailure, fmt.Sprintf("%s failed", what), err)
}
