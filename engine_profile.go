package goAuthClient

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goAuthClient/profilecache"
	"github.com/MrEthical07/goAuthClient/transport"
)

// Profile returns the signed-in user's profile, from the cache when warm and
// from the backend otherwise.
func (e *Engine) Profile(ctx context.Context) (Profile, error) {
	if err := e.ensureReady(); err != nil {
		return Profile{}, err
	}
	snap := e.session.Snapshot()
	if !snap.IsAuthenticated || snap.User == nil {
		return Profile{}, ErrNotAuthenticated
	}

	gen := e.profiles.Generation()
	var p Profile
	ok, err := e.profiles.Get(ctx, e.profiles.Key(profilecache.ResourceProfile, snap.User.ID), &p)
	if err != nil {
		e.warn("goAuthClient: reading profile cache failed", "error", err)
	}
	if ok {
		return p, nil
	}

	access, err := e.AccessToken(ctx)
	if err != nil {
		return Profile{}, err
	}
	return e.warmProfile(ctx, gen, snap.User.ID, access)
}

// warmProfile fetches the profile into the cache and mirrors the server's
// user record into the session. gen is the cache generation captured while
// userID was signed in; a logout since then drops the result.
func (e *Engine) warmProfile(ctx context.Context, gen uint64, userID, accessToken string) (Profile, error) {
	key := e.profiles.Key(profilecache.ResourceProfile, userID)
	v, err := e.profiles.WarmAt(ctx, gen, key, func(ctx context.Context) (any, error) {
		p, err := e.transport.Profile(ctx, accessToken)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
	if errors.Is(err, profilecache.ErrPurged) {
		return Profile{}, fmt.Errorf("%w: %w", ErrNotAuthenticated, err)
	}
	if err != nil {
		return Profile{}, mapTransportError(err)
	}
	p, ok := v.(transport.Profile)
	if !ok {
		return Profile{}, fmt.Errorf("goAuthClient: unexpected profile value %T", v)
	}

	snap := e.session.Snapshot()
	if snap.IsAuthenticated && snap.User != nil && p.User.ID == snap.User.ID {
		u := *snap.User
		if p.User.Name != "" {
			u.Name = p.User.Name
		}
		if p.User.AccountKind != "" {
			u.AccountKind = p.User.AccountKind
		}
		e.session.SetUser(ctx, u)
	}
	return p, nil
}
