// Package principal models the two kinds of signed-in actor, end users and
// retailers, and the account slot both share: an auth flag derived from a
// stored token, plus a profile mirrored into durable storage.
package principal

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/wondertwin-ai/lotterykit/internal/persist"
)

// Kind identifies a principal type.
type Kind int

const (
	User Kind = iota
	Retailer
)

func (k Kind) String() string {
	switch k {
	case User:
		return "user"
	case Retailer:
		return "retailer"
	default:
		return "unknown"
	}
}

// ParseKind parses "user" or "retailer".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user", "":
		return User, nil
	case "retailer":
		return Retailer, nil
	}
	return 0, fmt.Errorf("unknown principal %q", s)
}

// TokenKey is the storage key holding the principal's bearer token.
func (k Kind) TokenKey() string {
	if k == Retailer {
		return persist.KeyRetailerToken
	}
	return persist.KeyUserToken
}

// ProfileKey is the storage key holding the principal's profile JSON.
func (k Kind) ProfileKey() string {
	if k == Retailer {
		return persist.KeyRetailerProfile
	}
	return persist.KeyUserDetails
}

// Account is the profile half of a principal's session. It is safe for
// concurrent use. Every mutation writes storage before memory, so a failed
// write leaves the account unchanged.
type Account[P any] struct {
	mu      sync.RWMutex
	kind    Kind
	storage persist.Storage
	authed  bool
	profile *P
}

// NewAccount hydrates an account from storage: it is authenticated iff a
// token is stored, and the profile is whatever decodes from the profile key.
func NewAccount[P any](kind Kind, storage persist.Storage) *Account[P] {
	a := &Account[P]{kind: kind, storage: storage}
	if tok, ok := storage.Get(kind.TokenKey()); ok && tok != "" {
		a.authed = true
	}
	var p P
	if persist.GetJSON(storage, kind.ProfileKey(), &p) {
		a.profile = &p
	}
	return a
}

// Kind returns the principal kind this account belongs to.
func (a *Account[P]) Kind() Kind { return a.kind }

// Authenticated reports the auth flag.
func (a *Account[P]) Authenticated() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.authed
}

// Profile returns a copy of the profile, and false when there is none.
func (a *Account[P]) Profile() (P, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.profile == nil {
		var zero P
		return zero, false
	}
	return *a.profile, true
}

// Token returns the stored bearer token, or "" when signed out.
func (a *Account[P]) Token() string {
	tok, _ := a.storage.Get(a.kind.TokenKey())
	return tok
}

// SetToken stores the bearer token.
func (a *Account[P]) SetToken(token string) error {
	if err := a.storage.Set(a.kind.TokenKey(), token); err != nil {
		return fmt.Errorf("storing %s token: %w", a.kind, err)
	}
	return nil
}

// Login marks the account authenticated and replaces the profile.
func (a *Account[P]) Login(profile P) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := persist.SetJSON(a.storage, a.kind.ProfileKey(), profile); err != nil {
		return err
	}
	a.authed = true
	a.profile = &profile
	return nil
}

// SetProfile replaces the profile without touching the auth flag.
func (a *Account[P]) SetProfile(profile P) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := persist.SetJSON(a.storage, a.kind.ProfileKey(), profile); err != nil {
		return err
	}
	a.profile = &profile
	return nil
}

// Update applies fn to a copy of the current profile and stores the result.
// It is a no-op returning false when there is no profile.
func (a *Account[P]) Update(fn func(*P)) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.profile == nil {
		return false, nil
	}
	next := *a.profile
	fn(&next)
	if err := persist.SetJSON(a.storage, a.kind.ProfileKey(), next); err != nil {
		return false, err
	}
	a.profile = &next
	return true, nil
}

// Logout removes the profile and token keys from storage and clears the auth
// flag and profile. Memory is cleared even when a removal fails; the joined
// removal errors are returned.
func (a *Account[P]) Logout() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var errs []error
	for _, key := range []string{a.kind.ProfileKey(), a.kind.TokenKey()} {
		if err := a.storage.Remove(key); err != nil {
			errs = append(errs, fmt.Errorf("removing %s: %w", key, err))
		}
	}
	a.authed = false
	a.profile = nil
	return errors.Join(errs...)
}

// Forget drops the in-memory state without touching storage. Used when
// another component has already cleared the keys.
func (a *Account[P]) Forget() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.authed = false
	a.profile = nil
}
