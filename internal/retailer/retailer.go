// Package retailer holds the signed-in retailer's profile and the storefront
// profile looked up by slug for branding.
package retailer

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/wondertwin-ai/lotterykit/internal/client"
	"github.com/wondertwin-ai/lotterykit/internal/logging"
	"github.com/wondertwin-ai/lotterykit/internal/persist"
	"github.com/wondertwin-ai/lotterykit/internal/principal"
)

// API is the part of the backend client the retailer store calls.
type API interface {
	RetailerBySlug(ctx context.Context, slug string) (*client.RetailerProfile, error)
}

// State is a point-in-time copy of the store.
type State struct {
	AuthRetailer    bool                    `json:"authRetailer"`
	RetailerProfile *client.RetailerProfile `json:"retailerProfile"`
	Storefront      *client.RetailerProfile `json:"storefront,omitempty"`
}

// Store is the retailer half of the session. It is safe for concurrent use.
type Store struct {
	account *principal.Account[client.RetailerProfile]
	api     API
	log     logrus.FieldLogger

	mu         sync.RWMutex
	storefront *client.RetailerProfile
}

// New hydrates a Store from storage. The retailer is authenticated when a
// retailer token is stored.
func New(storage persist.Storage, api API, logger logrus.FieldLogger) *Store {
	return &Store{
		account: principal.NewAccount[client.RetailerProfile](principal.Retailer, storage),
		api:     api,
		log:     logging.OrDiscard(logger).WithField("store", "retailer"),
	}
}

// Authenticated reports whether a retailer token is stored.
func (s *Store) Authenticated() bool { return s.account.Authenticated() }

// Profile returns the signed-in retailer's profile.
func (s *Store) Profile() (client.RetailerProfile, bool) { return s.account.Profile() }

// Token returns the retailer bearer token, or "" when signed out.
func (s *Store) Token() string { return s.account.Token() }

// SetProfile replaces the signed-in retailer's profile.
func (s *Store) SetProfile(profile client.RetailerProfile) error {
	return s.account.SetProfile(profile)
}

// SignIn stores the retailer token and commits the profile.
func (s *Store) SignIn(token string, profile client.RetailerProfile) error {
	if err := s.account.SetToken(token); err != nil {
		return err
	}
	if err := s.account.Login(profile); err != nil {
		return err
	}
	s.log.WithField("retailer_id", profile.ID).Info("retailer signed in")
	return nil
}

// Logout removes the retailer profile and token from storage and drops the
// in-memory profile, auth flag and storefront. Memory is cleared even when a
// removal fails.
func (s *Store) Logout() error {
	err := s.account.Logout()
	s.mu.Lock()
	s.storefront = nil
	s.mu.Unlock()
	if err != nil {
		s.log.WithError(err).Warn("retailer logout left storage keys behind")
		return err
	}
	return nil
}

// FetchBySlug resolves a storefront by its public slug. The result is kept
// in the storefront slot and never replaces the signed-in retailer's profile.
func (s *Store) FetchBySlug(ctx context.Context, slug string) (*client.RetailerProfile, error) {
	profile, err := s.api.RetailerBySlug(ctx, slug)
	if err != nil {
		s.log.WithError(err).WithField("slug", slug).Warn("storefront lookup failed")
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *profile
	s.storefront = &cp
	return profile, nil
}

// Storefront returns the last storefront fetched by slug.
func (s *Store) Storefront() (client.RetailerProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.storefront == nil {
		return client.RetailerProfile{}, false
	}
	return *s.storefront, true
}

// Snapshot returns a copy of the whole state.
func (s *Store) Snapshot() State {
	st := State{AuthRetailer: s.account.Authenticated()}
	if p, ok := s.account.Profile(); ok {
		st.RetailerProfile = &p
	}
	if p, ok := s.Storefront(); ok {
		st.Storefront = &p
	}
	return st
}
