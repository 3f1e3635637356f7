// Package session holds the signed-in end user's state: auth flag, profile,
// cart and ticket lists. Every mutation is written through to durable
// storage before it becomes visible in memory.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/wondertwin-ai/lotterykit/internal/client"
	"github.com/wondertwin-ai/lotterykit/internal/logging"
	"github.com/wondertwin-ai/lotterykit/internal/persist"
	"github.com/wondertwin-ai/lotterykit/internal/principal"
)

// ErrNoTicketID is returned when a cart ticket has no id.
var ErrNoTicketID = errors.New("ticket id is required")

// API is the part of the backend client the session store calls.
type API interface {
	Login(ctx context.Context, kind principal.Kind, creds client.Credentials) (*client.LoginResponse, error)
	UserTickets(ctx context.Context, token string) ([]client.Ticket, error)
	TicketsByLottery(ctx context.Context, lotteryID string) ([]client.Ticket, error)
	PurchaseTicket(ctx context.Context, token string, req client.PurchaseRequest) (*client.PurchaseResult, error)
	RecordTransaction(ctx context.Context, token string, tx any) (json.RawMessage, error)
}

// State is a point-in-time copy of the store.
type State struct {
	AuthUser         bool                `json:"authUser"`
	UserDetails      *client.UserProfile `json:"userDetails"`
	UserTickets      []client.Ticket     `json:"userTickets"`
	PurchasedTickets []client.Ticket     `json:"purchasedTickets"`
	CartTickets      []client.Ticket     `json:"cartTickets"`
	Loading          bool                `json:"loading"`
}

// ProfilePatch is a partial profile update. Nil fields are left unchanged.
type ProfilePatch struct {
	Name        *string
	Email       *string
	PhoneNumber *string
	Gender      *string
	Address     *client.Address
}

// Store is the end user's session. It is safe for concurrent use.
type Store struct {
	account *principal.Account[client.UserProfile]
	storage persist.Storage
	api     API
	log     logrus.FieldLogger

	mu               sync.RWMutex
	userTickets      []client.Ticket
	purchasedTickets []client.Ticket
	cart             []client.Ticket
	loading          bool
}

// New hydrates a Store from storage. Absent or unreadable keys start empty.
func New(storage persist.Storage, api API, logger logrus.FieldLogger) *Store {
	s := &Store{
		account:          principal.NewAccount[client.UserProfile](principal.User, storage),
		storage:          storage,
		api:              api,
		log:              logging.OrDiscard(logger).WithField("store", "session"),
		userTickets:      []client.Ticket{},
		purchasedTickets: []client.Ticket{},
		cart:             []client.Ticket{},
	}
	persist.GetJSON(storage, persist.KeyUserTickets, &s.userTickets)
	persist.GetJSON(storage, persist.KeyCartTickets, &s.cart)
	if s.userTickets == nil {
		s.userTickets = []client.Ticket{}
	}
	if s.cart == nil {
		s.cart = []client.Ticket{}
	}
	return s
}

// Authenticated reports the authUser flag.
func (s *Store) Authenticated() bool { return s.account.Authenticated() }

// Profile returns the user's profile, and false when there is none.
func (s *Store) Profile() (client.UserProfile, bool) { return s.account.Profile() }

// Token returns the stored bearer token.
func (s *Store) Token() string { return s.account.Token() }

// Cart returns a copy of the cart.
func (s *Store) Cart() []client.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.cart)
}

// UserTickets returns a copy of the user's tickets.
func (s *Store) UserTickets() []client.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.userTickets)
}

// PurchasedTickets returns a copy of the last fetched lottery ticket list.
func (s *Store) PurchasedTickets() []client.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.purchasedTickets)
}

// Loading reports the loading flag.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Snapshot returns a copy of the whole state.
func (s *Store) Snapshot() State {
	st := State{AuthUser: s.account.Authenticated()}
	if p, ok := s.account.Profile(); ok {
		st.UserDetails = &p
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	st.UserTickets = slices.Clone(s.userTickets)
	st.PurchasedTickets = slices.Clone(s.purchasedTickets)
	st.CartTickets = slices.Clone(s.cart)
	st.Loading = s.loading
	return st
}

// Login marks the user authenticated and replaces the profile.
func (s *Store) Login(profile client.UserProfile) error {
	return s.account.Login(profile)
}

// SignIn stores the bearer token and then commits the profile.
func (s *Store) SignIn(token string, profile client.UserProfile) error {
	if err := s.account.SetToken(token); err != nil {
		return err
	}
	return s.account.Login(profile)
}

// Logout signs the user out. It removes the profile, token, cart and
// retailer profile keys whichever principal was signed in. Every key is
// attempted and memory is reset even when a removal fails.
func (s *Store) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for _, key := range []string{
		persist.KeyUserDetails,
		persist.KeyUserToken,
		persist.KeyCartTickets,
		persist.KeyRetailerProfile,
	} {
		if err := s.storage.Remove(key); err != nil {
			errs = append(errs, fmt.Errorf("logout: removing %s: %w", key, err))
		}
	}
	s.account.Forget()
	s.cart = []client.Ticket{}
	if err := errors.Join(errs...); err != nil {
		s.log.WithError(err).Warn("logged out with storage errors")
		return err
	}
	s.log.Info("logged out")
	return nil
}

// UpdateUser merges the set fields of patch into the profile. It is a no-op
// reporting false when there is no profile.
func (s *Store) UpdateUser(patch ProfilePatch) (bool, error) {
	return s.account.Update(func(p *client.UserProfile) {
		if patch.Name != nil {
			p.Name = *patch.Name
		}
		if patch.Email != nil {
			p.Email = *patch.Email
		}
		if patch.PhoneNumber != nil {
			p.PhoneNumber = *patch.PhoneNumber
		}
		if patch.Gender != nil {
			p.Gender = *patch.Gender
		}
		if patch.Address != nil {
			addr := *patch.Address
			p.Address = &addr
		}
	})
}

// SetCartTickets replaces the cart.
func (s *Store) SetCartTickets(tickets []client.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := slices.Clone(tickets)
	if next == nil {
		next = []client.Ticket{}
	}
	return s.commitCart(next)
}

// AddToCart appends the ticket. A ticket whose id is already in the cart
// replaces that entry in place.
func (s *Store) AddToCart(ticket client.Ticket) error {
	if ticket.ID == "" {
		return ErrNoTicketID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := slices.Clone(s.cart)
	if i := slices.IndexFunc(next, func(t client.Ticket) bool { return t.ID == ticket.ID }); i >= 0 {
		next[i] = ticket
	} else {
		next = append(next, ticket)
	}
	return s.commitCart(next)
}

// RemoveFromCart drops every cart entry with the id.
func (s *Store) RemoveFromCart(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := slices.DeleteFunc(slices.Clone(s.cart), func(t client.Ticket) bool { return t.ID == id })
	return s.commitCart(next)
}

// ClearCart empties the cart and removes its storage key.
func (s *Store) ClearCart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.storage.Remove(persist.KeyCartTickets); err != nil {
		return fmt.Errorf("removing %s: %w", persist.KeyCartTickets, err)
	}
	s.cart = []client.Ticket{}
	return nil
}

// commitCart persists next and then installs it. Callers hold mu.
func (s *Store) commitCart(next []client.Ticket) error {
	if err := persist.SetJSON(s.storage, persist.KeyCartTickets, next); err != nil {
		return err
	}
	s.cart = next
	return nil
}

// SetLoading sets the loading flag.
func (s *Store) SetLoading(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = v
}
