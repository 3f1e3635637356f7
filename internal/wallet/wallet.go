// Package wallet holds the user's wallet balance and transaction history,
// mirrored into local storage.
//
// A failed balance fetch resets the balance to zero, never to a stale
// value. A failed history fetch empties the list.
package wallet

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/wondertwin-ai/lotterykit/internal/client"
	"github.com/wondertwin-ai/lotterykit/internal/logging"
	"github.com/wondertwin-ai/lotterykit/internal/persist"
)

// API is the part of the backend client the wallet store calls.
type API interface {
	WalletBalance(ctx context.Context, token string) (float64, error)
	WalletTransactions(ctx context.Context, token string) ([]client.Transaction, error)
}

// TokenSource yields the bearer token for wallet calls. The session store
// satisfies it.
type TokenSource interface {
	Token() string
}

// State is a point-in-time copy of the store.
type State struct {
	Balance      float64              `json:"balance"`
	Transactions []client.Transaction `json:"transactions"`
}

// Store is the wallet. It is safe for concurrent use.
type Store struct {
	storage persist.Storage
	api     API
	tokens  TokenSource
	log     logrus.FieldLogger

	mu           sync.RWMutex
	balance      float64
	transactions []client.Transaction
}

// New hydrates a Store from storage.
func New(storage persist.Storage, api API, tokens TokenSource, logger logrus.FieldLogger) *Store {
	s := &Store{
		storage:      storage,
		api:          api,
		tokens:       tokens,
		log:          logging.OrDiscard(logger).WithField("store", "wallet"),
		transactions: []client.Transaction{},
	}
	if raw, ok := storage.Get(persist.KeyWalletBalance); ok {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			s.balance = v
		}
	}
	persist.GetJSON(storage, persist.KeyWalletTransactions, &s.transactions)
	if s.transactions == nil {
		s.transactions = []client.Transaction{}
	}
	return s
}

// Balance returns the last known balance.
func (s *Store) Balance() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balance
}

// Transactions returns a copy of the wallet history.
func (s *Store) Transactions() []client.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.transactions)
}

// Snapshot returns a copy of the whole state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{Balance: s.balance, Transactions: slices.Clone(s.transactions)}
}

// SetBalance sets the balance directly, e.g. after a purchase.
func (s *Store) SetBalance(v float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitBalance(v)
}

// GetWalletBalance refreshes the balance. The balance reads zero while the
// call is in flight and stays zero if it fails, in memory even when the
// stored copy cannot be written.
func (s *Store) GetWalletBalance(ctx context.Context) (float64, error) {
	if err := s.SetBalance(0); err != nil {
		s.mu.Lock()
		s.balance = 0
		s.mu.Unlock()
		return 0, err
	}
	bal, err := s.api.WalletBalance(ctx, s.token())

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.log.WithError(err).Warn("fetching wallet balance failed")
		if perr := s.commitBalance(0); perr != nil {
			s.log.WithError(perr).Warn("resetting stored balance failed")
		}
		s.balance = 0
		return 0, err
	}
	if err := s.commitBalance(bal); err != nil {
		return 0, err
	}
	return bal, nil
}

// GetWalletTransactions replaces the history with the backend's list. On
// failure the history is emptied.
func (s *Store) GetWalletTransactions(ctx context.Context) ([]client.Transaction, error) {
	txs, err := s.api.WalletTransactions(ctx, s.token())

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.log.WithError(err).Warn("fetching wallet transactions failed")
		if perr := s.commitTransactions([]client.Transaction{}); perr != nil {
			s.log.WithError(perr).Warn("clearing stored transactions failed")
		}
		s.transactions = []client.Transaction{}
		return nil, err
	}
	if txs == nil {
		txs = []client.Transaction{}
	}
	if err := s.commitTransactions(txs); err != nil {
		return nil, err
	}
	return slices.Clone(txs), nil
}

func (s *Store) token() string {
	if s.tokens == nil {
		return ""
	}
	return s.tokens.Token()
}

// commitBalance persists v and then installs it. Callers hold mu.
func (s *Store) commitBalance(v float64) error {
	if err := s.storage.Set(persist.KeyWalletBalance, strconv.FormatFloat(v, 'f', -1, 64)); err != nil {
		return fmt.Errorf("writing %s: %w", persist.KeyWalletBalance, err)
	}
	s.balance = v
	return nil
}

func (s *Store) commitTransactions(txs []client.Transaction) error {
	if err := persist.SetJSON(s.storage, persist.KeyWalletTransactions, txs); err != nil {
		return err
	}
	s.transactions = txs
	return nil
}
