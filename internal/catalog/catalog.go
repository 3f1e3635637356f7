// Package catalog holds the lottery catalog shown on the storefront home
// page. It lives in memory only and is refetched on demand.
package catalog

import (
	"context"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/wondertwin-ai/lotterykit/internal/client"
	"github.com/wondertwin-ai/lotterykit/internal/logging"
)

// API is the part of the backend client the catalog calls.
type API interface {
	Lotteries(ctx context.Context) ([]client.Lottery, error)
}

// State is a point-in-time copy of the store.
type State struct {
	Lotteries []client.Lottery `json:"lotteries"`
	Loading   bool             `json:"loading"`
}

// Store is the catalog. It is safe for concurrent use.
type Store struct {
	api API
	log logrus.FieldLogger

	mu        sync.RWMutex
	lotteries []client.Lottery
	loading   bool
}

// New returns an empty catalog.
func New(api API, logger logrus.FieldLogger) *Store {
	return &Store{
		api:       api,
		log:       logging.OrDiscard(logger).WithField("store", "catalog"),
		lotteries: []client.Lottery{},
	}
}

// FetchAll replaces the catalog with the backend's list. Loading is set
// while the call is in flight. On failure the catalog is emptied.
func (s *Store) FetchAll(ctx context.Context) ([]client.Lottery, error) {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	lots, err := s.api.Lotteries(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.log.WithError(err).Warn("fetching lotteries failed")
		s.lotteries = []client.Lottery{}
		return nil, err
	}
	if lots == nil {
		lots = []client.Lottery{}
	}
	s.lotteries = lots
	s.log.WithField("count", len(lots)).Debug("catalog refreshed")
	return slices.Clone(lots), nil
}

// Lotteries returns a copy of the catalog.
func (s *Store) Lotteries() []client.Lottery {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.lotteries)
}

// Get looks a lottery up by id.
func (s *Store) Get(id string) (client.Lottery, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := slices.IndexFunc(s.lotteries, func(l client.Lottery) bool { return l.ID == id })
	if i < 0 {
		return client.Lottery{}, false
	}
	return s.lotteries[i], true
}

func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Snapshot returns a copy of the whole state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{Lotteries: slices.Clone(s.lotteries), Loading: s.loading}
}
