package session

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/wondertwin-ai/lotterykit/internal/client"
	"github.com/wondertwin-ai/lotterykit/internal/persist"
	"github.com/wondertwin-ai/lotterykit/internal/principal"
)

// GetUserTickets fetches the signed-in user's tickets. Loading is set while
// the call is in flight and cleared on either outcome. On failure the ticket
// list is emptied in memory even if the stored copy cannot be cleared.
func (s *Store) GetUserTickets(ctx context.Context) ([]client.Ticket, error) {
	s.SetLoading(true)
	tickets, err := s.api.UserTickets(ctx, s.account.Token())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.log.WithError(err).Warn("fetching user tickets failed")
		if perr := persist.SetJSON(s.storage, persist.KeyUserTickets, []client.Ticket{}); perr != nil {
			s.log.WithError(perr).Warn("clearing stored tickets failed")
		}
		s.userTickets = []client.Ticket{}
		return nil, err
	}
	if tickets == nil {
		tickets = []client.Ticket{}
	}
	if err := persist.SetJSON(s.storage, persist.KeyUserTickets, tickets); err != nil {
		return nil, err
	}
	s.userTickets = tickets
	return cloneTickets(tickets), nil
}

// FetchTicketsByLotteryID fetches the tickets sold for a lottery. Loading is
// set while the call is in flight and cleared on either outcome. On failure
// the list is emptied.
func (s *Store) FetchTicketsByLotteryID(ctx context.Context, lotteryID string) ([]client.Ticket, error) {
	s.SetLoading(true)
	tickets, err := s.api.TicketsByLottery(ctx, lotteryID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.log.WithError(err).WithField("lottery_id", lotteryID).Warn("fetching lottery tickets failed")
		s.purchasedTickets = []client.Ticket{}
		return nil, err
	}
	if tickets == nil {
		tickets = []client.Ticket{}
	}
	s.purchasedTickets = tickets
	return cloneTickets(tickets), nil
}

// PurchaseTicket buys tickets for a lottery. The store is not changed;
// callers re-fetch tickets and balance to see the effect.
func (s *Store) PurchaseTicket(ctx context.Context, req client.PurchaseRequest) (*client.PurchaseResult, error) {
	res, err := s.api.PurchaseTicket(ctx, s.account.Token(), req)
	log := s.log.WithFields(logrus.Fields{"lottery_id": req.LotteryID, "count": len(req.Tickets)})
	if err != nil {
		log.WithError(err).Warn("ticket purchase failed")
		return nil, err
	}
	log.WithField("result", string(res.Raw)).Info("ticket purchase")
	return res, nil
}

// RecordTransaction posts a transaction record and returns the backend's
// echo. The store is not changed.
func (s *Store) RecordTransaction(ctx context.Context, tx any) (json.RawMessage, error) {
	res, err := s.api.RecordTransaction(ctx, s.account.Token(), tx)
	if err != nil {
		s.log.WithError(err).Warn("recording transaction failed")
		return nil, err
	}
	return res, nil
}

// UserLogin exchanges credentials for a token and profile. Nothing is
// committed; pass the result to SignIn or Login.
func (s *Store) UserLogin(ctx context.Context, creds client.Credentials) (*client.LoginResponse, error) {
	return s.api.Login(ctx, principal.User, creds)
}

func cloneTickets(in []client.Ticket) []client.Ticket {
	out := make([]client.Ticket, len(in))
	copy(out, in)
	return out
}
