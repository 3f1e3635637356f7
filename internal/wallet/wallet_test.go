package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wondertwin-ai/lotterykit/internal/client"
	"github.com/wondertwin-ai/lotterykit/internal/persist"
)

type staticToken string

func (t staticToken) Token() string { return string(t) }

type fakeAPI struct {
	balance      func(ctx context.Context, token string) (float64, error)
	transactions func(ctx context.Context, token string) ([]client.Transaction, error)
}

func (f *fakeAPI) WalletBalance(ctx context.Context, token string) (float64, error) {
	return f.balance(ctx, token)
}

func (f *fakeAPI) WalletTransactions(ctx context.Context, token string) ([]client.Transaction, error) {
	return f.transactions(ctx, token)
}

var errWallet = &client.Error{Op: client.OpWalletBalance, Status: 500, Message: "Failed to fetch wallet balance"}

func failBalance(context.Context, string) (float64, error) { return 0, errWallet }

func failTransactions(context.Context, string) ([]client.Transaction, error) {
	return nil, errWallet
}

func TestHydrate(t *testing.T) {
	storage := persist.NewMemory()
	require.NoError(t, storage.Set(persist.KeyWalletBalance, "250.5"))
	require.NoError(t, persist.SetJSON(storage, persist.KeyWalletTransactions, []client.Transaction{{ID: "1", Amount: 10}}))

	s := New(storage, &fakeAPI{}, staticToken(""), nil)
	assert.Equal(t, 250.5, s.Balance())
	assert.Len(t, s.Transactions(), 1)
}

func TestHydrateGarbage(t *testing.T) {
	storage := persist.NewMemory()
	require.NoError(t, storage.Set(persist.KeyWalletBalance, "lots"))
	require.NoError(t, storage.Set(persist.KeyWalletTransactions, "[{"))

	s := New(storage, &fakeAPI{}, nil, nil)
	assert.Zero(t, s.Balance())
	assert.Equal(t, []client.Transaction{}, s.Transactions())
}

func TestGetWalletBalanceSuccess(t *testing.T) {
	storage := persist.NewMemory()
	api := &fakeAPI{balance: func(_ context.Context, token string) (float64, error) {
		assert.Equal(t, "tok", token)
		return 120, nil
	}}
	s := New(storage, api, staticToken("tok"), nil)

	bal, err := s.GetWalletBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 120.0, bal)
	assert.Equal(t, 120.0, s.Balance())
	raw, _ := storage.Get(persist.KeyWalletBalance)
	assert.Equal(t, "120", raw)
}

func TestGetWalletBalanceRejectionResetsToZero(t *testing.T) {
	for _, prior := range []float64{0, 1, 99.5, 1e6} {
		storage := persist.NewMemory()
		s := New(storage, &fakeAPI{balance: failBalance}, staticToken("tok"), nil)
		require.NoError(t, s.SetBalance(prior))

		_, err := s.GetWalletBalance(context.Background())
		require.Error(t, err)
		assert.Zero(t, s.Balance(), "prior %v must not survive a failed fetch", prior)
		raw, _ := storage.Get(persist.KeyWalletBalance)
		assert.Equal(t, "0", raw)
	}
}

func TestGetWalletBalancePendingReadsZero(t *testing.T) {
	inFlight := make(chan struct{})
	release := make(chan struct{})
	api := &fakeAPI{balance: func(context.Context, string) (float64, error) {
		close(inFlight)
		<-release
		return 42, nil
	}}
	s := New(persist.NewMemory(), api, staticToken("tok"), nil)
	require.NoError(t, s.SetBalance(500))

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.GetWalletBalance(context.Background())
	}()

	<-inFlight
	assert.Zero(t, s.Balance())
	close(release)
	<-done
	assert.Equal(t, 42.0, s.Balance())
}

func TestGetWalletTransactionsScenario(t *testing.T) {
	storage := persist.NewMemory()
	want := []client.Transaction{{ID: "1", Amount: 100, Type: client.TransactionCredit, Description: "x", Timestamp: "2024-01-01T00:00:00Z"}}
	api := &fakeAPI{transactions: func(context.Context, string) ([]client.Transaction, error) {
		return want, nil
	}}
	s := New(storage, api, staticToken("tok"), nil)

	got, err := s.GetWalletTransactions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, want, s.Transactions())

	var stored []client.Transaction
	require.True(t, persist.GetJSON(storage, persist.KeyWalletTransactions, &stored))
	assert.Equal(t, want, stored)
}

func TestGetWalletTransactionsReplacesWholesale(t *testing.T) {
	storage := persist.NewMemory()
	require.NoError(t, persist.SetJSON(storage, persist.KeyWalletTransactions, []client.Transaction{{ID: "old"}}))
	api := &fakeAPI{transactions: func(context.Context, string) ([]client.Transaction, error) {
		return []client.Transaction{{ID: "new"}}, nil
	}}
	s := New(storage, api, staticToken("tok"), nil)
	_, err := s.GetWalletTransactions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []client.Transaction{{ID: "new"}}, s.Transactions())
}

func TestGetWalletTransactionsRejectionEmpties(t *testing.T) {
	storage := persist.NewMemory()
	require.NoError(t, persist.SetJSON(storage, persist.KeyWalletTransactions, []client.Transaction{{ID: "old"}}))
	s := New(storage, &fakeAPI{transactions: failTransactions}, staticToken("tok"), nil)

	_, err := s.GetWalletTransactions(context.Background())
	require.Error(t, err)
	assert.Equal(t, []client.Transaction{}, s.Transactions())
	raw, _ := storage.Get(persist.KeyWalletTransactions)
	assert.Equal(t, "[]", raw)
}

type failingStorage struct{ *persist.Memory }

func (f failingStorage) Set(string, string) error { return errors.New("quota exceeded") }

func TestSetBalanceWriteFailure(t *testing.T) {
	mem := persist.NewMemory()
	require.NoError(t, mem.Set(persist.KeyWalletBalance, "10"))
	s := New(failingStorage{mem}, &fakeAPI{}, nil, nil)

	assert.Error(t, s.SetBalance(20))
	assert.Equal(t, 10.0, s.Balance())
}

func TestFailuresResetMemoryWhenStorageFails(t *testing.T) {
	mem := persist.NewMemory()
	require.NoError(t, mem.Set(persist.KeyWalletBalance, "10"))
	require.NoError(t, persist.SetJSON(mem, persist.KeyWalletTransactions, []client.Transaction{{ID: "old"}}))
	s := New(failingStorage{mem}, &fakeAPI{balance: failBalance, transactions: failTransactions}, staticToken("tok"), nil)
	require.Len(t, s.Transactions(), 1)

	_, err := s.GetWalletBalance(context.Background())
	require.Error(t, err)
	assert.Zero(t, s.Balance())

	_, err = s.GetWalletTransactions(context.Background())
	require.Error(t, err)
	assert.Equal(t, []client.Transaction{}, s.Transactions())
}

func TestSnapshotJSON(t *testing.T) {
	s := New(persist.NewMemory(), &fakeAPI{}, nil, nil)
	require.NoError(t, s.SetBalance(5))
	data, err := json.Marshal(s.Snapshot())
	require.NoError(t, err)
	assert.JSONEq(t, `{"balance":5,"transactions":[]}`, string(data))
}
