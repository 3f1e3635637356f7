package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wondertwin-ai/lotterykit/internal/client"
)

type fakeAPI struct {
	lotteries func(ctx context.Context) ([]client.Lottery, error)
}

func (f *fakeAPI) Lotteries(ctx context.Context) ([]client.Lottery, error) {
	return f.lotteries(ctx)
}

var errCatalog = &client.Error{Op: client.OpLotteries, Status: 500, Message: "Failed to fetch lotteries"}

func TestEmptyUntilFetched(t *testing.T) {
	s := New(&fakeAPI{}, nil)
	assert.Equal(t, []client.Lottery{}, s.Lotteries())
	assert.False(t, s.Loading())
	_, ok := s.Get("daily")
	assert.False(t, ok)
}

func TestFetchAll(t *testing.T) {
	var s *Store
	api := &fakeAPI{lotteries: func(context.Context) ([]client.Lottery, error) {
		assert.True(t, s.Loading(), "loading while in flight")
		return []client.Lottery{{ID: "daily", Price: 50}, {ID: "mega", Price: 200}}, nil
	}}
	s = New(api, nil)

	got, err := s.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.False(t, s.Loading())

	l, ok := s.Get("mega")
	require.True(t, ok)
	assert.Equal(t, 200.0, l.Price)
}

func TestFetchAllFailureEmpties(t *testing.T) {
	calls := 0
	api := &fakeAPI{lotteries: func(context.Context) ([]client.Lottery, error) {
		calls++
		if calls > 1 {
			return nil, errCatalog
		}
		return []client.Lottery{{ID: "daily"}}, nil
	}}
	s := New(api, nil)
	_, err := s.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, s.Lotteries(), 1)

	_, err = s.FetchAll(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errCatalog))
	assert.Equal(t, []client.Lottery{}, s.Lotteries())
	assert.False(t, s.Loading())
}

func TestFetchAllNilListIsEmpty(t *testing.T) {
	s := New(&fakeAPI{lotteries: func(context.Context) ([]client.Lottery, error) { return nil, nil }}, nil)
	got, err := s.FetchAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	data, err := json.Marshal(s.Snapshot())
	require.NoError(t, err)
	assert.JSONEq(t, `{"lotteries":[],"loading":false}`, string(data))
}

func TestLotteriesReturnsCopy(t *testing.T) {
	s := New(&fakeAPI{lotteries: func(context.Context) ([]client.Lottery, error) {
		return []client.Lottery{{ID: "daily"}}, nil
	}}, nil)
	_, err := s.FetchAll(context.Background())
	require.NoError(t, err)
	got := s.Lotteries()
	got[0].ID = "mutated"
	assert.Equal(t, "daily", s.Lotteries()[0].ID)
}
