package persist

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backings returns one fresh instance of every Storage implementation.
func backings(t *testing.T) map[string]Storage {
	t.Helper()
	dir := t.TempDir()

	cookies, err := OpenCookies(filepath.Join(dir, "cookies.json"), CookieOptions{})
	require.NoError(t, err)
	local, err := OpenLocalStorage(filepath.Join(dir, "local.json"))
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return map[string]Storage{
		"memory":  NewMemory(),
		"cookies": cookies,
		"local":   local,
		"redis":   NewRedis(client, RedisOptions{Prefix: RedisCookiePrefix}),
	}
}

func TestStorageContract(t *testing.T) {
	for name, s := range backings(t) {
		t.Run(name, func(t *testing.T) {
			_, ok := s.Get("missing")
			assert.False(t, ok, "missing key must read as absent")
			assert.NoError(t, s.Remove("missing"), "removing a missing key is not an error")

			require.NoError(t, s.Set("userToken", "tok-1"))
			v, ok := s.Get("userToken")
			assert.True(t, ok)
			assert.Equal(t, "tok-1", v)

			require.NoError(t, s.Set("userToken", "tok-2"))
			v, _ = s.Get("userToken")
			assert.Equal(t, "tok-2", v)

			require.NoError(t, s.Remove("userToken"))
			_, ok = s.Get("userToken")
			assert.False(t, ok)
		})
	}
}

func TestJSONHelpers(t *testing.T) {
	s := NewMemory()

	type profile struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}

	var p profile
	assert.False(t, GetJSON(s, KeyUserDetails, &p))

	require.NoError(t, SetJSON(s, KeyUserDetails, profile{Name: "A", Email: "a@x.com"}))
	raw, _ := s.Get(KeyUserDetails)
	assert.JSONEq(t, `{"name":"A","email":"a@x.com"}`, raw)

	require.True(t, GetJSON(s, KeyUserDetails, &p))
	assert.Equal(t, "A", p.Name)

	require.NoError(t, s.Set(KeyUserDetails, "{not json"))
	var q profile
	assert.False(t, GetJSON(s, KeyUserDetails, &q))
	assert.Empty(t, q.Name)
}

func TestCookiesSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cookies.json")

	c, err := OpenCookies(path, CookieOptions{})
	require.NoError(t, err)
	require.NoError(t, c.Set(KeyCartTickets, `[{"id":"t1"}]`))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reopened, err := OpenCookies(path, CookieOptions{})
	require.NoError(t, err)
	v, ok := reopened.Get(KeyCartTickets)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":"t1"}]`, v)
}

func TestCookiesExpire(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	path := filepath.Join(t.TempDir(), "cookies.json")

	c, err := OpenCookies(path, CookieOptions{MaxAge: time.Hour, Now: clock})
	require.NoError(t, err)
	require.NoError(t, c.Set(KeyUserToken, "tok"))

	now = now.Add(59 * time.Minute)
	_, ok := c.Get(KeyUserToken)
	assert.True(t, ok, "entry should still be live")

	now = now.Add(2 * time.Minute)
	_, ok = c.Get(KeyUserToken)
	assert.False(t, ok, "entry should have expired")

	// Writing another key prunes the expired one from the file.
	require.NoError(t, c.Set(KeyUserDetails, "{}"))
	reopened, err := OpenCookies(path, CookieOptions{MaxAge: time.Hour, Now: func() time.Time { return now.Add(-2 * time.Hour) }})
	require.NoError(t, err)
	_, ok = reopened.Get(KeyUserToken)
	assert.False(t, ok)
}

func TestLocalStorageNeverExpires(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.json")
	l, err := OpenLocalStorage(path)
	require.NoError(t, err)
	require.NoError(t, l.Set(KeyWalletBalance, "250"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "expires")
}

func TestCorruptFileReadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))

	l, err := OpenLocalStorage(path)
	require.NoError(t, err)
	_, ok := l.Get(KeyWalletBalance)
	assert.False(t, ok)

	require.NoError(t, l.Set(KeyWalletBalance, "1"))
	reopened, err := OpenLocalStorage(path)
	require.NoError(t, err)
	v, _ := reopened.Get(KeyWalletBalance)
	assert.Equal(t, "1", v)
}

func TestBackingsDoNotShareNamespace(t *testing.T) {
	dir := t.TempDir()
	cookies, err := OpenCookies(filepath.Join(dir, "cookies.json"), CookieOptions{})
	require.NoError(t, err)
	local, err := OpenLocalStorage(filepath.Join(dir, "local.json"))
	require.NoError(t, err)

	require.NoError(t, cookies.Set(KeyUserToken, "cookie-token"))
	_, ok := local.Get(KeyUserToken)
	assert.False(t, ok)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	rc := NewRedis(client, RedisOptions{Prefix: RedisCookiePrefix})
	rl := NewRedis(client, RedisOptions{Prefix: RedisLocalPrefix})
	require.NoError(t, rc.Set(KeyUserToken, "x"))
	_, ok = rl.Get(KeyUserToken)
	assert.False(t, ok)
	assert.True(t, mr.Exists(RedisCookiePrefix+KeyUserToken))
}

func TestRedisTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	r := NewRedis(client, RedisOptions{Prefix: "p:", TTL: time.Minute})
	require.NoError(t, r.Set("k", "v"))
	assert.Equal(t, time.Minute, mr.TTL("p:k"))

	mr.FastForward(2 * time.Minute)
	_, ok := r.Get("k")
	assert.False(t, ok)
}

func TestDialRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	r, err := DialRedis(context.Background(), mr.Addr(), "", 0, RedisOptions{Prefix: RedisLocalPrefix})
	require.NoError(t, err)
	require.NoError(t, r.Set(KeyWalletBalance, "10"))
	require.NoError(t, Close(r))

	mr.Close()
	_, err = DialRedis(context.Background(), mr.Addr(), "", 0, RedisOptions{})
	assert.Error(t, err)
}
