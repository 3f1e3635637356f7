package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultCookieMaxAge is how long a cookie entry lives after its last write.
const DefaultCookieMaxAge = 7 * 24 * time.Hour

// fileEntry is one persisted value. Expires is zero for entries that never
// expire (local storage).
type fileEntry struct {
	Value   string    `json:"value"`
	Expires time.Time `json:"expires,omitzero"`
}

// fileKV is a JSON file holding a map of entries, rewritten atomically on
// every mutation.
type fileKV struct {
	mu      sync.Mutex
	path    string
	maxAge  time.Duration
	now     func() time.Time
	entries map[string]fileEntry
}

func openFileKV(path string, maxAge time.Duration, now func() time.Time) (*fileKV, error) {
	if path == "" {
		return nil, errors.New("storage path is required")
	}
	if now == nil {
		now = time.Now
	}
	kv := &fileKV{
		path:    path,
		maxAge:  maxAge,
		now:     now,
		entries: make(map[string]fileEntry),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return kv, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(data) == 0 {
		return kv, nil
	}
	if err := json.Unmarshal(data, &kv.entries); err != nil {
		// A corrupt jar behaves like an empty one; the next write replaces it.
		kv.entries = make(map[string]fileEntry)
	}
	return kv, nil
}

func (kv *fileKV) get(key string) (string, bool) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	e, ok := kv.entries[key]
	if !ok {
		return "", false
	}
	if !e.Expires.IsZero() && !kv.now().Before(e.Expires) {
		return "", false
	}
	return e.Value, true
}

func (kv *fileKV) set(key, value string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	next := kv.copyLive()
	e := fileEntry{Value: value}
	if kv.maxAge > 0 {
		e.Expires = kv.now().Add(kv.maxAge)
	}
	next[key] = e
	if err := kv.flush(next); err != nil {
		return err
	}
	kv.entries = next
	return nil
}

func (kv *fileKV) remove(key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	if _, ok := kv.entries[key]; !ok {
		return nil
	}
	next := kv.copyLive()
	delete(next, key)
	if err := kv.flush(next); err != nil {
		return err
	}
	kv.entries = next
	return nil
}

// copyLive returns a copy of the entries with expired ones pruned.
func (kv *fileKV) copyLive() map[string]fileEntry {
	now := kv.now()
	out := make(map[string]fileEntry, len(kv.entries)+1)
	for k, e := range kv.entries {
		if !e.Expires.IsZero() && !now.Before(e.Expires) {
			continue
		}
		out[k] = e
	}
	return out
}

// flush writes entries to a temp file and renames it over the target.
func (kv *fileKV) flush(entries map[string]fileEntry) error {
	dir := filepath.Dir(kv.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating storage dir: %w", err)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding storage: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(kv.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, kv.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", kv.path, err)
	}
	return nil
}

// Cookies is a file-backed cookie jar. Entries expire MaxAge after their
// last write and read as absent afterwards.
type Cookies struct {
	kv *fileKV
}

// CookieOptions configures OpenCookies.
type CookieOptions struct {
	// MaxAge is the lifetime of an entry after its last write.
	// Zero means DefaultCookieMaxAge.
	MaxAge time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// OpenCookies loads (or lazily creates) the cookie jar at path.
func OpenCookies(path string, opts CookieOptions) (*Cookies, error) {
	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultCookieMaxAge
	}
	kv, err := openFileKV(path, maxAge, opts.Now)
	if err != nil {
		return nil, fmt.Errorf("opening cookie jar: %w", err)
	}
	return &Cookies{kv: kv}, nil
}

// Get implements Storage.
func (c *Cookies) Get(key string) (string, bool) { return c.kv.get(key) }

// Set implements Storage. It refreshes the entry's expiry.
func (c *Cookies) Set(key, value string) error { return c.kv.set(key, value) }

// Remove implements Storage.
func (c *Cookies) Remove(key string) error { return c.kv.remove(key) }

// LocalStorage is a file-backed store whose entries never expire.
type LocalStorage struct {
	kv *fileKV
}

// OpenLocalStorage loads (or lazily creates) the local storage file at path.
func OpenLocalStorage(path string) (*LocalStorage, error) {
	kv, err := openFileKV(path, 0, nil)
	if err != nil {
		return nil, fmt.Errorf("opening local storage: %w", err)
	}
	return &LocalStorage{kv: kv}, nil
}

// Get implements Storage.
func (l *LocalStorage) Get(key string) (string, bool) { return l.kv.get(key) }

// Set implements Storage.
func (l *LocalStorage) Set(key, value string) error { return l.kv.set(key, value) }

// Remove implements Storage.
func (l *LocalStorage) Remove(key string) error { return l.kv.remove(key) }
