// Package persist provides the durable key/value storage the session, retailer
// and wallet stores mirror their state into.
//
// Storage values are opaque strings. JSON encoding is the caller's concern;
// GetJSON and SetJSON are convenience helpers layered on top of the
// interface, not part of it.
package persist

import (
	"encoding/json"
	"fmt"
)

// Storage is a durable string key/value store.
//
// Get never fails: a missing, expired or unreadable key reports ok=false.
// Remove of a missing key is not an error.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Remove(key string) error
}

// Closer is implemented by backings that hold resources (files, connections).
type Closer interface {
	Close() error
}

// Well-known keys written by the stores.
const (
	KeyUserToken          = "userToken"
	KeyRetailerToken      = "retailerToken"
	KeyUserDetails        = "userDetails"
	KeyUserTickets        = "userTickets"
	KeyCartTickets        = "cartTickets"
	KeyRetailerProfile    = "retailerProfile"
	KeyWalletBalance      = "walletBalance"
	KeyWalletTransactions = "walletTransactions"
	KeyPendingLogin       = "pendingLogin"
)

// GetJSON decodes the value stored under key into v. It reports false when
// the key is absent or does not hold valid JSON for v; v is left untouched
// in that case.
func GetJSON(s Storage, key string, v any) bool {
	raw, ok := s.Get(key)
	if !ok || raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false
	}
	return true
}

// SetJSON encodes v and stores it under key.
func SetJSON(s Storage, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := s.Set(key, string(data)); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Close closes s if it holds resources.
func Close(s Storage) error {
	if c, ok := s.(Closer); ok {
		return c.Close()
	}
	return nil
}
