package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// ErrNoToken is returned, without touching the network, when an
// authenticated call is made and no bearer token is stored.
var ErrNoToken = errors.New("not signed in")

// Error is the failure value of every backend call.
//
// Status is zero for transport failures and for calls that never left the
// client (missing token, bad request body). Message is the backend's own
// message when it sent one, otherwise the operation's fallback text.
type Error struct {
	Op      string
	Status  int
	Message string
	Payload []byte
	Err     error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// IsUnauthorized reports whether err is a backend 401/403.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden
}

// Message extracts the user-facing message from err, falling back to
// err.Error() for non-client errors.
func Message(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// backendMessage pulls a human-readable message out of an error payload.
// The backend is not consistent about where it puts it.
func backendMessage(body []byte) string {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return ""
	}
	res := gjson.ParseBytes(body)
	if res.Type == gjson.String {
		return res.String()
	}
	for _, path := range []string{"message", "error.message", "error", "msg"} {
		if v := res.Get(path); v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return ""
}
