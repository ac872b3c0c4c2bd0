package backend

import (
	"errors"
	"fmt"
)

// errNotFound is internal: lookup operations translate it into a zero
// result, because absence is not failure.
var errNotFound = errors.New("not found")

// AuthError means the stored credential was rejected. The message tells the
// user how to recover rather than what went wrong internally.
type AuthError struct {
	Detail string
}

func (e *AuthError) Error() string {
	msg := "authentication failed; run `claude-memory login` to re-authenticate"
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// OnboardingError means the caller is authenticated but not yet a member of
// any workspace on the backend.
type OnboardingError struct {
	Detail string
}

func (e *OnboardingError) Error() string {
	msg := "account onboarding required; finish workspace setup before capturing sessions"
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// QuotaError carries the structured quota state so callers can act on it
// programmatically instead of parsing text.
type QuotaError struct {
	Current    int
	Limit      int
	UpgradeURL string
}

func (e *QuotaError) Error() string {
	msg := fmt.Sprintf("session quota exceeded (%d/%d)", e.Current, e.Limit)
	if e.UpgradeURL != "" {
		msg += "; upgrade at " + e.UpgradeURL
	}
	return msg
}

// TransientError wraps a timeout or availability failure. The core never
// retries; the surrounding system decides.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s failed transiently (try again): %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}
