package ghl

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

var (
	// ErrAuthorizationRequired means no valid token bundle is stored; the
	// caller should send the user through AuthorizationURL.
	ErrAuthorizationRequired = eris.New("ghl: authorization required")
	ErrAllExportsFailed      = eris.New("ghl: every export failed")
)

// ConfigurationError lists the client settings that were missing at call
// time. It is never retryable.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return "ghl: missing configuration: " + strings.Join(e.Missing, ", ")
}

// ExchangeError is a rejected or failed code exchange. Status is 0 when the
// request never got a response.
type ExchangeError struct {
	Status int
	Body   string
	Err    error
}

func (e *ExchangeError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("ghl: token exchange failed with %d: %s", e.Status, e.Body)
	case e.Err != nil:
		return "ghl: token exchange failed: " + e.Err.Error()
	}
	return "ghl: token exchange failed: " + e.Body
}

func (e *ExchangeError) Unwrap() error { return e.Err }

type ExportError struct {
	ListingID string
	Status    int
	Body      string
	Err       error
}

func (e *ExportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("ghl: export of %s failed with %d: %s", e.ListingID, e.Status, e.Body)
	}
	if e.Err != nil {
		return fmt.Sprintf("ghl: export of %s failed: %v", e.ListingID, e.Err)
	}
	return fmt.Sprintf("ghl: export of %s failed", e.ListingID)
}

func (e *ExportError) Unwrap() error { return e.Err }
