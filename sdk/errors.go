package sdk

import (
	"fmt"

	"github.com/pkg/errors"
)

// Configuration errors, returned before any network activity.
var (
	ErrMissingAPIKey       = errors.New("NuOrbit client requires an API key")
	ErrMissingProviderCall = errors.New("cross-chain execution requires a provider call id")
	ErrMissingTransfer     = errors.New("runFlow requires a transfer callback or a transfer tx hash")
)

var (
	// ErrUnparsable wraps a non-empty response body that is not JSON.
	ErrUnparsable = errors.New("unable to parse response")
	// ErrStatusRegression is returned when the service reports a session status
	// earlier than one already observed in the same run.
	ErrStatusRegression = errors.New("session status moved backwards")
)

// APIError is a non-2xx answer from the remote session API.
type APIError struct {
	URL        string
	StatusCode int
	// Message is the structured error field of the response when present.
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("Request to %s failed (%d)", e.URL, e.StatusCode)
}
