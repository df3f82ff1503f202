package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	sferrors "github.com/otherjamesbrown/skyfeed/pkg/errors"
)

// ErrNoSession is returned by authenticated calls made before CreateSession.
var ErrNoSession = fmt.Errorf("%w: no session, call CreateSession first", sferrors.ErrUnauthorized)

// APIError is a non-2xx XRPC response.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("xrpc %d %s: %s", e.Status, e.Code, e.Message)
	case e.Code != "":
		return fmt.Sprintf("xrpc %d %s", e.Status, e.Code)
	default:
		return fmt.Sprintf("xrpc %d %s", e.Status, http.StatusText(e.Status))
	}
}

// Unwrap maps auth and throttling statuses onto the shared sentinels.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return sferrors.ErrUnauthorized
	case http.StatusTooManyRequests:
		return sferrors.ErrRateLimited
	case http.StatusNotFound:
		return sferrors.ErrNotFound
	}
	return nil
}

// AsAPIError returns the APIError in err's chain, if any.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err == nil && len(data) > 0 {
		// Bodies that are not XRPC JSON keep just the status.
		_ = json.Unmarshal(data, apiErr)
	}
	return apiErr
}
