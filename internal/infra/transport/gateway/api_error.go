package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxErrorBody bounds how much of an error response body is read.
const maxErrorBody = 64 << 10

// APIError carries the status and detail message of a rejected API call.
// The EnviroSense backend reports failures as a JSON body with a detail field.
type APIError struct {
	Status int    // HTTP status code of the response
	Detail string // Backend-provided message, empty when the body had none
}

var _ error = (*APIError)(nil)

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}

	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Detail)
}

// AsAPIError extracts an APIError from the error chain.
// Returns the APIError and true if found, or nil and false if not present.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}

	return nil, false
}

// parseAPIError builds an APIError from a non-2xx response. The detail field
// is taken verbatim when it is a string; structured validation details are
// re-encoded as JSON.
func parseAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode, Detail: ""}

	var body struct {
		Detail any `json:"detail"`
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&body); err != nil {
		return apiErr
	}

	switch detail := body.Detail.(type) {
	case string:
		apiErr.Detail = detail
	case nil:
	default:
		if raw, err := json.Marshal(detail); err == nil {
			apiErr.Detail = string(raw)
		}
	}

	return apiErr
}
