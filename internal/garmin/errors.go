package garmin

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthorized matches API errors caused by a rejected or expired session
var ErrUnauthorized = errors.New("garmin: unauthorized")

// APIError is a non-200 response from Connect
type APIError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d on %s: %s", e.StatusCode, e.Path, e.Body)
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 and 403 responses
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized &&
		(e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden)
}
