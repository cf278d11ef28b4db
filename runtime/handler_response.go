package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lambda-feedback/tether/internal/execution/dispatcher"
	"github.com/lambda-feedback/tether/internal/execution/locate"
	"github.com/lambda-feedback/tether/internal/execution/supervisor"
)

var wellKnownErrors = map[error]int{
	ErrInvalidMethod:               http.StatusMethodNotAllowed,
	ErrRouteNotFound:               http.StatusNotFound,
	ErrSchemaNotFound:              http.StatusInternalServerError,
	ErrValidationFailed:            http.StatusBadRequest,
	dispatcher.ErrSessionEnded:     http.StatusServiceUnavailable,
	supervisor.ErrNeverCheckedIn:   http.StatusServiceUnavailable,
	supervisor.ErrCrashedAtStartup: http.StatusServiceUnavailable,
	supervisor.ErrSpawn:            http.StatusServiceUnavailable,
	locate.ErrResolution:           http.StatusServiceUnavailable,
	context.DeadlineExceeded:       http.StatusGatewayTimeout,
}

// getErrorStatusCode returns the status code for the given error.
func getErrorStatusCode(err error) int {
	var validationErr *validationError
	if errors.As(err, &validationErr) {
		if validationErr.Type == validationTypeResponse {
			return http.StatusBadGateway
		}

		return http.StatusUnprocessableEntity
	}

	for known, status := range wellKnownErrors {
		if errors.Is(err, known) {
			return status
		}
	}

	return http.StatusInternalServerError
}

type responseError struct {
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// newErrorResponse creates a new error response.
func newErrorResponse(err error) Response {
	statusCode := getErrorStatusCode(err)

	responseErr := responseError{
		Message: err.Error(),
	}

	var validationErr *validationError
	if errors.As(err, &validationErr) {
		responseErr.Details = validationErr.Details()
	}

	body, err := json.Marshal(struct {
		Error responseError `json:"error"`
	}{
		Error: responseErr,
	})
	if err != nil {
		return Response{StatusCode: http.StatusInternalServerError}
	}

	return newResponse(statusCode, body)
}

// newResponse creates a new response.
func newResponse(status int, body []byte) Response {
	header := make(http.Header)
	header.Add("Content-Type", "application/json")

	return Response{
		StatusCode: status,
		Body:       body,
		Header:     header,
	}
}
