package lfs

import (
	"fmt"
	"net/http"
)

const (
	ErrorTypeBadRequest   = "BadRequest"
	ErrorTypeUnauthorized = "Unauthorized"
	ErrorTypeForbidden    = "Forbidden"
	ErrorTypeConflict     = "Conflict"
	ErrorTypeInternal     = "InternalServerError"
)

// HTTPError is an error that maps onto a non-2xx API response.
// Lock is set on conflicts so the client can see the current holder.
type HTTPError struct {
	Status    int
	ErrorType string
	Message   string
	Lock      *Lock
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.ErrorType, e.Message)
}

// ErrorBody is the JSON body rendered for an HTTPError
type ErrorBody struct {
	ErrorType string `json:"errorType,omitempty"`
	Message   string `json:"message"`
	Lock      *Lock  `json:"lock,omitempty"`
}

// Body returns the JSON representation of the error
func (e *HTTPError) Body() ErrorBody {
	return ErrorBody{ErrorType: e.ErrorType, Message: e.Message, Lock: e.Lock}
}

// BadRequest returns a 400 error with the given message
func BadRequest(format string, args ...any) *HTTPError {
	return &HTTPError{Status: http.StatusBadRequest, ErrorType: ErrorTypeBadRequest, Message: fmt.Sprintf(format, args...)}
}

// Common request errors
var (
	ErrMissingBody      = BadRequest("Missing body in request")
	ErrMissingUsername  = BadRequest("Missing username")
	ErrInvalidOperation = BadRequest("Invalid operation requested")
	ErrUnauthorized     = &HTTPError{Status: http.StatusUnauthorized, ErrorType: ErrorTypeUnauthorized, Message: "Unauthorized"}
)
