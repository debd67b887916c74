package backend

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

// Sentinel statuses for failures that never produced an HTTP status.
const (
	StatusUnavailable = 0
	StatusUnexpected  = -1
)

const (
	MessageServerError  = "server error"
	MessageUnavailable  = "server unavailable"
	MessageUnexpected   = "unexpected error"
	MessageSchemaReject = "unexpected response from server"
)

type Kind int

const (
	KindServer Kind = iota
	KindUnavailable
	KindUnexpected
	KindSchema
)

func (k Kind) String() string {
	switch k {
	case KindServer:
		return "server"
	case KindUnavailable:
		return "unavailable"
	case KindUnexpected:
		return "unexpected"
	case KindSchema:
		return "schema"
	default:
		return "unknown"
	}
}

var ErrSchemaMismatch = errors.New("response does not match expected schema")

// APIError is the only error shape that leaves this package.
type APIError struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
	Kind    Kind   `json:"-"`
	cause   error
}

func (e *APIError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s (status %d): %v", e.Message, e.Status, e.cause)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

func (e *APIError) Unwrap() error {
	return e.cause
}

func (e *APIError) Unauthorized() bool {
	return e.Kind == KindServer && e.Status == http.StatusUnauthorized
}

func (e *APIError) NotFound() bool {
	return e.Kind == KindServer && e.Status == http.StatusNotFound
}

// AsAPIError unwraps err into an *APIError when one is present in the chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func serverError(status int, body []byte) *APIError {
	return &APIError{
		Message: serverMessage(body),
		Status:  status,
		Kind:    KindServer,
	}
}

func unavailableError(err error) *APIError {
	return &APIError{
		Message: MessageUnavailable,
		Status:  StatusUnavailable,
		Kind:    KindUnavailable,
		cause:   err,
	}
}

func unexpectedError(err error) *APIError {
	return &APIError{
		Message: MessageUnexpected,
		Status:  StatusUnexpected,
		Kind:    KindUnexpected,
		cause:   err,
	}
}

func schemaError(err error) *APIError {
	return &APIError{
		Message: MessageSchemaReject,
		Status:  StatusUnexpected,
		Kind:    KindSchema,
		cause:   fmt.Errorf("%w: %v", ErrSchemaMismatch, err),
	}
}

// Unexpected wraps a client-side failure (bad input, encoding) in the
// normalized shape so callers above the adapters never see raw errors.
func Unexpected(err error) error {
	if _, ok := AsAPIError(err); ok {
		return err
	}
	return unexpectedError(err)
}

// SchemaMismatch reports a payload that passed decoding but not the
// domain's own parsing.
func SchemaMismatch(err error) error {
	return schemaError(err)
}

// serverMessage reads {"message": "..."} or a short plain-text body.
func serverMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return MessageServerError
	}

	var payload struct {
		Message string `json:"message"`
	}
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
			return payload.Message
		}
		return MessageServerError
	}

	if len(trimmed) > 300 || strings.HasPrefix(trimmed, "<") {
		return MessageServerError
	}
	return trimmed
}
