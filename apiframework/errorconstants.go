package apiframework

import (
	"errors"
	"net/http"

	libdb "github.com/contenox/chatstate/libdbexec"
)

var (
	ErrInvalidParameterValue = errors.New("apiframework: invalid parameter value type")
	ErrBadPathValue          = errors.New("apiframework: bad path value")
	ErrBadQueryValue         = errors.New("apiframework: bad query value")
	ErrMissingParameter      = errors.New("apiframework: missing parameter")
	ErrEmptyRequest          = errors.New("apiframework: empty request")
	ErrEmptyRequestBody      = errors.New("apiframework: empty request body")

	ErrBadRequest           = errors.New("apiframework: bad request")
	ErrUnprocessableEntity  = errors.New("apiframework: unprocessable entity")
	ErrNotFound             = errors.New("apiframework: not found")
	ErrConflict             = errors.New("apiframework: conflict")
	ErrInternalServerError  = errors.New("apiframework: internal server error")
	ErrUnsupportedMediaType = errors.New("apiframework: unsupported media type")
)

type sentinelMapping struct {
	err       error
	status    int
	errorType string
	errorCode string
}

// sentinels is checked in order; the first match wins.
var sentinels = []sentinelMapping{
	{ErrInvalidParameterValue, http.StatusBadRequest, "invalid_request_error", "invalid_parameter_value"},
	{ErrBadPathValue, http.StatusBadRequest, "invalid_request_error", "bad_path_value"},
	{ErrBadQueryValue, http.StatusBadRequest, "invalid_request_error", "bad_query_value"},
	{ErrMissingParameter, http.StatusBadRequest, "invalid_request_error", "missing_parameter"},
	{ErrEmptyRequest, http.StatusBadRequest, "invalid_request_error", "empty_request"},
	{ErrEmptyRequestBody, http.StatusBadRequest, "invalid_request_error", "empty_request_body"},
	{ErrBadRequest, http.StatusBadRequest, "invalid_request_error", "bad_request"},
	{ErrUnprocessableEntity, http.StatusUnprocessableEntity, "invalid_request_error", "unprocessable_entity"},
	{ErrNotFound, http.StatusNotFound, "invalid_request_error", "not_found"},
	{ErrConflict, http.StatusConflict, "invalid_request_error", "conflict"},
	{ErrUnsupportedMediaType, http.StatusUnsupportedMediaType, "invalid_request_error", "unsupported_media_type"},
	{ErrInternalServerError, http.StatusInternalServerError, "api_error", "internal_server_error"},
}

// dbStatuses maps store errors that reach a handler unwrapped.
var dbStatuses = []struct {
	status int
	errs   []error
}{
	{http.StatusNotFound, []error{libdb.ErrNotFound}},
	{http.StatusConflict, []error{
		libdb.ErrUniqueViolation, libdb.ErrForeignKeyViolation, libdb.ErrNotNullViolation,
		libdb.ErrCheckViolation, libdb.ErrConstraintViolation,
		libdb.ErrDeadlockDetected, libdb.ErrSerializationFailure, libdb.ErrLockNotAvailable, libdb.ErrQueryCanceled,
	}},
	{http.StatusBadRequest, []error{libdb.ErrDataTruncation, libdb.ErrNumericOutOfRange, libdb.ErrInvalidInputSyntax}},
}

func lookupSentinel(err error) (sentinelMapping, bool) {
	for _, m := range sentinels {
		if errors.Is(err, m.err) {
			return m, true
		}
	}
	return sentinelMapping{}, false
}

// sentinelForCode is the client-side inverse of the sentinel table.
func sentinelForCode(code string) error {
	for _, m := range sentinels {
		if m.errorCode == code {
			return m.err
		}
	}
	return nil
}

func getErrorTypeAndCode(status int) (string, string) {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request_error", "bad_request"
	case http.StatusNotFound:
		return "invalid_request_error", "not_found"
	case http.StatusConflict:
		return "invalid_request_error", "conflict"
	case http.StatusRequestEntityTooLarge:
		return "invalid_request_error", "request_too_large"
	case http.StatusUnprocessableEntity:
		return "invalid_request_error", "unprocessable_entity"
	case http.StatusInternalServerError:
		return "api_error", "internal_error"
	default:
		return "api_error", "unknown_error"
	}
}

// Operation defines API operation types for error mapping
type Operation uint16

const (
	CreateOperation Operation = iota
	GetOperation
	UpdateOperation
	DeleteOperation
	ListOperation
	ServerOperation
)

// mapErrorToStatus prefers a wrapped sentinel, then a store error, and
// finally falls back on what the operation implies.
func mapErrorToStatus(op Operation, err error) int {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return http.StatusRequestEntityTooLarge
	}
	if m, ok := lookupSentinel(err); ok {
		return m.status
	}
	for _, group := range dbStatuses {
		for _, dbErr := range group.errs {
			if errors.Is(err, dbErr) {
				return group.status
			}
		}
	}

	switch op {
	case CreateOperation, UpdateOperation:
		return http.StatusUnprocessableEntity
	case GetOperation, ListOperation, DeleteOperation:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// NewAPIError creates a generic APIError with context.
// If message is empty, it falls back to the underlying error's message.
func NewAPIError(err error, message, param string) *APIError {
	m, _ := lookupSentinel(err)
	if message == "" {
		message = err.Error()
	}
	return &APIError{
		err:       err,
		message:   message,
		param:     param,
		errorType: m.errorType,
		errorCode: m.errorCode,
	}
}

func MissingParameter(param string, message ...string) *APIError {
	msg := "Missing required parameter"
	if len(message) > 0 && message[0] != "" {
		msg = message[0]
	}
	return NewAPIError(ErrMissingParameter, msg, param)
}
