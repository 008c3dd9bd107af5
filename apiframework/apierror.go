package apiframework

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/contenox/chatstate/libtracker"
)

// APIError is the OpenAI-style error envelope shared by server and client.
type APIError struct {
	err       error
	message   string
	param     string
	errorType string
	errorCode string
}

func (e *APIError) Error() string { return e.message }

func (e *APIError) Unwrap() error { return e.err }

func (e *APIError) Code() string { return e.errorCode }

type errorBody struct {
	Error struct {
		Message string  `json:"message"`
		Type    string  `json:"type"`
		Param   *string `json:"param"`
		Code    string  `json:"code"`
	} `json:"error"`
}

// Error writes err as a JSON error response, choosing the status from op
// and the wrapped sentinels.
func Error(w http.ResponseWriter, r *http.Request, err error, op Operation) error {
	status := mapErrorToStatus(op, err)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		apiErr = NewAPIError(err, "", "")
	}
	errType, errCode := apiErr.errorType, apiErr.errorCode
	if errType == "" || errCode == "" {
		errType, errCode = getErrorTypeAndCode(status)
	}

	var body errorBody
	body.Error.Message = err.Error()
	body.Error.Type = errType
	body.Error.Code = errCode
	if apiErr.param != "" {
		p := apiErr.param
		body.Error.Param = &p
	}

	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "request_id", libtracker.RequestID(r.Context()),
			"method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	return Encode(w, r, status, body)
}
