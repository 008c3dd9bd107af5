package apiframework_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/contenox/chatstate/apiframework"
	libdb "github.com/contenox/chatstate/libdbexec"
	"github.com/stretchr/testify/require"
)

func TestUnit_ErrorStatusAndRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		op       apiframework.Operation
		status   int
		sentinel error
	}{
		{"missing parameter", apiframework.MissingParameter("sessionId"), apiframework.ListOperation, http.StatusBadRequest, apiframework.ErrMissingParameter},
		{"wrapped unprocessable", fmt.Errorf("bad role: %w", apiframework.ErrUnprocessableEntity), apiframework.CreateOperation, http.StatusUnprocessableEntity, apiframework.ErrUnprocessableEntity},
		{"store not found", fmt.Errorf("topic: %w", libdb.ErrNotFound), apiframework.DeleteOperation, http.StatusNotFound, apiframework.ErrNotFound},
		{"store conflict", libdb.ErrUniqueViolation, apiframework.CreateOperation, http.StatusConflict, apiframework.ErrConflict},
		{"unknown on update", errors.New("boom"), apiframework.UpdateOperation, http.StatusUnprocessableEntity, apiframework.ErrUnprocessableEntity},
		{"unknown on server", errors.New("boom"), apiframework.ServerOperation, http.StatusInternalServerError, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			require.NoError(t, apiframework.Error(rec, req, tt.err, tt.op))
			require.Equal(t, tt.status, rec.Code)

			err := apiframework.HandleAPIError(rec.Result())
			require.Error(t, err)
			if tt.sentinel != nil {
				require.ErrorIs(t, err, tt.sentinel)
			}
		})
	}
}

func TestUnit_HandleAPIError_NonJSONBody(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.WriteHeader(http.StatusBadGateway)
	_, _ = rec.WriteString("upstream down")

	err := apiframework.HandleAPIError(rec.Result())
	require.EqualError(t, err, "API error 502: upstream down")
}
