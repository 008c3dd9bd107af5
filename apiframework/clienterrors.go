package apiframework

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// HandleAPIError turns a non-2xx response into an error. Known error codes
// are mapped back onto their sentinels so callers can use errors.Is.
func HandleAPIError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("API error with status %s (failed to read response body: %v)", resp.Status, err)
	}

	var apiErr errorBody
	if jsonErr := json.Unmarshal(body, &apiErr); jsonErr == nil && apiErr.Error.Message != "" {
		param := ""
		if apiErr.Error.Param != nil {
			param = *apiErr.Error.Param
		}
		cause := errors.New(apiErr.Error.Message)
		if sentinel := sentinelForCode(apiErr.Error.Code); sentinel != nil {
			cause = fmt.Errorf("%w: %s", sentinel, apiErr.Error.Message)
		}
		return &APIError{
			err:       cause,
			message:   apiErr.Error.Message,
			param:     param,
			errorType: apiErr.Error.Type,
			errorCode: apiErr.Error.Code,
		}
	}

	bodyStr := string(body)
	if len(bodyStr) > 100 {
		bodyStr = bodyStr[:100] + "..."
	}
	return fmt.Errorf("API error %d: %s", resp.StatusCode, bodyStr)
}
