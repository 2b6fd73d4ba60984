package openaicompat

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rhuss/spielwerk/pkg/provider"
)

// MapHTTPError converts an HTTP response with a non-2xx status code into a
// TransportError. It attempts to parse the response body as a
// ChatErrorResponse to extract a descriptive message.
func MapHTTPError(resp *http.Response) *provider.TransportError {
	message := ExtractErrorMessage(resp.Body)
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return provider.NewTransportError(resp.StatusCode, message)
}

// MapNetworkError converts a network-level error (connection refused,
// timeout, DNS resolution failure) into a TransportError.
func MapNetworkError(err error) *provider.TransportError {
	return provider.NewTransportError(0, err.Error())
}

// ExtractErrorMessage tries to parse the response body as a ChatErrorResponse
// and returns the error message if found.
func ExtractErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}

	var errResp ChatErrorResponse
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}

	return ""
}
