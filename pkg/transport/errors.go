package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rhuss/spielwerk/pkg/api"
	"github.com/rhuss/spielwerk/pkg/extract"
	"github.com/rhuss/spielwerk/pkg/provider"
	"github.com/rhuss/spielwerk/pkg/storage"
)

// HTTPStatusFromError maps an APIError type to the corresponding HTTP
// status code. Transport-level errors (body too large, unsupported content
// type, method not allowed) are handled separately by the HTTP adapter.
func HTTPStatusFromError(err *api.APIError) int {
	switch err.Type {
	case api.ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case api.ErrorTypeNotFound:
		return http.StatusNotFound
	case api.ErrorTypeTooManyRequests:
		return http.StatusTooManyRequests
	case api.ErrorTypeModelError, api.ErrorTypeUpstreamError:
		return http.StatusBadGateway
	case api.ErrorTypeServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// MapError reduces any error from the pipeline or storage layer to an
// APIError suitable for the HTTP boundary. Typed errors keep their
// category; everything else becomes a server error.
func MapError(err error) *api.APIError {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if errors.Is(err, storage.ErrNotFound) {
		return api.NewNotFoundError("conversation not found")
	}
	var malformed *extract.MalformedOutputError
	if errors.As(err, &malformed) {
		return api.NewModelError(malformed.Error())
	}
	var transportErr *provider.TransportError
	if errors.As(err, &transportErr) {
		return api.NewUpstreamError(transportErr.Error())
	}
	return api.NewServerError(err.Error())
}

// WriteErrorResponse writes a JSON error response using the ErrorResponse
// wrapper format from pkg/api. It sets the Content-Type header and writes
// the HTTP status code.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.APIError, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

// WriteAPIError writes an APIError response, deriving the HTTP status code
// from the error type.
func WriteAPIError(w http.ResponseWriter, apiErr *api.APIError) {
	WriteErrorResponse(w, apiErr, HTTPStatusFromError(apiErr))
}

// WriteError maps an arbitrary error and writes it.
func WriteError(w http.ResponseWriter, err error) {
	WriteAPIError(w, MapError(err))
}
