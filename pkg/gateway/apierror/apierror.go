// Package apierror maps internal errors onto HTTP responses.
package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pitchdrill/pitchdrill/pkg/core"
	"github.com/pitchdrill/pitchdrill/pkg/gateway/live/protocol"
)

type Envelope struct {
	Error *core.Error `json:"error"`
}

// FromError converts any error into the canonical wire error plus an
// HTTP status. Upstream provider detail never reaches the client.
func FromError(err error, requestID string) (*core.Error, int) {
	if err == nil {
		return nil, http.StatusOK
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &core.Error{
			Type:      core.ErrProvider,
			Message:   "request timeout",
			RequestID: requestID,
		}, http.StatusGatewayTimeout
	}
	if errors.Is(err, context.Canceled) {
		return &core.Error{
			Type:      core.ErrProvider,
			Message:   "request cancelled",
			RequestID: requestID,
		}, http.StatusRequestTimeout
	}

	var decodeErr *protocol.DecodeError
	if errors.As(err, &decodeErr) && decodeErr != nil {
		return &core.Error{
			Type:      core.ErrValidation,
			Message:   decodeErr.Message,
			Param:     decodeErr.Param,
			RequestID: requestID,
		}, http.StatusBadRequest
	}

	var coreErr *core.Error
	if errors.As(err, &coreErr) && coreErr != nil {
		out := sanitize(*coreErr)
		out.RequestID = requestID
		return &out, statusFromType(out.Type)
	}

	return &core.Error{
		Type:      core.ErrProvider,
		Message:   "internal error",
		RequestID: requestID,
	}, http.StatusInternalServerError
}

// sanitize strips fields that describe the upstream call rather than the
// client's request.
func sanitize(e core.Error) core.Error {
	e.Cause = nil
	switch e.Type {
	case core.ErrProvider, core.ErrPersistence:
		e.Message = "internal error"
		e.Param = ""
		e.StatusCode = 0
	}
	return e
}

func statusFromType(t core.ErrorType) int {
	switch t {
	case core.ErrValidation, core.ErrEmptyInput:
		return http.StatusBadRequest
	case core.ErrAuthentication:
		return http.StatusUnauthorized
	case core.ErrNotFound:
		return http.StatusNotFound
	case core.ErrRateLimit:
		return http.StatusTooManyRequests
	case core.ErrProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON writes the canonical error envelope.
func WriteJSON(w http.ResponseWriter, err error, requestID string) {
	ce, status := FromError(err, requestID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Error: ce})
}
