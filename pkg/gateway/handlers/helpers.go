package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/pitchdrill/pitchdrill/pkg/core"
	"github.com/pitchdrill/pitchdrill/pkg/gateway/apierror"
	"github.com/pitchdrill/pitchdrill/pkg/gateway/auth"
	"github.com/pitchdrill/pitchdrill/pkg/gateway/mw"
)

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	apierror.WriteJSON(w, err, reqID)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// requirePrincipal pulls the authenticated user. The auth middleware runs
// first, so a miss here means the route was wired without it.
func requirePrincipal(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, r, core.NewAuthenticationError("missing access token"))
		return nil, false
	}
	return p, true
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusMethodNotAllowed)
	_ = json.NewEncoder(w).Encode(apierror.Envelope{Error: &core.Error{
		Type:      core.ErrValidation,
		Message:   "method not allowed",
		RequestID: reqID,
	}})
}
