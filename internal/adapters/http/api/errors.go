package api

import (
	"errors"
	"net/http"

	"github.com/okian/modelrank/internal/adapters/identity"
	"github.com/okian/modelrank/internal/adapters/ranking"
	service "github.com/okian/modelrank/internal/app"
	"github.com/okian/modelrank/internal/domain/ledger"
)

// Sentinel kinds for API errors.
var (
	ErrServe            = errors.New("swagger serve failed")
	ErrBadRequest       = errors.New("bad request")
	ErrDuplicateRequest = errors.New("idempotency key already used")
	ErrNoAuthority      = errors.New("authentication is not configured")
)

// statusFor maps a ledger error kind onto an HTTP status.
func statusFor(kind ledger.Kind) int {
	switch kind {
	case ledger.KindAuthorization:
		return http.StatusForbidden
	case ledger.KindNotFound:
		return http.StatusNotFound
	case ledger.KindValidation:
		return http.StatusBadRequest
	case ledger.KindConflict, ledger.KindState:
		return http.StatusConflict
	case ledger.KindResource:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError translates errors from the service layer.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, ranking.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_ranked", err)
	case errors.Is(err, ranking.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "invalid_limit", err)
	case errors.Is(err, service.ErrFaucetDisabled):
		writeError(w, http.StatusForbidden, "faucet_disabled", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	case errors.Is(err, identity.ErrNoIdentity):
		writeError(w, http.StatusUnauthorized, "unauthenticated", err)
	default:
		kind := ledger.KindOf(err)
		status := statusFor(kind)
		if status == http.StatusInternalServerError {
			// Do not leak internal details.
			writeError(w, status, "internal_error", nil)
			return
		}
		writeError(w, status, ledger.CodeOf(err), err)
	}
}
