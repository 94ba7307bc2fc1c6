package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/saudashfaq/market-market-sub002/services/api/internal/domain"
	"github.com/saudashfaq/market-market-sub002/services/api/internal/escrow"
)

const (
	codeMethodNotAllowed    = "method_not_allowed"
	codeNotFound            = "not_found"
	codeUnauthenticated     = "unauthenticated"
	codeInvalidRequestBody  = "invalid_request_body"
	codeInvalidDecision     = "invalid_decision"
	codeValidationFailed    = "validation_failed"
	codeAlreadyResolved     = "offer_already_resolved"
	codeAlreadySubmitted    = "credentials_already_submitted"
	codeInvalidState        = "invalid_transfer_state"
	codeEscrowRejected      = "escrow_rejected"
	codeEscrowUnavailable   = "escrow_unavailable"
	codeForbidden           = "forbidden"
	codeInternalError       = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeDomainError maps service errors to responses. Not-found and
// not-permitted render identically so callers cannot probe for other
// parties' offers; state conflicts render as "already handled" since they
// are expected under concurrent access.
func writeDomainError(w http.ResponseWriter, err error) {
	var rejection *escrow.RejectionError
	switch {
	case errors.Is(err, domain.ErrOfferNotFound),
		errors.Is(err, domain.ErrListingNotFound),
		errors.Is(err, domain.ErrTransactionNotFound),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusNotFound, codeNotFound, "not found or not permitted")
	case errors.Is(err, domain.ErrOfferAlreadyResolved):
		writeError(w, http.StatusConflict, codeAlreadyResolved, "already handled")
	case errors.Is(err, domain.ErrCredentialsAlreadySubmitted):
		writeError(w, http.StatusConflict, codeAlreadySubmitted, "already handled")
	case errors.Is(err, domain.ErrInvalidTransferState):
		writeError(w, http.StatusConflict, codeInvalidState, "already handled")
	case errors.Is(err, domain.ErrInvalidDecision):
		writeError(w, http.StatusBadRequest, codeInvalidDecision, err.Error())
	case errors.Is(err, domain.ErrCredentialTypeRequired),
		errors.Is(err, domain.ErrCredentialURLRequired),
		errors.Is(err, domain.ErrCredentialUsernameRequired),
		errors.Is(err, domain.ErrCredentialSecretRequired),
		errors.Is(err, domain.ErrOTPRequired):
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
	case errors.As(err, &rejection):
		writeError(w, http.StatusUnprocessableEntity, codeEscrowRejected, rejection.Reason)
	case errors.Is(err, escrow.ErrUnavailable):
		writeError(w, http.StatusBadGateway, codeEscrowUnavailable, "escrow provider unavailable, try again")
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
