package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/saudashfaq/market-market-sub002/services/api/internal/app"
	"github.com/saudashfaq/market-market-sub002/services/api/internal/domain"
)

// TransferManager is the minimal interface for the transaction endpoints.
type TransferManager interface {
	Get(ctx context.Context, transactionID, actorID string) (domain.Transaction, error)
	ConfirmPayment(ctx context.Context, transactionID string) error
	SubmitCredentials(ctx context.Context, in app.SubmitCredentialsInput) error
	CompleteEscrow(ctx context.Context, in app.CompleteEscrowInput) error
}

// HandleTransactions routes /transactions/{id} and its lifecycle actions:
// payment (confirmation event), credentials (seller handoff), complete
// (buyer OTP confirmation).
func HandleTransactions(svc TransferManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		transactionID, action, ok := parseTransactionPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		switch action {
		case "":
			handleGetTransaction(svc, w, r, transactionID)
		case "payment":
			handleConfirmPayment(svc, w, r, transactionID)
		case "credentials":
			handleSubmitCredentials(svc, w, r, transactionID)
		case "complete":
			handleCompleteEscrow(svc, w, r, transactionID)
		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
		}
	}
}

func parseTransactionPath(path string) (id, action string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || len(parts) > 3 || parts[0] != "transactions" || parts[1] == "" {
		return "", "", false
	}
	if len(parts) == 2 {
		return parts[1], "", true
	}
	return parts[1], parts[2], true
}

func handleGetTransaction(svc TransferManager, w http.ResponseWriter, r *http.Request, transactionID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	txn, err := svc.Get(r.Context(), transactionID, actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(newTransactionResponse(txn))
}

func handleConfirmPayment(svc TransferManager, w http.ResponseWriter, r *http.Request, transactionID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		return
	}

	if err := svc.ConfirmPayment(r.Context(), transactionID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(statusResponse{Status: string(domain.TransferStatusAwaitingCredentials)})
}

func handleSubmitCredentials(svc TransferManager, w http.ResponseWriter, r *http.Request, transactionID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req submitCredentialsRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	err := svc.SubmitCredentials(r.Context(), app.SubmitCredentialsInput{
		TransactionID: transactionID,
		ActorID:       actor,
		AccessType:    req.AccessType,
		URL:           req.URL,
		Username:      req.Username,
		Secret:        req.Secret,
		Notes:         req.Notes,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(statusResponse{Status: string(domain.TransferStatusCredentialsSubmitted)})
}

func handleCompleteEscrow(svc TransferManager, w http.ResponseWriter, r *http.Request, transactionID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req completeEscrowRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	err := svc.CompleteEscrow(r.Context(), app.CompleteEscrowInput{
		TransactionID: transactionID,
		ActorID:       actor,
		OTP:           req.OTP,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(statusResponse{Status: string(domain.TransferStatusCompleted)})
}

type submitCredentialsRequest struct {
	AccessType string `json:"access_type"`
	URL        string `json:"url"`
	Username   string `json:"username"`
	Secret     string `json:"secret"`
	Notes      string `json:"notes"`
}

type completeEscrowRequest struct {
	OTP string `json:"otp"`
}

type statusResponse struct {
	Status string `json:"status"`
}
