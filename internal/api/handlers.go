package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/example/account-ledger/internal/account"
	"github.com/example/account-ledger/internal/security"
	"github.com/example/account-ledger/internal/sendmoney"
)

type createAccountResponse struct {
	CorrelationID string `json:"correlation_id"`
	AccountID     uint64 `json:"account_id"`
}

type balanceResponse struct {
	CorrelationID string `json:"correlation_id"`
	AccountID     uint64 `json:"account_id"`
	Balance       int64  `json:"balance"`
}

type transferRequest struct {
	SourceAccountID uint64 `json:"source_account_id"`
	TargetAccountID uint64 `json:"target_account_id"`
	Amount          int64  `json:"amount"`
}

type transferResponse struct {
	CorrelationID string `json:"correlation_id"`
	Success       bool   `json:"success"`
}

func handleCreateAccount(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Accounts == nil {
			security.WriteJSONError(w, r, http.StatusServiceUnavailable, "ledger_unavailable")
			return
		}

		id, err := deps.Accounts.CreateAccount(r.Context())
		if err != nil {
			deps.Logger.Error("create_account_failed", "cid", security.CorrelationIDFromContext(r.Context()), "error", err)
			security.WriteJSONError(w, r, http.StatusInternalServerError, "internal_error")
			return
		}

		security.WriteJSON(w, r, http.StatusCreated, createAccountResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			AccountID:     uint64(id),
		})
	}
}

func handleBalance(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Transfers == nil {
			security.WriteJSONError(w, r, http.StatusServiceUnavailable, "ledger_unavailable")
			return
		}

		raw, err := strconv.ParseUint(chi.URLParam(r, "accountID"), 10, 64)
		if err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_request")
			return
		}
		id := account.AccountID(raw)

		balance, err := deps.Transfers.GetAccountBalance(r.Context(), id)
		if err != nil {
			writeServiceError(deps, w, r, err)
			return
		}

		security.WriteJSON(w, r, http.StatusOK, balanceResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			AccountID:     uint64(id),
			Balance:       balance.Amount(),
		})
	}
}

func handleTransfer(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Transfers == nil {
			security.WriteJSONError(w, r, http.StatusServiceUnavailable, "ledger_unavailable")
			return
		}

		var req transferRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_request")
			return
		}

		cmd, err := sendmoney.NewSendMoneyCommand(
			account.AccountID(req.SourceAccountID),
			account.AccountID(req.TargetAccountID),
			account.NewMoney(req.Amount),
		)
		if err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_request")
			return
		}

		ok, err := deps.Transfers.SendMoney(r.Context(), cmd)
		if err != nil {
			writeServiceError(deps, w, r, err)
			return
		}
		if !ok {
			security.WriteJSONError(w, r, http.StatusConflict, "transfer_rejected")
			return
		}

		security.WriteJSON(w, r, http.StatusOK, transferResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Success:       true,
		})
	}
}

func writeServiceError(deps Dependencies, w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, account.ErrAccountNotFound):
		security.WriteJSONError(w, r, http.StatusNotFound, "account_not_found")
	case errors.Is(err, sendmoney.ErrThresholdExceeded):
		security.WriteJSONError(w, r, http.StatusUnprocessableEntity, "threshold_exceeded")
	default:
		deps.Logger.Error("ledger_request_failed", "cid", security.CorrelationIDFromContext(r.Context()), "error", err)
		security.WriteJSONError(w, r, http.StatusInternalServerError, "internal_error")
	}
}
