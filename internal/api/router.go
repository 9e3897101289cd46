package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/example/account-ledger/internal/account"
	"github.com/example/account-ledger/internal/auth"
	"github.com/example/account-ledger/internal/security"
	"github.com/example/account-ledger/internal/sendmoney"
)

// TransferService is the send-money use case as seen by the HTTP layer.
type TransferService interface {
	SendMoney(ctx context.Context, cmd sendmoney.SendMoneyCommand) (bool, error)
	GetAccountBalance(ctx context.Context, id account.AccountID) (account.Money, error)
}

type AccountCreator interface {
	CreateAccount(ctx context.Context) (account.AccountID, error)
}

type Dependencies struct {
	Logger       *slog.Logger
	JWTValidator *auth.JWTValidator

	Transfers TransferService
	Accounts  AccountCreator

	RateLimiter  *security.FixedWindowLimiter
	IPAllowlist  []netip.Prefix
	MaxBodyBytes int64
}

func NewRouter(deps Dependencies) (http.Handler, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	transferV, err := security.NewJSONSchemaValidator("transfer.json", transferSchema)
	if err != nil {
		return nil, err
	}

	onAuthError := func(w http.ResponseWriter, r *http.Request, status int, code string) {
		security.WriteJSONError(w, r, status, code)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(security.CorrelationID)
	r.Use(RequestLogger(deps.Logger))
	r.Use(security.BodySizeLimit(deps.MaxBodyBytes))
	r.Use(security.IPAllowlist(deps.IPAllowlist))
	if deps.RateLimiter != nil {
		r.Use(security.RateLimitMiddleware(deps.RateLimiter, security.RateLimitKeyByIP))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(auth.Authenticate(deps.JWTValidator, onAuthError))

		r.Route("/accounts", func(r chi.Router) {
			// "/" inside the mount serves both /v1/accounts and /v1/accounts/
			r.With(auth.RequireScopes(onAuthError, auth.ScopeAccountsWrite)).
				Post("/", handleCreateAccount(deps))

			r.With(auth.RequireScopes(onAuthError, auth.ScopeAccountsRead)).
				Get("/{accountID}/balance", handleBalance(deps))
		})

		r.With(auth.RequireScopes(onAuthError, auth.ScopeTransfersWrite), transferV.Middleware).
			Post("/transfers", handleTransfer(deps))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		security.WriteJSONError(w, r, http.StatusNotFound, "not_found")
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		security.WriteJSONError(w, r, http.StatusMethodNotAllowed, "method_not_allowed")
	})

	return r, nil
}
