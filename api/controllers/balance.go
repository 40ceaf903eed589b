package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/blockmart/blockmart-backend/api/responses"
	"github.com/blockmart/blockmart-backend/api/validators"
	"github.com/blockmart/blockmart-backend/internal/ledger"
	"github.com/blockmart/blockmart-backend/pkg/db/models"
	pkgerrors "github.com/blockmart/blockmart-backend/pkg/errors"
	"github.com/blockmart/blockmart-backend/pkg/logger"
)

type accountResponse struct {
	UserID               string          `json:"user_id"`
	Balance              decimal.Decimal `json:"balance"`
	LifetimeSpent        decimal.Decimal `json:"lifetime_spent"`
	DeliveryValueHandled decimal.Decimal `json:"delivery_value_handled"`
}

func newAccountResponse(user *models.User) accountResponse {
	return accountResponse{
		UserID:               user.ID,
		Balance:              user.Balance,
		LifetimeSpent:        user.LifetimeSpent,
		DeliveryValueHandled: user.DeliveryValueHandled,
	}
}

func BalanceGet(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := callerID(r, logg, w)
		if !ok {
			return
		}
		account, err := svc.Account(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newAccountResponse(account))
	}
}

type amountRequest struct {
	Amount string `json:"amount" validate:"required"`
}

func (req amountRequest) parse() (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount")
	}
	return amount, nil
}

// BalanceCredit grants store credit to a user (admin surface).
func BalanceCredit(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		var payload amountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := payload.parse()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		account, err := svc.Credit(r.Context(), userID, amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newAccountResponse(account))
	}
}

// BalanceSet overwrites a user's balance (admin surface).
func BalanceSet(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		var payload amountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := payload.parse()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		account, err := svc.SetBalance(r.Context(), userID, amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newAccountResponse(account))
	}
}

// BalanceGetFor reads any user's account (admin surface).
func BalanceGetFor(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		account, err := svc.Account(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newAccountResponse(account))
	}
}

func TopSpenders(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		users, err := svc.TopSpenders(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]accountResponse, len(users))
		for i := range users {
			out[i] = newAccountResponse(&users[i])
		}
		responses.WriteSuccess(w, out)
	}
}
