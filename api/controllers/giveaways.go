package controllers

import (
	"net/http"

	"github.com/blockmart/blockmart-backend/api/responses"
	"github.com/blockmart/blockmart-backend/internal/giveaway"
	"github.com/blockmart/blockmart-backend/pkg/logger"
)

func GiveawayCurrent(svc giveaway.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := svc.Current(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

func GiveawayEnter(svc giveaway.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := callerID(r, logg, w)
		if !ok {
			return
		}
		entered, err := svc.Enter(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"entered": entered})
	}
}
