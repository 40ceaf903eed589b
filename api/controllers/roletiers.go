package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/blockmart/blockmart-backend/api/responses"
	"github.com/blockmart/blockmart-backend/api/validators"
	"github.com/blockmart/blockmart-backend/internal/roletier"
	"github.com/blockmart/blockmart-backend/pkg/db/models"
	pkgerrors "github.com/blockmart/blockmart-backend/pkg/errors"
	"github.com/blockmart/blockmart-backend/pkg/logger"
)

type tierResponse struct {
	ID        uuid.UUID       `json:"id"`
	RoleRef   string          `json:"role_ref"`
	Threshold decimal.Decimal `json:"threshold"`
	CreatedAt time.Time       `json:"created_at"`
}

func newTierResponse(tier *models.RoleTier) tierResponse {
	return tierResponse{
		ID:        tier.ID,
		RoleRef:   tier.RoleRef,
		Threshold: tier.Threshold,
		CreatedAt: tier.CreatedAt,
	}
}

func TierList(svc roletier.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tiers, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]tierResponse, len(tiers))
		for i := range tiers {
			out[i] = newTierResponse(&tiers[i])
		}
		responses.WriteSuccess(w, out)
	}
}

type createTierRequest struct {
	RoleRef   string `json:"role_ref" validate:"required"`
	Threshold string `json:"threshold" validate:"required"`
}

func TierCreate(svc roletier.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createTierRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		threshold, err := decimal.NewFromString(payload.Threshold)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid threshold"))
			return
		}
		tier, err := svc.Create(r.Context(), roletier.CreateTierInput{
			RoleRef:   payload.RoleRef,
			Threshold: threshold,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newTierResponse(tier))
	}
}

func TierDelete(svc roletier.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUIDParam(r, "tierID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
