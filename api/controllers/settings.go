package controllers

import (
	"context"
	"net/http"

	"github.com/blockmart/blockmart-backend/api/responses"
	"github.com/blockmart/blockmart-backend/api/validators"
	"github.com/blockmart/blockmart-backend/internal/platform"
	"github.com/blockmart/blockmart-backend/internal/settings"
	"github.com/blockmart/blockmart-backend/pkg/enums"
	pkgerrors "github.com/blockmart/blockmart-backend/pkg/errors"
	"github.com/blockmart/blockmart-backend/pkg/logger"
)

// statusAnnouncer is the slice of the gateway the settings endpoints
// use to tell the shop channel about open/close flips.
type statusAnnouncer interface {
	SendMessage(ctx context.Context, channelID, body string) (platform.Message, error)
	RenameChannel(ctx context.Context, channelID, name string) error
}

func SettingsList(svc settings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make(map[string]string, len(rows))
		for _, row := range rows {
			out[row.Key] = row.Value
		}
		responses.WriteSuccess(w, out)
	}
}

type setSettingRequest struct {
	Key   string `json:"key" validate:"required"`
	Value string `json:"value" validate:"required"`
}

func SettingsSet(svc settings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload setSettingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Set(r.Context(), payload.Key, payload.Value); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{payload.Key: payload.Value})
	}
}

func ShopStatusGet(svc settings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := svc.ShopStatus(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"shop_status": string(status)})
	}
}

type shopStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// ShopStatusSet flips the shop open or closed and notifies the status
// channel when one is configured.
func ShopStatusSet(svc settings.Service, gateway statusAnnouncer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload shopStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseShopStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shop status"))
			return
		}
		if err := svc.SetShopStatus(r.Context(), status); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if gateway != nil {
			if channel, chErr := svc.ShopStatusChannel(r.Context()); chErr == nil && channel != "" {
				body := "The shop is now closed."
				name := "shop-closed"
				if status == enums.ShopStatusOpen {
					body = "The shop is now open."
					name = "shop-open"
				}
				if _, sendErr := gateway.SendMessage(r.Context(), channel, body); sendErr != nil && logg != nil {
					logg.Error(r.Context(), "announce shop status flip", sendErr)
				}
				if renameErr := gateway.RenameChannel(r.Context(), channel, name); renameErr != nil && logg != nil {
					logg.Error(r.Context(), "rename shop status channel", renameErr)
				}
			}
		}

		responses.WriteSuccess(w, map[string]string{"shop_status": string(status)})
	}
}
