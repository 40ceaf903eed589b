package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/blockmart/blockmart-backend/api/middleware"
	"github.com/blockmart/blockmart-backend/api/responses"
	"github.com/blockmart/blockmart-backend/api/validators"
	"github.com/blockmart/blockmart-backend/internal/catalog"
	"github.com/blockmart/blockmart-backend/pkg/db/models"
	"github.com/blockmart/blockmart-backend/pkg/enums"
	pkgerrors "github.com/blockmart/blockmart-backend/pkg/errors"
	"github.com/blockmart/blockmart-backend/pkg/logger"
)

// stockVisibility is the slice of the settings service the catalog
// endpoints need to decide whether buyers may see stock levels.
type stockVisibility interface {
	HideStock(ctx context.Context) (bool, error)
}

type itemResponse struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description,omitempty"`
	ImageURL    *string         `json:"image_url,omitempty"`
	Quantity    *int            `json:"quantity,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

func newItemResponse(item *models.Item, includeStock bool) itemResponse {
	resp := itemResponse{
		ID:          item.ID,
		Name:        item.Name,
		Price:       item.Price,
		Description: item.Description,
		ImageURL:    item.ImageURL,
		CreatedAt:   item.CreatedAt,
	}
	if includeStock {
		qty := item.Quantity
		resp.Quantity = &qty
	}
	return resp
}

func newItemListResponse(items []models.Item, includeStock bool) []itemResponse {
	out := make([]itemResponse, len(items))
	for i := range items {
		out[i] = newItemResponse(&items[i], includeStock)
	}
	return out
}

// stockVisible reports whether the caller may see live quantities.
// Admins and agents always can; buyers only while hide_stock is off.
func stockVisible(r *http.Request, settings stockVisibility, logg *logger.Logger) bool {
	role := middleware.RoleFromContext(r.Context())
	if role == string(enums.ActorRoleAdmin) || role == string(enums.ActorRoleAgent) {
		return true
	}
	if settings == nil {
		return true
	}
	hidden, err := settings.HideStock(r.Context())
	if err != nil {
		if logg != nil {
			logg.Error(r.Context(), "read hide_stock setting", err)
		}
		return false
	}
	return !hidden
}

func ItemList(svc catalog.Service, settings stockVisibility, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newItemListResponse(items, stockVisible(r, settings, logg)))
	}
}

func ItemGet(svc catalog.Service, settings stockVisibility, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUIDParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newItemResponse(item, stockVisible(r, settings, logg)))
	}
}

type createItemRequest struct {
	Name        string `json:"name" validate:"required"`
	Price       string `json:"price" validate:"required"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url" validate:"omitempty,url"`
	Quantity    int    `json:"quantity" validate:"min=0"`
}

func ItemCreate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		price, err := decimal.NewFromString(payload.Price)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price"))
			return
		}
		item, err := svc.Create(r.Context(), catalog.CreateItemInput{
			Name:        payload.Name,
			Price:       price,
			Description: payload.Description,
			ImageURL:    payload.ImageURL,
			Quantity:    payload.Quantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newItemResponse(item, true))
	}
}

type restockRequest struct {
	Delta int `json:"delta" validate:"required"`
}

func ItemRestock(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUIDParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload restockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.Restock(r.Context(), id, payload.Delta)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newItemResponse(item, true))
	}
}

func ItemDelete(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUIDParam(r, "itemID")
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

func ItemExportCSV(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := svc.ExportCSV(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="items.csv"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

func parseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return id, nil
}
