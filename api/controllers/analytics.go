package controllers

import (
	"net/http"

	"github.com/blockmart/blockmart-backend/api/responses"
	"github.com/blockmart/blockmart-backend/internal/analytics"
	"github.com/blockmart/blockmart-backend/pkg/enums"
	pkgerrors "github.com/blockmart/blockmart-backend/pkg/errors"
	"github.com/blockmart/blockmart-backend/pkg/logger"
)

func dateRangeQuery(r *http.Request) (enums.DateRange, error) {
	raw := r.URL.Query().Get("range")
	if raw == "" {
		return enums.DateRangeAllTime, nil
	}
	parsed, err := enums.ParseDateRange(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid range")
	}
	return parsed, nil
}

func AnalyticsItemStats(svc analytics.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := parseUUIDParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dateRange, err := dateRangeQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		stats, err := svc.ItemStats(r.Context(), itemID, dateRange)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

func AnalyticsSummary(svc analytics.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dateRange, err := dateRangeQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.ShopSummary(r.Context(), dateRange)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
