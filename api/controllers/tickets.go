package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/blockmart/blockmart-backend/api/responses"
	"github.com/blockmart/blockmart-backend/api/validators"
	"github.com/blockmart/blockmart-backend/internal/ticket"
	"github.com/blockmart/blockmart-backend/pkg/db/models"
	"github.com/blockmart/blockmart-backend/pkg/logger"
)

type ticketResponse struct {
	ID        uuid.UUID  `json:"id"`
	UserID    string     `json:"user_id"`
	ChannelID *string    `json:"channel_id,omitempty"`
	Status    string     `json:"status"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func newTicketResponse(t *models.Ticket) ticketResponse {
	return ticketResponse{
		ID:        t.ID,
		UserID:    t.UserID,
		ChannelID: t.ChannelID,
		Status:    string(t.Status),
		ClosedAt:  t.ClosedAt,
		CreatedAt: t.CreatedAt,
	}
}

func TicketOpen(svc ticket.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := callerID(r, logg, w)
		if !ok {
			return
		}
		opened, err := svc.Open(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newTicketResponse(opened))
	}
}

func TicketListOpen(svc ticket.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tickets, err := svc.ListOpen(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]ticketResponse, len(tickets))
		for i := range tickets {
			out[i] = newTicketResponse(&tickets[i])
		}
		responses.WriteSuccess(w, out)
	}
}

func TicketClose(svc ticket.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUIDParam(r, "ticketID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		closed, err := svc.Close(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newTicketResponse(closed))
	}
}

type ticketSetupRequest struct {
	Message string `json:"message" validate:"required"`
}

func TicketSetup(svc ticket.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUIDParam(r, "ticketID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req ticketSetupRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		updated, err := svc.Setup(r.Context(), id, req.Message)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newTicketResponse(updated))
	}
}
