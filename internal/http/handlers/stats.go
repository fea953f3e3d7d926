package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Internal surface consumed by the event service: confirmed-participant
// counts for event cards, and a membership check used when gating comments.

type statsRequest struct {
	EventIDs []string `json:"eventIds" binding:"required,min=1,dive,uuid"`
}

// POST /internal/requests/stats
func (h *RequestsHandler) ConfirmedStats(ctx *gin.Context) {
	var body statsRequest

	if !BindJSON(ctx, &body) {
		return
	}

	counts, err := h.svc.ConfirmedCounts(ctx.Request.Context(), body.EventIDs)

	if err != nil {
		h.respondAdmissionError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"confirmed": counts})
}

// GET /internal/requests/confirmed?userId=...&eventId=...
func (h *RequestsHandler) HasConfirmed(ctx *gin.Context) {
	userID := ctx.Query("userId")
	eventID := ctx.Query("eventId")

	if uuid.Validate(userID) != nil || uuid.Validate(eventID) != nil {
		RespondBadRequest(ctx, "userId and eventId must be valid UUIDs", nil)
		return
	}

	confirmed, err := h.svc.HasConfirmedRequest(ctx.Request.Context(), userID, eventID)

	if err != nil {
		h.respondAdmissionError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"confirmed": confirmed})
}
