package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/requesthub/internal/domain/request"
)

// Organizer-side routes: viewing and adjudicating the requests targeting an
// event the caller initiated.

// GET /users/:userId/events/:eventId/requests
func (h *RequestsHandler) ListForEvent(ctx *gin.Context) {
	userID, ok := pathUUID(ctx, "userId")
	if !ok {
		return
	}

	eventID, ok := pathUUID(ctx, "eventId")
	if !ok {
		return
	}

	dtos, err := h.svc.ListEventRequests(ctx.Request.Context(), userID, eventID)

	if err != nil {
		h.respondAdmissionError(ctx, err)
		return
	}

	respondListWithETag(ctx, dtos)
}

// PATCH /users/:userId/events/:eventId/requests
func (h *RequestsHandler) Decide(ctx *gin.Context) {
	userID, ok := pathUUID(ctx, "userId")
	if !ok {
		return
	}

	eventID, ok := pathUUID(ctx, "eventId")
	if !ok {
		return
	}

	var upd request.StatusUpdateRequest

	if !BindJSON(ctx, &upd) {
		return
	}

	decision, err := h.svc.ApplyBatchDecision(ctx.Request.Context(), userID, eventID, upd)

	if err != nil {
		h.respondAdmissionError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, decision)
}
