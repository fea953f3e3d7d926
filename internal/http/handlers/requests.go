package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/geocoder89/requesthub/internal/admission"
	"github.com/geocoder89/requesthub/internal/domain/event"
	"github.com/geocoder89/requesthub/internal/domain/request"
	"github.com/geocoder89/requesthub/internal/domain/user"
)

// AdmissionService is the surface the HTTP layer needs from the engine.
type AdmissionService interface {
	CreateRequest(ctx context.Context, requesterID, eventID string) (request.DTO, error)
	CancelRequest(ctx context.Context, requesterID, requestID string) (request.DTO, error)
	ListUserRequests(ctx context.Context, requesterID string) ([]request.DTO, error)
	ListEventRequests(ctx context.Context, organizerID, eventID string) ([]request.DTO, error)
	ApplyBatchDecision(ctx context.Context, organizerID, eventID string, upd request.StatusUpdateRequest) (request.BatchDecision, error)
	ConfirmedCounts(ctx context.Context, eventIDs []string) (map[string]int, error)
	HasConfirmedRequest(ctx context.Context, requesterID, eventID string) (bool, error)
}

type RequestsHandler struct {
	svc AdmissionService
	log *slog.Logger
}

func NewRequestsHandler(svc AdmissionService, log *slog.Logger) *RequestsHandler {
	if log == nil {
		log = slog.Default()
	}

	return &RequestsHandler{svc: svc, log: log}
}

// POST /users/:userId/requests?eventId=...
func (h *RequestsHandler) Create(ctx *gin.Context) {
	userID, ok := pathUUID(ctx, "userId")
	if !ok {
		return
	}

	eventID := ctx.Query("eventId")

	if uuid.Validate(eventID) != nil {
		RespondBadRequest(ctx, "eventId must be a valid UUID", nil)
		return
	}

	dto, err := h.svc.CreateRequest(ctx.Request.Context(), userID, eventID)

	if err != nil {
		h.respondAdmissionError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto)
}

// GET /users/:userId/requests
func (h *RequestsHandler) ListOwn(ctx *gin.Context) {
	userID, ok := pathUUID(ctx, "userId")
	if !ok {
		return
	}

	dtos, err := h.svc.ListUserRequests(ctx.Request.Context(), userID)

	if err != nil {
		h.respondAdmissionError(ctx, err)
		return
	}

	respondListWithETag(ctx, dtos)
}

// PATCH /users/:userId/requests/:requestId/cancel
func (h *RequestsHandler) Cancel(ctx *gin.Context) {
	userID, ok := pathUUID(ctx, "userId")
	if !ok {
		return
	}

	requestID, ok := pathUUID(ctx, "requestId")
	if !ok {
		return
	}

	dto, err := h.svc.CancelRequest(ctx.Request.Context(), userID, requestID)

	if err != nil {
		h.respondAdmissionError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto)
}

func (h *RequestsHandler) respondAdmissionError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, user.ErrNotFound):
		RespondNotFound(ctx, "User not found")

	case errors.Is(err, event.ErrNotFound):
		RespondNotFound(ctx, "Event not found")

	case errors.Is(err, request.ErrNotFound):
		RespondNotFound(ctx, "Request not found")

	case errors.Is(err, admission.ErrNotInitiatorView):
		RespondNotFound(ctx, "Event not found")

	case errors.Is(err, admission.ErrSelfRequest):
		RespondConflict(ctx, "Initiator cannot request participation in own event")

	case errors.Is(err, admission.ErrEventNotPublished):
		RespondConflict(ctx, "Cannot participate in an unpublished event")

	case errors.Is(err, request.ErrAlreadyExists):
		RespondConflict(ctx, "Participation request already exists")

	case errors.Is(err, request.ErrCapacityFull):
		RespondConflict(ctx, "The participant limit has been reached")

	case errors.Is(err, request.ErrNotPending):
		RespondConflict(ctx, "Request must have status PENDING")

	case errors.Is(err, request.ErrNotOwner):
		RespondConflict(ctx, "Only the requester can cancel the request")

	case errors.Is(err, request.ErrCancelConfirmed):
		RespondConflict(ctx, "A confirmed request cannot be canceled")

	case errors.Is(err, admission.ErrNotInitiator):
		RespondConflict(ctx, "Only the event initiator can adjudicate requests")

	case errors.Is(err, admission.ErrInvalidTargetStatus):
		RespondBadRequest(ctx, "Status must be CONFIRMED or REJECTED", nil)

	case errors.Is(err, event.ErrUnavailable):
		RespondUnavailable(ctx, "Event service is unavailable")

	case errors.Is(err, user.ErrUnavailable):
		RespondUnavailable(ctx, "User service is unavailable")

	default:
		h.log.ErrorContext(ctx.Request.Context(), "admission operation failed", "err", err)
		RespondInternal(ctx)
	}
}

func pathUUID(ctx *gin.Context, name string) (string, bool) {
	v := ctx.Param(name)

	if uuid.Validate(v) != nil {
		RespondBadRequest(ctx, name+" must be a valid UUID", nil)
		return "", false
	}

	return v, true
}
