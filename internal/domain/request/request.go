package request

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status of a participation request. Serialized by name.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusRejected  Status = "REJECTED"
	StatusCanceled  Status = "CANCELED"
)

// ParseStatus accepts the status name case-insensitively.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending, nil
	case StatusConfirmed:
		return StatusConfirmed, nil
	case StatusRejected:
		return StatusRejected, nil
	case StatusCanceled:
		return StatusCanceled, nil
	default:
		return "", ErrUnknownStatus
	}
}

type Request struct {
	ID          string    `json:"id"`
	EventID     string    `json:"eventId"`
	RequesterID string    `json:"requesterId"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

var (
	ErrNotFound      = errors.New("request not found")
	ErrAlreadyExists = errors.New("request already exists for this event and requester")
	ErrCapacityFull  = errors.New("event participant limit reached")
	ErrNotPending    = errors.New("request is not pending")
	ErrNotOwner      = errors.New("request belongs to a different user")
	ErrCancelConfirmed = errors.New("confirmed request cannot be canceled")
	ErrUnknownStatus = errors.New("unknown request status")
)

// New builds a fresh request. CreatedAt is truncated to microseconds so that
// round-trips through the database compare equal.
func New(eventID, requesterID string, status Status) Request {
	return Request{
		ID:          uuid.NewString(),
		EventID:     eventID,
		RequesterID: requesterID,
		Status:      status,
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
}

// createdLayout is the stable wire format for the created timestamp.
const createdLayout = "2006-01-02 15:04:05"

type DTO struct {
	ID        string `json:"id"`
	Event     string `json:"event"`
	Requester string `json:"requester"`
	Status    string `json:"status"`
	Created   string `json:"created"`
}

func (r Request) ToDTO() DTO {
	return DTO{
		ID:        r.ID,
		Event:     r.EventID,
		Requester: r.RequesterID,
		Status:    string(r.Status),
		Created:   r.CreatedAt.Format(createdLayout),
	}
}

func ToDTOList(reqs []Request) []DTO {
	out := make([]DTO, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.ToDTO())
	}
	return out
}

// BatchDecision is the result of an organizer bulk confirm/reject.
type BatchDecision struct {
	Confirmed []DTO `json:"confirmedRequests"`
	Rejected  []DTO `json:"rejectedRequests"`
}

// StatusUpdateRequest is the organizer's bulk adjudication payload. The id
// order is meaningful: when seats run short, earlier entries win.
type StatusUpdateRequest struct {
	RequestIDs []string `json:"requestIds" binding:"required"`
	Status     string   `json:"status" binding:"required"`
}
