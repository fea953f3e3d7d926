package event

import "errors"

// Lifecycle states owned by the event service. We only ever read them.
const (
	StatePending   = "PENDING"
	StatePublished = "PUBLISHED"
	StateCanceled  = "CANCELED"
)

// Snapshot is what the event service tells us about an event for one
// admission decision. It is never cached past the current operation.
type Snapshot struct {
	ID                string `json:"id"`
	InitiatorID       string `json:"initiatorId"`
	State             string `json:"state"`
	ParticipantLimit  int    `json:"participantLimit"`
	RequestModeration bool   `json:"requestModeration"`
}

// Unlimited reports whether the event has no capacity cap.
func (s Snapshot) Unlimited() bool {
	return s.ParticipantLimit <= 0
}

var (
	ErrNotFound    = errors.New("event not found")
	ErrUnavailable = errors.New("event service unavailable")
)
