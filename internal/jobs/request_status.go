package jobs

import (
	"encoding/json"
	"time"
)

// TypeRequestStatus notifies a requester that their participation request
// changed status (auto-confirm at creation, or an organizer batch decision).
const TypeRequestStatus = "request.status"

type RequestStatusPayload struct {
	RequestID   string    `json:"requestId"`
	EventID     string    `json:"eventId"`
	RequesterID string    `json:"requesterId"`
	Status      string    `json:"status"`
	DecidedAt   time.Time `json:"decidedAt"`
}

func (p RequestStatusPayload) JSON() (json.RawMessage, error) {
	b, err := json.Marshal(p)

	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}
