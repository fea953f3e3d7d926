package jobs

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/geocoder89/requesthub/internal/domain/job"
)

var (
	ErrInvalidJobType    = errors.New("invalid job type")
	ErrInvalidJobPayload = errors.New("invalid job payload")
)

func IsKnownType(t string) bool {
	return t == TypeRequestStatus
}

// DecodeRequestStatus unmarshals a request.status job payload.
func DecodeRequestStatus(j job.Job) (RequestStatusPayload, error) {
	if j.Type != TypeRequestStatus {
		return RequestStatusPayload{}, ErrInvalidJobType
	}
	if len(j.Payload) == 0 {
		return RequestStatusPayload{}, ErrInvalidJobPayload
	}

	var p RequestStatusPayload
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return RequestStatusPayload{}, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
	}
	return p, nil
}
