package notifications

import "context"

type SendRequestStatusInput struct {
	RequestID   string
	EventID     string
	RequesterID string
	Status      string
}

type Notifier interface {
	SendRequestStatus(ctx context.Context, input SendRequestStatusInput) error
}
