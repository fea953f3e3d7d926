package admission

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/geocoder89/requesthub/internal/cache"
	"github.com/geocoder89/requesthub/internal/domain/event"
	"github.com/geocoder89/requesthub/internal/domain/job"
	"github.com/geocoder89/requesthub/internal/domain/request"
	"github.com/geocoder89/requesthub/internal/jobs"
)

// Guard failures that are about the actor or the event, not about a request
// row. Kept here because they belong to the admission policy itself.
var (
	ErrSelfRequest         = errors.New("initiator cannot request participation in their own event")
	ErrEventNotPublished   = errors.New("event is not published")
	ErrNotInitiator        = errors.New("only the event initiator may change request statuses")
	ErrNotInitiatorView    = errors.New("only the event initiator may view the event's requests")
	ErrInvalidTargetStatus = errors.New("batch status must be CONFIRMED or REJECTED")
)

// EventLookup is the read-only port into the event service.
type EventLookup interface {
	GetEvent(ctx context.Context, eventID string) (event.Snapshot, error)
}

// UserLookup is the read-only port into the user service. A nil return means
// the user exists.
type UserLookup interface {
	UserExists(ctx context.Context, userID string) error
}

// TxStore is the unit of work handed to capacity-affecting sequences. Every
// call sees and mutates the same transaction, executed while the store-level
// event lock is held.
type TxStore interface {
	GetByID(ctx context.Context, id string) (request.Request, error)
	ExistsByEventAndRequester(ctx context.Context, eventID, requesterID string) (bool, error)
	CountConfirmed(ctx context.Context, eventID string) (int, error)
	Insert(ctx context.Context, req request.Request) error
	ListByEventAndIDs(ctx context.Context, eventID string, ids []string) ([]request.Request, error)
	UpdateStatuses(ctx context.Context, ids []string, status request.Status) error
	EnqueueJob(ctx context.Context, req job.CreateRequest) error
}

// Store is the durable request table plus its plain read paths.
type Store interface {
	// WithEventLock runs fn as one atomic unit serialized per event: the
	// count-decide-write sequence inside fn cannot interleave with another
	// capacity-affecting sequence for the same event.
	WithEventLock(ctx context.Context, eventID string, fn func(tx TxStore) error) error

	ListByRequester(ctx context.Context, requesterID string) ([]request.Request, error)
	ListByEvent(ctx context.Context, eventID string) ([]request.Request, error)
	GetByID(ctx context.Context, id string) (request.Request, error)
	ConfirmedCountByEvents(ctx context.Context, eventIDs []string) (map[string]int, error)
	HasConfirmedRequest(ctx context.Context, requesterID, eventID string) (bool, error)
}

// Engine decides whether a person may join an event and adjudicates
// organizer batch decisions without ever letting confirmed attendance
// exceed the event's participant limit.
type Engine struct {
	store  Store
	events EventLookup
	users  UserLookup
	counts *cache.Counts
	log    *slog.Logger
}

func NewEngine(store Store, events EventLookup, users UserLookup, counts *cache.Counts, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}

	return &Engine{
		store:  store,
		events: events,
		users:  users,
		counts: counts,
		log:    log,
	}
}

// CreateRequest admits a single participation request.
//
// Moderation off or an unlimited event auto-confirms; otherwise the request
// starts PENDING. Capacity is re-checked inside the event lock so a create
// racing a batch confirm cannot oversubscribe the event.
func (e *Engine) CreateRequest(ctx context.Context, requesterID, eventID string) (request.DTO, error) {
	if err := e.users.UserExists(ctx, requesterID); err != nil {
		return request.DTO{}, err
	}

	ev, err := e.events.GetEvent(ctx, eventID)
	if err != nil {
		return request.DTO{}, err
	}

	if ev.InitiatorID == requesterID {
		return request.DTO{}, ErrSelfRequest
	}

	if ev.State != event.StatePublished {
		return request.DTO{}, ErrEventNotPublished
	}

	var created request.Request

	err = e.store.WithEventLock(ctx, eventID, func(tx TxStore) error {
		exists, err := tx.ExistsByEventAndRequester(ctx, eventID, requesterID)
		if err != nil {
			return err
		}
		if exists {
			return request.ErrAlreadyExists
		}

		confirmed, err := tx.CountConfirmed(ctx, eventID)
		if err != nil {
			return err
		}
		if !ev.Unlimited() && confirmed >= ev.ParticipantLimit {
			return request.ErrCapacityFull
		}

		status := request.StatusPending
		if !ev.RequestModeration || ev.Unlimited() {
			status = request.StatusConfirmed
		}

		created = request.New(eventID, requesterID, status)

		if err := tx.Insert(ctx, created); err != nil {
			return err
		}

		if status == request.StatusConfirmed {
			return e.enqueueStatusJob(ctx, tx, created)
		}
		return nil
	})

	if err != nil {
		return request.DTO{}, err
	}

	if created.Status == request.StatusConfirmed && e.counts != nil {
		e.counts.Invalidate(eventID)
	}

	e.log.InfoContext(ctx, "request created",
		"request_id", created.ID, "event_id", eventID, "requester_id", requesterID, "status", created.Status)

	return created.ToDTO(), nil
}

// CancelRequest lets a requester withdraw their own request. A confirmed
// request cannot be canceled; it already occupies a seat.
func (e *Engine) CancelRequest(ctx context.Context, requesterID, requestID string) (request.DTO, error) {
	if err := e.users.UserExists(ctx, requesterID); err != nil {
		return request.DTO{}, err
	}

	// locate the event so the status flip happens under the same lock as
	// batch decisions
	existing, err := e.store.GetByID(ctx, requestID)
	if err != nil {
		return request.DTO{}, err
	}

	var canceled request.Request

	err = e.store.WithEventLock(ctx, existing.EventID, func(tx TxStore) error {
		req, err := tx.GetByID(ctx, requestID)
		if err != nil {
			return err
		}

		if req.RequesterID != requesterID {
			return request.ErrNotOwner
		}

		if req.Status == request.StatusConfirmed {
			return request.ErrCancelConfirmed
		}

		if err := tx.UpdateStatuses(ctx, []string{req.ID}, request.StatusCanceled); err != nil {
			return err
		}

		req.Status = request.StatusCanceled
		canceled = req
		return nil
	})

	if err != nil {
		return request.DTO{}, err
	}

	e.log.InfoContext(ctx, "request canceled", "request_id", requestID, "requester_id", requesterID)

	return canceled.ToDTO(), nil
}

// ListUserRequests returns every request the user has made.
func (e *Engine) ListUserRequests(ctx context.Context, requesterID string) ([]request.DTO, error) {
	if err := e.users.UserExists(ctx, requesterID); err != nil {
		return nil, err
	}

	reqs, err := e.store.ListByRequester(ctx, requesterID)
	if err != nil {
		return nil, err
	}

	return request.ToDTOList(reqs), nil
}

// ListEventRequests returns an event's requests to its initiator.
func (e *Engine) ListEventRequests(ctx context.Context, organizerID, eventID string) ([]request.DTO, error) {
	if err := e.users.UserExists(ctx, organizerID); err != nil {
		return nil, err
	}

	ev, err := e.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if ev.InitiatorID != organizerID {
		return nil, ErrNotInitiatorView
	}

	reqs, err := e.store.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	return request.ToDTOList(reqs), nil
}

// ApplyBatchDecision moves a set of pending requests to CONFIRMED or
// REJECTED on the initiator's behalf.
//
// The id list is a priority order: with fewer free seats than requests, the
// first `available` ids are confirmed and the rest are REJECTED, not left
// pending — a bulk confirm means "take as many of these as fit, decline the
// remainder". The whole batch fails on the first non-pending request, and
// nothing is written in that case.
func (e *Engine) ApplyBatchDecision(ctx context.Context, organizerID, eventID string, upd request.StatusUpdateRequest) (request.BatchDecision, error) {
	empty := request.BatchDecision{
		Confirmed: []request.DTO{},
		Rejected:  []request.DTO{},
	}

	if err := e.users.UserExists(ctx, organizerID); err != nil {
		return empty, err
	}

	ev, err := e.events.GetEvent(ctx, eventID)
	if err != nil {
		return empty, err
	}

	if ev.InitiatorID != organizerID {
		return empty, ErrNotInitiator
	}

	target, err := request.ParseStatus(upd.Status)
	if err != nil {
		return empty, ErrInvalidTargetStatus
	}
	if target != request.StatusConfirmed && target != request.StatusRejected {
		return empty, ErrInvalidTargetStatus
	}

	if len(upd.RequestIDs) == 0 {
		return empty, nil
	}

	var confirmed, rejected []request.Request

	err = e.store.WithEventLock(ctx, eventID, func(tx TxStore) error {
		confirmed, rejected = nil, nil

		// ids of a different event are silently absent here; the eventID
		// filter is part of the query
		matched, err := tx.ListByEventAndIDs(ctx, eventID, upd.RequestIDs)
		if err != nil {
			return err
		}

		for _, req := range matched {
			if req.Status != request.StatusPending {
				return request.ErrNotPending
			}
		}

		if target == request.StatusRejected {
			rejected = matched
		} else {
			confirmedNow, err := tx.CountConfirmed(ctx, eventID)
			if err != nil {
				return err
			}

			if ev.Unlimited() {
				confirmed = matched
			} else {
				available := ev.ParticipantLimit - confirmedNow
				if available <= 0 {
					return request.ErrCapacityFull
				}

				if available < len(matched) {
					confirmed = matched[:available]
					rejected = matched[available:]
				} else {
					confirmed = matched
				}
			}
		}

		if err := e.applyStatus(ctx, tx, confirmed, request.StatusConfirmed); err != nil {
			return err
		}
		return e.applyStatus(ctx, tx, rejected, request.StatusRejected)
	})

	if err != nil {
		return empty, err
	}

	if len(confirmed) > 0 && e.counts != nil {
		e.counts.Invalidate(eventID)
	}

	e.log.InfoContext(ctx, "batch decision applied",
		"event_id", eventID, "organizer_id", organizerID, "target", target,
		"confirmed", len(confirmed), "rejected", len(rejected))

	return request.BatchDecision{
		Confirmed: request.ToDTOList(confirmed),
		Rejected:  request.ToDTOList(rejected),
	}, nil
}

func (e *Engine) applyStatus(ctx context.Context, tx TxStore, reqs []request.Request, status request.Status) error {
	if len(reqs) == 0 {
		return nil
	}

	ids := make([]string, 0, len(reqs))
	for i := range reqs {
		reqs[i].Status = status
		ids = append(ids, reqs[i].ID)
	}

	if err := tx.UpdateStatuses(ctx, ids, status); err != nil {
		return err
	}

	for _, req := range reqs {
		if err := e.enqueueStatusJob(ctx, tx, req); err != nil {
			return err
		}
	}
	return nil
}

// enqueueStatusJob records a notification job inside the same transaction as
// the status write, so a committed decision always has its notification.
func (e *Engine) enqueueStatusJob(ctx context.Context, tx TxStore, req request.Request) error {
	payload := jobs.RequestStatusPayload{
		RequestID:   req.ID,
		EventID:     req.EventID,
		RequesterID: req.RequesterID,
		Status:      string(req.Status),
		DecidedAt:   time.Now().UTC(),
	}

	raw, err := payload.JSON()
	if err != nil {
		return err
	}

	key := "request:status:" + req.ID + ":" + string(req.Status)

	return tx.EnqueueJob(ctx, job.CreateRequest{
		Type:           jobs.TypeRequestStatus,
		Payload:        raw,
		RunAt:          time.Now().UTC(),
		MaxAttempts:    10,
		IdempotencyKey: &key,
	})
}

// ConfirmedCounts returns confirmed-request totals per event, zero-filled
// for events with no confirmed requests. Served through a short TTL cache;
// this read path is enrichment, never an admission input.
func (e *Engine) ConfirmedCounts(ctx context.Context, eventIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(eventIDs))

	missing := make([]string, 0, len(eventIDs))
	for _, id := range eventIDs {
		if e.counts != nil {
			if n, ok := e.counts.Get(id); ok {
				out[id] = n
				continue
			}
		}
		missing = append(missing, id)
	}

	if len(missing) == 0 {
		return out, nil
	}

	fresh, err := e.store.ConfirmedCountByEvents(ctx, missing)
	if err != nil {
		return nil, err
	}

	for _, id := range missing {
		n := fresh[id] // zero when absent
		out[id] = n
		if e.counts != nil {
			e.counts.Set(id, n)
		}
	}

	return out, nil
}

// HasConfirmedRequest reports whether the user holds a confirmed request for
// the event. Pure read, no side effects.
func (e *Engine) HasConfirmedRequest(ctx context.Context, requesterID, eventID string) (bool, error) {
	return e.store.HasConfirmedRequest(ctx, requesterID, eventID)
}
