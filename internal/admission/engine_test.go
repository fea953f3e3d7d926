package admission_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/geocoder89/requesthub/internal/admission"
	"github.com/geocoder89/requesthub/internal/cache"
	"github.com/geocoder89/requesthub/internal/domain/event"
	"github.com/geocoder89/requesthub/internal/domain/request"
	"github.com/geocoder89/requesthub/internal/domain/user"
	"github.com/geocoder89/requesthub/internal/repo/memory"
)

// Fake implementations of the remote ports

type fakeEvents struct {
	getFn func(ctx context.Context, eventID string) (event.Snapshot, error)
}

func (f *fakeEvents) GetEvent(ctx context.Context, eventID string) (event.Snapshot, error) {
	if f.getFn != nil {
		return f.getFn(ctx, eventID)
	}
	return event.Snapshot{}, event.ErrNotFound
}

type fakeUsers struct {
	existsFn func(ctx context.Context, userID string) error
}

func (f *fakeUsers) UserExists(ctx context.Context, userID string) error {
	if f.existsFn != nil {
		return f.existsFn(ctx, userID)
	}
	return nil
}

func snapshotFor(ev event.Snapshot) *fakeEvents {
	return &fakeEvents{
		getFn: func(ctx context.Context, eventID string) (event.Snapshot, error) {
			if eventID != ev.ID {
				return event.Snapshot{}, event.ErrNotFound
			}
			return ev, nil
		},
	}
}

func newEngine(store admission.Store, events admission.EventLookup, users admission.UserLookup) *admission.Engine {
	return admission.NewEngine(store, events, users, cache.NewCounts(time.Minute), nil)
}

// seed places a request with a chosen status directly into the store.
func seed(t *testing.T, store *memory.RequestsRepo, eventID, requesterID string, status request.Status, at time.Time) request.Request {
	t.Helper()

	req := request.Request{
		ID:          uuid.NewString(),
		EventID:     eventID,
		RequesterID: requesterID,
		Status:      status,
		CreatedAt:   at,
	}

	err := store.WithEventLock(context.Background(), eventID, func(tx admission.TxStore) error {
		return tx.Insert(context.Background(), req)
	})
	if err != nil {
		t.Fatalf("seed request: %v", err)
	}

	return req
}

func TestCreateRequest(t *testing.T) {
	initiator := uuid.NewString()
	requester := uuid.NewString()
	eventID := uuid.NewString()

	published := event.Snapshot{
		ID:                eventID,
		InitiatorID:       initiator,
		State:             event.StatePublished,
		ParticipantLimit:  2,
		RequestModeration: true,
	}

	tests := []struct {
		name       string
		requester  string
		event      event.Snapshot
		users      *fakeUsers
		events     *fakeEvents
		before     func(t *testing.T, store *memory.RequestsRepo)
		wantErr    error
		wantStatus request.Status
	}{
		{
			name:      "unknown_user",
			requester: requester,
			users: &fakeUsers{existsFn: func(ctx context.Context, id string) error {
				return user.ErrNotFound
			}},
			events:  snapshotFor(published),
			wantErr: user.ErrNotFound,
		},
		{
			name:      "unknown_event",
			requester: requester,
			events: &fakeEvents{getFn: func(ctx context.Context, id string) (event.Snapshot, error) {
				return event.Snapshot{}, event.ErrNotFound
			}},
			wantErr: event.ErrNotFound,
		},
		{
			name:      "event_service_down",
			requester: requester,
			events: &fakeEvents{getFn: func(ctx context.Context, id string) (event.Snapshot, error) {
				return event.Snapshot{}, event.ErrUnavailable
			}},
			wantErr: event.ErrUnavailable,
		},
		{
			name:      "initiator_requests_own_event",
			requester: initiator,
			events:    snapshotFor(published),
			wantErr:   admission.ErrSelfRequest,
		},
		{
			name:      "event_not_published",
			requester: requester,
			events: snapshotFor(event.Snapshot{
				ID: eventID, InitiatorID: initiator, State: event.StatePending,
				ParticipantLimit: 2, RequestModeration: true,
			}),
			wantErr: admission.ErrEventNotPublished,
		},
		{
			name:      "duplicate_request",
			requester: requester,
			events:    snapshotFor(published),
			before: func(t *testing.T, store *memory.RequestsRepo) {
				seed(t, store, eventID, requester, request.StatusPending, time.Now().UTC())
			},
			wantErr: request.ErrAlreadyExists,
		},
		{
			name:      "capacity_already_reached",
			requester: requester,
			events:    snapshotFor(published),
			before: func(t *testing.T, store *memory.RequestsRepo) {
				seed(t, store, eventID, uuid.NewString(), request.StatusConfirmed, time.Now().UTC())
				seed(t, store, eventID, uuid.NewString(), request.StatusConfirmed, time.Now().UTC())
			},
			wantErr: request.ErrCapacityFull,
		},
		{
			name:      "pending_rejections_do_not_consume_capacity",
			requester: requester,
			events:    snapshotFor(published),
			before: func(t *testing.T, store *memory.RequestsRepo) {
				seed(t, store, eventID, uuid.NewString(), request.StatusPending, time.Now().UTC())
				seed(t, store, eventID, uuid.NewString(), request.StatusRejected, time.Now().UTC())
				seed(t, store, eventID, uuid.NewString(), request.StatusCanceled, time.Now().UTC())
			},
			wantStatus: request.StatusPending,
		},
		{
			name:      "moderated_event_starts_pending",
			requester: requester,
			events:    snapshotFor(published),
			wantStatus: request.StatusPending,
		},
		{
			name:      "moderation_off_auto_confirms",
			requester: requester,
			events: snapshotFor(event.Snapshot{
				ID: eventID, InitiatorID: initiator, State: event.StatePublished,
				ParticipantLimit: 2, RequestModeration: false,
			}),
			wantStatus: request.StatusConfirmed,
		},
		{
			name:      "unlimited_event_auto_confirms_despite_moderation",
			requester: requester,
			events: snapshotFor(event.Snapshot{
				ID: eventID, InitiatorID: initiator, State: event.StatePublished,
				ParticipantLimit: 0, RequestModeration: true,
			}),
			wantStatus: request.StatusConfirmed,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewRequestsRepo()

			if tt.before != nil {
				tt.before(t, store)
			}

			users := tt.users
			if users == nil {
				users = &fakeUsers{}
			}

			eng := newEngine(store, tt.events, users)

			dto, err := eng.CreateRequest(context.Background(), tt.requester, eventID)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("got err %v, want %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if dto.Status != string(tt.wantStatus) {
				t.Fatalf("got status %s, want %s", dto.Status, tt.wantStatus)
			}

			if dto.Event != eventID || dto.Requester != tt.requester {
				t.Fatalf("dto does not echo event/requester: %+v", dto)
			}
		})
	}
}

// A failed admission must leave no trace: the requester can retry and the
// confirmed count stays untouched.
func TestCreateRequestNoPartialEffects(t *testing.T) {
	initiator := uuid.NewString()
	eventID := uuid.NewString()

	store := memory.NewRequestsRepo()
	eng := newEngine(store, snapshotFor(event.Snapshot{
		ID: eventID, InitiatorID: initiator, State: event.StatePublished,
		ParticipantLimit: 1, RequestModeration: false,
	}), &fakeUsers{})

	winner := uuid.NewString()
	if _, err := eng.CreateRequest(context.Background(), winner, eventID); err != nil {
		t.Fatalf("first create: %v", err)
	}

	loser := uuid.NewString()
	_, err := eng.CreateRequest(context.Background(), loser, eventID)
	if !errors.Is(err, request.ErrCapacityFull) {
		t.Fatalf("got %v, want ErrCapacityFull", err)
	}

	reqs, err := store.ListByEvent(context.Background(), eventID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(reqs) != 1 {
		t.Fatalf("rejected create left a row behind: %d rows", len(reqs))
	}

	// retry after a seat frees up is not possible here (cancel of confirmed
	// is forbidden) but the loser must at least be able to retry cleanly
	_, err = eng.CreateRequest(context.Background(), loser, eventID)
	if !errors.Is(err, request.ErrCapacityFull) {
		t.Fatalf("retry after rejection: got %v, want ErrCapacityFull", err)
	}
}

func TestCreateRequestConcurrentNeverOversubscribes(t *testing.T) {
	initiator := uuid.NewString()
	eventID := uuid.NewString()
	const limit = 3

	store := memory.NewRequestsRepo()
	eng := newEngine(store, snapshotFor(event.Snapshot{
		ID: eventID, InitiatorID: initiator, State: event.StatePublished,
		ParticipantLimit: limit, RequestModeration: false,
	}), &fakeUsers{})

	const attempts = 12

	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = eng.CreateRequest(context.Background(), uuid.NewString(), eventID)
		}(i)
	}
	wg.Wait()

	confirmed, full := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			confirmed++
		case errors.Is(err, request.ErrCapacityFull):
			full++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if confirmed != limit {
		t.Fatalf("confirmed %d requests, want exactly %d", confirmed, limit)
	}
	if full != attempts-limit {
		t.Fatalf("capacity rejections %d, want %d", full, attempts-limit)
	}

	counts, err := store.ConfirmedCountByEvents(context.Background(), []string{eventID})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[eventID] != limit {
		t.Fatalf("store holds %d confirmed, want %d", counts[eventID], limit)
	}
}

func TestCancelRequest(t *testing.T) {
	initiator := uuid.NewString()
	owner := uuid.NewString()
	eventID := uuid.NewString()

	ev := event.Snapshot{
		ID: eventID, InitiatorID: initiator, State: event.StatePublished,
		ParticipantLimit: 5, RequestModeration: true,
	}

	t.Run("owner_cancels_pending", func(t *testing.T) {
		store := memory.NewRequestsRepo()
		req := seed(t, store, eventID, owner, request.StatusPending, time.Now().UTC())

		eng := newEngine(store, snapshotFor(ev), &fakeUsers{})

		dto, err := eng.CancelRequest(context.Background(), owner, req.ID)
		if err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if dto.Status != string(request.StatusCanceled) {
			t.Fatalf("got status %s, want CANCELED", dto.Status)
		}
	})

	t.Run("stranger_cannot_cancel", func(t *testing.T) {
		store := memory.NewRequestsRepo()
		req := seed(t, store, eventID, owner, request.StatusPending, time.Now().UTC())

		eng := newEngine(store, snapshotFor(ev), &fakeUsers{})

		_, err := eng.CancelRequest(context.Background(), uuid.NewString(), req.ID)
		if !errors.Is(err, request.ErrNotOwner) {
			t.Fatalf("got %v, want ErrNotOwner", err)
		}
	})

	t.Run("confirmed_request_is_locked_in", func(t *testing.T) {
		store := memory.NewRequestsRepo()
		req := seed(t, store, eventID, owner, request.StatusConfirmed, time.Now().UTC())

		eng := newEngine(store, snapshotFor(ev), &fakeUsers{})

		_, err := eng.CancelRequest(context.Background(), owner, req.ID)
		if !errors.Is(err, request.ErrCancelConfirmed) {
			t.Fatalf("got %v, want ErrCancelConfirmed", err)
		}

		got, err := store.GetByID(context.Background(), req.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Status != request.StatusConfirmed {
			t.Fatalf("status changed to %s", got.Status)
		}
	})

	t.Run("missing_request", func(t *testing.T) {
		store := memory.NewRequestsRepo()
		eng := newEngine(store, snapshotFor(ev), &fakeUsers{})

		_, err := eng.CancelRequest(context.Background(), owner, uuid.NewString())
		if !errors.Is(err, request.ErrNotFound) {
			t.Fatalf("got %v, want ErrNotFound", err)
		}
	})
}

func TestListEventRequests(t *testing.T) {
	initiator := uuid.NewString()
	eventID := uuid.NewString()

	ev := event.Snapshot{
		ID: eventID, InitiatorID: initiator, State: event.StatePublished,
		ParticipantLimit: 5, RequestModeration: true,
	}

	store := memory.NewRequestsRepo()
	base := time.Now().UTC().Truncate(time.Microsecond)
	seed(t, store, eventID, uuid.NewString(), request.StatusPending, base)
	seed(t, store, eventID, uuid.NewString(), request.StatusPending, base.Add(time.Second))

	eng := newEngine(store, snapshotFor(ev), &fakeUsers{})

	dtos, err := eng.ListEventRequests(context.Background(), initiator, eventID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(dtos) != 2 {
		t.Fatalf("got %d requests, want 2", len(dtos))
	}

	// a non-initiator gets not-found, not an empty list
	_, err = eng.ListEventRequests(context.Background(), uuid.NewString(), eventID)
	if !errors.Is(err, admission.ErrNotInitiatorView) {
		t.Fatalf("got %v, want ErrNotInitiatorView", err)
	}
}

func TestApplyBatchDecision(t *testing.T) {
	initiator := uuid.NewString()
	eventID := uuid.NewString()

	published := func(limit int) event.Snapshot {
		return event.Snapshot{
			ID: eventID, InitiatorID: initiator, State: event.StatePublished,
			ParticipantLimit: limit, RequestModeration: true,
		}
	}

	seedPending := func(t *testing.T, store *memory.RequestsRepo, n int) []request.Request {
		t.Helper()
		base := time.Now().UTC().Truncate(time.Microsecond)
		out := make([]request.Request, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, seed(t, store, eventID, uuid.NewString(), request.StatusPending, base.Add(time.Duration(i)*time.Second)))
		}
		return out
	}

	ids := func(reqs []request.Request) []string {
		out := make([]string, 0, len(reqs))
		for _, r := range reqs {
			out = append(out, r.ID)
		}
		return out
	}

	t.Run("non_initiator_conflicts", func(t *testing.T) {
		store := memory.NewRequestsRepo()
		eng := newEngine(store, snapshotFor(published(5)), &fakeUsers{})

		_, err := eng.ApplyBatchDecision(context.Background(), uuid.NewString(), eventID, request.StatusUpdateRequest{
			RequestIDs: []string{uuid.NewString()},
			Status:     "CONFIRMED",
		})
		if !errors.Is(err, admission.ErrNotInitiator) {
			t.Fatalf("got %v, want ErrNotInitiator", err)
		}
	})

	t.Run("invalid_target_statuses", func(t *testing.T) {
		store := memory.NewRequestsRepo()
		eng := newEngine(store, snapshotFor(published(5)), &fakeUsers{})

		for _, status := range []string{"WAITLISTED", "", "PENDING", "CANCELED"} {
			_, err := eng.ApplyBatchDecision(context.Background(), initiator, eventID, request.StatusUpdateRequest{
				RequestIDs: []string{uuid.NewString()},
				Status:     status,
			})
			if !errors.Is(err, admission.ErrInvalidTargetStatus) {
				t.Fatalf("status %q: got %v, want ErrInvalidTargetStatus", status, err)
			}
		}
	})

	t.Run("target_status_is_case_insensitive", func(t *testing.T) {
		store := memory.NewRequestsRepo()
		reqs := seedPending(t, store, 1)
		eng := newEngine(store, snapshotFor(published(5)), &fakeUsers{})

		decision, err := eng.ApplyBatchDecision(context.Background(), initiator, eventID, request.StatusUpdateRequest{
			RequestIDs: ids(reqs),
			Status:     "confirmed",
		})
		if err != nil {
			t.Fatalf("batch: %v", err)
		}
		if len(decision.Confirmed) != 1 {
			t.Fatalf("got %d confirmed, want 1", len(decision.Confirmed))
		}
	})

	t.Run("empty_id_list_is_a_noop", func(t *testing.T) {
		store := memory.NewRequestsRepo()
		eng := newEngine(store, snapshotFor(published(5)), &fakeUsers{})

		decision, err := eng.ApplyBatchDecision(context.Background(), initiator, eventID, request.StatusUpdateRequest{
			RequestIDs: []string{},
			Status:     "REJECTED",
		})
		if err != nil {
			t.Fatalf("batch: %v", err)
		}
		if len(decision.Confirmed) != 0 || len(decision.Rejected) != 0 {
			t.Fatalf("noop produced results: %+v", decision)
		}
		if len(store.Jobs) != 0 {
			t.Fatalf("noop enqueued %d jobs", len(store.Jobs))
		}
	})

	t.Run("reject_all", func(t *testing.T) {
		store := memory.NewRequestsRepo()
		reqs := seedPending(t, store, 3)
		eng := newEngine(store, snapshotFor(published(1)), &fakeUsers{})

		decision, err := eng.ApplyBatchDecision(context.Background(), initiator, eventID, request.StatusUpdateRequest{
			RequestIDs: ids(reqs),
			Status:     "REJECTED",
		})
		if err != nil {
			t.Fatalf("batch: %v", err)
		}
		if len(decision.Rejected) != 3 || len(decision.Confirmed) != 0 {
			t.Fatalf("got %d rejected / %d confirmed", len(decision.Rejected), len(decision.Confirmed))
		}

		// rejection ignores capacity entirely
		if len(store.Jobs) != 3 {
			t.Fatalf("enqueued %d jobs, want 3", len(store.Jobs))
		}
	})

	t.Run("confirm_within_capacity", func(t *testing.T) {
		store := memory.NewRequestsRepo()
		reqs := seedPending(t, store, 2)
		eng := newEngine(store, snapshotFor(published(5)), &fakeUsers{})

		decision, err := eng.ApplyBatchDecision(context.Background(), initiator, eventID, request.StatusUpdateRequest{
			RequestIDs: ids(reqs),
			Status:     "CONFIRMED",
		})
		if err != nil {
			t.Fatalf("batch: %v", err)
		}
		if len(decision.Confirmed) != 2 || len(decision.Rejected) != 0 {
			t.Fatalf("got %d confirmed / %d rejected", len(decision.Confirmed), len(decision.Rejected))
		}
	})

	t.Run("overflow_rejects_the_tail_in_caller_order", func(t *testing.T) {
		store := memory.NewRequestsRepo()
		reqs := seedPending(t, store, 4)
		eng := newEngine(store, snapshotFor(published(2)), &fakeUsers{})

		// caller order deliberately differs from creation order
		order := []string{reqs[2].ID, reqs[0].ID, reqs[3].ID, reqs[1].ID}

		decision, err := eng.ApplyBatchDecision(context.Background(), initiator, eventID, request.StatusUpdateRequest{
			RequestIDs: order,
			Status:     "CONFIRMED",
		})
		if err != nil {
			t.Fatalf("batch: %v", err)
		}

		if len(decision.Confirmed) != 2 || len(decision.Rejected) != 2 {
			t.Fatalf("got %d confirmed / %d rejected", len(decision.Confirmed), len(decision.Rejected))
		}

		if decision.Confirmed[0].ID != order[0] || decision.Confirmed[1].ID != order[1] {
			t.Fatalf("confirmed ids %v do not follow caller order %v", decision.Confirmed, order[:2])
		}
		if decision.Rejected[0].ID != order[2] || decision.Rejected[1].ID != order[3] {
			t.Fatalf("rejected ids %v do not follow caller order %v", decision.Rejected, order[2:])
		}
	})

	t.Run("no_seats_left_conflicts", func(t *testing.T) {
		store := memory.NewRequestsRepo()
		seed(t, store, eventID, uuid.NewString(), request.StatusConfirmed, time.Now().UTC())
		reqs := seedPending(t, store, 2)

		eng := newEngine(store, snapshotFor(published(1)), &fakeUsers{})

		_, err := eng.ApplyBatchDecision(context.Background(), initiator, eventID, request.StatusUpdateRequest{
			RequestIDs: ids(reqs),
			Status:     "CONFIRMED",
		})
		if !errors.Is(err, request.ErrCapacityFull) {
			t.Fatalf("got %v, want ErrCapacityFull", err)
		}
	})

	t.Run("unlimited_event_confirms_everything", func(t *testing.T) {
		store := memory.NewRequestsRepo()
		reqs := seedPending(t, store, 5)
		eng := newEngine(store, snapshotFor(published(0)), &fakeUsers{})

		decision, err := eng.ApplyBatchDecision(context.Background(), initiator, eventID, request.StatusUpdateRequest{
			RequestIDs: ids(reqs),
			Status:     "CONFIRMED",
		})
		if err != nil {
			t.Fatalf("batch: %v", err)
		}
		if len(decision.Confirmed) != 5 {
			t.Fatalf("got %d confirmed, want 5", len(decision.Confirmed))
		}
	})

	t.Run("non_pending_id_fails_whole_batch", func(t *testing.T) {
		store := memory.NewRequestsRepo()
		reqs := seedPending(t, store, 2)
		rejected := seed(t, store, eventID, uuid.NewString(), request.StatusRejected, time.Now().UTC())

		eng := newEngine(store, snapshotFor(published(5)), &fakeUsers{})

		_, err := eng.ApplyBatchDecision(context.Background(), initiator, eventID, request.StatusUpdateRequest{
			RequestIDs: append(ids(reqs), rejected.ID),
			Status:     "CONFIRMED",
		})
		if !errors.Is(err, request.ErrNotPending) {
			t.Fatalf("got %v, want ErrNotPending", err)
		}

		// nothing may have been written
		for _, r := range reqs {
			got, err := store.GetByID(context.Background(), r.ID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.Status != request.StatusPending {
				t.Fatalf("request %s flipped to %s in a failed batch", r.ID, got.Status)
			}
		}
		if len(store.Jobs) != 0 {
			t.Fatalf("failed batch enqueued %d jobs", len(store.Jobs))
		}
	})

	t.Run("foreign_event_ids_are_ignored", func(t *testing.T) {
		store := memory.NewRequestsRepo()
		reqs := seedPending(t, store, 1)
		foreign := seed(t, store, uuid.NewString(), uuid.NewString(), request.StatusPending, time.Now().UTC())

		eng := newEngine(store, snapshotFor(published(5)), &fakeUsers{})

		decision, err := eng.ApplyBatchDecision(context.Background(), initiator, eventID, request.StatusUpdateRequest{
			RequestIDs: []string{foreign.ID, reqs[0].ID},
			Status:     "CONFIRMED",
		})
		if err != nil {
			t.Fatalf("batch: %v", err)
		}
		if len(decision.Confirmed) != 1 || decision.Confirmed[0].ID != reqs[0].ID {
			t.Fatalf("foreign id leaked into decision: %+v", decision)
		}

		got, err := store.GetByID(context.Background(), foreign.ID)
		if err != nil {
			t.Fatalf("get foreign: %v", err)
		}
		if got.Status != request.StatusPending {
			t.Fatalf("foreign request mutated to %s", got.Status)
		}
	})

	t.Run("decisions_enqueue_notification_jobs", func(t *testing.T) {
		store := memory.NewRequestsRepo()
		reqs := seedPending(t, store, 3)
		eng := newEngine(store, snapshotFor(published(2)), &fakeUsers{})

		_, err := eng.ApplyBatchDecision(context.Background(), initiator, eventID, request.StatusUpdateRequest{
			RequestIDs: ids(reqs),
			Status:     "CONFIRMED",
		})
		if err != nil {
			t.Fatalf("batch: %v", err)
		}

		// 2 confirmations + 1 overflow rejection
		if len(store.Jobs) != 3 {
			t.Fatalf("enqueued %d jobs, want 3", len(store.Jobs))
		}
		for _, j := range store.Jobs {
			if j.IdempotencyKey == nil || *j.IdempotencyKey == "" {
				t.Fatalf("job without idempotency key: %+v", j)
			}
		}
	})
}

func TestConfirmedCounts(t *testing.T) {
	eventA := uuid.NewString()
	eventB := uuid.NewString()
	eventEmpty := uuid.NewString()

	store := memory.NewRequestsRepo()
	now := time.Now().UTC()
	seed(t, store, eventA, uuid.NewString(), request.StatusConfirmed, now)
	seed(t, store, eventA, uuid.NewString(), request.StatusConfirmed, now)
	seed(t, store, eventA, uuid.NewString(), request.StatusPending, now)
	seed(t, store, eventB, uuid.NewString(), request.StatusConfirmed, now)

	eng := newEngine(store, &fakeEvents{}, &fakeUsers{})

	counts, err := eng.ConfirmedCounts(context.Background(), []string{eventA, eventB, eventEmpty})
	if err != nil {
		t.Fatalf("counts: %v", err)
	}

	want := map[string]int{eventA: 2, eventB: 1, eventEmpty: 0}
	for id, n := range want {
		if counts[id] != n {
			t.Fatalf("event %s: got %d, want %d", id, counts[id], n)
		}
	}
}

func TestHasConfirmedRequest(t *testing.T) {
	eventID := uuid.NewString()
	confirmedUser := uuid.NewString()
	pendingUser := uuid.NewString()

	store := memory.NewRequestsRepo()
	now := time.Now().UTC()
	seed(t, store, eventID, confirmedUser, request.StatusConfirmed, now)
	seed(t, store, eventID, pendingUser, request.StatusPending, now)

	eng := newEngine(store, &fakeEvents{}, &fakeUsers{})

	ok, err := eng.HasConfirmedRequest(context.Background(), confirmedUser, eventID)
	if err != nil || !ok {
		t.Fatalf("confirmed user: got (%v, %v), want (true, nil)", ok, err)
	}

	ok, err = eng.HasConfirmedRequest(context.Background(), pendingUser, eventID)
	if err != nil || ok {
		t.Fatalf("pending user: got (%v, %v), want (false, nil)", ok, err)
	}

	ok, err = eng.HasConfirmedRequest(context.Background(), uuid.NewString(), eventID)
	if err != nil || ok {
		t.Fatalf("stranger: got (%v, %v), want (false, nil)", ok, err)
	}
}
