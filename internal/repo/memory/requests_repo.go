package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/geocoder89/requesthub/internal/admission"
	"github.com/geocoder89/requesthub/internal/domain/job"
	"github.com/geocoder89/requesthub/internal/domain/request"
)

// RequestsRepo is the in-memory counterpart of the postgres store. Writes
// are applied directly (no rollback), which is fine because the engine runs
// every precondition before its first write.
type RequestsRepo struct {
	mu    sync.Mutex
	items map[string]request.Request

	// per-event serialization, mirroring the advisory lock in postgres
	locks   map[string]*sync.Mutex
	locksMu sync.Mutex

	// enqueued notification jobs, inspectable from tests
	Jobs []job.CreateRequest
}

func NewRequestsRepo() *RequestsRepo {
	return &RequestsRepo{
		items: make(map[string]request.Request),
		locks: make(map[string]*sync.Mutex),
	}
}

func (r *RequestsRepo) eventLock(eventID string) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()

	m, ok := r.locks[eventID]
	if !ok {
		m = &sync.Mutex{}
		r.locks[eventID] = m
	}
	return m
}

func (r *RequestsRepo) WithEventLock(ctx context.Context, eventID string, fn func(tx admission.TxStore) error) error {
	m := r.eventLock(eventID)
	m.Lock()
	defer m.Unlock()

	return fn(&memTx{repo: r})
}

type memTx struct {
	repo *RequestsRepo
}

func (t *memTx) GetByID(ctx context.Context, id string) (request.Request, error) {
	return t.repo.GetByID(ctx, id)
}

func (t *memTx) ExistsByEventAndRequester(ctx context.Context, eventID, requesterID string) (bool, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()

	for _, req := range t.repo.items {
		if req.EventID == eventID && req.RequesterID == requesterID {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) CountConfirmed(ctx context.Context, eventID string) (int, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()

	n := 0
	for _, req := range t.repo.items {
		if req.EventID == eventID && req.Status == request.StatusConfirmed {
			n++
		}
	}
	return n, nil
}

func (t *memTx) Insert(ctx context.Context, req request.Request) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()

	for _, existing := range t.repo.items {
		if existing.EventID == req.EventID && existing.RequesterID == req.RequesterID {
			return request.ErrAlreadyExists
		}
	}

	t.repo.items[req.ID] = req
	return nil
}

func (t *memTx) ListByEventAndIDs(ctx context.Context, eventID string, ids []string) ([]request.Request, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()

	out := make([]request.Request, 0, len(ids))
	for _, id := range ids {
		req, ok := t.repo.items[id]
		if ok && req.EventID == eventID {
			out = append(out, req)
		}
	}
	return out, nil
}

func (t *memTx) UpdateStatuses(ctx context.Context, ids []string, status request.Status) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()

	for _, id := range ids {
		req, ok := t.repo.items[id]
		if !ok {
			return request.ErrNotFound
		}
		req.Status = status
		t.repo.items[id] = req
	}
	return nil
}

func (t *memTx) EnqueueJob(ctx context.Context, req job.CreateRequest) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()

	t.repo.Jobs = append(t.repo.Jobs, req)
	return nil
}

func (r *RequestsRepo) ListByRequester(ctx context.Context, requesterID string) ([]request.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]request.Request, 0)
	for _, req := range r.items {
		if req.RequesterID == requesterID {
			out = append(out, req)
		}
	}
	sortByCreated(out)
	return out, nil
}

func (r *RequestsRepo) ListByEvent(ctx context.Context, eventID string) ([]request.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]request.Request, 0)
	for _, req := range r.items {
		if req.EventID == eventID {
			out = append(out, req)
		}
	}
	sortByCreated(out)
	return out, nil
}

func (r *RequestsRepo) GetByID(ctx context.Context, id string) (request.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.items[id]
	if !ok {
		return request.Request{}, request.ErrNotFound
	}
	return req, nil
}

func (r *RequestsRepo) ConfirmedCountByEvents(ctx context.Context, eventIDs []string) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wanted := make(map[string]bool, len(eventIDs))
	for _, id := range eventIDs {
		wanted[id] = true
	}

	out := make(map[string]int)
	for _, req := range r.items {
		if wanted[req.EventID] && req.Status == request.StatusConfirmed {
			out[req.EventID]++
		}
	}
	return out, nil
}

func (r *RequestsRepo) HasConfirmedRequest(ctx context.Context, requesterID, eventID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, req := range r.items {
		if req.RequesterID == requesterID && req.EventID == eventID && req.Status == request.StatusConfirmed {
			return true, nil
		}
	}
	return false, nil
}

// stable order for callers: creation time then id
func sortByCreated(reqs []request.Request) {
	sort.Slice(reqs, func(i, j int) bool {
		if reqs[i].CreatedAt.Equal(reqs[j].CreatedAt) {
			return reqs[i].ID < reqs[j].ID
		}
		return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
	})
}
