package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/requesthub/internal/admission"
	"github.com/geocoder89/requesthub/internal/domain/job"
	"github.com/geocoder89/requesthub/internal/domain/request"
	"github.com/geocoder89/requesthub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type RequestsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
	jobs *JobsRepo
}

func NewRequestsRepo(pool *pgxpool.Pool, prom *observability.Prom, jobs *JobsRepo) *RequestsRepo {
	return &RequestsRepo{
		pool: pool,
		prom: prom,
		jobs: jobs,
	}
}

func (repo *RequestsRepo) observe(op string, fn func() error) error {
	if repo.prom != nil {
		return repo.prom.ObserveDB(op, fn)
	}
	return fn()
}

// WithEventLock serializes capacity-affecting sequences per event.
//
// We do not own the events table (the event service does), so FOR UPDATE on
// the event row is not available here. Instead the
// transaction takes pg_advisory_xact_lock keyed by the event id: any two
// transactions locking the same event id run strictly one after the other,
// and the lock is released on commit/rollback.
func (repo *RequestsRepo) WithEventLock(ctx context.Context, eventID string, fn func(tx admission.TxStore) error) (err error) {
	pgtx, err := repo.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() {
		_ = pgtx.Rollback(ctx)
	}()

	err = repo.observe("requests.event_lock", func() error {
		_, e := pgtx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, eventID)
		return e
	})
	if err != nil {
		return
	}

	err = fn(&requestsTx{tx: pgtx, repo: repo})
	if err != nil {
		return
	}

	err = pgtx.Commit(ctx)
	return
}

// requestsTx is the unit-of-work view over one open transaction.
type requestsTx struct {
	tx   pgx.Tx
	repo *RequestsRepo
}

func (t *requestsTx) GetByID(ctx context.Context, id string) (found request.Request, err error) {
	err = t.repo.observe("requests.tx.get_by_id", func() error {
		return scanRequest(t.tx.QueryRow(ctx, `
			SELECT id, event_id, requester_id, status, created_at
			FROM requests
			WHERE id = $1
		`, id), &found)
	})

	if errors.Is(err, pgx.ErrNoRows) {
		err = request.ErrNotFound
	}
	return
}

func (t *requestsTx) ExistsByEventAndRequester(ctx context.Context, eventID, requesterID string) (exists bool, err error) {
	err = t.repo.observe("requests.tx.exists_check", func() error {
		return t.tx.QueryRow(ctx, `SELECT EXISTS(
			SELECT 1 FROM requests
			WHERE event_id = $1 AND requester_id = $2
		)`, eventID, requesterID).Scan(&exists)
	})
	return
}

func (t *requestsTx) CountConfirmed(ctx context.Context, eventID string) (total int, err error) {
	err = t.repo.observe("requests.tx.count_confirmed", func() error {
		return t.tx.QueryRow(ctx, `
			SELECT COUNT(*) FROM requests
			WHERE event_id = $1 AND status = 'CONFIRMED'
		`, eventID).Scan(&total)
	})
	return
}

func (t *requestsTx) Insert(ctx context.Context, req request.Request) (err error) {
	err = t.repo.observe("requests.tx.insert", func() error {
		_, e := t.tx.Exec(ctx, `
			INSERT INTO requests (id, event_id, requester_id, status, created_at)
			VALUES ($1,$2,$3,$4,$5)
		`, req.ID, req.EventID, req.RequesterID, string(req.Status), req.CreatedAt)
		return e
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "requests_event_requester_uniq" {
			err = request.ErrAlreadyExists
		}
	}
	return
}

// ListByEventAndIDs loads the matching rows and returns them in the order of
// the ids argument; that order is the seat-allocation priority for a partial
// batch confirm. Ids belonging to other events simply do not match.
func (t *requestsTx) ListByEventAndIDs(ctx context.Context, eventID string, ids []string) ([]request.Request, error) {
	var rows pgx.Rows
	err := t.repo.observe("requests.tx.list_by_event_and_ids", func() error {
		var qerr error
		rows, qerr = t.tx.Query(ctx, `
			SELECT id, event_id, requester_id, status, created_at
			FROM requests
			WHERE event_id = $1 AND id = ANY($2)
		`, eventID, ids)
		return qerr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]request.Request, len(ids))

	for rows.Next() {
		var r request.Request
		if scanErr := scanRequestRow(rows, &r); scanErr != nil {
			return nil, scanErr
		}
		byID[r.ID] = r
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	out := make([]request.Request, 0, len(byID))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r)
		}
	}

	return out, nil
}

func (t *requestsTx) UpdateStatuses(ctx context.Context, ids []string, status request.Status) error {
	return t.repo.observe("requests.tx.update_statuses", func() error {
		_, e := t.tx.Exec(ctx, `
			UPDATE requests SET status = $1 WHERE id = ANY($2)
		`, string(status), ids)
		return e
	})
}

func (t *requestsTx) EnqueueJob(ctx context.Context, req job.CreateRequest) error {
	if t.repo.jobs == nil {
		return nil
	}

	_, err := t.repo.jobs.CreateTx(ctx, t.tx, req)

	// same decision was already queued earlier in this tx; fine
	if err != nil && IsUniqueViolation(err) {
		return nil
	}
	return err
}

func (repo *RequestsRepo) ListByRequester(ctx context.Context, requesterID string) ([]request.Request, error) {
	return repo.list(ctx, "requests.list_by_requester", `
		SELECT id, event_id, requester_id, status, created_at
		FROM requests
		WHERE requester_id = $1
		ORDER BY created_at ASC, id ASC
	`, requesterID)
}

func (repo *RequestsRepo) ListByEvent(ctx context.Context, eventID string) ([]request.Request, error) {
	return repo.list(ctx, "requests.list_by_event", `
		SELECT id, event_id, requester_id, status, created_at
		FROM requests
		WHERE event_id = $1
		ORDER BY created_at ASC, id ASC
	`, eventID)
}

func (repo *RequestsRepo) list(ctx context.Context, op, query string, arg any) (reqs []request.Request, err error) {
	var rows pgx.Rows

	err = repo.observe(op, func() error {
		rows, err = repo.pool.Query(ctx, query, arg)
		return err
	})

	if err != nil {
		return
	}

	defer rows.Close()

	reqs = make([]request.Request, 0)

	for rows.Next() {
		var r request.Request

		e := scanRequestRow(rows, &r)

		if e != nil {
			err = e
			return
		}
		reqs = append(reqs, r)
	}

	e := rows.Err()

	if e != nil {
		if repo.prom != nil {
			repo.prom.DbErrorsTotal.WithLabelValues(op, "rows_err").Inc()
		}
		err = e
		return
	}

	return
}

func (repo *RequestsRepo) GetByID(ctx context.Context, id string) (found request.Request, err error) {
	err = repo.observe("requests.get_by_id", func() error {
		return scanRequest(repo.pool.QueryRow(ctx, `
			SELECT id, event_id, requester_id, status, created_at
			FROM requests
			WHERE id = $1
		`, id), &found)
	})

	if errors.Is(err, pgx.ErrNoRows) {
		err = request.ErrNotFound
	}
	return
}

// ConfirmedCountByEvents returns counts only for events that have confirmed
// requests; callers default missing ids to zero.
func (repo *RequestsRepo) ConfirmedCountByEvents(ctx context.Context, eventIDs []string) (map[string]int, error) {
	op := "requests.confirmed_count_by_events"

	var rows pgx.Rows
	err := repo.observe(op, func() error {
		var qerr error
		rows, qerr = repo.pool.Query(ctx, `
			SELECT event_id, COUNT(*)
			FROM requests
			WHERE status = 'CONFIRMED' AND event_id = ANY($1)
			GROUP BY event_id
		`, eventIDs)
		return qerr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int, len(eventIDs))

	for rows.Next() {
		var id string
		var n int
		if scanErr := rows.Scan(&id, &n); scanErr != nil {
			return nil, scanErr
		}
		out[id] = n
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return out, nil
}

func (repo *RequestsRepo) HasConfirmedRequest(ctx context.Context, requesterID, eventID string) (ok bool, err error) {
	err = repo.observe("requests.has_confirmed", func() error {
		return repo.pool.QueryRow(ctx, `SELECT EXISTS(
			SELECT 1 FROM requests
			WHERE requester_id = $1 AND event_id = $2 AND status = 'CONFIRMED'
		)`, requesterID, eventID).Scan(&ok)
	})
	return
}

func scanRequest(row pgx.Row, r *request.Request) error {
	var status string
	err := row.Scan(&r.ID, &r.EventID, &r.RequesterID, &status, &r.CreatedAt)
	r.Status = request.Status(status)
	return err
}

func scanRequestRow(rows pgx.Rows, r *request.Request) error {
	var status string
	err := rows.Scan(&r.ID, &r.EventID, &r.RequesterID, &status, &r.CreatedAt)
	r.Status = request.Status(status)
	return err
}
