package worker

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/requesthub/internal/domain/job"
	"github.com/geocoder89/requesthub/internal/jobs"
	"github.com/geocoder89/requesthub/internal/notifications"
)

// ProcessOne claims and executes a single job. The bool reports whether a
// job was available at all.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)

	j, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			return false, nil
		}

		return false, err
	}

	if w.prom != nil {
		w.prom.JobsInFlight.Inc()
		defer w.prom.JobsInFlight.Dec()
	}

	start := time.Now()
	err = w.execute(ctx, j)

	if err != nil {
		w.handleFailure(ctx, j, err)
		w.observeJob(j.Type, "retry", start)
		return true, nil
	}

	err = w.repo.MarkDone(ctx, j.ID)

	if err != nil {
		_ = w.repo.MarkFailed(ctx, j.ID, "mark_done_failed: "+err.Error())
		w.observeJob(j.Type, "failed", start)
		return true, err
	}

	w.observeJob(j.Type, "done", start)
	return true, nil
}

func (w *Worker) execute(ctx context.Context, j job.Job) error {
	switch j.Type {
	case jobs.TypeRequestStatus:
		payload, err := jobs.DecodeRequestStatus(j)
		if err != nil {
			return err
		}

		return w.notifier.SendRequestStatus(ctx, notifications.SendRequestStatusInput{
			RequestID:   payload.RequestID,
			EventID:     payload.EventID,
			RequesterID: payload.RequesterID,
			Status:      payload.Status,
		})

	default:
		return jobs.ErrInvalidJobType
	}
}

func (w *Worker) handleFailure(ctx context.Context, j job.Job, execErr error) {
	// a malformed payload never gets better; park it immediately
	if errors.Is(execErr, jobs.ErrInvalidJobPayload) || errors.Is(execErr, jobs.ErrInvalidJobType) {
		_ = w.repo.MarkFailed(ctx, j.ID, execErr.Error())
		return
	}

	if j.Attempts+1 >= j.MaxAttempts {
		w.log.Error("job exhausted attempts", "job_id", j.ID, "type", j.Type, "err", execErr)
		_ = w.repo.MarkFailed(ctx, j.ID, execErr.Error())
		return
	}

	runAt := time.Now().UTC().Add(ExponentialBackoff(j.Attempts))

	if err := w.repo.Reschedule(ctx, j.ID, runAt, execErr.Error()); err != nil {
		w.log.Error("job reschedule failed", "job_id", j.ID, "err", err)
	}
}

func (w *Worker) observeJob(jobType, result string, start time.Time) {
	if w.prom == nil {
		return
	}

	w.prom.JobResults.WithLabelValues(jobType, result).Inc()
	w.prom.JobDuration.WithLabelValues(jobType, result).Observe(time.Since(start).Seconds())
}
