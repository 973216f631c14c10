package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geocoder89/whatsflow/internal/domain/job"
	"github.com/geocoder89/whatsflow/internal/observability"
	"github.com/geocoder89/whatsflow/internal/utils"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type JobsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewJobsRepo(pool *pgxpool.Pool, prom *observability.Prom) *JobsRepo {
	return &JobsRepo{pool: pool, prom: prom}
}

func (r *JobsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const jobColumns = `id, company_id, booking_id, client_id, job_type, dedupe_key, run_at,
	status, attempts, max_attempts, locked_at, last_error, payload, created_at, updated_at`

func scanJob(row pgx.Row) (job.Job, error) {
	var j job.Job
	var jobType, status string
	err := row.Scan(
		&j.ID, &j.CompanyID, &j.BookingID, &j.ClientID, &jobType, &j.DedupeKey, &j.RunAt,
		&status, &j.Attempts, &j.MaxAttempts, &j.LockedAt, &j.LastError, &j.Payload, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return job.Job{}, err
	}
	j.JobType = job.Type(jobType)
	j.Status = job.Status(status)
	return j, nil
}

// EnqueueTx performs the Planner's conditional upsert: insert the job, and
// on a dedupe-key conflict, revive it only if the existing row is canceled.
func (r *JobsRepo) EnqueueTx(ctx context.Context, tx pgx.Tx, req job.EnqueueRequest, now time.Time) (job.Job, error) {
	j := job.New(req, now)
	j.ID = newID()

	op := "jobs.enqueue_tx"
	row := func() pgx.Row {
		return tx.QueryRow(ctx, `
		INSERT INTO jobs(
			id, company_id, booking_id, client_id, job_type, dedupe_key, run_at,
			status, attempts, max_attempts, locked_at, last_error, payload, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (dedupe_key) DO UPDATE SET
			run_at = EXCLUDED.run_at,
			status = 'queued',
			attempts = 0,
			locked_at = NULL,
			last_error = NULL,
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
		WHERE jobs.status = 'canceled'
		RETURNING `+jobColumns,
			j.ID, j.CompanyID, j.BookingID, j.ClientID, string(j.JobType), j.DedupeKey, j.RunAt,
			string(j.Status), j.Attempts, j.MaxAttempts, j.LockedAt, j.LastError, j.Payload, j.CreatedAt, j.UpdatedAt,
		)
	}

	var out job.Job
	var scanErr error
	err := r.observe(op, func() error {
		out, scanErr = scanJob(row())
		if scanErr != nil {
			return scanErr
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// conflict existed and was not canceled: left untouched, fetch it as-is.
			return r.GetByDedupeKeyTx(ctx, tx, j.DedupeKey)
		}
		return job.Job{}, err
	}

	return out, nil
}

func (r *JobsRepo) GetByDedupeKeyTx(ctx context.Context, tx pgx.Tx, dedupeKey string) (job.Job, error) {
	op := "jobs.get_by_dedupe_key_tx"
	var out job.Job
	err := r.observe(op, func() error {
		var scanErr error
		out, scanErr = scanJob(tx.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE dedupe_key = $1`, dedupeKey))
		return scanErr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return job.Job{}, job.ErrNotFound
		}
		return job.Job{}, err
	}
	return out, nil
}

// CancelQueuedTx cancels all queued jobs of the given types for a booking.
func (r *JobsRepo) CancelQueuedTx(ctx context.Context, tx pgx.Tx, bookingID int64, types []job.Type) (int64, error) {
	strTypes := make([]string, len(types))
	for i, t := range types {
		strTypes[i] = string(t)
	}

	op := "jobs.cancel_queued_tx"
	var rows int64
	err := r.observe(op, func() error {
		tag, execErr := tx.Exec(ctx, `
			UPDATE jobs SET status = 'canceled', updated_at = NOW()
			WHERE booking_id = $1 AND job_type = ANY($2) AND status = 'queued'
		`, bookingID, strTypes)
		if execErr != nil {
			return execErr
		}
		rows = tag.RowsAffected()
		return nil
	})
	return rows, err
}

// ClaimNext leases a single due job for processing.
func (r *JobsRepo) ClaimNext(ctx context.Context) (job.Job, error) {
	op := "jobs.claim_next"
	var out job.Job
	err := r.observe(op, func() error {
		var scanErr error
		out, scanErr = scanJob(r.pool.QueryRow(ctx, `
			WITH next AS (
				SELECT id FROM jobs
				WHERE status = 'queued' AND run_at <= NOW()
				ORDER BY run_at ASC
				FOR UPDATE SKIP LOCKED
				LIMIT 1
			)
			UPDATE jobs
			SET status = 'processing', locked_at = NOW(), updated_at = NOW()
			WHERE id = (SELECT id FROM next)
			RETURNING `+jobColumns))
		return scanErr
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return job.Job{}, job.ErrNotFound
		}
		return job.Job{}, err
	}
	return out, nil
}

// LockForProcessingTx re-locks a single already-claimed job row inside its
// own processing transaction; absence of the row is not an error (another
// worker may have already finished it).
func (r *JobsRepo) LockForProcessingTx(ctx context.Context, tx pgx.Tx, id string) (job.Job, bool, error) {
	op := "jobs.lock_for_processing_tx"
	var out job.Job
	var found bool
	err := r.observe(op, func() error {
		var scanErr error
		out, scanErr = scanJob(tx.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 FOR UPDATE SKIP LOCKED`, id))
		if scanErr == nil {
			found = true
			return nil
		}
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil
		}
		return scanErr
	})
	return out, found, err
}

func (r *JobsRepo) MarkDoneTx(ctx context.Context, tx pgx.Tx, id string) error {
	return r.observe("jobs.mark_done_tx", func() error {
		_, err := tx.Exec(ctx, `
			UPDATE jobs SET status = 'done', locked_at = NULL, last_error = NULL, updated_at = NOW()
			WHERE id = $1
		`, id)
		return err
	})
}

func (r *JobsRepo) MarkFailedTx(ctx context.Context, tx pgx.Tx, id, errMsg string) error {
	return r.observe("jobs.mark_failed_tx", func() error {
		_, err := tx.Exec(ctx, `
			UPDATE jobs SET status = 'failed', locked_at = NULL, last_error = $2, updated_at = NOW()
			WHERE id = $1
		`, id, errMsg)
		return err
	})
}

func (r *JobsRepo) MarkCanceledTx(ctx context.Context, tx pgx.Tx, id, errMsg string) error {
	return r.observe("jobs.mark_canceled_tx", func() error {
		_, err := tx.Exec(ctx, `
			UPDATE jobs SET status = 'canceled', locked_at = NULL, last_error = $2, updated_at = NOW()
			WHERE id = $1
		`, id, errMsg)
		return err
	})
}

func (r *JobsRepo) RescheduleTx(ctx context.Context, tx pgx.Tx, id string, runAt time.Time, errMsg *string, incrementAttempts bool) error {
	return r.observe("jobs.reschedule_tx", func() error {
		if incrementAttempts {
			_, err := tx.Exec(ctx, `
				UPDATE jobs SET status = 'queued', attempts = attempts + 1, run_at = $2,
					locked_at = NULL, last_error = $3, updated_at = NOW()
				WHERE id = $1
			`, id, runAt, errMsg)
			return err
		}
		_, err := tx.Exec(ctx, `
			UPDATE jobs SET status = 'queued', run_at = $2,
				locked_at = NULL, last_error = $3, updated_at = NOW()
			WHERE id = $1
		`, id, runAt, errMsg)
		return err
	})
}

func (r *JobsRepo) IncrementAttemptsTx(ctx context.Context, tx pgx.Tx, id string) error {
	return r.observe("jobs.increment_attempts_tx", func() error {
		_, err := tx.Exec(ctx, `UPDATE jobs SET attempts = attempts + 1, updated_at = NOW() WHERE id = $1`, id)
		return err
	})
}

// RequeueStaleProcessing recovers jobs stuck in processing past lockTTL.
func (r *JobsRepo) RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error) {
	secs := int64(lockTTL.Seconds())
	if secs <= 0 {
		secs = 600
	}

	var rows int64
	err := r.observe("jobs.requeue_stale", func() error {
		tag, execErr := r.pool.Exec(ctx, `
			UPDATE jobs
			SET status = 'queued', locked_at = NULL, run_at = NOW(),
			    last_error = 'Recovered: stale processing job', updated_at = NOW()
			WHERE status = 'processing'
			  AND locked_at IS NOT NULL
			  AND locked_at < NOW() - ($1 * INTERVAL '1 second')
		`, secs)
		if execErr != nil {
			return execErr
		}
		rows = tag.RowsAffected()
		return nil
	})
	return rows, err
}

// RequeueBatch pushes a set of still-processing jobs back to queued, used
// when the worker proactively requeues the remainder of a leased batch.
func (r *JobsRepo) RequeueBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.observe("jobs.requeue_batch", func() error {
		_, err := r.pool.Exec(ctx, `
			UPDATE jobs SET status = 'queued', locked_at = NULL, updated_at = NOW()
			WHERE id = ANY($1) AND status = 'processing'
		`, ids)
		return err
	})
}

func (r *JobsRepo) GetByID(ctx context.Context, id string) (job.Job, error) {
	var out job.Job
	err := r.observe("jobs.admin.get_by_id", func() error {
		var scanErr error
		out, scanErr = scanJob(r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
		return scanErr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return job.Job{}, job.ErrNotFound
		}
		return job.Job{}, err
	}
	return out, nil
}

func (r *JobsRepo) Retry(ctx context.Context, id string) error {
	var status string
	err := r.observe("jobs.admin.retry.check_status", func() error {
		return r.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, id).Scan(&status)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return job.ErrNotFound
		}
		return err
	}

	if status != string(job.StatusFailed) {
		return job.ErrNotFailed
	}

	return r.observe("jobs.admin.retry.requeue", func() error {
		_, err := r.pool.Exec(ctx, `
			UPDATE jobs SET status = 'queued', run_at = NOW(), locked_at = NULL, last_error = NULL, updated_at = NOW()
			WHERE id = $1
		`, id)
		return err
	})
}

func (r *JobsRepo) RetryManyFailed(ctx context.Context, limit int) (int64, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	var tag pgconn.CommandTag
	err := r.observe("jobs.admin.retry_many_failed", func() error {
		var execErr error
		tag, execErr = r.pool.Exec(ctx, `
			WITH picked AS (
				SELECT id FROM jobs WHERE status = 'failed' ORDER BY updated_at DESC LIMIT $1
			)
			UPDATE jobs SET status = 'queued', run_at = NOW(), locked_at = NULL, last_error = NULL, updated_at = NOW()
			WHERE id IN (SELECT id FROM picked)
		`, limit)
		return execErr
	})
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *JobsRepo) ListCursor(ctx context.Context, status *string, limit int, afterUpdatedAt time.Time, afterID string) (items []job.Job, nextCursor *string, hasMore bool, err error) {
	op := "jobs.admin.list_cursor"

	base := `SELECT ` + jobColumns + ` FROM jobs`

	var conds []string
	var args []any
	argsPos := 1

	if status != nil {
		conds = append(conds, fmt.Sprintf("status = $%d", argsPos))
		args = append(args, *status)
		argsPos++
	}

	conds = append(conds, fmt.Sprintf("(updated_at, id) < ($%d, $%d)", argsPos, argsPos+1))
	args = append(args, afterUpdatedAt, afterID)
	argsPos += 2

	q := base
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}

	limitPlusOne := limit + 1
	q += fmt.Sprintf(" ORDER BY updated_at DESC, id DESC LIMIT $%d", argsPos)
	args = append(args, limitPlusOne)

	var rows pgx.Rows
	err = r.observe(op, func() error {
		var qerr error
		rows, qerr = r.pool.Query(ctx, q, args...)
		return qerr
	})
	if err != nil {
		return nil, nil, false, err
	}
	defer rows.Close()

	out := make([]job.Job, 0, limit)
	for rows.Next() {
		j, scanErr := scanJob(rows)
		if scanErr != nil {
			return nil, nil, false, scanErr
		}
		out = append(out, j)
	}
	if rows.Err() != nil {
		return nil, nil, false, rows.Err()
	}

	if len(out) > limit {
		hasMore = true
		out = out[:limit]
		last := out[len(out)-1]
		cur, encErr := utils.EncodeJobCursor(last.UpdatedAt, last.ID)
		if encErr != nil {
			return nil, nil, false, encErr
		}
		nextCursor = &cur
	}

	return out, nextCursor, hasMore, nil
}
