package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/whatsflow/internal/domain/event"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EventsRepo struct {
	pool *pgxpool.Pool
}

func NewEventsRepo(pool *pgxpool.Pool) *EventsRepo {
	return &EventsRepo{pool: pool}
}

const eventColumns = `id, fingerprint, received_at, processed_at, status, company_id,
	resource, resource_id, transition, raw_query, raw_headers, raw_payload, error`

func scanEvent(row pgx.Row) (event.Event, error) {
	var e event.Event
	var status string
	var transition *string
	err := row.Scan(
		&e.ID, &e.Fingerprint, &e.ReceivedAt, &e.ProcessedAt, &status, &e.CompanyID,
		&e.Resource, &e.ResourceID, &transition, &e.RawQuery, &e.RawHeaders, &e.RawPayload, &e.Error,
	)
	if err != nil {
		return event.Event{}, err
	}
	e.Status = event.Status(status)
	if transition != nil {
		t := event.Transition(*transition)
		e.Transition = &t
	}
	return e, nil
}

// Create inserts a new event. A unique-violation on fingerprint means the
// caller should treat it as an idempotent accept, not an error surfaced
// to the webhook client.
func (r *EventsRepo) Create(ctx context.Context, req event.CreateRequest) (event.Event, error) {
	e := event.NewFromCreateRequest(req)

	_, err := r.pool.Exec(ctx, `
		INSERT INTO altegio_events(id, fingerprint, received_at, status, company_id,
			resource, resource_id, transition, raw_query, raw_headers, raw_payload)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, e.ID, e.Fingerprint, e.ReceivedAt, string(e.Status), e.CompanyID,
		e.Resource, e.ResourceID, transitionPtr(e.Transition), e.RawQuery, e.RawHeaders, e.RawPayload)

	if err != nil {
		return event.Event{}, err
	}
	return e, nil
}

func transitionPtr(t *event.Transition) *string {
	if t == nil {
		return nil
	}
	s := string(*t)
	return &s
}

// LeaseBatchTx leases up to batchSize received events, marking processing.
func (r *EventsRepo) LeaseBatchTx(ctx context.Context, tx pgx.Tx, batchSize int) ([]event.Event, error) {
	rows, err := tx.Query(ctx, `
		WITH batch AS (
			SELECT id FROM altegio_events
			WHERE status = 'received'
			ORDER BY received_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT $1
		)
		UPDATE altegio_events
		SET status = 'processing'
		WHERE id IN (SELECT id FROM batch)
		RETURNING `+eventColumns, batchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []event.Event
	for rows.Next() {
		e, scanErr := scanEvent(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *EventsRepo) MarkProcessedTx(ctx context.Context, tx pgx.Tx, id string, now time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE altegio_events SET status = 'processed', processed_at = $2, error = NULL WHERE id = $1
	`, id, now)
	return err
}

func (r *EventsRepo) MarkFailedTx(ctx context.Context, tx pgx.Tx, id string, now time.Time, errMsg string) error {
	_, err := tx.Exec(ctx, `
		UPDATE altegio_events SET status = 'failed', processed_at = $2, error = $3 WHERE id = $1
	`, id, now, errMsg)
	return err
}

func (r *EventsRepo) GetByID(ctx context.Context, id string) (event.Event, error) {
	e, err := scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM altegio_events WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return event.Event{}, event.ErrNotFound
		}
		return event.Event{}, err
	}
	return e, nil
}
