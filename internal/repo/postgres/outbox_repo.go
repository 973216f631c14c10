package postgres

import (
	"context"

	"github.com/geocoder89/whatsflow/internal/domain/outbox"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OutboxRepo struct {
	pool *pgxpool.Pool
}

func NewOutboxRepo(pool *pgxpool.Pool) *OutboxRepo {
	return &OutboxRepo{pool: pool}
}

func (r *OutboxRepo) CreateTx(ctx context.Context, tx pgx.Tx, req outbox.CreateRequest) (outbox.Outbox, error) {
	var o outbox.Outbox
	var status string
	err := tx.QueryRow(ctx, `
		INSERT INTO outbox(
			company_id, client_id, booking_id, job_id, sender_id, phone_e164,
			template_code, language, body, status, provider_message_id, error,
			scheduled_at, sent_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING id, company_id, client_id, booking_id, job_id, sender_id, phone_e164,
			template_code, language, body, status, provider_message_id, error,
			scheduled_at, sent_at
	`,
		req.CompanyID, req.ClientID, req.BookingID, req.JobID, req.SenderID, req.PhoneE164,
		req.TemplateCode, req.Language, req.Body, string(req.Status), req.ProviderMessageID, req.Error,
		req.ScheduledAt, req.SentAt,
	).Scan(
		&o.ID, &o.CompanyID, &o.ClientID, &o.BookingID, &o.JobID, &o.SenderID, &o.PhoneE164,
		&o.TemplateCode, &o.Language, &o.Body, &status, &o.ProviderMessageID, &o.Error,
		&o.ScheduledAt, &o.SentAt,
	)
	if err != nil {
		return outbox.Outbox{}, err
	}
	o.Status = outbox.Status(status)
	return o, nil
}

// HasSuccessTx checks the exactly-once-business-semantics short-circuit:
// whether a sent|delivered|read outbox row already exists for this job.
func (r *OutboxRepo) HasSuccessTx(ctx context.Context, tx pgx.Tx, jobID string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM outbox WHERE job_id = $1 AND status IN ('sent','delivered','read')
		)
	`, jobID).Scan(&exists)
	return exists, err
}
