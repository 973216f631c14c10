package outboxworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/whatsflow/internal/domain/booking"
	"github.com/geocoder89/whatsflow/internal/domain/client"
	"github.com/geocoder89/whatsflow/internal/domain/job"
	"github.com/geocoder89/whatsflow/internal/domain/outbox"
	"github.com/geocoder89/whatsflow/internal/render"
	"github.com/geocoder89/whatsflow/internal/wasend"
	"github.com/jackc/pgx/v5"
)

// pastRecordGrace is how far in the past startsAt may be before a job of
// any type whose booking has a startsAt is considered stale and canceled
// rather than sent.
const pastRecordGrace = 5 * time.Minute

type stepOutcome int

const (
	outcomeSkippedLocked stepOutcome = iota
	outcomeDone
	outcomeFailed
	outcomeCanceled
	outcomeRequeued
	outcomeTokenExpired
)

// processJob runs the full per-job state machine inside its own
// transaction, guarded by a row lock on the job.
func (w *Worker) processJob(ctx context.Context, jobID string) (stepOutcome, error) {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return outcomeFailed, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	j, found, err := w.jobs.LockForProcessingTx(ctx, tx, jobID)
	if err != nil {
		return outcomeFailed, fmt.Errorf("lock job: %w", err)
	}
	if !found {
		return outcomeSkippedLocked, nil
	}

	now := w.clock.Now()

	hasSuccess, err := w.outbox.HasSuccessTx(ctx, tx, j.ID)
	if err != nil {
		return outcomeFailed, fmt.Errorf("check success short-circuit: %w", err)
	}
	if hasSuccess {
		if err := w.jobs.MarkDoneTx(ctx, tx, j.ID); err != nil {
			return outcomeFailed, err
		}
		return outcomeDone, tx.Commit(ctx)
	}

	if j.Attempts >= j.MaxAttempts {
		if err := w.jobs.MarkFailedTx(ctx, tx, j.ID, "Max attempts reached"); err != nil {
			return outcomeFailed, err
		}
		return outcomeFailed, tx.Commit(ctx)
	}

	var b *booking.Booking
	if j.BookingID != nil {
		loaded, err := w.bookings.GetByIDTx(ctx, tx, *j.BookingID)
		if err != nil && !errors.Is(err, booking.ErrNotFound) {
			return outcomeFailed, fmt.Errorf("load booking: %w", err)
		}
		if err == nil {
			b = &loaded
		}
	}

	if b != nil && b.StartsAt != nil && b.StartsAt.Before(now.Add(-pastRecordGrace)) {
		if err := w.jobs.MarkCanceledTx(ctx, tx, j.ID, "Skipped: record starts_at is in the past"); err != nil {
			return outcomeFailed, err
		}
		return outcomeCanceled, tx.Commit(ctx)
	}

	var c *client.Client
	clientID := j.ClientID
	if clientID == nil && b != nil {
		clientID = b.ClientID
	}
	if clientID != nil {
		loaded, err := w.clients.GetByIDTx(ctx, tx, *clientID)
		if err != nil && !errors.Is(err, client.ErrNotFound) {
			return outcomeFailed, fmt.Errorf("load client: %w", err)
		}
		if err == nil {
			c = &loaded
		}
	}
	if c == nil || c.PhoneE164 == nil || *c.PhoneE164 == "" {
		if err := w.jobs.MarkFailedTx(ctx, tx, j.ID, "No phone_e164"); err != nil {
			return outcomeFailed, err
		}
		return outcomeFailed, tx.Commit(ctx)
	}

	retryAt, admitted, err := w.rateLimit.AdmitTx(ctx, tx, *c.PhoneE164, now)
	if err != nil {
		return outcomeFailed, fmt.Errorf("rate limit admission: %w", err)
	}
	if !admitted {
		if err := w.jobs.RescheduleTx(ctx, tx, j.ID, retryAt, nil, false); err != nil {
			return outcomeFailed, err
		}
		return outcomeRequeued, tx.Commit(ctx)
	}

	templateCode := string(j.JobType)
	language := render.DefaultLanguage
	if company, ok := w.defaultLanguageByCompany[j.CompanyID]; ok {
		language = company
	}

	result, err := w.renderer.Render(ctx, j.CompanyID, templateCode, language, b, c)
	if err != nil {
		msg := "Template render error: " + err.Error()
		if err := w.jobs.MarkFailedTx(ctx, tx, j.ID, msg); err != nil {
			return outcomeFailed, err
		}
		return outcomeFailed, tx.Commit(ctx)
	}

	if err := w.jobs.IncrementAttemptsTx(ctx, tx, j.ID); err != nil {
		return outcomeFailed, err
	}
	attemptNumber := j.Attempts + 1

	messageID, sendErr := w.provider.Send(ctx, result.SenderID, *c.PhoneE164, result.Body)
	if sendErr != nil {
		return w.handleSendFailure(ctx, tx, j, result, *c.PhoneE164, attemptNumber, sendErr)
	}

	jobID := j.ID
	if _, err := w.outbox.CreateTx(ctx, tx, outbox.CreateRequest{
		CompanyID:         j.CompanyID,
		ClientID:          clientID,
		BookingID:         j.BookingID,
		JobID:             &jobID,
		SenderID:          &result.SenderID,
		PhoneE164:         *c.PhoneE164,
		TemplateCode:      templateCode,
		Language:          result.Language,
		Body:              result.Body,
		Status:            outbox.StatusSent,
		ProviderMessageID: &messageID,
		ScheduledAt:       now,
		SentAt:            &now,
	}); err != nil {
		return outcomeFailed, fmt.Errorf("record outbox success: %w", err)
	}
	if err := w.jobs.MarkDoneTx(ctx, tx, j.ID); err != nil {
		return outcomeFailed, err
	}

	return outcomeDone, tx.Commit(ctx)
}

func (w *Worker) handleSendFailure(ctx context.Context, tx pgx.Tx, j job.Job, result render.Result, phoneE164 string, attemptNumber int, sendErr error) (stepOutcome, error) {
	errMsg := sendErr.Error()
	jobID := j.ID
	now := w.clock.Now()
	if _, err := w.outbox.CreateTx(ctx, tx, outbox.CreateRequest{
		CompanyID:    j.CompanyID,
		ClientID:     j.ClientID,
		BookingID:    j.BookingID,
		JobID:        &jobID,
		SenderID:     &result.SenderID,
		PhoneE164:    phoneE164,
		TemplateCode: string(j.JobType),
		Language:     result.Language,
		Body:         result.Body,
		Status:       outbox.StatusFailed,
		Error:        &errMsg,
		ScheduledAt:  now,
	}); err != nil {
		return outcomeFailed, fmt.Errorf("record outbox failure: %w", err)
	}

	if errors.Is(sendErr, wasend.ErrTokenExpired) {
		w.markTokenExpired()
		msg := "Send blocked: " + errMsg
		runAt := w.clock.Now().Add(tokenExpiredRetryDelay)
		if err := w.jobs.RescheduleTx(ctx, tx, j.ID, runAt, &msg, false); err != nil {
			return outcomeFailed, err
		}
		return outcomeTokenExpired, tx.Commit(ctx)
	}

	if attemptNumber >= j.MaxAttempts {
		if err := w.jobs.MarkFailedTx(ctx, tx, j.ID, errMsg); err != nil {
			return outcomeFailed, err
		}
		return outcomeFailed, tx.Commit(ctx)
	}

	runAt := w.clock.Now().Add(RetryDelay(attemptNumber))
	if err := w.jobs.RescheduleTx(ctx, tx, j.ID, runAt, &errMsg, false); err != nil {
		return outcomeFailed, err
	}
	return outcomeRequeued, tx.Commit(ctx)
}
