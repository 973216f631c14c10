package postgres

import (
	"context"
	"time"

	"github.com/geocoder89/whatsflow/internal/domain/contactratelimit"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ContactRateLimitRepo struct {
	pool *pgxpool.Pool
}

func NewContactRateLimitRepo(pool *pgxpool.Pool) *ContactRateLimitRepo {
	return &ContactRateLimitRepo{pool: pool}
}

// AdmitTx inserts the row if missing, locks it, and reports whether the
// caller is admitted to send now. If admitted, nextAllowedAt is advanced by
// MinSecondsBetweenMessages and the zero time is returned; otherwise the
// time at which the caller may retry is returned.
func (r *ContactRateLimitRepo) AdmitTx(ctx context.Context, tx pgx.Tx, phoneE164 string, now time.Time) (retryAt time.Time, admitted bool, err error) {
	if _, err = tx.Exec(ctx, `
		INSERT INTO contact_rate_limits(phone_e164, next_allowed_at, updated_at)
		VALUES ($1, $2, $2)
		ON CONFLICT (phone_e164) DO NOTHING
	`, phoneE164, now); err != nil {
		return time.Time{}, false, err
	}

	var rl contactratelimit.ContactRateLimit
	if err = tx.QueryRow(ctx, `
		SELECT phone_e164, next_allowed_at, updated_at FROM contact_rate_limits
		WHERE phone_e164 = $1 FOR UPDATE
	`, phoneE164).Scan(&rl.PhoneE164, &rl.NextAllowedAt, &rl.UpdatedAt); err != nil {
		return time.Time{}, false, err
	}

	if rl.NextAllowedAt.After(now) {
		return rl.NextAllowedAt, false, nil
	}

	next := now.Add(contactratelimit.MinSecondsBetweenMessages * time.Second)
	if _, err = tx.Exec(ctx, `
		UPDATE contact_rate_limits SET next_allowed_at = $2, updated_at = $3 WHERE phone_e164 = $1
	`, phoneE164, next, now); err != nil {
		return time.Time{}, false, err
	}

	return time.Time{}, true, nil
}
