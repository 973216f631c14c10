package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/whatsflow/internal/domain/sender"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SendersRepo struct {
	pool *pgxpool.Pool
}

func NewSendersRepo(pool *pgxpool.Pool) *SendersRepo {
	return &SendersRepo{pool: pool}
}

// ActiveIDByCode returns the id of the active sender for (companyId,
// senderCode). If absent and senderCode isn't already "default", falls
// back to the company's default sender.
func (r *SendersRepo) ActiveIDByCode(ctx context.Context, companyID int64, senderCode string) (int64, bool, error) {
	id, found, err := r.lookup(ctx, companyID, senderCode)
	if err != nil {
		return 0, false, err
	}
	if found {
		return id, true, nil
	}
	if senderCode == sender.DefaultCode {
		return 0, false, nil
	}
	return r.lookup(ctx, companyID, sender.DefaultCode)
}

func (r *SendersRepo) lookup(ctx context.Context, companyID int64, senderCode string) (int64, bool, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		SELECT id FROM senders WHERE company_id = $1 AND sender_code = $2 AND is_active LIMIT 1
	`, companyID, senderCode).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return id, true, nil
}
