package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/whatsflow/internal/domain/sender"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ServiceSenderRulesRepo struct {
	pool *pgxpool.Pool
}

func NewServiceSenderRulesRepo(pool *pgxpool.Pool) *ServiceSenderRulesRepo {
	return &ServiceSenderRulesRepo{pool: pool}
}

// CodeForService returns the routing rule's sender code for (companyId,
// serviceId), or the default code if no rule matches.
func (r *ServiceSenderRulesRepo) CodeForService(ctx context.Context, companyID, serviceID int64) (string, error) {
	var code string
	err := r.pool.QueryRow(ctx, `
		SELECT sender_code FROM service_sender_rules WHERE company_id = $1 AND service_id = $2
	`, companyID, serviceID).Scan(&code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sender.DefaultCode, nil
		}
		return "", err
	}
	return code, nil
}
