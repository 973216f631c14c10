package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/whatsflow/internal/domain/client"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ClientsRepo struct {
	pool *pgxpool.Pool
}

func NewClientsRepo(pool *pgxpool.Pool) *ClientsRepo {
	return &ClientsRepo{pool: pool}
}

const clientColumns = `id, company_id, external_client_id, phone_e164, display_name, email, raw`

func scanClient(row pgx.Row) (client.Client, error) {
	var c client.Client
	err := row.Scan(&c.ID, &c.CompanyID, &c.ExternalClientID, &c.PhoneE164, &c.DisplayName, &c.Email, &c.Raw)
	return c, err
}

// UpsertTx upserts a client keyed on (companyId, externalClientId).
func (r *ClientsRepo) UpsertTx(ctx context.Context, tx pgx.Tx, req client.UpsertRequest) (client.Client, error) {
	c, err := scanClient(tx.QueryRow(ctx, `
		INSERT INTO clients(company_id, external_client_id, phone_e164, display_name, email, raw)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (company_id, external_client_id) DO UPDATE SET
			phone_e164 = EXCLUDED.phone_e164,
			display_name = EXCLUDED.display_name,
			email = EXCLUDED.email,
			raw = EXCLUDED.raw
		RETURNING `+clientColumns,
		req.CompanyID, req.ExternalClientID, req.PhoneE164, req.DisplayName, req.Email, req.Raw,
	))
	if err != nil {
		return client.Client{}, err
	}
	return c, nil
}

func (r *ClientsRepo) GetByID(ctx context.Context, id int64) (client.Client, error) {
	c, err := scanClient(r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return client.Client{}, client.ErrNotFound
		}
		return client.Client{}, err
	}
	return c, nil
}

func (r *ClientsRepo) GetByIDTx(ctx context.Context, tx pgx.Tx, id int64) (client.Client, error) {
	c, err := scanClient(tx.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return client.Client{}, client.ErrNotFound
		}
		return client.Client{}, err
	}
	return c, nil
}
