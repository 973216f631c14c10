package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/whatsflow/internal/domain/template"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TemplatesRepo struct {
	pool *pgxpool.Pool
}

func NewTemplatesRepo(pool *pgxpool.Pool) *TemplatesRepo {
	return &TemplatesRepo{pool: pool}
}

const templateColumns = `id, company_id, code, language, body, is_active, created_at, updated_at`

func scanTemplate(row pgx.Row) (template.Template, error) {
	var t template.Template
	err := row.Scan(&t.ID, &t.CompanyID, &t.Code, &t.Language, &t.Body, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// Resolve implements the Renderer's fallback chain: preferred language,
// then "de", then any active template ordered by id.
func (r *TemplatesRepo) Resolve(ctx context.Context, companyID int64, code, preferredLanguage string) (template.Template, error) {
	t, err := scanTemplate(r.pool.QueryRow(ctx, `
		SELECT `+templateColumns+` FROM templates
		WHERE company_id = $1 AND code = $2 AND is_active AND language = $3
		LIMIT 1
	`, companyID, code, preferredLanguage))
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return template.Template{}, err
	}

	if preferredLanguage != "de" {
		t, err = scanTemplate(r.pool.QueryRow(ctx, `
			SELECT `+templateColumns+` FROM templates
			WHERE company_id = $1 AND code = $2 AND is_active AND language = 'de'
			LIMIT 1
		`, companyID, code))
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return template.Template{}, err
		}
	}

	t, err = scanTemplate(r.pool.QueryRow(ctx, `
		SELECT `+templateColumns+` FROM templates
		WHERE company_id = $1 AND code = $2 AND is_active
		ORDER BY id ASC LIMIT 1
	`, companyID, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return template.Template{}, template.ErrNotFound
		}
		return template.Template{}, err
	}
	return t, nil
}
