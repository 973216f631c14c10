package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/whatsflow/internal/domain/booking"
	"github.com/geocoder89/whatsflow/internal/domain/bookingservice"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BookingsRepo struct {
	pool *pgxpool.Pool
}

func NewBookingsRepo(pool *pgxpool.Pool) *BookingsRepo {
	return &BookingsRepo{pool: pool}
}

const bookingColumns = `id, company_id, external_booking_id, client_id, external_client_id,
	staff_id, staff_name, starts_at, ends_at, duration_sec, comment, short_link,
	confirmed, attendance, is_deleted, total_cost, last_change_at, raw`

func scanBooking(row pgx.Row) (booking.Booking, error) {
	var b booking.Booking
	err := row.Scan(
		&b.ID, &b.CompanyID, &b.ExternalBookingID, &b.ClientID, &b.ExternalClientID,
		&b.StaffID, &b.StaffName, &b.StartsAt, &b.EndsAt, &b.DurationSec, &b.Comment, &b.ShortLink,
		&b.Confirmed, &b.Attendance, &b.IsDeleted, &b.TotalCost, &b.LastChangeAt, &b.Raw,
	)
	return b, err
}

// UpsertTx upserts a booking keyed on (companyId, externalBookingId).
func (r *BookingsRepo) UpsertTx(ctx context.Context, tx pgx.Tx, req booking.UpsertRequest) (booking.Booking, error) {
	b, err := scanBooking(tx.QueryRow(ctx, `
		INSERT INTO bookings(
			company_id, external_booking_id, client_id, external_client_id,
			staff_id, staff_name, starts_at, ends_at, duration_sec, comment, short_link,
			confirmed, attendance, is_deleted, total_cost, last_change_at, raw
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (company_id, external_booking_id) DO UPDATE SET
			client_id = EXCLUDED.client_id,
			external_client_id = EXCLUDED.external_client_id,
			staff_id = EXCLUDED.staff_id,
			staff_name = EXCLUDED.staff_name,
			starts_at = EXCLUDED.starts_at,
			ends_at = EXCLUDED.ends_at,
			duration_sec = EXCLUDED.duration_sec,
			comment = EXCLUDED.comment,
			short_link = EXCLUDED.short_link,
			confirmed = EXCLUDED.confirmed,
			attendance = EXCLUDED.attendance,
			is_deleted = EXCLUDED.is_deleted,
			total_cost = EXCLUDED.total_cost,
			last_change_at = EXCLUDED.last_change_at,
			raw = EXCLUDED.raw
		RETURNING `+bookingColumns,
		req.CompanyID, req.ExternalBookingID, req.ClientID, req.ExternalClientID,
		req.StaffID, req.StaffName, req.StartsAt, req.EndsAt, req.DurationSec, req.Comment, req.ShortLink,
		req.Confirmed, req.Attendance, req.IsDeleted, req.TotalCost, req.LastChangeAt, req.Raw,
	))
	if err != nil {
		return booking.Booking{}, err
	}
	return b, nil
}

func (r *BookingsRepo) GetByID(ctx context.Context, id int64) (booking.Booking, error) {
	b, err := scanBooking(r.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return booking.Booking{}, booking.ErrNotFound
		}
		return booking.Booking{}, err
	}
	return b, nil
}

func (r *BookingsRepo) GetByIDTx(ctx context.Context, tx pgx.Tx, id int64) (booking.Booking, error) {
	b, err := scanBooking(tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return booking.Booking{}, booking.ErrNotFound
		}
		return booking.Booking{}, err
	}
	return b, nil
}

// ReplaceServicesTx deletes and reinserts the booking's service lines.
func (r *BookingsRepo) ReplaceServicesTx(ctx context.Context, tx pgx.Tx, bookingID int64, services []bookingservice.BookingService) error {
	if _, err := tx.Exec(ctx, `DELETE FROM booking_services WHERE booking_id = $1`, bookingID); err != nil {
		return err
	}

	for _, s := range services {
		if _, err := tx.Exec(ctx, `
			INSERT INTO booking_services(booking_id, service_id, title, amount, cost_to_pay, raw)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, bookingID, s.ServiceID, s.Title, s.Amount, s.CostToPay, s.Raw); err != nil {
			return err
		}
	}
	return nil
}

func (r *BookingsRepo) ListServicesTx(ctx context.Context, tx pgx.Tx, bookingID int64) ([]bookingservice.BookingService, error) {
	rows, err := tx.Query(ctx, `
		SELECT booking_id, service_id, title, amount, cost_to_pay, raw
		FROM booking_services WHERE booking_id = $1 ORDER BY service_id ASC
	`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []bookingservice.BookingService
	for rows.Next() {
		var s bookingservice.BookingService
		if err := rows.Scan(&s.BookingID, &s.ServiceID, &s.Title, &s.Amount, &s.CostToPay, &s.Raw); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *BookingsRepo) ListServices(ctx context.Context, bookingID int64) ([]bookingservice.BookingService, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT booking_id, service_id, title, amount, cost_to_pay, raw
		FROM booking_services WHERE booking_id = $1 ORDER BY service_id ASC
	`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []bookingservice.BookingService
	for rows.Next() {
		var s bookingservice.BookingService
		if err := rows.Scan(&s.BookingID, &s.ServiceID, &s.Title, &s.Amount, &s.CostToPay, &s.Raw); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// FirstServiceIDTx returns the ascending-smallest serviceId for a booking.
func (r *BookingsRepo) FirstServiceIDTx(ctx context.Context, tx pgx.Tx, bookingID int64) (int64, bool, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		SELECT service_id FROM booking_services WHERE booking_id = $1 ORDER BY service_id ASC LIMIT 1
	`, bookingID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return id, true, nil
}

func (r *BookingsRepo) FirstServiceID(ctx context.Context, bookingID int64) (int64, bool, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		SELECT service_id FROM booking_services WHERE booking_id = $1 ORDER BY service_id ASC LIMIT 1
	`, bookingID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return id, true, nil
}

// HasEarlierBooking reports whether the client has a prior booking in the
// same company strictly before startsAt, excluding the given booking.
func (r *BookingsRepo) HasEarlierBooking(ctx context.Context, companyID, clientID, excludeBookingID int64, startsAt time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM bookings
			WHERE company_id = $1 AND client_id = $2 AND id != $3
			  AND starts_at IS NOT NULL AND starts_at < $4
		)
	`, companyID, clientID, excludeBookingID, startsAt).Scan(&exists)
	return exists, err
}
