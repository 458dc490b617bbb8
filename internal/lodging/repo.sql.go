package lodging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alm-erp/alm-erp/internal/shared"
)

// Repository provides PostgreSQL backed persistence for reservations and
// advances.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetReservation loads one reservation.
func (r *Repository) GetReservation(ctx context.Context, id int64) (Reservation, error) {
	var res Reservation
	err := r.pool.QueryRow(ctx, `SELECT id, name, company_id, partner_id, partner_name, room_number, currency, checkin_date, checkout_date, state, amount_total
FROM reservations WHERE id=$1`, id).Scan(
		&res.ID, &res.Name, &res.CompanyID, &res.PartnerID, &res.PartnerName, &res.RoomNumber,
		&res.Currency, &res.CheckinDate, &res.CheckoutDate, &res.State, &res.AmountTotal)
	if errors.Is(err, pgx.ErrNoRows) {
		return Reservation{}, fmt.Errorf("reservation %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return Reservation{}, err
	}
	return res, nil
}

// SetReservationState records a lifecycle transition.
func (r *Repository) SetReservationState(ctx context.Context, id int64, state ReservationState, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE reservations SET state=$2, updated_at=$3 WHERE id=$1`, id, state, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reservation %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// CreateAdvance inserts a registered advance.
func (r *Repository) CreateAdvance(ctx context.Context, advance Advance) (Advance, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO reservation_advances
(reservation_id, company_id, description, amount, currency, payment_date, journal, reference, applied, posting_id, amount_alt, rate_at_payment, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,false,$9,$10,$11,$12)
RETURNING id`,
		advance.ReservationID, advance.CompanyID, advance.Description, advance.Amount, advance.Currency,
		advance.PaymentDate, advance.Journal, advance.Reference, advance.PostingID,
		advance.AmountAlt, advance.RateAtPayment, time.Now()).Scan(&advance.ID)
	if err != nil {
		return Advance{}, err
	}
	return advance, nil
}

// ListAdvances returns a reservation's advances oldest first so checkout
// application consumes them in payment order.
func (r *Repository) ListAdvances(ctx context.Context, reservationID int64) ([]Advance, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, reservation_id, company_id, description, amount, currency, payment_date, journal, reference, applied, applied_at, posting_id, amount_alt, rate_at_payment
FROM reservation_advances WHERE reservation_id=$1 ORDER BY payment_date, id`, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var advances []Advance
	for rows.Next() {
		var advance Advance
		if err := rows.Scan(&advance.ID, &advance.ReservationID, &advance.CompanyID, &advance.Description,
			&advance.Amount, &advance.Currency, &advance.PaymentDate, &advance.Journal, &advance.Reference,
			&advance.Applied, &advance.AppliedAt, &advance.PostingID, &advance.AmountAlt, &advance.RateAtPayment); err != nil {
			return nil, err
		}
		advances = append(advances, advance)
	}
	return advances, rows.Err()
}

// LiquidityAccounts maps payment journal codes to their liquidity account.
// Loaded once at startup to build the service Accounts.
func (r *Repository) LiquidityAccounts(ctx context.Context) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT journal, liquidity_account FROM payment_journals WHERE liquidity_account <> ''`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := make(map[string]string)
	for rows.Next() {
		var journal, account string
		if err := rows.Scan(&journal, &account); err != nil {
			return nil, err
		}
		accounts[journal] = account
	}
	return accounts, rows.Err()
}

// MarkApplied flags an advance as consumed by checkout.
func (r *Repository) MarkApplied(ctx context.Context, advanceID int64, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE reservation_advances SET applied=true, applied_at=$2 WHERE id=$1 AND NOT applied`, advanceID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("advance %d already applied or missing: %w", advanceID, shared.ErrDataIntegrity)
	}
	return nil
}
