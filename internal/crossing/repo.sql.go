package crossing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alm-erp/alm-erp/internal/shared"
)

// Repository provides PostgreSQL backed persistence for crossings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a draft crossing, assigning the next per-company sequence
// number.
func (r *Repository) Create(ctx context.Context, c Crossing) (Crossing, error) {
	var seq int64
	err := r.pool.QueryRow(ctx, `INSERT INTO crossing_sequences (company_id, next_value)
VALUES ($1, 2)
ON CONFLICT (company_id) DO UPDATE SET next_value = crossing_sequences.next_value + 1
RETURNING next_value - 1`, c.CompanyID).Scan(&seq)
	if err != nil {
		return Crossing{}, fmt.Errorf("crossing: next sequence: %w", err)
	}
	c.Number = fmt.Sprintf("CRUCE/%d/%05d", c.CrossingDate.Year(), seq)

	now := time.Now()
	err = r.pool.QueryRow(ctx, `INSERT INTO crossings
(number, company_id, crossing_date, invoice_id, invoice_number, partner_id, reason_id, amount, currency, notes, state, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$12)
RETURNING id`,
		c.Number, c.CompanyID, c.CrossingDate, c.InvoiceID, c.InvoiceNumber, c.PartnerID,
		c.ReasonID, c.Amount, c.Currency, c.Notes, c.State, now).Scan(&c.ID)
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23505" {
			return Crossing{}, fmt.Errorf("crossing number %s already exists: %w", c.Number, shared.ErrDataIntegrity)
		}
		return Crossing{}, err
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	return c, nil
}

// Get loads one crossing.
func (r *Repository) Get(ctx context.Context, id int64) (Crossing, error) {
	var c Crossing
	var journalEntryID, reversalID *int64
	err := r.pool.QueryRow(ctx, `SELECT id, number, company_id, crossing_date, invoice_id, invoice_number, partner_id, reason_id, amount, currency, notes, state, journal_entry_id, reversal_id, created_at, updated_at
FROM crossings WHERE id=$1`, id).Scan(
		&c.ID, &c.Number, &c.CompanyID, &c.CrossingDate, &c.InvoiceID, &c.InvoiceNumber,
		&c.PartnerID, &c.ReasonID, &c.Amount, &c.Currency, &c.Notes, &c.State,
		&journalEntryID, &reversalID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Crossing{}, fmt.Errorf("crossing %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return Crossing{}, err
	}
	if journalEntryID != nil {
		c.JournalEntryID = *journalEntryID
	}
	if reversalID != nil {
		c.ReversalID = *reversalID
	}
	return c, nil
}

// List pages a company's crossings, newest first.
func (r *Repository) List(ctx context.Context, companyID int64, p shared.Pagination) ([]Crossing, error) {
	offset := (p.Page - 1) * p.PerPage
	if offset < 0 {
		offset = 0
	}
	rows, err := r.pool.Query(ctx, `SELECT id, number, company_id, crossing_date, invoice_id, invoice_number, partner_id, reason_id, amount, currency, notes, state, journal_entry_id, reversal_id, created_at, updated_at
FROM crossings WHERE company_id=$1 ORDER BY crossing_date DESC, id DESC LIMIT $2 OFFSET $3`, companyID, p.PerPage, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Crossing
	for rows.Next() {
		var c Crossing
		var journalEntryID, reversalID *int64
		if err := rows.Scan(&c.ID, &c.Number, &c.CompanyID, &c.CrossingDate, &c.InvoiceID, &c.InvoiceNumber,
			&c.PartnerID, &c.ReasonID, &c.Amount, &c.Currency, &c.Notes, &c.State,
			&journalEntryID, &reversalID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		if journalEntryID != nil {
			c.JournalEntryID = *journalEntryID
		}
		if reversalID != nil {
			c.ReversalID = *reversalID
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MarkPosted flips a crossing to posted and links the journal entry.
func (r *Repository) MarkPosted(ctx context.Context, id, journalEntryID int64) error {
	return r.setState(ctx, `UPDATE crossings SET state='posted', journal_entry_id=$2, updated_at=$3 WHERE id=$1`, id, journalEntryID)
}

// MarkCancelled flips a crossing to cancelled and links the reversal.
func (r *Repository) MarkCancelled(ctx context.Context, id, reversalID int64) error {
	return r.setState(ctx, `UPDATE crossings SET state='cancelled', reversal_id=$2, updated_at=$3 WHERE id=$1`, id, reversalID)
}

// MarkDraft returns a cancelled crossing to draft.
func (r *Repository) MarkDraft(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE crossings SET state='draft', updated_at=$2 WHERE id=$1`, id, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("crossing %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *Repository) setState(ctx context.Context, query string, id, linkedID int64) error {
	tag, err := r.pool.Exec(ctx, query, id, linkedID, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("crossing %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// InvoiceRepository resolves invoices from the documents table.
type InvoiceRepository struct {
	pool *pgxpool.Pool
}

// NewInvoiceRepository constructs the invoice view.
func NewInvoiceRepository(pool *pgxpool.Pool) *InvoiceRepository {
	return &InvoiceRepository{pool: pool}
}

// Get loads the invoice view a crossing settles against.
func (r *InvoiceRepository) Get(ctx context.Context, invoiceID int64) (Invoice, error) {
	var inv Invoice
	err := r.pool.QueryRow(ctx, `SELECT id, number, company_id, partner_id, partner_name, doc_type, currency, residual, receivable_account, payable_account, posted
FROM invoices WHERE id=$1`, invoiceID).Scan(
		&inv.ID, &inv.Number, &inv.CompanyID, &inv.PartnerID, &inv.PartnerName,
		&inv.DocType, &inv.Currency, &inv.Residual, &inv.ReceivableAccount,
		&inv.PayableAccount, &inv.Posted)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, fmt.Errorf("invoice %d: %w", invoiceID, shared.ErrNotFound)
	}
	if err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

// GetReason loads an offset reason.
func (r *Repository) GetReason(ctx context.Context, id int64) (Reason, error) {
	var reason Reason
	var counterpart *int64
	err := r.pool.QueryRow(ctx, `SELECT id, company_id, code, name, account_code, journal, counterpart_partner_id, invert_balance_sign, active
FROM crossing_reasons WHERE id=$1`, id).Scan(
		&reason.ID, &reason.CompanyID, &reason.Code, &reason.Name, &reason.AccountCode,
		&reason.Journal, &counterpart, &reason.InvertBalanceSign, &reason.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return Reason{}, fmt.Errorf("crossing reason %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return Reason{}, err
	}
	if counterpart != nil {
		reason.CounterpartPartnerID = *counterpart
	}
	return reason, nil
}
