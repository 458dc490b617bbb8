package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alm-erp/alm-erp/internal/platform/db"
	"github.com/alm-erp/alm-erp/internal/shared"
)

// Repository persists postings in PostgreSQL. It is the default PostingStore
// used by the application wiring.
//
// Schema:
//
//	CREATE TABLE journal_entries (
//	    id          BIGSERIAL PRIMARY KEY,
//	    company_id  BIGINT NOT NULL,
//	    journal     TEXT NOT NULL,
//	    entry_date  DATE NOT NULL,
//	    reference   TEXT NOT NULL,
//	    reversal_of BIGINT REFERENCES journal_entries(id),
//	    created_at  TIMESTAMPTZ NOT NULL
//	);
//
//	CREATE TABLE journal_entry_lines (
//	    id                BIGSERIAL PRIMARY KEY,
//	    entry_id          BIGINT NOT NULL REFERENCES journal_entries(id),
//	    account_code      TEXT NOT NULL,
//	    partner_id        BIGINT,
//	    label             TEXT NOT NULL,
//	    debit             NUMERIC(18,4) NOT NULL,
//	    credit            NUMERIC(18,4) NOT NULL,
//	    currency          TEXT NOT NULL,
//	    debit_alternate   NUMERIC(18,4) NOT NULL,
//	    credit_alternate  NUMERIC(18,4) NOT NULL,
//	    currency_rate_usd NUMERIC(18,8) NOT NULL
//	);
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Post stores a balanced entry and its lines in one transaction.
func (r *Repository) Post(ctx context.Context, companyID int64, journal string, date time.Time, reference string, lines []PostingLine) (Posting, error) {
	if err := CheckBalanced(lines); err != nil {
		return Posting{}, err
	}

	var posting Posting
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		now := time.Now()
		if err := tx.QueryRow(ctx, `INSERT INTO journal_entries (company_id, journal, entry_date, reference, created_at)
VALUES ($1, $2, $3, $4, $5) RETURNING id`, companyID, journal, date, reference, now).Scan(&posting.ID); err != nil {
			return fmt.Errorf("ledger: insert entry: %w", err)
		}
		if err := insertLines(ctx, tx, posting.ID, lines); err != nil {
			return err
		}
		posting.Reference = reference
		posting.Date = date
		return nil
	})
	if err != nil {
		return Posting{}, err
	}
	return posting, nil
}

// Reverse stores a mirror of an existing entry with debits and credits
// swapped, linked back to the original.
func (r *Repository) Reverse(ctx context.Context, companyID int64, postingID int64, date time.Time, reason string) (Posting, error) {
	var posting Posting
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var journal string
		err := tx.QueryRow(ctx, `SELECT journal FROM journal_entries WHERE id=$1 AND company_id=$2`,
			postingID, companyID).Scan(&journal)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("journal entry %d: %w", postingID, shared.ErrNotFound)
		}
		if err != nil {
			return err
		}

		lines, err := loadLines(ctx, tx, postingID)
		if err != nil {
			return err
		}
		for i := range lines {
			lines[i].Debit, lines[i].Credit = lines[i].Credit, lines[i].Debit
			lines[i].DebitAlt, lines[i].CreditAlt = lines[i].CreditAlt, lines[i].DebitAlt
		}

		now := time.Now()
		if err := tx.QueryRow(ctx, `INSERT INTO journal_entries (company_id, journal, entry_date, reference, reversal_of, created_at)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`, companyID, journal, date, reason, postingID, now).Scan(&posting.ID); err != nil {
			return fmt.Errorf("ledger: insert reversal: %w", err)
		}
		if err := insertLines(ctx, tx, posting.ID, lines); err != nil {
			return err
		}
		posting.Reference = reason
		posting.Date = date
		return nil
	})
	if err != nil {
		return Posting{}, err
	}
	return posting, nil
}

// ListReportLines loads valued document lines for the entries report. The
// account_entries view joins document lines with their move metadata and
// partner names for one account type.
func (r *Repository) ListReportLines(ctx context.Context, companyID int64, accountType AccountType, from, to time.Time) ([]ReportLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT line_id, debit, credit, line_date, invoice_date, entry_date, company_currency,
partner_id, partner_name, account_code, reference, debit_alternate, credit_alternate, currency_rate_usd,
move_name, doc_type, direction, residual_usd
FROM account_entries WHERE company_id=$1 AND account_type=$2 AND line_date BETWEEN $3 AND $4
ORDER BY partner_id, line_date, line_id`, companyID, accountType, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []ReportLine
	for rows.Next() {
		var line ReportLine
		var partner *int64
		var direction *string
		if err := rows.Scan(&line.ID, &line.Debit, &line.Credit, &line.Date, &line.InvoiceDate, &line.EntryDate,
			&line.CompanyCurrency, &partner, &line.PartnerName, &line.AccountCode, &line.Reference,
			&line.DebitAlt, &line.CreditAlt, &line.RateUsed,
			&line.MoveName, &line.DocType, &direction, &line.ResidualUSD); err != nil {
			return nil, err
		}
		if partner != nil {
			line.PartnerID = *partner
		}
		if direction != nil {
			line.Direction = PaymentDirection(*direction)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func insertLines(ctx context.Context, tx pgx.Tx, entryID int64, lines []PostingLine) error {
	for _, line := range lines {
		var partner *int64
		if line.PartnerID != 0 {
			partner = &line.PartnerID
		}
		_, err := tx.Exec(ctx, `INSERT INTO journal_entry_lines
(entry_id, account_code, partner_id, label, debit, credit, currency, debit_alternate, credit_alternate, currency_rate_usd)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			entryID, line.AccountCode, partner, line.Label, line.Debit, line.Credit,
			line.Currency, line.DebitAlt, line.CreditAlt, line.RateUsed)
		if err != nil {
			return fmt.Errorf("ledger: insert line %s: %w", line.AccountCode, err)
		}
	}
	return nil
}

func loadLines(ctx context.Context, tx pgx.Tx, entryID int64) ([]PostingLine, error) {
	rows, err := tx.Query(ctx, `SELECT account_code, partner_id, label, debit, credit, currency, debit_alternate, credit_alternate, currency_rate_usd
FROM journal_entry_lines WHERE entry_id=$1 ORDER BY id`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []PostingLine
	for rows.Next() {
		var line PostingLine
		var partner *int64
		if err := rows.Scan(&line.AccountCode, &partner, &line.Label, &line.Debit, &line.Credit,
			&line.Currency, &line.DebitAlt, &line.CreditAlt, &line.RateUsed); err != nil {
			return nil, err
		}
		if partner != nil {
			line.PartnerID = *partner
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
