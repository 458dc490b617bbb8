package banking

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for journals and
// statement lines.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListEnabled returns the journals flagged for Tesote synchronization.
func (r *Repository) ListEnabled(ctx context.Context, companyID int64) ([]Journal, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, company_id, name, currency, tesote_account_id, sync_enabled
FROM bank_journals WHERE company_id=$1 AND sync_enabled ORDER BY id`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var journals []Journal
	for rows.Next() {
		var j Journal
		var accountID *string
		if err := rows.Scan(&j.ID, &j.CompanyID, &j.Name, &j.Currency, &accountID, &j.SyncEnabled); err != nil {
			return nil, err
		}
		if accountID != nil {
			j.TesoteAccountID = *accountID
		}
		journals = append(journals, j)
	}
	return journals, rows.Err()
}

// CreateLine inserts one imported statement line.
func (r *Repository) CreateLine(ctx context.Context, line StatementLine) (StatementLine, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO bank_statement_lines
(journal_id, import_key, line_date, amount, description, partner_name, reference, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING id`,
		line.JournalID, line.ImportKey, line.Date, line.Amount, line.Description,
		line.PartnerName, line.Reference, time.Now()).Scan(&line.ID)
	if err != nil {
		return StatementLine{}, err
	}
	return line, nil
}
