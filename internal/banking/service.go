package banking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alm-erp/alm-erp/internal/shared"
)

// API is the slice of the Tesote client the sync needs.
type API interface {
	Transactions(ctx context.Context, accountID string, from, to time.Time) ([]Transaction, error)
}

// JournalStore lists journals enabled for synchronization.
type JournalStore interface {
	ListEnabled(ctx context.Context, companyID int64) ([]Journal, error)
}

// StatementStore persists imported lines.
type StatementStore interface {
	CreateLine(ctx context.Context, line StatementLine) (StatementLine, error)
}

// ImportKeys guards against duplicate imports across runs.
type ImportKeys interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

const importModule = "banking"

// Service pulls bank statements per journal.
type Service struct {
	api        API
	journals   JournalStore
	statements StatementStore
	importKeys ImportKeys
	logger     *slog.Logger
}

// NewService builds the sync service.
func NewService(api API, journals JournalStore, statements StatementStore, importKeys ImportKeys, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		api:        api,
		journals:   journals,
		statements: statements,
		importKeys: importKeys,
		logger:     logger,
	}
}

// SyncRange imports transactions for every enabled journal of a company.
// Re-running the same range never duplicates lines; one journal's failure is
// recorded in the summary without aborting its siblings.
func (s *Service) SyncRange(ctx context.Context, companyID int64, from, to time.Time) (SyncSummary, error) {
	if from.After(to) {
		return SyncSummary{}, fmt.Errorf("sync range inverted, %s after %s: %w",
			from.Format("2006-01-02"), to.Format("2006-01-02"), shared.ErrValidation)
	}

	journals, err := s.journals.ListEnabled(ctx, companyID)
	if err != nil {
		return SyncSummary{}, fmt.Errorf("banking: list journals: %w", err)
	}

	summary := SyncSummary{RunID: uuid.NewString(), From: from, To: to}
	for _, journal := range journals {
		outcome := s.syncJournal(ctx, journal, from, to)
		summary.Outcomes = append(summary.Outcomes, outcome)
	}

	s.logger.Info("bank sync finished",
		slog.String("run_id", summary.RunID),
		slog.Int("succeeded", summary.Succeeded()),
		slog.Int("failed", summary.Failed()))
	return summary, nil
}

func (s *Service) syncJournal(ctx context.Context, journal Journal, from, to time.Time) SyncOutcome {
	outcome := SyncOutcome{JournalID: journal.ID, JournalName: journal.Name}

	if journal.TesoteAccountID == "" {
		outcome.Error = fmt.Errorf("journal %s has no tesote account: %w", journal.Name, shared.ErrConfiguration).Error()
		return outcome
	}

	transactions, fetchErr := s.api.Transactions(ctx, journal.TesoteAccountID, from, to)
	if fetchErr != nil && !errors.Is(fetchErr, shared.ErrDataIntegrity) {
		outcome.Error = fetchErr.Error()
		return outcome
	}
	// A data-integrity stop still delivered partial results; import what we
	// got and report the error alongside.
	if fetchErr != nil {
		outcome.Error = fetchErr.Error()
		s.logger.Warn("bank sync importing partial results",
			slog.String("journal", journal.Name),
			slog.String("error", fetchErr.Error()))
	}

	for _, tx := range transactions {
		created, err := s.importTransaction(ctx, journal, tx)
		if err != nil {
			outcome.Error = err.Error()
			s.logger.Error("bank sync stopped on line",
				slog.String("journal", journal.Name),
				slog.String("transaction", tx.ID),
				slog.Any("error", err))
			return outcome
		}
		if created {
			outcome.Created++
		} else {
			outcome.Skipped++
		}
	}

	s.logger.Info("journal synced",
		slog.String("journal", journal.Name),
		slog.Int("created", outcome.Created),
		slog.Int("skipped", outcome.Skipped))
	return outcome
}

// importTransaction inserts one line unless its import key is already known.
func (s *Service) importTransaction(ctx context.Context, journal Journal, tx Transaction) (bool, error) {
	key := ImportKey(journal.TesoteAccountID, tx.ID)
	if err := s.importKeys.CheckAndInsert(ctx, key, importModule); err != nil {
		if errors.Is(err, shared.ErrDataIntegrity) {
			return false, nil
		}
		return false, err
	}

	date, err := tx.Date()
	if err != nil {
		_ = s.importKeys.Delete(ctx, key)
		return false, fmt.Errorf("%s: %w", err.Error(), shared.ErrValidation)
	}

	line := StatementLine{
		JournalID:   journal.ID,
		ImportKey:   key,
		Date:        date,
		Amount:      tx.Amount(),
		Description: tx.Description,
		Reference:   tx.ID,
	}
	if tx.Counterparty != nil {
		line.PartnerName = tx.Counterparty.Name
	}

	if _, err := s.statements.CreateLine(ctx, line); err != nil {
		_ = s.importKeys.Delete(ctx, key)
		return false, fmt.Errorf("banking: create line: %w", err)
	}
	return true, nil
}
