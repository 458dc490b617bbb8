package banking

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alm-erp/alm-erp/internal/shared"
)

type stubAPI struct {
	transactions map[string][]Transaction
	err          map[string]error
	calls        int
}

func (a *stubAPI) Transactions(_ context.Context, accountID string, _, _ time.Time) ([]Transaction, error) {
	a.calls++
	return a.transactions[accountID], a.err[accountID]
}

type memoryJournals struct {
	journals []Journal
}

func (s *memoryJournals) ListEnabled(_ context.Context, companyID int64) ([]Journal, error) {
	var out []Journal
	for _, j := range s.journals {
		if j.CompanyID == companyID && j.SyncEnabled {
			out = append(out, j)
		}
	}
	return out, nil
}

type memoryStatements struct {
	lines  []StatementLine
	nextID int64
	failOn string
}

func (s *memoryStatements) CreateLine(_ context.Context, line StatementLine) (StatementLine, error) {
	if s.failOn != "" && line.ImportKey == s.failOn {
		return StatementLine{}, fmt.Errorf("insert failed for %s", line.ImportKey)
	}
	s.nextID++
	line.ID = s.nextID
	s.lines = append(s.lines, line)
	return line, nil
}

type memoryImportKeys struct {
	keys map[string]bool
}

func newMemoryImportKeys() *memoryImportKeys {
	return &memoryImportKeys{keys: make(map[string]bool)}
}

func (s *memoryImportKeys) CheckAndInsert(_ context.Context, key, _ string) error {
	if s.keys[key] {
		return fmt.Errorf("import key %s: %w", key, shared.ErrDataIntegrity)
	}
	s.keys[key] = true
	return nil
}

func (s *memoryImportKeys) Delete(_ context.Context, key string) error {
	delete(s.keys, key)
	return nil
}

func tx(id string, cents int64, date string) Transaction {
	return Transaction{ID: id, AmountCents: cents, TransactionDate: date, Description: "wire " + id}
}

func syncFixture() (*Service, *stubAPI, *memoryStatements, *memoryImportKeys) {
	api := &stubAPI{
		transactions: map[string][]Transaction{
			"acc-1": {tx("t1", 1500, "2025-08-01"), tx("t2", -300, "2025-08-02")},
		},
		err: map[string]error{},
	}
	journals := &memoryJournals{journals: []Journal{
		{ID: 1, CompanyID: 1, Name: "Banco Principal", Currency: "VES", TesoteAccountID: "acc-1", SyncEnabled: true},
	}}
	statements := &memoryStatements{}
	keys := newMemoryImportKeys()
	return NewService(api, journals, statements, keys, nil), api, statements, keys
}

var syncFrom = time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC)
var syncTo = time.Date(2025, time.August, 7, 0, 0, 0, 0, time.UTC)

func TestSyncRangeImportsTransactions(t *testing.T) {
	svc, _, statements, _ := syncFixture()

	summary, err := svc.SyncRange(context.Background(), 1, syncFrom, syncTo)
	require.NoError(t, err)
	require.NotEmpty(t, summary.RunID)
	require.Equal(t, 1, summary.Succeeded())
	require.Equal(t, 2, summary.Outcomes[0].Created)

	require.Len(t, statements.lines, 2)
	require.Equal(t, "tesote-acc-1-t1", statements.lines[0].ImportKey)
	require.Equal(t, 15.0, statements.lines[0].Amount)
	require.Equal(t, -3.0, statements.lines[1].Amount)
}

func TestSyncRangeIdempotentRerun(t *testing.T) {
	svc, _, statements, _ := syncFixture()

	_, err := svc.SyncRange(context.Background(), 1, syncFrom, syncTo)
	require.NoError(t, err)

	second, err := svc.SyncRange(context.Background(), 1, syncFrom, syncTo)
	require.NoError(t, err)
	require.Zero(t, second.Outcomes[0].Created)
	require.Equal(t, 2, second.Outcomes[0].Skipped)
	require.Len(t, statements.lines, 2, "re-run must not duplicate lines")
}

func TestSyncRangeRejectsInvertedRange(t *testing.T) {
	svc, api, _, _ := syncFixture()

	_, err := svc.SyncRange(context.Background(), 1, syncTo, syncFrom)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Zero(t, api.calls)
}

func TestSyncRangePartialSuccessAcrossJournals(t *testing.T) {
	svc, api, _, _ := syncFixture()
	journals := svc.journals.(*memoryJournals)
	journals.journals = append(journals.journals,
		Journal{ID: 2, CompanyID: 1, Name: "Banco Roto", TesoteAccountID: "acc-2", SyncEnabled: true})
	api.err["acc-2"] = fmt.Errorf("tesote: /accounts/acc-2/transactions: %w", shared.ErrTransientNetwork)

	summary, err := svc.SyncRange(context.Background(), 1, syncFrom, syncTo)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Succeeded())
	require.Equal(t, 1, summary.Failed())
	require.Equal(t, 2, summary.Outcomes[0].Created)
	require.NotEmpty(t, summary.Outcomes[1].Error)
}

func TestSyncRangeUnconfiguredJournalFailsThatJournalOnly(t *testing.T) {
	svc, _, _, _ := syncFixture()
	journals := svc.journals.(*memoryJournals)
	journals.journals = append(journals.journals,
		Journal{ID: 3, CompanyID: 1, Name: "Sin Cuenta", SyncEnabled: true})

	summary, err := svc.SyncRange(context.Background(), 1, syncFrom, syncTo)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Succeeded())
	require.Contains(t, summary.Outcomes[1].Error, "no tesote account")
}

func TestSyncRangePartialResultsImportedOnDataIntegrityStop(t *testing.T) {
	svc, api, statements, _ := syncFixture()
	api.err["acc-1"] = fmt.Errorf("tesote: pagination cursor stuck: %w", shared.ErrDataIntegrity)

	summary, err := svc.SyncRange(context.Background(), 1, syncFrom, syncTo)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Outcomes[0].Created)
	require.NotEmpty(t, summary.Outcomes[0].Error)
	require.Len(t, statements.lines, 2)
}

func TestSyncRangeRollsBackKeyOnLineFailure(t *testing.T) {
	svc, _, statements, keys := syncFixture()
	statements.failOn = "tesote-acc-1-t2"

	summary, err := svc.SyncRange(context.Background(), 1, syncFrom, syncTo)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Outcomes[0].Created)
	require.NotEmpty(t, summary.Outcomes[0].Error)
	// The failed key is released so a later run can import it.
	require.False(t, keys.keys["tesote-acc-1-t2"])
	require.True(t, keys.keys["tesote-acc-1-t1"])
}
