package crossing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alm-erp/alm-erp/internal/fx"
	"github.com/alm-erp/alm-erp/internal/ledger"
	"github.com/alm-erp/alm-erp/internal/shared"
)

type memoryStore struct {
	crossings map[int64]Crossing
	reasons   map[int64]Reason
	nextID    int64
	seq       int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{crossings: make(map[int64]Crossing), reasons: make(map[int64]Reason)}
}

func (s *memoryStore) Create(_ context.Context, c Crossing) (Crossing, error) {
	s.nextID++
	s.seq++
	c.ID = s.nextID
	c.Number = fmt.Sprintf("CRUCE/%d/%05d", c.CrossingDate.Year(), s.seq)
	s.crossings[c.ID] = c
	return c, nil
}

func (s *memoryStore) Get(_ context.Context, id int64) (Crossing, error) {
	c, ok := s.crossings[id]
	if !ok {
		return Crossing{}, fmt.Errorf("crossing %d: %w", id, shared.ErrNotFound)
	}
	return c, nil
}

func (s *memoryStore) List(_ context.Context, companyID int64, _ shared.Pagination) ([]Crossing, error) {
	var out []Crossing
	for _, c := range s.crossings {
		if c.CompanyID == companyID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memoryStore) MarkPosted(_ context.Context, id, journalEntryID int64) error {
	c := s.crossings[id]
	c.State = StatePosted
	c.JournalEntryID = journalEntryID
	s.crossings[id] = c
	return nil
}

func (s *memoryStore) MarkCancelled(_ context.Context, id, reversalID int64) error {
	c := s.crossings[id]
	c.State = StateCancelled
	c.ReversalID = reversalID
	s.crossings[id] = c
	return nil
}

func (s *memoryStore) MarkDraft(_ context.Context, id int64) error {
	c := s.crossings[id]
	c.State = StateDraft
	s.crossings[id] = c
	return nil
}

func (s *memoryStore) GetReason(_ context.Context, id int64) (Reason, error) {
	reason, ok := s.reasons[id]
	if !ok {
		return Reason{}, fmt.Errorf("crossing reason %d: %w", id, shared.ErrNotFound)
	}
	return reason, nil
}

type memoryInvoices struct {
	invoices map[int64]Invoice
}

func (s *memoryInvoices) Get(_ context.Context, id int64) (Invoice, error) {
	invoice, ok := s.invoices[id]
	if !ok {
		return Invoice{}, fmt.Errorf("invoice %d: %w", id, shared.ErrNotFound)
	}
	return invoice, nil
}

type recordingPostings struct {
	posted   [][]ledger.PostingLine
	reversed []int64
	nextID   int64
}

func (p *recordingPostings) Post(_ context.Context, _ int64, _ string, date time.Time, ref string, lines []ledger.PostingLine) (ledger.Posting, error) {
	p.nextID++
	p.posted = append(p.posted, lines)
	return ledger.Posting{ID: p.nextID, Reference: ref, Date: date}, nil
}

func (p *recordingPostings) Reverse(_ context.Context, _ int64, postingID int64, date time.Time, _ string) (ledger.Posting, error) {
	p.nextID++
	p.reversed = append(p.reversed, postingID)
	return ledger.Posting{ID: p.nextID, Date: date}, nil
}

func testAlternates() *ledger.AlternateComputer {
	return ledger.NewAlternateComputer(fx.NewConverter(fx.StaticTable{"USD": 1.0 / 36.5}, map[int64]string{1: "VES"}))
}

func fixture() (*Service, *memoryStore, *memoryInvoices, *recordingPostings) {
	store := newMemoryStore()
	store.reasons[7] = Reason{ID: 7, CompanyID: 1, Code: "ANT", Name: "Anticipos", AccountCode: "2101", Journal: "GEN", Active: true}
	invoices := &memoryInvoices{invoices: map[int64]Invoice{
		10: {ID: 10, Number: "INV/001", CompanyID: 1, PartnerID: 3, DocType: ledger.DocCustomerInvoice,
			Currency: "VES", Residual: 500, ReceivableAccount: "1101", PayableAccount: "2201", Posted: true},
		11: {ID: 11, Number: "BILL/001", CompanyID: 1, PartnerID: 4, DocType: ledger.DocVendorInvoice,
			Currency: "VES", Residual: 300, ReceivableAccount: "1101", PayableAccount: "2201", Posted: true},
	}}
	postings := &recordingPostings{}
	svc := NewService(store, invoices, postings, testAlternates(), nil)
	return svc, store, invoices, postings
}

func draftInput(invoiceID int64, amount float64) CreateInput {
	return CreateInput{CompanyID: 1, InvoiceID: invoiceID, ReasonID: 7, Amount: amount,
		CrossingDate: time.Date(2025, time.May, 5, 0, 0, 0, 0, time.UTC)}
}

func TestCreateAssignsSequenceNumber(t *testing.T) {
	svc, _, _, _ := fixture()
	c, err := svc.Create(context.Background(), draftInput(10, 200))
	require.NoError(t, err)
	require.Equal(t, "CRUCE/2025/00001", c.Number)
	require.Equal(t, StateDraft, c.State)
	require.Equal(t, "INV/001", c.InvoiceNumber)
}

func TestCreateRejectsNonPositiveAmount(t *testing.T) {
	svc, _, _, _ := fixture()
	_, err := svc.Create(context.Background(), draftInput(10, 0))
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(context.Background(), draftInput(10, -5))
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateRejectsAmountOverResidual(t *testing.T) {
	svc, _, _, _ := fixture()
	_, err := svc.Create(context.Background(), draftInput(10, 500.01))
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateRejectsInactiveReason(t *testing.T) {
	svc, store, _, _ := fixture()
	store.reasons[7] = Reason{ID: 7, Code: "ANT", AccountCode: "2101", Journal: "GEN", Active: false}
	_, err := svc.Create(context.Background(), draftInput(10, 100))
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestPostCustomerInvoiceDebitsOffsetAccount(t *testing.T) {
	svc, _, _, postings := fixture()
	c, err := svc.Create(context.Background(), draftInput(10, 200))
	require.NoError(t, err)

	posted, err := svc.Post(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, StatePosted, posted.State)
	require.NotZero(t, posted.JournalEntryID)

	require.Len(t, postings.posted, 1)
	lines := postings.posted[0]
	require.Len(t, lines, 2)
	require.Equal(t, "2101", lines[0].AccountCode)
	require.Equal(t, 200.0, lines[0].Debit)
	require.Equal(t, "1101", lines[1].AccountCode)
	require.Equal(t, 200.0, lines[1].Credit)
	require.InDelta(t, 200.0/36.5, lines[0].DebitAlt, 1e-9)
	require.InDelta(t, 36.5, lines[0].RateUsed, 1e-9)
}

func TestPostVendorInvoiceMirrorsSides(t *testing.T) {
	svc, _, _, postings := fixture()
	c, err := svc.Create(context.Background(), draftInput(11, 150))
	require.NoError(t, err)

	_, err = svc.Post(context.Background(), c.ID)
	require.NoError(t, err)

	lines := postings.posted[0]
	require.Equal(t, "2201", lines[0].AccountCode)
	require.Equal(t, 150.0, lines[0].Debit)
	require.Equal(t, "2101", lines[1].AccountCode)
	require.Equal(t, 150.0, lines[1].Credit)
}

func TestPostRequiresDraftState(t *testing.T) {
	svc, _, _, _ := fixture()
	c, err := svc.Create(context.Background(), draftInput(10, 100))
	require.NoError(t, err)

	_, err = svc.Post(context.Background(), c.ID)
	require.NoError(t, err)
	_, err = svc.Post(context.Background(), c.ID)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCancelReversesEntry(t *testing.T) {
	svc, _, _, postings := fixture()
	c, err := svc.Create(context.Background(), draftInput(10, 100))
	require.NoError(t, err)
	posted, err := svc.Post(context.Background(), c.ID)
	require.NoError(t, err)

	cancelled, err := svc.Cancel(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, StateCancelled, cancelled.State)
	require.Equal(t, []int64{posted.JournalEntryID}, postings.reversed)
	require.NotZero(t, cancelled.ReversalID)
}

func TestCancelRequiresPostedState(t *testing.T) {
	svc, _, _, _ := fixture()
	c, err := svc.Create(context.Background(), draftInput(10, 100))
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), c.ID)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestResetToDraftOnlyFromCancelled(t *testing.T) {
	svc, _, _, _ := fixture()
	c, err := svc.Create(context.Background(), draftInput(10, 100))
	require.NoError(t, err)

	_, err = svc.ResetToDraft(context.Background(), c.ID)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Post(context.Background(), c.ID)
	require.NoError(t, err)
	_, err = svc.Cancel(context.Background(), c.ID)
	require.NoError(t, err)

	back, err := svc.ResetToDraft(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, StateDraft, back.State)
}
