package crossing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alm-erp/alm-erp/internal/ledger"
	"github.com/alm-erp/alm-erp/internal/shared"
)

// Store persists crossings and their reasons.
type Store interface {
	Create(ctx context.Context, c Crossing) (Crossing, error)
	Get(ctx context.Context, id int64) (Crossing, error)
	List(ctx context.Context, companyID int64, p shared.Pagination) ([]Crossing, error)
	MarkPosted(ctx context.Context, id, journalEntryID int64) error
	MarkCancelled(ctx context.Context, id, reversalID int64) error
	MarkDraft(ctx context.Context, id int64) error
	GetReason(ctx context.Context, id int64) (Reason, error)
}

// InvoiceStore resolves the invoice a crossing settles against.
type InvoiceStore interface {
	Get(ctx context.Context, invoiceID int64) (Invoice, error)
}

// CreateInput is the validated request to draft a crossing.
type CreateInput struct {
	CompanyID    int64     `json:"company_id" validate:"required,gt=0"`
	InvoiceID    int64     `json:"invoice_id" validate:"required,gt=0"`
	ReasonID     int64     `json:"reason_id" validate:"required,gt=0"`
	Amount       float64   `json:"amount" validate:"required,gt=0"`
	CrossingDate time.Time `json:"crossing_date"`
	Notes        string    `json:"notes"`
}

// Service owns the crossing lifecycle.
type Service struct {
	store      Store
	invoices   InvoiceStore
	postings   ledger.PostingStore
	alternates *ledger.AlternateComputer
	logger     *slog.Logger
	now        func() time.Time
}

// NewService builds the crossing service.
func NewService(store Store, invoices InvoiceStore, postings ledger.PostingStore, alternates *ledger.AlternateComputer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		invoices:   invoices,
		postings:   postings,
		alternates: alternates,
		logger:     logger,
		now:        time.Now,
	}
}

// Create drafts a crossing after checking the amount against the invoice
// residual. The store assigns the sequence number.
func (s *Service) Create(ctx context.Context, input CreateInput) (Crossing, error) {
	if input.Amount <= 0 {
		return Crossing{}, fmt.Errorf("crossing amount must be positive: %w", shared.ErrValidation)
	}

	invoice, err := s.invoices.Get(ctx, input.InvoiceID)
	if err != nil {
		return Crossing{}, fmt.Errorf("crossing: load invoice: %w", err)
	}
	if !invoice.Posted {
		return Crossing{}, fmt.Errorf("invoice %s is not posted: %w", invoice.Number, shared.ErrValidation)
	}
	if input.Amount > invoice.Residual+ledger.BalanceTolerance {
		return Crossing{}, fmt.Errorf("amount %.2f exceeds invoice residual %.2f: %w",
			input.Amount, invoice.Residual, shared.ErrValidation)
	}

	reason, err := s.store.GetReason(ctx, input.ReasonID)
	if err != nil {
		return Crossing{}, fmt.Errorf("crossing: load reason: %w", err)
	}
	if !reason.Active {
		return Crossing{}, fmt.Errorf("crossing reason %s is inactive: %w", reason.Code, shared.ErrValidation)
	}

	date := input.CrossingDate
	if date.IsZero() {
		date = s.now()
	}

	created, err := s.store.Create(ctx, Crossing{
		CompanyID:     input.CompanyID,
		CrossingDate:  date,
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.Number,
		PartnerID:     invoice.PartnerID,
		ReasonID:      reason.ID,
		Amount:        input.Amount,
		Currency:      invoice.Currency,
		Notes:         input.Notes,
		State:         StateDraft,
	})
	if err != nil {
		return Crossing{}, err
	}
	s.logger.Info("crossing drafted",
		slog.String("number", created.Number),
		slog.String("invoice", invoice.Number),
		slog.Float64("amount", input.Amount))
	return created, nil
}

// Post confirms a draft crossing: it builds the balanced offset entry,
// values it in USD and hands it to the posting store.
func (s *Service) Post(ctx context.Context, id int64) (Crossing, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return Crossing{}, err
	}
	if c.State != StateDraft {
		return Crossing{}, fmt.Errorf("only draft crossings can be posted, %s is %s: %w", c.Number, c.State, shared.ErrValidation)
	}

	invoice, err := s.invoices.Get(ctx, c.InvoiceID)
	if err != nil {
		return Crossing{}, fmt.Errorf("crossing: load invoice: %w", err)
	}
	reason, err := s.store.GetReason(ctx, c.ReasonID)
	if err != nil {
		return Crossing{}, fmt.Errorf("crossing: load reason: %w", err)
	}

	lines, err := s.buildEntry(ctx, c, invoice, reason)
	if err != nil {
		return Crossing{}, err
	}

	posting, err := s.postings.Post(ctx, c.CompanyID, reason.Journal, c.CrossingDate,
		fmt.Sprintf("%s - %s", c.Number, invoice.Number), lines)
	if err != nil {
		return Crossing{}, fmt.Errorf("crossing: post entry: %w", err)
	}
	if err := s.store.MarkPosted(ctx, c.ID, posting.ID); err != nil {
		return Crossing{}, err
	}

	c.State = StatePosted
	c.JournalEntryID = posting.ID
	s.logger.Info("crossing posted",
		slog.String("number", c.Number),
		slog.Int64("journal_entry", posting.ID))
	return c, nil
}

// buildEntry prepares the balanced pair. Customer documents debit the offset
// account and credit the receivable; vendor documents mirror the sides.
func (s *Service) buildEntry(ctx context.Context, c Crossing, invoice Invoice, reason Reason) ([]ledger.PostingLine, error) {
	label := fmt.Sprintf("%s - %s", reason.Name, invoice.Number)

	counterpartPartner := reason.CounterpartPartnerID
	if counterpartPartner == 0 {
		counterpartPartner = invoice.PartnerID
	}

	var debit, credit ledger.PostingLine
	if invoice.DocType.VendorSide() {
		debit = ledger.PostingLine{AccountCode: invoice.PayableAccount, PartnerID: invoice.PartnerID, Label: label, Debit: c.Amount, Currency: c.Currency}
		credit = ledger.PostingLine{AccountCode: reason.AccountCode, PartnerID: counterpartPartner, Label: label, Credit: c.Amount, Currency: c.Currency}
	} else {
		debit = ledger.PostingLine{AccountCode: reason.AccountCode, PartnerID: counterpartPartner, Label: label, Debit: c.Amount, Currency: c.Currency}
		credit = ledger.PostingLine{AccountCode: invoice.ReceivableAccount, PartnerID: invoice.PartnerID, Label: label, Credit: c.Amount, Currency: c.Currency}
	}

	lines := []ledger.PostingLine{debit, credit}
	for i := range lines {
		monetary := ledger.MonetaryLine{
			Debit:           lines[i].Debit,
			Credit:          lines[i].Credit,
			Date:            c.CrossingDate,
			CompanyCurrency: c.Currency,
		}
		if err := s.alternates.Compute(ctx, &monetary, c.CompanyID); err != nil {
			return nil, fmt.Errorf("crossing: value entry: %w", err)
		}
		lines[i].DebitAlt = monetary.DebitAlt
		lines[i].CreditAlt = monetary.CreditAlt
		lines[i].RateUsed = monetary.RateUsed
	}

	if err := ledger.CheckBalanced(lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// Cancel reverses the journal entry of a posted crossing.
func (s *Service) Cancel(ctx context.Context, id int64) (Crossing, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return Crossing{}, err
	}
	if c.State != StatePosted {
		return Crossing{}, fmt.Errorf("only posted crossings can be cancelled, %s is %s: %w", c.Number, c.State, shared.ErrValidation)
	}

	reversal, err := s.postings.Reverse(ctx, c.CompanyID, c.JournalEntryID, s.now(),
		fmt.Sprintf("Reverso de: %s", c.Number))
	if err != nil {
		return Crossing{}, fmt.Errorf("crossing: reverse entry: %w", err)
	}
	if err := s.store.MarkCancelled(ctx, c.ID, reversal.ID); err != nil {
		return Crossing{}, err
	}

	c.State = StateCancelled
	c.ReversalID = reversal.ID
	s.logger.Info("crossing cancelled",
		slog.String("number", c.Number),
		slog.Int64("reversal", reversal.ID))
	return c, nil
}

// ResetToDraft returns a cancelled crossing to draft for correction.
func (s *Service) ResetToDraft(ctx context.Context, id int64) (Crossing, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return Crossing{}, err
	}
	if c.State != StateCancelled {
		return Crossing{}, fmt.Errorf("only cancelled crossings can return to draft, %s is %s: %w", c.Number, c.State, shared.ErrValidation)
	}
	if err := s.store.MarkDraft(ctx, c.ID); err != nil {
		return Crossing{}, err
	}
	c.State = StateDraft
	return c, nil
}

// Get loads one crossing.
func (s *Service) Get(ctx context.Context, id int64) (Crossing, error) {
	return s.store.Get(ctx, id)
}

// List pages through a company's crossings, newest first.
func (s *Service) List(ctx context.Context, companyID int64, p shared.Pagination) ([]Crossing, error) {
	return s.store.List(ctx, companyID, p)
}
