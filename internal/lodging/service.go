package lodging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alm-erp/alm-erp/internal/ledger"
	"github.com/alm-erp/alm-erp/internal/shared"
)

// Store persists reservations and advances.
type Store interface {
	GetReservation(ctx context.Context, id int64) (Reservation, error)
	SetReservationState(ctx context.Context, id int64, state ReservationState, at time.Time) error
	CreateAdvance(ctx context.Context, advance Advance) (Advance, error)
	ListAdvances(ctx context.Context, reservationID int64) ([]Advance, error)
	MarkApplied(ctx context.Context, advanceID int64, at time.Time) error
}

// Accounts carries the posting configuration the advances need. An empty
// advance account is a configuration error at register time, not at startup.
type Accounts struct {
	AdvanceAccount   string
	LiquidityAccount map[string]string
}

// RegisterInput is the validated request to record an advance.
type RegisterInput struct {
	ReservationID int64     `json:"reservation_id" validate:"required,gt=0"`
	Amount        float64   `json:"amount" validate:"required,gt=0"`
	Currency      string    `json:"currency" validate:"required,len=3"`
	Journal       string    `json:"journal" validate:"required"`
	PaymentDate   time.Time `json:"payment_date"`
	Description   string    `json:"description"`
	Reference     string    `json:"reference"`
}

// Service owns advance registration and checkout application.
type Service struct {
	store     Store
	postings  ledger.PostingStore
	converter ledger.CurrencyConverter
	accounts  Accounts
	logger    *slog.Logger
	now       func() time.Time
}

// NewService builds the lodging service.
func NewService(store Store, postings ledger.PostingStore, converter ledger.CurrencyConverter, accounts Accounts, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		postings:  postings,
		converter: converter,
		accounts:  accounts,
		logger:    logger,
		now:       time.Now,
	}
}

// RegisterAdvance records a prepayment and posts the liability entry: debit
// the journal's liquidity account, credit the hotel advance account, both in
// the payment currency with the USD valuation frozen at the payment date.
func (s *Service) RegisterAdvance(ctx context.Context, input RegisterInput) (Advance, error) {
	if input.Amount <= 0 {
		return Advance{}, fmt.Errorf("advance amount must be positive: %w", shared.ErrValidation)
	}
	if s.accounts.AdvanceAccount == "" {
		return Advance{}, fmt.Errorf("hotel advance account not configured: %w", shared.ErrConfiguration)
	}
	liquidity, ok := s.accounts.LiquidityAccount[input.Journal]
	if !ok || liquidity == "" {
		return Advance{}, fmt.Errorf("journal %s has no liquidity account: %w", input.Journal, shared.ErrConfiguration)
	}

	reservation, err := s.store.GetReservation(ctx, input.ReservationID)
	if err != nil {
		return Advance{}, err
	}
	if reservation.State != ReservationConfirmed && reservation.State != ReservationCheckedIn {
		return Advance{}, fmt.Errorf("reservation %s cannot take advances in state %s: %w",
			reservation.Name, reservation.State, shared.ErrValidation)
	}

	paymentDate := input.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = s.now()
	}

	amountAlt, rate, err := s.valueInUSD(ctx, input.Amount, input.Currency, reservation.CompanyID, paymentDate)
	if err != nil {
		return Advance{}, err
	}

	description := input.Description
	if description == "" {
		description = "Anticipo"
	}
	label := fmt.Sprintf("Anticipo - Reserva %s - Hab. %s", reservation.Name, reservation.RoomNumber)
	if input.Reference != "" {
		label += " - Ref: " + input.Reference
	}

	lines := []ledger.PostingLine{
		{AccountCode: liquidity, PartnerID: reservation.PartnerID, Label: label,
			Debit: input.Amount, Currency: input.Currency, DebitAlt: amountAlt, RateUsed: rate},
		{AccountCode: s.accounts.AdvanceAccount, PartnerID: reservation.PartnerID, Label: label,
			Credit: input.Amount, Currency: input.Currency, CreditAlt: amountAlt, RateUsed: rate},
	}
	if err := ledger.CheckBalanced(lines); err != nil {
		return Advance{}, err
	}

	posting, err := s.postings.Post(ctx, reservation.CompanyID, input.Journal, paymentDate, label, lines)
	if err != nil {
		return Advance{}, fmt.Errorf("lodging: post advance: %w", err)
	}

	advance, err := s.store.CreateAdvance(ctx, Advance{
		ReservationID: reservation.ID,
		CompanyID:     reservation.CompanyID,
		Description:   description,
		Amount:        input.Amount,
		Currency:      input.Currency,
		PaymentDate:   paymentDate,
		Journal:       input.Journal,
		Reference:     input.Reference,
		PostingID:     posting.ID,
		AmountAlt:     amountAlt,
		RateAtPayment: rate,
	})
	if err != nil {
		return Advance{}, err
	}

	s.logger.Info("advance registered",
		slog.String("reservation", reservation.Name),
		slog.Float64("amount", input.Amount),
		slog.String("currency", input.Currency))
	return advance, nil
}

func (s *Service) valueInUSD(ctx context.Context, amount float64, currency string, companyID int64, date time.Time) (amountAlt, rate float64, err error) {
	if currency == ledger.USDCode {
		return amount, 1.0, nil
	}
	amountAlt, err = s.converter.Convert(ctx, amount, currency, ledger.USDCode, companyID, date)
	if err != nil {
		return 0, 0, fmt.Errorf("lodging: value advance: %w", err)
	}
	conversionRate, err := s.converter.Rate(ctx, currency, ledger.USDCode, companyID, date)
	if err != nil {
		return 0, 0, fmt.Errorf("lodging: advance rate: %w", err)
	}
	if conversionRate != 0 {
		rate = 1 / conversionRate
	}
	return amountAlt, rate, nil
}

// Confirm moves a draft reservation to confirmed.
func (s *Service) Confirm(ctx context.Context, reservationID int64) error {
	return s.transition(ctx, reservationID, ReservationDraft, ReservationConfirmed)
}

// Checkin registers the guest's arrival.
func (s *Service) Checkin(ctx context.Context, reservationID int64) error {
	return s.transition(ctx, reservationID, ReservationConfirmed, ReservationCheckedIn)
}

func (s *Service) transition(ctx context.Context, reservationID int64, from, to ReservationState) error {
	reservation, err := s.store.GetReservation(ctx, reservationID)
	if err != nil {
		return err
	}
	if reservation.State != from {
		return fmt.Errorf("reservation %s is %s, expected %s: %w",
			reservation.Name, reservation.State, from, shared.ErrValidation)
	}
	return s.store.SetReservationState(ctx, reservationID, to, s.now())
}

// Checkout closes the stay and applies unapplied advances oldest first
// against the reservation total. Advances beyond the total stay unapplied
// for refund or the next stay.
func (s *Service) Checkout(ctx context.Context, reservationID int64) ([]Advance, error) {
	reservation, err := s.store.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if reservation.State != ReservationCheckedIn {
		return nil, fmt.Errorf("reservation %s cannot check out from state %s: %w",
			reservation.Name, reservation.State, shared.ErrValidation)
	}

	applied, err := s.applyAdvances(ctx, reservation)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetReservationState(ctx, reservationID, ReservationCheckedOut, s.now()); err != nil {
		return nil, err
	}

	s.logger.Info("reservation checked out",
		slog.String("reservation", reservation.Name),
		slog.Int("advances_applied", len(applied)))
	return applied, nil
}

func (s *Service) applyAdvances(ctx context.Context, reservation Reservation) ([]Advance, error) {
	advances, err := s.store.ListAdvances(ctx, reservation.ID)
	if err != nil {
		return nil, err
	}

	var applied []Advance
	remaining := reservation.AmountTotal
	at := s.now()
	for _, advance := range advances {
		if advance.Applied {
			remaining -= advance.Amount
			continue
		}
		if remaining <= 0 {
			break
		}
		if err := s.store.MarkApplied(ctx, advance.ID, at); err != nil {
			return applied, err
		}
		advance.Applied = true
		advance.AppliedAt = &at
		applied = append(applied, advance)
		remaining -= advance.Amount
	}
	return applied, nil
}

// Totals reports applied and unapplied advance amounts for a reservation.
func (s *Service) Totals(ctx context.Context, reservationID int64) (AdvanceTotals, error) {
	advances, err := s.store.ListAdvances(ctx, reservationID)
	if err != nil {
		return AdvanceTotals{}, err
	}
	totals := AdvanceTotals{ReservationID: reservationID, Count: len(advances)}
	for _, advance := range advances {
		if advance.Applied {
			totals.Applied += advance.Amount
			totals.AppliedAlt += advance.AmountAlt
		} else {
			totals.Unapplied += advance.Amount
			totals.UnappliedAlt += advance.AmountAlt
		}
	}
	return totals, nil
}

// Advances lists a reservation's advances oldest first.
func (s *Service) Advances(ctx context.Context, reservationID int64) ([]Advance, error) {
	return s.store.ListAdvances(ctx, reservationID)
}
