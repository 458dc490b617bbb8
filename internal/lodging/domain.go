// Package lodging manages hotel reservation advances: customer prepayments
// held in a liability account until checkout applies them to the stay.
package lodging

import (
	"time"
)

// ReservationState is the reservation lifecycle.
type ReservationState string

const (
	ReservationDraft      ReservationState = "draft"
	ReservationConfirmed  ReservationState = "confirmed"
	ReservationCheckedIn  ReservationState = "checked_in"
	ReservationCheckedOut ReservationState = "checked_out"
	ReservationInvoiced   ReservationState = "invoiced"
	ReservationCancelled  ReservationState = "cancelled"
)

// Reservation is the stay an advance belongs to.
type Reservation struct {
	ID           int64            `json:"id"`
	Name         string           `json:"name"`
	CompanyID    int64            `json:"company_id"`
	PartnerID    int64            `json:"partner_id"`
	PartnerName  string           `json:"partner_name"`
	RoomNumber   string           `json:"room_number"`
	Currency     string           `json:"currency"`
	CheckinDate  time.Time        `json:"checkin_date"`
	CheckoutDate time.Time        `json:"checkout_date"`
	State        ReservationState `json:"state"`
	AmountTotal  float64          `json:"amount_total"`
}

// Advance is one prepayment against a reservation. AmountAlt and RateAtPayment
// freeze the USD valuation at the moment of payment.
type Advance struct {
	ID            int64      `json:"id"`
	ReservationID int64      `json:"reservation_id"`
	CompanyID     int64      `json:"company_id"`
	Description   string     `json:"description"`
	Amount        float64    `json:"amount"`
	Currency      string     `json:"currency"`
	PaymentDate   time.Time  `json:"payment_date"`
	Journal       string     `json:"journal"`
	Reference     string     `json:"reference,omitempty"`
	Applied       bool       `json:"applied"`
	AppliedAt     *time.Time `json:"applied_at,omitempty"`
	PostingID     int64      `json:"posting_id,omitempty"`
	AmountAlt     float64    `json:"amount_alt"`
	RateAtPayment float64    `json:"rate_at_payment"`
}

// AdvanceTotals summarizes a reservation's prepayments.
type AdvanceTotals struct {
	ReservationID int64   `json:"reservation_id"`
	Applied       float64 `json:"applied"`
	Unapplied     float64 `json:"unapplied"`
	AppliedAlt    float64 `json:"applied_alt"`
	UnappliedAlt  float64 `json:"unapplied_alt"`
	Count         int     `json:"count"`
}
