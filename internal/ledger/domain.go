// Package ledger carries the posting-side financial conventions: signed
// amounts for receivable and payable reporting, USD alternate amounts on
// monetary lines, and the posting store contract consumed by crossing and
// lodging.
package ledger

import (
	"time"
)

// AccountType selects the reporting convention for a partner account.
type AccountType string

const (
	AccountReceivable AccountType = "receivable"
	AccountPayable    AccountType = "payable"
)

// IsValid reports whether the account type is one of the known values.
func (t AccountType) IsValid() bool {
	return t == AccountReceivable || t == AccountPayable
}

// DocumentType classifies the originating document of a posting line.
type DocumentType string

const (
	DocCustomerInvoice DocumentType = "customer_invoice"
	DocCreditNote      DocumentType = "credit_note"
	DocVendorInvoice   DocumentType = "vendor_invoice"
	DocVendorRefund    DocumentType = "vendor_refund"
	DocPayment         DocumentType = "payment"
)

// VendorSide reports whether the document originates on the purchase side.
func (d DocumentType) VendorSide() bool {
	return d == DocVendorInvoice || d == DocVendorRefund
}

// PaymentDirection distinguishes cash received from cash paid out. Zero value
// means the document is not a payment.
type PaymentDirection string

const (
	DirectionNone     PaymentDirection = ""
	DirectionInbound  PaymentDirection = "inbound"
	DirectionOutbound PaymentDirection = "outbound"
)

// MonetaryLine is one side of a financial posting in the company currency,
// plus its stored USD alternates. Alternates are computed once at posting
// time and only recomputed when the effective date changes.
type MonetaryLine struct {
	ID              int64      `json:"id"`
	Debit           float64    `json:"debit"`
	Credit          float64    `json:"credit"`
	Date            time.Time  `json:"date"`
	InvoiceDate     *time.Time `json:"invoice_date,omitempty"`
	EntryDate       *time.Time `json:"entry_date,omitempty"`
	CompanyCurrency string     `json:"company_currency"`
	PartnerID       int64      `json:"partner_id,omitempty"`
	PartnerName     string     `json:"partner_name,omitempty"`
	AccountCode     string     `json:"account_code,omitempty"`
	Reference       string     `json:"reference,omitempty"`

	DebitAlt  float64 `json:"debit_alternate"`
	CreditAlt float64 `json:"credit_alternate"`
	RateUsed  float64 `json:"currency_rate_usd"`
}

// EffectiveDate picks the date alternates are valued at: the invoice date
// wins, then the line date, then the entry date, then the supplied fallback.
func (l MonetaryLine) EffectiveDate(fallback time.Time) time.Time {
	if l.InvoiceDate != nil && !l.InvoiceDate.IsZero() {
		return *l.InvoiceDate
	}
	if !l.Date.IsZero() {
		return l.Date
	}
	if l.EntryDate != nil && !l.EntryDate.IsZero() {
		return *l.EntryDate
	}
	return fallback
}

// BalanceAlt is the USD balance of the line.
func (l MonetaryLine) BalanceAlt() float64 {
	return l.DebitAlt - l.CreditAlt
}
