// Package crossing settles open invoice balances against a configured
// offset account when no direct cash payment applies, producing a balanced
// journal entry and supporting reversal on cancel.
package crossing

import (
	"time"

	"github.com/alm-erp/alm-erp/internal/ledger"
)

// State is the crossing lifecycle.
type State string

const (
	StateDraft     State = "draft"
	StatePosted    State = "posted"
	StateCancelled State = "cancelled"
)

// Reason configures an offset target: the account crossed against, the
// journal the entry lands in and an optional counterpart partner for
// intercompany cases. Codes are unique per company.
type Reason struct {
	ID                   int64  `json:"id"`
	CompanyID            int64  `json:"company_id"`
	Code                 string `json:"code"`
	Name                 string `json:"name"`
	AccountCode          string `json:"account_code"`
	Journal              string `json:"journal"`
	CounterpartPartnerID int64  `json:"counterpart_partner_id,omitempty"`
	InvertBalanceSign    bool   `json:"invert_balance_sign"`
	Active               bool   `json:"active"`
}

// Invoice is the view of an open document a crossing settles against.
type Invoice struct {
	ID                int64               `json:"id"`
	Number            string              `json:"number"`
	CompanyID         int64               `json:"company_id"`
	PartnerID         int64               `json:"partner_id"`
	PartnerName       string              `json:"partner_name"`
	DocType           ledger.DocumentType `json:"doc_type"`
	Currency          string              `json:"currency"`
	Residual          float64             `json:"residual"`
	ReceivableAccount string              `json:"receivable_account"`
	PayableAccount    string              `json:"payable_account"`
	Posted            bool                `json:"posted"`
}

// Crossing is one offset of an invoice balance.
type Crossing struct {
	ID             int64     `json:"id"`
	Number         string    `json:"number"`
	CompanyID      int64     `json:"company_id"`
	CrossingDate   time.Time `json:"crossing_date"`
	InvoiceID      int64     `json:"invoice_id"`
	InvoiceNumber  string    `json:"invoice_number"`
	PartnerID      int64     `json:"partner_id"`
	ReasonID       int64     `json:"reason_id"`
	Amount         float64   `json:"amount"`
	Currency       string    `json:"currency"`
	Notes          string    `json:"notes,omitempty"`
	State          State     `json:"state"`
	JournalEntryID int64     `json:"journal_entry_id,omitempty"`
	ReversalID     int64     `json:"reversal_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
