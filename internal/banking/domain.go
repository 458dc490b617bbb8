// Package banking synchronizes bank statement lines from the Tesote API
// into journals, with cursor pagination and duplicate-safe re-runs.
package banking

import (
	"fmt"
	"time"
)

// Account is one bank account as exposed by the external API.
type Account struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Number   string `json:"number"`
	Currency string `json:"currency"`
}

// Counterparty is the optional other side of a transaction.
type Counterparty struct {
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
}

// Transaction is the external wire contract. Unknown fields are tolerated;
// amounts arrive in cents.
type Transaction struct {
	ID              string        `json:"id"`
	AmountCents     int64         `json:"amount_cents"`
	TransactionDate string        `json:"transaction_date"`
	Description     string        `json:"description"`
	Counterparty    *Counterparty `json:"counterparty,omitempty"`
}

// Amount returns the transaction value in currency units.
func (t Transaction) Amount() float64 {
	return float64(t.AmountCents) / 100.0
}

// Date parses the transaction date, tolerating a missing value.
func (t Transaction) Date() (time.Time, error) {
	if t.TransactionDate == "" {
		return time.Time{}, fmt.Errorf("transaction %s has no date", t.ID)
	}
	return time.Parse("2006-01-02", t.TransactionDate)
}

// ImportKey builds the composite external id that makes re-syncs idempotent.
func ImportKey(accountID, txID string) string {
	return fmt.Sprintf("tesote-%s-%s", accountID, txID)
}

// Journal is a bank journal bound to an external account.
type Journal struct {
	ID              int64  `json:"id"`
	CompanyID       int64  `json:"company_id"`
	Name            string `json:"name"`
	Currency        string `json:"currency"`
	TesoteAccountID string `json:"tesote_account_id"`
	SyncEnabled     bool   `json:"sync_enabled"`
}

// StatementLine is one imported bank movement.
type StatementLine struct {
	ID          int64     `json:"id"`
	JournalID   int64     `json:"journal_id"`
	ImportKey   string    `json:"import_key"`
	Date        time.Time `json:"date"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	PartnerName string    `json:"partner_name,omitempty"`
	Reference   string    `json:"reference,omitempty"`
}

// SyncOutcome reports one journal's sync result.
type SyncOutcome struct {
	JournalID   int64  `json:"journal_id"`
	JournalName string `json:"journal_name"`
	Created     int    `json:"created"`
	Skipped     int    `json:"skipped"`
	Error       string `json:"error,omitempty"`
}

// SyncSummary aggregates a multi-journal run. One journal's failure never
// aborts its siblings.
type SyncSummary struct {
	RunID    string        `json:"run_id"`
	From     time.Time     `json:"from"`
	To       time.Time     `json:"to"`
	Outcomes []SyncOutcome `json:"outcomes"`
}

// Succeeded counts journals synced without error.
func (s SyncSummary) Succeeded() int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Error == "" {
			n++
		}
	}
	return n
}

// Failed counts journals whose sync errored.
func (s SyncSummary) Failed() int {
	return len(s.Outcomes) - s.Succeeded()
}
