package ledger

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/alm-erp/alm-erp/internal/shared"
)

// BalanceTolerance bounds the acceptable debit/credit mismatch of a posting.
const BalanceTolerance = 0.005

// PostingLine is one entry of a balanced posting handed to the store.
type PostingLine struct {
	AccountCode string  `json:"account_code"`
	PartnerID   int64   `json:"partner_id,omitempty"`
	Label       string  `json:"label"`
	Debit       float64 `json:"debit"`
	Credit      float64 `json:"credit"`
	Currency    string  `json:"currency"`
	DebitAlt    float64 `json:"debit_alternate"`
	CreditAlt   float64 `json:"credit_alternate"`
	RateUsed    float64 `json:"currency_rate_usd"`
}

// Posting identifies an accepted entry in the posting store.
type Posting struct {
	ID        int64     `json:"id"`
	Reference string    `json:"reference"`
	Date      time.Time `json:"date"`
}

// PostingStore accepts balanced line sets and supports reversal. The ledger
// itself lives outside this service; crossing and lodging talk to it through
// this port.
type PostingStore interface {
	Post(ctx context.Context, companyID int64, journal string, date time.Time, reference string, lines []PostingLine) (Posting, error)
	Reverse(ctx context.Context, companyID int64, postingID int64, date time.Time, reason string) (Posting, error)
}

// CheckBalanced validates a candidate posting before it reaches the store.
func CheckBalanced(lines []PostingLine) error {
	if len(lines) == 0 {
		return fmt.Errorf("posting has no lines: %w", shared.ErrValidation)
	}
	var debit, credit float64
	for _, line := range lines {
		if line.Debit < 0 || line.Credit < 0 {
			return fmt.Errorf("negative amount on account %s: %w", line.AccountCode, shared.ErrValidation)
		}
		debit += line.Debit
		credit += line.Credit
	}
	if math.Abs(debit-credit) > BalanceTolerance {
		return fmt.Errorf("posting unbalanced: debit %.4f credit %.4f: %w", debit, credit, shared.ErrValidation)
	}
	return nil
}
