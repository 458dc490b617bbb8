package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/alm-erp/alm-erp/internal/shared"
)

// ReportLine is the input row for the partner entries report: a valued
// monetary line plus its document context.
type ReportLine struct {
	MonetaryLine
	MoveName    string           `json:"move_name"`
	DocType     DocumentType     `json:"doc_type"`
	Direction   PaymentDirection `json:"direction,omitempty"`
	ResidualUSD float64          `json:"residual_usd"`
}

// ReportRow is one rendered row of the entries report.
type ReportRow struct {
	Date           time.Time        `json:"date"`
	MoveName       string           `json:"move_name"`
	Reference      string           `json:"reference,omitempty"`
	DocType        DocumentType     `json:"doc_type"`
	Direction      PaymentDirection `json:"direction,omitempty"`
	DebitAlt       float64          `json:"debit_alternate"`
	CreditAlt      float64          `json:"credit_alternate"`
	SignedUSD      float64          `json:"signed_usd"`
	RunningBalance float64          `json:"running_balance"`
	ResidualUSD    float64          `json:"residual_usd"`
}

// PartnerGroup collects one partner's rows with a running balance.
type PartnerGroup struct {
	PartnerID   int64       `json:"partner_id"`
	PartnerName string      `json:"partner_name"`
	Rows        []ReportRow `json:"rows"`
	Total       float64     `json:"total"`
}

// EntriesReport is the per-partner signed USD report over one account type.
type EntriesReport struct {
	AccountType AccountType    `json:"account_type"`
	Groups      []PartnerGroup `json:"groups"`
	Total       float64        `json:"total"`
}

// BuildEntriesReport groups lines by partner, orders each group by date and
// accumulates signed USD amounts into running balances.
func BuildEntriesReport(accountType AccountType, convention SignConvention, lines []ReportLine) (EntriesReport, error) {
	if !accountType.IsValid() {
		return EntriesReport{}, fmt.Errorf("unknown account type %q: %w", accountType, shared.ErrValidation)
	}

	byPartner := make(map[int64][]ReportLine)
	names := make(map[int64]string)
	for _, line := range lines {
		byPartner[line.PartnerID] = append(byPartner[line.PartnerID], line)
		if line.PartnerName != "" {
			names[line.PartnerID] = line.PartnerName
		}
	}

	report := EntriesReport{AccountType: accountType}
	partnerIDs := make([]int64, 0, len(byPartner))
	for id := range byPartner {
		partnerIDs = append(partnerIDs, id)
	}
	sort.Slice(partnerIDs, func(i, j int) bool {
		if names[partnerIDs[i]] != names[partnerIDs[j]] {
			return names[partnerIDs[i]] < names[partnerIDs[j]]
		}
		return partnerIDs[i] < partnerIDs[j]
	})

	for _, partnerID := range partnerIDs {
		group := PartnerGroup{PartnerID: partnerID, PartnerName: names[partnerID]}
		partnerLines := byPartner[partnerID]
		sort.SliceStable(partnerLines, func(i, j int) bool {
			if !partnerLines[i].Date.Equal(partnerLines[j].Date) {
				return partnerLines[i].Date.Before(partnerLines[j].Date)
			}
			return partnerLines[i].ID < partnerLines[j].ID
		})

		running := 0.0
		for _, line := range partnerLines {
			signed := convention.ResolveSignedAmount(line.BalanceAlt(), accountType, line.DocType, line.Direction)
			running += signed
			group.Rows = append(group.Rows, ReportRow{
				Date:           line.Date,
				MoveName:       line.MoveName,
				Reference:      line.Reference,
				DocType:        line.DocType,
				Direction:      line.Direction,
				DebitAlt:       line.DebitAlt,
				CreditAlt:      line.CreditAlt,
				SignedUSD:      signed,
				RunningBalance: running,
				ResidualUSD:    line.ResidualUSD,
			})
		}
		group.Total = running
		report.Total += running
		report.Groups = append(report.Groups, group)
	}
	return report, nil
}
