package ledger

import "math"

// SignConvention controls how a raw USD balance is turned into a signed
// amount where positive means the partner owes more and negative means the
// debt shrank.
//
// InvertVendorDocuments reproduces the established reporting output: after
// the receivable/payable branch, purchase-side documents flip sign once
// more. The flag exists so a deployment can turn the extra inversion off
// without touching the resolver.
type SignConvention struct {
	InvertVendorDocuments bool
}

// DefaultSignConvention matches the historical report output.
func DefaultSignConvention() SignConvention {
	return SignConvention{InvertVendorDocuments: true}
}

// ResolveSignedAmount maps a balance onto the debt axis of the account.
//
// Receivable: credit notes and inbound payments reduce customer debt, so
// they are always negative; invoices are always positive. Payable mirrors
// that: vendor refunds and outbound payments negative, vendor invoices
// positive. A zero balance stays exactly zero.
func (c SignConvention) ResolveSignedAmount(balance float64, accountType AccountType, docType DocumentType, direction PaymentDirection) float64 {
	if balance == 0 {
		return 0
	}

	signed := balance
	switch accountType {
	case AccountReceivable:
		switch {
		case docType == DocCreditNote:
			signed = -math.Abs(balance)
		case direction == DirectionInbound:
			signed = -math.Abs(balance)
		default:
			signed = math.Abs(balance)
		}
	case AccountPayable:
		switch {
		case docType == DocVendorRefund:
			signed = -math.Abs(balance)
		case direction == DirectionOutbound:
			signed = -math.Abs(balance)
		default:
			signed = math.Abs(balance)
		}
	}

	if c.InvertVendorDocuments && docType.VendorSide() {
		signed = -signed
	}
	return signed
}
