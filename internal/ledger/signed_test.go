package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveSignedAmountReceivable(t *testing.T) {
	convention := DefaultSignConvention()

	require.Equal(t, 100.0, convention.ResolveSignedAmount(100, AccountReceivable, DocCustomerInvoice, DirectionNone))
	require.Equal(t, -100.0, convention.ResolveSignedAmount(100, AccountReceivable, DocCreditNote, DirectionNone))
	require.Equal(t, -100.0, convention.ResolveSignedAmount(100, AccountReceivable, DocPayment, DirectionInbound))
}

func TestResolveSignedAmountReceivableNormalizesNegativeInput(t *testing.T) {
	convention := DefaultSignConvention()

	// The branch fixes the sign regardless of the raw balance orientation.
	require.Equal(t, 100.0, convention.ResolveSignedAmount(-100, AccountReceivable, DocCustomerInvoice, DirectionNone))
	require.Equal(t, -100.0, convention.ResolveSignedAmount(-100, AccountReceivable, DocCreditNote, DirectionNone))
}

func TestResolveSignedAmountPayableMirrors(t *testing.T) {
	convention := SignConvention{InvertVendorDocuments: false}

	require.Equal(t, 100.0, convention.ResolveSignedAmount(100, AccountPayable, DocVendorInvoice, DirectionNone))
	require.Equal(t, -100.0, convention.ResolveSignedAmount(100, AccountPayable, DocVendorRefund, DirectionNone))
	require.Equal(t, -100.0, convention.ResolveSignedAmount(100, AccountPayable, DocPayment, DirectionOutbound))
}

func TestResolveSignedAmountVendorDocumentInversion(t *testing.T) {
	convention := DefaultSignConvention()

	// Vendor-side documents flip once more under the default convention.
	require.Equal(t, -100.0, convention.ResolveSignedAmount(100, AccountPayable, DocVendorInvoice, DirectionNone))
	require.Equal(t, 100.0, convention.ResolveSignedAmount(100, AccountPayable, DocVendorRefund, DirectionNone))

	disabled := SignConvention{InvertVendorDocuments: false}
	require.Equal(t, 100.0, disabled.ResolveSignedAmount(100, AccountPayable, DocVendorInvoice, DirectionNone))
}

func TestResolveSignedAmountZeroBalance(t *testing.T) {
	convention := DefaultSignConvention()
	for _, docType := range []DocumentType{DocCustomerInvoice, DocCreditNote, DocVendorInvoice, DocVendorRefund, DocPayment} {
		got := convention.ResolveSignedAmount(0, AccountReceivable, docType, DirectionInbound)
		require.Zero(t, got)
		require.False(t, got < 0 || 1/got < 0, "zero must not be negative zero")
	}
}
