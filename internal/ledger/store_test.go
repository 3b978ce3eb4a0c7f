package ledger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	store.now = func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) }
	return store
}

func TestRecordCompletionAppendsWithIDFirst(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.RecordCompletion(ctx, StageSupplierInvoice, "5105600001", "4500001075", "")
	require.NoError(t, err)
	_, err = store.RecordCompletion(ctx, StageSupplierInvoice, "5105600002", "4500001076", "")
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(store.Dir(), "invoices.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], "5105600001,"))
	require.True(t, strings.HasPrefix(lines[1], "5105600002,"))
}

func TestRecordCompletionRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.RecordCompletion(ctx, StagePurchaseOrder, "  ", "", "")
	require.ErrorIs(t, err, ErrEmptyID)
	_, err = store.RecordCompletion(ctx, Stage("bogus"), "4500000001", "", "")
	require.ErrorIs(t, err, ErrUnknownStage)
}

func TestExistsIsStableWithoutAppends(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first, err := store.Exists(ctx, StagePurchaseOrder, "4500001075")
	require.NoError(t, err)
	second, err := store.Exists(ctx, StagePurchaseOrder, "4500001075")
	require.NoError(t, err)
	require.False(t, first)
	require.Equal(t, first, second)

	_, err = store.RecordCompletion(ctx, StagePurchaseOrder, "4500001075", "", "")
	require.NoError(t, err)
	first, err = store.Exists(ctx, StagePurchaseOrder, "4500001075")
	require.NoError(t, err)
	second, err = store.Exists(ctx, StagePurchaseOrder, "4500001075")
	require.NoError(t, err)
	require.True(t, first)
	require.Equal(t, first, second)
}

func TestExistsReadsHandAppendedLines(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	path := filepath.Join(store.Dir(), "purchase_orders.csv")
	require.NoError(t, os.WriteFile(path, []byte("4500000042\n\n 4500000043 ,2025-01-01T00:00:00Z\n"), 0o644))

	ok, err := store.Exists(ctx, StagePurchaseOrder, "4500000043")
	require.NoError(t, err)
	require.True(t, ok)

	list, err := store.ListPurchaseOrders(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "4500000042", list[0].ID)
}

func TestStrayQuoteHidesOnlyItsOwnLine(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	path := filepath.Join(store.Dir(), "purchase_orders.csv")
	lines := "4500000001\n\"4500000002,hand typed\n4500000003,2025-01-01T00:00:00Z\n"
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))
	_, err := store.RecordCompletion(ctx, StagePurchaseOrder, "4500000004", "", "")
	require.NoError(t, err)

	for _, id := range []string{"4500000001", "4500000003", "4500000004"} {
		ok, err := store.Exists(ctx, StagePurchaseOrder, id)
		require.NoError(t, err)
		require.True(t, ok, id)
	}
	ok, err := store.Exists(ctx, StagePurchaseOrder, "4500000002")
	require.NoError(t, err)
	require.False(t, ok)

	list, err := store.ListPurchaseOrders(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)

	report, err := store.Verify(ctx)
	require.NoError(t, err)
	require.Len(t, report.Problems, 1)
	require.Equal(t, 2, report.Problems[0].Line)
}

func TestDuplicatesAreKept(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	for i := 0; i < 2; i++ {
		_, err := store.RecordCompletion(ctx, StagePurchaseOrder, "4500000001", "", "")
		require.NoError(t, err)
	}
	list, err := store.ListPurchaseOrders(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
}

func TestProgressOf(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	p, err := store.ProgressOf(ctx, "4500000001")
	require.NoError(t, err)
	require.False(t, p.Exists)
	require.Equal(t, NextUnknown, p.NextStep)

	_, err = store.RecordCompletion(ctx, StagePurchaseOrder, "4500000001", "", "")
	require.NoError(t, err)
	p, err = store.ProgressOf(ctx, "4500000001")
	require.NoError(t, err)
	require.True(t, p.Exists)
	require.True(t, p.POCreated)
	require.False(t, p.GoodsReceiptCompleted)
	require.Equal(t, NextGoodsReceipt, p.NextStep)

	_, err = store.RecordCompletion(ctx, StageGoodsReceipt, "4500000001", "", "5000000007")
	require.NoError(t, err)
	p, err = store.ProgressOf(ctx, "4500000001")
	require.NoError(t, err)
	require.True(t, p.GoodsReceiptCompleted)
	require.Equal(t, NextSupplierInvoice, p.NextStep)

	_, err = store.RecordCompletion(ctx, StageSupplierInvoice, "5105600001", "4500000001", "")
	require.NoError(t, err)
	p, err = store.ProgressOf(ctx, "4500000001")
	require.NoError(t, err)
	require.True(t, p.InvoiceCreated)
	require.Equal(t, "5105600001", p.InvoiceNumber)
	require.Equal(t, NextPayment, p.NextStep)

	_, err = store.RecordCompletion(ctx, StagePayment, "5105600001", "4500000001", "")
	require.NoError(t, err)
	p, err = store.ProgressOf(ctx, "4500000001")
	require.NoError(t, err)
	require.True(t, p.PaymentCompleted)
	require.Equal(t, NextNone, p.NextStep)
}

func TestProgressDerivesGoodsReceiptFromInvoice(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.RecordCompletion(ctx, StageSupplierInvoice, "5105600009", "4500000009", "")
	require.NoError(t, err)

	p, err := store.ProgressOf(ctx, "4500000009")
	require.NoError(t, err)
	require.True(t, p.Exists)
	require.False(t, p.POCreated)
	require.True(t, p.GoodsReceiptCompleted)
	require.Equal(t, "5105600009", p.InvoiceNumber)
}

func TestDetailReturnsLatest(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.Detail(ctx, "4500000001")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.RecordDetail(ctx, Detail{PONumber: "4500000001", Material: "MAT-01", Quantity: decimal.NewFromInt(2), Price: decimal.RequireFromString("10.5")}))
	require.NoError(t, store.RecordDetail(ctx, Detail{PONumber: "4500000001", Material: "MAT-01", Quantity: decimal.NewFromInt(4), Price: decimal.RequireFromString("10.5")}))

	d, err := store.Detail(ctx, "4500000001")
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(4).Equal(d.Quantity))
	require.True(t, decimal.RequireFromString("42").Equal(d.Amount()))
}

func TestVerifyReportsMalformedLines(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	_, err := store.RecordCompletion(ctx, StagePurchaseOrder, "4500000001", "", "")
	require.NoError(t, err)

	path := filepath.Join(store.Dir(), "purchase_orders.csv")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("PO-ABC,2025-01-01T00:00:00Z\n4500000002,yesterday\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	report, err := store.Verify(ctx)
	require.NoError(t, err)
	require.False(t, report.Healthy())
	require.Equal(t, 3, report.Rows["purchase_orders.csv"])
	require.Len(t, report.Problems, 2)
	require.Equal(t, 2, report.Problems[0].Line)
	require.Equal(t, "bad timestamp", report.Problems[1].Reason)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := newTestStore(t)
	_, err := store.Exists(ctx, StagePurchaseOrder, "4500000001")
	require.ErrorIs(t, err, context.Canceled)
}
