package docid

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdentifyDefaultTable(t *testing.T) {
	ident := NewIdentifier(DefaultTable())

	cases := []struct {
		id    string
		kind  Kind
		valid bool
	}{
		{"4500001075", KindPurchaseOrder, true},
		{"5000012345", KindMaterialDocument, true},
		{"5105600001", KindSupplierInvoice, true},
		{"7700000000", KindUnknown, false},
		{"", KindUnknown, false},
		{"   ", KindUnknown, false},
		{"450000107", KindUnknown, false},
		{"45000010x5", KindUnknown, false},
	}
	for _, tc := range cases {
		res := ident.Identify(tc.id)
		require.Equal(t, tc.kind, res.Kind, tc.id)
		require.Equal(t, tc.valid, res.IsValid, tc.id)
	}
}

func TestIdentifyFirstPrefixWins(t *testing.T) {
	table := Table{Entries: []Entry{
		{Kind: KindSupplierInvoice, Prefixes: []string{"510"}, Label: "Supplier Invoice"},
		{Kind: KindMaterialDocument, Prefixes: []string{"51"}, Label: "Material Document"},
	}}
	ident := NewIdentifier(table)
	require.Equal(t, KindSupplierInvoice, ident.Identify("5105600001").Kind)
	require.Equal(t, KindMaterialDocument, ident.Identify("5195600001").Kind)
}

func TestAcceptsRequiredKind(t *testing.T) {
	ident := NewIdentifier(DefaultTable())

	require.NoError(t, ident.Accepts("4500001075", KindPurchaseOrder))

	err := ident.Accepts("5000012345", KindPurchaseOrder)
	require.ErrorIs(t, err, ErrWrongDocumentType)
	require.Contains(t, err.Error(), "wrong document type")

	err = ident.Accepts("9900000000", KindPurchaseOrder)
	require.True(t, errors.Is(err, ErrUnknownDocument))
}

func TestLoaderCachesAndReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prefixes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
documents:
  - kind: purchase_order
    prefixes: ["43"]
    label: Purchase Order
    short: PO
`), 0o644))

	loader := NewLoader(path)
	table, err := loader.Load()
	require.NoError(t, err)
	require.Equal(t, []string{"43"}, table.PrefixesFor(KindPurchaseOrder))

	require.NoError(t, os.WriteFile(path, []byte(`
documents:
  - kind: purchase_order
    prefixes: ["44"]
`), 0o644))

	cached, err := loader.Load()
	require.NoError(t, err)
	require.Equal(t, []string{"43"}, cached.PrefixesFor(KindPurchaseOrder))

	reloaded, err := loader.Reload()
	require.NoError(t, err)
	require.Equal(t, []string{"44"}, reloaded.PrefixesFor(KindPurchaseOrder))
}

func TestLoaderMissingFileUsesDefaults(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "absent.yaml"))
	table, err := loader.Load()
	require.NoError(t, err)
	require.Equal(t, DefaultTable(), table)
}

func TestLoaderRejectsBadPrefix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
documents:
  - kind: purchase_order
    prefixes: ["4a"]
`), 0o644))
	_, err := NewLoader(path).Load()
	require.ErrorIs(t, err, ErrInvalidTable)
}
