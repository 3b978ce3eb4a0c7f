package command

// CatalogEntry documents the phrasings accepted for one intent.
type CatalogEntry struct {
	Intent      Intent   `json:"intent"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Requires    string   `json:"requires,omitempty"`
	Examples    []string `json:"examples"`
}

// Catalog returns the static list of supported commands in precedence order.
func Catalog() []CatalogEntry {
	return []CatalogEntry{
		{
			Intent:      IntentProcureToPay,
			Title:       "Procure to pay",
			Description: "Runs purchase order, goods receipt, supplier invoice and payment in sequence.",
			Examples:    []string{"Run procure to pay", "Do the full P2P flow", "Run the end-to-end process for 5 units of material MAT-01 at 12.50"},
		},
		{
			Intent:      IntentCreatePurchaseOrder,
			Title:       "Create purchase order",
			Description: "Creates a new purchase order with the given or default supplier, material, quantity and price.",
			Examples:    []string{"Create a purchase order", "Create PO for 10 units of material MAT-01 at 25.50 from supplier 100045", "Please raise a new PO"},
		},
		{
			Intent:      IntentCreateSupplierInvoice,
			Title:       "Create supplier invoice",
			Description: "Creates a supplier invoice for an existing purchase order. The amount is price times quantity of the order.",
			Requires:    "purchase order number",
			Examples:    []string{"Create invoice for PO 4500001075", "Post invoice against 4500001075"},
		},
		{
			Intent:      IntentCreateGoodsReceipt,
			Title:       "Post goods receipt",
			Description: "Posts the goods receipt for an existing purchase order.",
			Requires:    "purchase order number",
			Examples:    []string{"Post GR for PO 4500001075", "Receive goods for purchase order 4500001075"},
		},
		{
			Intent:      IntentCreatePayment,
			Title:       "Process payment",
			Description: "Pays an existing supplier invoice.",
			Requires:    "supplier invoice number",
			Examples:    []string{"Process payment for invoice 5105600001", "Pay invoice 5105600001"},
		},
	}
}
