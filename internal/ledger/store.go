package ledger

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const detailFile = "po_details.csv"

// Store is the file-backed ledger. Files are only ever appended to.
type Store struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// NewStore prepares a ledger rooted at dir, creating the directory if needed.
func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("ledger: directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ledger: create dir: %w", err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

// Dir returns the ledger directory.
func (s *Store) Dir() string {
	return s.dir
}

// RecordCompletion appends one entry for stage. Duplicates are not filtered.
func (s *Store) RecordCompletion(ctx context.Context, stage Stage, id, parentID, reference string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Entry{}, ErrEmptyID
	}
	name := stage.FileName()
	if name == "" {
		return Entry{}, fmt.Errorf("%w: %s", ErrUnknownStage, stage)
	}
	entry := Entry{ID: id, Stage: stage, CreatedAt: s.now().UTC(), ParentID: parentID, Reference: reference}
	row := []string{entry.ID, entry.CreatedAt.Format(time.RFC3339), entry.ParentID, entry.Reference}
	if err := s.appendRow(name, row); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Exists reports whether id appears as the first field of any line of stage.
func (s *Store) Exists(ctx context.Context, stage Stage, id string) (bool, error) {
	entries, err := s.Entries(ctx, stage)
	if err != nil {
		return false, err
	}
	id = strings.TrimSpace(id)
	for _, e := range entries {
		if e.ID == id {
			return true, nil
		}
	}
	return false, nil
}

// Entries returns every entry of stage in append order. A missing file is empty.
func (s *Store) Entries(ctx context.Context, stage Stage) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := stage.FileName()
	if name == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStage, stage)
	}
	rows, err := s.readRows(name)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, parseEntry(stage, row))
	}
	return entries, nil
}

// ListPurchaseOrders returns the purchase order ledger in append order.
func (s *Store) ListPurchaseOrders(ctx context.Context) ([]Entry, error) {
	return s.Entries(ctx, StagePurchaseOrder)
}

// InvoiceFor returns the most recent invoice whose parent is poNumber.
func (s *Store) InvoiceFor(ctx context.Context, poNumber string) (Entry, error) {
	invoices, err := s.Entries(ctx, StageSupplierInvoice)
	if err != nil {
		return Entry{}, err
	}
	for i := len(invoices) - 1; i >= 0; i-- {
		if invoices[i].ParentID == poNumber {
			return invoices[i], nil
		}
	}
	return Entry{}, ErrNotFound
}

// ProgressOf derives the stage summary for a purchase order. Goods receipt counts
// as done when it was recorded directly or when an invoice exists for the order.
func (s *Store) ProgressOf(ctx context.Context, poNumber string) (Progress, error) {
	poNumber = strings.TrimSpace(poNumber)
	p := Progress{PONumber: poNumber}

	created, err := s.Exists(ctx, StagePurchaseOrder, poNumber)
	if err != nil {
		return Progress{}, err
	}
	received, err := s.Exists(ctx, StageGoodsReceipt, poNumber)
	if err != nil {
		return Progress{}, err
	}
	invoice, err := s.InvoiceFor(ctx, poNumber)
	switch {
	case err == nil:
		p.InvoiceCreated = true
		p.InvoiceNumber = invoice.ID
	case !errors.Is(err, ErrNotFound):
		return Progress{}, err
	}
	if p.InvoiceCreated {
		paid, err := s.Exists(ctx, StagePayment, p.InvoiceNumber)
		if err != nil {
			return Progress{}, err
		}
		p.PaymentCompleted = paid
	}

	p.POCreated = created
	p.GoodsReceiptCompleted = received || p.InvoiceCreated
	p.Exists = created || received || p.InvoiceCreated
	p.resolveNextStep()
	return p, nil
}

// RecordDetail appends the creation values of a purchase order.
func (s *Store) RecordDetail(ctx context.Context, d Detail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(d.PONumber) == "" {
		return ErrEmptyID
	}
	if d.RecordedAt.IsZero() {
		d.RecordedAt = s.now().UTC()
	}
	row := []string{d.PONumber, d.Material, d.Quantity.String(), d.Price.String(), d.RecordedAt.Format(time.RFC3339)}
	return s.appendRow(detailFile, row)
}

// Detail returns the latest detail line for poNumber.
func (s *Store) Detail(ctx context.Context, poNumber string) (Detail, error) {
	if err := ctx.Err(); err != nil {
		return Detail{}, err
	}
	rows, err := s.readRows(detailFile)
	if err != nil {
		return Detail{}, err
	}
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i][0] != poNumber {
			continue
		}
		d, err := parseDetail(rows[i])
		if err != nil {
			return Detail{}, fmt.Errorf("ledger: detail %s: %w", poNumber, err)
		}
		return d, nil
	}
	return Detail{}, ErrNotFound
}

func (s *Store) appendRow(name string, row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("ledger: open %s: %w", name, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(row); err != nil {
		_ = f.Close()
		return fmt.Errorf("ledger: append %s: %w", name, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("ledger: flush %s: %w", name, err)
	}
	return f.Close()
}

// readRows returns non-blank rows with a trimmed first field. Each line is parsed on
// its own so a malformed hand-written line hides only itself.
func (s *Store) readRows(name string) ([][]string, error) {
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("ledger: open %s: %w", name, err)
	}
	defer f.Close()

	var rows [][]string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		row, err := parseLine(scanner.Text())
		if err != nil || len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		row[0] = strings.TrimSpace(row[0])
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ledger: read %s: %w", name, err)
	}
	return rows, nil
}

// parseLine reads a single CSV record from line.
func parseLine(line string) ([]string, error) {
	if strings.TrimSpace(line) == "" {
		return nil, nil
	}
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	return r.Read()
}

func parseEntry(stage Stage, row []string) Entry {
	e := Entry{ID: row[0], Stage: stage}
	if len(row) > 1 {
		if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(row[1])); err == nil {
			e.CreatedAt = ts
		}
	}
	if len(row) > 2 {
		e.ParentID = strings.TrimSpace(row[2])
	}
	if len(row) > 3 {
		e.Reference = strings.TrimSpace(row[3])
	}
	return e
}

func parseDetail(row []string) (Detail, error) {
	if len(row) < 4 {
		return Detail{}, errors.New("short line")
	}
	qty, err := decimal.NewFromString(strings.TrimSpace(row[2]))
	if err != nil {
		return Detail{}, fmt.Errorf("quantity: %w", err)
	}
	price, err := decimal.NewFromString(strings.TrimSpace(row[3]))
	if err != nil {
		return Detail{}, fmt.Errorf("price: %w", err)
	}
	d := Detail{PONumber: row[0], Material: strings.TrimSpace(row[1]), Quantity: qty, Price: price}
	if len(row) > 4 {
		if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(row[4])); err == nil {
			d.RecordedAt = ts
		}
	}
	return d, nil
}
