package bulk

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// RecordDefaults fill organisational fields an upload leaves empty.
type RecordDefaults struct {
	Supplier    string
	PurchOrg    string
	PurchGroup  string
	CompanyCode string
	Plant       string
	Unit        string
	GLAccount   string
	CostCenter  string
}

type format string

const (
	formatCSV  format = "csv"
	formatXLSX format = "xlsx"
	formatJSON format = "json"
)

const (
	colMaterial    = "material"
	colQuantity    = "quantity"
	colPrice       = "price"
	colSupplier    = "supplier"
	colPurchOrg    = "purch_org"
	colPurchGroup  = "purch_group"
	colCompanyCode = "company_code"
	colPlant       = "plant"
	colUnit        = "unit"
	colGLAccount   = "gl_account"
	colCostCenter  = "cost_center"
	colDate        = "date"
)

// columnSynonyms maps normalised header names to canonical columns.
var columnSynonyms = map[string]string{
	"material": colMaterial, "material_number": colMaterial, "material_no": colMaterial,
	"material_code": colMaterial, "item": colMaterial, "sku": colMaterial,
	"qty": colQuantity, "quantity": colQuantity, "order_qty": colQuantity, "po_quantity": colQuantity,
	"price": colPrice, "net_price": colPrice, "unit_price": colPrice, "netprice": colPrice,
	"supplier": colSupplier, "vendor": colSupplier, "supplier_id": colSupplier, "vendor_number": colSupplier,
	"purch_org": colPurchOrg, "purchasing_org": colPurchOrg, "purchasing_organization": colPurchOrg, "porg": colPurchOrg,
	"purch_group": colPurchGroup, "purchasing_group": colPurchGroup, "pgroup": colPurchGroup,
	"company_code": colCompanyCode, "company": colCompanyCode, "cocode": colCompanyCode,
	"plant": colPlant, "plant_code": colPlant,
	"unit": colUnit, "uom": colUnit, "unit_of_measure": colUnit,
	"gl_account": colGLAccount, "gl": colGLAccount, "account": colGLAccount,
	"cost_center": colCostCenter, "costcenter": colCostCenter, "cost_centre": colCostCenter,
	"date": colDate, "delivery_date": colDate, "document_date": colDate, "posting_date": colDate,
}

var dateLayouts = []string{"2006-01-02", "02.01.2006", "2006/01/02", time.RFC3339}

var recordValidator = validator.New()

// ParseRecords reads an upload. The format comes from contentType, falling back to
// the file extension.
func ParseRecords(r io.Reader, contentType, filename string, defaults RecordDefaults) ([]Record, error) {
	f, err := detectFormat(contentType, filename)
	if err != nil {
		return nil, err
	}
	var rows []map[string]string
	switch f {
	case formatCSV:
		rows, err = readCSV(r)
	case formatXLSX:
		rows, err = readXLSX(r)
	case formatJSON:
		rows, err = readJSON(r)
	}
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(rows))
	var errs []error
	for i, row := range rows {
		rec, err := buildRecord(len(records), row, defaults)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: row %d: %v", ErrInvalidRecord, i+1, err))
			continue
		}
		records = append(records, rec)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return records, nil
}

func detectFormat(contentType, filename string) (format, error) {
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	switch ct {
	case "text/csv", "application/csv", "text/plain":
		return formatCSV, nil
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return formatXLSX, nil
	case "application/json", "text/json":
		return formatJSON, nil
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return formatCSV, nil
	case ".xlsx":
		return formatXLSX, nil
	case ".json":
		return formatJSON, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, contentType)
}

func readCSV(r io.Reader) ([]map[string]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("bulk: read csv: %w", err)
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	if bytes.Count(raw, []byte(";")) > bytes.Count(raw, []byte(",")) {
		reader.Comma = ';'
	}
	table, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("bulk: parse csv: %w", err)
	}
	return tableRows(table), nil
}

func readXLSX(r io.Reader) ([]map[string]string, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("bulk: open xlsx: %w", err)
	}
	defer book.Close()
	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoRecords
	}
	table, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("bulk: read sheet %s: %w", sheets[0], err)
	}
	return tableRows(table), nil
}

func readJSON(r io.Reader) ([]map[string]string, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var items []map[string]any
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("bulk: parse json: %w", err)
	}
	rows := make([]map[string]string, 0, len(items))
	for _, item := range items {
		row := make(map[string]string, len(item))
		for k, v := range item {
			col, ok := columnSynonyms[normaliseHeader(k)]
			if !ok || v == nil {
				continue
			}
			row[col] = strings.TrimSpace(fmt.Sprint(v))
		}
		if !blank(row) {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// tableRows maps a header row plus data rows to canonical columns. Unknown headers are ignored.
func tableRows(table [][]string) []map[string]string {
	if len(table) == 0 {
		return nil
	}
	cols := make([]string, len(table[0]))
	for i, h := range table[0] {
		cols[i] = columnSynonyms[normaliseHeader(h)]
	}
	rows := make([]map[string]string, 0, len(table)-1)
	for _, line := range table[1:] {
		row := make(map[string]string)
		for i, cell := range line {
			if i < len(cols) && cols[i] != "" {
				row[cols[i]] = strings.TrimSpace(cell)
			}
		}
		if !blank(row) {
			rows = append(rows, row)
		}
	}
	return rows
}

func normaliseHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	h = strings.NewReplacer(" ", "_", "-", "_", ".", "").Replace(h)
	return h
}

func blank(row map[string]string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}

func buildRecord(index int, row map[string]string, d RecordDefaults) (Record, error) {
	rec := Record{
		Index:       index,
		Material:    strings.ToUpper(row[colMaterial]),
		Supplier:    or(row[colSupplier], d.Supplier),
		PurchOrg:    or(row[colPurchOrg], d.PurchOrg),
		PurchGroup:  or(row[colPurchGroup], d.PurchGroup),
		CompanyCode: or(row[colCompanyCode], d.CompanyCode),
		Plant:       or(row[colPlant], d.Plant),
		Unit:        strings.ToUpper(or(row[colUnit], d.Unit)),
		GLAccount:   or(row[colGLAccount], d.GLAccount),
		CostCenter:  or(row[colCostCenter], d.CostCenter),
	}
	qty, err := positiveDecimal(row[colQuantity])
	if err != nil {
		return Record{}, fmt.Errorf("quantity: %w", err)
	}
	price, err := positiveDecimal(row[colPrice])
	if err != nil {
		return Record{}, fmt.Errorf("price: %w", err)
	}
	rec.Quantity, rec.Price = qty, price
	if raw := row[colDate]; raw != "" {
		date, err := parseDate(raw)
		if err != nil {
			return Record{}, err
		}
		rec.Date = date
	}
	if err := recordValidator.Struct(rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func positiveDecimal(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, ".") {
		raw = strings.ReplaceAll(raw, ",", ".")
	}
	if raw == "" {
		return decimal.Zero, errors.New("missing")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("not a number: %q", raw)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("must be positive: %s", raw)
	}
	return d, nil
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("date: unrecognised %q", raw)
}

func or(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
