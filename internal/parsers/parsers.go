package parsers

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/money-mirror/internal/domain"
	"github.com/dvloznov/money-mirror/internal/hasher"
	"github.com/shopspring/decimal"
)

// format describes one institution's statement layout. identity lists the
// parsed, normalized values that make up a row's content hash, so a
// re-export with different date or number formatting hashes the same.
type format struct {
	columns  []string
	required []string
	build    func(rec *record) (domain.RawRow, error)
	identity func(row domain.RawRow) []string
}

var formats = map[domain.Institution]format{
	domain.InstitutionAmex:         amexFormat,
	domain.InstitutionWealthsimple: wealthsimpleFormat,
}

// Supported reports whether an institution has a registered format.
func Supported(inst domain.Institution) bool {
	_, ok := formats[inst]
	return ok
}

// Parse turns a statement file into raw rows. The file type is chosen by
// extension. Any malformed row fails the whole file with a *domain.ParseError.
// Returned rows carry FileName, FileHash and RowHash; ingest fields are left
// for the loader.
func Parse(inst domain.Institution, fileName string, content []byte) ([]domain.RawRow, error) {
	f, ok := formats[inst]
	if !ok {
		return nil, &domain.ParseError{File: fileName, Reason: fmt.Sprintf("no parser for institution %q", inst)}
	}

	table, err := readTable(fileName, content)
	if err != nil {
		return nil, err
	}

	header, body := splitHeader(table)
	if header == nil {
		return nil, &domain.ParseError{File: fileName, Reason: "file has no header row"}
	}

	columnMap, err := createHeaderMap(header, f.columns, f.required)
	if err != nil {
		return nil, &domain.ParseError{File: fileName, Reason: err.Error()}
	}

	fileHash := hasher.FileHash(content)
	baseName := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	seen := make(map[string]int)

	rows := make([]domain.RawRow, 0, len(body))
	for i, values := range body {
		if blank(values) {
			continue
		}
		if len(values) != len(header) {
			return nil, &domain.ParseError{
				File:   baseName,
				Row:    i + 1,
				Reason: fmt.Sprintf("expected %d columns, got %d", len(header), len(values)),
			}
		}

		rec := &record{file: baseName, row: i + 1, values: make(map[string]string, len(columnMap))}
		for col, idx := range columnMap {
			if idx < len(values) {
				rec.values[col] = strings.TrimSpace(values[idx])
			}
		}

		raw, err := f.build(rec)
		if err != nil {
			return nil, err
		}

		contentHash := hasher.RowHash(append([]string{string(inst)}, f.identity(raw)...)...)
		occurrence := seen[contentHash]
		seen[contentHash]++

		raw.Institution = inst
		raw.FileName = baseName
		raw.FileHash = fileHash
		raw.RowHash = hasher.RowHash(contentHash, "#"+strconv.Itoa(occurrence))
		rows = append(rows, raw)
	}

	return rows, nil
}

// createHeaderMap maps each known column to its index. Header names match
// case-insensitively after trimming; unknown headers are ignored.
func createHeaderMap(header []string, columns, required []string) (map[string]int, error) {
	columnMap := make(map[string]int)
	for _, column := range columns {
		for i, field := range header {
			if strings.EqualFold(strings.TrimSpace(field), column) {
				columnMap[column] = i
				break
			}
		}
	}

	var missing []string
	for _, column := range required {
		if _, ok := columnMap[column]; !ok {
			missing = append(missing, column)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return columnMap, nil
}

// splitHeader returns the first non-blank row and everything after it.
func splitHeader(table [][]string) ([]string, [][]string) {
	for i, row := range table {
		if !blank(row) {
			return row, table[i+1:]
		}
	}
	return nil, nil
}

// text collapses inner whitespace.
func text(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func dateText(d *civil.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func amountText(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
