package parsers

import (
	"bytes"
	"encoding/csv"
	"path"
	"strings"

	"github.com/dvloznov/money-mirror/internal/domain"
	"github.com/xuri/excelize/v2"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readTable loads every row of a CSV file or of the first sheet of a
// workbook, chosen by file extension.
func readTable(fileName string, content []byte) ([][]string, error) {
	switch strings.ToLower(path.Ext(fileName)) {
	case ".csv":
		return readCSV(fileName, content)
	case ".xlsx", ".xlsm":
		return readWorkbook(fileName, content)
	default:
		return nil, &domain.ParseError{File: fileName, Reason: "unsupported file type, expected .csv or .xlsx"}
	}
}

func readCSV(fileName string, content []byte) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(content, utf8BOM)))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, &domain.ParseError{File: fileName, Reason: "malformed CSV", Err: err}
	}
	return rows, nil
}

func readWorkbook(fileName string, content []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, &domain.ParseError{File: fileName, Reason: "cannot open workbook", Err: err}
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, &domain.ParseError{File: fileName, Reason: "workbook has no sheets"}
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, &domain.ParseError{File: fileName, Reason: "cannot read sheet " + sheet, Err: err}
	}
	return padRows(rows), nil
}

// padRows restores the trailing empty cells GetRows drops, up to the width
// of the header row. Wider rows are left alone so Parse can reject them.
func padRows(rows [][]string) [][]string {
	header, _ := splitHeader(rows)
	width := len(header)
	for i, row := range rows {
		if len(row) < width && !blank(row) {
			padded := make([]string, width)
			copy(padded, row)
			rows[i] = padded
		}
	}
	return rows
}
