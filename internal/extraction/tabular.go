package extraction

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// extractCSV parses a delimited file into a header-addressed row set.
func (a *Adapter) extractCSV(file File) (*Result, error) {
	reader := csv.NewReader(bytes.NewReader(file.Bytes))
	reader.FieldsPerRecord = -1 // bank exports often have ragged rows
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, &ExtractionError{FileName: file.Name, Attempted: []string{"csv"}, Err: fmt.Errorf("failed to parse csv: %w", err)}
	}
	if len(records) == 0 {
		return nil, &ExtractionError{FileName: file.Name, Attempted: []string{"csv"}, Err: fmt.Errorf("csv has no rows")}
	}

	table := buildTable(records)
	a.logger.Debug("Parsed CSV",
		zap.String("file", file.Name),
		zap.Int("rows", len(table.Rows)),
		zap.Strings("headers", table.Headers))

	return &Result{Text: string(file.Bytes), Table: table, Method: "csv"}, nil
}

// extractSpreadsheet reads every sheet of an xlsx workbook into one row set.
// The first sheet's header row wins when sheets disagree.
func (a *Adapter) extractSpreadsheet(file File) (*Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(file.Bytes))
	if err != nil {
		return nil, &ExtractionError{FileName: file.Name, Attempted: []string{"xlsx"}, Err: fmt.Errorf("failed to open workbook: %w", err)}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ExtractionError{FileName: file.Name, Attempted: []string{"xlsx"}, Err: fmt.Errorf("workbook has no sheets")}
	}

	var records [][]string
	for i, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			a.logger.Warn("Failed to read sheet", zap.String("sheet", sheet), zap.Error(err))
			continue
		}
		if i > 0 && len(rows) > 0 {
			rows = rows[1:] // subsequent sheets repeat the header
		}
		records = append(records, rows...)
	}
	if len(records) == 0 {
		return nil, &ExtractionError{FileName: file.Name, Attempted: []string{"xlsx"}, Err: fmt.Errorf("workbook has no rows")}
	}

	table := buildTable(records)

	var sb strings.Builder
	for _, rec := range records {
		sb.WriteString(strings.Join(rec, " "))
		sb.WriteString("\n")
	}

	return &Result{Text: sb.String(), Table: table, Method: "xlsx"}, nil
}

// buildTable converts raw records into a Table keyed by the first row's
// headers. Numeric-looking cells are dynamically typed to float64.
func buildTable(records [][]string) *Table {
	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.ToLower(strings.TrimSpace(h))
	}

	table := &Table{Headers: headers}
	for _, record := range records[1:] {
		row := make(Row, len(headers))
		for i, header := range headers {
			if i >= len(record) {
				break
			}
			row[header] = typeCell(record[i])
		}
		if len(row) > 0 {
			table.Rows = append(table.Rows, row)
		}
	}
	return table
}

// typeCell converts numeric-looking cells to float64.
func typeCell(cell string) any {
	trimmed := strings.TrimSpace(cell)
	numeric := strings.ReplaceAll(trimmed, ",", "")
	numeric = strings.TrimPrefix(numeric, "$")
	if numeric == "" {
		return trimmed
	}
	if v, err := strconv.ParseFloat(numeric, 64); err == nil {
		return v
	}
	return trimmed
}
