package loader

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"

	"docpipe/internal/models"
)

// ExcelOptions configures the spreadsheet loader.
type ExcelOptions struct {
	Mode string // "single" (default, sheets joined) or "elements" (per row)
}

// ExcelLoader reads .xlsx workbooks with tealeg/xlsx and falls back to
// excelize for .xls and .ods containers. In single mode each workbook becomes
// one RawDocument with sheets rendered as tab-separated blocks; in elements
// mode every row becomes its own RawDocument with sheet and row locators.
type ExcelLoader struct {
	Mode string
}

func (l *ExcelLoader) Load(path string) ([]models.RawDocument, error) {
	var sheets []sheetRows
	var err error
	if strings.ToLower(filepath.Ext(path)) == ".xlsx" {
		sheets, err = readXLSX(path)
	} else {
		sheets, err = readWithExcelize(path)
	}
	if err != nil {
		return nil, err
	}

	if l.Mode == ModeElements {
		var docs []models.RawDocument
		for _, sheet := range sheets {
			for i, row := range sheet.rows {
				text := strings.TrimSpace(strings.Join(row, "\t"))
				if text == "" {
					continue
				}
				docs = append(docs, models.RawDocument{
					Text: text,
					Metadata: map[string]string{
						models.MetaSource: path,
						models.MetaSheet:  sheet.name,
						models.MetaRow:    strconv.Itoa(i + 1),
					},
				})
			}
		}
		return docs, nil
	}

	var text strings.Builder
	for _, sheet := range sheets {
		fmt.Fprintf(&text, "## Sheet: %s\n", sheet.name)
		for _, row := range sheet.rows {
			text.WriteString(strings.Join(row, "\t"))
			text.WriteString("\n")
		}
	}
	return []models.RawDocument{{
		Text:     text.String(),
		Metadata: map[string]string{models.MetaSource: path},
	}}, nil
}

type sheetRows struct {
	name string
	rows [][]string
}

func readXLSX(path string) ([]sheetRows, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	var sheets []sheetRows
	for _, sheet := range f.Sheets {
		s := sheetRows{name: sheet.Name}
		for _, row := range sheet.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				cells = append(cells, cell.String())
			}
			s.rows = append(s.rows, cells)
		}
		sheets = append(sheets, s)
	}
	return sheets, nil
}

func readWithExcelize(path string) ([]sheetRows, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()
	var sheets []sheetRows
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %q of %s: %w", name, path, err)
		}
		sheets = append(sheets, sheetRows{name: name, rows: rows})
	}
	return sheets, nil
}
