package tabular

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// preferredSheets are tried before falling back to the first sheet.
var preferredSheets = []string{"livraison", "deliveries", "delivery", "edi", "forecast", "data", "sheet1"}

// ReadExcel reads the data sheet of an XLSX workbook. The first non-empty
// row is the header. Cells are read raw, so dates arrive as serial numbers.
func ReadExcel(data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data), excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := findDataSheet(f)
	if sheet == "" {
		return nil, ErrEmptyFile
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}

	for i, row := range rows {
		if !blank(row) {
			return newTable(row, rows[i+1:])
		}
	}
	return nil, ErrEmptyFile
}

func findDataSheet(f *excelize.File) string {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ""
	}

	for _, preferred := range preferredSheets {
		for _, sheet := range sheets {
			if strings.EqualFold(sheet, preferred) {
				return sheet
			}
		}
	}
	return sheets[0]
}
