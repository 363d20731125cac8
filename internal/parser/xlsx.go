package parser

import (
	"io"

	"github.com/xuri/excelize/v2"
)

// parseXLSX extracts every sheet in workbook order, first row as header.
func parseXLSX(r io.Reader) (interface{}, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &Error{Format: TypeXLSX, Err: err}
	}
	defer wb.Close()

	sheets := map[string][]Row{}
	for _, name := range wb.GetSheetList() {
		cells, err := wb.GetRows(name)
		if err != nil {
			return nil, &Error{Format: TypeXLSX, Err: err}
		}
		sheets[name] = sheetRows(cells)
	}
	return XLSXResult{Type: TypeXLSX, Sheets: sheets}, nil
}

func sheetRows(cells [][]string) []Row {
	rows := []Row{}
	if len(cells) == 0 {
		return rows
	}
	header := cells[0]
	for _, record := range cells[1:] {
		row := Row{}
		for i, name := range header {
			if i < len(record) {
				row[name] = record[i]
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows
}
