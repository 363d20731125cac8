package parser

import (
	"encoding/csv"
	"io"
)

// parseCSV reads header-first tabular text into an ordered row sequence.
func parseCSV(r io.Reader) (interface{}, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return CSVResult{Type: TypeCSV, Rows: []Row{}}, nil
	}
	if err != nil {
		return nil, &Error{Format: TypeCSV, Err: err}
	}

	rows := []Row{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &Error{Format: TypeCSV, Err: err}
		}
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
	return CSVResult{Type: TypeCSV, Rows: rows}, nil
}
