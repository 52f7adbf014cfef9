package export

import (
	"encoding/csv"
	"io"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteCSV writes a BOM, the header row and one row per record.
func WriteCSV(w io.Writer, records []Record) error {
	if _, err := w.Write(BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns(records)); err != nil {
		return err
	}
	if err := cw.WriteAll(rows(records)); err != nil {
		return err
	}
	return cw.Error()
}
