package backup

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"
)

// utf8BOM lets spreadsheet programs detect the encoding of umlauts.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func encodeCSV(w io.Writer, doc Document) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, t := range doc.Transactions {
		if err := cw.Write(row(t, doc.Categories)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func decodeCSV(r io.Reader, today time.Time) (Decoded, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var (
		out Decoded
		idx map[string]int
	)
	for {
		cells, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				out.Records = append(out.Records, Record{Line: perr.Line, Err: err})
				continue
			}
			return Decoded{}, fmt.Errorf("read csv: %w", err)
		}
		if idx == nil {
			var isHeader bool
			idx, isHeader = columns(cells)
			if isHeader {
				continue
			}
		}
		if blank(cells) {
			continue
		}
		line, _ := cr.FieldPos(0)
		out.Records = append(out.Records, fromCells(line, cells, idx, today))
	}
	return out, nil
}
