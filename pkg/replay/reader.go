package replay

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"

	"xysync/pkg/model"
)

// Reader yields samples from "timestamp,value" rows. Blank lines and lines
// starting with '#' are skipped, as is a non-numeric header on the first row.
type Reader struct {
	path  string
	csv   *csv.Reader
	first bool
}

func NewReader(r io.Reader, path string) *Reader {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	return &Reader{path: path, csv: cr, first: true}
}

// Next returns the next sample. A malformed row yields an error wrapping
// ErrBadRow; reading may continue after it. io.EOF marks the end.
func (r *Reader) Next() (model.Sample, error) {
	for {
		rec, err := r.csv.Read()
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				r.first = false
				return model.Sample{}, newRowError(r.path, pe.Line, "%v", pe.Err)
			}
			return model.Sample{}, err
		}
		line, _ := r.csv.FieldPos(0)
		header := r.first
		r.first = false

		if len(rec) != 2 {
			return model.Sample{}, newRowError(r.path, line, "expected 2 fields, got %d", len(rec))
		}
		ts, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
		if err != nil {
			if header {
				continue
			}
			return model.Sample{}, newRowError(r.path, line, "invalid timestamp %q", rec[0])
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return model.Sample{}, newRowError(r.path, line, "invalid value %q", rec[1])
		}
		return model.Sample{Timestamp: ts, Value: v}, nil
	}
}
