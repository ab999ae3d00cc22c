package export

import (
	"encoding/csv"
	"fmt"
	"io"
)

// CSVWriter writes delimited text, NULL as an empty field
type CSVWriter struct {
	out     io.WriteCloser
	w       *csv.Writer
	columns int
}

// NewCSVWriter writes the header line immediately
func NewCSVWriter(out io.WriteCloser, delimiter rune, header []string) (*CSVWriter, error) {
	w := csv.NewWriter(out)
	w.Comma = delimiter
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	return &CSVWriter{out: out, w: w, columns: len(header)}, nil
}

func (c *CSVWriter) Write(row []*string) error {
	if len(row) != c.columns {
		return fmt.Errorf("csv row has %d fields, header has %d", len(row), c.columns)
	}
	record := make([]string, len(row))
	for i, v := range row {
		if v != nil {
			record[i] = *v
		}
	}
	return c.w.Write(record)
}

// Close flushes and closes the underlying file
func (c *CSVWriter) Close() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		c.out.Close()
		return fmt.Errorf("flush csv: %w", err)
	}
	return c.out.Close()
}
