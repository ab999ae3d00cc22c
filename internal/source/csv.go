package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/address-formatter/app/models"
)

// CSVReader reads legacy records from a delimited file with a header row
type CSVReader struct {
	r         io.Reader
	closer    io.Closer
	delimiter rune
	mapping   Mapping
}

// NewCSVReader opens path. delimiter defaults to ';'.
func NewCSVReader(path, delimiter string, mapping Mapping) (*CSVReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv source: %w", err)
	}
	r, err := NewCSVStreamReader(f, delimiter, mapping)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewCSVStreamReader reads from r
func NewCSVStreamReader(r io.Reader, delimiter string, mapping Mapping) (*CSVReader, error) {
	d := ';'
	if delimiter != "" {
		runes := []rune(delimiter)
		if len(runes) != 1 {
			return nil, fmt.Errorf("csv delimiter %q: expected one character", delimiter)
		}
		d = runes[0]
	}
	return &CSVReader{r: r, delimiter: d, mapping: mapping}, nil
}

func (c *CSVReader) Fetch(ctx context.Context, fn func(models.UnstructuredAddress) error) error {
	reader := csv.NewReader(c.r)
	reader.Comma = c.delimiter
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read csv header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}

	idIdx, ok := index[strings.ToLower(c.mapping.IDColumn)]
	if !ok {
		return fmt.Errorf("csv header has no %q column", c.mapping.IDColumn)
	}
	lineIdx := columnIndexes(index, c.mapping.LineColumns)
	attrIdx := columnIndexes(index, c.mapping.AttributeColumns)

	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read csv line %d: %w", line, err)
		}

		rec := c.mapping.record(field(row, idIdx), fields(row, lineIdx), fields(row, attrIdx))
		if err := fn(rec); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
}

func (c *CSVReader) Close() error {
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

// columnIndexes positions of cols in the header, -1 when absent
func columnIndexes(index map[string]int, cols []string) []int {
	out := make([]int, len(cols))
	for i, col := range cols {
		if idx, ok := index[strings.ToLower(col)]; ok {
			out[i] = idx
		} else {
			out[i] = -1
		}
	}
	return out
}

func field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func fields(row []string, idx []int) []*string {
	out := make([]*string, len(idx))
	for i, j := range idx {
		if j >= 0 && j < len(row) {
			v := row[j]
			out[i] = &v
		}
	}
	return out
}
