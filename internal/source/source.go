package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/address-formatter/app/config"
	"github.com/address-formatter/app/models"
)

// ErrStop returned by a Fetch callback ends the scan without error
var ErrStop = errors.New("stop fetching")

// Reader supplies legacy address records in source order
type Reader interface {
	// Fetch calls fn once per record. An error from fn other than ErrStop aborts the scan and is returned.
	Fetch(ctx context.Context, fn func(models.UnstructuredAddress) error) error
	Close() error
}

// Mapping which source columns feed the id, the six line slots and the pass-through attributes
type Mapping struct {
	IDColumn         string
	LineColumns      []string
	AttributeColumns []string
}

// MappingFromConfig builds a Mapping from the source section
func MappingFromConfig(cfg config.SourceConfig) (Mapping, error) {
	m := Mapping{
		IDColumn:         cfg.IDColumn,
		LineColumns:      cfg.LineColumns,
		AttributeColumns: cfg.AttributeColumns,
	}
	return m, m.Validate()
}

// Validate checks the mapping shape
func (m Mapping) Validate() error {
	if m.IDColumn == "" {
		return errors.New("id column is required")
	}
	if len(m.LineColumns) == 0 || len(m.LineColumns) > models.LineSlots {
		return fmt.Errorf("expected 1 to %d line columns, got %d", models.LineSlots, len(m.LineColumns))
	}
	return nil
}

// record builds an UnstructuredAddress from raw column values. Values are
// trimmed; blank ones become absent slots.
func (m Mapping) record(id string, lines []*string, attrs []*string) models.UnstructuredAddress {
	raw := models.UnstructuredAddress{ID: strings.TrimSpace(id)}
	for i := 0; i < len(lines) && i < models.LineSlots; i++ {
		if lines[i] != nil {
			raw.Lines[i] = strings.TrimSpace(*lines[i])
		}
	}
	for i, col := range m.AttributeColumns {
		if i >= len(attrs) || attrs[i] == nil {
			continue
		}
		v := strings.TrimSpace(*attrs[i])
		if v == "" {
			continue
		}
		if raw.Attributes == nil {
			raw.Attributes = make(map[string]string, len(m.AttributeColumns))
		}
		raw.Attributes[col] = v
	}
	return raw
}

// Open creates the reader configured in the source section
func Open(ctx context.Context, cfg config.SourceConfig) (Reader, error) {
	mapping, err := MappingFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("source mapping: %w", err)
	}

	switch cfg.Kind {
	case config.SourcePostgres:
		return NewPostgresReader(ctx, cfg.DSN, cfg.Table, cfg.Where, mapping)
	case config.SourceCSV:
		return NewCSVReader(cfg.CSVPath, cfg.CSVDelimiter, mapping)
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}

// SliceReader serves records from memory
type SliceReader struct {
	records []models.UnstructuredAddress
}

// NewSliceReader creates a SliceReader
func NewSliceReader(records []models.UnstructuredAddress) *SliceReader {
	return &SliceReader{records: records}
}

func (r *SliceReader) Fetch(ctx context.Context, fn func(models.UnstructuredAddress) error) error {
	for _, rec := range r.records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (r *SliceReader) Close() error {
	return nil
}
