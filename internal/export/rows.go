package export

import (
	"context"
	"fmt"
	"sync"

	"github.com/address-formatter/app/models"
	"github.com/jackc/pgx/v5"
)

// AddressHeader destination columns followed by the pass-through attributes
func AddressHeader(attributes []string) []string {
	header := make([]string, 0, len(models.RowColumns)+len(attributes))
	header = append(header, models.RowColumns...)
	return append(header, attributes...)
}

// AddressWriter writes structured addresses as rows. Safe for concurrent use.
type AddressWriter struct {
	mu      sync.Mutex
	w       Writer
	columns []string
}

// NewAddressWriter writes addresses to w in the order of columns
func NewAddressWriter(w Writer, columns []string) *AddressWriter {
	return &AddressWriter{w: w, columns: columns}
}

func (a *AddressWriter) Write(ctx context.Context, addr *models.StructuredAddress) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	row := toNullable(addr.ToRow(), a.columns)

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.w.Write(row)
}

func (a *AddressWriter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.w.Close()
}

func toNullable(row map[string]interface{}, columns []string) []*string {
	out := make([]*string, len(columns))
	for i, c := range columns {
		if v, ok := row[c]; ok && v != nil {
			s := fmt.Sprint(v)
			out[i] = &s
		}
	}
	return out
}

// TxBeginner starts transactions, satisfied by *pgxpool.Pool
type TxBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// Query runs query in a read-only transaction and streams the result to a
// writer opened with the result's column names. It returns the row count.
func Query(ctx context.Context, db TxBeginner, query string, open func(header []string) (Writer, error)) (n int64, err error) {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return 0, fmt.Errorf("begin read-only transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("export query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = f.Name
	}

	w, err := open(header)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return n, fmt.Errorf("read row %d: %w", n+1, err)
		}
		if err := w.Write(FormatValues(values)); err != nil {
			return n, fmt.Errorf("write row %d: %w", n+1, err)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, fmt.Errorf("export query: %w", err)
	}
	return n, nil
}

// FormatValues renders driver values as text cells, nil stays NULL
func FormatValues(values []interface{}) []*string {
	out := make([]*string, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}
		var s string
		switch x := v.(type) {
		case string:
			s = x
		case []byte:
			s = string(x)
		case fmt.Stringer:
			s = x.String()
		default:
			s = fmt.Sprint(x)
		}
		out[i] = &s
	}
	return out
}
