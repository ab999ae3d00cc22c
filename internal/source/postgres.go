package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/address-formatter/app/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresReader reads legacy records from one table
type PostgresReader struct {
	pool    *pgxpool.Pool
	owned   bool
	table   string
	where   string
	mapping Mapping
}

// NewPostgresReader connects to dsn and reads from table
func NewPostgresReader(ctx context.Context, dsn, table, where string, mapping Mapping) (*PostgresReader, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("error connecting to source database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging source database: %w", err)
	}

	r := NewPostgresReaderFromPool(pool, table, where, mapping)
	r.owned = true
	return r, nil
}

// NewPostgresReaderFromPool reads with a pool owned by the caller
func NewPostgresReaderFromPool(pool *pgxpool.Pool, table, where string, mapping Mapping) *PostgresReader {
	return &PostgresReader{pool: pool, table: table, where: where, mapping: mapping}
}

// Query SELECT statement used by Fetch
func (r *PostgresReader) Query() string {
	return BuildSelect(r.table, r.where, r.mapping)
}

func (r *PostgresReader) Fetch(ctx context.Context, fn func(models.UnstructuredAddress) error) error {
	rows, err := r.pool.Query(ctx, r.Query())
	if err != nil {
		return fmt.Errorf("query source table %s: %w", r.table, err)
	}
	defer rows.Close()

	nLines := models.LineSlots
	nAttrs := len(r.mapping.AttributeColumns)

	for rows.Next() {
		var id *string
		lines := make([]*string, nLines)
		attrs := make([]*string, nAttrs)

		dest := make([]any, 0, 1+nLines+nAttrs)
		dest = append(dest, &id)
		for i := range lines {
			dest = append(dest, &lines[i])
		}
		for i := range attrs {
			dest = append(dest, &attrs[i])
		}

		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("scan source row: %w", err)
		}

		var idValue string
		if id != nil {
			idValue = *id
		}
		if err := fn(r.mapping.record(idValue, lines, attrs)); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}

	return rows.Err()
}

func (r *PostgresReader) Close() error {
	if r.owned {
		r.pool.Close()
	}
	return nil
}

// BuildSelect renders the source query. Every column is read as text;
// missing line columns are padded with NULL so the row always has six slots.
func BuildSelect(table, where string, m Mapping) string {
	cols := make([]string, 0, 1+models.LineSlots+len(m.AttributeColumns))
	cols = append(cols, quoteIdent(m.IDColumn)+"::text")
	for i := 0; i < models.LineSlots; i++ {
		if i < len(m.LineColumns) && m.LineColumns[i] != "" {
			cols = append(cols, quoteIdent(m.LineColumns[i])+"::text")
		} else {
			cols = append(cols, fmt.Sprintf("NULL::text AS line%d", i+1))
		}
	}
	for _, a := range m.AttributeColumns {
		cols = append(cols, quoteIdent(a)+"::text")
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(quoteIdent(table))
	if strings.TrimSpace(where) != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}
	sb.WriteString(" ORDER BY ")
	sb.WriteString(quoteIdent(m.IDColumn))
	return sb.String()
}

// quoteIdent quotes a possibly schema-qualified identifier
func quoteIdent(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}
