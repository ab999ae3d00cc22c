package sink

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/address-formatter/app/config"
	"github.com/address-formatter/app/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresSink inserts addresses into the destination table and links the
// new row back to the legacy record
type PostgresSink struct {
	pool       *pgxpool.Pool
	owned      bool
	table      string
	idColumn   string
	columns    map[string]config.ColumnConfig
	attributes []string
	link       config.LinkConfig
	logger     *zap.Logger
}

// NewPostgresSink connects to the destination database. attributes are the
// pass-through columns carried by the records.
func NewPostgresSink(ctx context.Context, dsn string, cfg config.SinkConfig, attributes []string, logger *zap.Logger) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("error connecting to destination database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging destination database: %w", err)
	}

	s := &PostgresSink{
		pool:       pool,
		owned:      true,
		table:      cfg.Table,
		idColumn:   cfg.IDColumn,
		columns:    cfg.Columns,
		attributes: attributes,
		link:       cfg.Link,
		logger:     logger,
	}
	if s.idColumn == "" {
		s.idColumn = "id"
	}

	if cfg.CreateTable {
		if err := s.EnsureTable(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return s, nil
}

// EnsureTable creates the destination table when it does not exist
func (s *PostgresSink) EnsureTable(ctx context.Context) error {
	stmt := BuildCreateTable(s.table, s.idColumn, s.columns, s.attributes)
	if _, err := s.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	s.logger.Info("Destination table ready", zap.String("table", s.table))
	return nil
}

func (s *PostgresSink) Write(ctx context.Context, addr *models.StructuredAddress) error {
	insert, args := BuildInsert(s.table, ApplyColumns(addr.ToRow(), s.columns))

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, insert, args...); err != nil {
		return fmt.Errorf("insert address %s: %w", addr.ID, err)
	}

	if update := BuildLinkUpdate(s.link, s.table, s.idColumn, columnName(models.ColOldID, s.columns)); update != "" {
		tag, err := tx.Exec(ctx, update, addr.ID)
		if err != nil {
			return fmt.Errorf("link address %s: %w", addr.ID, err)
		}
		if tag.RowsAffected() == 0 {
			s.logger.Debug("No legacy row to link", zap.String("old_id", addr.ID))
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresSink) Close() error {
	if s.owned {
		s.pool.Close()
	}
	return nil
}

// ApplyColumns renames columns and applies fixed values and defaults.
// A column renamed to "-" is left out of the insert.
func ApplyColumns(row map[string]interface{}, columns map[string]config.ColumnConfig) map[string]interface{} {
	out := make(map[string]interface{}, len(row))
	for key, value := range row {
		meta, ok := columns[key]
		if !ok {
			out[key] = value
			continue
		}
		if meta.Name == "-" {
			continue
		}
		switch {
		case meta.Value != "":
			value = meta.Value
		case meta.Default != "" && isBlank(value):
			value = meta.Default
		}
		out[columnName(key, columns)] = value
	}
	return out
}

func columnName(key string, columns map[string]config.ColumnConfig) string {
	if meta, ok := columns[key]; ok && meta.Name != "" && meta.Name != "-" {
		return meta.Name
	}
	return key
}

func isBlank(v interface{}) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

// BuildInsert renders an INSERT with columns in sorted order
func BuildInsert(table string, row map[string]interface{}) (string, []interface{}) {
	cols := make([]string, 0, len(row))
	for c := range row {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	args := make([]interface{}, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = row[c]
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
	return stmt, args
}

// BuildLinkUpdate renders the correlation update, empty when no link table is configured.
// The only parameter is the legacy id.
func BuildLinkUpdate(link config.LinkConfig, table, idColumn, oldIDColumn string) string {
	if link.Table == "" || link.RefColumn == "" || link.OrigColumn == "" {
		return ""
	}
	return fmt.Sprintf("UPDATE %s SET %s = (SELECT d.%s FROM %s d WHERE d.%s = $1 ORDER BY d.%s DESC LIMIT 1) WHERE %s::text = $1",
		quoteIdent(link.Table), quoteIdent(link.RefColumn),
		quoteIdent(idColumn), quoteIdent(table), quoteIdent(oldIDColumn), quoteIdent(idColumn),
		quoteIdent(link.OrigColumn))
}

// BuildCreateTable renders the destination DDL
func BuildCreateTable(table, idColumn string, columns map[string]config.ColumnConfig, attributes []string) string {
	types := map[string]string{
		models.ColPostalCode:       "INTEGER NOT NULL DEFAULT 0",
		models.ColPostalCodeSuffix: "SMALLINT",
		models.ColPostalCodeLong:   "INTEGER NOT NULL DEFAULT 0",
		models.ColCountry:          "VARCHAR(2) NOT NULL",
		models.ColOldID:            "TEXT NOT NULL",
	}

	defs := []string{quoteIdent(idColumn) + " BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY"}
	for _, key := range append(append([]string{}, models.RowColumns...), attributes...) {
		if meta, ok := columns[key]; ok && meta.Name == "-" {
			continue
		}
		typ, ok := types[key]
		if !ok {
			typ = "TEXT"
		}
		defs = append(defs, quoteIdent(columnName(key, columns))+" "+typ)
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", quoteIdent(table), strings.Join(defs, ",\n\t"))
}

func quoteIdent(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}
