package rag

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// SQLTableConfig defines which table and columns a SQLLoader indexes.
type SQLTableConfig struct {
	Table           string   `mapstructure:"table" yaml:"table"`
	Columns         []string `mapstructure:"columns" yaml:"columns"`                   // columns concatenated for content
	IDColumn        string   `mapstructure:"id_column" yaml:"id_column"`               // primary key or unique identifier
	UpdatedColumn   string   `mapstructure:"updated_column" yaml:"updated_column"`     // column tracking updates, enables change detection
	WhereClause     string   `mapstructure:"where_clause" yaml:"where_clause"`         // optional filter
	MetadataColumns []string `mapstructure:"metadata_columns" yaml:"metadata_columns"` // columns carried as metadata
}

// SQLLoaderConfig configures a SQLLoader.
type SQLLoaderConfig struct {
	DB      *sql.DB
	Driver  string
	Tables  []SQLTableConfig
	MaxRows int
}

// SQLLoader streams rows from one or more SQL tables as documents. Each
// row becomes a document with id "<driver>:<table>:<row id>", its content
// columns concatenated. The caller owns the *sql.DB lifecycle; Close is a
// no-op here.
type SQLLoader struct {
	db      *sql.DB
	driver  string
	tables  []SQLTableConfig
	maxRows int
}

// NewSQLLoader creates a Loader over one or more SQL tables.
func NewSQLLoader(cfg SQLLoaderConfig) (*SQLLoader, error) {
	if cfg.DB == nil {
		return nil, fmt.Errorf("rag: sql loader requires a database connection")
	}
	if cfg.Driver == "" {
		return nil, fmt.Errorf("rag: sql loader requires a driver name")
	}
	if len(cfg.Tables) == 0 {
		return nil, fmt.Errorf("rag: sql loader requires at least one table configuration")
	}
	return &SQLLoader{db: cfg.DB, driver: cfg.Driver, tables: cfg.Tables, maxRows: cfg.MaxRows}, nil
}

// Load streams one LoadResult per row across all configured tables. A
// query or scan failure on one table is reported as a Failure and does
// not stop the others.
func (l *SQLLoader) Load(ctx context.Context) (<-chan LoadResult, error) {
	out := make(chan LoadResult, 100)

	go func() {
		defer close(out)
		for _, table := range l.tables {
			if err := l.loadTable(ctx, table, out); err != nil {
				select {
				case out <- Failure(table.Table, fmt.Errorf("rag: index table %s: %w", table.Table, err), true):
				case <-ctx.Done():
					return
				}
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
		}
	}()

	return out, nil
}

func (l *SQLLoader) loadTable(ctx context.Context, cfg SQLTableConfig, out chan<- LoadResult) error {
	columns := append(append([]string{}, cfg.Columns...), cfg.IDColumn)
	if cfg.UpdatedColumn != "" {
		columns = append(columns, cfg.UpdatedColumn)
	}
	columns = append(columns, cfg.MetadataColumns...)

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(columns, ", "), cfg.Table)
	if cfg.WhereClause != "" {
		query += " WHERE " + cfg.WhereClause
	}
	if l.maxRows > 0 {
		query += fmt.Sprintf(" LIMIT %d", l.maxRows)
	}

	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	colNames, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("columns: %w", err)
	}

	idIdx, updatedIdx := -1, -1
	for i, col := range colNames {
		if col == cfg.IDColumn {
			idIdx = i
		}
		if cfg.UpdatedColumn != "" && col == cfg.UpdatedColumn {
			updatedIdx = i
		}
	}
	if idIdx == -1 {
		return fmt.Errorf("id column %s not found in result set", cfg.IDColumn)
	}

	metadataStart := len(cfg.Columns) + 1
	if cfg.UpdatedColumn != "" {
		metadataStart++
	}

	for rows.Next() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		values := make([]any, len(colNames))
		ptrs := make([]any, len(colNames))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			select {
			case out <- Failure(cfg.Table, fmt.Errorf("scan row: %w", err), false):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		id := stringifyValue(values[idIdx])

		contentParts := make([]string, 0, len(cfg.Columns))
		for i := range cfg.Columns {
			if values[i] != nil {
				contentParts = append(contentParts, stringifyValue(values[i]))
			}
		}
		content := strings.Join(contentParts, "\n\n")

		var updatedAt time.Time
		if updatedIdx >= 0 && values[updatedIdx] != nil {
			updatedAt = parseTimeValue(values[updatedIdx])
		}

		metadata := map[string]any{"table": cfg.Table, "row_id": id}
		for i, col := range cfg.MetadataColumns {
			idx := metadataStart + i
			if idx < len(values) && values[idx] != nil {
				metadata[col] = values[idx]
			}
		}

		docID := fmt.Sprintf("%s:%s:%s", l.driver, cfg.Table, id)
		doc := Document{
			ID:         docID,
			Content:    content,
			SourcePath: fmt.Sprintf("%s/%s", cfg.Table, id),
			MimeType:   "text/plain",
			Size:       int64(len(content)),
			Metadata:   metadata,
		}
		if !updatedAt.IsZero() {
			doc.Version = &DocumentVersion{ContentHash: contentHash(content), UpdatedAt: updatedAt}
		} else {
			doc.Version = &DocumentVersion{ContentHash: contentHash(content)}
		}

		select {
		case out <- Success(doc):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return rows.Err()
}

// Close is a no-op: the *sql.DB is owned and closed by the caller.
func (l *SQLLoader) Close() error { return nil }

func stringifyValue(v any) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprintf("%v", v)
}

func parseTimeValue(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed
		}
	case []byte:
		if parsed, err := time.Parse(time.RFC3339, string(t)); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

var _ Loader = (*SQLLoader)(nil)
