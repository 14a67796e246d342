package source

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"abtest/domain/experiment"
	"abtest/internal"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// PostgresReader runs one query and renders every row as text, the way a file export would
type PostgresReader struct {
	db     *sqlx.DB
	query  string
	logger *internal.Logger
}

// NewPostgresReader wraps an open connection
func NewPostgresReader(db *sqlx.DB, query string, logger *internal.Logger) *PostgresReader {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &PostgresReader{db: db, query: query, logger: logger}
}

// OpenPostgres connects to databaseURL using the lib/pq driver
func OpenPostgres(ctx context.Context, databaseURL string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Read executes the query. NULL becomes the empty string, i.e. a missing value.
func (r *PostgresReader) Read(ctx context.Context) (experiment.RawTable, error) {
	start := time.Now()
	rows, err := r.db.QueryxContext(ctx, r.query)
	if err != nil {
		return experiment.RawTable{}, fmt.Errorf("failed to run source query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return experiment.RawTable{}, fmt.Errorf("failed to read columns: %w", err)
	}

	out := [][]string{columns}
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return experiment.RawTable{}, fmt.Errorf("failed to scan row %d: %w", len(out), err)
		}
		line := make([]string, len(values))
		for i, v := range values {
			line[i] = renderCell(v)
		}
		out = append(out, line)
	}
	if err := rows.Err(); err != nil {
		return experiment.RawTable{}, fmt.Errorf("failed to iterate rows: %w", err)
	}

	r.logger.Info("[PostgresReader] query returned %d rows in %.2fms", len(out)-1, float64(time.Since(start).Nanoseconds())/1e6)
	return TableFromRows(out)
}

func renderCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
