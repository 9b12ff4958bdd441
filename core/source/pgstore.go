package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/fenrix-tec/ioxport/core/record"
	"github.com/fenrix-tec/ioxport/internal/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// PgStore reads datastore tables directly over PostgreSQL. Each resource id
// is the name of one table whose first column is a stable row id, which
// makes LIMIT/OFFSET paging deterministic.
type PgStore struct {
	dsn  string
	conn *pgx.Conn
}

// NewPgStore creates a PostgreSQL-backed record source with the given DSN.
func NewPgStore(dsn string) *PgStore {
	return &PgStore{dsn: dsn}
}

// Connect establishes and pings the database connection.
func (s *PgStore) Connect() error {
	if s.conn != nil {
		return nil // already connected
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Debug("Attempting to connect to database host: %s", sanitizeDSN(s.dsn))

	conn, err := pgx.Connect(ctx, s.dsn)
	if err != nil {
		return fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close(ctx)
		return fmt.Errorf("unable to ping database: %w", err)
	}

	logger.Debug("Database ping successful")
	s.conn = conn
	return nil
}

// Close closes the database connection.
func (s *PgStore) Close() error {
	if s.conn == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	logger.Debug("Closing database connection...")
	return s.conn.Close(ctx)
}

// FetchPage reads one page of rows ordered by the table's first column.
func (s *PgStore) FetchPage(ctx context.Context, resourceID string, limit, offset int) ([]record.Record, error) {
	if s.conn == nil {
		return nil, fmt.Errorf("database not connected")
	}

	sql := fmt.Sprintf(`SELECT * FROM %s ORDER BY 1 LIMIT $1 OFFSET $2`, quoteIdent(resourceID))
	rows, err := s.conn.Query(ctx, sql, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var page []record.Record

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("error reading row: %w", err)
		}

		rec := record.New()
		for i, fd := range fields {
			rec.Set(string(fd.Name), normalizePgValue(values[i], fd.DataTypeOID))
		}
		page = append(page, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return page, nil
}

// Fields maps the table's column types to the engine's semantic types via
// a zero-row probe query.
func (s *PgStore) Fields(ctx context.Context, resourceID string) ([]record.Field, error) {
	if s.conn == nil {
		return nil, fmt.Errorf("database not connected")
	}

	sql := fmt.Sprintf(`SELECT * FROM %s LIMIT 0`, quoteIdent(resourceID))
	rows, err := s.conn.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("probe query failed: %w", err)
	}
	defer rows.Close()

	descriptions := rows.FieldDescriptions()
	fields := make([]record.Field, 0, len(descriptions))
	for _, fd := range descriptions {
		fields = append(fields, record.Field{
			ID:   string(fd.Name),
			Type: semanticType(fd.DataTypeOID),
		})
	}

	rows.Close()
	return fields, rows.Err()
}

// Resource reports whether the backing table exists and is queryable.
func (s *PgStore) Resource(ctx context.Context, resourceID string) (ResourceInfo, error) {
	if s.conn == nil {
		return ResourceInfo{}, fmt.Errorf("database not connected")
	}

	var exists bool
	err := s.conn.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, resourceID).Scan(&exists)
	if err != nil {
		return ResourceInfo{}, fmt.Errorf("resource lookup failed: %w", err)
	}

	return ResourceInfo{
		ID:              resourceID,
		Name:            resourceID,
		DatastoreActive: exists,
	}, nil
}

func semanticType(oid uint32) string {
	switch oid {
	case pgtype.Int2OID, pgtype.Int4OID, pgtype.Int8OID:
		return "int"
	case pgtype.Float4OID, pgtype.Float8OID:
		return "float"
	case pgtype.NumericOID:
		return "numeric"
	case pgtype.DateOID:
		return "date"
	case pgtype.TimestampOID, pgtype.TimestamptzOID:
		return "timestamp"
	case pgtype.TimeOID:
		return "time"
	default:
		return "text"
	}
}

// normalizePgValue reduces pgx-native values to the engine's scalar set
// (string, number, bool, nil).
func normalizePgValue(v any, oid uint32) any {
	if v == nil {
		return nil
	}

	switch val := v.(type) {
	case time.Time:
		switch oid {
		case pgtype.DateOID:
			return val.Format("2006-01-02")
		default:
			return val.Format("2006-01-02 15:04:05")
		}
	case pgtype.Numeric:
		if !val.Valid {
			return nil
		}
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case [16]byte:
		return fmt.Sprintf("%x-%x-%x-%x-%x", val[0:4], val[4:6], val[6:8], val[8:10], val[10:16])
	case []byte:
		return string(val)
	default:
		return v
	}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// sanitizeDSN masks the password inside a DSN before logging.
func sanitizeDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "<invalid-dsn>"
	}

	var userInfo string
	if u.User != nil {
		username := u.User.Username()
		if _, hasPwd := u.User.Password(); hasPwd {
			userInfo = fmt.Sprintf("%s:***@", username)
		} else {
			userInfo = fmt.Sprintf("%s@", username)
		}
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	return fmt.Sprintf("%s://%s%s%s", u.Scheme, userInfo, u.Host, path)
}
