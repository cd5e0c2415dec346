package pointdb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/jobrunner/clustermap/internal/domain"
	"github.com/jobrunner/clustermap/internal/ports/output"
)

const sqliteDriver = "sqlite3_points_ro"

func init() {
	sql.Register(sqliteDriver, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			_, err := conn.Exec("PRAGMA query_only = ON", nil)
			return err
		},
	})
}

// SQLiteSource reads points from tables of a SQLite database file.
type SQLiteSource struct {
	db  *sql.DB
	cfg TableConfig
}

// OpenSQLite opens the database at path read-only.
func OpenSQLite(ctx context.Context, path string, cfg TableConfig) (*SQLiteSource, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open(sqliteDriver, "file:"+path+"?mode=ro")
	if err != nil {
		return nil, &domain.StorageError{Operation: "open", Key: path, Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &domain.StorageError{Operation: "open", Key: path, Err: err}
	}

	return &SQLiteSource{db: db, cfg: cfg}, nil
}

// List implements output.PointSource.
func (s *SQLiteSource) List(_ context.Context) ([]output.StorageObject, error) {
	return s.cfg.objects(), nil
}

// ReadPoints implements output.PointSource.
func (s *SQLiteSource) ReadPoints(ctx context.Context, table string) (*output.PointBatch, error) {
	if !s.cfg.hasTable(table) {
		return nil, fmt.Errorf("table %s: %w", table, domain.ErrDatasetNotFound)
	}

	rows, err := s.db.QueryContext(ctx, s.cfg.selectQuery(table))
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	c := &collector{table: table}
	for rows.Next() {
		var r row
		dest := []any{&r.id, &r.lat, &r.lon}
		if s.cfg.PropColumn != "" {
			dest = append(dest, &r.props)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", table, err)
		}
		c.add(r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", table, err)
	}

	return &c.batch, nil
}

// Close closes the database.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}
