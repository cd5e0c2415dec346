package pointdb

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jobrunner/clustermap/internal/domain"
	"github.com/jobrunner/clustermap/internal/ports/output"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	URL            string
	MaxConns       int32
	ConnectTimeout time.Duration
}

// PostgresSource reads points from PostgreSQL tables.
type PostgresSource struct {
	pool *pgxpool.Pool
	cfg  TableConfig
}

// OpenPostgres creates a connection pool and verifies it.
func OpenPostgres(ctx context.Context, pg PostgresConfig, cfg TableConfig) (*PostgresSource, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(pg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if pg.MaxConns > 0 {
		poolConfig.MaxConns = pg.MaxConns
	}
	if pg.ConnectTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = pg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &domain.StorageError{Operation: "ping", Err: fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)}
	}

	return &PostgresSource{pool: pool, cfg: cfg}, nil
}

// List implements output.PointSource.
func (s *PostgresSource) List(_ context.Context) ([]output.StorageObject, error) {
	return s.cfg.objects(), nil
}

// ReadPoints implements output.PointSource. The properties column is read
// as text so json and jsonb columns both work.
func (s *PostgresSource) ReadPoints(ctx context.Context, table string) (*output.PointBatch, error) {
	if !s.cfg.hasTable(table) {
		return nil, fmt.Errorf("table %s: %w", table, domain.ErrDatasetNotFound)
	}

	rows, err := s.pool.Query(ctx, s.postgresQuery(table))
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()

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

func (s *PostgresSource) postgresQuery(table string) string {
	c := s.cfg
	props := ""
	if c.PropColumn != "" {
		props = ", " + quote(c.PropColumn) + "::text"
	}
	return fmt.Sprintf("SELECT %s, %s::float8, %s::float8%s FROM %s ORDER BY %s", //#nosec G201 -- identifiers are validated
		quote(c.IDColumn), quote(c.LatColumn), quote(c.LonColumn), props, quote(table), quote(c.IDColumn))
}

// Ping checks the database connection.
func (s *PostgresSource) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the pool.
func (s *PostgresSource) Close() {
	s.pool.Close()
}
