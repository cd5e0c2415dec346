package pointdb

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jobrunner/clustermap/internal/domain"
)

func createTestDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "points.db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = db.Close() }()

	stmts := []string{
		`CREATE TABLE cafes (id INTEGER PRIMARY KEY, lat REAL, lon REAL, props TEXT)`,
		`INSERT INTO cafes VALUES (1, 52.52, 13.40, '{"name":"Kaffee"}')`,
		`INSERT INTO cafes VALUES (2, 52.53, 13.41, NULL)`,
		`INSERT INTO cafes VALUES (3, NULL, 13.42, NULL)`,
		`INSERT INTO cafes VALUES (4, 91, 13.43, NULL)`,
		`INSERT INTO cafes VALUES (5, 52.55, 13.44, 'not json')`,
		`CREATE TABLE parks (id TEXT PRIMARY KEY, lat REAL, lon REAL, props TEXT)`,
		`INSERT INTO parks VALUES ('tiergarten', 52.51, 13.36, '{}')`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("exec %q: %v", s, err)
		}
	}
	return path
}

func TestTableConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     TableConfig
		wantErr bool
	}{
		{"defaults", TableConfig{Tables: []string{"cafes"}}.WithDefaults(), false},
		{"with properties", TableConfig{Tables: []string{"cafes"}, PropColumn: "props"}.WithDefaults(), false},
		{"no tables", TableConfig{}.WithDefaults(), true},
		{"injection in table", TableConfig{Tables: []string{"cafes; DROP TABLE x"}}.WithDefaults(), true},
		{"quoted column", TableConfig{Tables: []string{"cafes"}, LatColumn: `lat"`}.WithDefaults(), true},
		{"leading digit", TableConfig{Tables: []string{"1cafes"}}.WithDefaults(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrInvalidOptions) {
				t.Errorf("Validate() error = %v, want ErrInvalidOptions", err)
			}
		})
	}
}

func TestSelectQuery(t *testing.T) {
	cfg := TableConfig{Tables: []string{"cafes"}, PropColumn: "props"}.WithDefaults()

	want := `SELECT "id", "lat", "lon", "props" FROM "cafes" ORDER BY "id"`
	if got := cfg.selectQuery("cafes"); got != want {
		t.Errorf("selectQuery() = %q, want %q", got, want)
	}
}

func TestSQLiteSourceReadPoints(t *testing.T) {
	path := createTestDB(t)
	ctx := context.Background()

	source, err := OpenSQLite(ctx, path, TableConfig{Tables: []string{"cafes", "parks"}, PropColumn: "props"})
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	defer func() { _ = source.Close() }()

	objects, err := source.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(objects) != 2 || objects[0].Key != "cafes" || objects[1].Key != "parks" {
		t.Fatalf("List() = %+v", objects)
	}

	batch, err := source.ReadPoints(ctx, "cafes")
	if err != nil {
		t.Fatalf("ReadPoints() error = %v", err)
	}
	if len(batch.Records) != 2 {
		t.Fatalf("len(Records) = %d, want 2", len(batch.Records))
	}
	if batch.Skipped != 3 {
		t.Errorf("Skipped = %d, want 3", batch.Skipped)
	}

	first := batch.Records[0]
	if first.Key != "cafes/1" {
		t.Errorf("Key = %q, want cafes/1", first.Key)
	}
	if first.Coordinate != domain.NewCoordinate(52.52, 13.40) {
		t.Errorf("Coordinate = %v", first.Coordinate)
	}
	if first.Properties["name"] != "Kaffee" || first.Properties["id"] != "1" {
		t.Errorf("Properties = %v", first.Properties)
	}

	parks, err := source.ReadPoints(ctx, "parks")
	if err != nil {
		t.Fatalf("ReadPoints(parks) error = %v", err)
	}
	if len(parks.Records) != 1 || parks.Records[0].Key != "parks/tiergarten" {
		t.Errorf("parks = %+v", parks.Records)
	}
}

func TestSQLiteSourceStableFingerprints(t *testing.T) {
	path := createTestDB(t)
	ctx := context.Background()

	source, err := OpenSQLite(ctx, path, TableConfig{Tables: []string{"cafes"}, PropColumn: "props"})
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	defer func() { _ = source.Close() }()

	a, _ := source.ReadPoints(ctx, "cafes")
	b, _ := source.ReadPoints(ctx, "cafes")
	for i := range a.Records {
		if a.Records[i].Fingerprint != b.Records[i].Fingerprint {
			t.Errorf("record %d fingerprint changed between reads", i)
		}
	}
}

func TestSQLiteSourceUnknownTable(t *testing.T) {
	path := createTestDB(t)
	source, err := OpenSQLite(context.Background(), path, TableConfig{Tables: []string{"cafes"}})
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	defer func() { _ = source.Close() }()

	_, err = source.ReadPoints(context.Background(), "parks")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("ReadPoints() error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteSourceReadOnly(t *testing.T) {
	path := createTestDB(t)
	source, err := OpenSQLite(context.Background(), path, TableConfig{Tables: []string{"cafes"}})
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	defer func() { _ = source.Close() }()

	if _, err := source.db.Exec(`DELETE FROM cafes`); err == nil {
		t.Error("writes should be rejected")
	}
}

func TestOpenSQLiteMissingFile(t *testing.T) {
	_, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "missing.db"), TableConfig{Tables: []string{"cafes"}})
	var se *domain.StorageError
	if !errors.As(err, &se) {
		t.Errorf("OpenSQLite() error = %v, want *StorageError", err)
	}
}

func TestPostgresSource(t *testing.T) {
	url := os.Getenv("CLUSTERMAP_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("CLUSTERMAP_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()

	source, err := OpenPostgres(ctx, PostgresConfig{URL: url}, TableConfig{Tables: []string{"points"}, PropColumn: "props"})
	if err != nil {
		t.Fatalf("OpenPostgres() error = %v", err)
	}
	defer source.Close()

	if _, err := source.ReadPoints(ctx, "points"); err != nil {
		t.Errorf("ReadPoints() error = %v", err)
	}
}

func TestPostgresQuery(t *testing.T) {
	s := &PostgresSource{cfg: TableConfig{Tables: []string{"poi"}, PropColumn: "tags"}.WithDefaults()}

	want := `SELECT "id", "lat"::float8, "lon"::float8, "tags"::text FROM "poi" ORDER BY "id"`
	if got := s.postgresQuery("poi"); got != want {
		t.Errorf("postgresQuery() = %q, want %q", got, want)
	}
}
