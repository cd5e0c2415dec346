// Package pointdb reads point datasets from SQL tables.
package pointdb

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jobrunner/clustermap/internal/adapters/pointfile"
	"github.com/jobrunner/clustermap/internal/domain"
	"github.com/jobrunner/clustermap/internal/ports/output"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// TableConfig describes where points live in a database.
type TableConfig struct {
	Tables     []string
	IDColumn   string
	LatColumn  string
	LonColumn  string
	PropColumn string // optional JSON column
}

// WithDefaults fills empty column names.
func (c TableConfig) WithDefaults() TableConfig {
	if c.IDColumn == "" {
		c.IDColumn = "id"
	}
	if c.LatColumn == "" {
		c.LatColumn = "lat"
	}
	if c.LonColumn == "" {
		c.LonColumn = "lon"
	}
	return c
}

// Validate checks that all names are plain SQL identifiers.
func (c TableConfig) Validate() error {
	if len(c.Tables) == 0 {
		return &domain.ConfigError{Field: "source.tables", Message: "at least one table is required"}
	}
	names := map[string]string{
		"source.id_column":  c.IDColumn,
		"source.lat_column": c.LatColumn,
		"source.lon_column": c.LonColumn,
	}
	if c.PropColumn != "" {
		names["source.properties_column"] = c.PropColumn
	}
	for i, t := range c.Tables {
		names[fmt.Sprintf("source.tables[%d]", i)] = t
	}
	for field, name := range names {
		if !identifier.MatchString(name) {
			return &domain.ConfigError{Field: field, Message: fmt.Sprintf("invalid identifier %q", name)}
		}
	}
	return nil
}

func (c TableConfig) hasTable(table string) bool {
	for _, t := range c.Tables {
		if t == table {
			return true
		}
	}
	return false
}

// selectQuery builds the point query for table. Names are validated before.
func (c TableConfig) selectQuery(table string) string {
	cols := []string{quote(c.IDColumn), quote(c.LatColumn), quote(c.LonColumn)}
	if c.PropColumn != "" {
		cols = append(cols, quote(c.PropColumn))
	}
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", //#nosec G201 -- identifiers are validated
		strings.Join(cols, ", "), quote(table), quote(c.IDColumn))
}

func quote(name string) string {
	return `"` + name + `"`
}

// objects lists the configured tables. Tables carry no change marker, so
// every listing reports them as modified now.
func (c TableConfig) objects() []output.StorageObject {
	now := time.Now().Unix()
	objects := make([]output.StorageObject, len(c.Tables))
	for i, t := range c.Tables {
		objects[i] = output.StorageObject{Key: t, LastModified: now}
	}
	return objects
}

// row is one scanned database row.
type row struct {
	id    any
	lat   *float64
	lon   *float64
	props *string
}

// collector turns rows into a point batch.
type collector struct {
	table string
	batch output.PointBatch
}

func (c *collector) add(r row) {
	if r.lat == nil || r.lon == nil {
		c.batch.Skipped++
		return
	}
	coord := domain.NewCoordinate(*r.lat, *r.lon)
	if coord.Validate() != nil {
		c.batch.Skipped++
		return
	}

	props := map[string]any{}
	if r.props != nil && *r.props != "" {
		if err := json.Unmarshal([]byte(*r.props), &props); err != nil {
			c.batch.Skipped++
			return
		}
	}
	id := rowID(r.id)
	props["id"] = id

	c.batch.Records = append(c.batch.Records, domain.PointRecord{
		Key:         c.table + "/" + id,
		Coordinate:  coord,
		Properties:  props,
		Fingerprint: pointfile.Fingerprint(coord, props),
	})
}

func rowID(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case []byte:
		return string(id)
	case int64:
		return strconv.FormatInt(id, 10)
	case int32:
		return strconv.FormatInt(int64(id), 10)
	default:
		return fmt.Sprint(id)
	}
}
