package sossml2gpkg

import (
	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"encoding/binary"
	"errors"
	"fmt"
	"github.com/tidwall/geojson"
	"github.com/tidwall/geojson/geometry"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
)

const (
	gpkgApplicationID = 0x47504B47 // "GPKG"
	gpkgUserVersion   = 10200

	WGS84SRSID = 4326
	// WGS84WKT is the full OGC WKT definition of EPSG:4326.
	WGS84WKT = `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AXIS["Latitude",NORTH],AXIS["Longitude",EAST],AUTHORITY["EPSG","4326"]]`
)

var ErrNotGeoPackage = errors.New("not a GeoPackage point layer")

// OutputPath is where a provider's stations are written.
func OutputPath(dir, provider string) string {
	return filepath.Join(dir, LayerName(provider)+".gpkg")
}

func LayerName(provider string) string {
	return provider + "_sossml_stations"
}

var gpkgPragmas = map[string]string{
	"application_id": fmt.Sprint(gpkgApplicationID),
	"user_version":   fmt.Sprint(gpkgUserVersion),
}

const gpkgCoreSchema = `
CREATE TABLE gpkg_spatial_ref_sys (
	srs_name TEXT NOT NULL,
	srs_id INTEGER NOT NULL PRIMARY KEY,
	organization TEXT NOT NULL,
	organization_coordsys_id INTEGER NOT NULL,
	definition TEXT NOT NULL,
	description TEXT
);

CREATE TABLE gpkg_contents (
	table_name TEXT NOT NULL PRIMARY KEY,
	data_type TEXT NOT NULL,
	identifier TEXT UNIQUE,
	description TEXT DEFAULT '',
	last_change DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
	min_x DOUBLE,
	min_y DOUBLE,
	max_x DOUBLE,
	max_y DOUBLE,
	srs_id INTEGER,
	CONSTRAINT fk_gc_r_srs_id FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
);

CREATE TABLE gpkg_geometry_columns (
	table_name TEXT NOT NULL,
	column_name TEXT NOT NULL,
	geometry_type_name TEXT NOT NULL,
	srs_id INTEGER NOT NULL,
	z TINYINT NOT NULL,
	m TINYINT NOT NULL,
	CONSTRAINT pk_geom_cols PRIMARY KEY (table_name, column_name),
	CONSTRAINT fk_gc_tn FOREIGN KEY (table_name) REFERENCES gpkg_contents(table_name),
	CONSTRAINT fk_gc_srs FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys (srs_id)
);

INSERT INTO gpkg_spatial_ref_sys VALUES
	('Undefined cartesian SRS', -1, 'NONE', -1, 'undefined', 'undefined cartesian coordinate reference system'),
	('Undefined geographic SRS', 0, 'NONE', 0, 'undefined', 'undefined geographic coordinate reference system');
`

// WriteGeoPackage writes t as a point layer, replacing any file at outputPath.
// The raw timestamp columns are dropped; their ISO strings are kept.
func WriteGeoPackage(outputPath string, layer string, t *Table) (err error) {
	if outputPath == "" {
		panic("Missing outputPath")
	}
	if layer == "" {
		panic("Missing layer")
	}

	slog.Info(fmt.Sprintf("Writing %d station(s) to %s", t.Len(), outputPath))

	err = os.Remove(outputPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	db, err := sqlite.OpenConn(outputPath, sqlite.SQLITE_OPEN_READWRITE|sqlite.SQLITE_OPEN_CREATE)
	if err != nil {
		return err
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	for pragma, value := range gpkgPragmas {
		err = sqlitex.Exec(db, "PRAGMA "+pragma+" = "+value, sqlitexNoop)
		if err != nil {
			return err
		}
	}

	if err := writeLayer(db, layer, t.Without(timestampColumns...)); err != nil {
		return err
	}

	err = db.Close()
	db = nil
	if err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("Wrote %s", outputPath))
	return nil
}

func writeLayer(db *sqlite.Conn, layer string, t *Table) (err error) {
	defer sqlitex.Save(db)(&err)

	if err := sqlitex.ExecScript(db, gpkgCoreSchema); err != nil {
		return err
	}
	err = sqlitex.Exec(db, "INSERT INTO gpkg_spatial_ref_sys VALUES (?, ?, ?, ?, ?, ?)", sqlitexNoop,
		"WGS 84 geodetic", WGS84SRSID, "EPSG", WGS84SRSID, WGS84WKT, "longitude/latitude coordinates in decimal degrees on the WGS 84 spheroid")
	if err != nil {
		return err
	}

	columnFragments := []string{"fid INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL", "geom POINT"}
	for _, column := range t.Columns {
		schema, ok := stationSchema.column(column)
		if !ok {
			return fmt.Errorf("no schema for column %s", column)
		}
		columnFragments = append(columnFragments, quoteIdent(column)+" "+schema.SQLType)
	}
	query := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(layer), strings.Join(columnFragments, ", "))
	if err := sqlitex.ExecTransient(db, query, sqlitexNoop); err != nil {
		return err
	}

	minX, minY, maxX, maxY := extent(t.Records)
	err = sqlitex.Exec(db, "INSERT INTO gpkg_contents (table_name, data_type, identifier, min_x, min_y, max_x, max_y, srs_id) VALUES (?, 'features', ?, ?, ?, ?, ?, ?)",
		sqlitexNoop, layer, layer, minX, minY, maxX, maxY, WGS84SRSID)
	if err != nil {
		return err
	}
	err = sqlitex.Exec(db, "INSERT INTO gpkg_geometry_columns VALUES (?, 'geom', 'POINT', ?, 0, 0)", sqlitexNoop, layer, WGS84SRSID)
	if err != nil {
		return err
	}

	var quoted, argFragments []string
	for i, column := range t.Columns {
		quoted = append(quoted, quoteIdent(column))
		argFragments = append(argFragments, fmt.Sprintf("?%d", i+2))
	}
	query = fmt.Sprintf("INSERT INTO %s (geom, %s) VALUES (?1, %s)",
		quoteIdent(layer), strings.Join(quoted, ", "), strings.Join(argFragments, ", "))
	insertStmt, err := db.Prepare(query)
	if err != nil {
		return err
	}

	for _, r := range t.Records {
		if err := insertStmt.Reset(); err != nil {
			return err
		}
		if err := insertStmt.ClearBindings(); err != nil {
			return err
		}

		blob, err := encodePoint(r.Point())
		if err != nil {
			return fmt.Errorf("station %s: %w", r.StationURN, err)
		}
		insertStmt.BindBytes(1, blob)
		for i, column := range t.Columns {
			param := i + 2
			switch v := r.Value(column).(type) {
			case float64:
				insertStmt.BindFloat(param, v)
			case string:
				if v == "" {
					insertStmt.BindNull(param)
				} else {
					insertStmt.BindText(param, v)
				}
			default:
				return fmt.Errorf("column %s cannot be stored in a GeoPackage (%T)", column, v)
			}
		}

		if _, err := insertStmt.Step(); err != nil {
			return err
		}
	}
	slog.Info(fmt.Sprintf("Wrote %d rows to layer %s", t.Len(), layer))
	return nil
}

// Point is the station location with x=lon, y=lat.
func (r StationRecord) Point() *geojson.Point {
	return geojson.NewPoint(geometry.Point{X: r.Lon, Y: r.Lat})
}

func extent(records []StationRecord) (minX, minY, maxX, maxY float64) {
	if len(records) == 0 {
		return 0, 0, 0, 0
	}
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, r := range records {
		minX = math.Min(minX, r.Lon)
		minY = math.Min(minY, r.Lat)
		maxX = math.Max(maxX, r.Lon)
		maxY = math.Max(maxY, r.Lat)
	}
	return minX, minY, maxX, maxY
}

const gpkgHeaderSize = 8

// encodePoint produces a GeoPackage binary geometry: an 8 byte header without an
// envelope followed by little endian WKB.
func encodePoint(p *geojson.Point) ([]byte, error) {
	c := p.Center()
	wkbPoint, err := wkb.Marshal(geom.NewPointFlat(geom.XY, []float64{c.X, c.Y}), wkb.NDR)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, gpkgHeaderSize+len(wkbPoint))
	buf = append(buf, 'G', 'P', 0, 0x01)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(WGS84SRSID))
	return append(buf, wkbPoint...), nil
}

func decodePoint(b []byte) (*geojson.Point, error) {
	if len(b) < gpkgHeaderSize || b[0] != 'G' || b[1] != 'P' {
		return nil, fmt.Errorf("%w: bad geometry header", ErrNotGeoPackage)
	}
	flags := b[3]
	if flags&0x10 != 0 {
		return nil, fmt.Errorf("%w: empty geometry", ErrNotGeoPackage)
	}
	envelopeSizes := []int{0, 32, 48, 48, 64}
	envelope := int(flags>>1) & 0x07
	if envelope >= len(envelopeSizes) || len(b) < gpkgHeaderSize+envelopeSizes[envelope] {
		return nil, fmt.Errorf("%w: bad envelope indicator %d", ErrNotGeoPackage, envelope)
	}

	g, err := wkb.Unmarshal(b[gpkgHeaderSize+envelopeSizes[envelope]:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotGeoPackage, err)
	}
	point, ok := g.(*geom.Point)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a point", ErrNotGeoPackage, g)
	}
	return geojson.NewPoint(geometry.Point{X: point.X(), Y: point.Y()}), nil
}

// Layer is a GeoPackage point layer read back into memory.
type Layer struct {
	Name          string
	SRSID         int64
	SRSDefinition string
	Columns       []string
	Features      []Feature
}

type Feature struct {
	Point      *geojson.Point
	Properties map[string]any // nil for NULL
}

func (f Feature) Lon() float64 { return f.Point.Center().X }
func (f Feature) Lat() float64 { return f.Point.Center().Y }

// ReadGeoPackage reads the named point layer. If layer is "" the first features
// layer listed in gpkg_contents is used.
func ReadGeoPackage(inputPath string, layer string) (*Layer, error) {
	db, err := sqlite.OpenConn(inputPath, sqlite.SQLITE_OPEN_READONLY)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	return readLayer(db, layer)
}

func readLayer(db *sqlite.Conn, layer string) (*Layer, error) {
	out := &Layer{}
	err := sqlitex.Exec(db, `SELECT c.table_name, c.srs_id, s.definition
		FROM gpkg_contents c JOIN gpkg_spatial_ref_sys s ON s.srs_id = c.srs_id
		WHERE c.data_type = 'features' AND (?1 = '' OR c.table_name = ?1)
		ORDER BY c.table_name LIMIT 1`, func(stmt *sqlite.Stmt) error {
		out.Name = stmt.GetText("table_name")
		out.SRSID = stmt.GetInt64("srs_id")
		out.SRSDefinition = stmt.GetText("definition")
		return nil
	}, layer)
	if err != nil {
		return nil, err
	}
	if out.Name == "" {
		return nil, fmt.Errorf("%w: no features layer %q", ErrNotGeoPackage, layer)
	}

	err = sqlitex.Exec(db, "SELECT name FROM pragma_table_info(?) ORDER BY cid", func(stmt *sqlite.Stmt) error {
		name := stmt.GetText("name")
		if name != "fid" && name != "geom" {
			out.Columns = append(out.Columns, name)
		}
		return nil
	}, out.Name)
	if err != nil {
		return nil, err
	}

	err = sqlitex.Exec(db, "SELECT * FROM "+quoteIdent(out.Name)+" ORDER BY fid", func(stmt *sqlite.Stmt) error {
		blob, err := io.ReadAll(stmt.GetReader("geom"))
		if err != nil {
			return err
		}
		point, err := decodePoint(blob)
		if err != nil {
			return err
		}

		f := Feature{Point: point, Properties: make(map[string]any, len(out.Columns))}
		for i := range stmt.ColumnCount() {
			name := stmt.ColumnName(i)
			if name == "fid" || name == "geom" {
				continue
			}
			switch stmt.ColumnType(i) {
			case sqlite.SQLITE_NULL:
				f.Properties[name] = nil
			case sqlite.SQLITE_FLOAT:
				f.Properties[name] = stmt.ColumnFloat(i)
			case sqlite.SQLITE_INTEGER:
				f.Properties[name] = stmt.ColumnInt64(i)
			default:
				f.Properties[name] = stmt.ColumnText(i)
			}
		}
		out.Features = append(out.Features, f)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sqlitexNoop(*sqlite.Stmt) error { return nil }
