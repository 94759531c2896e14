package sossml2gpkg

import (
	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"fmt"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/geojson"
	"github.com/tidwall/geojson/geometry"
	"github.com/tidwall/gjson"
	"os"
	"testing"
)

func sampleTable(t *testing.T) *Table {
	t.Helper()
	return NewTable([]StationRecord{
		extractSample(t, aplChabaURN, "apl_chaba.xml"),
		extractSample(t, chaKwaURN, "cha_kwa.xml"),
	})
}

func writeSampleGeoPackage(t *testing.T) string {
	t.Helper()
	outputPath := OutputPath(testTempdir(t), "nanoos")
	require.NoError(t, WriteGeoPackage(outputPath, LayerName("nanoos"), sampleTable(t)))
	return outputPath
}

func TestGeoPackageRoundTrip(t *testing.T) {
	table := sampleTable(t)
	outputPath := writeSampleGeoPackage(t)

	layer, err := ReadGeoPackage(outputPath, LayerName("nanoos"))
	require.NoError(t, err)

	assert.Equal(t, "nanoos_sossml_stations", layer.Name)
	assert.Equal(t, int64(WGS84SRSID), layer.SRSID)
	assert.Equal(t, WGS84WKT, layer.SRSDefinition)
	assert.Equal(t, table.Without(timestampColumns...).Columns, layer.Columns)
	require.Len(t, layer.Features, table.Len())

	for i, f := range layer.Features {
		rec := table.Records[i]
		assert.InDelta(t, rec.Lon, f.Lon(), 1e-6)
		assert.InDelta(t, rec.Lat, f.Lat(), 1e-6)

		for _, col := range layer.Columns {
			switch want := rec.Value(col).(type) {
			case float64:
				assert.InDelta(t, want, f.Properties[col], 1e-6, col)
			case string:
				if want == "" {
					assert.Nil(t, f.Properties[col], col)
				} else {
					assert.Equal(t, want, f.Properties[col], col)
				}
			}
		}
	}
}

func TestGeoPackageMetadata(t *testing.T) {
	outputPath := writeSampleGeoPackage(t)

	conn, err := sqlite.OpenConn(outputPath, sqlite.SQLITE_OPEN_READONLY)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	pragma := func(name string) int64 {
		var v int64
		err := sqlitex.Exec(conn, "PRAGMA "+name, func(stmt *sqlite.Stmt) error {
			v = stmt.ColumnInt64(0)
			return nil
		})
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, int64(0x47504B47), pragma("application_id"))
	assert.Equal(t, int64(10200), pragma("user_version"))

	var journalMode string
	err = sqlitex.Exec(conn, "PRAGMA journal_mode", func(stmt *sqlite.Stmt) error {
		journalMode = stmt.ColumnText(0)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "delete", journalMode)
	_, err = os.Stat(outputPath + "-wal")
	assert.ErrorIs(t, err, os.ErrNotExist)

	var geometryType string
	var srsID int64
	err = sqlitex.Exec(conn, "SELECT geometry_type_name, srs_id FROM gpkg_geometry_columns WHERE table_name = ?", func(stmt *sqlite.Stmt) error {
		geometryType = stmt.GetText("geometry_type_name")
		srsID = stmt.GetInt64("srs_id")
		return nil
	}, "nanoos_sossml_stations")
	require.NoError(t, err)
	assert.Equal(t, "POINT", geometryType)
	assert.Equal(t, int64(4326), srsID)

	var minX, maxY float64
	err = sqlitex.Exec(conn, "SELECT min_x, max_y FROM gpkg_contents", func(stmt *sqlite.Stmt) error {
		minX = stmt.GetFloat("min_x")
		maxY = stmt.GetFloat("max_y")
		return nil
	})
	require.NoError(t, err)
	assert.InDelta(t, -124.9492, minX, 1e-9)
	assert.InDelta(t, 48.3689, maxY, 1e-9)

	var timestampColumnsFound int
	err = sqlitex.Exec(conn, "SELECT count(*) AS count FROM pragma_table_info(?) WHERE name IN ('starting', 'ending')", func(stmt *sqlite.Stmt) error {
		timestampColumnsFound = int(stmt.GetInt64("count"))
		return nil
	}, "nanoos_sossml_stations")
	require.NoError(t, err)
	assert.Equal(t, 0, timestampColumnsFound)
}

func TestWriteGeoPackageReplacesExisting(t *testing.T) {
	outputPath := writeSampleGeoPackage(t)

	one := sampleTable(t).Filter(func(r StationRecord) bool { return r.StationURN == chaKwaURN })
	require.NoError(t, WriteGeoPackage(outputPath, LayerName("nanoos"), one))

	layer, err := ReadGeoPackage(outputPath, "")
	require.NoError(t, err)
	require.Len(t, layer.Features, 1)
	assert.Equal(t, chaKwaURN, layer.Features[0].Properties["station_urn"])
}

func TestWriteGeoPackageEmpty(t *testing.T) {
	outputPath := OutputPath(testTempdir(t), "empty")
	require.NoError(t, WriteGeoPackage(outputPath, LayerName("empty"), NewTable(nil)))

	layer, err := ReadGeoPackage(outputPath, "")
	require.NoError(t, err)
	assert.Empty(t, layer.Features)
}

func TestPointEncoding(t *testing.T) {
	blob, err := encodePoint(geojson.NewPoint(geometry.Point{X: -124.9492, Y: 47.9659}))
	require.NoError(t, err)
	require.Len(t, blob, 29)
	assert.Equal(t, []byte{'G', 'P', 0, 1, 0xE6, 0x10, 0, 0}, blob[:8])
	assert.Equal(t, []byte{1, 1, 0, 0, 0}, blob[8:13], "little endian WKB point")

	p, err := decodePoint(blob)
	require.NoError(t, err)
	assert.Equal(t, -124.9492, p.Center().X)
	assert.Equal(t, 47.9659, p.Center().Y)

	_, err = decodePoint([]byte("nope"))
	require.ErrorIs(t, err, ErrNotGeoPackage)

	_, err = decodePoint(blob[:20])
	require.ErrorIs(t, err, ErrNotGeoPackage)
}

func TestDecodePointWithEnvelope(t *testing.T) {
	blob, err := encodePoint(geojson.NewPoint(geometry.Point{X: -124.6195, Y: 48.3689}))
	require.NoError(t, err)

	withEnvelope := append([]byte{}, blob[:8]...)
	withEnvelope[3] |= 0x02 // xy envelope
	withEnvelope = append(withEnvelope, make([]byte, 32)...)
	withEnvelope = append(withEnvelope, blob[8:]...)

	p, err := decodePoint(withEnvelope)
	require.NoError(t, err)
	assert.Equal(t, -124.6195, p.Center().X)
	assert.Equal(t, 48.3689, p.Center().Y)
}

func TestExportCSV(t *testing.T) {
	outputPath := writeSampleGeoPackage(t)
	csvPath := testTempdir(t) + "/stations.csv"

	require.NoError(t, ExportCSV(outputPath, csvPath))
	assertFileEqual(t, "./sample_data/nanoos_sossml_stations.csv", csvPath)
}

func TestExportGeoJSON(t *testing.T) {
	outputPath := writeSampleGeoPackage(t)
	jsonPath := testTempdir(t) + "/stations.geojson"

	require.NoError(t, ExportGeoJSON(outputPath, jsonPath))

	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	doc := string(data)
	require.True(t, gjson.Valid(doc))

	assert.Equal(t, "FeatureCollection", gjson.Get(doc, "type").String())
	assert.Equal(t, int64(2), gjson.Get(doc, "features.#").Int())
	assert.Equal(t, aplChabaURN, gjson.Get(doc, "features.0.id").String())
	assert.Equal(t, "Point", gjson.Get(doc, "features.0.geometry.type").String())
	assert.InDelta(t, -124.9492, gjson.Get(doc, "features.0.geometry.coordinates.0").Float(), 1e-9)
	assert.InDelta(t, 47.9659, gjson.Get(doc, "features.0.geometry.coordinates.1").Float(), 1e-9)
	assert.Equal(t, "46099", gjson.Get(doc, "features.0.properties.wmoID").String())
	assert.Equal(t, gjson.Null, gjson.Get(doc, "features.1.properties.wmoID").Type)
	assert.Equal(t, "2014-01-31T16:00:00-08:00", gjson.Get(doc, "features.1.properties.ending_isostr").String())

	_, err = geojson.Parse(doc, nil)
	require.NoError(t, err)
}

func assertFileEqual(t *testing.T, expected, actual string) {
	t.Helper()

	expectedContent, err := os.ReadFile(expected)
	require.NoError(t, err)
	actualContent, err := os.ReadFile(actual)
	require.NoError(t, err)

	edits := myers.ComputeEdits(span.URIFromPath(expected), string(expectedContent), string(actualContent))
	if len(edits) > 0 {
		t.Fail()
		t.Log(expected, "!=", actual, "\n", fmt.Sprint(gotextdiff.ToUnified("expected", "actual", string(expectedContent), edits)))
	}
}

func testTempdir(t *testing.T) string {
	dir, err := os.MkdirTemp("", "")
	require.NoError(t, err)
	t.Cleanup(func() {
		if t.Failed() {
			fmt.Println("Preserving tempdir after failed test", dir)
		} else {
			_ = os.RemoveAll(dir)
		}
	})
	return dir
}
