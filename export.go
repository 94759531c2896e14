package sossml2gpkg

import (
	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"encoding/csv"
	"fmt"
	"github.com/tidwall/geojson"
	"github.com/tidwall/sjson"
	"log/slog"
	"os"
)

// ExportCSV writes the station layer of a GeoPackage as CSV, geometry omitted.
func ExportCSV(inputPath string, outputPath string) error {
	if inputPath == "" {
		panic("Missing inputPath")
	}
	if outputPath == "" {
		panic("Missing outputPath")
	}

	slog.Info(fmt.Sprintf("Exporting %s to %s", inputPath, outputPath))

	db, err := sqlite.OpenConn(inputPath, sqlite.SQLITE_OPEN_READONLY)
	if err != nil {
		return err
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	var table string
	err = sqlitex.Exec(db, "SELECT table_name FROM gpkg_contents WHERE data_type = 'features' ORDER BY table_name LIMIT 1", func(stmt *sqlite.Stmt) error {
		table = stmt.GetText("table_name")
		return nil
	})
	if err != nil {
		return err
	}
	if table == "" {
		return fmt.Errorf("%w: %s has no features layer", ErrNotGeoPackage, inputPath)
	}

	outputF, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer func() { _ = outputF.Close() }()

	if err := exportTableIn(db, csv.NewWriter(outputF), table); err != nil {
		return err
	}
	if err := outputF.Close(); err != nil {
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

func exportTableIn(db *sqlite.Conn, outputCSV *csv.Writer, table string) error {
	rowCount := 0

	var cols []string
	err := sqlitex.Exec(db, "SELECT name FROM pragma_table_info(?) ORDER BY cid", func(stmt *sqlite.Stmt) error {
		name := stmt.GetText("name")
		if name != "fid" && name != "geom" {
			cols = append(cols, name)
		}
		return nil
	}, table)
	if err != nil {
		return err
	}
	if err := outputCSV.Write(cols); err != nil {
		return err
	}

	err = sqlitex.Exec(db, "SELECT * FROM "+quoteIdent(table)+" ORDER BY fid", func(stmt *sqlite.Stmt) error {
		var row []string
		for _, col := range cols {
			row = append(row, stmt.GetText(col))
		}
		if err := outputCSV.Write(row); err != nil {
			return err
		}
		rowCount++
		return nil
	})
	if err != nil {
		return err
	}
	slog.Info(fmt.Sprintf("Wrote %d rows from %s", rowCount, table))

	outputCSV.Flush()
	return outputCSV.Error()
}

// ExportGeoJSON writes the station layer of a GeoPackage as a FeatureCollection.
// Each feature's id is its station_urn.
func ExportGeoJSON(inputPath string, outputPath string) error {
	if inputPath == "" {
		panic("Missing inputPath")
	}
	if outputPath == "" {
		panic("Missing outputPath")
	}

	slog.Info(fmt.Sprintf("Exporting %s to %s", inputPath, outputPath))

	layer, err := ReadGeoPackage(inputPath, "")
	if err != nil {
		return err
	}

	var features []geojson.Object
	for _, f := range layer.Features {
		members, err := featureMembers(layer.Columns, f)
		if err != nil {
			return err
		}
		features = append(features, geojson.NewFeature(f.Point, members))
	}
	collection := geojson.NewFeatureCollection(features)

	if err := os.WriteFile(outputPath, []byte(collection.JSON()), 0o644); err != nil {
		return err
	}
	slog.Info(fmt.Sprintf("Wrote %d features to %s", len(features), outputPath))
	return nil
}

func featureMembers(columns []string, f Feature) (string, error) {
	members := `{"properties":{}}`
	var err error
	if urn, ok := f.Properties["station_urn"].(string); ok {
		members, err = sjson.Set(members, "id", urn)
		if err != nil {
			return "", err
		}
	}
	for _, col := range columns {
		members, err = sjson.Set(members, "properties."+sjsonEscape(col), f.Properties[col])
		if err != nil {
			return "", err
		}
	}
	return members, nil
}

// sjsonEscape escapes the path characters sjson treats specially.
func sjsonEscape(key string) string {
	var out []rune
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', ':':
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
