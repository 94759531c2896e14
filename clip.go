package sossml2gpkg

import (
	"fmt"
	"github.com/tidwall/geojson"
	"log/slog"
)

// Clip keeps the stations whose point lies inside clipFeature, a GeoJSON object.
func Clip(t *Table, clipFeature string) (*Table, error) {
	feature, err := geojson.Parse(clipFeature, &geojson.ParseOptions{RequireValid: true})
	if err != nil {
		return nil, fmt.Errorf("parse clip feature: %w", err)
	}

	slog.Info(fmt.Sprintf("Clipping %d station(s) (clipFeature has %d points)", t.Len(), feature.NumPoints()))

	clipped := t.Filter(func(r StationRecord) bool {
		return feature.Contains(r.Point())
	})

	slog.Info(fmt.Sprintf("%d of %d stations are inside", clipped.Len(), t.Len()))
	return clipped, nil
}
