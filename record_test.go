package sossml2gpkg

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestStationColumnsMatchSchema(t *testing.T) {
	require.Len(t, stationSchema.Columns, len(StationColumns))
	for i, col := range StationColumns {
		assert.Equal(t, col, stationSchema.Columns[i].Name)
		assert.NotPanics(t, func() { StationRecord{}.Value(col) })
	}
	assert.Panics(t, func() { StationRecord{}.Value("nope") })
}

func TestTable(t *testing.T) {
	records := []StationRecord{
		{StationURN: "urn:ioos:station:test:b", Lat: 1},
		{StationURN: "urn:ioos:station:test:a", Lat: 2},
		{StationURN: "urn:ioos:station:test:c", Lat: 3},
	}
	table := NewTable(records)

	assert.Equal(t, 3, table.Len())
	assert.Equal(t, []string{"urn:ioos:station:test:b", "urn:ioos:station:test:a", "urn:ioos:station:test:c"}, table.Index())
	assert.Equal(t, StationColumns, table.Columns)

	rec, ok := table.Lookup("urn:ioos:station:test:a")
	require.True(t, ok)
	assert.Equal(t, 2.0, rec.Lat)
	_, ok = table.Lookup("urn:ioos:station:test:z")
	assert.False(t, ok)

	trimmed := table.Without(timestampColumns...)
	assert.Len(t, trimmed.Columns, len(StationColumns)-2)
	assert.NotContains(t, trimmed.Columns, "starting")
	assert.NotContains(t, trimmed.Columns, "ending")
	assert.Contains(t, trimmed.Columns, "starting_isostr")
	assert.Len(t, table.Columns, len(StationColumns), "Without leaves the source alone")

	filtered := trimmed.Filter(func(r StationRecord) bool { return r.Lat > 1 })
	assert.Equal(t, []string{"urn:ioos:station:test:a", "urn:ioos:station:test:c"}, filtered.Index())
	assert.Equal(t, trimmed.Columns, filtered.Columns)
}

func TestCountActive(t *testing.T) {
	ending := func(s string) StationRecord {
		e, err := time.Parse(time.RFC3339, s)
		require.NoError(t, err)
		return StationRecord{Ending: e}
	}
	records := []StationRecord{
		ending("2015-12-31T23:59:59Z"),
		ending("2016-01-01T00:00:00Z"),
		ending("2016-01-01T00:00:01Z"),
		ending("2016-01-01T00:00:00-08:00"),
		ending("2024-06-30T12:00:00Z"),
		ending("2009-03-01T00:00:00Z"),
	}
	cutoff := time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC)

	// Strictly after the cutoff: 00:00:01Z, 08:00Z (the -08:00 one) and 2024.
	assert.Equal(t, 3, CountActive(records, cutoff))
	assert.Equal(t, 0, CountActive(nil, cutoff))
	assert.Equal(t, 6, CountActive(records, time.Time{}))
}

func TestISOFormat(t *testing.T) {
	pst := time.FixedZone("PST", -8*60*60)
	tests := []struct {
		in   time.Time
		want string
	}{
		{time.Date(2016, 3, 14, 17, 30, 0, 0, time.UTC), "2016-03-14T17:30:00+00:00"},
		{time.Date(2016, 3, 14, 17, 30, 0, 250_000_000, time.UTC), "2016-03-14T17:30:00.250000+00:00"},
		{time.Date(2016, 3, 14, 17, 30, 0, 1_999, time.UTC), "2016-03-14T17:30:00.000001+00:00"},
		{time.Date(2016, 3, 14, 17, 30, 0, 999, time.UTC), "2016-03-14T17:30:00+00:00"},
		{time.Date(2014, 1, 31, 16, 0, 0, 0, pst), "2014-01-31T16:00:00-08:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isoFormat(tt.in))
	}
}
