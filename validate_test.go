package sossml2gpkg

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"log/slog"
	"testing"
	"time"
)

const badURN = "urn:ioos:station:test:bad"

func TestValidate(t *testing.T) {
	good := func(t *testing.T) StationRecord {
		return extractSample(t, aplChabaURN, "apl_chaba.xml")
	}

	tests := []struct {
		name   string
		fatal  bool
		mutate func(r *StationRecord)
	}{
		{"missing shortName", false, func(r *StationRecord) { r.ShortName = "" }},
		{"latitude out of range", false, func(r *StationRecord) { r.Lat, r.Lon = r.Lon, r.Lat }},
		{"ends before it starts", false, func(r *StationRecord) { r.Ending = r.Starting.Add(-time.Hour) }},
		{"parameter count mismatch", true, func(r *StationRecord) { r.Parameters = "wind_speed" }},
		{"parameter name mismatch", true, func(r *StationRecord) {
			r.ParameterURIs = "http://mmisw.org/ont/cf/parameter/wind_speed"
			r.Parameters = "wind_gust"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := good(t)
			bad.StationURN = badURN
			tt.mutate(&bad)
			table := NewTable([]StationRecord{good(t), bad})

			issues, kept, err := validate(table, validateOpts{logLevel: slog.LevelError})
			require.Len(t, issues, 1)
			assert.Contains(t, issues[0], badURN)
			if tt.fatal {
				require.ErrorIs(t, err, ErrInvalidInput)
				assert.Contains(t, err.Error(), badURN)
			} else {
				require.NoError(t, err)
				assert.Equal(t, 2, kept.Len(), "warnings keep the row")
			}

			issues, kept, err = validate(table, validateOpts{force: true, logLevel: slog.LevelWarn})
			require.NoError(t, err)
			require.Len(t, issues, 1)
			assert.Equal(t, []string{aplChabaURN}, kept.Index())

			issues, kept, err = validate(table, validateOpts{ignore: true, logLevel: slog.LevelWarn})
			require.NoError(t, err)
			require.Len(t, issues, 1)
			assert.Equal(t, 2, kept.Len())
		})
	}
}

func TestValidateErrorNamesEveryInvalidStation(t *testing.T) {
	first := extractSample(t, aplChabaURN, "apl_chaba.xml")
	first.Parameters = ""
	second := extractSample(t, chaKwaURN, "cha_kwa.xml")
	second.Parameters = "nope"

	_, _, err := validate(NewTable([]StationRecord{first, second}), validateOpts{logLevel: slog.LevelError})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), aplChabaURN)
	assert.Contains(t, err.Error(), chaKwaURN)
}

func TestValidateClean(t *testing.T) {
	table := sampleTable(t)
	issues, kept, err := validate(table, validateOpts{logLevel: slog.LevelError})
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Same(t, table, kept)
}
