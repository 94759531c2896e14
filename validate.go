package sossml2gpkg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var ErrInvalidInput = errors.New("invalid input")

type validateOpts struct {
	force  bool
	ignore bool
	// logLevel applies to issues that break the table's invariants.
	logLevel slog.Level
}

// validate checks every record and returns the issues found together with the
// table to write. Missing labels, out of range positions and reversed time
// ranges are warnings and the rows are kept. Duplicate URNs and parameter lists
// that do not correspond are errors unless force or ignore is set. With force,
// every record with an issue is dropped.
func validate(t *Table, opts validateOpts) ([]string, *Table, error) {
	v := &validator{opts: opts, seen: make(map[string]bool)}

	slog.Info("Validating")

	var kept []StationRecord
	var invalid []string
	for _, r := range t.Records {
		warned, failed := v.validateRecord(r)
		if failed {
			invalid = append(invalid, r.StationURN)
		}
		if !opts.force || (!warned && !failed) {
			kept = append(kept, r)
		}
	}

	if len(v.issues) == 0 {
		return nil, t, nil
	}
	if opts.force {
		slog.Info(fmt.Sprintf("Dropped %d of %d station(s)", t.Len()-len(kept), t.Len()))
		out := NewTable(kept)
		out.Columns = append([]string(nil), t.Columns...)
		return v.issues, out, nil
	}
	if len(invalid) == 0 || opts.ignore {
		return v.issues, t, nil
	}
	return v.issues, t, fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(invalid, ", "))
}

type validator struct {
	opts   validateOpts
	issues []string
	seen   map[string]bool
}

func (v *validator) append(level slog.Level, msg string, args ...any) {
	issue := fmt.Sprintf(msg, args...)
	slog.Log(context.Background(), level, issue)
	v.issues = append(v.issues, issue)
}

func (v *validator) warn(msg string, args ...any) {
	v.append(slog.LevelWarn, msg, args...)
}

func (v *validator) fail(msg string, args ...any) {
	v.append(v.opts.logLevel, msg, args...)
}

func (v *validator) validateRecord(r StationRecord) (warned, failed bool) {
	if v.seen[r.StationURN] {
		v.fail("%s is listed more than once", r.StationURN)
		failed = true
	}
	v.seen[r.StationURN] = true

	for _, col := range stationSchema.Columns {
		if col.PresenceDescription != "Required" || col.SQLType != "TEXT" {
			continue
		}
		if s, _ := r.Value(col.Name).(string); s == "" {
			v.warn("%s has no %s", r.StationURN, col.Name)
			warned = true
		}
	}

	if r.Lat < -90 || r.Lat > 90 || r.Lon < -180 || r.Lon > 180 {
		v.warn("%s has a position outside WGS84 bounds [lat: %v, lon: %v]", r.StationURN, r.Lat, r.Lon)
		warned = true
	}

	if r.Ending.Before(r.Starting) {
		v.warn("%s ends (%s) before it starts (%s)", r.StationURN, r.EndingISO, r.StartingISO)
		warned = true
	}

	uris := splitList(r.ParameterURIs)
	names := splitList(r.Parameters)
	if len(uris) != len(names) {
		v.fail("%s lists %d parameter URIs but %d parameter names", r.StationURN, len(uris), len(names))
		return warned, true
	}
	for i := range uris {
		if lastPathSegment(uris[i]) != names[i] {
			v.fail("%s parameter %s does not match %s", r.StationURN, names[i], uris[i])
			failed = true
		}
	}

	return warned, failed
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
