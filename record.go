package sossml2gpkg

import (
	"fmt"
	"time"
)

// StationRecord is one flattened station. Optional text fields are "" when absent.
type StationRecord struct {
	StationURN      string
	Lon, Lat        float64
	ShortName       string
	LongName        string
	WMOID           string
	PlatformType    string
	ParentNetwork   string
	Sponsor         string
	WebpageURL      string
	OperatorSector  string
	OperatorOrg     string
	OperatorCountry string
	OperatorURL     string
	Publisher       string
	PublisherOrg    string
	PublisherURL    string
	Starting        time.Time
	Ending          time.Time
	StartingISO     string
	EndingISO       string
	ParameterURIs   string
	Parameters      string
}

// StationColumns is the column order of every record and of the exported layer.
var StationColumns = []string{
	"station_urn",
	"lon",
	"lat",
	"shortName",
	"longName",
	"wmoID",
	"platformType",
	"parentNetwork",
	"sponsor",
	"webpage_url",
	"operatorSector",
	"operator_org",
	"operator_country",
	"operator_url",
	"publisher",
	"publisher_org",
	"publisher_url",
	"starting",
	"ending",
	"starting_isostr",
	"ending_isostr",
	"parameter_uris",
	"parameters",
}

// Value returns the field stored under column.
func (r StationRecord) Value(column string) any {
	switch column {
	case "station_urn":
		return r.StationURN
	case "lon":
		return r.Lon
	case "lat":
		return r.Lat
	case "shortName":
		return r.ShortName
	case "longName":
		return r.LongName
	case "wmoID":
		return r.WMOID
	case "platformType":
		return r.PlatformType
	case "parentNetwork":
		return r.ParentNetwork
	case "sponsor":
		return r.Sponsor
	case "webpage_url":
		return r.WebpageURL
	case "operatorSector":
		return r.OperatorSector
	case "operator_org":
		return r.OperatorOrg
	case "operator_country":
		return r.OperatorCountry
	case "operator_url":
		return r.OperatorURL
	case "publisher":
		return r.Publisher
	case "publisher_org":
		return r.PublisherOrg
	case "publisher_url":
		return r.PublisherURL
	case "starting":
		return r.Starting
	case "ending":
		return r.Ending
	case "starting_isostr":
		return r.StartingISO
	case "ending_isostr":
		return r.EndingISO
	case "parameter_uris":
		return r.ParameterURIs
	case "parameters":
		return r.Parameters
	default:
		panic(fmt.Sprintf("unknown station column %q", column))
	}
}

// Table is an ordered set of station records indexed by station_urn.
type Table struct {
	Columns []string
	Records []StationRecord
	index   map[string]int
}

func NewTable(records []StationRecord) *Table {
	t := &Table{
		Columns: append([]string(nil), StationColumns...),
		Records: records,
		index:   make(map[string]int, len(records)),
	}
	for i, r := range records {
		if _, ok := t.index[r.StationURN]; !ok {
			t.index[r.StationURN] = i
		}
	}
	return t
}

func (t *Table) Len() int {
	return len(t.Records)
}

// Index returns the station URNs in row order.
func (t *Table) Index() []string {
	out := make([]string, len(t.Records))
	for i, r := range t.Records {
		out[i] = r.StationURN
	}
	return out
}

func (t *Table) Lookup(urn string) (StationRecord, bool) {
	i, ok := t.index[urn]
	if !ok {
		return StationRecord{}, false
	}
	return t.Records[i], true
}

// Without returns a view of the table that omits the given columns.
func (t *Table) Without(columns ...string) *Table {
	var kept []string
	for _, c := range t.Columns {
		drop := false
		for _, d := range columns {
			if c == d {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, c)
		}
	}
	return &Table{Columns: kept, Records: t.Records, index: t.index}
}

// Filter returns a table with the records keep accepts, in the same order.
func (t *Table) Filter(keep func(StationRecord) bool) *Table {
	var records []StationRecord
	for _, r := range t.Records {
		if keep(r) {
			records = append(records, r)
		}
	}
	out := NewTable(records)
	out.Columns = append([]string(nil), t.Columns...)
	return out
}

// CountActive counts records that reported data after cutoff.
func CountActive(records []StationRecord, cutoff time.Time) int {
	n := 0
	for _, r := range records {
		if r.Ending.After(cutoff) {
			n++
		}
	}
	return n
}

// isoFormat renders t the way Python's datetime.isoformat does for aware times:
// microseconds only when non-zero, numeric offset.
func isoFormat(t time.Time) string {
	if t.Nanosecond()/1000 != 0 {
		return t.Format("2006-01-02T15:04:05.000000-07:00")
	}
	return t.Format("2006-01-02T15:04:05-07:00")
}
