package sossml2gpkg

// NOTE: starting and ending are kept in memory only; the layer stores their ISO strings.

type columnSchema struct {
	Name                string
	SQLType             string
	TypeDescription     string
	PresenceDescription string
}

type layerSchema struct {
	PrimaryKey string
	Columns    []columnSchema
}

var stationSchema = layerSchema{
	PrimaryKey: "station_urn",
	Columns: []columnSchema{
		{Name: "station_urn", SQLType: "TEXT", TypeDescription: "IOOS station URN", PresenceDescription: "Required"},
		{Name: "lon", SQLType: "REAL", TypeDescription: "Longitude (WGS84)", PresenceDescription: "Required"},
		{Name: "lat", SQLType: "REAL", TypeDescription: "Latitude (WGS84)", PresenceDescription: "Required"},
		{Name: "shortName", SQLType: "TEXT", TypeDescription: "Text", PresenceDescription: "Required"},
		{Name: "longName", SQLType: "TEXT", TypeDescription: "Text", PresenceDescription: "Required"},
		{Name: "wmoID", SQLType: "TEXT", TypeDescription: "WMO identifier", PresenceDescription: "Optional"},
		{Name: "platformType", SQLType: "TEXT", TypeDescription: "IOOS platform vocabulary term", PresenceDescription: "Required"},
		{Name: "parentNetwork", SQLType: "TEXT", TypeDescription: "Text", PresenceDescription: "Optional"},
		{Name: "sponsor", SQLType: "TEXT", TypeDescription: "Text", PresenceDescription: "Optional"},
		{Name: "webpage_url", SQLType: "TEXT", TypeDescription: "URL", PresenceDescription: "Optional"},
		{Name: "operatorSector", SQLType: "TEXT", TypeDescription: "IOOS sector vocabulary term", PresenceDescription: "Optional"},
		{Name: "operator_org", SQLType: "TEXT", TypeDescription: "Text", PresenceDescription: "Optional"},
		{Name: "operator_country", SQLType: "TEXT", TypeDescription: "Text", PresenceDescription: "Optional"},
		{Name: "operator_url", SQLType: "TEXT", TypeDescription: "URL", PresenceDescription: "Optional"},
		{Name: "publisher", SQLType: "TEXT", TypeDescription: "Text", PresenceDescription: "Optional"},
		{Name: "publisher_org", SQLType: "TEXT", TypeDescription: "Text", PresenceDescription: "Optional"},
		{Name: "publisher_url", SQLType: "TEXT", TypeDescription: "URL", PresenceDescription: "Optional"},
		{Name: "starting", SQLType: "DATETIME", TypeDescription: "Timestamp", PresenceDescription: "Required"},
		{Name: "ending", SQLType: "DATETIME", TypeDescription: "Timestamp", PresenceDescription: "Required"},
		{Name: "starting_isostr", SQLType: "TEXT", TypeDescription: "ISO-8601 timestamp", PresenceDescription: "Required"},
		{Name: "ending_isostr", SQLType: "TEXT", TypeDescription: "ISO-8601 timestamp", PresenceDescription: "Required"},
		{Name: "parameter_uris", SQLType: "TEXT", TypeDescription: "Comma separated URIs", PresenceDescription: "Optional"},
		{Name: "parameters", SQLType: "TEXT", TypeDescription: "Comma separated names", PresenceDescription: "Optional"},
	},
}

// timestampColumns cannot be stored in a GeoPackage layer as-is.
var timestampColumns = []string{"starting", "ending"}

func (s layerSchema) column(name string) (columnSchema, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return columnSchema{}, false
}
