package sossml2gpkg

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingPosition = errors.New("missing gml:Point/gml:pos")
	ErrMissingRole     = errors.New("no contact with role")
	ErrAmbiguousRole   = errors.New("more than one contact with role")
	ErrMissingTime     = errors.New("missing observation time range")
)

type RoleMatch int

const (
	RoleMissing RoleMatch = iota
	RoleFound
	RoleAmbiguous
)

// ContactsByRole groups contacts by the final segment of their role URI.
type ContactsByRole map[string][]Contact

func GroupContacts(contacts []Contact, vocab Vocabulary) ContactsByRole {
	out := make(ContactsByRole)
	for _, c := range contacts {
		role := vocab.RoleName(c.Role)
		out[role] = append(out[role], c)
	}
	return out
}

// Lookup returns the first contact with role and whether it was unique.
func (m ContactsByRole) Lookup(role string) (Contact, RoleMatch) {
	contacts := m[role]
	switch len(contacts) {
	case 0:
		return Contact{}, RoleMissing
	case 1:
		return contacts[0], RoleFound
	default:
		return contacts[0], RoleAmbiguous
	}
}

func (m ContactsByRole) require(role string) (Contact, error) {
	c, match := m.Lookup(role)
	switch match {
	case RoleMissing:
		return Contact{}, fmt.Errorf("%w %q", ErrMissingRole, role)
	case RoleAmbiguous:
		return Contact{}, fmt.Errorf("%w %q (%d found)", ErrAmbiguousRole, role, len(m[role]))
	}
	return c, nil
}

// ExtractOpts tune extraction. The zero value is usable.
type ExtractOpts struct {
	// Now resolves indeterminatePosition="now"; defaults to time.Now.
	Now func() time.Time
}

// Extract flattens one SensorML document into a StationRecord.
func Extract(urn string, doc *SensorML, vocab Vocabulary, opts *ExtractOpts) (StationRecord, error) {
	if opts == nil {
		opts = &ExtractOpts{}
	}
	sys := doc.System
	rec := StationRecord{StationURN: urn}

	lat, lon, err := parsePosition(sys)
	if err != nil {
		return rec, err
	}
	rec.Lon = lon
	rec.Lat = lat

	identifier := func(name string) string {
		t, _ := termByName(sys.Identifiers, name, vocab.Definition(name))
		return t.Value
	}
	classifier := func(name string) string {
		t, _ := termByName(sys.Classifiers, name, vocab.Definition(name))
		return t.Value
	}

	rec.ShortName = identifier("shortName")
	rec.LongName = identifier("longName")
	rec.WMOID = identifier("wmoID")
	rec.PlatformType = classifier("platformType")
	rec.ParentNetwork = classifier("parentNetwork")
	rec.Sponsor = classifier("sponsor")
	rec.OperatorSector = classifier("operatorSector")
	rec.Publisher = classifier("publisher")

	// Only the first documentation member is read; it is taken to be the web page.
	if len(sys.Documentation) > 0 && len(sys.Documentation[0].Documents) > 0 {
		rec.WebpageURL = sys.Documentation[0].Documents[0].URL
	}

	contacts := GroupContacts(sys.Contacts, vocab)
	operator, err := contacts.require("operator")
	if err != nil {
		return rec, err
	}
	rec.OperatorOrg = operator.Organization
	rec.OperatorCountry = operator.Country
	rec.OperatorURL = operator.URL

	publisher, err := contacts.require("publisher")
	if err != nil {
		return rec, err
	}
	rec.PublisherOrg = publisher.Organization
	rec.PublisherURL = publisher.URL

	starting, ending, err := observationTimeRange(sys, opts.now())
	if err != nil {
		return rec, err
	}
	rec.Starting = starting
	rec.Ending = ending
	rec.StartingISO = isoFormat(starting)
	rec.EndingISO = isoFormat(ending)

	var uris, names []string
	for _, out := range sys.Outputs {
		if !out.Quantity {
			continue
		}
		uris = append(uris, out.Definition)
		names = append(names, lastPathSegment(out.Definition))
	}
	rec.ParameterURIs = strings.Join(uris, ",")
	rec.Parameters = strings.Join(names, ",")

	return rec, nil
}

func (o *ExtractOpts) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// parsePosition reads "lat lon" from gml:pos.
func parsePosition(sys System) (lat, lon float64, err error) {
	if !sys.HasPosition {
		return 0, 0, ErrMissingPosition
	}
	tokens := strings.Fields(sys.Position)
	if len(tokens) < 2 {
		return 0, 0, fmt.Errorf("%w: %q has fewer than two coordinates", ErrMissingPosition, sys.Position)
	}
	lat, err = strconv.ParseFloat(tokens[0], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse latitude %q: %w", tokens[0], err)
	}
	lon, err = strconv.ParseFloat(tokens[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse longitude %q: %w", tokens[1], err)
	}
	return lat, lon, nil
}

// observationTimeRange prefers the observationTimeRange capability ("start end")
// and falls back to validTime.
func observationTimeRange(sys System, now time.Time) (time.Time, time.Time, error) {
	for _, f := range sys.Capabilities {
		if f.Capability != "observationTimeRange" && f.Name != "observationTimeRange" {
			continue
		}
		parts := strings.Fields(f.TimeRange)
		if len(parts) != 2 {
			continue
		}
		start, err := parseTimePosition(parts[0], "", now)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end, err := parseTimePosition(parts[1], "", now)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		return start, end, nil
	}

	vt := sys.ValidTime
	if (vt.Begin == "" && vt.BeginIndeterminate == "") || (vt.End == "" && vt.EndIndeterminate == "") {
		return time.Time{}, time.Time{}, ErrMissingTime
	}
	start, err := parseTimePosition(vt.Begin, vt.BeginIndeterminate, now)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseTimePosition(vt.End, vt.EndIndeterminate, now)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func parseTimePosition(value, indeterminate string, now time.Time) (time.Time, error) {
	if value == "" && indeterminate == "now" {
		return now, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", value, err)
	}
	return t, nil
}
