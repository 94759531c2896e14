package sossml2gpkg

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrNotSensorML = errors.New("not a SensorML document")

// SensorML is the first System of a DescribeSensor response under the IOOS profile.
type SensorML struct {
	System System
}

type System struct {
	Description   string
	Identifiers   []Term
	Classifiers   []Term
	ValidTime     TimePeriod
	Capabilities  []CapabilityField
	Position      string // raw gml:pos, "lat lon"
	HasPosition   bool
	Documentation []Documentation
	Contacts      []Contact
	Outputs       []Output
}

// Term is a named identifier or classifier.
type Term struct {
	Name       string
	Definition string
	CodeSpace  string
	Value      string
}

type TimePeriod struct {
	Begin, End                           string
	BeginIndeterminate, EndIndeterminate string
}

type CapabilityField struct {
	Capability string // name of the enclosing sml:capabilities
	Name       string
	TimeRange  string
}

type Documentation struct {
	Name      string
	Arcrole   string
	Documents []Document
}

type Document struct {
	Description string
	Format      string
	URL         string
}

type Contact struct {
	Role         string
	Organization string
	Individual   string
	Country      string
	Email        string
	URL          string
}

type Output struct {
	Name       string
	Definition string
	Quantity   bool
}

type sensorMLXML struct {
	XMLName xml.Name `xml:"SensorML"`
	Members []struct {
		System *systemXML `xml:"System"`
	} `xml:"member"`
}

type hrefXML struct {
	Href string `xml:"http://www.w3.org/1999/xlink href,attr"`
}

type termXML struct {
	Name string `xml:"name,attr"`
	Term struct {
		Definition string  `xml:"definition,attr"`
		CodeSpace  hrefXML `xml:"codeSpace"`
		Value      string  `xml:"value"`
	} `xml:"Term"`
}

type positionXML struct {
	Value         string `xml:",chardata"`
	Indeterminate string `xml:"indeterminatePosition,attr"`
}

type systemXML struct {
	Description string    `xml:"description"`
	Identifiers []termXML `xml:"identification>IdentifierList>identifier"`
	Classifiers []termXML `xml:"classification>ClassifierList>classifier"`
	ValidTime   struct {
		Begin positionXML `xml:"beginPosition"`
		End   positionXML `xml:"endPosition"`
	} `xml:"validTime>TimePeriod"`
	Capabilities []struct {
		Name   string `xml:"name,attr"`
		Fields []struct {
			Name      string `xml:"name,attr"`
			TimeRange *struct {
				Value string `xml:"value"`
			} `xml:"TimeRange"`
		} `xml:"DataRecord>field"`
	} `xml:"capabilities"`
	Location *struct {
		Pos *string `xml:"Point>pos"`
	} `xml:"location"`
	Documentation []struct {
		Name     string `xml:"name,attr"`
		Arcrole  string `xml:"http://www.w3.org/1999/xlink arcrole,attr"`
		Document []struct {
			Description    string  `xml:"description"`
			Format         string  `xml:"format"`
			OnlineResource hrefXML `xml:"onlineResource"`
		} `xml:"Document"`
	} `xml:"documentation>DocumentList>member"`
	Contacts []struct {
		Role  string `xml:"http://www.w3.org/1999/xlink role,attr"`
		Party struct {
			Organization string `xml:"organizationName"`
			Individual   string `xml:"individualName"`
			Country      string `xml:"contactInfo>address>country"`
			Email        string `xml:"contactInfo>address>electronicMailAddress"`
			Online       struct {
				Href string `xml:"http://www.w3.org/1999/xlink href,attr"`
			} `xml:"contactInfo>onlineResource"`
		} `xml:"ResponsibleParty"`
	} `xml:"contact>ContactList>member"`
	Outputs []struct {
		Name     string `xml:"name,attr"`
		Quantity *struct {
			Definition string `xml:"definition,attr"`
		} `xml:"Quantity"`
	} `xml:"outputs>OutputList>output"`
}

func ParseSensorML(r io.Reader, vocab Vocabulary) (*SensorML, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if serviceErr := parseServiceError(body); serviceErr != nil {
		return nil, serviceErr
	}

	var doc sensorMLXML
	if err := xml.NewDecoder(bytes.NewReader(body)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotSensorML, err)
	}
	if doc.XMLName.Space != vocab.Namespace("sml") {
		return nil, fmt.Errorf("%w: root element in namespace %q", ErrNotSensorML, doc.XMLName.Space)
	}
	if len(doc.Members) == 0 || doc.Members[0].System == nil {
		return nil, fmt.Errorf("%w: no sml:System member", ErrNotSensorML)
	}

	return &SensorML{System: convertSystem(doc.Members[0].System)}, nil
}

func convertSystem(s *systemXML) System {
	sys := System{
		Description: strings.TrimSpace(s.Description),
		Identifiers: convertTerms(s.Identifiers),
		Classifiers: convertTerms(s.Classifiers),
		ValidTime: TimePeriod{
			Begin:              strings.TrimSpace(s.ValidTime.Begin.Value),
			End:                strings.TrimSpace(s.ValidTime.End.Value),
			BeginIndeterminate: s.ValidTime.Begin.Indeterminate,
			EndIndeterminate:   s.ValidTime.End.Indeterminate,
		},
	}

	for _, c := range s.Capabilities {
		for _, f := range c.Fields {
			field := CapabilityField{Capability: c.Name, Name: f.Name}
			if f.TimeRange != nil {
				field.TimeRange = strings.TrimSpace(f.TimeRange.Value)
			}
			sys.Capabilities = append(sys.Capabilities, field)
		}
	}

	if s.Location != nil && s.Location.Pos != nil {
		sys.Position = strings.TrimSpace(*s.Location.Pos)
		sys.HasPosition = true
	}

	for _, member := range s.Documentation {
		doc := Documentation{Name: member.Name, Arcrole: member.Arcrole}
		for _, d := range member.Document {
			doc.Documents = append(doc.Documents, Document{
				Description: strings.TrimSpace(d.Description),
				Format:      strings.TrimSpace(d.Format),
				URL:         d.OnlineResource.Href,
			})
		}
		sys.Documentation = append(sys.Documentation, doc)
	}

	for _, member := range s.Contacts {
		sys.Contacts = append(sys.Contacts, Contact{
			Role:         member.Role,
			Organization: strings.TrimSpace(member.Party.Organization),
			Individual:   strings.TrimSpace(member.Party.Individual),
			Country:      strings.TrimSpace(member.Party.Country),
			Email:        strings.TrimSpace(member.Party.Email),
			URL:          member.Party.Online.Href,
		})
	}

	for _, o := range s.Outputs {
		out := Output{Name: o.Name}
		if o.Quantity != nil {
			out.Quantity = true
			out.Definition = o.Quantity.Definition
		}
		sys.Outputs = append(sys.Outputs, out)
	}

	return sys
}

func convertTerms(in []termXML) []Term {
	var out []Term
	for _, t := range in {
		out = append(out, Term{
			Name:       t.Name,
			Definition: t.Term.Definition,
			CodeSpace:  t.Term.CodeSpace.Href,
			Value:      strings.TrimSpace(t.Term.Value),
		})
	}
	return out
}

// termByName finds the term called name (case-insensitively) that carries definition.
func termByName(terms []Term, name, definition string) (Term, bool) {
	for _, t := range terms {
		if strings.EqualFold(t.Name, name) && t.Definition == definition {
			return t, true
		}
	}
	return Term{}, false
}
