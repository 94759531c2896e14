package sossml2gpkg

import (
	"maps"
	"strings"
)

const IOOSOntology = "http://mmisw.org/ont/ioos/definition/"

// Vocabulary holds the XML namespaces and the IOOS ontology used to resolve
// SensorML documents. Build it once with NewVocabulary and pass it around.
type Vocabulary struct {
	namespaces map[string]string
	ontology   string
}

func NewVocabulary() Vocabulary {
	return Vocabulary{
		namespaces: map[string]string{
			"sml":   "http://www.opengis.net/sensorML/1.0.1",
			"gml":   "http://www.opengis.net/gml",
			"xlink": "http://www.w3.org/1999/xlink",
			"swe":   "http://www.opengis.net/swe/1.0.1",
			"ism":   "urn:us:gov:ic:ism:v2",
			"sos":   "http://www.opengis.net/sos/1.0",
			"ows":   "http://www.opengis.net/ows/1.1",
		},
		ontology: IOOSOntology,
	}
}

// Namespace returns the URI registered for prefix, or "" if there is none.
func (v Vocabulary) Namespace(prefix string) string {
	return v.namespaces[prefix]
}

// Namespaces returns a copy of the prefix table.
func (v Vocabulary) Namespaces() map[string]string {
	return maps.Clone(v.namespaces)
}

func (v Vocabulary) Ontology() string {
	return v.ontology
}

// Definition is the ontology URI a classifier or identifier called name must
// carry to count as the IOOS term.
func (v Vocabulary) Definition(name string) string {
	if strings.HasSuffix(v.ontology, "/") {
		return v.ontology + name
	}
	return v.ontology + "/" + name
}

// RoleName reduces a contact role URI to its final path segment.
func (v Vocabulary) RoleName(role string) string {
	return lastPathSegment(role)
}

func lastPathSegment(uri string) string {
	i := strings.LastIndex(uri, "/")
	if i == -1 {
		return uri
	}
	return uri[i+1:]
}
