package sossml2gpkg

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

type Capabilities struct {
	Title      string
	Offerings  []string
	Operations map[string]string // operation name -> GET endpoint
}

type capabilitiesXML struct {
	XMLName    xml.Name       `xml:"Capabilities"`
	Title      string         `xml:"ServiceIdentification>Title"`
	Operations []operationXML `xml:"OperationsMetadata>Operation"`
	Offerings  []offeringXML  `xml:"Contents>ObservationOfferingList>ObservationOffering"`
}

type operationXML struct {
	Name string `xml:"name,attr"`
	Get  []struct {
		Href string `xml:"http://www.w3.org/1999/xlink href,attr"`
	} `xml:"DCP>HTTP>Get"`
}

type offeringXML struct {
	ID   string `xml:"http://www.opengis.net/gml id,attr"`
	Name string `xml:"name"`
}

// ServiceError is an OWS ExceptionReport returned in place of the requested document.
type ServiceError struct {
	Code    string
	Locator string
	Text    []string
}

func (e *ServiceError) Error() string {
	msg := "SOS exception " + e.Code
	if e.Locator != "" {
		msg += " (" + e.Locator + ")"
	}
	if len(e.Text) > 0 {
		msg += ": " + strings.Join(e.Text, "; ")
	}
	return msg
}

type exceptionReportXML struct {
	XMLName    xml.Name `xml:"ExceptionReport"`
	Exceptions []struct {
		Code    string   `xml:"exceptionCode,attr"`
		Locator string   `xml:"locator,attr"`
		Text    []string `xml:"ExceptionText"`
	} `xml:"Exception"`
}

// parseServiceError returns a *ServiceError if body is an OWS ExceptionReport, nil otherwise.
func parseServiceError(body []byte) *ServiceError {
	var report exceptionReportXML
	if err := xml.Unmarshal(body, &report); err != nil || len(report.Exceptions) == 0 {
		return nil
	}
	e := report.Exceptions[0]
	var text []string
	for _, t := range e.Text {
		text = append(text, strings.TrimSpace(t))
	}
	return &ServiceError{Code: e.Code, Locator: e.Locator, Text: text}
}

func ParseCapabilities(r io.Reader) (*Capabilities, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if serviceErr := parseServiceError(body); serviceErr != nil {
		return nil, serviceErr
	}

	var doc capabilitiesXML
	if err := xml.NewDecoder(bytes.NewReader(body)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse capabilities: %w", err)
	}

	caps := &Capabilities{
		Title:      strings.TrimSpace(doc.Title),
		Operations: make(map[string]string),
	}
	for _, op := range doc.Operations {
		if len(op.Get) > 0 && op.Get[0].Href != "" {
			caps.Operations[op.Name] = op.Get[0].Href
		}
	}
	for _, off := range doc.Offerings {
		name := strings.TrimSpace(off.Name)
		if name == "" {
			continue
		}
		caps.Offerings = append(caps.Offerings, name)
	}
	if len(doc.Offerings) == 0 && doc.Title == "" && len(doc.Operations) == 0 {
		return nil, errors.New("parse capabilities: document has no content")
	}
	return caps, nil
}

// StationURNs filters offerings down to stations, in upstream order.
func StationURNs(offerings []string) []string {
	var out []string
	for _, urn := range offerings {
		if !isNetworkURN(urn) {
			out = append(out, urn)
		}
	}
	return out
}

func isNetworkURN(urn string) bool {
	for _, segment := range strings.Split(urn, ":") {
		if segment == "network" {
			return true
		}
	}
	return false
}
