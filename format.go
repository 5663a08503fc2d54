package sdmx

import (
	"fmt"

	"github.com/sdmxkit/sdmx/model"
	"github.com/sdmxkit/sdmx/resolver"
)

// Family is a wire-format family.
type Family int

const (
	FamilyXML Family = iota
	FamilyJSON
)

func (f Family) String() string {
	switch f {
	case FamilyXML:
		return "SDMX-ML"
	case FamilyJSON:
		return "SDMX-JSON"
	}
	return fmt.Sprintf("Family(%d)", int(f))
}

// Format selects a wire family plus, for data messages, the organization
// sub-variant: generic (self-describing observations) or structure-specific
// (values positioned by a caller-supplied DSD). Payload bytes alone do not
// reliably disambiguate the sub-variants, so the caller always states the
// format.
type Format int

const (
	XMLStructure Format = iota
	XMLGenericData
	XMLStructureSpecificData
	JSONStructure
	JSONGenericData
	JSONStructureSpecificData
)

var formatNames = [...]string{
	"xml-structure",
	"xml-generic-data",
	"xml-structure-specific-data",
	"json-structure",
	"json-generic-data",
	"json-structure-specific-data",
}

func (f Format) String() string {
	if f < XMLStructure || f > JSONStructureSpecificData {
		return fmt.Sprintf("Format(%d)", int(f))
	}
	return formatNames[f]
}

// Family returns the wire family the format belongs to.
func (f Format) Family() Family {
	if f >= JSONStructure {
		return FamilyJSON
	}
	return FamilyXML
}

// Data reports whether the format carries a data message.
func (f Format) Data() bool {
	return f != XMLStructure && f != JSONStructure
}

// StructureSpecific reports whether data values are positioned by an
// externally supplied DSD rather than self-described.
func (f Format) StructureSpecific() bool {
	return f == XMLStructureSpecificData || f == JSONStructureSpecificData
}

// ParseOptions carries per-parse configuration.
type ParseOptions struct {
	// Structures supplies already-known artefacts (DSDs, dataflows,
	// codelists) registered with the session resolver before parsing
	// starts. Structure-specific data payloads rely on the DSD arriving
	// this way or through Lookup.
	Structures []model.Artefact
	// Lookup resolves identities not present in the message or in
	// Structures.
	Lookup resolver.Lookup
}

// Organization selects how the writer lays out observations in a data set.
type Organization int

const (
	// OrganizationAuto mirrors the data set's in-memory organization:
	// series-stored data is written as series, flat-stored data as flat
	// observations.
	OrganizationAuto Organization = iota
	OrganizationSeries
	OrganizationFlat
)

// Compression selects output compression; input decompression is sniffed
// automatically.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZstd
)

// WriteOptions carries per-write configuration. The zero value writes
// uncompressed output mirroring the in-memory data organization.
type WriteOptions struct {
	Organization Organization
	Compression  Compression
}
