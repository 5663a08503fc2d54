package model

import "fmt"

// AttachmentLevel is the granularity at which a data attribute's values are
// recorded.
type AttachmentLevel int

const (
	AttachDataSet AttachmentLevel = iota
	AttachGroup
	AttachSeries
	AttachObservation
)

var attachmentNames = [...]string{"dataset", "group", "series", "observation"}

func (l AttachmentLevel) String() string {
	if l < AttachDataSet || l > AttachObservation {
		return fmt.Sprintf("AttachmentLevel(%d)", int(l))
	}
	return attachmentNames[l]
}

// ParseAttachmentLevel parses the wire spelling of an attachment level.
func ParseAttachmentLevel(s string) (AttachmentLevel, error) {
	for i, name := range attachmentNames {
		if s == name {
			return AttachmentLevel(i), nil
		}
	}
	return 0, issuef(CodeParseError, "unknown attachment level %q", s)
}

// AssignmentStatus states whether an attribute value must be provided.
type AssignmentStatus int

const (
	AssignmentConditional AssignmentStatus = iota
	AssignmentMandatory
)

func (s AssignmentStatus) String() string {
	if s == AssignmentMandatory {
		return "Mandatory"
	}
	return "Conditional"
}

// TextType is the value representation of a component.
type TextType int

const (
	TextString TextType = iota
	TextNumber
)

func (t TextType) String() string {
	if t == TextNumber {
		return "Number"
	}
	return "String"
}

// Representation describes the values a component may take: an enumeration
// (a codelist reference) or a text format.
type Representation struct {
	// Enumeration references a codelist; the zero Reference means
	// non-enumerated.
	Enumeration Reference
	TextType    TextType
}

// Dimension is a component of a DSD key. Order defines the dimension's
// position in keys and must be unique within the DSD.
type Dimension struct {
	Common
	Order           int
	ConceptIdentity Reference
	Representation  *Representation
	// Time marks the time dimension, conventionally the dimension left at
	// observation level in series-organized data.
	Time bool
}

// DataAttribute is a non-key component carrying qualifying values at a
// declared attachment level.
type DataAttribute struct {
	Common
	Level           AttachmentLevel
	Status          AssignmentStatus
	ConceptIdentity Reference
	Representation  *Representation
	// GroupID names the group the attribute attaches to when Level is
	// AttachGroup.
	GroupID string
}

// PrimaryMeasure is the component holding observation values. A nil
// Representation means numeric, the conventional default for statistical
// measures.
type PrimaryMeasure struct {
	Common
	ConceptIdentity Reference
	Representation  *Representation
}

// Numeric reports whether observation values for this measure must parse as
// numbers.
func (m *PrimaryMeasure) Numeric() bool {
	return m.Representation == nil || m.Representation.TextType == TextNumber
}
