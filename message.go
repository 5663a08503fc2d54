package sdmx

import (
	"fmt"
	"time"

	"github.com/sdmxkit/sdmx/model"
)

// Party identifies a message sender or receiver.
type Party struct {
	ID   string
	Name model.InternationalString
}

// Header carries message-level metadata shared by all message kinds.
type Header struct {
	ID       string
	Test     bool
	Prepared time.Time
	Sender   Party
	Receiver Party
	// Structures lists the structure references embedded in the header of
	// a data message.
	Structures []model.Reference
}

// Message is the top-level container the reader produces and the writer
// consumes: a StructureMessage, a DataMessage or an ErrorMessage.
type Message interface {
	isMessage()
}

// StructureMessage holds structural artefacts grouped by kind. Within each
// kind, insertion order is preserved.
type StructureMessage struct {
	Header Header

	Codelists       []*model.Codelist
	ConceptSchemes  []*model.ConceptScheme
	CategorySchemes []*model.CategoryScheme
	DataStructures  []*model.DataStructureDefinition
	Dataflows       []*model.DataflowDefinition
}

func (*StructureMessage) isMessage() {}

// Add places an artefact in the collection for its kind, rejecting
// duplicate identities.
func (m *StructureMessage) Add(a model.Artefact) error {
	if _, ok := m.Find(model.Reference{Identity: a.Identity()}); ok {
		return Issues{{
			Code:     CodeDuplicateIdentifier,
			Identity: a.Identity().String(),
			Message:  "artefact already present in message",
		}}
	}
	switch v := a.(type) {
	case *model.Codelist:
		m.Codelists = append(m.Codelists, v)
	case *model.ConceptScheme:
		m.ConceptSchemes = append(m.ConceptSchemes, v)
	case *model.CategoryScheme:
		m.CategorySchemes = append(m.CategorySchemes, v)
	case *model.DataStructureDefinition:
		m.DataStructures = append(m.DataStructures, v)
	case *model.DataflowDefinition:
		m.Dataflows = append(m.Dataflows, v)
	default:
		return Issues{{
			Code:     CodeUnsupportedMessageType,
			Identity: a.Identity().String(),
			Message:  fmt.Sprintf("artefact class %s has no place in a structure message", a.Identity().Class),
		}}
	}
	return nil
}

// Find returns the artefact matching ref by class, agency, id and (unless
// the reference is unversioned) version.
func (m *StructureMessage) Find(ref model.Reference) (model.Artefact, bool) {
	match := func(a model.Artefact) bool {
		id := a.Identity()
		if id.Class != ref.Class || id.Agency != ref.Agency || id.ID != ref.ID {
			return false
		}
		return ref.Version == "" || ref.Version == id.Version
	}
	for _, a := range m.Artefacts() {
		if match(a) {
			return a, true
		}
	}
	return nil, false
}

// Artefacts returns every artefact in reference-topological emission order:
// item schemes (which reference nothing) first, then DSDs, then dataflows.
func (m *StructureMessage) Artefacts() []model.Artefact {
	out := make([]model.Artefact, 0,
		len(m.Codelists)+len(m.ConceptSchemes)+len(m.CategorySchemes)+len(m.DataStructures)+len(m.Dataflows))
	for _, a := range m.Codelists {
		out = append(out, a)
	}
	for _, a := range m.ConceptSchemes {
		out = append(out, a)
	}
	for _, a := range m.CategorySchemes {
		out = append(out, a)
	}
	for _, a := range m.DataStructures {
		out = append(out, a)
	}
	for _, a := range m.Dataflows {
		out = append(out, a)
	}
	return out
}

// DataMessage holds an ordered list of data sets.
type DataMessage struct {
	Header   Header
	DataSets []*model.DataSet
}

func (*DataMessage) isMessage() {}

// ErrorMessage is a service-level error payload.
type ErrorMessage struct {
	Header Header
	Code   int
	Text   string
}

func (*ErrorMessage) isMessage() {}
