package model

// Concept is a member of a ConceptScheme.
type Concept struct {
	Common
	// CoreRepresentation optionally constrains values taken by components
	// using this concept.
	CoreRepresentation *Representation
}

func (c *Concept) ItemID() string { return c.ID }

// ConceptScheme is an ordered scheme of concepts.
type ConceptScheme struct {
	ItemScheme[*Concept]
}

// NewConceptScheme builds an empty concept scheme with the given maintainer
// tuple.
func NewConceptScheme(agency, id, version string) *ConceptScheme {
	cs := &ConceptScheme{}
	cs.Agency, cs.ID, cs.Version = agency, id, version
	return cs
}

func (cs *ConceptScheme) Identity() Identity { return cs.identity(ClassConceptScheme) }
