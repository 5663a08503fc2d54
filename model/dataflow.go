package model

// DataflowDefinition is the maintainable artefact through which data is
// conventionally addressed. It references exactly one DSD.
type DataflowDefinition struct {
	Maintainable
	// Structure references the defining DSD.
	Structure Reference
}

// NewDataflowDefinition builds a dataflow with the given maintainer tuple
// referencing the given DSD.
func NewDataflowDefinition(agency, id, version string, structure Reference) *DataflowDefinition {
	df := &DataflowDefinition{Structure: structure}
	df.Agency, df.ID, df.Version = agency, id, version
	return df
}

func (df *DataflowDefinition) Identity() Identity { return df.identity(ClassDataflow) }
