package sdmxjson

import j "github.com/goccy/go-json"

// The DTO layer mirrors the wire document one-to-one. Field order here is
// emission order.

type document struct {
	Meta  *metaDTO  `json:"meta,omitempty"`
	Data  *dataDTO  `json:"data,omitempty"`
	Error *errorDTO `json:"error,omitempty"`
}

type metaDTO struct {
	ID         string            `json:"id,omitempty"`
	Test       bool              `json:"test"`
	Prepared   string            `json:"prepared,omitempty"`
	Sender     *partyDTO         `json:"sender,omitempty"`
	Receiver   *partyDTO         `json:"receiver,omitempty"`
	Structures []structureRefDTO `json:"structures,omitempty"`
}

type partyDTO struct {
	ID   string            `json:"id"`
	Name map[string]string `json:"name,omitempty"`
}

// structureRefDTO announces a structure a data set is built on; data sets
// point back at it through its document-local id.
type structureRefDTO struct {
	ID       string `json:"id"`
	URN      string `json:"urn"`
	DimAtObs string `json:"dimensionAtObservation,omitempty"`
}

type errorDTO struct {
	Code int    `json:"code"`
	Text string `json:"text,omitempty"`
}

type dataDTO struct {
	Codelists       []codelistDTO       `json:"codelists,omitempty"`
	ConceptSchemes  []conceptSchemeDTO  `json:"conceptSchemes,omitempty"`
	CategorySchemes []categorySchemeDTO `json:"categorySchemes,omitempty"`
	DataStructures  []dsdDTO            `json:"dataStructures,omitempty"`
	Dataflows       []dataflowDTO       `json:"dataflows,omitempty"`
	// DataSets stays raw until the format is known: the generic and the
	// structure-specific sub-variants use different element shapes.
	DataSets j.RawMessage `json:"dataSets,omitempty"`
}

type annotationDTO struct {
	ID    string            `json:"id,omitempty"`
	Type  string            `json:"type,omitempty"`
	Title string            `json:"title,omitempty"`
	URL   string            `json:"url,omitempty"`
	Text  map[string]string `json:"text,omitempty"`
}

type namedDTO struct {
	ID          string            `json:"id"`
	Name        map[string]string `json:"name,omitempty"`
	Description map[string]string `json:"description,omitempty"`
	Annotations []annotationDTO   `json:"annotations,omitempty"`
}

type maintainedDTO struct {
	namedDTO
	AgencyID string `json:"agencyID,omitempty"`
	Version  string `json:"version,omitempty"`
	IsFinal  bool   `json:"isFinal,omitempty"`
}

type codeDTO struct {
	namedDTO
	Parent string `json:"parent,omitempty"`
}

type codelistDTO struct {
	maintainedDTO
	Codes []codeDTO `json:"codes,omitempty"`
}

type representationDTO struct {
	// Enumeration is the referenced codelist's URN.
	Enumeration string `json:"enumeration,omitempty"`
	TextType    string `json:"textType,omitempty"`
}

type conceptDTO struct {
	namedDTO
	CoreRepresentation *representationDTO `json:"coreRepresentation,omitempty"`
}

type conceptSchemeDTO struct {
	maintainedDTO
	Concepts []conceptDTO `json:"concepts,omitempty"`
}

type categoryDTO struct {
	namedDTO
	Parent string `json:"parent,omitempty"`
}

type categorySchemeDTO struct {
	maintainedDTO
	Categories []categoryDTO `json:"categories,omitempty"`
}

type dimensionDTO struct {
	namedDTO
	Position       int                `json:"position"`
	Concept        string             `json:"concept,omitempty"`
	Representation *representationDTO `json:"representation,omitempty"`
	Time           bool               `json:"timeDimension,omitempty"`
}

type attributeDTO struct {
	namedDTO
	AssignmentStatus string             `json:"assignmentStatus,omitempty"`
	AttachmentLevel  string             `json:"attachmentLevel"`
	Group            string             `json:"group,omitempty"`
	Concept          string             `json:"concept,omitempty"`
	Representation   *representationDTO `json:"representation,omitempty"`
}

type measureDTO struct {
	namedDTO
	Concept        string             `json:"concept,omitempty"`
	Representation *representationDTO `json:"representation,omitempty"`
}

type dsdDTO struct {
	maintainedDTO
	Dimensions []dimensionDTO `json:"dimensions,omitempty"`
	Attributes []attributeDTO `json:"attributes,omitempty"`
	Measures   []measureDTO   `json:"measures,omitempty"`
}

type dataflowDTO struct {
	maintainedDTO
	Structure string `json:"structure,omitempty"`
}

// ---- generic data sub-variant: self-describing id/value pairs ----

type kvDTO struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// avDTO carries an attribute value; Value is a JSON string or number
// depending on the attribute's declared representation.
type avDTO struct {
	ID    string `json:"id"`
	Value any    `json:"value"`
}

type genObsDTO struct {
	Key        []kvDTO `json:"key,omitempty"`
	Value      any     `json:"value,omitempty"`
	Attributes []avDTO `json:"attributes,omitempty"`
}

type genGroupDTO struct {
	Type       string  `json:"type,omitempty"`
	Key        []kvDTO `json:"key,omitempty"`
	Attributes []avDTO `json:"attributes,omitempty"`
}

type genSeriesDTO struct {
	Key          []kvDTO     `json:"key,omitempty"`
	Attributes   []avDTO     `json:"attributes,omitempty"`
	Observations []genObsDTO `json:"observations,omitempty"`
}

type genDataSetDTO struct {
	StructureRef string         `json:"structureRef,omitempty"`
	Action       string         `json:"action,omitempty"`
	Attributes   []avDTO        `json:"attributes,omitempty"`
	Groups       []genGroupDTO  `json:"groups,omitempty"`
	Series       []genSeriesDTO `json:"series,omitempty"`
	Observations []genObsDTO    `json:"observations,omitempty"`
}

// ---- structure-specific data sub-variant: values keyed by component id ----

// ssValues holds dimension values, attribute values and the measure value of
// one site in a single object keyed by component id, the JSON counterpart of
// the attribute-encoded XML form. Interpretation requires the DSD.
type ssValues map[string]any

type ssGroupDTO struct {
	Type   string   `json:"type,omitempty"`
	Values ssValues `json:"values,omitempty"`
}

type ssSeriesDTO struct {
	Values       ssValues   `json:"values,omitempty"`
	Observations []ssValues `json:"observations,omitempty"`
}

type ssDataSetDTO struct {
	StructureRef string        `json:"structureRef,omitempty"`
	Action       string        `json:"action,omitempty"`
	Values       ssValues      `json:"values,omitempty"`
	Groups       []ssGroupDTO  `json:"groups,omitempty"`
	Series       []ssSeriesDTO `json:"series,omitempty"`
	Observations []ssValues    `json:"observations,omitempty"`
}
