package sdmxjson

import (
	"context"
	"fmt"
	"io"
	"time"

	j "github.com/goccy/go-json"

	"github.com/sdmxkit/sdmx"
	"github.com/sdmxkit/sdmx/internal/organize"
	"github.com/sdmxkit/sdmx/model"
)

func write(ctx context.Context, w io.Writer, msg sdmx.Message, f sdmx.Format, opts *sdmx.WriteOptions) error {
	_ = ctx // serialization is synchronous and non-blocking

	switch m := msg.(type) {
	case *sdmx.StructureMessage:
		if f.Data() {
			return model.Issues{{Code: model.CodeUnsupportedMessageType,
				Message: fmt.Sprintf("cannot write a structure message as %s", f)}}
		}
		doc := document{Meta: metaFrom(m.Header, nil), Data: structuresFrom(m)}
		return encode(w, doc)
	case *sdmx.DataMessage:
		if !f.Data() {
			return model.Issues{{Code: model.CodeUnsupportedMessageType,
				Message: fmt.Sprintf("cannot write a data message as %s", f)}}
		}
		return writeDataMessage(w, m, f, opts)
	case *sdmx.ErrorMessage:
		doc := document{
			Meta:  metaFrom(m.Header, nil),
			Error: &errorDTO{Code: m.Code, Text: m.Text},
		}
		return encode(w, doc)
	}
	return model.Issues{{Code: model.CodeUnsupportedMessageType,
		Message: fmt.Sprintf("message type %T has no SDMX-JSON form", msg)}}
}

func encode(w io.Writer, doc document) error {
	enc := j.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return model.Issues{{Code: model.CodeParseError, Message: "JSON emission failed", Cause: err}}
	}
	return nil
}

// ---- header ----

func metaFrom(h sdmx.Header, structures []structureRefDTO) *metaDTO {
	meta := &metaDTO{
		ID:         h.ID,
		Test:       h.Test,
		Sender:     partyFrom(h.Sender),
		Receiver:   partyFrom(h.Receiver),
		Structures: structures,
	}
	if !h.Prepared.IsZero() {
		meta.Prepared = h.Prepared.UTC().Format(time.RFC3339)
	}
	if meta.ID == "" && !meta.Test && meta.Prepared == "" &&
		meta.Sender == nil && meta.Receiver == nil && len(structures) == 0 {
		return nil
	}
	return meta
}

func partyFrom(p sdmx.Party) *partyDTO {
	if p.ID == "" {
		return nil
	}
	return &partyDTO{ID: p.ID, Name: localeMap(p.Name)}
}

func localeMap(is model.InternationalString) map[string]string {
	if len(is) == 0 {
		return nil
	}
	return map[string]string(is)
}

// ---- structural artefacts ----

func namedFrom(c model.Common) namedDTO {
	dto := namedDTO{
		ID:          c.ID,
		Name:        localeMap(c.Name),
		Description: localeMap(c.Description),
	}
	for _, a := range c.Annotations {
		dto.Annotations = append(dto.Annotations, annotationDTO{
			ID: a.ID, Type: a.Type, Title: a.Title, URL: a.URL, Text: localeMap(a.Text),
		})
	}
	return dto
}

func maintainedFrom(m model.Maintainable) maintainedDTO {
	return maintainedDTO{
		namedDTO: namedFrom(m.Common),
		AgencyID: m.Agency,
		Version:  m.Version,
		IsFinal:  m.Final,
	}
}

func representationFrom(rep *model.Representation) *representationDTO {
	if rep == nil {
		return nil
	}
	dto := &representationDTO{TextType: rep.TextType.String()}
	if !rep.Enumeration.IsZero() {
		dto.Enumeration = model.URN(rep.Enumeration)
		dto.TextType = ""
	}
	return dto
}

func conceptURN(ref model.Reference) string {
	if ref.IsZero() {
		return ""
	}
	return model.URN(ref)
}

func structuresFrom(m *sdmx.StructureMessage) *dataDTO {
	data := &dataDTO{}
	for _, cl := range m.Codelists {
		dto := codelistDTO{maintainedDTO: maintainedFrom(cl.Maintainable)}
		for _, code := range cl.Items() {
			dto.Codes = append(dto.Codes, codeDTO{namedDTO: namedFrom(code.Common), Parent: code.ParentID})
		}
		data.Codelists = append(data.Codelists, dto)
	}
	for _, cs := range m.ConceptSchemes {
		dto := conceptSchemeDTO{maintainedDTO: maintainedFrom(cs.Maintainable)}
		for _, con := range cs.Items() {
			dto.Concepts = append(dto.Concepts, conceptDTO{
				namedDTO:           namedFrom(con.Common),
				CoreRepresentation: representationFrom(con.CoreRepresentation),
			})
		}
		data.ConceptSchemes = append(data.ConceptSchemes, dto)
	}
	for _, cs := range m.CategorySchemes {
		dto := categorySchemeDTO{maintainedDTO: maintainedFrom(cs.Maintainable)}
		for _, cat := range cs.Items() {
			dto.Categories = append(dto.Categories, categoryDTO{namedDTO: namedFrom(cat.Common), Parent: cat.ParentID})
		}
		data.CategorySchemes = append(data.CategorySchemes, dto)
	}
	for _, d := range m.DataStructures {
		data.DataStructures = append(data.DataStructures, dsdFrom(d))
	}
	for _, df := range m.Dataflows {
		dto := dataflowDTO{maintainedDTO: maintainedFrom(df.Maintainable)}
		if !df.Structure.IsZero() {
			dto.Structure = model.URN(df.Structure)
		}
		data.Dataflows = append(data.Dataflows, dto)
	}
	return data
}

func dsdFrom(d *model.DataStructureDefinition) dsdDTO {
	dto := dsdDTO{maintainedDTO: maintainedFrom(d.Maintainable)}
	for _, dim := range d.Dimensions() {
		dto.Dimensions = append(dto.Dimensions, dimensionDTO{
			namedDTO:       namedFrom(dim.Common),
			Position:       dim.Order + 1,
			Concept:        conceptURN(dim.ConceptIdentity),
			Representation: representationFrom(dim.Representation),
			Time:           dim.Time,
		})
	}
	for _, att := range d.Attributes() {
		dto.Attributes = append(dto.Attributes, attributeDTO{
			namedDTO:         namedFrom(att.Common),
			AssignmentStatus: att.Status.String(),
			AttachmentLevel:  att.Level.String(),
			Group:            att.GroupID,
			Concept:          conceptURN(att.ConceptIdentity),
			Representation:   representationFrom(att.Representation),
		})
	}
	for _, m := range d.Measures() {
		dto.Measures = append(dto.Measures, measureDTO{
			namedDTO:       namedFrom(m.Common),
			Concept:        conceptURN(m.ConceptIdentity),
			Representation: representationFrom(m.Representation),
		})
	}
	return dto
}

// ---- data sets ----

func organizeMode(opts *sdmx.WriteOptions) organize.Mode {
	if opts == nil {
		return organize.Auto
	}
	switch opts.Organization {
	case sdmx.OrganizationSeries:
		return organize.Series
	case sdmx.OrganizationFlat:
		return organize.Flat
	}
	return organize.Auto
}

type dataSetPlan struct {
	ds          *model.DataSet
	dsd         *model.DataStructureDefinition
	asSeries    bool
	structureID string
}

func planDataSets(m *sdmx.DataMessage, mode organize.Mode) ([]dataSetPlan, []structureRefDTO, error) {
	plans := make([]dataSetPlan, 0, len(m.DataSets))
	var entries []structureRefDTO
	seen := map[string]string{}

	for _, ds := range m.DataSets {
		dsd := ds.DSD()
		if dsd == nil {
			return nil, nil, model.Issues{{
				Code:     model.CodeUnresolvedReference,
				Identity: ds.Structure.String(),
				Message:  "data set has no resolved DSD; attach one before writing",
			}}
		}
		ref := ds.Structure
		if ref.IsZero() {
			ref = model.Reference{Identity: dsd.Identity()}
		}
		p := dataSetPlan{ds: ds, dsd: dsd, asSeries: organize.AsSeries(ds, mode)}
		dimAtObs := "AllDimensions"
		if p.asSeries {
			dimAtObs = organize.ObsDimension(dsd)
		}
		key := ref.Identity.Key() + "|" + ref.ItemID + "|" + dimAtObs
		id, ok := seen[key]
		if !ok {
			id = fmt.Sprintf("ST%d", len(entries)+1)
			seen[key] = id
			entries = append(entries, structureRefDTO{ID: id, URN: model.URN(ref), DimAtObs: dimAtObs})
		}
		p.structureID = id
		plans = append(plans, p)
	}
	return plans, entries, nil
}

// jsonValue renders a model value as a JSON scalar: a number when the
// declared representation was numeric, a string otherwise.
func jsonValue(v model.Value) any {
	if v.Numeric {
		return j.Number(v.Raw)
	}
	return v.Raw
}

func avsFrom(avs model.AttributeValues) []avDTO {
	out := make([]avDTO, 0, len(avs))
	for _, av := range avs {
		out = append(out, avDTO{ID: av.ID, Value: jsonValue(av.Value)})
	}
	return out
}

func kvsFrom(key model.Key) []kvDTO {
	out := make([]kvDTO, 0, key.Len())
	for _, kv := range key.Values() {
		out = append(out, kvDTO{ID: kv.ID, Value: kv.Value})
	}
	return out
}

func writeDataMessage(w io.Writer, m *sdmx.DataMessage, f sdmx.Format, opts *sdmx.WriteOptions) error {
	plans, entries, err := planDataSets(m, organizeMode(opts))
	if err != nil {
		return err
	}

	var raw j.RawMessage
	if f.StructureSpecific() {
		dtos := make([]ssDataSetDTO, 0, len(plans))
		for _, p := range plans {
			dto, err := specificDataSetFrom(p)
			if err != nil {
				return err
			}
			dtos = append(dtos, dto)
		}
		if raw, err = j.Marshal(dtos); err != nil {
			return model.Issues{{Code: model.CodeParseError, Message: "JSON emission failed", Cause: err}}
		}
	} else {
		dtos := make([]genDataSetDTO, 0, len(plans))
		for _, p := range plans {
			dto, err := genericDataSetFrom(p)
			if err != nil {
				return err
			}
			dtos = append(dtos, dto)
		}
		if raw, err = j.Marshal(dtos); err != nil {
			return model.Issues{{Code: model.CodeParseError, Message: "JSON emission failed", Cause: err}}
		}
	}

	doc := document{Meta: metaFrom(m.Header, entries), Data: &dataDTO{DataSets: raw}}
	return encode(w, doc)
}

func genericDataSetFrom(p dataSetPlan) (genDataSetDTO, error) {
	dto := genDataSetDTO{
		StructureRef: p.structureID,
		Action:       p.ds.Action,
		Attributes:   avsFrom(organize.DataSetAttributes(p.ds)),
	}
	for _, g := range p.ds.Groups() {
		dto.Groups = append(dto.Groups, genGroupDTO{
			Type:       g.ID,
			Key:        kvsFrom(g.Key),
			Attributes: avsFrom(organize.GroupAttributes(p.ds, g)),
		})
	}

	if p.asSeries {
		series, err := organize.SeriesView(p.ds)
		if err != nil {
			return dto, err
		}
		for _, s := range series {
			sd := genSeriesDTO{Key: kvsFrom(s.Key), Attributes: avsFrom(s.Attributes)}
			for _, o := range s.Obs {
				od := genObsDTO{Key: kvsFrom(o.Key), Attributes: avsFrom(o.Attributes)}
				if o.HasValue {
					od.Value = jsonValue(o.Value)
				}
				sd.Observations = append(sd.Observations, od)
			}
			dto.Series = append(dto.Series, sd)
		}
		return dto, nil
	}

	obs, err := organize.FlatView(p.ds)
	if err != nil {
		return dto, err
	}
	for _, o := range obs {
		od := genObsDTO{Key: kvsFrom(o.Key), Attributes: avsFrom(o.Attributes)}
		if o.HasValue {
			od.Value = jsonValue(o.Value)
		}
		dto.Observations = append(dto.Observations, od)
	}
	return dto, nil
}

func ssValuesFrom(key model.Key, avs model.AttributeValues) ssValues {
	if key.Len() == 0 && len(avs) == 0 {
		return nil
	}
	out := make(ssValues, key.Len()+len(avs))
	for _, kv := range key.Values() {
		out[kv.ID] = kv.Value
	}
	for _, av := range avs {
		out[av.ID] = jsonValue(av.Value)
	}
	return out
}

func measureID(dsd *model.DataStructureDefinition) string {
	if m := measureFor(dsd); m != nil {
		return m.ID
	}
	return "OBS_VALUE"
}

func specificDataSetFrom(p dataSetPlan) (ssDataSetDTO, error) {
	dto := ssDataSetDTO{
		StructureRef: p.structureID,
		Action:       p.ds.Action,
		Values:       ssValuesFrom(model.Key{}, organize.DataSetAttributes(p.ds)),
	}
	for _, g := range p.ds.Groups() {
		dto.Groups = append(dto.Groups, ssGroupDTO{
			Type:   g.ID,
			Values: ssValuesFrom(g.Key, organize.GroupAttributes(p.ds, g)),
		})
	}

	mid := measureID(p.dsd)
	obsValues := func(o organize.ObsRecord) ssValues {
		values := ssValuesFrom(o.Key, o.Attributes)
		if values == nil {
			values = ssValues{}
		}
		if o.HasValue {
			values[mid] = jsonValue(o.Value)
		}
		return values
	}

	if p.asSeries {
		series, err := organize.SeriesView(p.ds)
		if err != nil {
			return dto, err
		}
		for _, s := range series {
			sd := ssSeriesDTO{Values: ssValuesFrom(s.Key, s.Attributes)}
			for _, o := range s.Obs {
				sd.Observations = append(sd.Observations, obsValues(o))
			}
			dto.Series = append(dto.Series, sd)
		}
		return dto, nil
	}

	obs, err := organize.FlatView(p.ds)
	if err != nil {
		return dto, err
	}
	for _, o := range obs {
		dto.Observations = append(dto.Observations, obsValues(o))
	}
	return dto, nil
}
