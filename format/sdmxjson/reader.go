package sdmxjson

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	j "github.com/goccy/go-json"

	"github.com/sdmxkit/sdmx"
	"github.com/sdmxkit/sdmx/model"
	"github.com/sdmxkit/sdmx/resolver"
)

type headerStruct struct {
	ref      model.Reference
	dimAtObs string
}

type reader struct {
	res           *resolver.Resolver
	opts          *sdmx.ParseOptions
	headerStructs map[string]headerStruct
	headerOrder   []string
}

func parse(ctx context.Context, rd io.Reader, f sdmx.Format, opts *sdmx.ParseOptions) (sdmx.Message, error) {
	_ = ctx // decoding is synchronous and non-blocking

	dec := j.NewDecoder(rd)
	dec.UseNumber()
	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, model.Issues{{Code: model.CodeParseError, Message: "malformed JSON", Cause: err}}
	}

	r := &reader{
		res:           resolver.New(opts.Lookup),
		opts:          opts,
		headerStructs: map[string]headerStruct{},
	}
	for _, a := range opts.Structures {
		if err := r.res.Register(a); err != nil {
			return nil, err
		}
	}

	header, err := r.buildHeader(doc.Meta)
	if err != nil {
		return nil, err
	}

	if doc.Error != nil {
		return &sdmx.ErrorMessage{Header: header, Code: doc.Error.Code, Text: doc.Error.Text}, nil
	}

	if !f.Data() {
		if doc.Data != nil && len(doc.Data.DataSets) > 0 {
			return nil, mismatch(f, "document carries data sets")
		}
		msg := &sdmx.StructureMessage{Header: header}
		if doc.Data != nil {
			if err := r.buildStructures(doc.Data, msg); err != nil {
				return nil, err
			}
		}
		if err := r.res.Finish(); err != nil {
			return nil, err
		}
		return msg, nil
	}

	msg := &sdmx.DataMessage{Header: header}
	if doc.Data != nil {
		// Embedded structural metadata feeds the session resolver so data
		// sets can bind to a DSD carried in the same document.
		if err := r.buildStructures(doc.Data, nil); err != nil {
			return nil, err
		}
		if err := r.buildDataSets(doc.Data.DataSets, f, msg); err != nil {
			return nil, err
		}
	}
	if err := r.res.Finish(); err != nil {
		return nil, err
	}
	return msg, nil
}

func mismatch(f sdmx.Format, detail string) error {
	return model.Issues{{
		Code:    model.CodeUnsupportedMessageType,
		Message: fmt.Sprintf("payload does not match stated format %s: %s", f, detail),
	}}
}

// ---- header ----

func (r *reader) buildHeader(meta *metaDTO) (sdmx.Header, error) {
	var h sdmx.Header
	if meta == nil {
		return h, nil
	}
	h.ID = meta.ID
	h.Test = meta.Test
	if meta.Prepared != "" {
		t, err := time.Parse(time.RFC3339, meta.Prepared)
		if err != nil {
			return h, model.Issues{{Code: model.CodeParseError,
				Message: fmt.Sprintf("malformed prepared timestamp %q", meta.Prepared), Cause: err}}
		}
		h.Prepared = t
	}
	h.Sender = party(meta.Sender)
	h.Receiver = party(meta.Receiver)
	for _, s := range meta.Structures {
		ref, err := model.ParseURN(s.URN)
		if err != nil {
			return h, err
		}
		h.Structures = append(h.Structures, ref)
		r.headerStructs[s.ID] = headerStruct{ref: ref, dimAtObs: s.DimAtObs}
		r.headerOrder = append(r.headerOrder, s.ID)
	}
	return h, nil
}

func party(p *partyDTO) sdmx.Party {
	if p == nil {
		return sdmx.Party{}
	}
	return sdmx.Party{ID: p.ID, Name: intlString(p.Name)}
}

func intlString(m map[string]string) model.InternationalString {
	if len(m) == 0 {
		return nil
	}
	return model.InternationalString(m)
}

// ---- structural artefacts ----

// register indexes a rebuilt artefact with the session resolver and, when
// building a structure message, places it in the message.
func (r *reader) register(msg *sdmx.StructureMessage, a model.Artefact) error {
	if msg != nil {
		if err := msg.Add(a); err != nil {
			return err
		}
	}
	return r.res.Register(a)
}

func (r *reader) buildStructures(data *dataDTO, msg *sdmx.StructureMessage) error {
	for _, dto := range data.Codelists {
		cl, err := r.buildCodelist(dto)
		if err != nil {
			return err
		}
		if err := r.register(msg, cl); err != nil {
			return err
		}
	}
	for _, dto := range data.ConceptSchemes {
		cs, err := r.buildConceptScheme(dto)
		if err != nil {
			return err
		}
		if err := r.register(msg, cs); err != nil {
			return err
		}
	}
	for _, dto := range data.CategorySchemes {
		cs, err := r.buildCategoryScheme(dto)
		if err != nil {
			return err
		}
		if err := r.register(msg, cs); err != nil {
			return err
		}
	}
	for _, dto := range data.DataStructures {
		d, err := r.buildDSD(dto)
		if err != nil {
			return err
		}
		if err := r.register(msg, d); err != nil {
			return err
		}
	}
	for _, dto := range data.Dataflows {
		df, err := r.buildDataflow(dto)
		if err != nil {
			return err
		}
		if err := r.register(msg, df); err != nil {
			return err
		}
	}
	return nil
}

func common(dto namedDTO) model.Common {
	c := model.Common{
		ID:          dto.ID,
		Name:        intlString(dto.Name),
		Description: intlString(dto.Description),
	}
	for _, a := range dto.Annotations {
		c.Annotations = append(c.Annotations, model.Annotation{
			ID: a.ID, Type: a.Type, Title: a.Title, URL: a.URL, Text: intlString(a.Text),
		})
	}
	return c
}

func applyMaintained(m *model.Maintainable, dto maintainedDTO) {
	m.Common = common(dto.namedDTO)
	m.Agency = dto.AgencyID
	m.Version = dto.Version
	m.Final = dto.IsFinal
}

func (r *reader) buildCodelist(dto codelistDTO) (*model.Codelist, error) {
	cl := model.NewCodelist(dto.AgencyID, dto.ID, dto.Version)
	applyMaintained(&cl.Maintainable, dto.maintainedDTO)
	for _, cd := range dto.Codes {
		code := &model.Code{Common: common(cd.namedDTO), ParentID: cd.Parent}
		if err := cl.Add(code); err != nil {
			return nil, err
		}
	}
	if err := cl.Validate(); err != nil {
		return nil, err
	}
	return cl, nil
}

func (r *reader) buildConceptScheme(dto conceptSchemeDTO) (*model.ConceptScheme, error) {
	cs := model.NewConceptScheme(dto.AgencyID, dto.ID, dto.Version)
	applyMaintained(&cs.Maintainable, dto.maintainedDTO)
	for _, cd := range dto.Concepts {
		con := &model.Concept{Common: common(cd.namedDTO)}
		if cd.CoreRepresentation != nil {
			rep, err := r.buildRepresentation(cd.CoreRepresentation)
			if err != nil {
				return nil, err
			}
			con.CoreRepresentation = rep
		}
		if err := cs.Add(con); err != nil {
			return nil, err
		}
	}
	return cs, nil
}

func (r *reader) buildCategoryScheme(dto categorySchemeDTO) (*model.CategoryScheme, error) {
	cs := model.NewCategoryScheme(dto.AgencyID, dto.ID, dto.Version)
	applyMaintained(&cs.Maintainable, dto.maintainedDTO)
	for _, cd := range dto.Categories {
		cat := &model.Category{Common: common(cd.namedDTO), ParentID: cd.Parent}
		if err := cs.Add(cat); err != nil {
			return nil, err
		}
	}
	if err := cs.Validate(); err != nil {
		return nil, err
	}
	return cs, nil
}

func (r *reader) buildRepresentation(dto *representationDTO) (*model.Representation, error) {
	rep := &model.Representation{}
	if dto.Enumeration != "" {
		ref, err := model.ParseURN(dto.Enumeration)
		if err != nil {
			return nil, err
		}
		rep.Enumeration = ref
		// The codelist may arrive later in the document; an enumeration
		// nothing registers is reported by Finish.
		r.res.Defer(ref, func(model.Artefact) {})
	}
	if dto.TextType == model.TextNumber.String() {
		rep.TextType = model.TextNumber
	}
	return rep, nil
}

func (r *reader) buildConceptRef(urn string) (model.Reference, error) {
	if urn == "" {
		return model.Reference{}, nil
	}
	ref, err := model.ParseURN(urn)
	if err != nil {
		return model.Reference{}, err
	}
	r.res.Defer(ref, func(model.Artefact) {})
	return ref, nil
}

func (r *reader) buildDSD(dto dsdDTO) (*model.DataStructureDefinition, error) {
	d := model.NewDataStructureDefinition(dto.AgencyID, dto.ID, dto.Version)
	applyMaintained(&d.Maintainable, dto.maintainedDTO)
	for i, dd := range dto.Dimensions {
		dim := &model.Dimension{Common: common(dd.namedDTO), Order: i, Time: dd.Time}
		if dd.Position > 0 {
			dim.Order = dd.Position - 1
		}
		ref, err := r.buildConceptRef(dd.Concept)
		if err != nil {
			return nil, err
		}
		dim.ConceptIdentity = ref
		if dd.Representation != nil {
			rep, err := r.buildRepresentation(dd.Representation)
			if err != nil {
				return nil, err
			}
			dim.Representation = rep
		}
		if err := d.AddDimension(dim); err != nil {
			return nil, err
		}
	}
	for _, ad := range dto.Attributes {
		att := &model.DataAttribute{Common: common(ad.namedDTO), Level: model.AttachSeries, GroupID: ad.Group}
		if ad.AttachmentLevel != "" {
			lv, err := model.ParseAttachmentLevel(ad.AttachmentLevel)
			if err != nil {
				return nil, err
			}
			att.Level = lv
		}
		if ad.AssignmentStatus == model.AssignmentMandatory.String() {
			att.Status = model.AssignmentMandatory
		}
		ref, err := r.buildConceptRef(ad.Concept)
		if err != nil {
			return nil, err
		}
		att.ConceptIdentity = ref
		if ad.Representation != nil {
			rep, err := r.buildRepresentation(ad.Representation)
			if err != nil {
				return nil, err
			}
			att.Representation = rep
		}
		if err := d.AddAttribute(att); err != nil {
			return nil, err
		}
	}
	for _, md := range dto.Measures {
		m := &model.PrimaryMeasure{Common: common(md.namedDTO)}
		ref, err := r.buildConceptRef(md.Concept)
		if err != nil {
			return nil, err
		}
		m.ConceptIdentity = ref
		if md.Representation != nil {
			rep, err := r.buildRepresentation(md.Representation)
			if err != nil {
				return nil, err
			}
			m.Representation = rep
		}
		if err := d.AddMeasure(m); err != nil {
			return nil, err
		}
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func (r *reader) buildDataflow(dto dataflowDTO) (*model.DataflowDefinition, error) {
	var structure model.Reference
	if dto.Structure != "" {
		ref, err := model.ParseURN(dto.Structure)
		if err != nil {
			return nil, err
		}
		structure = ref
		r.res.Defer(ref, func(model.Artefact) {})
	}
	df := model.NewDataflowDefinition(dto.AgencyID, dto.ID, dto.Version, structure)
	applyMaintained(&df.Maintainable, dto.maintainedDTO)
	return df, nil
}

// ---- data sets ----

// structureFor resolves the DSD a data set is built on: through the meta
// entry its structureRef names, through the sole meta entry, or through a
// caller-supplied DSD when the document embeds no structural metadata.
func (r *reader) structureFor(structureRef string) (*model.DataStructureDefinition, model.Reference, *model.DataflowDefinition, error) {
	var ref model.Reference
	if hs, ok := r.headerStructs[structureRef]; ok {
		ref = hs.ref
	} else if len(r.headerOrder) == 1 {
		ref = r.headerStructs[r.headerOrder[0]].ref
	}

	if ref.IsZero() {
		var only *model.DataStructureDefinition
		for _, a := range r.opts.Structures {
			if dsd, ok := a.(*model.DataStructureDefinition); ok {
				if only != nil {
					return nil, ref, nil, model.Issues{{
						Code:    model.CodeUnresolvedReference,
						Message: "data set names no structure and several DSDs were supplied; cannot choose",
					}}
				}
				only = dsd
			}
		}
		if only == nil {
			return nil, ref, nil, model.Issues{{
				Code:    model.CodeUnresolvedReference,
				Message: "data set names no structure and no DSD was supplied",
			}}
		}
		return only, model.Reference{Identity: only.Identity()}, nil, nil
	}

	a, err := r.res.Resolve(ref)
	if err != nil {
		return nil, ref, nil, err
	}
	switch v := a.(type) {
	case *model.DataStructureDefinition:
		return v, ref, nil, nil
	case *model.DataflowDefinition:
		target, err := r.res.Resolve(v.Structure)
		if err != nil {
			return nil, ref, nil, err
		}
		dsd, ok := target.(*model.DataStructureDefinition)
		if !ok {
			return nil, ref, nil, model.Issues{{
				Code:     model.CodeUnresolvedReference,
				Identity: v.Structure.String(),
				Message:  "dataflow structure reference does not resolve to a DSD",
			}}
		}
		return dsd, ref, v, nil
	}
	return nil, ref, nil, model.Issues{{
		Code:     model.CodeUnresolvedReference,
		Identity: ref.String(),
		Message:  fmt.Sprintf("structure reference resolves to a %T, not a DSD or dataflow", a),
	}}
}

func (r *reader) buildDataSets(raw j.RawMessage, f sdmx.Format, msg *sdmx.DataMessage) error {
	if len(raw) == 0 {
		return nil
	}
	if f.StructureSpecific() {
		var dtos []ssDataSetDTO
		if err := j.Unmarshal(raw, &dtos); err != nil {
			return model.Issues{{Code: model.CodeParseError, Message: "malformed dataSets", Cause: err}}
		}
		for _, dto := range dtos {
			ds, err := r.buildSpecificDataSet(dto)
			if err != nil {
				return err
			}
			msg.DataSets = append(msg.DataSets, ds)
		}
		return nil
	}
	var dtos []genDataSetDTO
	if err := j.Unmarshal(raw, &dtos); err != nil {
		return model.Issues{{Code: model.CodeParseError, Message: "malformed dataSets", Cause: err}}
	}
	for _, dto := range dtos {
		ds, err := r.buildGenericDataSet(dto)
		if err != nil {
			return err
		}
		msg.DataSets = append(msg.DataSets, ds)
	}
	return nil
}

// rawValue flattens a decoded JSON scalar to its wire text.
func rawValue(v any) (string, bool, error) {
	switch t := v.(type) {
	case nil:
		return "", false, nil
	case string:
		return t, true, nil
	case j.Number:
		return t.String(), true, nil
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), true, nil
	case bool:
		return strconv.FormatBool(t), true, nil
	}
	return "", false, model.Issues{{
		Code:    model.CodeInvalidValue,
		Message: fmt.Sprintf("value must be a JSON scalar, got %T", v),
	}}
}

func measureFor(dsd *model.DataStructureDefinition) *model.PrimaryMeasure {
	if m, ok := dsd.PrimaryMeasure(); ok {
		return m
	}
	if m, ok := dsd.Measure("OBS_VALUE"); ok {
		return m
	}
	if ms := dsd.Measures(); len(ms) > 0 {
		return ms[0]
	}
	return nil
}

func obsValue(dsd *model.DataStructureDefinition, raw string, key model.Key) (model.Value, error) {
	m := measureFor(dsd)
	v, err := model.ParseValue(raw, m != nil && m.Numeric())
	if err != nil {
		iss, _ := model.AsIssues(err)
		for i := range iss {
			iss[i].Key = key.String()
			iss[i].Identity = dsd.Identity().String()
		}
		return model.Value{}, iss
	}
	return v, nil
}

func attributeValue(dsd *model.DataStructureDefinition, id string, v any) (model.Value, error) {
	raw, _, err := rawValue(v)
	if err != nil {
		return model.Value{}, err
	}
	if att, ok := dsd.Attribute(id); ok && att.Representation != nil && att.Representation.TextType == model.TextNumber {
		pv, err := model.ParseValue(raw, true)
		if err != nil {
			iss, _ := model.AsIssues(err)
			for i := range iss {
				iss[i].Identity = dsd.Identity().String()
				iss[i].Message = fmt.Sprintf("attribute %q: %s", id, iss[i].Message)
			}
			return model.Value{}, iss
		}
		return pv, nil
	}
	return model.StringValue(raw), nil
}

func buildAttributes(dsd *model.DataStructureDefinition, dtos []avDTO) (model.AttributeValues, error) {
	avs := make(model.AttributeValues, 0, len(dtos))
	for _, dto := range dtos {
		v, err := attributeValue(dsd, dto.ID, dto.Value)
		if err != nil {
			return nil, err
		}
		avs = append(avs, model.AttributeValue{ID: dto.ID, Value: v})
	}
	return avs, nil
}

func pairsToMap(pairs []kvDTO) map[string]string {
	m := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		m[kv.ID] = kv.Value
	}
	return m
}

func keyOf(pairs []kvDTO) model.Key {
	kvs := make([]model.KeyValue, 0, len(pairs))
	for _, kv := range pairs {
		kvs = append(kvs, model.KeyValue{ID: kv.ID, Value: kv.Value})
	}
	return model.KeyOf(kvs...)
}

func (r *reader) buildGenericDataSet(dto genDataSetDTO) (*model.DataSet, error) {
	dsd, ref, df, err := r.structureFor(dto.StructureRef)
	if err != nil {
		return nil, err
	}
	ds := model.NewDataSet(dsd)
	ds.Structure = ref
	if df != nil {
		ds.Dataflow = df
	}
	ds.Action = dto.Action
	if ds.Attributes, err = buildAttributes(dsd, dto.Attributes); err != nil {
		return nil, err
	}

	for _, gd := range dto.Groups {
		key, err := dsd.MakePartialKey(pairsToMap(gd.Key))
		if err != nil {
			return nil, err
		}
		avs, err := buildAttributes(dsd, gd.Attributes)
		if err != nil {
			return nil, err
		}
		if err := ds.AddGroup(&model.Group{ID: gd.Type, Key: key, Attributes: avs}); err != nil {
			return nil, err
		}
	}

	for _, sd := range dto.Series {
		key, err := dsd.MakePartialKey(pairsToMap(sd.Key))
		if err != nil {
			return nil, err
		}
		s := &model.Series{Key: key}
		if s.Attributes, err = buildAttributes(dsd, sd.Attributes); err != nil {
			return nil, err
		}
		for _, od := range sd.Observations {
			o := &model.Observation{Dimension: keyOf(od.Key)}
			if o.Attributes, err = buildAttributes(dsd, od.Attributes); err != nil {
				return nil, err
			}
			if raw, ok, err := rawValue(od.Value); err != nil {
				return nil, err
			} else if ok {
				v, err := obsValue(dsd, raw, o.Dimension)
				if err != nil {
					return nil, err
				}
				o.Value = v
			}
			s.Obs = append(s.Obs, o)
		}
		if err := ds.AddSeries(s); err != nil {
			return nil, err
		}
	}

	for _, od := range dto.Observations {
		key, err := dsd.MakeKey(pairsToMap(od.Key))
		if err != nil {
			return nil, err
		}
		o := &model.Observation{Dimension: key}
		if o.Attributes, err = buildAttributes(dsd, od.Attributes); err != nil {
			return nil, err
		}
		if raw, ok, err := rawValue(od.Value); err != nil {
			return nil, err
		} else if ok {
			v, err := obsValue(dsd, raw, key)
			if err != nil {
				return nil, err
			}
			o.Value = v
		}
		if err := ds.AddObservation(o); err != nil {
			return nil, err
		}
	}

	return ds, nil
}

// classify splits an ssValues object into dimension values, attribute
// values and the measure value using the DSD as the schema. Unknown
// component ids are skipped for forward compatibility. Iteration is
// id-sorted so error reporting is deterministic.
func classify(dsd *model.DataStructureDefinition, values ssValues) (map[string]string, model.AttributeValues, *string, error) {
	ids := make([]string, 0, len(values))
	for id := range values {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	dims := map[string]string{}
	var avs model.AttributeValues
	var measure *string
	for _, id := range ids {
		if _, ok := dsd.Dimension(id); ok {
			raw, _, err := rawValue(values[id])
			if err != nil {
				return nil, nil, nil, err
			}
			dims[id] = raw
			continue
		}
		if _, ok := dsd.Attribute(id); ok {
			v, err := attributeValue(dsd, id, values[id])
			if err != nil {
				return nil, nil, nil, err
			}
			avs = append(avs, model.AttributeValue{ID: id, Value: v})
			continue
		}
		if _, ok := dsd.Measure(id); ok {
			raw, present, err := rawValue(values[id])
			if err != nil {
				return nil, nil, nil, err
			}
			if present {
				measure = &raw
			}
			continue
		}
	}
	return dims, avs, measure, nil
}

func (r *reader) buildSpecificDataSet(dto ssDataSetDTO) (*model.DataSet, error) {
	dsd, ref, df, err := r.structureFor(dto.StructureRef)
	if err != nil {
		return nil, err
	}
	ds := model.NewDataSet(dsd)
	ds.Structure = ref
	if df != nil {
		ds.Dataflow = df
	}
	ds.Action = dto.Action
	if _, ds.Attributes, _, err = classify(dsd, dto.Values); err != nil {
		return nil, err
	}

	for _, gd := range dto.Groups {
		dims, avs, _, err := classify(dsd, gd.Values)
		if err != nil {
			return nil, err
		}
		key, err := dsd.MakePartialKey(dims)
		if err != nil {
			return nil, err
		}
		if err := ds.AddGroup(&model.Group{ID: gd.Type, Key: key, Attributes: avs}); err != nil {
			return nil, err
		}
	}

	for _, sd := range dto.Series {
		dims, avs, _, err := classify(dsd, sd.Values)
		if err != nil {
			return nil, err
		}
		key, err := dsd.MakePartialKey(dims)
		if err != nil {
			return nil, err
		}
		s := &model.Series{Key: key, Attributes: avs}
		for _, od := range sd.Observations {
			o, err := r.specificObs(dsd, od, s.Key)
			if err != nil {
				return nil, err
			}
			s.Obs = append(s.Obs, o)
		}
		if err := ds.AddSeries(s); err != nil {
			return nil, err
		}
	}

	for _, od := range dto.Observations {
		o, err := r.specificObs(dsd, od, model.Key{})
		if err != nil {
			return nil, err
		}
		key, err := dsd.MakeKey(pairsFromKey(o.Dimension))
		if err != nil {
			return nil, err
		}
		o.Dimension = key
		if err := ds.AddObservation(o); err != nil {
			return nil, err
		}
	}

	return ds, nil
}

func pairsFromKey(k model.Key) map[string]string {
	m := make(map[string]string, k.Len())
	for _, kv := range k.Values() {
		m[kv.ID] = kv.Value
	}
	return m
}

func (r *reader) specificObs(dsd *model.DataStructureDefinition, values ssValues, seriesKey model.Key) (*model.Observation, error) {
	dims, avs, measure, err := classify(dsd, values)
	if err != nil {
		return nil, err
	}
	pairs := make([]model.KeyValue, 0, len(dims))
	for _, dim := range dsd.Dimensions() {
		if v, ok := dims[dim.ID]; ok {
			pairs = append(pairs, model.KeyValue{ID: dim.ID, Value: v})
		}
	}
	o := &model.Observation{Dimension: model.KeyOf(pairs...), Attributes: avs}
	if measure != nil {
		full := append(append([]model.KeyValue{}, seriesKey.Values()...), o.Dimension.Values()...)
		v, err := obsValue(dsd, *measure, model.KeyOf(full...))
		if err != nil {
			return nil, err
		}
		o.Value = v
	}
	return o, nil
}
