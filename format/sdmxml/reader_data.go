package sdmxml

import (
	"encoding/xml"
	"fmt"

	"github.com/sdmxkit/sdmx"
	"github.com/sdmxkit/sdmx/model"
)

func (r *reader) parseDataMessage(structureSpecific bool) (sdmx.Message, error) {
	msg := &sdmx.DataMessage{}
	err := r.each(func(se xml.StartElement) error {
		switch se.Name.Local {
		case "Header":
			return r.parseHeader(&msg.Header)
		case "DataSet":
			return r.parseDataSet(msg, se, structureSpecific)
		default:
			return r.skip()
		}
	})
	if err != nil {
		return nil, err
	}
	if err := r.res.Finish(); err != nil {
		return nil, err
	}
	return msg, nil
}

// structureFor resolves the DSD a data set is built on: through the header
// entry its structureRef names, through the sole header entry, or through a
// caller-supplied DSD when the message embeds no structural metadata.
func (r *reader) structureFor(structureRef string) (*model.DataStructureDefinition, model.Reference, *model.DataflowDefinition, error) {
	var ref model.Reference
	if hs, ok := r.headerStructs[structureRef]; ok {
		ref = hs.ref
	} else if len(r.headerOrder) == 1 {
		ref = r.headerStructs[r.headerOrder[0]].ref
	}

	if ref.IsZero() {
		// No embedded reference at all: fall back to a caller-supplied DSD.
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

func (r *reader) parseDataSet(msg *sdmx.DataMessage, se xml.StartElement, structureSpecific bool) error {
	dsd, ref, df, err := r.structureFor(attr(se, "structureRef"))
	if err != nil {
		return err
	}
	ds := model.NewDataSet(dsd)
	ds.Structure = ref
	if df != nil {
		ds.Dataflow = df
	}
	ds.Action = attr(se, "action")

	if structureSpecific {
		// Dataset-level attribute values ride as XML attributes.
		_, avs, _, err := r.classify(dsd, se.Attr, map[string]bool{
			"structureRef": true, "action": true, "type": true,
		})
		if err != nil {
			return err
		}
		ds.Attributes = avs
		if err := r.parseSpecificDataSetBody(ds, dsd); err != nil {
			return err
		}
	} else {
		if err := r.parseGenericDataSetBody(ds, dsd); err != nil {
			return err
		}
	}
	msg.DataSets = append(msg.DataSets, ds)
	return nil
}

// measureFor picks the measure observation values are parsed against.
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

func parseObsValue(dsd *model.DataStructureDefinition, raw string, key model.Key) (model.Value, error) {
	m := measureFor(dsd)
	numeric := m != nil && m.Numeric()
	v, err := model.ParseValue(raw, numeric)
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

// attributeValue parses a wire attribute value under the representation
// declared on the owning DataAttribute; unknown attribute ids stay strings.
func attributeValue(dsd *model.DataStructureDefinition, id, raw string) (model.Value, error) {
	if att, ok := dsd.Attribute(id); ok && att.Representation != nil && att.Representation.TextType == model.TextNumber {
		v, err := model.ParseValue(raw, true)
		if err != nil {
			iss, _ := model.AsIssues(err)
			for i := range iss {
				iss[i].Identity = dsd.Identity().String()
				iss[i].Message = fmt.Sprintf("attribute %q: %s", id, iss[i].Message)
			}
			return model.Value{}, iss
		}
		return v, nil
	}
	return model.StringValue(raw), nil
}

// ---- generic organization ----

// parseGenValues consumes a gen:SeriesKey / gen:GroupKey / gen:ObsKey /
// gen:Attributes element, returning the id/value pairs in document order.
func (r *reader) parseGenValues() ([]model.KeyValue, error) {
	var out []model.KeyValue
	err := r.each(func(se xml.StartElement) error {
		if se.Name.Local != "Value" {
			return r.skip()
		}
		out = append(out, model.KeyValue{ID: attr(se, "id"), Value: attr(se, "value")})
		return r.skip()
	})
	return out, err
}

func pairsToMap(pairs []model.KeyValue) map[string]string {
	m := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		m[kv.ID] = kv.Value
	}
	return m
}

func (r *reader) parseGenAttributes(dsd *model.DataStructureDefinition) (model.AttributeValues, error) {
	pairs, err := r.parseGenValues()
	if err != nil {
		return nil, err
	}
	avs := make(model.AttributeValues, 0, len(pairs))
	for _, kv := range pairs {
		v, err := attributeValue(dsd, kv.ID, kv.Value)
		if err != nil {
			return nil, err
		}
		avs = append(avs, model.AttributeValue{ID: kv.ID, Value: v})
	}
	return avs, nil
}

func (r *reader) parseGenericDataSetBody(ds *model.DataSet, dsd *model.DataStructureDefinition) error {
	return r.each(func(se xml.StartElement) error {
		switch se.Name.Local {
		case "Attributes":
			avs, err := r.parseGenAttributes(dsd)
			if err != nil {
				return err
			}
			ds.Attributes = append(ds.Attributes, avs...)
			return nil
		case "Group":
			return r.parseGenericGroup(ds, dsd, se)
		case "Series":
			return r.parseGenericSeries(ds, dsd)
		case "Obs":
			return r.parseGenericFlatObs(ds, dsd)
		default:
			return r.skip()
		}
	})
}

func (r *reader) parseGenericGroup(ds *model.DataSet, dsd *model.DataStructureDefinition, se xml.StartElement) error {
	g := &model.Group{ID: attr(se, "type")}
	err := r.each(func(child xml.StartElement) error {
		switch child.Name.Local {
		case "GroupKey":
			pairs, err := r.parseGenValues()
			if err != nil {
				return err
			}
			key, err := dsd.MakePartialKey(pairsToMap(pairs))
			if err != nil {
				return err
			}
			g.Key = key
			return nil
		case "Attributes":
			avs, err := r.parseGenAttributes(dsd)
			if err != nil {
				return err
			}
			g.Attributes = avs
			return nil
		default:
			return r.skip()
		}
	})
	if err != nil {
		return err
	}
	return ds.AddGroup(g)
}

func (r *reader) parseGenericSeries(ds *model.DataSet, dsd *model.DataStructureDefinition) error {
	s := &model.Series{}
	err := r.each(func(child xml.StartElement) error {
		switch child.Name.Local {
		case "SeriesKey":
			pairs, err := r.parseGenValues()
			if err != nil {
				return err
			}
			key, err := dsd.MakePartialKey(pairsToMap(pairs))
			if err != nil {
				return err
			}
			s.Key = key
			return nil
		case "Attributes":
			avs, err := r.parseGenAttributes(dsd)
			if err != nil {
				return err
			}
			s.Attributes = avs
			return nil
		case "Obs":
			return r.parseGenericSeriesObs(s, dsd)
		default:
			return r.skip()
		}
	})
	if err != nil {
		return err
	}
	return ds.AddSeries(s)
}

func (r *reader) parseGenericSeriesObs(s *model.Series, dsd *model.DataStructureDefinition) error {
	o := &model.Observation{}
	var rawValue string
	haveValue := false
	err := r.each(func(se xml.StartElement) error {
		switch se.Name.Local {
		case "ObsDimension":
			id := attr(se, "id")
			if id == "" {
				// Default per the header's dimensionAtObservation; fall
				// back to the DSD's time dimension.
				for _, dim := range dsd.Dimensions() {
					if dim.Time {
						id = dim.ID
						break
					}
				}
			}
			o.Dimension = model.KeyOf(model.KeyValue{ID: id, Value: attr(se, "value")})
			return r.skip()
		case "ObsValue":
			rawValue = attr(se, "value")
			haveValue = true
			return r.skip()
		case "Attributes":
			avs, err := r.parseGenAttributes(dsd)
			if err != nil {
				return err
			}
			o.Attributes = avs
			return nil
		default:
			return r.skip()
		}
	})
	if err != nil {
		return err
	}
	if haveValue {
		v, err := parseObsValue(dsd, rawValue, joinKeys(s.Key, o.Dimension))
		if err != nil {
			return err
		}
		o.Value = v
	}
	s.Obs = append(s.Obs, o)
	return nil
}

func joinKeys(a, b model.Key) model.Key {
	pairs := append(append([]model.KeyValue{}, a.Values()...), b.Values()...)
	return model.KeyOf(pairs...)
}

func (r *reader) parseGenericFlatObs(ds *model.DataSet, dsd *model.DataStructureDefinition) error {
	o := &model.Observation{}
	var rawValue string
	haveValue := false
	err := r.each(func(se xml.StartElement) error {
		switch se.Name.Local {
		case "ObsKey":
			pairs, err := r.parseGenValues()
			if err != nil {
				return err
			}
			key, err := dsd.MakeKey(pairsToMap(pairs))
			if err != nil {
				return err
			}
			o.Dimension = key
			return nil
		case "ObsValue":
			rawValue = attr(se, "value")
			haveValue = true
			return r.skip()
		case "Attributes":
			avs, err := r.parseGenAttributes(dsd)
			if err != nil {
				return err
			}
			o.Attributes = avs
			return nil
		default:
			return r.skip()
		}
	})
	if err != nil {
		return err
	}
	if haveValue {
		v, err := parseObsValue(dsd, rawValue, o.Dimension)
		if err != nil {
			return err
		}
		o.Value = v
	}
	return ds.AddObservation(o)
}

// ---- structure-specific organization ----

// classify splits element attributes into dimension values, attribute
// values and the measure value using the DSD as the schema; attribute names
// are the component ids themselves. Unknown names are skipped for forward
// compatibility.
func (r *reader) classify(dsd *model.DataStructureDefinition, attrs []xml.Attr, reserved map[string]bool) (map[string]string, model.AttributeValues, *string, error) {
	dims := map[string]string{}
	var avs model.AttributeValues
	var measure *string
	for _, xa := range attrs {
		name := xa.Name.Local
		if reserved[name] || xa.Name.Space != "" {
			continue
		}
		if _, ok := dsd.Dimension(name); ok {
			dims[name] = xa.Value
			continue
		}
		if _, ok := dsd.Attribute(name); ok {
			v, err := attributeValue(dsd, name, xa.Value)
			if err != nil {
				return nil, nil, nil, err
			}
			avs = append(avs, model.AttributeValue{ID: name, Value: v})
			continue
		}
		if _, ok := dsd.Measure(name); ok {
			value := xa.Value
			measure = &value
			continue
		}
		// Unknown component: skip.
	}
	return dims, avs, measure, nil
}

func (r *reader) parseSpecificDataSetBody(ds *model.DataSet, dsd *model.DataStructureDefinition) error {
	return r.each(func(se xml.StartElement) error {
		switch se.Name.Local {
		case "Group":
			return r.parseSpecificGroup(ds, dsd, se)
		case "Series":
			return r.parseSpecificSeries(ds, dsd, se)
		case "Obs":
			return r.parseSpecificFlatObs(ds, dsd, se)
		default:
			return r.skip()
		}
	})
}

func (r *reader) parseSpecificGroup(ds *model.DataSet, dsd *model.DataStructureDefinition, se xml.StartElement) error {
	dims, avs, _, err := r.classify(dsd, se.Attr, map[string]bool{"type": true})
	if err != nil {
		return err
	}
	key, err := dsd.MakePartialKey(dims)
	if err != nil {
		return err
	}
	if err := r.skip(); err != nil {
		return err
	}
	return ds.AddGroup(&model.Group{ID: attr(se, "type"), Key: key, Attributes: avs})
}

func (r *reader) parseSpecificSeries(ds *model.DataSet, dsd *model.DataStructureDefinition, se xml.StartElement) error {
	dims, avs, _, err := r.classify(dsd, se.Attr, nil)
	if err != nil {
		return err
	}
	key, err := dsd.MakePartialKey(dims)
	if err != nil {
		return err
	}
	s := &model.Series{Key: key, Attributes: avs}
	err = r.each(func(child xml.StartElement) error {
		if child.Name.Local != "Obs" {
			return r.skip()
		}
		o, err := r.specificObs(dsd, child, s.Key)
		if err != nil {
			return err
		}
		s.Obs = append(s.Obs, o)
		return nil
	})
	if err != nil {
		return err
	}
	return ds.AddSeries(s)
}

func (r *reader) parseSpecificFlatObs(ds *model.DataSet, dsd *model.DataStructureDefinition, se xml.StartElement) error {
	o, err := r.specificObs(dsd, se, model.Key{})
	if err != nil {
		return err
	}
	// Normalize the self-positioned key into DSD dimension order.
	key, err := dsd.MakeKey(pairsToMap(o.Dimension.Values()))
	if err != nil {
		return err
	}
	o.Dimension = key
	return ds.AddObservation(o)
}

func (r *reader) specificObs(dsd *model.DataStructureDefinition, se xml.StartElement, seriesKey model.Key) (*model.Observation, error) {
	dims, avs, measure, err := r.classify(dsd, se.Attr, nil)
	if err != nil {
		return nil, err
	}
	if err := r.skip(); err != nil {
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
		v, err := parseObsValue(dsd, *measure, joinKeys(seriesKey, o.Dimension))
		if err != nil {
			return nil, err
		}
		o.Value = v
	}
	return o, nil
}
