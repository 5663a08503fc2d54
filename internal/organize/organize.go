// Package organize prepares a DataSet for emission: it chooses between the
// series and flat layouts, re-homes attribute values to the attachment
// level declared on their DataAttribute, and fixes a deterministic series
// order (lexicographic by key) so that output is reproducible.
package organize

import (
	"sort"

	"github.com/sdmxkit/sdmx/model"
)

// Mode selects the emitted data layout.
type Mode int

const (
	// Auto mirrors the data set's in-memory organization. This is the
	// default: it never changes logical content and keeps the wire shape
	// the producer chose.
	Auto Mode = iota
	Series
	Flat
)

// AsSeries decides the layout for a data set under the given mode.
func AsSeries(ds *model.DataSet, mode Mode) bool {
	switch mode {
	case Series:
		return true
	case Flat:
		return false
	}
	return !ds.Flat()
}

// ObsDimension returns the dimension left at observation level in series
// layout: the time dimension when one is declared, else the last dimension.
func ObsDimension(dsd *model.DataStructureDefinition) string {
	dims := dsd.Dimensions()
	if len(dims) == 0 {
		return ""
	}
	for _, d := range dims {
		if d.Time {
			return d.ID
		}
	}
	return dims[len(dims)-1].ID
}

func level(dsd *model.DataStructureDefinition, id string) (model.AttachmentLevel, bool) {
	att, ok := dsd.Attribute(id)
	if !ok {
		return 0, false
	}
	return att.Level, true
}

// keepExcept returns the stored values minus those whose declared level is
// listed in drop (the levels some other emission site re-homes). Values
// whose id the DSD does not declare always stay where they were stored.
func keepExcept(dsd *model.DataStructureDefinition, avs model.AttributeValues,
	drop ...model.AttachmentLevel) model.AttributeValues {
	var out model.AttributeValues
next:
	for _, av := range avs {
		if lv, ok := level(dsd, av.ID); ok {
			for _, d := range drop {
				if lv == d {
					continue next
				}
			}
		}
		out = append(out, av)
	}
	return out
}

// only returns the stored values whose declared level is want.
func only(dsd *model.DataStructureDefinition, avs model.AttributeValues,
	want model.AttachmentLevel) model.AttributeValues {
	var out model.AttributeValues
	for _, av := range avs {
		if lv, ok := level(dsd, av.ID); ok && lv == want {
			out = append(out, av)
		}
	}
	return out
}

func mergeMissing(dst model.AttributeValues, src model.AttributeValues) model.AttributeValues {
	for _, av := range src {
		if _, present := dst.Get(av.ID); !present {
			dst = append(dst, av)
		}
	}
	return dst
}

// DataSetAttributes returns the attribute values to emit at dataset level:
// the stored dataset values plus any value declared dataset-level found
// deeper in the set (first occurrence wins).
func DataSetAttributes(ds *model.DataSet) model.AttributeValues {
	dsd := ds.DSD()
	out := append(model.AttributeValues{}, ds.Attributes...)
	for _, g := range ds.Groups() {
		out = mergeMissing(out, only(dsd, g.Attributes, model.AttachDataSet))
	}
	for _, s := range ds.Series() {
		out = mergeMissing(out, only(dsd, s.Attributes, model.AttachDataSet))
		for _, o := range s.Obs {
			out = mergeMissing(out, only(dsd, o.Attributes, model.AttachDataSet))
		}
	}
	for _, o := range ds.Observations() {
		out = mergeMissing(out, only(dsd, o.Attributes, model.AttachDataSet))
	}
	return out
}

// GroupAttributes returns a group's values minus those lifted to the
// dataset level.
func GroupAttributes(ds *model.DataSet, g *model.Group) model.AttributeValues {
	return keepExcept(ds.DSD(), g.Attributes, model.AttachDataSet)
}

// SeriesRecord is one series ready for emission.
type SeriesRecord struct {
	Key        model.Key
	Attributes model.AttributeValues
	Obs        []ObsRecord
}

// ObsRecord is one observation ready for emission. Key holds only the
// observation-level entries in series layout and the full ordered key in
// flat layout.
type ObsRecord struct {
	Key        model.Key
	FullKey    model.Key
	Value      model.Value
	HasValue   bool
	Attributes model.AttributeValues
}

// splitKey divides a full ordered key into the series part and the
// observation-dimension part.
func splitKey(full model.Key, obsDim string) (series, obs model.Key) {
	seriesPairs := make([]model.KeyValue, 0, full.Len())
	var obsPairs []model.KeyValue
	for _, kv := range full.Values() {
		if kv.ID == obsDim {
			obsPairs = append(obsPairs, kv)
			continue
		}
		seriesPairs = append(seriesPairs, kv)
	}
	return model.KeyOf(seriesPairs...), model.KeyOf(obsPairs...)
}

// SeriesView returns the series layout. Every observation is normalized
// through its full key and regrouped on all dimensions but the observation
// dimension, so the result is the same whether the data was stored flat or
// as series. Series come out ordered lexicographically by key; observation
// order within a series is preserved.
func SeriesView(ds *model.DataSet) ([]SeriesRecord, error) {
	dsd := ds.DSD()
	if dsd == nil {
		return nil, model.Issues{{Code: model.CodeUnresolvedReference,
			Message: "data set has no resolved DSD"}}
	}
	obsDim := ObsDimension(dsd)
	var out []SeriesRecord
	index := map[string]int{}

	record := func(sk model.Key) *SeriesRecord {
		i, ok := index[sk.OrderKey()]
		if !ok {
			i = len(out)
			index[sk.OrderKey()] = i
			out = append(out, SeriesRecord{Key: sk})
		}
		return &out[i]
	}

	add := func(s *model.Series, o *model.Observation) error {
		full, err := ds.FullKey(s, o)
		if err != nil {
			return err
		}
		sk, obsKey := splitKey(full, obsDim)
		rec := record(sk)
		oa := keepExcept(dsd, o.Attributes, model.AttachDataSet, model.AttachSeries)
		if s != nil {
			rec.Attributes = mergeMissing(rec.Attributes, keepExcept(dsd, s.Attributes,
				model.AttachDataSet, model.AttachObservation))
			oa = mergeMissing(oa, only(dsd, s.Attributes, model.AttachObservation))
		}
		rec.Attributes = mergeMissing(rec.Attributes, only(dsd, o.Attributes, model.AttachSeries))
		rec.Obs = append(rec.Obs, ObsRecord{
			Key:        obsKey,
			FullKey:    full,
			Value:      o.Value,
			HasValue:   o.Value != model.Value{},
			Attributes: oa,
		})
		return nil
	}

	for _, o := range ds.Observations() {
		if err := add(nil, o); err != nil {
			return nil, err
		}
	}
	for _, s := range ds.Series() {
		for _, o := range s.Obs {
			if err := add(s, o); err != nil {
				return nil, err
			}
		}
		if len(s.Obs) == 0 {
			// An empty series still carries its key and attribute values.
			sk, _ := splitKey(s.Key, obsDim)
			rec := record(sk)
			rec.Attributes = mergeMissing(rec.Attributes, keepExcept(dsd, s.Attributes,
				model.AttachDataSet, model.AttachObservation))
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Key.OrderKey() < out[j].Key.OrderKey()
	})
	return out, nil
}

// FlatView returns the flat layout: stored flat observations as-is, or
// series expanded in deterministic series order with observation order
// preserved. Series-level attribute values ride on each observation record,
// the only place the flat layout offers.
func FlatView(ds *model.DataSet) ([]ObsRecord, error) {
	dsd := ds.DSD()
	if dsd == nil {
		return nil, model.Issues{{Code: model.CodeUnresolvedReference,
			Message: "data set has no resolved DSD"}}
	}
	var out []ObsRecord

	if ds.Flat() {
		for _, o := range ds.Observations() {
			full, err := ds.FullKey(nil, o)
			if err != nil {
				return nil, err
			}
			out = append(out, ObsRecord{
				Key:        full,
				FullKey:    full,
				Value:      o.Value,
				HasValue:   o.Value != model.Value{},
				Attributes: keepExcept(dsd, o.Attributes, model.AttachDataSet),
			})
		}
		return out, nil
	}

	series, err := SeriesView(ds)
	if err != nil {
		return nil, err
	}
	for _, s := range series {
		for _, o := range s.Obs {
			out = append(out, ObsRecord{
				Key:        o.FullKey,
				FullKey:    o.FullKey,
				Value:      o.Value,
				HasValue:   o.HasValue,
				Attributes: mergeMissing(o.Attributes, s.Attributes),
			})
		}
	}
	return out, nil
}
