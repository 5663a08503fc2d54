package sdmxml

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/sdmxkit/sdmx"
	"github.com/sdmxkit/sdmx/internal/organize"
	"github.com/sdmxkit/sdmx/model"
)

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

// dataSetPlan fixes the per-dataset emission decisions up front so the
// header can announce them.
type dataSetPlan struct {
	ds          *model.DataSet
	dsd         *model.DataStructureDefinition
	asSeries    bool
	structureID string
	dimAtObs    string
}

func planDataSets(m *sdmx.DataMessage, mode organize.Mode) ([]dataSetPlan, []headerEntry, error) {
	plans := make([]dataSetPlan, 0, len(m.DataSets))
	var entries []headerEntry
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
		if p.asSeries {
			p.dimAtObs = organize.ObsDimension(dsd)
		} else {
			p.dimAtObs = "AllDimensions"
		}
		// Data sets sharing structure and layout share one header entry.
		key := ref.Identity.Key() + "|" + ref.ItemID + "|" + p.dimAtObs
		id, ok := seen[key]
		if !ok {
			id = fmt.Sprintf("ST%d", len(entries)+1)
			seen[key] = id
			entries = append(entries, headerEntry{structureID: id, ref: ref, dimAtObs: p.dimAtObs})
		}
		p.structureID = id
		plans = append(plans, p)
	}
	return plans, entries, nil
}

func writeDataMessage(w io.Writer, m *sdmx.DataMessage, f sdmx.Format, opts *sdmx.WriteOptions) error {
	plans, entries, err := planDataSets(m, organizeMode(opts))
	if err != nil {
		return err
	}

	x := newXW(w)
	root := "mes:GenericData"
	rootAttrs := []xml.Attr{
		a("xmlns:mes", nsMessage), a("xmlns:gen", nsGeneric), a("xmlns:com", nsCommon),
	}
	if f.StructureSpecific() {
		root = "mes:StructureSpecificData"
		rootAttrs = []xml.Attr{a("xmlns:mes", nsMessage), a("xmlns:com", nsCommon)}
	}
	x.start(root, rootAttrs...)
	writeHeader(x, m.Header, entries)

	for _, p := range plans {
		if f.StructureSpecific() {
			if err := writeSpecificDataSet(x, p); err != nil {
				return err
			}
		} else {
			if err := writeGenericDataSet(x, p); err != nil {
				return err
			}
		}
	}

	x.end(root)
	return x.flush()
}

// ---- generic organization ----

func writeGenValues(x *xw, tag string, key model.Key) {
	x.start(tag)
	for _, kv := range key.Values() {
		x.empty("gen:Value", a("id", kv.ID), a("value", kv.Value))
	}
	x.end(tag)
}

func writeGenAttributes(x *xw, avs model.AttributeValues) {
	if len(avs) == 0 {
		return
	}
	x.start("gen:Attributes")
	for _, av := range avs {
		x.empty("gen:Value", a("id", av.ID), a("value", av.Value.Raw))
	}
	x.end("gen:Attributes")
}

func writeGenericDataSet(x *xw, p dataSetPlan) error {
	attrs := []xml.Attr{a("structureRef", p.structureID)}
	if p.ds.Action != "" {
		attrs = append(attrs, a("action", p.ds.Action))
	}
	x.start("mes:DataSet", attrs...)

	writeGenAttributes(x, organize.DataSetAttributes(p.ds))
	for _, g := range p.ds.Groups() {
		var gattrs []xml.Attr
		if g.ID != "" {
			gattrs = append(gattrs, a("type", g.ID))
		}
		x.start("gen:Group", gattrs...)
		writeGenValues(x, "gen:GroupKey", g.Key)
		writeGenAttributes(x, organize.GroupAttributes(p.ds, g))
		x.end("gen:Group")
	}

	if p.asSeries {
		series, err := organize.SeriesView(p.ds)
		if err != nil {
			return err
		}
		for _, s := range series {
			x.start("gen:Series")
			writeGenValues(x, "gen:SeriesKey", s.Key)
			writeGenAttributes(x, s.Attributes)
			for _, o := range s.Obs {
				x.start("gen:Obs")
				for _, kv := range o.Key.Values() {
					x.empty("gen:ObsDimension", a("id", kv.ID), a("value", kv.Value))
				}
				if o.HasValue {
					x.empty("gen:ObsValue", a("value", o.Value.Raw))
				}
				writeGenAttributes(x, o.Attributes)
				x.end("gen:Obs")
			}
			x.end("gen:Series")
		}
	} else {
		obs, err := organize.FlatView(p.ds)
		if err != nil {
			return err
		}
		for _, o := range obs {
			x.start("gen:Obs")
			writeGenValues(x, "gen:ObsKey", o.Key)
			if o.HasValue {
				x.empty("gen:ObsValue", a("value", o.Value.Raw))
			}
			writeGenAttributes(x, o.Attributes)
			x.end("gen:Obs")
		}
	}

	x.end("mes:DataSet")
	return nil
}

// ---- structure-specific organization ----

// componentAttrs renders key entries and attribute values as XML attributes
// named by their component ids.
func componentAttrs(attrs []xml.Attr, key model.Key, avs model.AttributeValues) []xml.Attr {
	for _, kv := range key.Values() {
		attrs = append(attrs, a(kv.ID, kv.Value))
	}
	for _, av := range avs {
		attrs = append(attrs, a(av.ID, av.Value.Raw))
	}
	return attrs
}

func measureID(dsd *model.DataStructureDefinition) string {
	if m := measureFor(dsd); m != nil {
		return m.ID
	}
	return "OBS_VALUE"
}

func writeSpecificDataSet(x *xw, p dataSetPlan) error {
	attrs := []xml.Attr{a("structureRef", p.structureID)}
	if p.ds.Action != "" {
		attrs = append(attrs, a("action", p.ds.Action))
	}
	attrs = componentAttrs(attrs, model.Key{}, organize.DataSetAttributes(p.ds))
	x.start("mes:DataSet", attrs...)

	for _, g := range p.ds.Groups() {
		gattrs := []xml.Attr{}
		if g.ID != "" {
			gattrs = append(gattrs, a("type", g.ID))
		}
		gattrs = componentAttrs(gattrs, g.Key, organize.GroupAttributes(p.ds, g))
		x.empty("Group", gattrs...)
	}

	mid := measureID(p.dsd)
	if p.asSeries {
		series, err := organize.SeriesView(p.ds)
		if err != nil {
			return err
		}
		for _, s := range series {
			x.start("Series", componentAttrs(nil, s.Key, s.Attributes)...)
			for _, o := range s.Obs {
				oattrs := componentAttrs(nil, o.Key, nil)
				if o.HasValue {
					oattrs = append(oattrs, a(mid, o.Value.Raw))
				}
				oattrs = componentAttrs(oattrs, model.Key{}, o.Attributes)
				x.empty("Obs", oattrs...)
			}
			x.end("Series")
		}
	} else {
		obs, err := organize.FlatView(p.ds)
		if err != nil {
			return err
		}
		for _, o := range obs {
			oattrs := componentAttrs(nil, o.Key, nil)
			if o.HasValue {
				oattrs = append(oattrs, a(mid, o.Value.Raw))
			}
			oattrs = componentAttrs(oattrs, model.Key{}, o.Attributes)
			x.empty("Obs", oattrs...)
		}
	}

	x.end("mes:DataSet")
	return nil
}
