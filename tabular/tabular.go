// Package tabular flattens a data set into rows and columns for analysis
// tools: one row per observation, one column per dimension, one value
// column for the measure and, on request, one column per attribute id.
package tabular

import (
	"fmt"

	"github.com/sdmxkit/sdmx/model"
)

// AttributeMode selects which attribute values become columns.
type AttributeMode int

const (
	// AttributesNone projects dimensions and the measure only.
	AttributesNone AttributeMode = iota
	// AttributesDataSet adds values attached at the dataset level.
	AttributesDataSet
	// AttributesObservation adds values attached on the observation itself.
	AttributesObservation
	// AttributesAll merges every level; the most specific attachment wins
	// (observation over series over group over dataset).
	AttributesAll
)

var attributeModeNames = map[AttributeMode]string{
	AttributesNone:        "none",
	AttributesDataSet:     "d",
	AttributesObservation: "o",
	AttributesAll:         "a",
}

func (m AttributeMode) String() string {
	if s, ok := attributeModeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("AttributeMode(%d)", int(m))
}

// ParseAttributeMode parses the short spelling of an attribute mode. The
// empty string means none.
func ParseAttributeMode(s string) (AttributeMode, error) {
	switch s {
	case "", "none":
		return AttributesNone, nil
	case "d":
		return AttributesDataSet, nil
	case "o":
		return AttributesObservation, nil
	case "a":
		return AttributesAll, nil
	}
	return 0, model.Issues{{
		Code:    model.CodeInvalidValue,
		Raw:     s,
		Message: fmt.Sprintf("unknown attribute mode %q (want none, d, o or a)", s),
	}}
}

// Options configures a projection. The zero value projects dimensions and
// the measure of a single-measure DSD.
type Options struct {
	Attributes AttributeMode
	// Measure names the value column when the DSD declares several
	// measures; single-measure DSDs need no disambiguation.
	Measure string
}

// Row maps column names to cell values: strings for dimension and
// string-typed values, float64 for numeric ones.
type Row map[string]any

// Table is an ordered projection result. Columns lists the column names in
// emission order: dimensions in key order, the measure, then attributes.
type Table struct {
	Columns []string
	Rows    []Row
}

// measureColumn picks the value column, failing when the choice is
// ambiguous or the requested measure is not declared.
func measureColumn(dsd *model.DataStructureDefinition, requested string) (string, error) {
	if requested != "" {
		if _, ok := dsd.Measure(requested); !ok {
			return "", model.Issues{{
				Code:     model.CodeAmbiguousMeasure,
				Identity: dsd.Identity().String(),
				Message:  fmt.Sprintf("measure %q is not declared by the DSD", requested),
			}}
		}
		return requested, nil
	}
	ms := dsd.Measures()
	switch len(ms) {
	case 0:
		return "OBS_VALUE", nil
	case 1:
		return ms[0].ID, nil
	}
	return "", model.Issues{{
		Code:     model.CodeAmbiguousMeasure,
		Identity: dsd.Identity().String(),
		Message:  fmt.Sprintf("DSD declares %d measures; name one to project", len(ms)),
	}}
}

func cell(v model.Value) any {
	if v.Numeric {
		return v.Num
	}
	return v.Raw
}

// ToTable projects ds into rows. Row order follows the data set's internal
// order: flat observations first, then each series' observations in series
// order; the projector never sorts.
func ToTable(ds *model.DataSet, opts Options) (*Table, error) {
	dsd := ds.DSD()
	if dsd == nil {
		return nil, model.Issues{{
			Code:     model.CodeUnresolvedReference,
			Identity: ds.Structure.String(),
			Message:  "data set has no resolved DSD; attach one before projecting",
		}}
	}
	measureCol, err := measureColumn(dsd, opts.Measure)
	if err != nil {
		return nil, err
	}

	sites := make([]obsSite, 0, len(ds.Observations()))
	for _, o := range ds.Observations() {
		sites = append(sites, obsSite{o: o})
	}
	for _, s := range ds.Series() {
		for _, o := range s.Obs {
			sites = append(sites, obsSite{s: s, o: o})
		}
	}

	attrCols := attributeColumns(ds, dsd, opts.Attributes, sites)

	t := &Table{}
	for _, dim := range dsd.Dimensions() {
		t.Columns = append(t.Columns, dim.ID)
	}
	t.Columns = append(t.Columns, measureCol)
	t.Columns = append(t.Columns, attrCols...)

	for _, st := range sites {
		full, err := ds.FullKey(st.s, st.o)
		if err != nil {
			return nil, err
		}
		row := make(Row, len(t.Columns))
		for _, kv := range full.Values() {
			row[kv.ID] = kv.Value
		}
		if v := st.o.Value; v != (model.Value{}) {
			if st.o.Measure == "" || st.o.Measure == measureCol {
				row[measureCol] = cell(v)
			}
		}

		apply := func(avs model.AttributeValues) {
			for _, av := range avs {
				row[av.ID] = cell(av.Value)
			}
		}
		switch opts.Attributes {
		case AttributesDataSet:
			apply(ds.Attributes)
		case AttributesObservation:
			apply(st.o.Attributes)
		case AttributesAll:
			// Least specific first so that the most specific attachment
			// overwrites earlier entries.
			apply(ds.Attributes)
			for _, g := range ds.GroupsFor(full) {
				apply(g.Attributes)
			}
			if st.s != nil {
				apply(st.s.Attributes)
			}
			apply(st.o.Attributes)
		}

		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// obsSite pairs an observation with the series it lives in, if any.
type obsSite struct {
	s *model.Series
	o *model.Observation
}

// attributeColumns returns the attribute column names: ids the DSD
// declares, in declaration order, followed by undeclared ids in first-seen
// order.
func attributeColumns(ds *model.DataSet, dsd *model.DataStructureDefinition,
	mode AttributeMode, sites []obsSite) []string {

	seen := map[string]bool{}
	var encountered []string
	collect := func(avs model.AttributeValues) {
		for _, av := range avs {
			if !seen[av.ID] {
				seen[av.ID] = true
				encountered = append(encountered, av.ID)
			}
		}
	}

	switch mode {
	case AttributesNone:
		return nil
	case AttributesDataSet:
		collect(ds.Attributes)
	case AttributesObservation:
		for _, st := range sites {
			collect(st.o.Attributes)
		}
	case AttributesAll:
		collect(ds.Attributes)
		for _, g := range ds.Groups() {
			collect(g.Attributes)
		}
		for _, st := range sites {
			if st.s != nil {
				collect(st.s.Attributes)
			}
			collect(st.o.Attributes)
		}
	}

	var cols []string
	for _, att := range dsd.Attributes() {
		if seen[att.ID] {
			cols = append(cols, att.ID)
			seen[att.ID] = false
		}
	}
	for _, id := range encountered {
		if seen[id] {
			cols = append(cols, id)
		}
	}
	return cols
}
