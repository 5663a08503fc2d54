package model

import (
	"fmt"
	"sort"
)

// DataStructureDefinition (DSD) is the schema for a data set: ordered
// dimensions, data attributes and measures, with ids disjoint across all
// three lists.
type DataStructureDefinition struct {
	Maintainable
	dims     []*Dimension
	attrs    []*DataAttribute
	measures []*PrimaryMeasure
	ids      map[string]struct{}
}

// NewDataStructureDefinition builds an empty DSD with the given maintainer
// tuple.
func NewDataStructureDefinition(agency, id, version string) *DataStructureDefinition {
	d := &DataStructureDefinition{ids: map[string]struct{}{}}
	d.Agency, d.ID, d.Version = agency, id, version
	return d
}

func (d *DataStructureDefinition) Identity() Identity { return d.identity(ClassDataStructure) }

func (d *DataStructureDefinition) claim(id string) error {
	if id == "" {
		return issuef(CodeInvalidValue, "component with empty id in DSD %q", d.ID)
	}
	if d.ids == nil {
		d.ids = map[string]struct{}{}
	}
	if _, dup := d.ids[id]; dup {
		return Issues{{
			Code:     CodeDuplicateIdentifier,
			Identity: d.Identity().String(),
			Message:  fmt.Sprintf("component id %q already used in DSD %q", id, d.ID),
		}}
	}
	d.ids[id] = struct{}{}
	return nil
}

// AddDimension appends a dimension, keeping the dimension list sorted by
// Order. Both the id and the order must be unused.
func (d *DataStructureDefinition) AddDimension(dim *Dimension) error {
	for _, existing := range d.dims {
		if existing.Order == dim.Order {
			return issuef(CodeInvalidValue, "dimension order %d already used in DSD %q", dim.Order, d.ID)
		}
	}
	if err := d.claim(dim.ID); err != nil {
		return err
	}
	d.dims = append(d.dims, dim)
	sort.SliceStable(d.dims, func(i, j int) bool { return d.dims[i].Order < d.dims[j].Order })
	return nil
}

// AddAttribute appends a data attribute.
func (d *DataStructureDefinition) AddAttribute(a *DataAttribute) error {
	if err := d.claim(a.ID); err != nil {
		return err
	}
	d.attrs = append(d.attrs, a)
	return nil
}

// AddMeasure appends a measure.
func (d *DataStructureDefinition) AddMeasure(m *PrimaryMeasure) error {
	if err := d.claim(m.ID); err != nil {
		return err
	}
	d.measures = append(d.measures, m)
	return nil
}

// Dimensions returns the dimensions ordered by Order. The returned slice
// must not be mutated.
func (d *DataStructureDefinition) Dimensions() []*Dimension { return d.dims }

// Attributes returns the data attributes in declaration order.
func (d *DataStructureDefinition) Attributes() []*DataAttribute { return d.attrs }

// Measures returns the measures in declaration order.
func (d *DataStructureDefinition) Measures() []*PrimaryMeasure { return d.measures }

// Dimension returns the dimension with the given id.
func (d *DataStructureDefinition) Dimension(id string) (*Dimension, bool) {
	for _, dim := range d.dims {
		if dim.ID == id {
			return dim, true
		}
	}
	return nil, false
}

// Attribute returns the data attribute with the given id.
func (d *DataStructureDefinition) Attribute(id string) (*DataAttribute, bool) {
	for _, a := range d.attrs {
		if a.ID == id {
			return a, true
		}
	}
	return nil, false
}

// Measure returns the measure with the given id.
func (d *DataStructureDefinition) Measure(id string) (*PrimaryMeasure, bool) {
	for _, m := range d.measures {
		if m.ID == id {
			return m, true
		}
	}
	return nil, false
}

// PrimaryMeasure returns the sole measure when exactly one is declared.
func (d *DataStructureDefinition) PrimaryMeasure() (*PrimaryMeasure, bool) {
	if len(d.measures) == 1 {
		return d.measures[0], true
	}
	return nil, false
}

// Validate checks that dimension orders form a contiguous permutation of
// 0..N-1.
func (d *DataStructureDefinition) Validate() error {
	for i, dim := range d.dims {
		if dim.Order != i {
			return Issues{{
				Code:     CodeInvalidValue,
				Identity: d.Identity().String(),
				Message: fmt.Sprintf("dimension orders of DSD %q are not a contiguous permutation: %q has order %d, want %d",
					d.ID, dim.ID, dim.Order, i),
			}}
		}
	}
	return nil
}

// MakeKey builds a full key from dimension-id to value, ordered by each
// dimension's Order. Every dimension must be supplied.
func (d *DataStructureDefinition) MakeKey(values map[string]string) (Key, error) {
	return d.makeKey(values, true)
}

// MakePartialKey builds a key over a subset of the dimensions, still in
// dimension order.
func (d *DataStructureDefinition) MakePartialKey(values map[string]string) (Key, error) {
	return d.makeKey(values, false)
}

func (d *DataStructureDefinition) makeKey(values map[string]string, full bool) (Key, error) {
	var iss Issues
	for id := range values {
		if _, ok := d.Dimension(id); !ok {
			iss = AppendIssues(iss, Issue{
				Code:     CodeUnknownDimension,
				Identity: d.Identity().String(),
				Message:  fmt.Sprintf("%q is not a dimension of DSD %q", id, d.ID),
			})
		}
	}
	if len(iss) > 0 {
		sort.Slice(iss, func(i, j int) bool { return iss[i].Message < iss[j].Message })
		return Key{}, iss
	}
	kvs := make([]KeyValue, 0, len(values))
	for _, dim := range d.dims {
		v, ok := values[dim.ID]
		if !ok {
			if full {
				iss = AppendIssues(iss, Issue{
					Code:     CodeMissingDimension,
					Identity: d.Identity().String(),
					Message:  fmt.Sprintf("no value for dimension %q of DSD %q", dim.ID, d.ID),
				})
			}
			continue
		}
		kvs = append(kvs, KeyValue{ID: dim.ID, Value: v})
	}
	if len(iss) > 0 {
		return Key{}, iss
	}
	return Key{values: kvs}, nil
}
