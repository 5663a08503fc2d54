package model

import "fmt"

// Observation is a single statistical value. Dimension holds the full key
// when the observation lives flat in a data set, or only the
// observation-level entries when it belongs to a series.
type Observation struct {
	Dimension Key
	// Measure names the measure this value belongs to; empty means the
	// DSD's primary measure.
	Measure    string
	Value      Value
	Attributes AttributeValues
}

// Series groups the observations sharing a series key. Observation order
// within a series is significant and preserved.
type Series struct {
	Key        Key
	Attributes AttributeValues
	Obs        []*Observation
}

// Group is a partial-key grouping carrying group-level attribute values.
type Group struct {
	// ID is the group's id in the DSD grammar, e.g. "Sibling".
	ID         string
	Key        Key
	Attributes AttributeValues
}

// DataSet owns observations (flat or organized as series) produced against
// one DSD, addressed through its Structure reference (a DSD or a dataflow).
type DataSet struct {
	Structure Reference
	// Dataflow is the non-owning link to the dataflow the data was
	// addressed through, when known.
	Dataflow   *DataflowDefinition
	Action     string
	Attributes AttributeValues

	dsd    *DataStructureDefinition
	groups []*Group
	series []*Series
	obs    []*Observation
}

// NewDataSet builds an empty data set over dsd. The structure reference is
// derived from the DSD; use SetDataflow when the data is addressed through a
// dataflow.
func NewDataSet(dsd *DataStructureDefinition) *DataSet {
	ds := &DataSet{dsd: dsd}
	if dsd != nil {
		ds.Structure = Reference{Identity: dsd.Identity()}
	}
	return ds
}

// DSD returns the resolved structure definition, if any.
func (ds *DataSet) DSD() *DataStructureDefinition { return ds.dsd }

// SetDSD attaches the resolved structure definition.
func (ds *DataSet) SetDSD(d *DataStructureDefinition) { ds.dsd = d }

// SetDataflow records the dataflow the data set is addressed through and
// points the structure reference at it.
func (ds *DataSet) SetDataflow(df *DataflowDefinition) {
	ds.Dataflow = df
	if df != nil {
		ds.Structure = Reference{Identity: df.Identity()}
	}
}

// Flat reports whether observations are stored without series grouping.
func (ds *DataSet) Flat() bool { return len(ds.series) == 0 }

// Groups returns the partial-key groups in insertion order.
func (ds *DataSet) Groups() []*Group { return ds.groups }

// Series returns the series in insertion order.
func (ds *DataSet) Series() []*Series { return ds.series }

// Observations returns the flat observations in insertion order.
func (ds *DataSet) Observations() []*Observation { return ds.obs }

// AddGroup appends a group.
func (ds *DataSet) AddGroup(g *Group) error {
	if ds.dsd != nil {
		if _, err := ds.dsd.MakePartialKey(g.Key.Map()); err != nil {
			return err
		}
	}
	ds.groups = append(ds.groups, g)
	return nil
}

// AddObservation appends a flat observation, checking the full-key
// invariant against the DSD when one is attached.
func (ds *DataSet) AddObservation(o *Observation) error {
	if ds.dsd != nil {
		if _, err := ds.FullKey(nil, o); err != nil {
			return err
		}
	}
	ds.obs = append(ds.obs, o)
	return nil
}

// AddSeries appends a series, checking every observation's reconstructed
// full key against the DSD when one is attached.
func (ds *DataSet) AddSeries(s *Series) error {
	if ds.dsd != nil {
		for _, o := range s.Obs {
			if _, err := ds.FullKey(s, o); err != nil {
				return err
			}
		}
	}
	ds.series = append(ds.series, s)
	return nil
}

// AllObservations returns every observation in data-set order: flat
// observations first, then each series' observations in series order.
func (ds *DataSet) AllObservations() []*Observation {
	out := make([]*Observation, 0, len(ds.obs))
	out = append(out, ds.obs...)
	for _, s := range ds.series {
		out = append(out, s.Obs...)
	}
	return out
}

// FullKey reconstructs an observation's full key by combining the series key
// (when s is non-nil) with the observation's own entries. The result must
// hold exactly one value per DSD dimension.
func (ds *DataSet) FullKey(s *Series, o *Observation) (Key, error) {
	if ds.dsd == nil {
		return Key{}, issuef(CodeUnresolvedReference, "data set has no resolved DSD (structure %s)", ds.Structure)
	}
	values := map[string]string{}
	if s != nil {
		for _, kv := range s.Key.Values() {
			values[kv.ID] = kv.Value
		}
	}
	for _, kv := range o.Dimension.Values() {
		if prev, dup := values[kv.ID]; dup && prev != kv.Value {
			return Key{}, Issues{{
				Code:     CodeDuplicateIdentifier,
				Identity: ds.dsd.Identity().String(),
				Key:      o.Dimension.String(),
				Message:  fmt.Sprintf("dimension %q appears in both series key and observation key with different values", kv.ID),
			}}
		}
		values[kv.ID] = kv.Value
	}
	key, err := ds.dsd.MakeKey(values)
	if err != nil {
		if iss, ok := AsIssues(err); ok {
			for i := range iss {
				if iss[i].Key == "" {
					iss[i].Key = o.Dimension.String()
				}
			}
			return Key{}, iss
		}
		return Key{}, err
	}
	return key, nil
}

// Validate re-checks the full-key invariant over the whole data set.
func (ds *DataSet) Validate() error {
	for _, o := range ds.obs {
		if _, err := ds.FullKey(nil, o); err != nil {
			return err
		}
	}
	for _, s := range ds.series {
		for _, o := range s.Obs {
			if _, err := ds.FullKey(s, o); err != nil {
				return err
			}
		}
	}
	return nil
}

// GroupsFor returns the groups whose partial key matches the given full
// key, in insertion order.
func (ds *DataSet) GroupsFor(full Key) []*Group {
	var out []*Group
	for _, g := range ds.groups {
		if g.Key.Matches(full) {
			out = append(out, g)
		}
	}
	return out
}
