package organize_test

import (
	"testing"

	"github.com/sdmxkit/sdmx/internal/organize"
	"github.com/sdmxkit/sdmx/model"
)

func newDSD(t *testing.T) *model.DataStructureDefinition {
	t.Helper()
	d := model.NewDataStructureDefinition("TEST", "DSD_ORG", "1.0")
	dims := []*model.Dimension{
		{Common: model.Common{ID: "FREQ"}, Order: 0},
		{Common: model.Common{ID: "REF_AREA"}, Order: 1},
		{Common: model.Common{ID: "TIME_PERIOD"}, Order: 2, Time: true},
	}
	for _, dim := range dims {
		if err := d.AddDimension(dim); err != nil {
			t.Fatal(err)
		}
	}
	if err := d.AddMeasure(&model.PrimaryMeasure{Common: model.Common{ID: "OBS_VALUE"}}); err != nil {
		t.Fatal(err)
	}
	attrs := []*model.DataAttribute{
		{Common: model.Common{ID: "EXTRACTED"}, Level: model.AttachDataSet},
		{Common: model.Common{ID: "COLLECTION"}, Level: model.AttachSeries},
		{Common: model.Common{ID: "OBS_STATUS"}, Level: model.AttachObservation},
	}
	for _, a := range attrs {
		if err := d.AddAttribute(a); err != nil {
			t.Fatal(err)
		}
	}
	return d
}

func addFlatObs(t *testing.T, ds *model.DataSet, area, period string, attrs model.AttributeValues) {
	t.Helper()
	key, err := ds.DSD().MakeKey(map[string]string{
		"FREQ": "A", "REF_AREA": area, "TIME_PERIOD": period,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := ds.AddObservation(&model.Observation{
		Dimension: key, Value: model.NumberValue(1), Attributes: attrs,
	}); err != nil {
		t.Fatal(err)
	}
}

func TestObsDimensionPrefersTime(t *testing.T) {
	d := newDSD(t)
	if got := organize.ObsDimension(d); got != "TIME_PERIOD" {
		t.Fatalf("want TIME_PERIOD, got %q", got)
	}
	noTime := model.NewDataStructureDefinition("TEST", "DSD_NT", "1.0")
	for i, id := range []string{"A", "B"} {
		if err := noTime.AddDimension(&model.Dimension{Common: model.Common{ID: id}, Order: i}); err != nil {
			t.Fatal(err)
		}
	}
	if got := organize.ObsDimension(noTime); got != "B" {
		t.Fatalf("want last dimension, got %q", got)
	}
}

func TestSeriesViewGroupsAndSorts(t *testing.T) {
	d := newDSD(t)
	ds := model.NewDataSet(d)
	// Insertion order deliberately interleaves the two series.
	addFlatObs(t, ds, "FR", "2020", nil)
	addFlatObs(t, ds, "DE", "2020", nil)
	addFlatObs(t, ds, "FR", "2021", nil)

	series, err := organize.SeriesView(ds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("want 2 series, got %d", len(series))
	}
	// Lexicographic by key: A:DE before A:FR.
	if got := series[0].Key.String(); got != "FREQ=A,REF_AREA=DE" {
		t.Fatalf("unexpected first series %q", got)
	}
	if got := series[1].Key.String(); got != "FREQ=A,REF_AREA=FR" {
		t.Fatalf("unexpected second series %q", got)
	}
	// Observation order within a series follows insertion order.
	if len(series[1].Obs) != 2 {
		t.Fatalf("want 2 observations, got %d", len(series[1].Obs))
	}
	if p, _ := series[1].Obs[0].Key.Get("TIME_PERIOD"); p != "2020" {
		t.Fatalf("want 2020 first, got %q", p)
	}
	if p, _ := series[1].Obs[1].Key.Get("TIME_PERIOD"); p != "2021" {
		t.Fatalf("want 2021 second, got %q", p)
	}
}

func TestSeriesViewRegroupsStoredSeries(t *testing.T) {
	d := newDSD(t)
	ds := model.NewDataSet(d)
	// The producer split the key unconventionally: REF_AREA rides on the
	// observation. The view regroups on everything but the time dimension.
	if err := ds.AddSeries(&model.Series{
		Key: model.KeyOf(model.KeyValue{ID: "FREQ", Value: "A"}),
		Obs: []*model.Observation{{
			Dimension: model.KeyOf(
				model.KeyValue{ID: "REF_AREA", Value: "DE"},
				model.KeyValue{ID: "TIME_PERIOD", Value: "2020"},
			),
			Value: model.NumberValue(1),
		}},
	}); err != nil {
		t.Fatal(err)
	}

	series, err := organize.SeriesView(ds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(series) != 1 {
		t.Fatalf("want 1 series, got %d", len(series))
	}
	if got := series[0].Key.String(); got != "FREQ=A,REF_AREA=DE" {
		t.Fatalf("unexpected series key %q", got)
	}
	if got := series[0].Obs[0].Key.String(); got != "TIME_PERIOD=2020" {
		t.Fatalf("unexpected observation key %q", got)
	}
}

func TestAttributeRehoming(t *testing.T) {
	d := newDSD(t)
	ds := model.NewDataSet(d)
	// EXTRACTED is declared dataset-level but stored on an observation;
	// COLLECTION is declared series-level but also stored on the observation;
	// the series carries OBS_STATUS, declared observation-level.
	if err := ds.AddSeries(&model.Series{
		Key: model.KeyOf(
			model.KeyValue{ID: "FREQ", Value: "A"},
			model.KeyValue{ID: "REF_AREA", Value: "DE"},
		),
		Attributes: model.AttributeValues{
			{ID: "OBS_STATUS", Value: model.StringValue("E")},
		},
		Obs: []*model.Observation{{
			Dimension: model.KeyOf(model.KeyValue{ID: "TIME_PERIOD", Value: "2020"}),
			Value:     model.NumberValue(1),
			Attributes: model.AttributeValues{
				{ID: "EXTRACTED", Value: model.StringValue("2024-05-01")},
				{ID: "COLLECTION", Value: model.StringValue("A")},
			},
		}},
	}); err != nil {
		t.Fatal(err)
	}

	dsAttrs := organize.DataSetAttributes(ds)
	if v, ok := dsAttrs.Get("EXTRACTED"); !ok || v.Raw != "2024-05-01" {
		t.Fatal("dataset-declared value must be lifted to the dataset level")
	}

	series, err := organize.SeriesView(ds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := series[0]
	if _, ok := s.Attributes.Get("OBS_STATUS"); ok {
		t.Fatal("observation-declared value must not stay on the series")
	}
	if v, ok := s.Attributes.Get("COLLECTION"); !ok || v.Raw != "A" {
		t.Fatal("series-declared value must move up to the series")
	}
	o := s.Obs[0]
	if v, ok := o.Attributes.Get("OBS_STATUS"); !ok || v.Raw != "E" {
		t.Fatal("observation-declared value must move down to the observation")
	}
	if _, ok := o.Attributes.Get("EXTRACTED"); ok {
		t.Fatal("dataset-declared value must leave the observation")
	}
	if _, ok := o.Attributes.Get("COLLECTION"); ok {
		t.Fatal("series-declared value must leave the observation")
	}
}

func TestUndeclaredAttributeStaysPut(t *testing.T) {
	d := newDSD(t)
	ds := model.NewDataSet(d)
	addFlatObs(t, ds, "DE", "2020", model.AttributeValues{
		{ID: "CUSTOM", Value: model.StringValue("x")},
	})

	series, err := organize.SeriesView(ds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := series[0].Obs[0].Attributes.Get("CUSTOM"); !ok || v.Raw != "x" {
		t.Fatal("undeclared values stay where they were stored")
	}
}

func TestEmptySeriesPreserved(t *testing.T) {
	d := newDSD(t)
	ds := model.NewDataSet(d)
	if err := ds.AddSeries(&model.Series{
		Key: model.KeyOf(
			model.KeyValue{ID: "FREQ", Value: "A"},
			model.KeyValue{ID: "REF_AREA", Value: "DE"},
		),
		Attributes: model.AttributeValues{
			{ID: "COLLECTION", Value: model.StringValue("A")},
		},
	}); err != nil {
		t.Fatal(err)
	}
	series, err := organize.SeriesView(ds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(series) != 1 || len(series[0].Obs) != 0 {
		t.Fatalf("empty series must survive, got %+v", series)
	}
	if v, ok := series[0].Attributes.Get("COLLECTION"); !ok || v.Raw != "A" {
		t.Fatal("empty series keeps its attribute values")
	}
}

func TestFlatViewExpandsSeries(t *testing.T) {
	d := newDSD(t)
	ds := model.NewDataSet(d)
	if err := ds.AddSeries(&model.Series{
		Key: model.KeyOf(
			model.KeyValue{ID: "FREQ", Value: "A"},
			model.KeyValue{ID: "REF_AREA", Value: "DE"},
		),
		Attributes: model.AttributeValues{
			{ID: "COLLECTION", Value: model.StringValue("A")},
		},
		Obs: []*model.Observation{{
			Dimension: model.KeyOf(model.KeyValue{ID: "TIME_PERIOD", Value: "2020"}),
			Value:     model.NumberValue(1),
		}},
	}); err != nil {
		t.Fatal(err)
	}

	obs, err := organize.FlatView(ds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(obs) != 1 {
		t.Fatalf("want 1 observation, got %d", len(obs))
	}
	if got := obs[0].Key.String(); got != "FREQ=A,REF_AREA=DE,TIME_PERIOD=2020" {
		t.Fatalf("unexpected full key %q", got)
	}
	// Flat layout has no series site; series values ride on the observation.
	if v, ok := obs[0].Attributes.Get("COLLECTION"); !ok || v.Raw != "A" {
		t.Fatal("series attribute must ride on the expanded observation")
	}
}

func TestAsSeries(t *testing.T) {
	d := newDSD(t)
	flat := model.NewDataSet(d)
	addFlatObs(t, flat, "DE", "2020", nil)
	if organize.AsSeries(flat, organize.Auto) {
		t.Fatal("flat storage stays flat under Auto")
	}
	if !organize.AsSeries(flat, organize.Series) {
		t.Fatal("Series mode forces series layout")
	}
	if organize.AsSeries(flat, organize.Flat) {
		t.Fatal("Flat mode forces flat layout")
	}
}
