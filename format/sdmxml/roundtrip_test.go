package sdmxml_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sdmxkit/sdmx"
	"github.com/sdmxkit/sdmx/model"

	_ "github.com/sdmxkit/sdmx/format/sdmxml"
)

func testDSD(t *testing.T) *model.DataStructureDefinition {
	t.Helper()
	d := model.NewDataStructureDefinition("TEST", "DSD_SALES", "1.0")
	if err := d.AddDimension(&model.Dimension{Common: model.Common{ID: "TIME_DETAIL"}, Order: 0}); err != nil {
		t.Fatal(err)
	}
	if err := d.AddDimension(&model.Dimension{Common: model.Common{ID: "REF_AREA"}, Order: 1}); err != nil {
		t.Fatal(err)
	}
	if err := d.AddMeasure(&model.PrimaryMeasure{Common: model.Common{ID: "OBS_VALUE"}}); err != nil {
		t.Fatal(err)
	}
	if err := d.AddAttribute(&model.DataAttribute{
		Common: model.Common{ID: "UNIT_MEASURE"},
		Level:  model.AttachObservation,
	}); err != nil {
		t.Fatal(err)
	}
	return d
}

func scenarioDataSet(t *testing.T, d *model.DataStructureDefinition) *model.DataSet {
	t.Helper()
	ds := model.NewDataSet(d)
	for _, row := range []struct {
		year  string
		value float64
	}{{"2016", 50}, {"2017", 60}} {
		key, err := d.MakeKey(map[string]string{"TIME_DETAIL": row.year, "REF_AREA": "1"})
		if err != nil {
			t.Fatal(err)
		}
		if err := ds.AddObservation(&model.Observation{
			Dimension: key,
			Value:     model.NumberValue(row.value),
			Attributes: model.AttributeValues{
				{ID: "UNIT_MEASURE", Value: model.StringValue("PT")},
			},
		}); err != nil {
			t.Fatal(err)
		}
	}
	return ds
}

func checkScenario(t *testing.T, msg sdmx.Message) {
	t.Helper()
	dm, ok := msg.(*sdmx.DataMessage)
	if !ok {
		t.Fatalf("want *sdmx.DataMessage, got %T", msg)
	}
	if len(dm.DataSets) != 1 {
		t.Fatalf("want 1 data set, got %d", len(dm.DataSets))
	}
	obs := dm.DataSets[0].AllObservations()
	if len(obs) != 2 {
		t.Fatalf("want 2 observations, got %d", len(obs))
	}
	wantYears := []string{"2016", "2017"}
	wantValues := []float64{50, 60}
	for i, o := range obs {
		full, err := dm.DataSets[0].FullKey(seriesOf(dm.DataSets[0], o), o)
		if err != nil {
			t.Fatal(err)
		}
		if y, _ := full.Get("TIME_DETAIL"); y != wantYears[i] {
			t.Fatalf("obs %d: want TIME_DETAIL %s, got %s", i, wantYears[i], y)
		}
		if a, _ := full.Get("REF_AREA"); a != "1" {
			t.Fatalf("obs %d: want REF_AREA 1, got %s", i, a)
		}
		if !o.Value.Numeric || o.Value.Num != wantValues[i] {
			t.Fatalf("obs %d: want value %v, got %+v", i, wantValues[i], o.Value)
		}
		if u, ok := o.Attributes.Get("UNIT_MEASURE"); !ok || u.Raw != "PT" {
			t.Fatalf("obs %d: want UNIT_MEASURE PT, got %+v", i, u)
		}
	}
}

func seriesOf(ds *model.DataSet, o *model.Observation) *model.Series {
	for _, s := range ds.Series() {
		for _, so := range s.Obs {
			if so == o {
				return s
			}
		}
	}
	return nil
}

func TestStructureMessageRoundTrip(t *testing.T) {
	ctx := context.Background()

	cl := model.NewCodelist("TEST", "CL_AREA", "1.0")
	cl.Name = model.Text("Reference areas")
	cl.Annotations = []model.Annotation{{Type: "NOTE", Text: model.Text("maintained manually")}}
	if err := cl.Add(
		&model.Code{Common: model.Common{ID: "W", Name: model.InternationalString{"en": "World", "de": "Welt"}}},
		&model.Code{Common: model.Common{ID: "EU", Name: model.Text("Europe")}, ParentID: "W"},
	); err != nil {
		t.Fatal(err)
	}

	cs := model.NewConceptScheme("TEST", "CS_MAIN", "1.0")
	if err := cs.Add(
		&model.Concept{Common: model.Common{ID: "REF_AREA"}, CoreRepresentation: &model.Representation{
			Enumeration: model.Ref(model.ClassCodelist, "TEST", "CL_AREA", "1.0"),
		}},
		&model.Concept{Common: model.Common{ID: "OBS_VALUE"}, CoreRepresentation: &model.Representation{
			TextType: model.TextNumber,
		}},
	); err != nil {
		t.Fatal(err)
	}

	cats := model.NewCategoryScheme("TEST", "CS_TOPICS", "1.0")
	if err := cats.Add(
		&model.Category{Common: model.Common{ID: "ECO"}},
		&model.Category{Common: model.Common{ID: "ECO_TRADE"}, ParentID: "ECO"},
	); err != nil {
		t.Fatal(err)
	}

	d := testDSD(t)
	dim, _ := d.Dimension("REF_AREA")
	dim.ConceptIdentity = model.ItemRef(model.ClassConcept, "TEST", "CS_MAIN", "1.0", "REF_AREA")
	dim.Representation = &model.Representation{Enumeration: model.Ref(model.ClassCodelist, "TEST", "CL_AREA", "1.0")}

	df := model.NewDataflowDefinition("TEST", "DF_SALES", "1.0",
		model.Ref(model.ClassDataStructure, "TEST", "DSD_SALES", "1.0"))
	df.Name = model.Text("Sales")

	msg := &sdmx.StructureMessage{Header: sdmx.Header{
		ID:       "IREF000001",
		Test:     true,
		Prepared: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Sender:   sdmx.Party{ID: "TEST", Name: model.Text("Test agency")},
	}}
	for _, a := range []model.Artefact{cl, cs, cats, d, df} {
		if err := msg.Add(a); err != nil {
			t.Fatal(err)
		}
	}

	out, err := sdmx.Write(ctx, msg, sdmx.XMLStructure, nil)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	parsed, err := sdmx.Parse(ctx, out, sdmx.XMLStructure, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	sm, ok := parsed.(*sdmx.StructureMessage)
	if !ok {
		t.Fatalf("want *sdmx.StructureMessage, got %T", parsed)
	}

	if sm.Header.ID != "IREF000001" || !sm.Header.Test || sm.Header.Sender.ID != "TEST" {
		t.Fatalf("header not preserved: %+v", sm.Header)
	}
	if len(sm.Codelists) != 1 || len(sm.ConceptSchemes) != 1 || len(sm.CategorySchemes) != 1 ||
		len(sm.DataStructures) != 1 || len(sm.Dataflows) != 1 {
		t.Fatalf("artefact counts not preserved: %+v", sm)
	}
	gotCL := sm.Codelists[0]
	if gotCL.Name.String() != "Reference areas" || gotCL.Len() != 2 {
		t.Fatalf("codelist not preserved: %+v", gotCL)
	}
	if eu, ok := gotCL.Get("EU"); !ok || eu.ParentID != "W" {
		t.Fatal("code hierarchy not preserved")
	}
	if w, _ := gotCL.Get("W"); w.Name["de"] != "Welt" {
		t.Fatal("localized names not preserved")
	}
	gotDim, ok := sm.DataStructures[0].Dimension("REF_AREA")
	if !ok || gotDim.Representation == nil || gotDim.Representation.Enumeration.ID != "CL_AREA" {
		t.Fatal("dimension representation not preserved")
	}
	att, ok := sm.DataStructures[0].Attribute("UNIT_MEASURE")
	if !ok || att.Level != model.AttachObservation {
		t.Fatal("attribute attachment level not preserved")
	}
	if sm.Dataflows[0].Structure.ID != "DSD_SALES" {
		t.Fatal("dataflow structure reference not preserved")
	}

	// A second write of the parsed message must be byte-identical.
	again, err := sdmx.Write(ctx, parsed, sdmx.XMLStructure, nil)
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if string(out) != string(again) {
		t.Fatal("write-parse-write is not stable")
	}
}

func TestGenericDataRoundTrip(t *testing.T) {
	ctx := context.Background()
	d := testDSD(t)
	msg := &sdmx.DataMessage{DataSets: []*model.DataSet{scenarioDataSet(t, d)}}

	out, err := sdmx.Write(ctx, msg, sdmx.XMLGenericData, nil)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	parsed, err := sdmx.Parse(ctx, out, sdmx.XMLGenericData, &sdmx.ParseOptions{
		Structures: []model.Artefact{d},
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	checkScenario(t, parsed)

	// Flat storage stays flat under the default organization.
	dm := parsed.(*sdmx.DataMessage)
	if !dm.DataSets[0].Flat() {
		t.Fatal("flat data set came back as series")
	}
}

func TestGenericDataAsSeries(t *testing.T) {
	ctx := context.Background()
	d := testDSD(t)
	msg := &sdmx.DataMessage{DataSets: []*model.DataSet{scenarioDataSet(t, d)}}

	out, err := sdmx.Write(ctx, msg, sdmx.XMLGenericData, &sdmx.WriteOptions{
		Organization: sdmx.OrganizationSeries,
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	parsed, err := sdmx.Parse(ctx, out, sdmx.XMLGenericData, &sdmx.ParseOptions{
		Structures: []model.Artefact{d},
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	// Regrouping must not change the logical content.
	checkScenario(t, parsed)
	dm := parsed.(*sdmx.DataMessage)
	if dm.DataSets[0].Flat() {
		t.Fatal("expected series organization")
	}
}

func TestStructureSpecificDataRoundTrip(t *testing.T) {
	ctx := context.Background()
	d := testDSD(t)
	msg := &sdmx.DataMessage{DataSets: []*model.DataSet{scenarioDataSet(t, d)}}

	out, err := sdmx.Write(ctx, msg, sdmx.XMLStructureSpecificData, nil)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	parsed, err := sdmx.Parse(ctx, out, sdmx.XMLStructureSpecificData, &sdmx.ParseOptions{
		Structures: []model.Artefact{d},
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	checkScenario(t, parsed)
}

func TestSeriesAttributesRoundTrip(t *testing.T) {
	ctx := context.Background()
	d := testDSD(t)
	if err := d.AddAttribute(&model.DataAttribute{
		Common: model.Common{ID: "COLLECTION"},
		Level:  model.AttachSeries,
	}); err != nil {
		t.Fatal(err)
	}
	ds := model.NewDataSet(d)
	ds.Attributes = model.AttributeValues{{ID: "EXTRACTED", Value: model.StringValue("2024-05-01")}}
	s := &model.Series{
		Key:        model.KeyOf(model.KeyValue{ID: "TIME_DETAIL", Value: "2016"}),
		Attributes: model.AttributeValues{{ID: "COLLECTION", Value: model.StringValue("A")}},
		Obs: []*model.Observation{{
			Dimension: model.KeyOf(model.KeyValue{ID: "REF_AREA", Value: "1"}),
			Value:     model.NumberValue(50),
		}},
	}
	if err := ds.AddSeries(s); err != nil {
		t.Fatal(err)
	}
	if err := ds.AddGroup(&model.Group{
		ID:         "Sibling",
		Key:        model.KeyOf(model.KeyValue{ID: "TIME_DETAIL", Value: "2016"}),
		Attributes: model.AttributeValues{{ID: "UNIT_MEASURE", Value: model.StringValue("PT")}},
	}); err != nil {
		t.Fatal(err)
	}

	msg := &sdmx.DataMessage{DataSets: []*model.DataSet{ds}}
	out, err := sdmx.Write(ctx, msg, sdmx.XMLGenericData, nil)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	parsed, err := sdmx.Parse(ctx, out, sdmx.XMLGenericData, &sdmx.ParseOptions{
		Structures: []model.Artefact{d},
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got := parsed.(*sdmx.DataMessage).DataSets[0]
	if v, ok := got.Attributes.Get("EXTRACTED"); !ok || v.Raw != "2024-05-01" {
		t.Fatal("dataset attribute not preserved")
	}
	if len(got.Series()) != 1 {
		t.Fatalf("want 1 series, got %d", len(got.Series()))
	}
	if v, ok := got.Series()[0].Attributes.Get("COLLECTION"); !ok || v.Raw != "A" {
		t.Fatal("series attribute not preserved")
	}
	if len(got.Groups()) != 1 {
		t.Fatalf("want 1 group, got %d", len(got.Groups()))
	}
	g := got.Groups()[0]
	if g.ID != "Sibling" {
		t.Fatalf("group id not preserved: %q", g.ID)
	}
	if v, ok := g.Attributes.Get("UNIT_MEASURE"); !ok || v.Raw != "PT" {
		t.Fatal("group attribute not preserved")
	}
}

func TestFormatMismatch(t *testing.T) {
	ctx := context.Background()
	d := testDSD(t)

	structBytes, err := sdmx.Write(ctx, &sdmx.StructureMessage{}, sdmx.XMLStructure, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sdmx.Parse(ctx, structBytes, sdmx.XMLGenericData, nil); !sdmx.HasCode(err, sdmx.CodeUnsupportedMessageType) {
		t.Fatalf("expected unsupported_message_type, got %v", err)
	}

	dataBytes, err := sdmx.Write(ctx, &sdmx.DataMessage{DataSets: []*model.DataSet{scenarioDataSet(t, d)}},
		sdmx.XMLGenericData, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sdmx.Parse(ctx, dataBytes, sdmx.XMLStructureSpecificData, nil); !sdmx.HasCode(err, sdmx.CodeUnsupportedMessageType) {
		t.Fatalf("expected unsupported_message_type, got %v", err)
	}

	if err := sdmx.WriteTo(ctx, &strings.Builder{}, &sdmx.DataMessage{}, sdmx.XMLStructure, nil); !sdmx.HasCode(err, sdmx.CodeUnsupportedMessageType) {
		t.Fatalf("expected unsupported_message_type, got %v", err)
	}
}

func TestErrorMessageRoundTrip(t *testing.T) {
	ctx := context.Background()
	msg := &sdmx.ErrorMessage{Code: 140, Text: "syntax error in query"}
	out, err := sdmx.Write(ctx, msg, sdmx.XMLStructure, nil)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	parsed, err := sdmx.Parse(ctx, out, sdmx.XMLStructure, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	em, ok := parsed.(*sdmx.ErrorMessage)
	if !ok {
		t.Fatalf("want *sdmx.ErrorMessage, got %T", parsed)
	}
	if em.Code != 140 || em.Text != "syntax error in query" {
		t.Fatalf("error payload not preserved: %+v", em)
	}
}

func TestInvalidObservationValue(t *testing.T) {
	ctx := context.Background()
	d := testDSD(t)
	const payload = `<GenericData>
  <DataSet>
    <Obs>
      <ObsKey>
        <Value id="TIME_DETAIL" value="2016"></Value>
        <Value id="REF_AREA" value="1"></Value>
      </ObsKey>
      <ObsValue value="fifty"></ObsValue>
    </Obs>
  </DataSet>
</GenericData>`
	_, err := sdmx.Parse(ctx, []byte(payload), sdmx.XMLGenericData, &sdmx.ParseOptions{
		Structures: []model.Artefact{d},
	})
	if !sdmx.HasCode(err, sdmx.CodeInvalidValue) {
		t.Fatalf("expected invalid_value, got %v", err)
	}
}

func TestUnknownDimensionInKey(t *testing.T) {
	ctx := context.Background()
	d := testDSD(t)
	const payload = `<GenericData>
  <DataSet>
    <Obs>
      <ObsKey>
        <Value id="TIME_DETAIL" value="2016"></Value>
        <Value id="REF_AREA" value="1"></Value>
        <Value id="BOGUS" value="x"></Value>
      </ObsKey>
      <ObsValue value="50"></ObsValue>
    </Obs>
  </DataSet>
</GenericData>`
	_, err := sdmx.Parse(ctx, []byte(payload), sdmx.XMLGenericData, &sdmx.ParseOptions{
		Structures: []model.Artefact{d},
	})
	if !sdmx.HasCode(err, sdmx.CodeUnknownDimension) {
		t.Fatalf("expected unknown_dimension, got %v", err)
	}
}

func TestDanglingDataflowReference(t *testing.T) {
	ctx := context.Background()
	df := model.NewDataflowDefinition("TEST", "DF_LONE", "1.0",
		model.Ref(model.ClassDataStructure, "TEST", "DSD_MISSING", "1.0"))
	msg := &sdmx.StructureMessage{}
	if err := msg.Add(df); err != nil {
		t.Fatal(err)
	}
	out, err := sdmx.Write(ctx, msg, sdmx.XMLStructure, nil)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err = sdmx.Parse(ctx, out, sdmx.XMLStructure, nil)
	if !sdmx.HasCode(err, sdmx.CodeDanglingReference) {
		t.Fatalf("expected dangling_reference, got %v", err)
	}
	// The same message resolves when the caller can supply the DSD.
	_, err = sdmx.Parse(ctx, out, sdmx.XMLStructure, &sdmx.ParseOptions{
		Lookup: func(ref model.Reference) (model.Artefact, bool) {
			if ref.ID == "DSD_MISSING" {
				return model.NewDataStructureDefinition("TEST", "DSD_MISSING", "1.0"), true
			}
			return nil, false
		},
	})
	if err != nil {
		t.Fatalf("lookup-backed parse failed: %v", err)
	}
}

func TestForwardReferenceAcrossContainers(t *testing.T) {
	// Dataflows may precede the data structures they reference in document
	// order; the reference is satisfied once the DSD shows up.
	const payload = `<Structure>
  <Structures>
    <Dataflows>
      <Dataflow id="DF_SALES" agencyID="TEST" version="1.0">
        <Structure>
          <Ref id="DSD_SALES" agencyID="TEST" version="1.0" class="DataStructure"/>
        </Structure>
      </Dataflow>
    </Dataflows>
    <DataStructures>
      <DataStructure id="DSD_SALES" agencyID="TEST" version="1.0">
        <DataStructureComponents>
          <DimensionList>
            <Dimension id="REF_AREA" position="1"/>
          </DimensionList>
          <MeasureList>
            <PrimaryMeasure id="OBS_VALUE"/>
          </MeasureList>
        </DataStructureComponents>
      </DataStructure>
    </DataStructures>
  </Structures>
</Structure>`
	parsed, err := sdmx.Parse(context.Background(), []byte(payload), sdmx.XMLStructure, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sm, ok := parsed.(*sdmx.StructureMessage)
	if !ok {
		t.Fatalf("want *sdmx.StructureMessage, got %T", parsed)
	}
	if len(sm.Dataflows) != 1 || len(sm.DataStructures) != 1 {
		t.Fatalf("want 1 dataflow and 1 data structure, got %d and %d",
			len(sm.Dataflows), len(sm.DataStructures))
	}
	if got := sm.Dataflows[0].Structure.Identity; got != sm.DataStructures[0].Identity() {
		t.Fatalf("dataflow points at %v, document carries %v", got, sm.DataStructures[0].Identity())
	}
}
