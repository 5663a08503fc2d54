package sdmx_test

import (
	"bytes"
	"context"
	"os"
	"reflect"
	"sort"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/sdmxkit/sdmx"
	"github.com/sdmxkit/sdmx/model"
	"github.com/sdmxkit/sdmx/tabular"

	_ "github.com/sdmxkit/sdmx/format/sdmxjson"
	_ "github.com/sdmxkit/sdmx/format/sdmxml"
)

type scenarioFile struct {
	Scenarios []scenario `yaml:"scenarios"`
}

type scenario struct {
	Name         string        `yaml:"name"`
	Structure    structureSpec `yaml:"structure"`
	Observations []obsSpec     `yaml:"observations"`
}

type structureSpec struct {
	ID            string     `yaml:"id"`
	Agency        string     `yaml:"agency"`
	Version       string     `yaml:"version"`
	Dimensions    []string   `yaml:"dimensions"`
	TimeDimension string     `yaml:"timeDimension"`
	Measure       string     `yaml:"measure"`
	Attributes    []attrSpec `yaml:"attributes"`
}

type attrSpec struct {
	ID    string `yaml:"id"`
	Level string `yaml:"level"`
}

type obsSpec struct {
	Key        map[string]string `yaml:"key"`
	Value      float64           `yaml:"value"`
	Attributes map[string]string `yaml:"attributes"`
}

func loadScenarios(t *testing.T) []scenario {
	t.Helper()
	raw, err := os.ReadFile("testdata/scenarios.yaml")
	if err != nil {
		t.Fatalf("read fixtures: %v", err)
	}
	var f scenarioFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		t.Fatalf("decode fixtures: %v", err)
	}
	if len(f.Scenarios) == 0 {
		t.Fatal("fixture file holds no scenarios")
	}
	return f.Scenarios
}

func (s scenario) buildDSD(t *testing.T) *model.DataStructureDefinition {
	t.Helper()
	d := model.NewDataStructureDefinition(s.Structure.Agency, s.Structure.ID, s.Structure.Version)
	for i, id := range s.Structure.Dimensions {
		dim := &model.Dimension{Common: model.Common{ID: id}, Order: i, Time: id == s.Structure.TimeDimension}
		if err := d.AddDimension(dim); err != nil {
			t.Fatalf("%s: add dimension %q: %v", s.Name, id, err)
		}
	}
	if err := d.AddMeasure(&model.PrimaryMeasure{Common: model.Common{ID: s.Structure.Measure}}); err != nil {
		t.Fatalf("%s: add measure: %v", s.Name, err)
	}
	for _, a := range s.Structure.Attributes {
		level, err := model.ParseAttachmentLevel(a.Level)
		if err != nil {
			t.Fatalf("%s: attribute %q: %v", s.Name, a.ID, err)
		}
		if err := d.AddAttribute(&model.DataAttribute{Common: model.Common{ID: a.ID}, Level: level}); err != nil {
			t.Fatalf("%s: add attribute %q: %v", s.Name, a.ID, err)
		}
	}
	return d
}

func (s scenario) buildDataSet(t *testing.T, d *model.DataStructureDefinition) *model.DataSet {
	t.Helper()
	ds := model.NewDataSet(d)
	for _, o := range s.Observations {
		key, err := d.MakeKey(o.Key)
		if err != nil {
			t.Fatalf("%s: make key: %v", s.Name, err)
		}
		ids := make([]string, 0, len(o.Attributes))
		for id := range o.Attributes {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		var avs model.AttributeValues
		for _, id := range ids {
			avs = append(avs, model.AttributeValue{ID: id, Value: model.StringValue(o.Attributes[id])})
		}
		err = ds.AddObservation(&model.Observation{
			Dimension:  key,
			Value:      model.NumberValue(o.Value),
			Attributes: avs,
		})
		if err != nil {
			t.Fatalf("%s: add observation: %v", s.Name, err)
		}
	}
	return ds
}

// project flattens a data set and sorts the rows by key so layouts with
// different emission orders compare equal.
func project(t *testing.T, ds *model.DataSet, dims []string) *tabular.Table {
	t.Helper()
	tbl, err := tabular.ToTable(ds, tabular.Options{Attributes: tabular.AttributesAll})
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	rowKey := func(r tabular.Row) string {
		parts := make([]string, len(dims))
		for i, id := range dims {
			parts[i], _ = r[id].(string)
		}
		return strings.Join(parts, "|")
	}
	sort.SliceStable(tbl.Rows, func(i, j int) bool { return rowKey(tbl.Rows[i]) < rowKey(tbl.Rows[j]) })
	return tbl
}

var dataFormats = []sdmx.Format{
	sdmx.XMLGenericData,
	sdmx.XMLStructureSpecificData,
	sdmx.JSONGenericData,
	sdmx.JSONStructureSpecificData,
}

var organizations = []sdmx.Organization{
	sdmx.OrganizationAuto,
	sdmx.OrganizationSeries,
	sdmx.OrganizationFlat,
}

func TestScenarioRoundTrips(t *testing.T) {
	ctx := context.Background()
	for _, sc := range loadScenarios(t) {
		t.Run(sc.Name, func(t *testing.T) {
			d := sc.buildDSD(t)
			ds := sc.buildDataSet(t, d)
			want := project(t, ds, sc.Structure.Dimensions)

			for _, f := range dataFormats {
				for _, org := range organizations {
					msg := &sdmx.DataMessage{DataSets: []*model.DataSet{ds}}
					out, err := sdmx.Write(ctx, msg, f, &sdmx.WriteOptions{Organization: org})
					if err != nil {
						t.Fatalf("%s/%d: write: %v", f, org, err)
					}
					parsed, err := sdmx.Parse(ctx, out, f, &sdmx.ParseOptions{
						Structures: []model.Artefact{d},
					})
					if err != nil {
						t.Fatalf("%s/%d: parse: %v", f, org, err)
					}
					dm := parsed.(*sdmx.DataMessage)
					if len(dm.DataSets) != 1 {
						t.Fatalf("%s/%d: want 1 data set, got %d", f, org, len(dm.DataSets))
					}
					got := project(t, dm.DataSets[0], sc.Structure.Dimensions)
					if !reflect.DeepEqual(got.Columns, want.Columns) {
						t.Fatalf("%s/%d: want columns %v, got %v", f, org, want.Columns, got.Columns)
					}
					if !reflect.DeepEqual(got.Rows, want.Rows) {
						t.Fatalf("%s/%d: want rows %v, got %v", f, org, want.Rows, got.Rows)
					}
				}
			}
		})
	}
}

func TestCompressionRoundTrip(t *testing.T) {
	ctx := context.Background()
	sc := loadScenarios(t)[0]
	d := sc.buildDSD(t)
	ds := sc.buildDataSet(t, d)
	msg := &sdmx.DataMessage{DataSets: []*model.DataSet{ds}}
	want := project(t, ds, sc.Structure.Dimensions)

	cases := []struct {
		compression sdmx.Compression
		magic       []byte
	}{
		{sdmx.CompressionGzip, []byte{0x1f, 0x8b}},
		{sdmx.CompressionZstd, []byte{0x28, 0xb5, 0x2f, 0xfd}},
	}
	for _, f := range dataFormats {
		for _, c := range cases {
			out, err := sdmx.Write(ctx, msg, f, &sdmx.WriteOptions{Compression: c.compression})
			if err != nil {
				t.Fatalf("%s: write: %v", f, err)
			}
			if !bytes.HasPrefix(out, c.magic) {
				t.Fatalf("%s: output does not start with the compression magic", f)
			}
			// Decompression is sniffed; the caller states only the format.
			parsed, err := sdmx.Parse(ctx, out, f, &sdmx.ParseOptions{
				Structures: []model.Artefact{d},
			})
			if err != nil {
				t.Fatalf("%s: parse: %v", f, err)
			}
			got := project(t, parsed.(*sdmx.DataMessage).DataSets[0], sc.Structure.Dimensions)
			if !reflect.DeepEqual(got.Rows, want.Rows) {
				t.Fatalf("%s: rows changed across the compression round trip", f)
			}

			// The streaming entry point shares the sniffing path.
			parsed, err = sdmx.ParseReader(ctx, bytes.NewReader(out), f, &sdmx.ParseOptions{
				Structures: []model.Artefact{d},
			})
			if err != nil {
				t.Fatalf("%s: parse reader: %v", f, err)
			}
			if len(parsed.(*sdmx.DataMessage).DataSets) != 1 {
				t.Fatalf("%s: reader parse lost the data set", f)
			}
		}
	}
}

func TestUncompressedOutputStaysPlain(t *testing.T) {
	ctx := context.Background()
	sc := loadScenarios(t)[0]
	d := sc.buildDSD(t)
	msg := &sdmx.DataMessage{DataSets: []*model.DataSet{sc.buildDataSet(t, d)}}
	out, err := sdmx.Write(ctx, msg, sdmx.XMLGenericData, nil)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("<")) {
		t.Fatal("uncompressed XML should start with markup")
	}
}
