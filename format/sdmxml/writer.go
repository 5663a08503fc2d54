package sdmxml

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/sdmxkit/sdmx"
	"github.com/sdmxkit/sdmx/model"
)

func write(ctx context.Context, w io.Writer, msg sdmx.Message, f sdmx.Format, opts *sdmx.WriteOptions) error {
	_ = ctx // serialization is synchronous and non-blocking

	switch m := msg.(type) {
	case *sdmx.StructureMessage:
		if f.Data() {
			return model.Issues{{Code: model.CodeUnsupportedMessageType,
				Message: fmt.Sprintf("cannot write a structure message as %s", f)}}
		}
		return writeStructureMessage(w, m)
	case *sdmx.DataMessage:
		if !f.Data() {
			return model.Issues{{Code: model.CodeUnsupportedMessageType,
				Message: fmt.Sprintf("cannot write a data message as %s", f)}}
		}
		return writeDataMessage(w, m, f, opts)
	case *sdmx.ErrorMessage:
		return writeErrorMessage(w, m)
	}
	return model.Issues{{Code: model.CodeUnsupportedMessageType,
		Message: fmt.Sprintf("message type %T has no SDMX-ML form", msg)}}
}

func writeStructureMessage(w io.Writer, m *sdmx.StructureMessage) error {
	x := newXW(w)
	x.start("mes:Structure",
		a("xmlns:mes", nsMessage), a("xmlns:str", nsStruct), a("xmlns:com", nsCommon))
	writeHeader(x, m.Header, nil)

	x.start("mes:Structures")
	// Item schemes first, DSDs next, dataflows last, so that every
	// reference precedes or accompanies its target within the message.
	if len(m.Codelists) > 0 {
		x.start("str:Codelists")
		for _, cl := range m.Codelists {
			writeCodelist(x, cl)
		}
		x.end("str:Codelists")
	}
	if len(m.ConceptSchemes) > 0 {
		x.start("str:Concepts")
		for _, cs := range m.ConceptSchemes {
			writeConceptScheme(x, cs)
		}
		x.end("str:Concepts")
	}
	if len(m.CategorySchemes) > 0 {
		x.start("str:CategorySchemes")
		for _, cs := range m.CategorySchemes {
			writeCategoryScheme(x, cs)
		}
		x.end("str:CategorySchemes")
	}
	if len(m.DataStructures) > 0 {
		x.start("str:DataStructures")
		for _, d := range m.DataStructures {
			writeDSD(x, d)
		}
		x.end("str:DataStructures")
	}
	if len(m.Dataflows) > 0 {
		x.start("str:Dataflows")
		for _, df := range m.Dataflows {
			writeDataflow(x, df)
		}
		x.end("str:Dataflows")
	}
	x.end("mes:Structures")
	x.end("mes:Structure")
	return x.flush()
}

// headerEntry pairs a data set's structure reference with its header id.
type headerEntry struct {
	structureID string
	ref         model.Reference
	dimAtObs    string
}

func writeHeader(x *xw, h sdmx.Header, entries []headerEntry) {
	x.start("mes:Header")
	if h.ID != "" {
		x.leaf("mes:ID", h.ID)
	}
	x.leaf("mes:Test", strconv.FormatBool(h.Test))
	if !h.Prepared.IsZero() {
		x.leaf("mes:Prepared", h.Prepared.UTC().Format(time.RFC3339))
	}
	writeParty(x, "mes:Sender", h.Sender)
	writeParty(x, "mes:Receiver", h.Receiver)
	for _, e := range entries {
		attrs := []xml.Attr{a("structureID", e.structureID)}
		if e.dimAtObs != "" {
			attrs = append(attrs, a("dimensionAtObservation", e.dimAtObs))
		}
		x.start("mes:Structure", attrs...)
		x.start("com:Structure")
		writeRef(x, e.ref)
		x.end("com:Structure")
		x.end("mes:Structure")
	}
	x.end("mes:Header")
}

func writeParty(x *xw, tag string, p sdmx.Party) {
	if p.ID == "" {
		return
	}
	x.start(tag, a("id", p.ID))
	x.localized("com:Name", p.Name)
	x.end(tag)
}

// writeRef emits the <Ref/> form of a reference.
func writeRef(x *xw, ref model.Reference) {
	var attrs []xml.Attr
	if ref.ItemID != "" {
		cls := ref.Class
		if item, ok := model.ItemClass(ref.Class); ok {
			cls = item
		}
		attrs = append(attrs, a("id", ref.ItemID),
			a("maintainableParentID", ref.ID))
		if ref.Version != "" {
			attrs = append(attrs, a("maintainableParentVersion", ref.Version))
		}
		attrs = append(attrs, a("agencyID", ref.Agency),
			a("class", wireClass(cls)), a("package", model.URNPackage(cls)))
	} else {
		attrs = append(attrs, a("id", ref.ID), a("agencyID", ref.Agency))
		if ref.Version != "" {
			attrs = append(attrs, a("version", ref.Version))
		}
		attrs = append(attrs, a("class", wireClass(ref.Class)),
			a("package", model.URNPackage(ref.Class)))
	}
	x.empty("Ref", attrs...)
}

func wireClass(c model.Class) string {
	switch c {
	case model.ClassDataStructure:
		return "DataStructure"
	case model.ClassDataflow:
		return "Dataflow"
	}
	return string(c)
}

func maintainableAttrs(m model.Maintainable) []xml.Attr {
	attrs := []xml.Attr{a("id", m.ID)}
	if m.Agency != "" {
		attrs = append(attrs, a("agencyID", m.Agency))
	}
	if m.Version != "" {
		attrs = append(attrs, a("version", m.Version))
	}
	if m.Final {
		attrs = append(attrs, a("isFinal", "true"))
	}
	return attrs
}

// writeCommon emits the annotable/nameable children shared by every
// element: annotations first, then localized names and descriptions.
func writeCommon(x *xw, c model.Common) {
	if len(c.Annotations) > 0 {
		x.start("com:Annotations")
		for _, ann := range c.Annotations {
			var attrs []xml.Attr
			if ann.ID != "" {
				attrs = append(attrs, a("id", ann.ID))
			}
			x.start("com:Annotation", attrs...)
			if ann.Type != "" {
				x.leaf("com:AnnotationType", ann.Type)
			}
			if ann.Title != "" {
				x.leaf("com:AnnotationTitle", ann.Title)
			}
			if ann.URL != "" {
				x.leaf("com:AnnotationURL", ann.URL)
			}
			x.localized("com:AnnotationText", ann.Text)
			x.end("com:Annotation")
		}
		x.end("com:Annotations")
	}
	x.localized("com:Name", c.Name)
	x.localized("com:Description", c.Description)
}

func writeCodelist(x *xw, cl *model.Codelist) {
	x.start("str:Codelist", maintainableAttrs(cl.Maintainable)...)
	writeCommon(x, cl.Common)
	for _, code := range cl.Items() {
		x.start("str:Code", a("id", code.ID))
		writeCommon(x, code.Common)
		if code.ParentID != "" {
			x.start("str:Parent")
			x.empty("Ref", a("id", code.ParentID))
			x.end("str:Parent")
		}
		x.end("str:Code")
	}
	x.end("str:Codelist")
}

func writeConceptScheme(x *xw, cs *model.ConceptScheme) {
	x.start("str:ConceptScheme", maintainableAttrs(cs.Maintainable)...)
	writeCommon(x, cs.Common)
	for _, con := range cs.Items() {
		x.start("str:Concept", a("id", con.ID))
		writeCommon(x, con.Common)
		if con.CoreRepresentation != nil {
			writeRepresentation(x, "str:CoreRepresentation", con.CoreRepresentation)
		}
		x.end("str:Concept")
	}
	x.end("str:ConceptScheme")
}

func writeCategoryScheme(x *xw, cs *model.CategoryScheme) {
	x.start("str:CategoryScheme", maintainableAttrs(cs.Maintainable)...)
	writeCommon(x, cs.Common)
	for _, cat := range cs.Items() {
		x.start("str:Category", a("id", cat.ID))
		writeCommon(x, cat.Common)
		if cat.ParentID != "" {
			x.start("str:Parent")
			x.empty("Ref", a("id", cat.ParentID))
			x.end("str:Parent")
		}
		x.end("str:Category")
	}
	x.end("str:CategoryScheme")
}

func writeRepresentation(x *xw, tag string, rep *model.Representation) {
	x.start(tag)
	if !rep.Enumeration.IsZero() {
		x.start("str:Enumeration")
		writeRef(x, rep.Enumeration)
		x.end("str:Enumeration")
	} else {
		x.empty("str:TextFormat", a("textType", wireTextType(rep.TextType)))
	}
	x.end(tag)
}

func wireTextType(t model.TextType) string {
	if t == model.TextNumber {
		return "Double"
	}
	return "String"
}

func writeConceptIdentity(x *xw, ref model.Reference) {
	if ref.IsZero() {
		return
	}
	x.start("str:ConceptIdentity")
	writeRef(x, ref)
	x.end("str:ConceptIdentity")
}

func writeDSD(x *xw, d *model.DataStructureDefinition) {
	x.start("str:DataStructure", maintainableAttrs(d.Maintainable)...)
	writeCommon(x, d.Common)
	x.start("str:DataStructureComponents")

	x.start("str:DimensionList", a("id", "DimensionDescriptor"))
	for _, dim := range d.Dimensions() {
		tag := "str:Dimension"
		if dim.Time {
			tag = "str:TimeDimension"
		}
		x.start(tag, a("id", dim.ID), a("position", strconv.Itoa(dim.Order+1)))
		writeConceptIdentity(x, dim.ConceptIdentity)
		if dim.Representation != nil {
			writeRepresentation(x, "str:LocalRepresentation", dim.Representation)
		}
		x.end(tag)
	}
	x.end("str:DimensionList")

	if len(d.Attributes()) > 0 {
		x.start("str:AttributeList", a("id", "AttributeDescriptor"))
		for _, att := range d.Attributes() {
			x.start("str:Attribute", a("id", att.ID), a("assignmentStatus", att.Status.String()))
			writeConceptIdentity(x, att.ConceptIdentity)
			if att.Representation != nil {
				writeRepresentation(x, "str:LocalRepresentation", att.Representation)
			}
			writeAttributeRelationship(x, d, att)
			x.end("str:Attribute")
		}
		x.end("str:AttributeList")
	}

	if len(d.Measures()) > 0 {
		x.start("str:MeasureList", a("id", "MeasureDescriptor"))
		for _, m := range d.Measures() {
			x.start("str:PrimaryMeasure", a("id", m.ID))
			writeConceptIdentity(x, m.ConceptIdentity)
			if m.Representation != nil {
				writeRepresentation(x, "str:LocalRepresentation", m.Representation)
			}
			x.end("str:PrimaryMeasure")
		}
		x.end("str:MeasureList")
	}

	x.end("str:DataStructureComponents")
	x.end("str:DataStructure")
}

// writeAttributeRelationship emits the attachment level in its
// relationship-element form.
func writeAttributeRelationship(x *xw, d *model.DataStructureDefinition, att *model.DataAttribute) {
	x.start("str:AttributeRelationship")
	switch att.Level {
	case model.AttachDataSet:
		x.empty("str:None")
	case model.AttachGroup:
		x.start("str:AttachmentGroup")
		x.empty("Ref", a("id", att.GroupID))
		x.end("str:AttachmentGroup")
	case model.AttachSeries:
		for _, dim := range d.Dimensions() {
			if dim.Time {
				continue
			}
			x.start("str:Dimension")
			x.empty("Ref", a("id", dim.ID))
			x.end("str:Dimension")
		}
	case model.AttachObservation:
		x.start("str:PrimaryMeasure")
		if m := measureFor(d); m != nil {
			x.empty("Ref", a("id", m.ID))
		} else {
			x.empty("Ref", a("id", "OBS_VALUE"))
		}
		x.end("str:PrimaryMeasure")
	}
	x.end("str:AttributeRelationship")
}

func writeDataflow(x *xw, df *model.DataflowDefinition) {
	x.start("str:Dataflow", maintainableAttrs(df.Maintainable)...)
	writeCommon(x, df.Common)
	if !df.Structure.IsZero() {
		x.start("str:Structure")
		writeRef(x, df.Structure)
		x.end("str:Structure")
	}
	x.end("str:Dataflow")
}

func writeErrorMessage(w io.Writer, m *sdmx.ErrorMessage) error {
	x := newXW(w)
	x.start("mes:Error", a("xmlns:mes", nsMessage), a("xmlns:com", nsCommon))
	x.start("mes:ErrorMessage", a("code", strconv.Itoa(m.Code)))
	x.leaf("com:Text", m.Text)
	x.end("mes:ErrorMessage")
	x.end("mes:Error")
	return x.flush()
}
