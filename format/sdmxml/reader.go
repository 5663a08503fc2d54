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
	"github.com/sdmxkit/sdmx/resolver"
)

// headerStruct is one mes:Structure entry of a data message header.
type headerStruct struct {
	ref      model.Reference
	dimAtObs string
}

type reader struct {
	dec  *xml.Decoder
	res  *resolver.Resolver
	opts *sdmx.ParseOptions

	// structureID -> header entry, for matching DataSet/@structureRef.
	headerStructs map[string]headerStruct
	headerOrder   []string
}

func parse(ctx context.Context, src io.Reader, f sdmx.Format, opts *sdmx.ParseOptions) (sdmx.Message, error) {
	_ = ctx // parsing is synchronous and non-blocking

	r := &reader{
		dec:           xml.NewDecoder(src),
		res:           resolver.New(opts.Lookup),
		opts:          opts,
		headerStructs: map[string]headerStruct{},
	}
	for _, a := range opts.Structures {
		if err := r.res.Register(a); err != nil {
			return nil, err
		}
	}

	for {
		tok, err := r.dec.Token()
		if err != nil {
			if err == io.EOF {
				return nil, model.Issues{{Code: model.CodeParseError, Message: "no root element in input"}}
			}
			return nil, wireErr(err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "Structure":
			if f.Data() {
				return nil, mismatch(se.Name.Local, f)
			}
			return r.parseStructureMessage()
		case "GenericData":
			if f != sdmx.XMLGenericData {
				return nil, mismatch(se.Name.Local, f)
			}
			return r.parseDataMessage(false)
		case "StructureSpecificData":
			if f != sdmx.XMLStructureSpecificData {
				return nil, mismatch(se.Name.Local, f)
			}
			return r.parseDataMessage(true)
		case "Error":
			return r.parseErrorMessage()
		default:
			return nil, model.Issues{{
				Code:    model.CodeUnsupportedMessageType,
				Message: fmt.Sprintf("unrecognized top-level message element %q", se.Name.Local),
			}}
		}
	}
}

func mismatch(root string, f sdmx.Format) error {
	return model.Issues{{
		Code:    model.CodeUnsupportedMessageType,
		Message: fmt.Sprintf("message element %q does not match requested format %s", root, f),
	}}
}

func (r *reader) parseStructureMessage() (sdmx.Message, error) {
	msg := &sdmx.StructureMessage{}
	err := r.each(func(se xml.StartElement) error {
		switch se.Name.Local {
		case "Header":
			return r.parseHeader(&msg.Header)
		case "Structures":
			return r.parseStructures(msg)
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

// structureContainers is the grammar table for mes:Structures children: one
// entry per artefact container, each handling a single artefact element.
var structureContainers = map[string]func(*reader, *sdmx.StructureMessage, xml.StartElement) error{
	"Codelists":       func(r *reader, m *sdmx.StructureMessage, se xml.StartElement) error { return r.parseCodelist(m, se) },
	"Concepts":        func(r *reader, m *sdmx.StructureMessage, se xml.StartElement) error { return r.parseConceptScheme(m, se) },
	"CategorySchemes": func(r *reader, m *sdmx.StructureMessage, se xml.StartElement) error { return r.parseCategoryScheme(m, se) },
	"DataStructures":  func(r *reader, m *sdmx.StructureMessage, se xml.StartElement) error { return r.parseDSD(m, se) },
	"Dataflows":       func(r *reader, m *sdmx.StructureMessage, se xml.StartElement) error { return r.parseDataflow(m, se) },
}

func (r *reader) parseStructures(msg *sdmx.StructureMessage) error {
	return r.each(func(container xml.StartElement) error {
		handler, ok := structureContainers[container.Name.Local]
		if !ok {
			return r.skip()
		}
		return r.each(func(child xml.StartElement) error {
			return handler(r, msg, child)
		})
	})
}

// register adds a parsed artefact to both the message and the session
// resolver, satisfying any forward references to it.
func (r *reader) register(msg *sdmx.StructureMessage, a model.Artefact) error {
	if err := msg.Add(a); err != nil {
		return err
	}
	return r.res.Register(a)
}

func (r *reader) parseMaintainable(se xml.StartElement, m *model.Maintainable) {
	m.ID = attr(se, "id")
	m.Agency = attr(se, "agencyID")
	m.Version = attr(se, "version")
	m.Final = attr(se, "isFinal") == "true"
}

// parseCommonChild handles the children shared by every nameable element.
// It reports whether the child was consumed.
func (r *reader) parseCommonChild(se xml.StartElement, c *model.Common) (bool, error) {
	switch se.Name.Local {
	case "Name":
		return true, r.parseLocalized(se, &c.Name)
	case "Description":
		return true, r.parseLocalized(se, &c.Description)
	case "Annotations":
		return true, r.parseAnnotations(&c.Annotations)
	}
	return false, nil
}

func (r *reader) parseAnnotations(dst *[]model.Annotation) error {
	return r.each(func(se xml.StartElement) error {
		if se.Name.Local != "Annotation" {
			return r.skip()
		}
		ann := model.Annotation{ID: attr(se, "id")}
		err := r.each(func(child xml.StartElement) error {
			switch child.Name.Local {
			case "AnnotationType":
				txt, err := r.text()
				ann.Type = txt
				return err
			case "AnnotationTitle":
				txt, err := r.text()
				ann.Title = txt
				return err
			case "AnnotationURL":
				txt, err := r.text()
				ann.URL = txt
				return err
			case "AnnotationText":
				return r.parseLocalized(child, &ann.Text)
			default:
				return r.skip()
			}
		})
		if err != nil {
			return err
		}
		*dst = append(*dst, ann)
		return nil
	})
}

// parseRef consumes a reference container element (str:Parent,
// str:Enumeration, str:ConceptIdentity, str:Structure, ...) holding a Ref
// or URN child.
func (r *reader) parseRef(defaultClass model.Class) (model.Reference, error) {
	var ref model.Reference
	err := r.each(func(se xml.StartElement) error {
		switch se.Name.Local {
		case "Ref":
			cls := classFromWire(attr(se, "class"))
			if cls == "" {
				cls = defaultClass
			}
			if parentID := attr(se, "maintainableParentID"); parentID != "" {
				ref = model.ItemRef(cls, attr(se, "agencyID"), parentID,
					attr(se, "maintainableParentVersion"), attr(se, "id"))
			} else {
				ref = model.Ref(cls, attr(se, "agencyID"), attr(se, "id"), attr(se, "version"))
			}
			return r.skip()
		case "URN":
			txt, err := r.text()
			if err != nil {
				return err
			}
			parsed, err := model.ParseURN(txt)
			if err != nil {
				return err
			}
			ref = parsed
			return nil
		default:
			return r.skip()
		}
	})
	return ref, err
}

func classFromWire(s string) model.Class {
	switch s {
	case "":
		return ""
	case "DataStructure", "DataStructureDefinition":
		return model.ClassDataStructure
	case "Dataflow", "DataflowDefinition":
		return model.ClassDataflow
	default:
		return model.Class(s)
	}
}

func (r *reader) parseCodelist(msg *sdmx.StructureMessage, se xml.StartElement) error {
	if se.Name.Local != "Codelist" {
		return r.skip()
	}
	cl := &model.Codelist{}
	r.parseMaintainable(se, &cl.Maintainable)
	err := r.each(func(child xml.StartElement) error {
		if done, err := r.parseCommonChild(child, &cl.Common); done || err != nil {
			return err
		}
		if child.Name.Local != "Code" {
			return r.skip()
		}
		code := &model.Code{}
		code.ID = attr(child, "id")
		err := r.each(func(cc xml.StartElement) error {
			if done, err := r.parseCommonChild(cc, &code.Common); done || err != nil {
				return err
			}
			if cc.Name.Local == "Parent" {
				ref, err := r.parseRef(model.ClassCode)
				if err != nil {
					return err
				}
				// Forward references within the list are allowed; the
				// hierarchy is validated once the list is complete.
				if ref.ItemID != "" {
					code.ParentID = ref.ItemID
				} else {
					code.ParentID = ref.ID
				}
				return nil
			}
			return r.skip()
		})
		if err != nil {
			return err
		}
		return cl.Add(code)
	})
	if err != nil {
		return err
	}
	if err := cl.Validate(); err != nil {
		return err
	}
	return r.register(msg, cl)
}

func (r *reader) parseConceptScheme(msg *sdmx.StructureMessage, se xml.StartElement) error {
	if se.Name.Local != "ConceptScheme" {
		return r.skip()
	}
	cs := &model.ConceptScheme{}
	r.parseMaintainable(se, &cs.Maintainable)
	err := r.each(func(child xml.StartElement) error {
		if done, err := r.parseCommonChild(child, &cs.Common); done || err != nil {
			return err
		}
		if child.Name.Local != "Concept" {
			return r.skip()
		}
		con := &model.Concept{}
		con.ID = attr(child, "id")
		err := r.each(func(cc xml.StartElement) error {
			if done, err := r.parseCommonChild(cc, &con.Common); done || err != nil {
				return err
			}
			if cc.Name.Local == "CoreRepresentation" {
				rep, err := r.parseRepresentation()
				if err != nil {
					return err
				}
				con.CoreRepresentation = rep
				return nil
			}
			return r.skip()
		})
		if err != nil {
			return err
		}
		return cs.Add(con)
	})
	if err != nil {
		return err
	}
	return r.register(msg, cs)
}

func (r *reader) parseCategoryScheme(msg *sdmx.StructureMessage, se xml.StartElement) error {
	if se.Name.Local != "CategoryScheme" {
		return r.skip()
	}
	cs := &model.CategoryScheme{}
	r.parseMaintainable(se, &cs.Maintainable)
	err := r.each(func(child xml.StartElement) error {
		if done, err := r.parseCommonChild(child, &cs.Common); done || err != nil {
			return err
		}
		if child.Name.Local != "Category" {
			return r.skip()
		}
		cat := &model.Category{}
		cat.ID = attr(child, "id")
		err := r.each(func(cc xml.StartElement) error {
			if done, err := r.parseCommonChild(cc, &cat.Common); done || err != nil {
				return err
			}
			if cc.Name.Local == "Parent" {
				ref, err := r.parseRef(model.ClassCategory)
				if err != nil {
					return err
				}
				if ref.ItemID != "" {
					cat.ParentID = ref.ItemID
				} else {
					cat.ParentID = ref.ID
				}
				return nil
			}
			return r.skip()
		})
		if err != nil {
			return err
		}
		return cs.Add(cat)
	})
	if err != nil {
		return err
	}
	if err := cs.Validate(); err != nil {
		return err
	}
	return r.register(msg, cs)
}

// parseRepresentation consumes a CoreRepresentation/LocalRepresentation
// element.
func (r *reader) parseRepresentation() (*model.Representation, error) {
	rep := &model.Representation{}
	err := r.each(func(se xml.StartElement) error {
		switch se.Name.Local {
		case "Enumeration":
			ref, err := r.parseRef(model.ClassCodelist)
			if err != nil {
				return err
			}
			rep.Enumeration = ref
			if !ref.IsZero() {
				r.res.Defer(ref, func(model.Artefact) {})
			}
			return nil
		case "TextFormat", "EnumerationFormat":
			rep.TextType = textTypeFromWire(attr(se, "textType"))
			return r.skip()
		default:
			return r.skip()
		}
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}

func textTypeFromWire(s string) model.TextType {
	switch s {
	case "Double", "Float", "Integer", "Long", "Short", "Decimal", "Count", "Numeric", "Number":
		return model.TextNumber
	}
	return model.TextString
}

func (r *reader) parseDSD(msg *sdmx.StructureMessage, se xml.StartElement) error {
	if se.Name.Local != "DataStructure" {
		return r.skip()
	}
	dsd := model.NewDataStructureDefinition(attr(se, "agencyID"), attr(se, "id"), attr(se, "version"))
	r.parseMaintainable(se, &dsd.Maintainable)

	err := r.each(func(child xml.StartElement) error {
		if done, err := r.parseCommonChild(child, &dsd.Common); done || err != nil {
			return err
		}
		if child.Name.Local != "DataStructureComponents" {
			return r.skip()
		}
		return r.each(func(list xml.StartElement) error {
			switch list.Name.Local {
			case "DimensionList":
				return r.parseDimensionList(dsd)
			case "AttributeList":
				return r.parseAttributeList(dsd)
			case "MeasureList":
				return r.parseMeasureList(dsd)
			default:
				return r.skip()
			}
		})
	})
	if err != nil {
		return err
	}
	if err := dsd.Validate(); err != nil {
		return err
	}
	return r.register(msg, dsd)
}

func (r *reader) parseDimensionList(dsd *model.DataStructureDefinition) error {
	next := 0
	return r.each(func(se xml.StartElement) error {
		switch se.Name.Local {
		case "Dimension", "TimeDimension":
		default:
			return r.skip()
		}
		dim := &model.Dimension{Time: se.Name.Local == "TimeDimension"}
		dim.ID = attr(se, "id")
		if pos := attr(se, "position"); pos != "" {
			p, err := strconv.Atoi(pos)
			if err != nil {
				return model.Issues{{
					Code: model.CodeParseError, Raw: pos,
					Message: fmt.Sprintf("dimension %q has a non-numeric position", dim.ID),
				}}
			}
			dim.Order = p - 1 // wire positions are 1-based
		} else {
			dim.Order = next
		}
		next = dim.Order + 1
		if err := r.parseComponentChildren(&dim.ConceptIdentity, &dim.Representation, nil, nil); err != nil {
			return err
		}
		return dsd.AddDimension(dim)
	})
}

func (r *reader) parseAttributeList(dsd *model.DataStructureDefinition) error {
	return r.each(func(se xml.StartElement) error {
		if se.Name.Local != "Attribute" {
			return r.skip()
		}
		att := &model.DataAttribute{Level: model.AttachSeries}
		att.ID = attr(se, "id")
		if attr(se, "assignmentStatus") == "Mandatory" {
			att.Status = model.AssignmentMandatory
		}
		if err := r.parseComponentChildren(&att.ConceptIdentity, &att.Representation, &att.Level, &att.GroupID); err != nil {
			return err
		}
		return dsd.AddAttribute(att)
	})
}

func (r *reader) parseMeasureList(dsd *model.DataStructureDefinition) error {
	return r.each(func(se xml.StartElement) error {
		if se.Name.Local != "PrimaryMeasure" && se.Name.Local != "Measure" {
			return r.skip()
		}
		m := &model.PrimaryMeasure{}
		m.ID = attr(se, "id")
		if err := r.parseComponentChildren(&m.ConceptIdentity, &m.Representation, nil, nil); err != nil {
			return err
		}
		return dsd.AddMeasure(m)
	})
}

// parseComponentChildren consumes the shared children of a component
// element: concept identity, local representation and, for attributes, the
// attachment relationship.
func (r *reader) parseComponentChildren(concept *model.Reference, rep **model.Representation,
	level *model.AttachmentLevel, groupID *string) error {
	return r.each(func(se xml.StartElement) error {
		switch se.Name.Local {
		case "ConceptIdentity":
			ref, err := r.parseRef(model.ClassConcept)
			if err != nil {
				return err
			}
			*concept = ref
			if !ref.IsZero() {
				r.res.Defer(ref, func(model.Artefact) {})
			}
			return nil
		case "LocalRepresentation":
			parsed, err := r.parseRepresentation()
			if err != nil {
				return err
			}
			*rep = parsed
			return nil
		case "AttributeRelationship":
			if level == nil {
				return r.skip()
			}
			return r.parseAttributeRelationship(level, groupID)
		default:
			return r.skip()
		}
	})
}

// parseAttributeRelationship maps the relationship element onto an
// attachment level: None means dataset, a dimension set means series, an
// attachment group means group and the primary measure means observation.
func (r *reader) parseAttributeRelationship(level *model.AttachmentLevel, groupID *string) error {
	return r.each(func(se xml.StartElement) error {
		switch se.Name.Local {
		case "None":
			*level = model.AttachDataSet
			return r.skip()
		case "Dimension", "Dimensions":
			*level = model.AttachSeries
			return r.skip()
		case "AttachmentGroup", "Group":
			*level = model.AttachGroup
			ref, err := r.parseRef("")
			if err != nil {
				return err
			}
			if groupID != nil {
				*groupID = ref.ID
			}
			return nil
		case "PrimaryMeasure":
			*level = model.AttachObservation
			return r.skip()
		default:
			return r.skip()
		}
	})
}

func (r *reader) parseDataflow(msg *sdmx.StructureMessage, se xml.StartElement) error {
	if se.Name.Local != "Dataflow" {
		return r.skip()
	}
	df := &model.DataflowDefinition{}
	r.parseMaintainable(se, &df.Maintainable)
	err := r.each(func(child xml.StartElement) error {
		if done, err := r.parseCommonChild(child, &df.Common); done || err != nil {
			return err
		}
		if child.Name.Local == "Structure" {
			ref, err := r.parseRef(model.ClassDataStructure)
			if err != nil {
				return err
			}
			df.Structure = ref
			if !ref.IsZero() {
				// The defining DSD must exist locally or externally.
				r.res.Defer(ref, func(model.Artefact) {})
			}
			return nil
		}
		return r.skip()
	})
	if err != nil {
		return err
	}
	return r.register(msg, df)
}

func (r *reader) parseHeader(h *sdmx.Header) error {
	return r.each(func(se xml.StartElement) error {
		switch se.Name.Local {
		case "ID":
			txt, err := r.text()
			h.ID = txt
			return err
		case "Test":
			txt, err := r.text()
			h.Test = txt == "true"
			return err
		case "Prepared":
			txt, err := r.text()
			if err != nil {
				return err
			}
			t, perr := time.Parse(time.RFC3339, txt)
			if perr != nil {
				return model.Issues{{Code: model.CodeParseError, Raw: txt,
					Message: "header preparation timestamp does not parse", Cause: perr}}
			}
			h.Prepared = t
			return nil
		case "Sender":
			return r.parseParty(se, &h.Sender)
		case "Receiver":
			return r.parseParty(se, &h.Receiver)
		case "Structure":
			return r.parseHeaderStructure(se, h)
		default:
			return r.skip()
		}
	})
}

func (r *reader) parseParty(se xml.StartElement, p *sdmx.Party) error {
	p.ID = attr(se, "id")
	return r.each(func(child xml.StartElement) error {
		if child.Name.Local == "Name" {
			return r.parseLocalized(child, &p.Name)
		}
		return r.skip()
	})
}

// parseHeaderStructure reads one mes:Structure entry of a data message
// header: the structure reference a data set's structureRef points at.
func (r *reader) parseHeaderStructure(se xml.StartElement, h *sdmx.Header) error {
	structureID := attr(se, "structureID")
	hs := headerStruct{dimAtObs: attr(se, "dimensionAtObservation")}
	err := r.each(func(child xml.StartElement) error {
		switch child.Name.Local {
		case "Structure":
			ref, err := r.parseRef(model.ClassDataStructure)
			if err != nil {
				return err
			}
			hs.ref = ref
			return nil
		case "StructureUsage":
			ref, err := r.parseRef(model.ClassDataflow)
			if err != nil {
				return err
			}
			hs.ref = ref
			return nil
		default:
			return r.skip()
		}
	})
	if err != nil {
		return err
	}
	r.headerStructs[structureID] = hs
	r.headerOrder = append(r.headerOrder, structureID)
	if !hs.ref.IsZero() {
		h.Structures = append(h.Structures, hs.ref)
	}
	return nil
}

func (r *reader) parseErrorMessage() (sdmx.Message, error) {
	msg := &sdmx.ErrorMessage{}
	err := r.each(func(se xml.StartElement) error {
		if se.Name.Local != "ErrorMessage" {
			return r.skip()
		}
		if code := attr(se, "code"); code != "" {
			n, err := strconv.Atoi(code)
			if err != nil {
				return model.Issues{{Code: model.CodeParseError, Raw: code,
					Message: "error message code is not numeric"}}
			}
			msg.Code = n
		}
		return r.each(func(child xml.StartElement) error {
			if child.Name.Local == "Text" {
				txt, err := r.text()
				if err != nil {
					return err
				}
				msg.Text = txt
				return nil
			}
			return r.skip()
		})
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}
