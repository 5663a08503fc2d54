package sdmxml

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/sdmxkit/sdmx/model"
)

// attr returns the value of the named attribute, matching on local name.
func attr(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func wireErr(err error) error {
	if err == nil {
		return nil
	}
	return model.Issues{{Code: model.CodeParseError, Message: "malformed XML", Cause: err}}
}

// each loops over the direct children of the element just opened,
// dispatching every child start element through fn. fn must consume the
// whole child (parse it or skip it).
func (r *reader) each(fn func(xml.StartElement) error) error {
	for {
		tok, err := r.dec.Token()
		if err != nil {
			if err == io.EOF {
				return model.Issues{{Code: model.CodeParseError, Message: "unexpected end of XML input"}}
			}
			return wireErr(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if err := fn(t); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

// skip consumes the element whose start was just dispatched.
func (r *reader) skip() error {
	return wireErr(r.dec.Skip())
}

// text consumes the element whose start was just dispatched and returns its
// character data.
func (r *reader) text() (string, error) {
	var b strings.Builder
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return "", wireErr(err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.EndElement:
			return b.String(), nil
		case xml.StartElement:
			// Mixed content is not part of the grammar; drop it.
			if err := r.skip(); err != nil {
				return "", err
			}
		}
	}
}

// xw is a thin element-stream writer. The first error sticks; emission
// methods become no-ops afterwards.
type xw struct {
	enc *xml.Encoder
	err error
}

func newXW(w io.Writer) *xw {
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	return &xw{enc: enc}
}

func name(n string) xml.Name { return xml.Name{Local: n} }

func (w *xw) start(n string, attrs ...xml.Attr) {
	if w.err != nil {
		return
	}
	w.err = w.enc.EncodeToken(xml.StartElement{Name: name(n), Attr: attrs})
}

func (w *xw) end(n string) {
	if w.err != nil {
		return
	}
	w.err = w.enc.EncodeToken(xml.EndElement{Name: name(n)})
}

func (w *xw) leaf(n, text string, attrs ...xml.Attr) {
	w.start(n, attrs...)
	if w.err == nil && text != "" {
		w.err = w.enc.EncodeToken(xml.CharData(text))
	}
	w.end(n)
}

// empty emits a childless element.
func (w *xw) empty(n string, attrs ...xml.Attr) {
	w.start(n, attrs...)
	w.end(n)
}

func (w *xw) flush() error {
	if w.err != nil {
		return model.Issues{{Code: model.CodeParseError, Message: "XML emission failed", Cause: w.err}}
	}
	if err := w.enc.Flush(); err != nil {
		return model.Issues{{Code: model.CodeParseError, Message: "XML emission failed", Cause: err}}
	}
	return nil
}

func a(n, v string) xml.Attr {
	return xml.Attr{Name: name(n), Value: v}
}

// localized emits one element per locale, sorted for determinism.
func (w *xw) localized(n string, is model.InternationalString) {
	for _, locale := range is.Locales() {
		w.leaf(n, is[locale], a("xml:lang", locale))
	}
}

// parseLocalized reads a localized element's text into is, keyed by the
// xml:lang attribute (empty locale defaults to "en").
func (r *reader) parseLocalized(se xml.StartElement, is *model.InternationalString) error {
	locale := attr(se, "lang")
	if locale == "" {
		locale = "en"
	}
	txt, err := r.text()
	if err != nil {
		return err
	}
	if *is == nil {
		*is = model.InternationalString{}
	}
	(*is)[locale] = txt
	return nil
}
