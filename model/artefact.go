package model

import "sort"

// InternationalString holds human-readable text keyed by locale.
type InternationalString map[string]string

// Localized returns the text for the given locale, falling back to "en" and
// then to the lexicographically first locale present.
func (is InternationalString) Localized(locale string) string {
	if s, ok := is[locale]; ok {
		return s
	}
	if s, ok := is["en"]; ok {
		return s
	}
	locales := make([]string, 0, len(is))
	for l := range is {
		locales = append(locales, l)
	}
	sort.Strings(locales)
	if len(locales) > 0 {
		return is[locales[0]]
	}
	return ""
}

func (is InternationalString) String() string { return is.Localized("en") }

// Locales returns the locales present, sorted for deterministic emission.
func (is InternationalString) Locales() []string {
	locales := make([]string, 0, len(is))
	for l := range is {
		locales = append(locales, l)
	}
	sort.Strings(locales)
	return locales
}

// Text builds a single-locale InternationalString in "en".
func Text(s string) InternationalString {
	if s == "" {
		return nil
	}
	return InternationalString{"en": s}
}

// Annotation is a free-form note attached to any annotable object. Order of
// annotations is significant and preserved.
type Annotation struct {
	ID    string
	Type  string
	Title string
	URL   string
	Text  InternationalString
}

// Common carries the annotable, identifiable and nameable capabilities
// shared by every object in the information model.
type Common struct {
	ID          string
	Name        InternationalString
	Description InternationalString
	Annotations []Annotation
}

// Maintainable adds the maintainer fields carried by top-level artefacts.
type Maintainable struct {
	Common
	Agency  string
	Version string
	Final   bool
}

func (m *Maintainable) identity(c Class) Identity {
	return Identity{Class: c, Agency: m.Agency, ID: m.ID, Version: m.Version}
}

// Artefact is any maintainable object addressable by an identity tuple.
type Artefact interface {
	Identity() Identity
}
