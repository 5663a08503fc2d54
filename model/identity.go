package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Class names a kind of identifiable object, using the class names of the
// SDMX information model.
type Class string

const (
	ClassCodelist       Class = "Codelist"
	ClassCode           Class = "Code"
	ClassConceptScheme  Class = "ConceptScheme"
	ClassConcept        Class = "Concept"
	ClassCategoryScheme Class = "CategoryScheme"
	ClassCategory       Class = "Category"
	ClassDataStructure  Class = "DataStructureDefinition"
	ClassDataflow       Class = "DataflowDefinition"
	ClassAgency         Class = "Agency"
)

// urnPackage maps a class to the information-model package used in URNs.
var urnPackage = map[Class]string{
	ClassCodelist:       "codelist",
	ClassCode:           "codelist",
	ClassConceptScheme:  "conceptscheme",
	ClassConcept:        "conceptscheme",
	ClassCategoryScheme: "categoryscheme",
	ClassCategory:       "categoryscheme",
	ClassDataStructure:  "datastructure",
	ClassDataflow:       "datastructure",
	ClassAgency:         "base",
}

// parentClass maps an item class to the class of its containing scheme.
var parentClass = map[Class]Class{
	ClassCode:     ClassCodelist,
	ClassConcept:  ClassConceptScheme,
	ClassCategory: ClassCategoryScheme,
}

// URNPackage returns the information-model package a class belongs to in
// URNs and wire references.
func URNPackage(c Class) string {
	if pkg, ok := urnPackage[c]; ok {
		return pkg
	}
	return "base"
}

// ItemClass returns the item class contained by a scheme class (Codelist
// holds Code, and so on).
func ItemClass(scheme Class) (Class, bool) {
	for item, parent := range parentClass {
		if parent == scheme {
			return item, true
		}
	}
	return "", false
}

// Identity is the tuple under which a maintainable artefact is known for
// cross-reference purposes. An empty Version means "latest/unversioned".
type Identity struct {
	Class   Class
	Agency  string
	ID      string
	Version string
}

func (id Identity) String() string {
	v := id.Version
	if v == "" {
		v = "latest"
	}
	return fmt.Sprintf("%s %s:%s(%s)", id.Class, id.Agency, id.ID, v)
}

// Key returns a canonical map key for the full tuple.
func (id Identity) Key() string {
	return string(id.Class) + "|" + id.Agency + "|" + id.ID + "|" + id.Version
}

// FamilyKey returns a map key ignoring the version, used for latest-version
// resolution.
func (id Identity) FamilyKey() string {
	return string(id.Class) + "|" + id.Agency + "|" + id.ID
}

func (id Identity) IsZero() bool { return id.ID == "" && id.Class == "" }

// Reference points at a maintainable artefact and, optionally, at one of its
// items (a Code inside a Codelist, for example).
type Reference struct {
	Identity
	ItemID string
}

// Ref builds a maintainable reference.
func Ref(class Class, agency, id, version string) Reference {
	return Reference{Identity: Identity{Class: class, Agency: agency, ID: id, Version: version}}
}

// ItemRef builds a reference to an item inside a maintainable scheme. The
// class is the item's class; the identity tuple addresses the parent scheme.
func ItemRef(itemClass Class, agency, schemeID, version, itemID string) Reference {
	parent, ok := parentClass[itemClass]
	if !ok {
		parent = itemClass
	}
	return Reference{
		Identity: Identity{Class: parent, Agency: agency, ID: schemeID, Version: version},
		ItemID:   itemID,
	}
}

func (r Reference) String() string {
	if r.ItemID == "" {
		return r.Identity.String()
	}
	return r.Identity.String() + "." + r.ItemID
}

// urnRE follows the SDMX URN grammar:
//
//	urn:sdmx:org.sdmx.infomodel.<package>.<Class>=<agency>:<id>[(<version>)][.<itemID>]
var urnRE = regexp.MustCompile(
	`^urn:sdmx:org\.sdmx\.infomodel` +
		`\.(?P<package>[^.]+)` +
		`\.(?P<class>[^=]+)=` +
		`(?:(?P<agency>[^:]+):)?` +
		`(?P<id>[^(.]+)` +
		`(?:\((?P<version>[^)]+)\))?` +
		`(?:\.(?P<item>.+))?$`)

// URN renders the SDMX URN for a reference.
func URN(r Reference) string {
	pkg, ok := urnPackage[r.Class]
	if !ok {
		pkg = "base"
	}
	class := r.Class
	item := ""
	if r.ItemID != "" {
		// URNs name the item's class; the identity addresses the scheme.
		for ic, pc := range parentClass {
			if pc == r.Class {
				class = ic
				break
			}
		}
		item = "." + r.ItemID
	}
	version := ""
	if r.Version != "" {
		// The version segment is omitted entirely for latest/unversioned
		// references so re-parsing keeps latest-version resolution.
		version = "(" + r.Version + ")"
	}
	return fmt.Sprintf("urn:sdmx:org.sdmx.infomodel.%s.%s=%s:%s%s%s",
		pkg, class, r.Agency, r.ID, version, item)
}

// ParseURN parses an SDMX URN into a Reference.
func ParseURN(s string) (Reference, error) {
	m := urnRE.FindStringSubmatch(s)
	if m == nil {
		return Reference{}, issuef(CodeParseError, "malformed SDMX URN: %q", s)
	}
	get := func(name string) string {
		return m[urnRE.SubexpIndex(name)]
	}
	class := Class(get("class"))
	ref := Reference{
		Identity: Identity{
			Class:   class,
			Agency:  get("agency"),
			ID:      get("id"),
			Version: get("version"),
		},
		ItemID: get("item"),
	}
	if parent, ok := parentClass[class]; ok && ref.ItemID != "" {
		ref.Class = parent
	}
	return ref, nil
}

// CompareVersions orders two version strings, comparing dot-separated
// segments numerically where both sides are numeric and lexicographically
// otherwise. The empty string orders before any version.
func CompareVersions(a, b string) int {
	if a == b {
		return 0
	}
	if a == "" {
		return -1
	}
	if b == "" {
		return 1
	}
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		av, bv := "", ""
		if i < len(as) {
			av = as[i]
		}
		if i < len(bs) {
			bv = bs[i]
		}
		an, aerr := strconv.Atoi(av)
		bn, berr := strconv.Atoi(bv)
		if aerr == nil && berr == nil {
			if an != bn {
				if an < bn {
					return -1
				}
				return 1
			}
			continue
		}
		if c := strings.Compare(av, bv); c != 0 {
			return c
		}
	}
	return 0
}
