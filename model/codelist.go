package model

import "fmt"

// Code is a member of a Codelist, optionally hierarchical through ParentID.
type Code struct {
	Common
	// ParentID names another code in the same list, or is empty for a root
	// code.
	ParentID string
}

func (c *Code) ItemID() string { return c.ID }

// Codelist is an ordered, optionally hierarchical scheme of codes.
type Codelist struct {
	ItemScheme[*Code]
}

// NewCodelist builds an empty codelist with the given maintainer tuple.
func NewCodelist(agency, id, version string) *Codelist {
	cl := &Codelist{}
	cl.Agency, cl.ID, cl.Version = agency, id, version
	return cl
}

func (cl *Codelist) Identity() Identity { return cl.identity(ClassCodelist) }

// SetParent records a parent-code reference, rejecting unknown members and
// chains that would make a code its own ancestor.
func (cl *Codelist) SetParent(id, parentID string) error {
	code, ok := cl.Get(id)
	if !ok {
		return issuef(CodeUnresolvedReference, "code %q not in codelist %q", id, cl.ID)
	}
	if _, ok := cl.Get(parentID); !ok && parentID != "" {
		return issuef(CodeUnresolvedReference, "parent %q not in codelist %q", parentID, cl.ID)
	}
	for p := parentID; p != ""; {
		if p == id {
			return Issues{{
				Code:     CodeCyclicHierarchy,
				Identity: cl.Identity().String(),
				Message:  fmt.Sprintf("setting parent %q would make code %q its own ancestor", parentID, id),
			}}
		}
		next, ok := cl.Get(p)
		if !ok {
			break
		}
		p = next.ParentID
	}
	code.ParentID = parentID
	return nil
}

// Validate checks the hierarchy invariants over the whole list.
func (cl *Codelist) Validate() error {
	return validateHierarchy(&cl.ItemScheme, cl.Identity(), func(c *Code) string { return c.ParentID })
}
