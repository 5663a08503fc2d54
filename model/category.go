package model

// Category is a member of a CategoryScheme, optionally hierarchical through
// ParentID.
type Category struct {
	Common
	ParentID string
}

func (c *Category) ItemID() string { return c.ID }

// CategoryScheme is an ordered, optionally hierarchical scheme of
// categories.
type CategoryScheme struct {
	ItemScheme[*Category]
}

// NewCategoryScheme builds an empty category scheme with the given
// maintainer tuple.
func NewCategoryScheme(agency, id, version string) *CategoryScheme {
	cs := &CategoryScheme{}
	cs.Agency, cs.ID, cs.Version = agency, id, version
	return cs
}

func (cs *CategoryScheme) Identity() Identity { return cs.identity(ClassCategoryScheme) }

// Validate checks the hierarchy invariants over the whole scheme.
func (cs *CategoryScheme) Validate() error {
	return validateHierarchy(&cs.ItemScheme, cs.Identity(), func(c *Category) string { return c.ParentID })
}
