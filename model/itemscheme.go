package model

import "fmt"

// Item is a member of an ItemScheme.
type Item interface {
	ItemID() string
}

// ItemScheme is a maintainable, ordered container of items. Item order is
// significant for display but not for equality; lookup by id is
// case-sensitive exact match.
type ItemScheme[T Item] struct {
	Maintainable
	items []T
	index map[string]int
}

// Add appends items to the scheme. On any violation nothing is inserted and
// the scheme is left unchanged.
func (s *ItemScheme[T]) Add(items ...T) error {
	seen := map[string]bool{}
	for _, it := range items {
		id := it.ItemID()
		if id == "" {
			return issuef(CodeInvalidValue, "item with empty id in scheme %q", s.ID)
		}
		if _, dup := s.index[id]; dup || seen[id] {
			return Issues{{
				Code:     CodeDuplicateIdentifier,
				Identity: s.ID,
				Message:  fmt.Sprintf("item %q already present in scheme %q", id, s.ID),
			}}
		}
		seen[id] = true
	}
	if s.index == nil {
		s.index = make(map[string]int, len(items))
	}
	for _, it := range items {
		s.index[it.ItemID()] = len(s.items)
		s.items = append(s.items, it)
	}
	return nil
}

// Get returns the item with the given id.
func (s *ItemScheme[T]) Get(id string) (T, bool) {
	i, ok := s.index[id]
	if !ok {
		var zero T
		return zero, false
	}
	return s.items[i], true
}

// Items returns the items in insertion order. The returned slice must not be
// mutated.
func (s *ItemScheme[T]) Items() []T { return s.items }

func (s *ItemScheme[T]) Len() int { return len(s.items) }

// validateHierarchy checks that every parent id names a member and that no
// parent chain cycles back on itself.
func validateHierarchy[T Item](s *ItemScheme[T], scheme Identity, parentOf func(T) string) error {
	var iss Issues
	for _, it := range s.items {
		p := parentOf(it)
		if p == "" {
			continue
		}
		if _, ok := s.index[p]; !ok {
			iss = AppendIssues(iss, Issue{
				Code:     CodeUnresolvedReference,
				Identity: scheme.String(),
				Message:  fmt.Sprintf("parent %q of item %q is not a member of the scheme", p, it.ItemID()),
			})
		}
	}
	if len(iss) > 0 {
		return iss
	}
	// Walk each parent chain; revisiting a node already on the current path
	// means a cycle.
	const (
		unvisited = iota
		onPath
		done
	)
	state := make(map[string]int, len(s.items))
	var walk func(id string) error
	walk = func(id string) error {
		switch state[id] {
		case done:
			return nil
		case onPath:
			return Issues{{
				Code:     CodeCyclicHierarchy,
				Identity: scheme.String(),
				Message:  fmt.Sprintf("item %q is (transitively) its own parent", id),
			}}
		}
		state[id] = onPath
		i := s.index[id]
		if p := parentOf(s.items[i]); p != "" {
			if err := walk(p); err != nil {
				return err
			}
		}
		state[id] = done
		return nil
	}
	for _, it := range s.items {
		if err := walk(it.ItemID()); err != nil {
			return err
		}
	}
	return nil
}
