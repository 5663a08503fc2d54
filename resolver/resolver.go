// Package resolver wires up cross-references between artefacts during a
// parse or build session.
//
// A Resolver instance belongs to exactly one session; its identity table is
// never shared across concurrent parses. References are satisfied from the
// session table first, then from the caller's external Lookup, and forward
// references are queued until their target is registered. Finish reports
// every reference still pending as a dangling_reference.
package resolver

import (
	"fmt"
	"sort"

	"github.com/sdmxkit/sdmx/model"
)

// Lookup is the caller-supplied external resolution callback, consulted for
// identities not constructed in the current session.
type Lookup func(model.Reference) (model.Artefact, bool)

type pending struct {
	ref model.Reference
	fn  func(model.Artefact)
}

// Resolver maintains the per-session identity table.
type Resolver struct {
	table   map[string]model.Artefact // full tuple -> instance
	latest  map[string]model.Artefact // class|agency|id -> highest version
	pending map[string][]pending      // full tuple -> queued forward references
	lookup  Lookup
}

// New builds a session resolver. lookup may be nil.
func New(lookup Lookup) *Resolver {
	return &Resolver{
		table:   map[string]model.Artefact{},
		latest:  map[string]model.Artefact{},
		pending: map[string][]pending{},
		lookup:  lookup,
	}
}

// Register indexes a freshly constructed artefact and satisfies any forward
// references queued for its identity.
func (r *Resolver) Register(a model.Artefact) error {
	id := a.Identity()
	key := id.Key()
	if _, dup := r.table[key]; dup {
		return model.Issues{{
			Code:     model.CodeDuplicateIdentifier,
			Identity: id.String(),
			Message:  "artefact registered twice in one session",
		}}
	}
	r.table[key] = a

	fam := id.FamilyKey()
	if cur, ok := r.latest[fam]; !ok || model.CompareVersions(cur.Identity().Version, id.Version) < 0 {
		r.latest[fam] = a
	}

	// Satisfy forward references, both exact-version and latest ones. A
	// later registration of a higher version does not re-fire them;
	// forward references bind to the first satisfying artefact.
	for _, key := range []string{key, model.Reference{Identity: model.Identity{Class: id.Class, Agency: id.Agency, ID: id.ID}}.Key()} {
		if queued, ok := r.pending[key]; ok {
			delete(r.pending, key)
			for _, p := range queued {
				p.fn(a)
			}
		}
	}
	return nil
}

// Resolve returns the artefact for ref: an exact match from the session
// table, the latest registered version when ref carries no version, or the
// external lookup's answer. Resolution is idempotent; the same identity
// always yields the same instance.
func (r *Resolver) Resolve(ref model.Reference) (model.Artefact, error) {
	if a, ok := r.resolveNow(ref); ok {
		return a, nil
	}
	return nil, model.Issues{{
		Code:     model.CodeUnresolvedReference,
		Identity: ref.String(),
		Message:  "reference cannot be satisfied locally or externally",
	}}
}

func (r *Resolver) resolveNow(ref model.Reference) (model.Artefact, bool) {
	if a, ok := r.table[ref.Identity.Key()]; ok {
		return a, true
	}
	if ref.Version == "" {
		if a, ok := r.latest[ref.FamilyKey()]; ok {
			return a, true
		}
	}
	if r.lookup != nil {
		if a, ok := r.lookup(ref); ok && a != nil {
			// Cache so repeated resolution returns the same instance.
			key := a.Identity().Key()
			if _, dup := r.table[key]; !dup {
				r.table[key] = a
				fam := a.Identity().FamilyKey()
				if cur, ok := r.latest[fam]; !ok || model.CompareVersions(cur.Identity().Version, a.Identity().Version) < 0 {
					r.latest[fam] = a
				}
			}
			return r.table[key], true
		}
	}
	return nil, false
}

// Defer resolves ref immediately when possible and otherwise queues fn to
// run once the target is registered.
func (r *Resolver) Defer(ref model.Reference, fn func(model.Artefact)) {
	if a, ok := r.resolveNow(ref); ok {
		fn(a)
		return
	}
	key := ref.Identity.Key()
	r.pending[key] = append(r.pending[key], pending{ref: ref, fn: fn})
}

// Finish fails the session when forward references remain unsatisfied,
// naming every dangling identity.
func (r *Resolver) Finish() error {
	var iss model.Issues
	for _, queued := range r.pending {
		for _, p := range queued {
			// One last chance through the external lookup.
			if a, ok := r.resolveNow(p.ref); ok {
				p.fn(a)
				continue
			}
			iss = model.AppendIssues(iss, model.Issue{
				Code:     model.CodeDanglingReference,
				Identity: p.ref.String(),
				Message:  fmt.Sprintf("no artefact satisfies reference %s", p.ref),
			})
		}
	}
	r.pending = map[string][]pending{}
	if len(iss) > 0 {
		sort.Slice(iss, func(i, j int) bool { return iss[i].Identity < iss[j].Identity })
		return iss
	}
	return nil
}
