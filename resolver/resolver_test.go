package resolver_test

import (
	"testing"

	"github.com/sdmxkit/sdmx/model"
	"github.com/sdmxkit/sdmx/resolver"
)

func cl(version string) *model.Codelist {
	return model.NewCodelist("ESTAT", "CL_FREQ", version)
}

func TestRegisterAndResolve(t *testing.T) {
	r := resolver.New(nil)
	a := cl("1.0")
	if err := r.Register(a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := r.Resolve(model.Ref(model.ClassCodelist, "ESTAT", "CL_FREQ", "1.0"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != model.Artefact(a) {
		t.Fatal("resolution must return the registered instance, not a copy")
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := resolver.New(nil)
	if err := r.Register(cl("1.0")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := r.Register(cl("1.0"))
	if !model.HasCode(err, model.CodeDuplicateIdentifier) {
		t.Fatalf("expected duplicate_identifier, got %v", err)
	}
}

func TestResolveLatestWhenUnversioned(t *testing.T) {
	r := resolver.New(nil)
	v1, v2, v10 := cl("1.0"), cl("2.0"), cl("10.0")
	for _, a := range []*model.Codelist{v2, v10, v1} {
		if err := r.Register(a); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	got, err := r.Resolve(model.Ref(model.ClassCodelist, "ESTAT", "CL_FREQ", ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Versions compare numerically per segment, so 10.0 beats 2.0.
	if got != model.Artefact(v10) {
		t.Fatalf("want version 10.0, got %s", got.Identity())
	}
}

func TestDeferRunsOnRegister(t *testing.T) {
	r := resolver.New(nil)
	var bound model.Artefact
	r.Defer(model.Ref(model.ClassCodelist, "ESTAT", "CL_FREQ", "1.0"), func(a model.Artefact) {
		bound = a
	})
	if bound != nil {
		t.Fatal("callback must not run before the target exists")
	}
	target := cl("1.0")
	if err := r.Register(target); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bound != model.Artefact(target) {
		t.Fatal("callback must bind to the registered artefact")
	}
	if err := r.Finish(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFinishReportsDangling(t *testing.T) {
	r := resolver.New(nil)
	r.Defer(model.Ref(model.ClassCodelist, "ESTAT", "CL_GHOST", "1.0"), func(model.Artefact) {})
	err := r.Finish()
	if !model.HasCode(err, model.CodeDanglingReference) {
		t.Fatalf("expected dangling_reference, got %v", err)
	}
	// A finished session reports each dangling reference once.
	if err := r.Finish(); err != nil {
		t.Fatalf("second Finish should be clean, got %v", err)
	}
}

func TestLookupFallback(t *testing.T) {
	external := cl("3.0")
	calls := 0
	r := resolver.New(func(ref model.Reference) (model.Artefact, bool) {
		calls++
		if ref.ID == "CL_FREQ" {
			return external, true
		}
		return nil, false
	})
	ref := model.Ref(model.ClassCodelist, "ESTAT", "CL_FREQ", "3.0")
	first, err := r.Resolve(ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := r.Resolve(ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Fatal("repeated resolution must return the same instance")
	}
	if calls != 1 {
		t.Fatalf("lookup result must be cached, got %d calls", calls)
	}

	_, err = r.Resolve(model.Ref(model.ClassCodelist, "ESTAT", "CL_NOPE", "1.0"))
	if !model.HasCode(err, model.CodeUnresolvedReference) {
		t.Fatalf("expected unresolved_reference, got %v", err)
	}
}
