package checklist

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/conform"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/pointer"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/spec"
)

// InvariantTestsAttached names the test attachment invariant.
const InvariantTestsAttached = conform.PropertyTestsAttached

// TestRegistry resolves test references. The engine only reads it.
type TestRegistry interface {
	// DiscoverTests returns ref key -> location.
	DiscoverTests() (map[string]string, error)
}

// RefPattern is the accepted ref key format test::<module>::<name>.
var RefPattern = regexp.MustCompile(`^test::[A-Za-z0-9_./-]+::[A-Za-z0-9_.-]+$`)

// InvariantError reports items violating a model invariant.
type InvariantError struct {
	Invariant string
	Code      string
	IDs       []string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %s:[%s]", e.Invariant, e.Code, strings.Join(e.IDs, ","))
}

// Is matches the conform reason code sentinels.
func (e *InvariantError) Is(target error) bool {
	rc, ok := target.(*conform.ReasonCode)
	return ok && rc.Code == e.Code
}

// Attachments maps pointer prefixes to test refs (root test_attachments).
type Attachments map[string][]string

// AttachmentsFromSpec reads the root test_attachments object.
func AttachmentsFromSpec(doc *spec.Document) Attachments {
	out := make(Attachments)
	if doc == nil {
		return out
	}
	v, ok := spec.Lookup(doc.Root, "test_attachments")
	if !ok {
		return out
	}
	obj, ok := v.(*spec.Object)
	if !ok {
		return out
	}
	for _, prefix := range obj.Keys() {
		raw, _ := obj.Get(prefix)
		list, ok := raw.([]any)
		if !ok {
			continue
		}
		canon, err := pointer.Canonical(prefix)
		if err != nil {
			continue
		}
		for _, e := range list {
			if s, ok := e.(string); ok {
				out[canon] = append(out[canon], s)
			}
		}
	}
	return out
}

// For returns the refs attached to ptr by the longest matching prefix.
// Equally long matches are merged.
func (a Attachments) For(ptr string) []string {
	best := -1
	var refs []string
	prefixes := make([]string, 0, len(a))
	for p := range a {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)
	for _, p := range prefixes {
		if !pointer.HasPrefix(ptr, p) {
			continue
		}
		depth := len(pointer.Tokens(p))
		switch {
		case depth > best:
			best = depth
			refs = append([]string(nil), a[p]...)
		case depth == best:
			refs = append(refs, a[p]...)
		}
	}
	return refs
}

// AttachTestRefs merges refs from attachments into each item's inline
// refs. The result is sorted and unique.
func AttachTestRefs(items []Item, a Attachments) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		it = it.Clone()
		it.TestRefs = uniqueSorted(append(it.TestRefs, a.For(it.Ptr)...))
		out[i] = it
	}
	return out
}

func uniqueSorted(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// AttachmentReport is the result of validating test attachment.
type AttachmentReport struct {
	Missing    []string            `json:"missing"`
	Unresolved []string            `json:"unresolved"`
	BadRefs    map[string][]string `json:"bad_refs"`
}

// OK reports whether every item passed.
func (r AttachmentReport) OK() bool {
	return len(r.Missing) == 0 && len(r.Unresolved) == 0
}

// ValidateTestsAttached checks enabled items in two passes: first items
// without refs, then items whose refs are malformed or unknown to reg.
// A nil registry skips the second pass.
func ValidateTestsAttached(items []Item, reg TestRegistry) (AttachmentReport, error) {
	report := AttachmentReport{Missing: []string{}, Unresolved: []string{}, BadRefs: map[string][]string{}}

	for _, it := range items {
		if it.Disabled() {
			continue
		}
		if len(it.TestRefs) == 0 {
			report.Missing = append(report.Missing, it.ID)
		}
	}
	sort.Strings(report.Missing)

	if reg == nil {
		return report, nil
	}
	known, err := reg.DiscoverTests()
	if err != nil {
		return report, fmt.Errorf("discover tests: %w", err)
	}
	for _, it := range items {
		if it.Disabled() || len(it.TestRefs) == 0 {
			continue
		}
		var bad []string
		for _, ref := range it.TestRefs {
			if !RefPattern.MatchString(ref) {
				bad = append(bad, ref)
				continue
			}
			if _, ok := known[ref]; !ok {
				bad = append(bad, ref)
			}
		}
		if len(bad) > 0 {
			report.Unresolved = append(report.Unresolved, it.ID)
			report.BadRefs[it.ID] = bad
		}
	}
	sort.Strings(report.Unresolved)
	return report, nil
}

// EnforceTestsAttached returns an *InvariantError for the first failing
// pass, naming every failing item id.
func EnforceTestsAttached(items []Item, reg TestRegistry) error {
	report, err := ValidateTestsAttached(items, reg)
	if err != nil {
		return err
	}
	return report.Err()
}

// Err converts a failing report into an *InvariantError.
func (r AttachmentReport) Err() error {
	if len(r.Missing) > 0 {
		return &InvariantError{Invariant: InvariantTestsAttached, Code: conform.ErrMissingTestRefs.Code, IDs: r.Missing}
	}
	if len(r.Unresolved) > 0 {
		return &InvariantError{Invariant: InvariantTestsAttached, Code: conform.ErrInvalidTestRefs.Code, IDs: r.Unresolved}
	}
	return nil
}
