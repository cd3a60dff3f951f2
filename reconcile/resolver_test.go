package reconcile

import (
	"context"
	"errors"
	"testing"
)

type fakeAliases map[string]int

func (f fakeAliases) LookupAlias(_ context.Context, _ EntityType, rawName string) (int, bool, error) {
	id, ok := f[rawName]
	return id, ok, nil
}

type failingAliases struct{}

func (failingAliases) LookupAlias(context.Context, EntityType, string) (int, bool, error) {
	return 0, false, errors.New("alias store down")
}

func companyRegistry(names ...string) *Registry {
	reg := NewRegistry()
	masters := make([]Master, 0, len(names))
	for i, name := range names {
		masters = append(masters, Master{ID: i + 1, Name: name})
	}
	reg.Load(EntityTypeCompany, masters)
	return reg
}

func TestResolveAliasPrecedence(t *testing.T) {
	// A remembered alias wins even when a different master would match
	// more closely.
	reg := companyRegistry("Contoh Jaya")
	aliases := fakeAliases{"PT Contoh Jaya": 99}

	r := NewResolver(aliases)
	result, err := r.Resolve(context.Background(), EntityTypeCompany, []string{"PT Contoh Jaya"}, reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Resolved) != 1 || len(result.Unresolved) != 0 {
		t.Fatalf("expected 1 resolved, got %+v", result)
	}
	got := result.Resolved[0]
	if got.MasterID != 99 || got.Source != SourceAlias {
		t.Fatalf("expected alias hit on master 99, got id=%d source=%s", got.MasterID, got.Source)
	}
}

func TestResolveExactAndPrefix(t *testing.T) {
	reg := companyRegistry("PT Sawit Makmur", "CV Tani Subur")
	r := NewResolver(fakeAliases{})

	result, err := r.Resolve(context.Background(), EntityTypeCompany, []string{
		"Sawit Makmur",                 // canonical exact
		"PT Tani Subur Divisi Selatan", // prefix containment after canonicalization
	}, reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Resolved) != 2 {
		t.Fatalf("expected 2 resolved, got %+v", result)
	}
	if result.Resolved[0].Source != SourceExact || result.Resolved[0].MasterID != 1 {
		t.Fatalf("expected exact match on master 1, got %+v", result.Resolved[0])
	}
	if result.Resolved[1].Source != SourcePrefix || result.Resolved[1].MasterID != 2 {
		t.Fatalf("expected prefix match on master 2, got %+v", result.Resolved[1])
	}
}

func TestResolveFuzzyThreshold(t *testing.T) {
	reg := companyRegistry("abcdefghij")
	r := NewResolver(fakeAliases{})

	// Distance 3 over length 10: exactly at the cutoff, resolves.
	result, err := r.Resolve(context.Background(), EntityTypeCompany, []string{"abcxxxghij"}, reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Resolved) != 1 || result.Resolved[0].Source != SourceFuzzy {
		t.Fatalf("expected fuzzy resolution at threshold, got %+v", result)
	}

	// Distance 4: below the cutoff, unresolved but suggested.
	result, err = r.Resolve(context.Background(), EntityTypeCompany, []string{"abxxxxghij"}, reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Unresolved) != 1 {
		t.Fatalf("expected unresolved below threshold, got %+v", result)
	}
	sug := result.Unresolved[0].Suggestion
	if sug == nil || sug.MasterID != 1 || sug.Score >= MatchThreshold {
		t.Fatalf("expected below-threshold suggestion for master 1, got %+v", sug)
	}
}

func TestResolveFuzzyTieBreakFirstEncountered(t *testing.T) {
	// Both masters are distance 1 from the name; the first loaded wins.
	reg := companyRegistry("sawit makmua", "sawit makmub")
	r := NewResolver(fakeAliases{})

	result, err := r.Resolve(context.Background(), EntityTypeCompany, []string{"sawit makmuc"}, reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Resolved) != 1 || result.Resolved[0].MasterID != 1 {
		t.Fatalf("expected deterministic tie-break to master 1, got %+v", result)
	}
}

func TestResolveCollapsesSpellingVariants(t *testing.T) {
	// Trailing-dot variant must never surface as a second unresolved entry.
	r := NewResolver(fakeAliases{})
	reg := companyRegistry()

	result, err := r.Resolve(context.Background(), EntityTypeCompany, []string{
		"PT Sawit Makmur",
		"PT. Sawit Makmur",
	}, reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Unresolved) != 1 {
		t.Fatalf("expected a single collapsed unresolved entry, got %+v", result.Unresolved)
	}
	entry := result.Unresolved[0]
	if entry.Name != "PT Sawit Makmur" || len(entry.Variants) != 1 || entry.Variants[0] != "PT. Sawit Makmur" {
		t.Fatalf("expected variant collapsed under first spelling, got %+v", entry)
	}

	// With a close master both variants resolve to the same single master.
	reg = companyRegistry("Sawit Makmurr")
	result, err = r.Resolve(context.Background(), EntityTypeCompany, []string{
		"PT Sawit Makmur",
		"PT. Sawit Makmur",
	}, reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Resolved) != 2 || len(result.Unresolved) != 0 {
		t.Fatalf("expected both variants resolved, got %+v", result)
	}
	if result.Resolved[0].MasterID != result.Resolved[1].MasterID {
		t.Fatalf("variants resolved to different masters: %+v", result.Resolved)
	}
}

func TestResolveNeverCreatesMasters(t *testing.T) {
	reg := companyRegistry("Sawit Makmur")
	r := NewResolver(fakeAliases{})

	before := reg.Count(EntityTypeCompany)
	_, err := r.Resolve(context.Background(), EntityTypeCompany, []string{
		"Sawit Makmur", "Completely Unknown Company", "PT Sawit Makmurr", "(garbage)",
	}, reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if after := reg.Count(EntityTypeCompany); after != before {
		t.Fatalf("resolution mutated the registry: %d -> %d masters", before, after)
	}
}

func TestResolveMergeHints(t *testing.T) {
	reg := companyRegistry("sawit makmur")
	r := NewResolver(fakeAliases{})

	// Two different canonical names both land on master 1 (one fuzzy, one
	// prefix); flagged for review, both still resolve.
	result, err := r.Resolve(context.Background(), EntityTypeCompany, []string{
		"sawit makmurr",
		"sawit makmur estate b",
	}, reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Resolved) != 2 {
		t.Fatalf("expected both names resolved, got %+v", result)
	}
	if hint := result.MergeHints[1]; len(hint) != 2 {
		t.Fatalf("expected merge hint listing both names, got %+v", result.MergeHints)
	}
}

func TestResolveAliasStoreError(t *testing.T) {
	r := NewResolver(failingAliases{})
	_, err := r.Resolve(context.Background(), EntityTypeCompany, []string{"PT Sawit Makmur"}, companyRegistry())
	if err == nil {
		t.Fatal("expected alias store error to propagate")
	}
}
