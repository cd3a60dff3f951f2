package reconcile

import (
	"testing"

	"github.com/shopspring/decimal"
)

type testCandidate struct {
	date  string
	block string
	qty   decimal.Decimal
}

func (c testCandidate) NaturalKey() string {
	return c.date + "|" + c.block
}

type testExisting struct {
	id  int
	qty decimal.Decimal
}

// Comparable fields at 2dp, the precision used for display and storage.
func harvestOptions() ClassifyOptions[testCandidate, testExisting] {
	return ClassifyOptions[testCandidate, testExisting]{
		ExistingID: func(e testExisting) int { return e.id },
		Equal: func(c testCandidate, e testExisting) bool {
			return c.qty.Round(2).Equal(e.qty.Round(2))
		},
		SameAs: func(a, b testCandidate) bool {
			return a.qty.Round(2).Equal(b.qty.Round(2))
		},
	}
}

func TestClassifyNewUpdatedDuplicate(t *testing.T) {
	existing := map[string]testExisting{
		"2026-01-10|A01": {id: 7, qty: decimal.NewFromInt(10)},
	}

	cases := []struct {
		name       string
		candidate  testCandidate
		expected   RecordState
		existingID int
	}{
		{"equal value is duplicate", testCandidate{"2026-01-10", "A01", decimal.NewFromInt(10)}, StateDuplicate, 7},
		{"changed value is updated", testCandidate{"2026-01-10", "A01", decimal.NewFromInt(12)}, StateUpdated, 7},
		{"unknown key is new", testCandidate{"2026-01-11", "A01", decimal.NewFromInt(10)}, StateNew, 0},
	}
	for _, tc := range cases {
		out := Classify([]testCandidate{tc.candidate}, existing, harvestOptions())
		if len(out.Records) != 1 {
			t.Fatalf("%s: expected 1 record, got %d", tc.name, len(out.Records))
		}
		rec := out.Records[0]
		if rec.State != tc.expected {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.expected, rec.State)
		}
		if rec.ExistingID != tc.existingID {
			t.Fatalf("%s: expected existing id %d, got %d", tc.name, tc.existingID, rec.ExistingID)
		}
	}
}

func TestClassifyToleratesRoundingNoise(t *testing.T) {
	existing := map[string]testExisting{
		"2026-01-10|A01": {id: 7, qty: decimal.NewFromInt(10)},
	}
	noisy, _ := decimal.NewFromString("10.0041")
	out := Classify([]testCandidate{{"2026-01-10", "A01", noisy}}, existing, harvestOptions())
	if out.Records[0].State != StateDuplicate {
		t.Fatalf("sub-precision difference classified as %s, expected DUPLICATE", out.Records[0].State)
	}
}

func TestClassifyInRunShadowing(t *testing.T) {
	existing := map[string]testExisting{}

	candidates := []testCandidate{
		{"2026-01-10", "A01", decimal.NewFromInt(10)}, // NEW
		{"2026-01-10", "A01", decimal.NewFromInt(10)}, // same as first: duplicate, not a second write
		{"2026-01-10", "A01", decimal.NewFromInt(12)}, // differs from first's state: update
		{"2026-01-10", "A01", decimal.NewFromInt(12)}, // same as the updated state: duplicate
	}
	out := Classify(candidates, existing, harvestOptions())

	expected := []RecordState{StateNew, StateDuplicate, StateUpdated, StateDuplicate}
	for i, rec := range out.Records {
		if rec.State != expected[i] {
			t.Fatalf("candidate %d: expected %s, got %s", i, expected[i], rec.State)
		}
	}
	if out.New != 1 || out.Updated != 1 || out.Duplicate != 2 {
		t.Fatalf("unexpected counts: new=%d updated=%d duplicate=%d", out.New, out.Updated, out.Duplicate)
	}
}

func TestClassifyShadowKeepsExistingID(t *testing.T) {
	existing := map[string]testExisting{
		"2026-01-10|A01": {id: 7, qty: decimal.NewFromInt(10)},
	}
	candidates := []testCandidate{
		{"2026-01-10", "A01", decimal.NewFromInt(12)}, // UPDATED against store
		{"2026-01-10", "A01", decimal.NewFromInt(15)}, // UPDATED against in-run state, same persisted row
	}
	out := Classify(candidates, existing, harvestOptions())
	for i, rec := range out.Records {
		if rec.State != StateUpdated || rec.ExistingID != 7 {
			t.Fatalf("candidate %d: expected UPDATED on id 7, got %s id=%d", i, rec.State, rec.ExistingID)
		}
	}
}

func TestCollapseWritableOneWritePerKey(t *testing.T) {
	existing := map[string]testExisting{
		"2026-01-10|A01": {id: 7, qty: decimal.NewFromInt(10)},
	}
	candidates := []testCandidate{
		{"2026-01-10", "A01", decimal.NewFromInt(12)},
		{"2026-01-10", "B02", decimal.NewFromInt(3)},
		{"2026-01-10", "A01", decimal.NewFromInt(15)},
	}
	out := Classify(candidates, existing, harvestOptions())
	collapsed := CollapseWritable(out.Writable())

	if len(collapsed) != 2 {
		t.Fatalf("expected one write per key, got %d records", len(collapsed))
	}
	first := collapsed[0]
	if first.State != StateUpdated || first.ExistingID != 7 || !first.Candidate.qty.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("expected UPDATED on id 7 carrying the last value 15, got %+v", first)
	}
	if collapsed[1].Candidate.block != "B02" {
		t.Fatalf("expected the B02 write preserved, got %+v", collapsed[1])
	}
}

func TestWritableExcludesDuplicates(t *testing.T) {
	existing := map[string]testExisting{
		"2026-01-10|A01": {id: 7, qty: decimal.NewFromInt(10)},
	}
	candidates := []testCandidate{
		{"2026-01-10", "A01", decimal.NewFromInt(10)},
		{"2026-01-10", "B02", decimal.NewFromInt(3)},
	}
	out := Classify(candidates, existing, harvestOptions())
	writable := out.Writable()
	if len(writable) != 1 || writable[0].Candidate.block != "B02" {
		t.Fatalf("expected only the NEW record to be writable, got %+v", writable)
	}
}
