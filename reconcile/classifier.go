package reconcile

// RecordState classifies a candidate against what is already persisted.
type RecordState string

const (
	StateNew       RecordState = "NEW"
	StateUpdated   RecordState = "UPDATED"
	StateDuplicate RecordState = "DUPLICATE"
)

// Keyed is anything carrying a composite natural key: the business-field
// tuple that identifies the same fact across repeated imports.
type Keyed interface {
	NaturalKey() string
}

// Classified is a candidate tagged with its diff state. ExistingID carries
// the persisted record's id for UPDATED rows so the apply phase can issue
// an update rather than an insert; it is zero for NEW rows.
type Classified[C Keyed] struct {
	Candidate  C
	State      RecordState
	ExistingID int
}

// ClassifyOptions supplies the per-record-type comparison hooks. Equality
// must cover the explicitly enumerated comparable fields only (no ids, no
// timestamps) and compare numerics at storage precision, so float noise
// does not produce false UPDATED classifications.
type ClassifyOptions[C Keyed, E any] struct {
	ExistingID func(E) int
	Equal      func(C, E) bool
	SameAs     func(a, b C) bool
}

type ClassifyOutcome[C Keyed] struct {
	Records   []Classified[C]
	New       int
	Updated   int
	Duplicate int
}

// Writable returns the NEW and UPDATED records in classification order;
// DUPLICATE rows are never written, only counted.
func (o ClassifyOutcome[C]) Writable() []Classified[C] {
	writable := make([]Classified[C], 0, o.New+o.Updated)
	for _, rec := range o.Records {
		if rec.State == StateNew || rec.State == StateUpdated {
			writable = append(writable, rec)
		}
	}
	return writable
}

// CollapseWritable folds writable records that share a natural key into a
// single write carrying the final candidate's values. Completion order
// within an apply chunk is unspecified, so two writes against one key could
// persist in either order; one write per key removes that race. The
// collapsed record keeps the first occurrence's state and existing id, so
// the run still counts whether the persisted row was created or updated.
func CollapseWritable[C Keyed](records []Classified[C]) []Classified[C] {
	collapsed := make([]Classified[C], 0, len(records))
	index := make(map[string]int, len(records))
	for _, rec := range records {
		key := rec.Candidate.NaturalKey()
		if i, ok := index[key]; ok {
			collapsed[i].Candidate = rec.Candidate
			continue
		}
		index[key] = len(collapsed)
		collapsed = append(collapsed, rec)
	}
	return collapsed
}

// Classify partitions candidates into NEW / UPDATED / DUPLICATE against the
// existing records for their key space. When several candidates in one run
// share a natural key, only the first is classified against the store;
// later ones are classified against the first candidate's resulting state,
// so an intra-file duplicate never produces a second write of equal data.
func Classify[C Keyed, E any](candidates []C, existingByKey map[string]E, opts ClassifyOptions[C, E]) ClassifyOutcome[C] {
	type shadow struct {
		candidate  C
		existingID int
	}
	shadows := make(map[string]*shadow)

	var out ClassifyOutcome[C]
	add := func(c C, state RecordState, existingID int) {
		out.Records = append(out.Records, Classified[C]{Candidate: c, State: state, ExistingID: existingID})
		switch state {
		case StateNew:
			out.New++
		case StateUpdated:
			out.Updated++
		case StateDuplicate:
			out.Duplicate++
		}
	}

	for _, c := range candidates {
		key := c.NaturalKey()

		if sh, ok := shadows[key]; ok {
			if opts.SameAs(c, sh.candidate) {
				add(c, StateDuplicate, sh.existingID)
			} else {
				add(c, StateUpdated, sh.existingID)
				sh.candidate = c
			}
			continue
		}

		existing, ok := existingByKey[key]
		if !ok {
			add(c, StateNew, 0)
			shadows[key] = &shadow{candidate: c}
			continue
		}

		existingID := opts.ExistingID(existing)
		if opts.Equal(c, existing) {
			add(c, StateDuplicate, existingID)
		} else {
			add(c, StateUpdated, existingID)
		}
		shadows[key] = &shadow{candidate: c, existingID: existingID}
	}

	return out
}
