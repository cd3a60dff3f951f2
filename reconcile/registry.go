package reconcile

// EntityType scopes aliases and master lookups (companies, divisions, blocks).
type EntityType string

const (
	EntityTypeCompany  EntityType = "COMPANY"
	EntityTypeDivision EntityType = "DIVISION"
	EntityTypeBlock    EntityType = "BLOCK"
)

// Master is the in-memory view of a durable master record. The registry
// never owns the storage of masters; it only mirrors them for one run.
type Master struct {
	ID   int
	Name string
}

type masterSet struct {
	ordered     []*Master
	byCanonical map[string]*Master
}

// Registry is the run-scoped master-data cache: all masters of the relevant
// types are prefetched once, and entities created mid-run are registered so
// later chunks observe them without re-querying the store. Thread a Registry
// explicitly through each call; runs must not share one.
type Registry struct {
	sets map[EntityType]*masterSet
}

func NewRegistry() *Registry {
	return &Registry{sets: make(map[EntityType]*masterSet)}
}

func (r *Registry) set(entityType EntityType) *masterSet {
	s, ok := r.sets[entityType]
	if !ok {
		s = &masterSet{byCanonical: make(map[string]*Master)}
		r.sets[entityType] = s
	}
	return s
}

// Load registers prefetched masters. Insertion order is preserved so fuzzy
// tie-breaking stays deterministic. On canonical collisions the first
// loaded master wins.
func (r *Registry) Load(entityType EntityType, masters []Master) {
	s := r.set(entityType)
	for i := range masters {
		m := masters[i]
		key := Canonicalize(m.Name)
		if key == "" {
			continue
		}
		if _, exists := s.byCanonical[key]; exists {
			continue
		}
		s.ordered = append(s.ordered, &m)
		s.byCanonical[key] = &m
	}
}

// RegisterCreated inserts a master created mid-run into the live cache.
func (r *Registry) RegisterCreated(entityType EntityType, m Master) {
	r.Load(entityType, []Master{m})
}

// Get looks up a master by the canonical form of name.
func (r *Registry) Get(entityType EntityType, name string) (*Master, bool) {
	s, ok := r.sets[entityType]
	if !ok {
		return nil, false
	}
	m, ok := s.byCanonical[Canonicalize(name)]
	return m, ok
}

// All returns masters of a type in load order.
func (r *Registry) All(entityType EntityType) []*Master {
	s, ok := r.sets[entityType]
	if !ok {
		return nil
	}
	return s.ordered
}

// Count reports how many masters of a type are cached.
func (r *Registry) Count(entityType EntityType) int {
	s, ok := r.sets[entityType]
	if !ok {
		return 0
	}
	return len(s.ordered)
}
