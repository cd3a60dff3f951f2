package reconcile

import (
	"context"
	"strings"
)

// Source records how a name was resolved, for auditability and UI display.
type Source string

const (
	SourceAlias  Source = "alias"
	SourceExact  Source = "exact"
	SourcePrefix Source = "prefix"
	SourceFuzzy  Source = "fuzzy"
)

// AliasLookup is the read side of the alias store. Lookup is keyed on the
// raw (pre-canonicalization) spelling: an alias remembers an exact human
// decision for an exact variant.
type AliasLookup interface {
	LookupAlias(ctx context.Context, entityType EntityType, rawName string) (int, bool, error)
}

// Suggestion is the best approximate candidate carried on an unresolved
// name so a human can confirm or reject it.
type Suggestion struct {
	MasterID   int     `json:"master_id"`
	MasterName string  `json:"master_name"`
	Score      float64 `json:"score"`
}

// Resolution is the outcome for one distinct raw identifier. Unresolved
// entries collapse spelling variants that share a canonical form into a
// single entry, with the extra spellings in Variants.
type Resolution struct {
	Name       string      `json:"name"`
	Variants   []string    `json:"variants,omitempty"`
	MasterID   int         `json:"master_id,omitempty"`
	Source     Source      `json:"source,omitempty"`
	Score      float64     `json:"score,omitempty"`
	Suggestion *Suggestion `json:"suggestion,omitempty"`
}

type ResolveResult struct {
	Resolved   []Resolution `json:"resolved"`
	Unresolved []Resolution `json:"unresolved"`
	// MergeHints lists master ids that more than one distinct canonical
	// name resolved to within this run. Surfaced for review only; both
	// names still resolve independently.
	MergeHints map[int][]string `json:"merge_hints,omitempty"`
}

// Resolver matches raw names against master data. It only ever reads:
// automatic matching can suggest, only explicit confirmation (through the
// alias store) commits anything.
type Resolver struct {
	Aliases    AliasLookup
	Similarity Similarity
	Threshold  float64
}

func NewResolver(aliases AliasLookup) *Resolver {
	return &Resolver{
		Aliases:    aliases,
		Similarity: LevenshteinSimilarity,
		Threshold:  MatchThreshold,
	}
}

type nameGroup struct {
	first    string
	variants []string
}

// Resolve processes a batch of raw names against the registry. Names are
// de-duplicated case-insensitively within the batch. Per name the stages
// are: remembered alias, canonical exact match, prefix containment, then
// approximate match at or above Threshold. Anything below threshold stays
// unresolved, carrying the best candidate as a suggestion.
func (r *Resolver) Resolve(ctx context.Context, entityType EntityType, names []string, reg *Registry) (ResolveResult, error) {
	result := ResolveResult{}
	seen := make(map[string]bool)
	groups := make(map[string]*nameGroup)
	var groupOrder []string

	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		lower := strings.ToLower(name)
		if seen[lower] {
			continue
		}
		seen[lower] = true

		if r.Aliases != nil {
			masterId, ok, err := r.Aliases.LookupAlias(ctx, entityType, name)
			if err != nil {
				return ResolveResult{}, err
			}
			if ok {
				result.Resolved = append(result.Resolved, Resolution{
					Name:     name,
					MasterID: masterId,
					Source:   SourceAlias,
					Score:    1,
				})
				continue
			}
		}

		key := Canonicalize(name)
		g, ok := groups[key]
		if !ok {
			g = &nameGroup{first: name}
			groups[key] = g
			groupOrder = append(groupOrder, key)
			continue
		}
		g.variants = append(g.variants, name)
	}

	matchedNames := make(map[int][]string)

	for _, key := range groupOrder {
		g := groups[key]
		res := r.resolveCanonical(key, entityType, reg)
		res.Name = g.first
		res.Variants = g.variants
		if res.Source == "" {
			result.Unresolved = append(result.Unresolved, res)
			continue
		}
		matchedNames[res.MasterID] = append(matchedNames[res.MasterID], g.first)
		result.Resolved = append(result.Resolved, res)
		for _, variant := range g.variants {
			v := res
			v.Name = variant
			v.Variants = nil
			result.Resolved = append(result.Resolved, v)
		}
	}

	for masterId, matched := range matchedNames {
		if len(matched) > 1 {
			if result.MergeHints == nil {
				result.MergeHints = make(map[int][]string)
			}
			result.MergeHints[masterId] = matched
		}
	}

	return result, nil
}

// resolveCanonical runs the non-alias stages for one canonical key.
// An empty Source on the returned Resolution means unresolved.
func (r *Resolver) resolveCanonical(key string, entityType EntityType, reg *Registry) Resolution {
	if key == "" {
		return Resolution{}
	}

	if m, ok := reg.Get(entityType, key); ok {
		return Resolution{MasterID: m.ID, Source: SourceExact, Score: 1}
	}

	for _, m := range reg.All(entityType) {
		masterKey := Canonicalize(m.Name)
		if masterKey == "" {
			continue
		}
		if strings.HasPrefix(key, masterKey) || strings.HasPrefix(masterKey, key) {
			return Resolution{MasterID: m.ID, Source: SourcePrefix, Score: 1}
		}
	}

	sim := r.Similarity
	if sim == nil {
		sim = LevenshteinSimilarity
	}
	var best *Master
	bestScore := -1.0
	for _, m := range reg.All(entityType) {
		masterKey := Canonicalize(m.Name)
		if masterKey == "" {
			continue
		}
		// Strictly-greater keeps the first-encountered master on ties.
		if score := sim(key, masterKey); score > bestScore {
			bestScore = score
			best = m
		}
	}
	if best == nil {
		return Resolution{}
	}
	if bestScore >= r.Threshold {
		return Resolution{MasterID: best.ID, Source: SourceFuzzy, Score: bestScore}
	}
	return Resolution{
		Suggestion: &Suggestion{MasterID: best.ID, MasterName: best.Name, Score: bestScore},
	}
}
