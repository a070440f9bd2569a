/*
snapshot.go - Copy-on-write scheme configuration

PURPOSE:
  Scheme definitions are loaded from an external store and may be
  hot-reloaded while a batch is running. A SchemeSet is an immutable,
  versioned snapshot; the Registry swaps whole sets atomically. A batch
  takes one snapshot at its start and evaluates every record against it.

USAGE:
  reg := incentive.NewRegistry()
  reg.Replace(schemes)           // or reg.Reload(ctx, source)
  set := reg.Snapshot()          // once per batch
  results, _ := eng.EvaluateBatch(ctx, records, set)
*/
package incentive

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// SchemeSource supplies scheme definitions (configuration store, file, ...).
type SchemeSource interface {
	LoadSchemes(ctx context.Context) ([]SchemeDefinition, error)
}

// RecordSource supplies performance records (merge collaborator).
type RecordSource interface {
	LoadRecords(ctx context.Context) ([]Record, error)
}

// =============================================================================
// SCHEME SET
// =============================================================================

// SchemeSet is an immutable snapshot of scheme definitions.
type SchemeSet struct {
	version  uint64
	loadedAt time.Time
	schemes  []SchemeDefinition
}

// NewSchemeSet copies schemes into a snapshot with sorted tier schedules.
func NewSchemeSet(version uint64, schemes []SchemeDefinition) *SchemeSet {
	cp := make([]SchemeDefinition, len(schemes))
	for i, s := range schemes {
		c := s.clone()
		c.Tiers = SortTiers(c.Tiers)
		cp[i] = c
	}
	return &SchemeSet{version: version, loadedAt: time.Now().UTC(), schemes: cp}
}

func (s *SchemeSet) Version() uint64     { return s.version }
func (s *SchemeSet) LoadedAt() time.Time { return s.loadedAt }
func (s *SchemeSet) Len() int            { return len(s.schemes) }

// Schemes returns a copy of the definitions.
func (s *SchemeSet) Schemes() []SchemeDefinition {
	out := make([]SchemeDefinition, len(s.schemes))
	for i, sc := range s.schemes {
		out[i] = sc.clone()
	}
	return out
}

// Get returns a copy of one scheme by ID.
func (s *SchemeSet) Get(id SchemeID) (SchemeDefinition, bool) {
	for _, sc := range s.schemes {
		if sc.ID == id {
			return sc.clone(), true
		}
	}
	return SchemeDefinition{}, false
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry holds the current SchemeSet. Safe for concurrent use.
type Registry struct {
	current atomic.Pointer[SchemeSet]
	version atomic.Uint64
}

// NewRegistry creates a registry holding an empty set.
func NewRegistry() *Registry {
	r := &Registry{}
	r.current.Store(NewSchemeSet(0, nil))
	return r
}

// Snapshot returns the current set. Callers keep it for a whole batch.
func (r *Registry) Snapshot() *SchemeSet {
	return r.current.Load()
}

// Replace publishes a new set built from schemes and returns it.
func (r *Registry) Replace(schemes []SchemeDefinition) *SchemeSet {
	set := NewSchemeSet(r.version.Add(1), schemes)
	r.current.Store(set)
	return set
}

// Reload loads from src and publishes the result. On error the previous
// snapshot stays current.
func (r *Registry) Reload(ctx context.Context, src SchemeSource) (*SchemeSet, error) {
	schemes, err := src.LoadSchemes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load schemes: %w", err)
	}
	return r.Replace(schemes), nil
}
