// Package memory provides an in-memory scheme and record store.
package memory

import (
	"context"
	"sync"

	"github.com/warp/incentive-engine/incentive"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for CLI runs and tests)
// =============================================================================

// Memory holds schemes in insertion order and one record upload.
// It implements incentive.SchemeSource and incentive.RecordSource.
type Memory struct {
	mu      sync.RWMutex
	schemes []incentive.SchemeDefinition
	index   map[incentive.SchemeID]int
	records []incentive.Record
	keys    map[string]int
}

func NewMemory() *Memory {
	return &Memory{
		index: make(map[incentive.SchemeID]int),
		keys:  make(map[string]int),
	}
}

// PutScheme inserts a scheme or replaces one with the same ID in place.
func (m *Memory) PutScheme(s incentive.SchemeDefinition) error {
	if err := incentive.Validate(s); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if i, ok := m.index[s.ID]; ok {
		m.schemes[i] = s
		return nil
	}
	m.index[s.ID] = len(m.schemes)
	m.schemes = append(m.schemes, s)
	return nil
}

// PutSchemes stores all schemes or none.
func (m *Memory) PutSchemes(schemes []incentive.SchemeDefinition) error {
	for _, s := range schemes {
		if err := incentive.Validate(s); err != nil {
			return err
		}
	}
	for _, s := range schemes {
		if err := m.PutScheme(s); err != nil {
			return err
		}
	}
	return nil
}

// DeleteScheme removes a scheme. Reports whether it existed.
func (m *Memory) DeleteScheme(id incentive.SchemeID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.index[id]
	if !ok {
		return false
	}
	m.schemes = append(m.schemes[:i], m.schemes[i+1:]...)
	delete(m.index, id)
	for j := i; j < len(m.schemes); j++ {
		m.index[m.schemes[j].ID] = j
	}
	return true
}

// LoadSchemes implements incentive.SchemeSource.
func (m *Memory) LoadSchemes(_ context.Context) ([]incentive.SchemeDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]incentive.SchemeDefinition, len(m.schemes))
	copy(out, m.schemes)
	return out, nil
}

// ReplaceRecords swaps the stored upload. Repeated keys are kept; lookups
// by key return the first.
func (m *Memory) ReplaceRecords(records []incentive.Record) {
	keys := make(map[string]int, len(records))
	for i, r := range records {
		if _, dup := keys[r.Key]; !dup {
			keys[r.Key] = i
		}
	}

	cp := make([]incentive.Record, len(records))
	copy(cp, records)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = cp
	m.keys = keys
}

// GetRecord returns one record by key.
func (m *Memory) GetRecord(key string) (incentive.Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.keys[key]
	if !ok {
		return incentive.Record{}, false
	}
	return m.records[i], true
}

// LoadRecords implements incentive.RecordSource.
func (m *Memory) LoadRecords(_ context.Context) ([]incentive.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]incentive.Record, len(m.records))
	copy(out, m.records)
	return out, nil
}
