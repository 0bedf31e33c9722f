// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package highlight holds evidence highlights in a single arena keyed by id,
// with a derived index from (knowledge unit, field) to the ids it owns.
//
// The store is not safe for concurrent use; the annotation engine serializes
// access to it.
package highlight

import (
	"github.com/google/uuid"

	"github.com/pdiddy/evidence-annotator/pkg/types"
)

// Location names the owner of a highlight.
type Location struct {
	KUID      string
	FieldID   string
	Highlight types.Highlight
}

// Store is the authoritative collection of highlights.
type Store struct {
	byID  map[string]types.Highlight
	owned map[string]map[string][]string // kuID -> fieldID -> ids in insertion order
	newID func() string
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator replaces the uuid-based id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		byID:  make(map[string]types.Highlight),
		owned: make(map[string]map[string][]string),
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Len returns the number of highlights held.
func (s *Store) Len() int {
	return len(s.byID)
}

// Add assigns a fresh id to h and appends it to its owning field.
func (s *Store) Add(h types.Highlight) types.Highlight {
	h.ID = s.newID()
	s.insert(h)
	return h
}

// Restore inserts h keeping its id, for highlights loaded from persistence.
// A highlight with an id already present replaces the old record.
func (s *Store) Restore(h types.Highlight) {
	if h.ID == "" {
		h.ID = s.newID()
	}
	if _, ok := s.byID[h.ID]; ok {
		s.Remove(h.ID)
	}
	s.insert(h)
}

func (s *Store) insert(h types.Highlight) {
	s.byID[h.ID] = h
	fields, ok := s.owned[h.KUID]
	if !ok {
		fields = make(map[string][]string)
		s.owned[h.KUID] = fields
	}
	fields[h.FieldID] = append(fields[h.FieldID], h.ID)
}

// Get returns the highlight with the given id.
func (s *Store) Get(id string) (types.Highlight, bool) {
	h, ok := s.byID[id]
	return h, ok
}

// Find resolves a highlight id to its owner.
func (s *Store) Find(id string) (Location, bool) {
	h, ok := s.byID[id]
	if !ok {
		return Location{}, false
	}
	return Location{KUID: h.KUID, FieldID: h.FieldID, Highlight: h}, true
}

// Remove deletes the highlight with the given id. Removing an unknown id
// is a no-op and reports false.
func (s *Store) Remove(id string) (types.Highlight, bool) {
	h, ok := s.byID[id]
	if !ok {
		return types.Highlight{}, false
	}
	delete(s.byID, id)

	fields := s.owned[h.KUID]
	ids := fields[h.FieldID]
	for i, hid := range ids {
		if hid == id {
			ids = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(fields, h.FieldID)
	} else {
		fields[h.FieldID] = ids
	}
	if len(fields) == 0 {
		delete(s.owned, h.KUID)
	}
	return h, true
}

// ForField returns the highlights owned by a field in insertion order.
// The result is never nil.
func (s *Store) ForField(kuID, fieldID string) []types.Highlight {
	ids := s.owned[kuID][fieldID]
	out := make([]types.Highlight, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.byID[id])
	}
	return out
}

// ForUnit returns all highlights owned by a knowledge unit, grouped by
// field in the order fieldIDs lists them.
func (s *Store) ForUnit(kuID string, fieldIDs []string) []types.Highlight {
	var out []types.Highlight
	for _, fid := range fieldIDs {
		out = append(out, s.ForField(kuID, fid)...)
	}
	return out
}

// RemoveField deletes every highlight owned by a field and returns how many
// were removed.
func (s *Store) RemoveField(kuID, fieldID string) int {
	fields := s.owned[kuID]
	ids := fields[fieldID]
	for _, id := range ids {
		delete(s.byID, id)
	}
	delete(fields, fieldID)
	if len(fields) == 0 {
		delete(s.owned, kuID)
	}
	return len(ids)
}

// RemoveUnit deletes every highlight owned by a knowledge unit.
func (s *Store) RemoveUnit(kuID string) int {
	n := 0
	for _, ids := range s.owned[kuID] {
		for _, id := range ids {
			delete(s.byID, id)
			n++
		}
	}
	delete(s.owned, kuID)
	return n
}
