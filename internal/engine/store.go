package engine

import (
	"sort"
	"time"
)

// Store is the engine's in-memory arena of reservations and waitlist
// entries. It is not safe for concurrent use on its own; the Engine is the
// single writer and guards every access with its own mutex.
type Store struct {
	reservations map[string]*Reservation
	waitlist     map[string]*WaitlistEntry
}

func NewStore() *Store {
	return &Store{
		reservations: make(map[string]*Reservation),
		waitlist:     make(map[string]*WaitlistEntry),
	}
}

func (s *Store) Reservation(id string) *Reservation {
	return s.reservations[id]
}

func (s *Store) PutReservation(r *Reservation) {
	s.reservations[r.ID] = r
}

func (s *Store) RemoveReservation(id string) bool {
	if _, ok := s.reservations[id]; !ok {
		return false
	}
	delete(s.reservations, id)
	return true
}

func (s *Store) Entry(id string) *WaitlistEntry {
	return s.waitlist[id]
}

func (s *Store) PutEntry(e *WaitlistEntry) {
	s.waitlist[e.ID] = e
}

func (s *Store) RemoveEntry(id string) bool {
	if _, ok := s.waitlist[id]; !ok {
		return false
	}
	delete(s.waitlist, id)
	return true
}

// ReservationsByCreation returns every reservation ordered by CreatedAt,
// with ID as the tie-break. Ticks iterate in this order so a pick among
// equals is deterministic.
func (s *Store) ReservationsByCreation() []*Reservation {
	out := make([]*Reservation, 0, len(s.reservations))
	for _, r := range s.reservations {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) EntriesByCreation() []*WaitlistEntry {
	out := make([]*WaitlistEntry, 0, len(s.waitlist))
	for _, e := range s.waitlist {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Snapshot is a deep copy of the store, safe to hand to readers and to the
// persistence layer.
type Snapshot struct {
	Reservations []Reservation
	Waitlist     []WaitlistEntry
	TakenAt      time.Time
}

func (s *Store) snapshot(now time.Time) Snapshot {
	snap := Snapshot{
		Reservations: make([]Reservation, 0, len(s.reservations)),
		Waitlist:     make([]WaitlistEntry, 0, len(s.waitlist)),
		TakenAt:      now,
	}
	for _, r := range s.ReservationsByCreation() {
		snap.Reservations = append(snap.Reservations, *r)
	}
	for _, e := range s.EntriesByCreation() {
		snap.Waitlist = append(snap.Waitlist, *e)
	}
	return snap
}
