package engine

import (
	"sort"
	"time"
)

type timerKind string

const timerOfferTimeout timerKind = "offer_timeout"

type timerEvent struct {
	FireAt        time.Time
	ReservationID string
	Kind          timerKind
}

// timerQueue holds armed timeouts sorted by fire time. Cancellation is a
// removal, so there are no dangling per-entity timer handles; the tick loop
// drains due events via due().
type timerQueue struct {
	events []timerEvent
}

func newTimerQueue() *timerQueue {
	return &timerQueue{}
}

func (q *timerQueue) arm(ev timerEvent) {
	q.events = append(q.events, ev)
	sort.Slice(q.events, func(i, j int) bool {
		if !q.events[i].FireAt.Equal(q.events[j].FireAt) {
			return q.events[i].FireAt.Before(q.events[j].FireAt)
		}
		return q.events[i].ReservationID < q.events[j].ReservationID
	})
}

func (q *timerQueue) cancel(reservationID string, kind timerKind) {
	kept := q.events[:0]
	for _, ev := range q.events {
		if ev.ReservationID == reservationID && ev.Kind == kind {
			continue
		}
		kept = append(kept, ev)
	}
	q.events = kept
}

// due pops every event with FireAt <= now, in fire order.
func (q *timerQueue) due(now time.Time) []timerEvent {
	i := 0
	for i < len(q.events) && !q.events[i].FireAt.After(now) {
		i++
	}
	if i == 0 {
		return nil
	}
	fired := make([]timerEvent, i)
	copy(fired, q.events[:i])
	q.events = q.events[i:]
	return fired
}

func (q *timerQueue) len() int { return len(q.events) }
