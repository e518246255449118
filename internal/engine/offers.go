package engine

import (
	"sort"
	"time"

	"github.com/pcmrules/TableBack/internal/notify"
)

// fireDueTimers drains every armed timeout that has come due. A timeout
// whose offer was already resolved finds the reservation no longer in
// processing and does nothing.
func (e *Engine) fireDueTimers(now time.Time) {
	for _, ev := range e.timers.due(now) {
		if ev.Kind != timerOfferTimeout {
			continue
		}
		st, ok := e.inflight[ev.ReservationID]
		if !ok {
			continue
		}
		r := e.store.Reservation(ev.ReservationID)
		if r == nil || r.Status != StatusProcessing {
			delete(e.inflight, ev.ReservationID)
			continue
		}
		r.Status = st.Fallback
		if entry := e.store.Entry(st.EntryID); entry != nil {
			entry.Status = WaitlistDeclined
			e.notify(notify.LevelInfo, now, "waitlist offer to %s timed out; table reopened", entry.Name)
		} else {
			e.notify(notify.LevelInfo, now, "waitlist offer timed out; table reopened")
		}
		delete(e.inflight, ev.ReservationID)
	}
}

// tickOffers reconciles outstanding waitlist offers against the reply
// ledger. Only replies timestamped at or after the contact moment count;
// older or ambiguous replies are ignored and re-checked next tick.
func (e *Engine) tickOffers(now time.Time) {
	if e.ledger == nil || len(e.inflight) == 0 {
		return
	}

	ids := make([]string, 0, len(e.inflight))
	for id := range e.inflight {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		st := e.inflight[id]
		r := e.store.Reservation(id)
		if r == nil || r.Status != StatusProcessing {
			// Resolved or removed out from under us; drop the bookkeeping.
			e.timers.cancel(id, timerOfferTimeout)
			delete(e.inflight, id)
			continue
		}
		entry := e.store.Entry(st.EntryID)
		if entry == nil {
			// Staff removed the entry mid-offer. The offer can no longer
			// resolve, so treat it like a timeout minus the entry mutation.
			e.timers.cancel(id, timerOfferTimeout)
			r.Status = st.Fallback
			delete(e.inflight, id)
			e.notify(notify.LevelWarn, now, "waitlist entry removed mid-offer; table for %d reopened", r.PartySize)
			continue
		}

		rep, ok := e.ledger.Get(entry.Phone)
		if !ok || rep.UpdatedAt.Before(entry.LastContactedAt) {
			continue
		}

		switch {
		case rep.Confirmed:
			e.timers.cancel(id, timerOfferTimeout)
			if r.OriginalGuestName == "" {
				r.OriginalGuestName = r.Name
			}
			original := r.OriginalGuestName
			r.Name = entry.Name
			r.Phone = entry.Phone
			r.Status = StatusFilled
			r.FilledFromWaitlist = true
			e.store.RemoveEntry(entry.ID)
			delete(e.inflight, id)
			e.notify(notify.LevelInfo, now, "table filled from waitlist by %s (originally %s)", r.Name, original)
		case rep.Declined:
			e.timers.cancel(id, timerOfferTimeout)
			r.Status = st.Fallback
			entry.Status = WaitlistDeclined
			delete(e.inflight, id)
			e.notify(notify.LevelInfo, now, "waitlist offer declined by %s", entry.Name)
		}
	}
}
