package engine

import (
	"strings"
	"time"

	"github.com/pcmrules/TableBack/internal/notify"
)

// tickConfirmations polls the reply ledger for reservations that have
// received at least one reminder and applies confirm/decline outcomes.
// Replies logged before any reminder went out are discarded so unrelated
// history is never misattributed. The transition guard is status ==
// attention, which makes re-observing an applied reply a no-op.
func (e *Engine) tickConfirmations(now time.Time) {
	if e.ledger == nil {
		return
	}

	var confirmed, declined []string

	for _, r := range e.store.ReservationsByCreation() {
		if r.Status != StatusAttention || r.ReminderCount == 0 || r.Phone == "" {
			continue
		}
		rep, ok := e.ledger.Get(r.Phone)
		if !ok {
			continue
		}
		threshold := r.CreatedAt
		if r.LastReminderAt.After(threshold) {
			threshold = r.LastReminderAt
		}
		if rep.UpdatedAt.Before(threshold) {
			continue
		}
		switch {
		case rep.Confirmed:
			r.Status = StatusConfirmed
			confirmed = append(confirmed, r.Name)
		case rep.Declined:
			r.Status = StatusExpired
			declined = append(declined, r.Name)
		}
		// Neither keyword matched: ambiguous, re-check next tick.
	}

	if len(confirmed) == 1 {
		e.notify(notify.LevelInfo, now, "reservation for %s confirmed", confirmed[0])
	} else if len(confirmed) > 1 {
		e.notify(notify.LevelInfo, now, "%d reservations confirmed: %s", len(confirmed), strings.Join(confirmed, ", "))
	}
	if len(declined) == 1 {
		e.notify(notify.LevelInfo, now, "reservation for %s declined by guest", declined[0])
	} else if len(declined) > 1 {
		e.notify(notify.LevelInfo, now, "%d reservations declined: %s", len(declined), strings.Join(declined, ", "))
	}
}
