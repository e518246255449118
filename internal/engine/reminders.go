package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/pcmrules/TableBack/internal/gateway"
	"github.com/pcmrules/TableBack/internal/notify"
)

// tickReminders fires first/final confirmation reminders and flags
// no-shows. Decision phase first: all bookkeeping is applied before any
// message leaves, and the collected sends go out afterwards. A delivery
// failure is reported but never rolls the reminder back; the reminder was
// due regardless.
func (e *Engine) tickReminders(ctx context.Context, now time.Time) {
	type outbound struct {
		guest string
		msg   gateway.Message
	}
	var sends []outbound

	for _, r := range e.store.ReservationsByCreation() {
		if r.Status != StatusAttention {
			continue
		}
		at, ok := resolveWallClock(r.Time, now, e.cfg.Location)
		if !ok {
			// Unparseable time string is bad configuration data, not an
			// engine failure. Skip.
			continue
		}

		firstAt := at.Add(-time.Duration(e.cfg.FirstReminderMinutesBefore) * time.Minute)
		finalAt := at.Add(-time.Duration(e.cfg.FinalReminderMinutesBefore) * time.Minute)
		noShowAt := at.Add(time.Duration(e.cfg.NoShowGraceMinutes) * time.Minute)

		if r.ReminderCount < 2 && !now.Before(finalAt) {
			r.ReminderCount = 2
			r.LastReminderAt = now
			if e.markFired(r.ID, "final") && e.cfg.ChannelEnabled && r.Phone != "" {
				sends = append(sends, outbound{guest: r.Name, msg: gateway.Message{
					To:           r.Phone,
					Body:         fmt.Sprintf("Hi %s! Final reminder: we are holding your table for %d at %s today. Reply YES to confirm or NO to cancel.", r.Name, r.PartySize, r.Time),
					Conversation: gateway.ConversationReservationConfirmation,
				}})
			}
		} else if r.ReminderCount < 1 && !now.Before(firstAt) {
			r.ReminderCount = 1
			r.LastReminderAt = now
			if e.markFired(r.ID, "first") && e.cfg.ChannelEnabled && r.Phone != "" {
				sends = append(sends, outbound{guest: r.Name, msg: gateway.Message{
					To:           r.Phone,
					Body:         fmt.Sprintf("Hi %s! A reminder of your reservation today at %s for %d. Reply YES to confirm or NO to cancel.", r.Name, r.Time, r.PartySize),
					Conversation: gateway.ConversationReservationConfirmation,
				}})
			}
		}

		// No-show detection is independent of reminder progress.
		if !now.Before(noShowAt) {
			r.Status = StatusExpired
			e.notify(notify.LevelWarn, now, "reservation for %s (party of %d) marked as no-show", r.Name, r.PartySize)
		}
	}

	for _, s := range sends {
		if err := e.gateway.Send(ctx, s.msg); err != nil {
			e.notify(notify.LevelWarn, now, "reminder to %s could not be delivered: %v", s.guest, err)
		}
	}
}

// markFired records a one-shot event key so the same reminder is never
// dispatched twice, even if bookkeeping is replayed.
func (e *Engine) markFired(reservationID, kind string) bool {
	key := reservationID + ":" + kind
	if _, done := e.fired[key]; done {
		return false
	}
	e.fired[key] = struct{}{}
	return true
}
