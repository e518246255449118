package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/pcmrules/TableBack/internal/gateway"
	"github.com/pcmrules/TableBack/internal/notify"
)

// tickMatcher re-offers vacated tables to the waitlist. Edge-triggered: at
// most one vacancy is processed per evaluation, scanned in creation order,
// so the selection stays deterministic. A reservation already owning an
// in-flight offer is never picked twice.
func (e *Engine) tickMatcher(ctx context.Context, now time.Time) {
	for _, r := range e.store.ReservationsByCreation() {
		if r.Status != StatusExpired {
			continue
		}
		if _, busy := e.inflight[r.ID]; busy {
			continue
		}

		entry := e.pickWaiting(r.PartySize)
		if entry == nil {
			r.Status = StatusUnfilled
			e.notify(notify.LevelInfo, now, "no waitlist match for party of %d; table stays unfilled", r.PartySize)
			return
		}
		e.beginOffer(ctx, now, r, entry)
		return
	}
}

// pickWaiting selects the longest-waiting entry with exactly the vacated
// party size. Strict FIFO, no partial size matches.
func (e *Engine) pickWaiting(partySize int) *WaitlistEntry {
	for _, entry := range e.store.EntriesByCreation() {
		if entry.Status == WaitlistWaiting && entry.PartySize == partySize {
			return entry
		}
	}
	return nil
}

// beginOffer runs the shared offer protocol for automatic and manual
// matching: mark both sides in progress, arm the response timeout, send the
// offer. A synchronous send failure rolls everything back, leaving no
// partial state.
func (e *Engine) beginOffer(ctx context.Context, now time.Time, r *Reservation, entry *WaitlistEntry) {
	fallback := r.Status
	expiresAt := now.Add(time.Duration(e.cfg.WaitlistResponseMinutes) * time.Minute)
	prevEntryStatus := entry.Status
	prevContactedAt := entry.LastContactedAt

	e.inflight[r.ID] = &offerState{
		EntryID:     entry.ID,
		Fallback:    fallback,
		ContactedAt: now,
		ExpiresAt:   expiresAt,
	}
	r.Status = StatusProcessing
	entry.Status = WaitlistContacted
	entry.LastContactedAt = now
	e.timers.arm(timerEvent{FireAt: expiresAt, ReservationID: r.ID, Kind: timerOfferTimeout})

	if e.cfg.ChannelEnabled && entry.Phone != "" {
		msg := gateway.Message{
			To:           entry.Phone,
			Body:         fmt.Sprintf("Hi %s! A table for %d just opened up at %s. Reply YES within %d minutes to take it.", entry.Name, entry.PartySize, r.Time, e.cfg.WaitlistResponseMinutes),
			Conversation: gateway.ConversationWaitlistOffer,
			ExpiresAt:    &expiresAt,
		}
		if err := e.gateway.Send(ctx, msg); err != nil {
			e.timers.cancel(r.ID, timerOfferTimeout)
			r.Status = fallback
			entry.Status = prevEntryStatus
			entry.LastContactedAt = prevContactedAt
			delete(e.inflight, r.ID)
			e.notify(notify.LevelError, now, "waitlist offer to %s could not be sent: %v", entry.Name, err)
			return
		}
	}

	e.notify(notify.LevelInfo, now, "waitlist offer sent to %s for party of %d", entry.Name, entry.PartySize)
}

// ContactWaitlistEntry is the staff-triggered flow: find an open table of
// matching size for the given entry and run the offer protocol against it.
func (e *Engine) ContactWaitlistEntry(ctx context.Context, entryID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry := e.store.Entry(entryID)
	if entry == nil {
		return ErrNotFound
	}
	if entry.Status == WaitlistContacted {
		return fmt.Errorf("waitlist entry %s already has an offer in flight", entryID)
	}
	now := e.clock.Now()

	var target *Reservation
	for _, r := range e.store.ReservationsByCreation() {
		if r.Status != StatusExpired && r.Status != StatusUnfilled {
			continue
		}
		if r.PartySize != entry.PartySize {
			continue
		}
		if _, busy := e.inflight[r.ID]; busy {
			continue
		}
		target = r
		break
	}
	if target == nil {
		e.notify(notify.LevelInfo, now, "no open table for party of %d", entry.PartySize)
		return nil
	}

	e.beginOffer(ctx, now, target, entry)
	return nil
}
