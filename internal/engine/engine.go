// Package engine is the reservation/waitlist automation core: a cooperative
// tick loop over one in-memory entity store. Each AdvanceTime call fires due
// offer timeouts, runs the reminder scheduler, the confirmation reconciler,
// the waitlist matcher and the offer reconciler, in that order. The engine
// is the single writer; the messaging gateway and the reply ledger are the
// only suspension points.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pcmrules/TableBack/internal/gateway"
	"github.com/pcmrules/TableBack/internal/notify"
	"github.com/pcmrules/TableBack/internal/replies"
)

type Config struct {
	FirstReminderMinutesBefore int
	FinalReminderMinutesBefore int
	NoShowGraceMinutes         int
	WaitlistResponseMinutes    int

	// Location anchors all wall-clock math. One fixed reference timezone
	// avoids ambiguity between server and client clocks.
	Location *time.Location

	// ChannelEnabled gates outbound sends only; state transitions happen
	// either way.
	ChannelEnabled bool
}

func (c Config) withDefaults() Config {
	if c.FirstReminderMinutesBefore <= 0 {
		c.FirstReminderMinutesBefore = 120
	}
	if c.FinalReminderMinutesBefore <= 0 {
		c.FinalReminderMinutesBefore = 30
	}
	if c.NoShowGraceMinutes <= 0 {
		c.NoShowGraceMinutes = 15
	}
	if c.WaitlistResponseMinutes <= 0 {
		c.WaitlistResponseMinutes = 10
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	return c
}

// offerState is the in-flight bookkeeping for one pending waitlist offer.
// A reservation id has an offerState iff its status is processing.
type offerState struct {
	EntryID     string
	Fallback    ReservationStatus
	ContactedAt time.Time
	ExpiresAt   time.Time
}

type Engine struct {
	mu sync.Mutex

	cfg      Config
	store    *Store
	gateway  gateway.Gateway
	ledger   replies.Ledger
	notifier notify.Notifier
	clock    Clock

	inflight map[string]*offerState
	fired    map[string]struct{} // one-shot reminder event keys
	timers   *timerQueue
}

func New(cfg Config, store *Store, gw gateway.Gateway, ledger replies.Ledger, notifier notify.Notifier, clock Clock) *Engine {
	if store == nil {
		store = NewStore()
	}
	if gw == nil {
		gw = gateway.Noop{}
	}
	if notifier == nil {
		notifier = notify.Discard{}
	}
	if clock == nil {
		clock = NewClock()
	}
	return &Engine{
		cfg:      cfg.withDefaults(),
		store:    store,
		gateway:  gw,
		ledger:   ledger,
		notifier: notifier,
		clock:    clock,
		inflight: make(map[string]*offerState),
		fired:    make(map[string]struct{}),
		timers:   newTimerQueue(),
	}
}

// AdvanceTime drives every time-based component up to now. Deterministic:
// the same store, ledger and sequence of calls produce the same transitions.
func (e *Engine) AdvanceTime(ctx context.Context, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.fireDueTimers(now)
	e.tickReminders(ctx, now)
	e.tickConfirmations(now)
	e.tickMatcher(ctx, now)
	e.tickOffers(now)
}

// Run ticks the engine on a fixed interval until ctx is cancelled. The
// first tick fires immediately.
func (e *Engine) Run(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()

	e.AdvanceTime(ctx, e.clock.Now())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			e.AdvanceTime(ctx, e.clock.Now())
		}
	}
}

// AddReservation creates a reservation in attention. Missing id and
// creation timestamp are filled in.
func (e *Engine) AddReservation(r Reservation) (Reservation, error) {
	if err := r.Validate(); err != nil {
		return Reservation{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if e.store.Reservation(r.ID) != nil {
		return Reservation{}, fmt.Errorf("reservation %s already exists", r.ID)
	}
	if r.Status == "" {
		r.Status = StatusAttention
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = e.clock.Now()
	}
	e.store.PutReservation(&r)
	return r, nil
}

// RemoveReservation deletes a reservation. If an offer is in flight for it,
// the offer is rolled back first so the waitlist entry returns to waiting.
func (e *Engine) RemoveReservation(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.store.Reservation(id)
	if r == nil {
		return ErrNotFound
	}
	if st, ok := e.inflight[id]; ok {
		e.timers.cancel(id, timerOfferTimeout)
		if entry := e.store.Entry(st.EntryID); entry != nil {
			entry.Status = WaitlistWaiting
			entry.LastContactedAt = time.Time{}
		}
		delete(e.inflight, id)
	}
	e.store.RemoveReservation(id)
	return nil
}

func (e *Engine) AddWaitlistEntry(entry WaitlistEntry) (WaitlistEntry, error) {
	if err := entry.Validate(); err != nil {
		return WaitlistEntry{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if e.store.Entry(entry.ID) != nil {
		return WaitlistEntry{}, fmt.Errorf("waitlist entry %s already exists", entry.ID)
	}
	if entry.Status == "" {
		entry.Status = WaitlistWaiting
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = e.clock.Now()
	}
	e.store.PutEntry(&entry)
	return entry, nil
}

// RemoveWaitlistEntry deletes an entry. An offer in flight against it is
// resolved by the offer reconciler on its next tick.
func (e *Engine) RemoveWaitlistEntry(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.store.RemoveEntry(id) {
		return ErrNotFound
	}
	return nil
}

// Snapshot returns a deep copy of the entity store.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.snapshot(e.clock.Now())
}

// LoadSnapshot replaces the store contents, typically at boot from the
// persistence layer. Offers do not survive a restart: a reservation
// restored in processing has no in-flight bookkeeping anymore, so it is
// reopened as expired and the matcher runs it again.
func (e *Engine) LoadSnapshot(snap Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.store.reservations = make(map[string]*Reservation, len(snap.Reservations))
	e.store.waitlist = make(map[string]*WaitlistEntry, len(snap.Waitlist))
	for _, r := range snap.Reservations {
		r := r
		if r.Status == StatusProcessing {
			r.Status = StatusExpired
		}
		e.store.PutReservation(&r)
	}
	for _, w := range snap.Waitlist {
		w := w
		if w.Status == WaitlistContacted {
			w.Status = WaitlistWaiting
			w.LastContactedAt = time.Time{}
		}
		e.store.PutEntry(&w)
	}
	e.inflight = make(map[string]*offerState)
	e.timers = newTimerQueue()
}

func (e *Engine) notify(level notify.Level, now time.Time, format string, args ...any) {
	e.notifier.Notify(notify.Notification{
		Level:   level,
		Message: fmt.Sprintf(format, args...),
		At:      now,
	})
}
