package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcmrules/TableBack/internal/gateway"
	"github.com/pcmrules/TableBack/internal/notify"
	"github.com/pcmrules/TableBack/internal/replies"
)

// testBase is noon UTC; reservations at "19:00" resolve to the same day.
func testBase() time.Time {
	return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
}

type fakeGateway struct {
	mu   sync.Mutex
	sent []gateway.Message
	err  error
}

func (g *fakeGateway) Send(_ context.Context, m gateway.Message) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return g.err
	}
	g.sent = append(g.sent, m)
	return nil
}

func (g *fakeGateway) fail(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}

func (g *fakeGateway) messages() []gateway.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]gateway.Message, len(g.sent))
	copy(out, g.sent)
	return out
}

type fixture struct {
	t      *testing.T
	eng    *Engine
	clock  *ManualClock
	gw     *fakeGateway
	ledger *replies.CacheLedger
	feed   *notify.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := NewManualClock(testBase())
	gw := &fakeGateway{}
	ledger := replies.NewCacheLedger(24*time.Hour, "1")
	feed := &notify.Recorder{}
	eng := New(Config{Location: time.UTC, ChannelEnabled: true}, NewStore(), gw, ledger, feed, clock)
	return &fixture{t: t, eng: eng, clock: clock, gw: gw, ledger: ledger, feed: feed}
}

func (f *fixture) tick() {
	f.eng.AdvanceTime(context.Background(), f.clock.Now())
}

// advanceTo moves the clock to the given wall time on the base day and
// ticks once.
func (f *fixture) advanceTo(hour, min int) {
	b := testBase()
	f.clock.Set(time.Date(b.Year(), b.Month(), b.Day(), hour, min, 0, 0, time.UTC))
	f.tick()
}

func (f *fixture) addReservation(name, phone, at string, partySize int) Reservation {
	f.t.Helper()
	r, err := f.eng.AddReservation(Reservation{Name: name, Phone: phone, Time: at, PartySize: partySize})
	require.NoError(f.t, err)
	return r
}

func (f *fixture) addEntry(name, phone string, partySize int) WaitlistEntry {
	f.t.Helper()
	e, err := f.eng.AddWaitlistEntry(WaitlistEntry{Name: name, Phone: phone, PartySize: partySize})
	require.NoError(f.t, err)
	return e
}

func (f *fixture) reservation(id string) *Reservation {
	f.t.Helper()
	r := f.eng.store.Reservation(id)
	require.NotNil(f.t, r)
	return r
}

func (f *fixture) entry(id string) *WaitlistEntry {
	f.t.Helper()
	e := f.eng.store.Entry(id)
	require.NotNil(f.t, e)
	return e
}

func TestAddReservationDefaults(t *testing.T) {
	f := newFixture(t)

	r := f.addReservation("Alice", "4155550100", "19:00", 4)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, StatusAttention, r.Status)
	assert.Equal(t, testBase(), r.CreatedAt)
	assert.Zero(t, r.ReminderCount)
}

func TestAddReservationValidates(t *testing.T) {
	f := newFixture(t)

	_, err := f.eng.AddReservation(Reservation{Phone: "x", Time: "19:00", PartySize: 2})
	assert.Error(t, err)
	_, err = f.eng.AddReservation(Reservation{Name: "Bob", Time: "19:00", PartySize: 0})
	assert.Error(t, err)
	_, err = f.eng.AddReservation(Reservation{Name: "Bob", PartySize: 2})
	assert.Error(t, err)
}

func TestAddReservationRejectsDuplicateID(t *testing.T) {
	f := newFixture(t)

	_, err := f.eng.AddReservation(Reservation{ID: "r1", Name: "Alice", Time: "19:00", PartySize: 2})
	require.NoError(t, err)
	_, err = f.eng.AddReservation(Reservation{ID: "r1", Name: "Bob", Time: "20:00", PartySize: 2})
	assert.Error(t, err)
}

func TestRemoveReservation(t *testing.T) {
	f := newFixture(t)

	r := f.addReservation("Alice", "4155550100", "19:00", 4)
	require.NoError(t, f.eng.RemoveReservation(r.ID))
	assert.ErrorIs(t, f.eng.RemoveReservation(r.ID), ErrNotFound)
}

func TestRemoveReservationMidOfferReleasesEntry(t *testing.T) {
	f := newFixture(t)

	r := f.addReservation("Alice", "4155550100", "19:00", 4)
	e := f.addEntry("Wanda", "4155550111", 4)

	f.advanceTo(19, 15) // no-show, then matched
	require.Equal(t, StatusProcessing, f.reservation(r.ID).Status)
	require.Equal(t, WaitlistContacted, f.entry(e.ID).Status)

	require.NoError(t, f.eng.RemoveReservation(r.ID))
	assert.Equal(t, WaitlistWaiting, f.entry(e.ID).Status)
	assert.Zero(t, f.entry(e.ID).LastContactedAt)
	assert.Empty(t, f.eng.inflight)
	assert.Zero(t, f.eng.timers.len())
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	f := newFixture(t)

	r := f.addReservation("Alice", "4155550100", "19:00", 4)
	f.addEntry("Wanda", "4155550111", 4)

	snap := f.eng.Snapshot()
	require.Len(t, snap.Reservations, 1)
	require.Len(t, snap.Waitlist, 1)

	snap.Reservations[0].Name = "mutated"
	assert.Equal(t, "Alice", f.reservation(r.ID).Name)
}

func TestLoadSnapshotReopensInterruptedOffers(t *testing.T) {
	f := newFixture(t)

	f.eng.LoadSnapshot(Snapshot{
		Reservations: []Reservation{
			{ID: "r1", Name: "Alice", Time: "19:00", PartySize: 4, Status: StatusProcessing, CreatedAt: testBase()},
			{ID: "r2", Name: "Bob", Time: "20:00", PartySize: 2, Status: StatusConfirmed, CreatedAt: testBase()},
		},
		Waitlist: []WaitlistEntry{
			{ID: "w1", Name: "Wanda", PartySize: 4, Status: WaitlistContacted, LastContactedAt: testBase(), CreatedAt: testBase()},
		},
	})

	// Offers do not survive a restart: the vacancy reopens and the entry
	// goes back to waiting for the matcher to pick up again.
	assert.Equal(t, StatusExpired, f.reservation("r1").Status)
	assert.Equal(t, StatusConfirmed, f.reservation("r2").Status)
	assert.Equal(t, WaitlistWaiting, f.entry("w1").Status)
	assert.Zero(t, f.entry("w1").LastContactedAt)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.eng.Run(ctx, 10*time.Millisecond) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
