package replies

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerStoresUnderEquivalentForms(t *testing.T) {
	l := NewCacheLedger(time.Hour, "1")
	at := time.Date(2025, 3, 10, 17, 0, 0, 0, time.UTC)

	l.Set("+1 (415) 555-0100", Reply{Confirmed: true, LastReply: "yes", UpdatedAt: at})

	for _, form := range []string{
		"+14155550100",
		"14155550100",
		"4155550100",
		"(415) 555-0100",
		"415-555-0100",
	} {
		rep, ok := l.Get(form)
		require.True(t, ok, "lookup under %q", form)
		assert.True(t, rep.Confirmed)
		assert.Equal(t, at, rep.UpdatedAt)
	}
}

func TestLedgerLocalFormFindsInternational(t *testing.T) {
	l := NewCacheLedger(time.Hour, "1")

	l.Set("4155550100", Reply{Declined: true, UpdatedAt: time.Now()})

	rep, ok := l.Get("+1 415 555 0100")
	require.True(t, ok)
	assert.True(t, rep.Declined)
}

func TestLedgerTrimsLeadingZeros(t *testing.T) {
	l := NewCacheLedger(time.Hour, "44")

	l.Set("07700900123", Reply{Confirmed: true, UpdatedAt: time.Now()})

	_, ok := l.Get("+44 7700 900123")
	assert.True(t, ok)
}

func TestLedgerMiss(t *testing.T) {
	l := NewCacheLedger(time.Hour, "1")

	_, ok := l.Get("4155550100")
	assert.False(t, ok)
	_, ok = l.Get("")
	assert.False(t, ok)
	_, ok = l.Get("no digits here")
	assert.False(t, ok)
}

func TestLedgerLatestReplyWins(t *testing.T) {
	l := NewCacheLedger(time.Hour, "1")
	t1 := time.Date(2025, 3, 10, 17, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)

	l.Set("4155550100", Reply{Confirmed: true, UpdatedAt: t1})
	l.Set("+14155550100", Reply{Declined: true, UpdatedAt: t2})

	rep, ok := l.Get("4155550100")
	require.True(t, ok)
	assert.True(t, rep.Declined)
	assert.False(t, rep.Confirmed)
	assert.Equal(t, t2, rep.UpdatedAt)
}

func TestLedgerEntriesExpire(t *testing.T) {
	l := NewCacheLedger(20*time.Millisecond, "1")

	l.Set("4155550100", Reply{Confirmed: true, UpdatedAt: time.Now()})
	time.Sleep(40 * time.Millisecond)

	_, ok := l.Get("4155550100")
	assert.False(t, ok)
}
