package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotFound = errors.New("not found")

type ReservationStatus string

const (
	StatusConfirmed  ReservationStatus = "confirmed"
	StatusAttention  ReservationStatus = "attention"
	StatusExpired    ReservationStatus = "expired"
	StatusProcessing ReservationStatus = "processing"
	StatusFilled     ReservationStatus = "filled"
	StatusUnfilled   ReservationStatus = "unfilled"
)

type WaitlistStatus string

const (
	WaitlistWaiting   WaitlistStatus = "waiting"
	WaitlistContacted WaitlistStatus = "contacted"
	WaitlistDeclined  WaitlistStatus = "declined"
)

// Reservation is a table booking moving through the confirmation lifecycle.
// Time is a wall-clock time-of-day string ("19:00"), resolved against the
// engine's reference timezone on the day it is evaluated.
type Reservation struct {
	ID               string
	Name             string
	Phone            string
	Time             string
	PartySize        int
	EstimatedRevenue float64

	Status         ReservationStatus
	ReminderCount  int
	LastReminderAt time.Time

	FilledFromWaitlist bool
	OriginalGuestName  string

	CreatedAt time.Time
}

func (r Reservation) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("name required")
	}
	if r.PartySize < 1 {
		return fmt.Errorf("party_size must be >= 1")
	}
	if strings.TrimSpace(r.Time) == "" {
		return fmt.Errorf("time required")
	}
	return nil
}

// WaitlistEntry is a guest waiting for a table of exactly PartySize seats.
type WaitlistEntry struct {
	ID        string
	Name      string
	Phone     string
	PartySize int

	Status          WaitlistStatus
	LastContactedAt time.Time

	CreatedAt time.Time
}

func (e WaitlistEntry) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("name required")
	}
	if e.PartySize < 1 {
		return fmt.Errorf("party_size must be >= 1")
	}
	return nil
}

// resolveWallClock combines a "HH:MM" (or "HH:MM:SS") time-of-day string with
// now's date in loc. Returns false for strings that do not parse; callers
// treat that as configuration data to skip, not an engine failure.
func resolveWallClock(s string, now time.Time, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	t, err := time.Parse("15:04", s)
	if err != nil {
		t, err = time.Parse("15:04:05", s)
		if err != nil {
			return time.Time{}, false
		}
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), true
}
