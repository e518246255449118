// Package postgres is the optional snapshot persistence layer. It sits
// entirely outside the engine: the serve loop loads a snapshot at boot and
// writes one back on an interval. With no DATABASE_URL the system runs
// local-only against the same engine.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pcmrules/TableBack/internal/engine"
)

type Repo struct {
	pool *pgxpool.Pool
}

func Open(ctx context.Context, databaseURL string) (*Repo, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	cfg.MaxConnLifetime = 5 * time.Minute
	cfg.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

func (r *Repo) Close() {
	r.pool.Close()
}

func (r *Repo) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return r.pool.Ping(ctx)
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS reservations (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	phone TEXT NOT NULL DEFAULT '',
	reserved_time TEXT NOT NULL,
	party_size INT NOT NULL,
	estimated_revenue DOUBLE PRECISION NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	reminder_count INT NOT NULL DEFAULT 0,
	last_reminder_at TIMESTAMPTZ,
	filled_from_waitlist BOOLEAN NOT NULL DEFAULT FALSE,
	original_guest_name TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS waitlist_entries (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	phone TEXT NOT NULL DEFAULT '',
	party_size INT NOT NULL,
	status TEXT NOT NULL,
	last_contacted_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reservations_status ON reservations(status);
`

func (r *Repo) Migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, schemaSQL)
	return err
}

// Load reads the full entity set, ordered by creation so the engine seeds
// deterministically.
func (r *Repo) Load(ctx context.Context) (engine.Snapshot, error) {
	var snap engine.Snapshot

	rows, err := r.pool.Query(ctx, `
SELECT id,name,phone,reserved_time,party_size,estimated_revenue,status,reminder_count,last_reminder_at,filled_from_waitlist,original_guest_name,created_at
FROM reservations
ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return snap, fmt.Errorf("load reservations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var res engine.Reservation
		var status string
		var lastReminder *time.Time
		if err := rows.Scan(
			&res.ID, &res.Name, &res.Phone, &res.Time, &res.PartySize, &res.EstimatedRevenue,
			&status, &res.ReminderCount, &lastReminder, &res.FilledFromWaitlist, &res.OriginalGuestName, &res.CreatedAt,
		); err != nil {
			return snap, fmt.Errorf("load reservations: %w", err)
		}
		res.Status = engine.ReservationStatus(status)
		if lastReminder != nil {
			res.LastReminderAt = *lastReminder
		}
		snap.Reservations = append(snap.Reservations, res)
	}
	if err := rows.Err(); err != nil {
		return snap, fmt.Errorf("load reservations: %w", err)
	}

	wrows, err := r.pool.Query(ctx, `
SELECT id,name,phone,party_size,status,last_contacted_at,created_at
FROM waitlist_entries
ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return snap, fmt.Errorf("load waitlist: %w", err)
	}
	defer wrows.Close()
	for wrows.Next() {
		var entry engine.WaitlistEntry
		var status string
		var lastContacted *time.Time
		if err := wrows.Scan(&entry.ID, &entry.Name, &entry.Phone, &entry.PartySize, &status, &lastContacted, &entry.CreatedAt); err != nil {
			return snap, fmt.Errorf("load waitlist: %w", err)
		}
		entry.Status = engine.WaitlistStatus(status)
		if lastContacted != nil {
			entry.LastContactedAt = *lastContacted
		}
		snap.Waitlist = append(snap.Waitlist, entry)
	}
	if err := wrows.Err(); err != nil {
		return snap, fmt.Errorf("load waitlist: %w", err)
	}

	return snap, nil
}

// Save replaces the persisted entity set with the snapshot, in one
// transaction.
func (r *Repo) Save(ctx context.Context, snap engine.Snapshot) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM reservations`); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM waitlist_entries`); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	for _, res := range snap.Reservations {
		if _, err := tx.Exec(ctx, `
INSERT INTO reservations(id,name,phone,reserved_time,party_size,estimated_revenue,status,reminder_count,last_reminder_at,filled_from_waitlist,original_guest_name,created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			res.ID, res.Name, res.Phone, res.Time, res.PartySize, res.EstimatedRevenue,
			string(res.Status), res.ReminderCount, nullableTime(res.LastReminderAt),
			res.FilledFromWaitlist, res.OriginalGuestName, res.CreatedAt,
		); err != nil {
			return fmt.Errorf("save reservation %s: %w", res.ID, err)
		}
	}
	for _, entry := range snap.Waitlist {
		if _, err := tx.Exec(ctx, `
INSERT INTO waitlist_entries(id,name,phone,party_size,status,last_contacted_at,created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			entry.ID, entry.Name, entry.Phone, entry.PartySize, string(entry.Status),
			nullableTime(entry.LastContactedAt), entry.CreatedAt,
		); err != nil {
			return fmt.Errorf("save waitlist entry %s: %w", entry.ID, err)
		}
	}

	return tx.Commit(ctx)
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
