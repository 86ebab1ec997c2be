package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// DefaultEventLimit caps List when no limit is given.
const DefaultEventLimit = 100

// Event is one emitted gesture line.
type Event struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Index      int       `json:"index"`
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	EmittedAt  time.Time `json:"emitted_at"`
}

// EventRepository stores emitted gesture events.
type EventRepository struct {
	db *sql.DB
}

// Events returns the event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// Create inserts e, assigning an ID if it has none.
func (r *EventRepository) Create(e *Event) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.EmittedAt.IsZero() {
		e.EmittedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO gesture_events (id, session_id, gesture_index, label, confidence, emitted_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, e.Index, e.Label, e.Confidence, e.EmittedAt,
	)
	return err
}

// CreateBatch inserts events in one transaction.
func (r *EventRepository) CreateBatch(events []*Event) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO gesture_events (id, session_id, gesture_index, label, confidence, emitted_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, e := range events {
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if e.EmittedAt.IsZero() {
			e.EmittedAt = now
		}
		if _, err := stmt.Exec(e.ID, e.SessionID, e.Index, e.Label, e.Confidence, e.EmittedAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// List returns the most recent events, newest first. A limit <= 0 uses
// DefaultEventLimit.
func (r *EventRepository) List(limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = DefaultEventLimit
	}
	return r.query(
		`SELECT id, session_id, gesture_index, label, confidence, emitted_at
		 FROM gesture_events ORDER BY emitted_at DESC, gesture_index DESC LIMIT ?`,
		limit,
	)
}

// ListBySession returns a session's events in emission order.
func (r *EventRepository) ListBySession(sessionID string) ([]*Event, error) {
	return r.query(
		`SELECT id, session_id, gesture_index, label, confidence, emitted_at
		 FROM gesture_events WHERE session_id = ? ORDER BY emitted_at, gesture_index`,
		sessionID,
	)
}

// DeleteAll removes every event and returns how many were removed.
func (r *EventRepository) DeleteAll() (int64, error) {
	result, err := r.db.Exec(`DELETE FROM gesture_events`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *EventRepository) query(q string, args ...any) ([]*Event, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Index, &e.Label, &e.Confidence, &e.EmittedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
