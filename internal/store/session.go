package store

import (
	"database/sql"
	"errors"
	"time"
)

// Session is one run of the capture pipeline.
type Session struct {
	ID        string
	Position  string
	StartedAt time.Time
	StoppedAt *time.Time
}

// SessionRepository provides CRUD operations for sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts a new session.
func (r *SessionRepository) Create(sess *Session) error {
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}
	_, err := r.db.Exec(
		`INSERT INTO sessions (id, position, started_at) VALUES (?, ?, ?)`,
		sess.ID, sess.Position, sess.StartedAt,
	)
	return err
}

// Finish records the stop time of a session.
func (r *SessionRepository) Finish(id string, at time.Time) error {
	result, err := r.db.Exec(`UPDATE sessions SET stopped_at = ? WHERE id = ?`, at, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	sess := &Session{}
	var stopped sql.NullTime

	err := r.db.QueryRow(
		`SELECT id, position, started_at, stopped_at FROM sessions WHERE id = ?`,
		id,
	).Scan(&sess.ID, &sess.Position, &sess.StartedAt, &stopped)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if stopped.Valid {
		sess.StoppedAt = &stopped.Time
	}
	return sess, nil
}
