package store

import (
	"database/sql"
	"errors"
	"time"
)

// MediaKind distinguishes stills from recordings.
type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
)

// Media is a captured file in the library.
type Media struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id,omitempty"`
	Kind      MediaKind `json:"kind"`
	Path      string    `json:"path"`
	Position  string    `json:"position"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// MediaRepository provides CRUD operations for media.
type MediaRepository struct {
	db *sql.DB
}

// Media returns the media repository for this store.
func (s *Store) Media() *MediaRepository {
	return &MediaRepository{db: s.db}
}

// Create inserts a media row.
func (r *MediaRepository) Create(m *Media) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	var session any
	if m.SessionID != "" {
		session = m.SessionID
	}

	_, err := r.db.Exec(
		`INSERT INTO media (id, session_id, kind, path, position, size, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, session, string(m.Kind), m.Path, m.Position, m.Size, m.CreatedAt,
	)
	return err
}

// GetByID retrieves a media row by its ID.
func (r *MediaRepository) GetByID(id string) (*Media, error) {
	row := r.db.QueryRow(
		`SELECT id, session_id, kind, path, position, size, created_at
		 FROM media WHERE id = ?`,
		id,
	)
	m, err := scanMedia(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

// List retrieves media, newest first. An empty kind lists everything.
func (r *MediaRepository) List(kind MediaKind) ([]*Media, error) {
	query := `SELECT id, session_id, kind, path, position, size, created_at FROM media`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var media []*Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		media = append(media, m)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return media, nil
}

// Delete removes a media row.
func (r *MediaRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM media WHERE id = ?`, id)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanMedia(s scanner) (*Media, error) {
	m := &Media{}
	var kind string
	var session sql.NullString

	if err := s.Scan(&m.ID, &session, &kind, &m.Path, &m.Position, &m.Size, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Kind = MediaKind(kind)
	m.SessionID = session.String
	return m, nil
}
