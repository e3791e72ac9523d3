package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Capture sessions, one row per start/stop of the camera
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			position TEXT NOT NULL CHECK(position IN ('front', 'back')),
			started_at DATETIME NOT NULL,
			stopped_at DATETIME
		)`,

		// Media files captured during a session
		`CREATE TABLE IF NOT EXISTS media (
			id TEXT PRIMARY KEY,
			session_id TEXT REFERENCES sessions(id) ON DELETE SET NULL,
			kind TEXT NOT NULL CHECK(kind IN ('photo', 'video')),
			path TEXT NOT NULL UNIQUE,
			position TEXT NOT NULL,
			size INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_media_created_at ON media(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_media_session_id ON media(session_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
