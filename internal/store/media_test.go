package store

import (
	"errors"
	"testing"
	"time"
)

func TestMediaRepository_CreateGet(t *testing.T) {
	s := newTestStore(t)
	repo := s.Media()

	m := &Media{
		ID:       "media-1",
		Kind:     MediaPhoto,
		Path:     "/library/media-1.jpg",
		Position: "front",
		Size:     1234,
	}
	if err := repo.Create(m); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if m.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set after create")
	}

	got, err := repo.GetByID("media-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Kind != MediaPhoto || got.Path != m.Path || got.Size != 1234 || got.Position != "front" {
		t.Errorf("GetByID() = %+v", got)
	}
	if got.SessionID != "" {
		t.Errorf("SessionID = %q, want empty", got.SessionID)
	}
}

func TestMediaRepository_GetByID_NotFound(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Media().GetByID("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestMediaRepository_RejectsInvalidKind(t *testing.T) {
	s := newTestStore(t)

	err := s.Media().Create(&Media{ID: "x", Kind: "audio", Path: "/x", Position: "front"})
	if err == nil {
		t.Error("expected constraint error for unknown kind")
	}
}

func TestMediaRepository_List(t *testing.T) {
	s := newTestStore(t)
	repo := s.Media()

	base := time.Now().Add(-time.Hour)
	items := []*Media{
		{ID: "a", Kind: MediaPhoto, Path: "/a.jpg", Position: "front", CreatedAt: base},
		{ID: "b", Kind: MediaVideo, Path: "/b.mp4", Position: "back", CreatedAt: base.Add(time.Minute)},
		{ID: "c", Kind: MediaPhoto, Path: "/c.jpg", Position: "back", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, m := range items {
		if err := repo.Create(m); err != nil {
			t.Fatalf("Create(%s) error = %v", m.ID, err)
		}
	}

	tests := []struct {
		kind    MediaKind
		wantIDs []string
	}{
		{kind: "", wantIDs: []string{"c", "b", "a"}},
		{kind: MediaPhoto, wantIDs: []string{"c", "a"}},
		{kind: MediaVideo, wantIDs: []string{"b"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			list, err := repo.List(tt.kind)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(list) != len(tt.wantIDs) {
				t.Fatalf("List() returned %d items, want %d", len(list), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if list[i].ID != id {
					t.Errorf("List()[%d].ID = %q, want %q", i, list[i].ID, id)
				}
			}
		})
	}
}

func TestMediaRepository_Delete(t *testing.T) {
	s := newTestStore(t)
	repo := s.Media()

	if err := repo.Create(&Media{ID: "d", Kind: MediaVideo, Path: "/d.mp4", Position: "back"}); err != nil {
		t.Fatal(err)
	}
	if err := repo.Delete("d"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete("d"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestSessionRepository(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	sess := &Session{ID: "s1", Position: "back"}
	if err := repo.Create(sess); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByID("s1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.StoppedAt != nil {
		t.Error("new session should not be stopped")
	}

	if err := repo.Finish("s1", time.Now()); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	got, err = repo.GetByID("s1")
	if err != nil {
		t.Fatal(err)
	}
	if got.StoppedAt == nil {
		t.Error("finished session should have a stop time")
	}

	if err := repo.Finish("missing", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Finish(missing) error = %v, want ErrNotFound", err)
	}
	if err := repo.Create(&Session{ID: "s2", Position: "sideways"}); err == nil {
		t.Error("expected constraint error for unknown position")
	}
}

func TestMedia_SessionDeleteKeepsMedia(t *testing.T) {
	s := newTestStore(t)

	if err := s.Sessions().Create(&Session{ID: "s1", Position: "front"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Media().Create(&Media{ID: "m1", SessionID: "s1", Kind: MediaPhoto, Path: "/m1.jpg", Position: "front"}); err != nil {
		t.Fatal(err)
	}

	if _, err := s.DB().Exec(`DELETE FROM sessions WHERE id = ?`, "s1"); err != nil {
		t.Fatal(err)
	}

	m, err := s.Media().GetByID("m1")
	if err != nil {
		t.Fatalf("media should survive session deletion: %v", err)
	}
	if m.SessionID != "" {
		t.Errorf("SessionID = %q, want cleared", m.SessionID)
	}
}
