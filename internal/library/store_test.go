package library

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGet(t *testing.T) {
	s := openTestStore(t)

	c := &Clip{Name: "airhorn", FilePath: "/clips/airhorn.wav", Tags: "meme,loud", SampleRate: 48000, Channels: 2, BitsPerSample: 16, DefaultVolume: 0.8}
	if err := s.Create(c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.ID == 0 {
		t.Fatalf("expected non-zero ID after Create")
	}

	got, err := s.Get(c.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != c.Name || got.FilePath != c.FilePath || got.Tags != c.Tags {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, c)
	}
}

func TestGetByName(t *testing.T) {
	s := openTestStore(t)
	c := &Clip{Name: "drumroll", FilePath: "/clips/drumroll.wav", SampleRate: 44100, Channels: 1, BitsPerSample: 16}
	if err := s.Create(c); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.GetByName("drumroll")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if got.ID != c.ID {
		t.Fatalf("want ID %d got %d", c.ID, got.ID)
	}

	if _, err := s.GetByName("nonexistent"); err == nil {
		t.Fatalf("expected error for missing clip")
	}
}

func TestList(t *testing.T) {
	s := openTestStore(t)
	names := []string{"zebra", "apple", "mango"}
	for _, n := range names {
		if err := s.Create(&Clip{Name: n, FilePath: "/clips/" + n + ".wav", SampleRate: 48000, Channels: 1, BitsPerSample: 16}); err != nil {
			t.Fatalf("Create(%s): %v", n, err)
		}
	}

	clips, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(clips) != len(names) {
		t.Fatalf("want %d clips, got %d", len(names), len(clips))
	}
	// ORDER BY name ascending: apple, mango, zebra.
	want := []string{"apple", "mango", "zebra"}
	for i, w := range want {
		if clips[i].Name != w {
			t.Fatalf("position %d: want %q got %q", i, w, clips[i].Name)
		}
	}
}

func TestUpdateTagsAndDelete(t *testing.T) {
	s := openTestStore(t)
	c := &Clip{Name: "klaxon", FilePath: "/clips/klaxon.wav", SampleRate: 48000, Channels: 1, BitsPerSample: 16}
	if err := s.Create(c); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := s.UpdateTags(c.ID, "alarm,urgent"); err != nil {
		t.Fatalf("UpdateTags: %v", err)
	}
	got, err := s.Get(c.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Tags != "alarm,urgent" {
		t.Fatalf("want updated tags, got %q", got.Tags)
	}

	if err := s.Delete(c.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(c.ID); err == nil {
		t.Fatalf("expected error after Delete")
	}
	if err := s.Delete(c.ID); err == nil {
		t.Fatalf("expected error deleting an already-deleted clip")
	}
}
