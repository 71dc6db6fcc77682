package session

import (
	"errors"
	"testing"
	"time"
)

func TestManager_CreateGetDelete(t *testing.T) {
	m := NewManager(styledEditor(t), ManagerOptions{})
	defer m.Shutdown()

	c := m.Create()
	got, err := m.Get(c.ID())
	if err != nil || got != c {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if m.Count() != 1 {
		t.Errorf("Count = %d", m.Count())
	}
	if !m.Delete(c.ID()) {
		t.Error("Delete should report true for a live session")
	}
	if _, err := m.Get(c.ID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
	if m.Delete(c.ID()) {
		t.Error("Delete of unknown id should report false")
	}
}

func TestManager_EvictsLeastRecentlyUsed(t *testing.T) {
	m := NewManager(styledEditor(t), ManagerOptions{MaxSessions: 2, Session: Options{Now: clock()}})
	defer m.Shutdown()

	first := m.Create()
	second := m.Create()
	first.Reset() // touch first so second becomes the oldest

	third := m.Create()
	if m.Count() != 2 {
		t.Fatalf("Count = %d, want 2", m.Count())
	}
	if _, err := m.Get(second.ID()); !errors.Is(err, ErrNotFound) {
		t.Error("least recently used session should have been evicted")
	}
	for _, c := range []*Controller{first, third} {
		if _, err := m.Get(c.ID()); err != nil {
			t.Errorf("session %s missing", c.ID())
		}
	}
}

func TestManager_CleanupIdle(t *testing.T) {
	m := NewManager(styledEditor(t), ManagerOptions{IdleTimeout: time.Minute})
	defer m.Shutdown()

	c := m.Create()
	if n := m.cleanupIdle(time.Now()); n != 0 {
		t.Errorf("fresh session removed: %d", n)
	}
	if n := m.cleanupIdle(c.LastActive().Add(2 * time.Minute)); n != 1 {
		t.Errorf("removed = %d, want 1", n)
	}
	if m.Count() != 0 {
		t.Errorf("Count = %d after cleanup", m.Count())
	}
}
