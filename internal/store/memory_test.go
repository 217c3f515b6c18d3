package store

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func TestMemoryStorePutGet(t *testing.T) {
	m := NewMemoryStore(0, nil, nil)
	m.Put(&Session{ID: "s1"})

	got, ok := m.Get("s1")
	if !ok || got.ID != "s1" {
		t.Fatalf("expected stored session, got %v %v", got, ok)
	}
	if _, ok := m.Get("missing"); ok {
		t.Fatalf("expected miss for unknown id")
	}
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	mock := clock.NewMock()
	evicted := make([]string, 0)
	m := NewMemoryStore(time.Minute, mock, func(s *Session) {
		evicted = append(evicted, s.ID)
	})

	m.Put(&Session{ID: "s1"})
	mock.Add(30 * time.Second)
	if _, ok := m.Get("s1"); !ok {
		t.Fatalf("session expired early")
	}

	// The Get refreshed the TTL; only after a full idle minute is the
	// session dropped.
	mock.Add(61 * time.Second)
	if _, ok := m.Get("s1"); ok {
		t.Fatalf("expected expired session")
	}
	if len(evicted) != 1 || evicted[0] != "s1" {
		t.Fatalf("evict hook not invoked: %v", evicted)
	}
}

func TestMemoryStoreSweep(t *testing.T) {
	mock := clock.NewMock()
	m := NewMemoryStore(time.Minute, mock, nil)

	m.Put(&Session{ID: "a"})
	m.Put(&Session{ID: "b"})
	mock.Add(2 * time.Minute)
	m.Put(&Session{ID: "c"})

	if removed := m.Sweep(); removed != 2 {
		t.Fatalf("expected 2 swept sessions, got %d", removed)
	}
	if m.Len() != 1 {
		t.Fatalf("expected 1 surviving session, got %d", m.Len())
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	var evicted bool
	m := NewMemoryStore(0, nil, func(*Session) { evicted = true })

	m.Put(&Session{ID: "s1"})
	if !m.Delete("s1") {
		t.Fatalf("expected delete to succeed")
	}
	if !evicted {
		t.Fatalf("evict hook not invoked on delete")
	}
	if m.Delete("s1") {
		t.Fatalf("second delete should report false")
	}
}
