package conversation

import (
	"sync"
	"testing"
	"time"
)

func TestManagerDoSerializesOneCustomer(t *testing.T) {
	m := NewManager(time.Hour)

	const turns = 100
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Do("+15550001111", func(s *Session) {
				// Unsynchronized counter: only safe if Do serializes.
				s.FeeCents++
			})
		}()
	}
	wg.Wait()

	m.Do("+15550001111", func(s *Session) {
		if s.FeeCents != turns {
			t.Fatalf("counter = %d, want %d", s.FeeCents, turns)
		}
	})
	if m.Len() != 1 {
		t.Fatalf("Len = %d, want 1", m.Len())
	}
}

func TestManagerFreshSessionIsIdle(t *testing.T) {
	m := NewManager(time.Hour)
	m.Do("+15550001111", func(s *Session) {
		if s.State != StateIdle {
			t.Fatalf("fresh session state = %v", s.State)
		}
		if s.Phone != "+15550001111" {
			t.Fatalf("fresh session phone = %q", s.Phone)
		}
	})
}

func TestManagerDrop(t *testing.T) {
	m := NewManager(time.Hour)
	m.Do("+15550001111", func(s *Session) { s.State = StateComplete })
	m.Drop("+15550001111")

	if m.Len() != 0 {
		t.Fatalf("Len after Drop = %d", m.Len())
	}
	m.Do("+15550001111", func(s *Session) {
		if s.State != StateIdle {
			t.Fatalf("session survived Drop, state = %v", s.State)
		}
	})
}

func TestManagerEvictIdle(t *testing.T) {
	m := NewManager(time.Minute)

	m.Do("+15550001111", func(s *Session) { s.UpdatedAt = time.Now().Add(-2 * time.Minute) })
	m.Do("+15550002222", func(s *Session) { s.UpdatedAt = time.Now() })

	if evicted := m.evictIdle(time.Now()); evicted != 1 {
		t.Fatalf("evicted = %d, want 1", evicted)
	}
	if m.Len() != 1 {
		t.Fatalf("Len = %d, want 1", m.Len())
	}
}

func TestManagerEvictSkipsBusySessions(t *testing.T) {
	m := NewManager(time.Minute)
	m.Do("+15550001111", func(s *Session) { s.UpdatedAt = time.Now().Add(-2 * time.Minute) })

	hold := make(chan struct{})
	done := make(chan struct{})
	go func() {
		m.Do("+15550001111", func(*Session) { <-hold })
		close(done)
	}()

	// Wait for the goroutine to be inside Do.
	time.Sleep(50 * time.Millisecond)
	if evicted := m.evictIdle(time.Now()); evicted != 0 {
		t.Fatalf("evicted a session that was mid-turn")
	}
	close(hold)
	<-done

	if evicted := m.evictIdle(time.Now()); evicted != 1 {
		t.Fatalf("idle session not evicted after turn finished")
	}
}
