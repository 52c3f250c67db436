package conversation

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// shardCount spreads the session map so unrelated customers never contend
// on one lock. Power of two for cheap modulo.
const shardCount = 16

// Manager owns the session map. Sessions are sharded by phone number; each
// session additionally carries its own mutex so that messages from one
// customer are processed strictly in arrival order while unrelated sessions
// proceed fully in parallel.
type Manager struct {
	ttl    time.Duration
	shards [shardCount]shard
}

type shard struct {
	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	mu      sync.Mutex
	session *Session
}

// NewManager builds a session manager evicting sessions idle longer than ttl.
func NewManager(ttl time.Duration) *Manager {
	m := &Manager{ttl: ttl}
	for i := range m.shards {
		m.shards[i].sessions = make(map[string]*entry)
	}
	return m
}

// Do runs fn with exclusive access to the customer's session, creating a
// fresh Idle session on first contact or after eviction. The per-entry lock
// is held for the whole call, which is what serializes a customer's turns.
func (m *Manager) Do(phone string, fn func(*Session)) {
	e := m.entryFor(phone)
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.session)
}

// Drop removes a customer's session immediately (STOP handling).
func (m *Manager) Drop(phone string) {
	sh := m.shardFor(phone)
	sh.mu.Lock()
	delete(sh.sessions, phone)
	sh.mu.Unlock()
}

// Len reports the number of live sessions across all shards.
func (m *Manager) Len() int {
	n := 0
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.Lock()
		n += len(sh.sessions)
		sh.mu.Unlock()
	}
	return n
}

// StartJanitor runs TTL eviction every interval until ctx is cancelled.
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if m.ttl <= 0 {
		return
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				if evicted := m.evictIdle(now); evicted > 0 {
					log.Debug().Int("sessions", evicted).Msg("evicted idle sessions")
				}
			}
		}
	}()
}

// evictIdle drops sessions whose last activity predates now-ttl.
func (m *Manager) evictIdle(now time.Time) int {
	cutoff := now.Add(-m.ttl)
	evicted := 0
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.Lock()
		for phone, e := range sh.sessions {
			// TryLock: skip sessions mid-turn, next sweep catches them.
			if !e.mu.TryLock() {
				continue
			}
			if e.session.UpdatedAt.Before(cutoff) {
				delete(sh.sessions, phone)
				evicted++
			}
			e.mu.Unlock()
		}
		sh.mu.Unlock()
	}
	return evicted
}

func (m *Manager) entryFor(phone string) *entry {
	sh := m.shardFor(phone)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.sessions[phone]
	if !ok {
		now := time.Now()
		e = &entry{session: &Session{Phone: phone, State: StateIdle, CreatedAt: now, UpdatedAt: now}}
		sh.sessions[phone] = e
	}
	return e
}

func (m *Manager) shardFor(phone string) *shard {
	h := fnv.New32a()
	h.Write([]byte(phone))
	return &m.shards[h.Sum32()%shardCount]
}
