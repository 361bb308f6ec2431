// Package session keeps per-session chat transcripts in a bounded, expiring
// LRU.
package session

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Turn struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// History is one session's transcript. Callers running a conversational turn
// hold Lock for its duration so turns on the same session never interleave.
type History struct {
	turnMu sync.Mutex

	mu    sync.RWMutex
	turns []Turn
}

func (h *History) Lock()   { h.turnMu.Lock() }
func (h *History) Unlock() { h.turnMu.Unlock() }

// Messages returns a copy of the transcript in order.
func (h *History) Messages() []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// AppendTurn records a completed question and answer pair.
func (h *History) AppendTurn(question, answer string) {
	now := time.Now()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns,
		Turn{Role: RoleUser, Content: question, At: now},
		Turn{Role: RoleAssistant, Content: answer, At: now},
	)
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

// Store maps session ids to transcripts. Least recently used sessions are
// evicted past maxSessions, and sessions idle longer than ttl expire.
type Store struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, *History]
}

func NewStore(maxSessions int, ttl time.Duration) *Store {
	if maxSessions < 0 {
		maxSessions = 0
	}
	return &Store{cache: expirable.NewLRU[string, *History](maxSessions, nil, ttl)}
}

// Get returns the transcript for id, creating an empty one on first use, and
// refreshes its idle timer.
func (s *Store) Get(id string) *History {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.cache.Get(id)
	if !ok {
		h = &History{}
	}
	s.cache.Add(id, h)
	return h
}

// Peek returns the transcript without creating or refreshing it.
func (s *Store) Peek(id string) (*History, bool) {
	return s.cache.Peek(id)
}

func (s *Store) Len() int {
	return s.cache.Len()
}
