package matrix

import (
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultMaxSessions = 256
	defaultSessionTTL  = 30 * time.Minute
)

// Sessions keeps the editors of open operator sessions. Idle editors expire
// and the least recently used are evicted once the limit is reached; unsaved
// work in an evicted editor is lost.
type Sessions struct {
	editors *lru.LRU[string, *Editor]
	factory func() *Editor
}

// NewSessions builds a registry creating editors with factory.
func NewSessions(maxSessions int, ttl time.Duration, factory func() *Editor) *Sessions {
	if maxSessions <= 0 {
		maxSessions = defaultMaxSessions
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &Sessions{
		editors: lru.NewLRU[string, *Editor](maxSessions, nil, ttl),
		factory: factory,
	}
}

// Create registers a fresh editor and returns its ID.
func (s *Sessions) Create() (string, *Editor) {
	id := uuid.NewString()
	editor := s.factory()
	s.editors.Add(id, editor)
	return id, editor
}

// Get returns the editor of id and restarts its idle timer.
func (s *Sessions) Get(id string) (*Editor, bool) {
	editor, ok := s.editors.Get(id)
	if ok {
		s.editors.Add(id, editor)
	}
	return editor, ok
}

// Delete drops the editor of id.
func (s *Sessions) Delete(id string) bool {
	return s.editors.Remove(id)
}

// Len returns the number of live editors.
func (s *Sessions) Len() int {
	return s.editors.Len()
}
