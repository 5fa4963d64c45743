// Package session keeps intent-agent conversations. The in-memory store lives here; SQL and
// Redis backed stores are in the storage package and share Trim.
package session

import (
	"container/list"
	"context"
	"sync"
	"time"

	"CurriculumSpider/internal/domain"
	"CurriculumSpider/internal/ports"
)

// Trim bounds a history to max messages. A leading system message is always kept and the most
// recent turns fill the remaining room.
func Trim(messages []domain.Message, max int) []domain.Message {
	if max <= 0 || len(messages) <= max {
		return messages
	}
	if messages[0].Role == domain.RoleSystem {
		if max == 1 {
			return messages[:1]
		}
		out := make([]domain.Message, 0, max)
		out = append(out, messages[0])
		return append(out, messages[len(messages)-(max-1):]...)
	}
	return append([]domain.Message(nil), messages[len(messages)-max:]...)
}

// Window returns the leading system message, if any, plus the last n other messages.
func Window(messages []domain.Message, n int) []domain.Message {
	var system []domain.Message
	rest := messages
	if len(messages) > 0 && messages[0].Role == domain.RoleSystem {
		system, rest = messages[:1], messages[1:]
	}
	if n >= 0 && len(rest) > n {
		rest = rest[len(rest)-n:]
	}
	out := make([]domain.Message, 0, len(system)+len(rest))
	out = append(out, system...)
	return append(out, rest...)
}

type entry struct {
	id       string
	messages []domain.Message
	touched  time.Time
}

// MemoryStore is a process-local store bounded by idle TTL, session count (least recently used
// sessions go first) and messages per session.
type MemoryStore struct {
	ttl         time.Duration
	maxSessions int
	maxMessages int
	now         func() time.Time

	mu    sync.Mutex
	order *list.List
	items map[string]*list.Element
}

var _ ports.SessionStore = (*MemoryStore)(nil)

// NewMemoryStore builds a MemoryStore. Non-positive limits disable the matching bound.
func NewMemoryStore(ttl time.Duration, maxSessions, maxMessages int) *MemoryStore {
	return &MemoryStore{
		ttl:         ttl,
		maxSessions: maxSessions,
		maxMessages: maxMessages,
		now:         time.Now,
		order:       list.New(),
		items:       make(map[string]*list.Element),
	}
}

// Get returns a copy of the history; unknown and expired sessions are empty.
func (s *MemoryStore) Get(_ context.Context, sessionID string) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[sessionID]
	if !ok {
		return nil, nil
	}
	e := el.Value.(*entry)
	now := s.now()
	if s.expired(e, now) {
		s.remove(el)
		return nil, nil
	}
	e.touched = now
	s.order.MoveToFront(el)
	return append([]domain.Message(nil), e.messages...), nil
}

// Append adds messages to the session, creating it when needed.
func (s *MemoryStore) Append(_ context.Context, sessionID string, messages ...domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	el, ok := s.items[sessionID]
	if ok && s.expired(el.Value.(*entry), now) {
		s.remove(el)
		ok = false
	}
	if !ok {
		for s.maxSessions > 0 && s.order.Len() >= s.maxSessions {
			s.remove(s.order.Back())
		}
		el = s.order.PushFront(&entry{id: sessionID})
		s.items[sessionID] = el
	}

	e := el.Value.(*entry)
	e.messages = Trim(append(e.messages, messages...), s.maxMessages)
	e.touched = now
	s.order.MoveToFront(el)
	return nil
}

// Evict drops sessions idle for longer than the TTL.
func (s *MemoryStore) Evict(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for el := s.order.Back(); el != nil; {
		prev := el.Prev()
		if s.expired(el.Value.(*entry), now) {
			s.remove(el)
			removed++
		}
		el = prev
	}
	return removed, nil
}

// Len reports the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

func (s *MemoryStore) expired(e *entry, now time.Time) bool {
	return s.ttl > 0 && now.Sub(e.touched) > s.ttl
}

func (s *MemoryStore) remove(el *list.Element) {
	s.order.Remove(el)
	delete(s.items, el.Value.(*entry).id)
}
