package chat

import "sync"

// Sessions tracks which persona each conversation key has selected. A
// key is whatever the front-end uses to identify a conversation (user
// id, chat id). Unknown keys resolve to the fallback persona.
type Sessions struct {
	mu       sync.Mutex
	selected map[string]string
	fallback string
}

func NewSessions(fallback string) *Sessions {
	if fallback == "" {
		fallback = "default"
	}
	return &Sessions{selected: make(map[string]string), fallback: fallback}
}

// Select records a persona choice for the key.
func (s *Sessions) Select(key, personaID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected[key] = personaID
}

// Current returns the selected persona for the key, or the fallback.
func (s *Sessions) Current(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.selected[key]; ok {
		return id
	}
	return s.fallback
}

// Clear drops the key's selection, reverting it to the fallback.
func (s *Sessions) Clear(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.selected, key)
}
