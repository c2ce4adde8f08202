package history

import "sync"

// Store keeps an ordered, bounded list of rendered message lines per room.
type Store interface {
	Append(room, line string)
	List(room string) []string
	Len(room string) int
}

// Memory keeps room history in process memory. Each room retains at most
// limit lines; the oldest line is evicted first.
type Memory struct {
	mu    sync.RWMutex
	rooms map[string][]string
	limit int
}

// NewMemory creates an in-memory store retaining up to limit lines per room.
func NewMemory(limit int) *Memory {
	return &Memory{
		rooms: make(map[string][]string),
		limit: limit,
	}
}

// Append adds a line to the room's history, evicting the oldest line once
// the limit is exceeded.
func (m *Memory) Append(room, line string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lines := append(m.rooms[room], line)
	if len(lines) > m.limit {
		lines = lines[len(lines)-m.limit:]
	}
	m.rooms[room] = lines
}

// List returns a copy of the room's history, oldest first. Unknown rooms
// yield an empty slice.
func (m *Memory) List(room string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lines := m.rooms[room]
	out := make([]string, len(lines))
	copy(out, lines)
	return out
}

// Len returns the number of stored lines for a room.
func (m *Memory) Len(room string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms[room])
}
