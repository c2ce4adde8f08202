// Package room tracks chat rooms: who is in each room and the room's
// bounded message history.
package room

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/christopherjohns/chatterbox/internal/history"
)

// Normalize canonicalizes a room name: trimmed and lower-cased.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Room holds the member set of one chat room. History lives in the
// history store, keyed by the room's normalized name.
type Room struct {
	Name    string
	members map[string]struct{}
}

// Store manages all rooms. Rooms are created lazily on first reference
// and never destroyed; an empty room simply keeps its history around.
type Store struct {
	mu      sync.RWMutex
	rooms   map[string]*Room
	history history.Store
}

// NewStore creates a Store that appends message history to h.
func NewStore(h history.Store) *Store {
	return &Store{
		rooms:   make(map[string]*Room),
		history: h,
	}
}

// GetOrCreate returns the room with the given name, creating it if needed.
func (s *Store) GetOrCreate(name string) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(Normalize(name))
}

func (s *Store) getOrCreateLocked(name string) *Room {
	r, ok := s.rooms[name]
	if !ok {
		r = &Room{
			Name:    name,
			members: make(map[string]struct{}),
		}
		s.rooms[name] = r
	}
	return r
}

// Exists reports whether a room has been created.
func (s *Store) Exists(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rooms[Normalize(name)]
	return ok
}

// Join adds a connection to the room's member set, creating the room if
// needed.
func (s *Store) Join(name, connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.getOrCreateLocked(Normalize(name))
	r.members[connID] = struct{}{}
}

// Leave removes a connection from the room's member set. It is a no-op if
// the room does not exist or the connection is not a member.
func (s *Store) Leave(name, connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[Normalize(name)]; ok {
		delete(r.members, connID)
	}
}

// Members returns the connection IDs currently in the room.
func (s *Store) Members(name string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[Normalize(name)]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	return ids
}

// MemberCount returns the number of connections in the room.
func (s *Store) MemberCount(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[Normalize(name)]
	if !ok {
		return 0
	}
	return len(r.members)
}

// AppendMessage renders a message line with the current wall-clock time and
// appends it to the room's history. The rendered line is returned for
// broadcast.
func (s *Store) AppendMessage(name, nickname, text string) string {
	line := fmt.Sprintf("[%s] %s: %s", time.Now().Format("15:04:05"), nickname, text)
	s.history.Append(Normalize(name), line)
	return line
}

// History returns the room's message lines, oldest first. Unknown rooms
// yield an empty slice.
func (s *Store) History(name string) []string {
	return s.history.List(Normalize(name))
}
