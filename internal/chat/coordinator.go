package chat

import (
	"strings"
	"sync"

	"github.com/christopherjohns/chatterbox/internal/room"
)

// Event names sent to clients.
const (
	EventNicknameSet    = "nicknameSet"
	EventErrorMsg       = "errorMsg"
	EventJoinedRoom     = "joinedRoom"
	EventHistory        = "history"
	EventReceiveMessage = "receiveMessage"
)

// Emitter delivers one event to one connection. The transport implements
// this; broadcasting is done by emitting to each room member.
type Emitter interface {
	Emit(connID, event string, payload any)
}

// Coordinator handles connection lifecycle events. A single mutex
// serializes all handlers so the registry and the room store are always
// mutated as one step: a session's CurrentRoom never points at a room
// whose member set does not contain the connection.
type Coordinator struct {
	mu       sync.Mutex
	registry *Registry
	rooms    *room.Store
	emitter  Emitter
}

// NewCoordinator creates a Coordinator over the given registry and rooms,
// emitting events through e.
func NewCoordinator(registry *Registry, rooms *room.Store, e Emitter) *Coordinator {
	return &Coordinator{
		registry: registry,
		rooms:    rooms,
		emitter:  e,
	}
}

// Authenticate registers the identity for a connection and confirms the
// accepted nickname. Blank fields produce an error event and leave any
// existing session untouched.
func (c *Coordinator) Authenticate(connID, username, nickname string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if username == "" || nickname == "" {
		c.emitter.Emit(connID, EventErrorMsg, "Username and nickname required.")
		return
	}
	// Re-authenticating clears room state, so membership must go with it.
	if prev := c.registry.Get(connID); prev != nil && prev.CurrentRoom != "" {
		c.rooms.Leave(prev.CurrentRoom, connID)
	}
	c.registry.Authenticate(connID, username, nickname)
	c.emitter.Emit(connID, EventNicknameSet, nickname)
}

// JoinRoom moves the connection into the named room, leaving its previous
// room if it had one. The joining connection receives the room name and
// the room's current history; nobody else is notified.
func (c *Coordinator) JoinRoom(connID, roomName string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess := c.registry.Get(connID)
	if sess == nil {
		c.emitter.Emit(connID, EventErrorMsg, "You must authenticate first.")
		return
	}
	name := room.Normalize(roomName)
	if name == "" {
		c.emitter.Emit(connID, EventErrorMsg, "Room name required.")
		return
	}

	if sess.CurrentRoom != "" {
		c.rooms.Leave(sess.CurrentRoom, connID)
	}
	c.rooms.Join(name, connID)
	sess.CurrentRoom = name

	c.emitter.Emit(connID, EventJoinedRoom, name)
	c.emitter.Emit(connID, EventHistory, c.rooms.History(name))
}

// SendMessage appends the message to the current room's history and
// broadcasts the rendered line to every room member, sender included.
// Blank messages are dropped without an error.
func (c *Coordinator) SendMessage(connID, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess := c.registry.Get(connID)
	if sess == nil {
		c.emitter.Emit(connID, EventErrorMsg, "You must authenticate first.")
		return
	}
	if sess.CurrentRoom == "" {
		c.emitter.Emit(connID, EventErrorMsg, "Join a room first.")
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	line := c.rooms.AppendMessage(sess.CurrentRoom, sess.Nickname, text)
	for _, member := range c.rooms.Members(sess.CurrentRoom) {
		c.emitter.Emit(member, EventReceiveMessage, line)
	}
}

// Disconnect removes the connection from its room (if any) and drops its
// session. Safe to call for connections that never authenticated.
func (c *Coordinator) Disconnect(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess := c.registry.Get(connID)
	if sess == nil {
		return
	}
	if sess.CurrentRoom != "" {
		c.rooms.Leave(sess.CurrentRoom, connID)
	}
	c.registry.Remove(connID)
}
