// Package ws is the websocket transport: it upgrades connections, assigns
// connection IDs, decodes inbound event envelopes and hands them to the
// chat layer.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
)

// Coordinator is the subset of the chat layer the transport drives.
type Coordinator interface {
	Authenticate(connID, username, nickname string)
	JoinRoom(connID, roomName string)
	SendMessage(connID, text string)
	Disconnect(connID string)
}

// Envelope is the JSON frame exchanged over the websocket. Type names the
// event; Payload carries the event's argument.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound event names.
const (
	eventAuthenticate = "authenticate"
	eventJoinRoom     = "joinRoom"
	eventSendMessage  = "sendMessage"
)

type authenticatePayload struct {
	Username string `json:"username"`
	Nickname string `json:"nickname"`
}

type joinRoomPayload struct {
	Room string `json:"room"`
}

type sendMessagePayload struct {
	Text string `json:"text"`
}

// Handler handles websocket upgrade requests and runs per-connection read
// loops.
type Handler struct {
	conns  *ConnManager
	coord  Coordinator
	accept *websocket.AcceptOptions
}

// NewHandler creates a websocket Handler. accept may be nil for the
// library defaults (same-origin only).
func NewHandler(conns *ConnManager, coord Coordinator, accept *websocket.AcceptOptions) *Handler {
	return &Handler{
		conns:  conns,
		coord:  coord,
		accept: accept,
	}
}

// ServeHTTP upgrades the connection, assigns it an ID and pumps events
// into the coordinator until the client goes away.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, h.accept)
	if err != nil {
		log.Printf("ws: accept error: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	id := uuid.NewString()
	connCtx := h.conns.Add(id, conn)
	defer func() {
		h.conns.Remove(id)
		h.coord.Disconnect(id)
	}()

	h.readLoop(r.Context(), connCtx, id, conn)
}

// readLoop decodes envelopes from the client until the connection closes
// or the connection manager cancels connCtx. Unknown or malformed frames
// are ignored; protocol-level errors reach the client as errorMsg events
// from the coordinator.
func (h *Handler) readLoop(ctx context.Context, connCtx context.Context, id string, conn *websocket.Conn) {
	for {
		select {
		case <-connCtx.Done():
			return
		default:
		}

		_, data, err := conn.Read(ctx)
		if err != nil {
			// Normal close or context cancelled.
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}

		switch env.Type {
		case eventAuthenticate:
			var p authenticatePayload
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				continue
			}
			h.coord.Authenticate(id, p.Username, p.Nickname)
		case eventJoinRoom:
			var p joinRoomPayload
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				continue
			}
			h.coord.JoinRoom(id, p.Room)
		case eventSendMessage:
			var p sendMessagePayload
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				continue
			}
			h.coord.SendMessage(id, p.Text)
		}
	}
}
