package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/christopherjohns/chatterbox/internal/chat"
	"github.com/christopherjohns/chatterbox/internal/history"
	"github.com/christopherjohns/chatterbox/internal/room"
	"nhooyr.io/websocket"
)

// newChatTestServer wires the full chat stack behind a websocket handler.
func newChatTestServer(t *testing.T) (*httptest.Server, *room.Store) {
	t.Helper()
	conns := NewConnManager()
	rooms := room.NewStore(history.NewMemory(100))
	coord := chat.NewCoordinator(chat.NewRegistry(), rooms, NewEmitter(conns))
	handler := NewHandler(conns, coord, &websocket.AcceptOptions{InsecureSkipVerify: true})
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts, rooms
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	env, err := json.Marshal(Envelope{Type: event, Payload: data})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, env); err != nil {
		t.Fatalf("write %s: %v", event, err)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	return env
}

func expectEvent(t *testing.T, conn *websocket.Conn, event string) Envelope {
	t.Helper()
	env := readEvent(t, conn)
	if env.Type != event {
		t.Fatalf("expected event %q, got %q (payload %s)", event, env.Type, env.Payload)
	}
	return env
}

func authenticateAndJoin(t *testing.T, conn *websocket.Conn, username, nickname, roomName string) {
	t.Helper()
	sendEvent(t, conn, "authenticate", authenticatePayload{Username: username, Nickname: nickname})
	expectEvent(t, conn, chat.EventNicknameSet)
	sendEvent(t, conn, "joinRoom", joinRoomPayload{Room: roomName})
	expectEvent(t, conn, chat.EventJoinedRoom)
	expectEvent(t, conn, chat.EventHistory)
}

func TestHandlerAuthenticateAndJoin(t *testing.T) {
	ts, rooms := newChatTestServer(t)

	conn := dialWS(t, ts.URL)
	defer conn.Close(websocket.StatusNormalClosure, "")

	sendEvent(t, conn, "authenticate", authenticatePayload{Username: "alice", Nickname: "Alice"})
	env := expectEvent(t, conn, chat.EventNicknameSet)
	var nickname string
	if err := json.Unmarshal(env.Payload, &nickname); err != nil || nickname != "Alice" {
		t.Errorf("expected nickname 'Alice', got %s", env.Payload)
	}

	sendEvent(t, conn, "joinRoom", joinRoomPayload{Room: "General"})
	env = expectEvent(t, conn, chat.EventJoinedRoom)
	var joined string
	if err := json.Unmarshal(env.Payload, &joined); err != nil || joined != "general" {
		t.Errorf("expected joined room 'general', got %s", env.Payload)
	}

	env = expectEvent(t, conn, chat.EventHistory)
	var hist []string
	if err := json.Unmarshal(env.Payload, &hist); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	if len(hist) != 0 {
		t.Errorf("expected empty history, got %v", hist)
	}

	if rooms.MemberCount("general") != 1 {
		t.Errorf("expected 1 member in 'general', got %d", rooms.MemberCount("general"))
	}
}

func TestHandlerBroadcast(t *testing.T) {
	ts, _ := newChatTestServer(t)

	connA := dialWS(t, ts.URL)
	defer connA.Close(websocket.StatusNormalClosure, "")
	authenticateAndJoin(t, connA, "alice", "Alice", "general")

	connB := dialWS(t, ts.URL)
	defer connB.Close(websocket.StatusNormalClosure, "")
	authenticateAndJoin(t, connB, "bob", "Bobby", "general")

	sendEvent(t, connB, "sendMessage", sendMessagePayload{Text: "hi"})

	want := regexp.MustCompile(`^\[\d{2}:\d{2}:\d{2}\] Bobby: hi$`)
	for _, conn := range []*websocket.Conn{connA, connB} {
		env := expectEvent(t, conn, chat.EventReceiveMessage)
		var line string
		if err := json.Unmarshal(env.Payload, &line); err != nil {
			t.Fatalf("unmarshal message: %v", err)
		}
		if !want.MatchString(line) {
			t.Errorf("unexpected message line %q", line)
		}
	}
}

func TestHandlerDisconnectLeavesRoom(t *testing.T) {
	ts, rooms := newChatTestServer(t)

	connA := dialWS(t, ts.URL)
	defer connA.Close(websocket.StatusNormalClosure, "")
	authenticateAndJoin(t, connA, "alice", "Alice", "general")

	connB := dialWS(t, ts.URL)
	authenticateAndJoin(t, connB, "bob", "Bobby", "general")
	if rooms.MemberCount("general") != 2 {
		t.Fatalf("expected 2 members, got %d", rooms.MemberCount("general"))
	}

	connB.Close(websocket.StatusNormalClosure, "")

	deadline := time.Now().Add(2 * time.Second)
	for rooms.MemberCount("general") > 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if rooms.MemberCount("general") != 1 {
		t.Fatalf("expected 1 member after disconnect, got %d", rooms.MemberCount("general"))
	}
}

func TestHandlerJoinWithoutAuthenticate(t *testing.T) {
	ts, rooms := newChatTestServer(t)

	conn := dialWS(t, ts.URL)
	defer conn.Close(websocket.StatusNormalClosure, "")

	sendEvent(t, conn, "joinRoom", joinRoomPayload{Room: "x"})

	env := expectEvent(t, conn, chat.EventErrorMsg)
	var msg string
	if err := json.Unmarshal(env.Payload, &msg); err != nil || msg == "" {
		t.Errorf("expected an error message, got %s", env.Payload)
	}
	if rooms.Exists("x") {
		t.Error("expected room 'x' not to be created")
	}
}

func TestHandlerIgnoresMalformedFrames(t *testing.T) {
	ts, _ := newChatTestServer(t)

	conn := dialWS(t, ts.URL)
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Not JSON, then an unknown event type. Both are dropped silently.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, []byte("not json")); err != nil {
		t.Fatalf("write error: %v", err)
	}
	sendEvent(t, conn, "teleport", joinRoomPayload{Room: "general"})

	// The connection still works afterwards.
	sendEvent(t, conn, "authenticate", authenticatePayload{Username: "alice", Nickname: "Alice"})
	expectEvent(t, conn, chat.EventNicknameSet)
}
