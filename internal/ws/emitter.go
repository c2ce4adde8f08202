package ws

import (
	"encoding/json"
	"log"
)

// Emitter delivers chat events to clients through the connection manager,
// marshalling each event into an Envelope.
type Emitter struct {
	conns *ConnManager
}

// NewEmitter creates an Emitter over the given connection manager.
func NewEmitter(conns *ConnManager) *Emitter {
	return &Emitter{conns: conns}
}

// Emit queues an event for one connection. Delivery is best-effort: a
// closed or saturated connection drops the event.
func (e *Emitter) Emit(connID, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ws: failed to marshal %s payload: %v", event, err)
		return
	}
	env, err := json.Marshal(Envelope{Type: event, Payload: data})
	if err != nil {
		log.Printf("ws: failed to marshal %s envelope: %v", event, err)
		return
	}
	e.conns.Send(connID, env)
}
