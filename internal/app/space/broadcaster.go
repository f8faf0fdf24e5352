/*
Package space contains the core of the virtual space server.

This file defines the Broadcast Emitter: it maps sessions to their connection sinks,
tracks which sessions subscribe to which room, and delivers encoded events to a room's
current subscribers only.
*/
package space

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"hzspace/internal/pkg/logx"
	"hzspace/internal/pkg/metrics"
)

// Emitter delivers room state to the sessions subscribed to a room.
type Emitter interface {
	Subscribe(roomID, sessionID string)
	Unsubscribe(roomID, sessionID string)
	DropScope(roomID string)
	Emit(roomID string, evt Outbound)
	EmitExcept(roomID, exceptSessionID string, evt Outbound)
	EmitTo(sessionID string, evt Outbound)
}

// Broadcaster is the Emitter used by the hub. It is not safe for concurrent use.
type Broadcaster struct {
	sinks  map[string]Sink
	scopes map[string]map[string]struct{}

	// lagging collects sessions whose sink refused a frame since the last TakeLagging.
	lagging    []string
	laggingSet map[string]struct{}

	metrics *metrics.Recorder
	logger  zerolog.Logger
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster(rec *metrics.Recorder) *Broadcaster {
	return &Broadcaster{
		sinks:      make(map[string]Sink),
		scopes:     make(map[string]map[string]struct{}),
		laggingSet: make(map[string]struct{}),
		metrics:    rec,
		logger:     logx.Component("Broadcaster"),
	}
}

// Attach registers the sink of a newly connected session.
func (b *Broadcaster) Attach(sessionID string, sink Sink) {
	b.sinks[sessionID] = sink
}

// Detach forgets the session's sink and closes it.
func (b *Broadcaster) Detach(sessionID string) {
	sink, ok := b.sinks[sessionID]
	if !ok {
		return
	}
	delete(b.sinks, sessionID)
	sink.Close()
}

// DetachAll closes every attached sink and forgets all subscriptions.
func (b *Broadcaster) DetachAll() {
	for sessionID := range b.sinks {
		b.Detach(sessionID)
	}
	clear(b.scopes)
}

// sessions returns the number of attached sinks.
func (b *Broadcaster) sessions() int {
	return len(b.sinks)
}

// Subscribe adds the session to the room's broadcast scope.
func (b *Broadcaster) Subscribe(roomID, sessionID string) {
	scope, ok := b.scopes[roomID]
	if !ok {
		scope = make(map[string]struct{})
		b.scopes[roomID] = scope
	}
	scope[sessionID] = struct{}{}
}

// Unsubscribe removes the session from the room's broadcast scope.
func (b *Broadcaster) Unsubscribe(roomID, sessionID string) {
	scope, ok := b.scopes[roomID]
	if !ok {
		return
	}
	delete(scope, sessionID)
	if len(scope) == 0 {
		delete(b.scopes, roomID)
	}
}

// DropScope forgets every subscription of a room.
func (b *Broadcaster) DropScope(roomID string) {
	delete(b.scopes, roomID)
}

// subscribers returns the number of sessions subscribed to a room.
func (b *Broadcaster) subscribers(roomID string) int {
	return len(b.scopes[roomID])
}

// Emit delivers evt to every subscriber of roomID, the originator included.
func (b *Broadcaster) Emit(roomID string, evt Outbound) {
	b.EmitExcept(roomID, "", evt)
}

// EmitExcept delivers evt to every subscriber of roomID but exceptSessionID.
func (b *Broadcaster) EmitExcept(roomID, exceptSessionID string, evt Outbound) {
	scope := b.scopes[roomID]
	if len(scope) == 0 {
		return
	}

	raw, ok := b.encode(evt)
	if !ok {
		return
	}

	b.metrics.Broadcast(string(evt.Event))

	for sessionID := range scope {
		if sessionID == exceptSessionID {
			continue
		}
		b.deliver(sessionID, raw)
	}
}

// EmitTo delivers evt to a single session, subscribed or not.
func (b *Broadcaster) EmitTo(sessionID string, evt Outbound) {
	raw, ok := b.encode(evt)
	if !ok {
		return
	}
	b.deliver(sessionID, raw)
}

// TakeLagging returns and clears the sessions whose queue overflowed.
func (b *Broadcaster) TakeLagging() []string {
	if len(b.lagging) == 0 {
		return nil
	}
	lagging := b.lagging
	b.lagging = nil
	clear(b.laggingSet)
	return lagging
}

func (b *Broadcaster) encode(evt Outbound) ([]byte, bool) {
	raw, err := json.Marshal(evt)
	if err != nil {
		b.logger.Error().Err(err).Str("event", string(evt.Event)).Msg("Failed to encode outbound event.")
		return nil, false
	}
	return raw, true
}

func (b *Broadcaster) deliver(sessionID string, raw []byte) {
	sink, ok := b.sinks[sessionID]
	if !ok {
		b.logger.Debug().Str("session_id", sessionID).Msg("No sink attached for subscriber, frame skipped.")
		return
	}

	if sink.Deliver(raw) {
		return
	}

	b.metrics.FrameDropped()
	if _, marked := b.laggingSet[sessionID]; marked {
		return
	}
	b.laggingSet[sessionID] = struct{}{}
	b.lagging = append(b.lagging, sessionID)

	b.logger.Warn().Str("session_id", sessionID).Msg("Session send queue full, scheduling eviction.")
}
