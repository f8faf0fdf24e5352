/*
Package space contains the core of the virtual space server.

This file defines the Router, which tracks the lifecycle of every attached session
(Connected, InRoom, Left) and maps each inbound message to the registry and room
operations it stands for, followed by the broadcast scoped to the affected room.
*/
package space

import (
	"github.com/rs/zerolog"

	"hzspace/internal/app/user"
	"hzspace/internal/pkg/logx"
	"hzspace/internal/pkg/metrics"
)

// SessionState is the lifecycle state of a session.
type SessionState int

const (
	// Left is the state of unknown and terminated sessions. It is terminal.
	Left SessionState = iota

	// Connected sessions are attached but not in any room.
	Connected

	// InRoom sessions are members of exactly one room.
	InRoom
)

func (s SessionState) String() string {
	switch s {
	case Connected:
		return "connected"
	case InRoom:
		return "in_room"
	default:
		return "left"
	}
}

// Router dispatches session messages. Like the Registry, it is driven by the hub event loop only.
type Router struct {
	registry *Registry
	emitter  Emitter

	// sessions holds every attached session; a session absent from it is Left.
	sessions map[string]struct{}

	metrics *metrics.Recorder
	logger  zerolog.Logger
}

// NewRouter creates a Router over registry, broadcasting through emitter.
func NewRouter(registry *Registry, emitter Emitter, rec *metrics.Recorder) *Router {
	return &Router{
		registry: registry,
		emitter:  emitter,
		sessions: make(map[string]struct{}),
		metrics:  rec,
		logger:   logx.Component("Router"),
	}
}

// Connect moves a new session into the Connected state.
// It returns false if the session id is already attached.
func (rt *Router) Connect(sessionID string) bool {
	if _, exists := rt.sessions[sessionID]; exists {
		return false
	}
	rt.sessions[sessionID] = struct{}{}
	return true
}

// Sessions returns the number of attached sessions.
func (rt *Router) Sessions() int {
	return len(rt.sessions)
}

// State returns the lifecycle state of a session.
func (rt *Router) State(sessionID string) SessionState {
	if _, ok := rt.sessions[sessionID]; !ok {
		return Left
	}
	if _, _, joined := rt.registry.FindOwningRoom(sessionID); joined {
		return InRoom
	}
	return Connected
}

// Dispatch handles one message of sessionID to completion.
// Messages from sessions that are not attached are dropped.
func (rt *Router) Dispatch(sessionID string, msg Inbound) {
	if _, ok := rt.sessions[sessionID]; !ok {
		rt.logger.Debug().
			Str("session_id", sessionID).
			Str("event", string(msg.Name())).
			Msg("Event for unknown session ignored.")
		return
	}

	rt.metrics.InboundEvent(string(msg.Name()))

	switch m := msg.(type) {
	case RoomConnect:
		rt.roomConnect(sessionID, m)
	case Move:
		rt.move(sessionID, m)
	case OccupySeat:
		rt.occupySeat(sessionID, m)
	case FreeSeat:
		rt.freeSeat(sessionID, m)
	case SetDisplayLink:
		rt.setDisplayLink(sessionID, m)
	case SetDisplayVisibility:
		rt.setDisplayVisibility(sessionID, m)
	case LeaveRoom:
		rt.leaveRoom(sessionID)
	case AudioStream:
		rt.audioStream(sessionID, m)
	case Disconnect:
		rt.disconnect(sessionID)
	default:
		rt.logger.Error().Str("event", string(msg.Name())).Msg("Inbound message without handler.")
	}
}

func (rt *Router) roomConnect(sessionID string, m RoomConnect) {
	if current, _, joined := rt.registry.FindOwningRoom(sessionID); joined {
		rt.logger.Debug().
			Str("session_id", sessionID).
			Str("room_id", current.ID()).
			Msg("roomConnect while already in a room ignored.")
		return
	}

	room := rt.registry.Join(sessionID, m.RoomID, user.Appearance{
		Name:          m.DisplayName,
		Gender:        m.Gender,
		HairColor:     m.HairColor,
		SuitColor:     m.SuitColor,
		TrousersColor: m.TrousersColor,
	})

	rt.emitter.Emit(room.ID(), usersEvent(room))
	rt.emitter.Emit(room.ID(), displayLinkEvent(room))
	rt.emitter.Emit(room.ID(), displayVisibilityEvent(room))
	rt.emitter.Emit(room.ID(), seatsEvent(room))
}

// move broadcasts the full roster on every call: there is no delta protocol and no throttling.
func (rt *Router) move(sessionID string, m Move) {
	room, member, ok := rt.registry.FindOwningRoom(sessionID)
	if !ok {
		return
	}

	member.Move(m.Position, m.Animation, m.Rotation)
	rt.emitter.Emit(room.ID(), usersEvent(room))
}

func (rt *Router) occupySeat(sessionID string, m OccupySeat) {
	if !rt.ownsPayload(sessionID, m.UserID, EventOccupySeat) {
		return
	}

	if m.SeatNumber == nil {
		rt.logger.Debug().Str("session_id", sessionID).Msg("Seat request without seat number ignored.")
		return
	}
	seat := *m.SeatNumber

	room, _, ok := rt.registry.FindOwningRoom(sessionID)
	if !ok {
		return
	}

	if !room.occupySeat(seat, sessionID) {
		rt.logger.Debug().
			Str("session_id", sessionID).
			Str("room_id", room.ID()).
			Int("seat", seat).
			Msg("Seat already taken, request rejected.")
		rt.emitter.Emit(room.ID(), seatsEvent(room))
		return
	}

	rt.emitter.Emit(room.ID(), seatsEvent(room))
	rt.emitter.Emit(room.ID(), usersEvent(room))
}

func (rt *Router) freeSeat(sessionID string, m FreeSeat) {
	if !rt.ownsPayload(sessionID, m.UserID, EventFreeSeat) {
		return
	}

	room, _, ok := rt.registry.FindOwningRoom(sessionID)
	if !ok {
		return
	}

	if !room.freeSeat(sessionID) {
		return
	}

	rt.emitter.Emit(room.ID(), seatsEvent(room))
	rt.emitter.Emit(room.ID(), usersEvent(room))
}

func (rt *Router) setDisplayLink(sessionID string, m SetDisplayLink) {
	room, _, ok := rt.registry.FindOwningRoom(sessionID)
	if !ok {
		return
	}

	room.setDisplayLink(m.Value)
	rt.emitter.Emit(room.ID(), displayLinkEvent(room))
}

func (rt *Router) setDisplayVisibility(sessionID string, m SetDisplayVisibility) {
	if m.Value == nil {
		rt.logger.Debug().Str("session_id", sessionID).Msg("Non-boolean display visibility ignored.")
		return
	}

	room, _, ok := rt.registry.FindOwningRoom(sessionID)
	if !ok {
		return
	}

	room.setDisplayVisible(*m.Value)
	rt.emitter.Emit(room.ID(), displayVisibilityEvent(room))
}

func (rt *Router) leaveRoom(sessionID string) {
	rt.registry.RemoveSession(sessionID)
}

func (rt *Router) audioStream(sessionID string, m AudioStream) {
	room, _, ok := rt.registry.FindOwningRoom(sessionID)
	if !ok {
		return
	}

	rt.emitter.EmitExcept(room.ID(), sessionID, audioStreamEvent(sessionID, m.Payload))
}

func (rt *Router) disconnect(sessionID string) {
	delete(rt.sessions, sessionID)
	rt.registry.RemoveSession(sessionID)

	rt.logger.Debug().Str("session_id", sessionID).Msg("Session left.")
}

// ownsPayload rejects seat messages naming another session.
func (rt *Router) ownsPayload(sessionID, payloadUserID string, event EventName) bool {
	if payloadUserID == "" || payloadUserID == sessionID {
		return true
	}

	rt.logger.Debug().
		Str("session_id", sessionID).
		Str("payload_user_id", payloadUserID).
		Str("event", string(event)).
		Msg("Seat request for another session ignored.")
	return false
}
