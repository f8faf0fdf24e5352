/*
Package space contains the core of the virtual space server.

This file defines the wire protocol: the closed set of inbound session messages, their decoding
from JSON frames, and the outbound events emitted to room members.
Frames look like {"event": "<name>", "data": <payload>} in both directions.
*/
package space

import (
	"encoding/json"
	"errors"
	"fmt"

	"hzspace/internal/app/user"
)

// EventName identifies an inbound or outbound event on the wire.
type EventName string

// Inbound event names.
const (
	EventRoomConnect          EventName = "roomConnect"
	EventMove                 EventName = "move"
	EventOccupySeat           EventName = "occupySeat"
	EventFreeSeat             EventName = "freeSeat"
	EventSetDisplayLink       EventName = "setDisplayLink"
	EventSetDisplayVisibility EventName = "setDisplayVisibility"
	EventLeaveRoom            EventName = "leaveRoom"
	EventDisconnect           EventName = "disconnect"
)

// Outbound event names. EventAudioStream is used in both directions.
const (
	EventUsers             EventName = "users"
	EventDisplayLink       EventName = "displayLink"
	EventDisplayVisibility EventName = "displayVisibility"
	EventSeats             EventName = "seats"
	EventSession           EventName = "session"
	EventAudioStream       EventName = "audioStream"
)

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrUnknownEvent   = errors.New("unknown event")
)

// Inbound is one message received from a session. The set of implementations is closed:
// only types of this package satisfy it, and Router.Dispatch handles each of them.
type Inbound interface {
	Name() EventName
	inbound()
}

// RoomConnect asks to join a room with the given appearance.
type RoomConnect struct {
	DisplayName   string `json:"name"`
	HairColor     string `json:"hairColor"`
	SuitColor     string `json:"suitColor"`
	TrousersColor string `json:"trousersColor"`
	Gender        string `json:"gender"`
	RoomID        string `json:"roomId"`
}

// Move overwrites the caller's presence.
type Move struct {
	Position  user.Vec3 `json:"position"`
	Animation string    `json:"animation"`
	Rotation  user.Vec3 `json:"rotation"`
}

// OccupySeat asks for a seat. UserID, when present, must be the caller's session id.
// SeatNumber is nil when the payload carried none; such a message is ignored.
type OccupySeat struct {
	UserID     string `json:"userId"`
	SeatNumber *int   `json:"seatNumber"`
}

// FreeSeat releases the caller's seat.
type FreeSeat struct {
	UserID string `json:"userId"`
}

// SetDisplayLink replaces the room's shared video reference.
type SetDisplayLink struct {
	Value string `json:"value"`
}

// SetDisplayVisibility shows or hides the shared display.
// Value is nil when the payload was not a boolean; such a message is ignored.
type SetDisplayVisibility struct {
	Value *bool `json:"-"`
}

// LeaveRoom leaves the current room without closing the session.
type LeaveRoom struct{}

// AudioStream carries an opaque audio chunk relayed to the other members of the caller's room.
type AudioStream struct {
	Payload json.RawMessage `json:"-"`
}

// Disconnect is raised by the connection gateway when the transport is gone.
// It cannot be sent by a client.
type Disconnect struct{}

func (RoomConnect) Name() EventName          { return EventRoomConnect }
func (Move) Name() EventName                 { return EventMove }
func (OccupySeat) Name() EventName           { return EventOccupySeat }
func (FreeSeat) Name() EventName             { return EventFreeSeat }
func (SetDisplayLink) Name() EventName       { return EventSetDisplayLink }
func (SetDisplayVisibility) Name() EventName { return EventSetDisplayVisibility }
func (LeaveRoom) Name() EventName            { return EventLeaveRoom }
func (AudioStream) Name() EventName          { return EventAudioStream }
func (Disconnect) Name() EventName           { return EventDisconnect }

func (RoomConnect) inbound()          {}
func (Move) inbound()                 {}
func (OccupySeat) inbound()           {}
func (FreeSeat) inbound()             {}
func (SetDisplayLink) inbound()       {}
func (SetDisplayVisibility) inbound() {}
func (LeaveRoom) inbound()            {}
func (AudioStream) inbound()          {}
func (Disconnect) inbound()           {}

type frame struct {
	Event EventName       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// DecodeInbound parses a client frame into its Inbound message.
func DecodeInbound(raw []byte) (Inbound, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	switch f.Event {
	case EventRoomConnect:
		return decodeData[RoomConnect](f)
	case EventMove:
		return decodeData[Move](f)
	case EventOccupySeat:
		return decodeData[OccupySeat](f)
	case EventFreeSeat:
		return decodeData[FreeSeat](f)
	case EventSetDisplayLink:
		return decodeData[SetDisplayLink](f)
	case EventSetDisplayVisibility:
		return decodeVisibility(f)
	case EventLeaveRoom:
		return LeaveRoom{}, nil
	case EventAudioStream:
		return AudioStream{Payload: f.Data}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, f.Event)
	}
}

func decodeData[T Inbound](f frame) (Inbound, error) {
	var msg T
	if len(f.Data) == 0 || string(f.Data) == "null" {
		return msg, nil
	}
	if err := json.Unmarshal(f.Data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %s payload: %v", ErrMalformedFrame, f.Event, err)
	}
	return msg, nil
}

// decodeVisibility never fails on the value itself: anything but a JSON boolean leaves Value nil.
func decodeVisibility(f frame) (Inbound, error) {
	var payload struct {
		Value json.RawMessage `json:"value"`
	}
	if len(f.Data) > 0 {
		if err := json.Unmarshal(f.Data, &payload); err != nil {
			return SetDisplayVisibility{}, nil
		}
	}

	var visible bool
	if err := json.Unmarshal(payload.Value, &visible); err != nil || string(payload.Value) == "null" {
		return SetDisplayVisibility{}, nil
	}
	return SetDisplayVisibility{Value: &visible}, nil
}

// Outbound is one event emitted to sessions.
type Outbound struct {
	Event EventName `json:"event"`
	Data  any       `json:"data"`
}

type valuePayload[T any] struct {
	Value T `json:"value"`
}

type sessionPayload struct {
	ID string `json:"id"`
}

func usersEvent(r *Room) Outbound {
	return Outbound{Event: EventUsers, Data: r.Roster()}
}

func seatsEvent(r *Room) Outbound {
	return Outbound{Event: EventSeats, Data: r.Seats()}
}

func displayLinkEvent(r *Room) Outbound {
	return Outbound{Event: EventDisplayLink, Data: valuePayload[string]{Value: r.DisplayLink()}}
}

func displayVisibilityEvent(r *Room) Outbound {
	return Outbound{Event: EventDisplayVisibility, Data: valuePayload[bool]{Value: r.DisplayVisible()}}
}

func sessionEvent(sessionID string) Outbound {
	return Outbound{Event: EventSession, Data: sessionPayload{ID: sessionID}}
}

func audioStreamEvent(from string, payload json.RawMessage) Outbound {
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return Outbound{Event: EventAudioStream, Data: struct {
		From    string          `json:"from"`
		Payload json.RawMessage `json:"payload"`
	}{From: from, Payload: payload}}
}
