/*
Package space contains the core of the virtual space server.

This file defines the Registry, which creates rooms on first join, resolves the room owning
a session through a session index, and destroys a room the moment its last member leaves.
*/
package space

import (
	"sort"

	"github.com/rs/zerolog"

	"hzspace/internal/app/user"
	"hzspace/internal/pkg/logx"
)

// RoomSummary is a read-only view of one room, used by the HTTP listing.
type RoomSummary struct {
	ID             string `json:"id"`
	Members        int    `json:"members"`
	SeatsTaken     int    `json:"seatsTaken"`
	DisplayVisible bool   `json:"displayVisible"`
}

// Registry owns every live Room. It is not safe for concurrent use: the hub event loop is its only caller.
type Registry struct {
	rooms map[string]*Room

	// index maps a joined session to the id of its room. It changes only together with room membership.
	index map[string]string

	defaultDisplayLink string
	emitter            Emitter
	logger             zerolog.Logger
}

// NewRegistry creates an empty Registry whose new rooms start with defaultDisplayLink.
func NewRegistry(defaultDisplayLink string, emitter Emitter) *Registry {
	return &Registry{
		rooms:              make(map[string]*Room),
		index:              make(map[string]string),
		defaultDisplayLink: defaultDisplayLink,
		emitter:            emitter,
		logger:             logx.Component("Registry"),
	}
}

// Len returns the number of live rooms.
func (g *Registry) Len() int {
	return len(g.rooms)
}

// EnsureRoom returns the room for the normalized rawID, creating it with default display state if needed.
func (g *Registry) EnsureRoom(rawID string) *Room {
	id := NormalizeRoomID(rawID)

	if room, ok := g.rooms[id]; ok {
		return room
	}

	room := newRoom(id, g.defaultDisplayLink)
	g.rooms[id] = room

	g.logger.Info().Str("room_id", id).Int("total_rooms", len(g.rooms)).Msg("Room created.")
	return room
}

// lookup finds a room by any casing or whitespace variant of its id.
func (g *Registry) lookup(rawID string) (*Room, bool) {
	room, ok := g.rooms[NormalizeRoomID(rawID)]
	return room, ok
}

// FindOwningRoom returns the room and user record of a joined session.
func (g *Registry) FindOwningRoom(sessionID string) (*Room, *user.User, bool) {
	roomID, ok := g.index[sessionID]
	if !ok {
		return nil, nil, false
	}

	room, ok := g.rooms[roomID]
	if !ok {
		g.logger.Error().Str("session_id", sessionID).Str("room_id", roomID).Msg("Session index points to a missing room.")
		return nil, nil, false
	}

	member, ok := room.member(sessionID)
	if !ok {
		g.logger.Error().Str("session_id", sessionID).Str("room_id", roomID).Msg("Session index points to a room without the member.")
		return nil, nil, false
	}

	return room, member, true
}

// Join adds a new user for sessionID to the room named rawRoomID and subscribes the session
// to the room's broadcast scope. The caller must ensure the session is not joined elsewhere.
func (g *Registry) Join(sessionID, rawRoomID string, appearance user.Appearance) *Room {
	room := g.EnsureRoom(rawRoomID)

	room.add(user.New(sessionID, room.ID(), appearance))
	g.index[sessionID] = room.ID()
	g.emitter.Subscribe(room.ID(), sessionID)

	g.logger.Info().
		Str("session_id", sessionID).
		Str("room_id", room.ID()).
		Int("total_users", room.Len()).
		Msg("User joined room.")

	return room
}

// RemoveSession takes the session out of its room, releasing its seat and its subscription.
// An emptied room is deleted without any broadcast; otherwise the remaining members receive
// the updated roster (and seat map, when a seat was released).
// It returns the id of the room the session was removed from, or false when it was not joined.
func (g *Registry) RemoveSession(sessionID string) (string, bool) {
	room, _, ok := g.FindOwningRoom(sessionID)
	if !ok {
		return "", false
	}

	seatReleased := room.remove(sessionID)
	delete(g.index, sessionID)
	g.emitter.Unsubscribe(room.ID(), sessionID)

	if room.Len() == 0 {
		delete(g.rooms, room.ID())
		g.emitter.DropScope(room.ID())

		g.logger.Info().
			Str("room_id", room.ID()).
			Int("total_rooms", len(g.rooms)).
			Msg("Room is empty. Room removed.")
		return room.ID(), true
	}

	g.logger.Info().
		Str("session_id", sessionID).
		Str("room_id", room.ID()).
		Int("total_users", room.Len()).
		Msg("User left room.")

	if seatReleased {
		g.emitter.Emit(room.ID(), seatsEvent(room))
	}
	g.emitter.Emit(room.ID(), usersEvent(room))

	return room.ID(), true
}

// Summaries lists every live room ordered by id.
func (g *Registry) Summaries() []RoomSummary {
	summaries := make([]RoomSummary, 0, len(g.rooms))
	for _, room := range g.rooms {
		summaries = append(summaries, RoomSummary{
			ID:             room.ID(),
			Members:        room.Len(),
			SeatsTaken:     len(room.seats),
			DisplayVisible: room.DisplayVisible(),
		})
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })
	return summaries
}
