/*
Package space contains the core of the virtual space server: rooms, the room registry,
the session event router, the broadcast emitter and the hub event loop that serializes
every state change.

This file defines the Room struct: an isolated set of users with its shared display state
and seat occupancy.
*/
package space

import (
	"strings"

	"github.com/samber/lo"

	"hzspace/internal/app/user"
)

// DefaultRoomID is used when a join request carries an empty room identifier.
const DefaultRoomID = "LOBBY"

// NormalizeRoomID trims and upper-cases a raw room identifier.
// "alpha", "Alpha " and "ALPHA" all denote the same room.
func NormalizeRoomID(raw string) string {
	id := strings.ToUpper(strings.TrimSpace(raw))
	if id == "" {
		return DefaultRoomID
	}
	return id
}

// Room holds the state shared by the members of one room.
// It is owned by a Registry and is only mutated from the hub event loop.
type Room struct {
	id string

	// users in join order, unique by session id.
	users []*user.User

	displayLink    string
	displayVisible bool

	// seats maps a seat number to the session occupying it. A session holds at most one seat.
	seats map[int]string
}

func newRoom(id, displayLink string) *Room {
	return &Room{
		id:             id,
		displayLink:    displayLink,
		displayVisible: true,
		seats:          make(map[int]string),
	}
}

// ID returns the normalized room identifier.
func (r *Room) ID() string { return r.id }

// Len returns the number of members.
func (r *Room) Len() int { return len(r.users) }

// DisplayLink returns the shared video reference.
func (r *Room) DisplayLink() string { return r.displayLink }

// DisplayVisible reports whether the shared display is shown.
func (r *Room) DisplayVisible() bool { return r.displayVisible }

// Roster returns a copy of the members in join order.
func (r *Room) Roster() []user.User {
	return lo.Map(r.users, func(u *user.User, _ int) user.User { return *u })
}

// Seats returns a copy of the seat map.
func (r *Room) Seats() map[int]string {
	return lo.Assign(r.seats)
}

func (r *Room) member(sessionID string) (*user.User, bool) {
	return lo.Find(r.users, func(u *user.User) bool { return u.ID == sessionID })
}

func (r *Room) add(u *user.User) {
	r.users = append(r.users, u)
}

// remove releases the seat held by sessionID and drops the member.
// It reports whether a seat was released.
func (r *Room) remove(sessionID string) (seatReleased bool) {
	seatReleased = r.freeSeat(sessionID)

	_, index, ok := lo.FindIndexOf(r.users, func(u *user.User) bool { return u.ID == sessionID })
	if ok {
		r.users = append(r.users[:index], r.users[index+1:]...)
	}
	return seatReleased
}

func (r *Room) seatOf(sessionID string) (int, bool) {
	return lo.FindKey(r.seats, sessionID)
}

// occupySeat gives seat to sessionID if nobody holds it, releasing the session's previous seat.
// A seat already present in the map, even one held by the caller, is never reassigned.
func (r *Room) occupySeat(seat int, sessionID string) bool {
	occupant, ok := r.member(sessionID)
	if !ok {
		return false
	}

	if _, taken := r.seats[seat]; taken {
		return false
	}

	if previous, held := r.seatOf(sessionID); held {
		delete(r.seats, previous)
	}

	r.seats[seat] = sessionID
	occupant.Visible = false
	return true
}

// freeSeat releases the seat held by sessionID, if any.
func (r *Room) freeSeat(sessionID string) bool {
	seat, held := r.seatOf(sessionID)
	if !held {
		return false
	}

	delete(r.seats, seat)
	if occupant, ok := r.member(sessionID); ok {
		occupant.Visible = true
	}
	return true
}

func (r *Room) setDisplayLink(link string) {
	r.displayLink = link
}

func (r *Room) setDisplayVisible(visible bool) {
	r.displayVisible = visible
}
