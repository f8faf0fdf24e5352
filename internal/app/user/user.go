/*
Package user contains the replicated state of a participant in the virtual space.

It defines the User struct sent to every member of a room in the roster, together with
the appearance attributes chosen at join time and the presence fields updated by movement.
*/
package user

import "strings"

const (
	// PlaceholderName replaces a missing display name at join.
	PlaceholderName = "Anonymous"

	// IdleAnimation is the animation every new user starts with.
	IdleAnimation = "idle"
)

// SpawnPosition is where every new user appears.
var SpawnPosition = Vec3{0, 1, 0}

// Vec3 is a three-component vector (x, y, z), serialized as a JSON array.
type Vec3 [3]float64

// Appearance holds the attributes fixed when a user joins a room.
type Appearance struct {
	Name          string
	Gender        string
	HairColor     string
	SuitColor     string
	TrousersColor string
}

// User represents one participant of a room.
// Fields use JSON tags for serialization in roster broadcasts.
type User struct {
	// ID is the session identifier assigned by the connection gateway.
	ID string `json:"id"`

	// Name is the display name, never empty.
	Name string `json:"name"`

	Gender        string `json:"gender"`
	HairColor     string `json:"hairColor"`
	SuitColor     string `json:"suitColor"`
	TrousersColor string `json:"trousersColor"`

	// Position, Animation and Rotation are overwritten by every move (last write wins).
	Position  Vec3   `json:"position"`
	Animation string `json:"animation"`
	Rotation  Vec3   `json:"rotation"`

	// Visible is false exactly while the user occupies a seat.
	Visible bool `json:"visible"`

	// RoomID is the normalized identifier of the owning room.
	RoomID string `json:"roomId"`
}

// New builds a user at the spawn point with the given appearance.
func New(id, roomID string, a Appearance) *User {
	name := strings.TrimSpace(a.Name)
	if name == "" {
		name = PlaceholderName
	}

	return &User{
		ID:            id,
		Name:          name,
		Gender:        a.Gender,
		HairColor:     a.HairColor,
		SuitColor:     a.SuitColor,
		TrousersColor: a.TrousersColor,
		Position:      SpawnPosition,
		Animation:     IdleAnimation,
		Visible:       true,
		RoomID:        roomID,
	}
}

// Move overwrites the presence fields.
func (u *User) Move(position Vec3, animation string, rotation Vec3) {
	u.Position = position
	u.Animation = animation
	u.Rotation = rotation
}
