package media

import "github.com/golang-jwt/jwt"

// Claims is the payload of a media-session credential.
// Clients present it to the out-of-band audio/video channel; the space server never reads it back.
type Claims struct {
	// StandardClaims carries exp, iat, iss and sub (the user identifier).
	jwt.StandardClaims

	// AppID identifies the media project the token was issued for.
	AppID string `json:"app_id"`

	// Channel is the media channel the holder may join.
	Channel string `json:"channel"`
}
