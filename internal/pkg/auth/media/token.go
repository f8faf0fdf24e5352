/*
Package media issues signed, time-limited credentials for the external audio/video channel.
*/
package media

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
)

// TokenIssuer identifies the issuer of media tokens.
const TokenIssuer = "HZSpace-Server"

var (
	ErrEmptyChannel = errors.New("media token: channel name is required")
	ErrEmptyUser    = errors.New("media token: user identifier is required")
)

// Token is a signed credential together with its expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Issuer signs media tokens with an application certificate.
type Issuer struct {
	appID       string
	certificate []byte
	ttl         time.Duration
	now         func() time.Time
}

// NewIssuer returns an Issuer signing with certificate, valid for ttl after issuance.
func NewIssuer(appID, certificate string, ttl time.Duration) *Issuer {
	return &Issuer{
		appID:       appID,
		certificate: []byte(certificate),
		ttl:         ttl,
		now:         time.Now,
	}
}

// AppID returns the media application identifier tokens are bound to.
func (i *Issuer) AppID() string {
	return i.appID
}

// Issue signs a token allowing uid to join channel.
func (i *Issuer) Issue(channel, uid string) (Token, error) {
	channel = strings.TrimSpace(channel)
	uid = strings.TrimSpace(uid)

	if channel == "" {
		return Token{}, ErrEmptyChannel
	}
	if uid == "" {
		return Token{}, ErrEmptyUser
	}

	now := i.now()
	expiresAt := now.Add(i.ttl)

	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Subject:   uid,
			ExpiresAt: expiresAt.Unix(),
			IssuedAt:  now.Unix(),
			Issuer:    TokenIssuer,
		},
		AppID:   i.appID,
		Channel: channel,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.certificate)
	if err != nil {
		return Token{}, err
	}

	return Token{Value: signed, ExpiresAt: time.Unix(expiresAt.Unix(), 0)}, nil
}

// Parse validates a token signed by this issuer and returns its claims.
func (i *Issuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return i.certificate, nil
	})
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid or expired token")
	}

	return claims, nil
}
