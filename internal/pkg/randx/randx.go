/*
Package randx provides identifier generation for sessions.
*/
package randx

import (
	"strings"

	"github.com/google/uuid"
)

// SessionID returns a random, URL-safe session identifier (a dash-less UUID v4).
func SessionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
