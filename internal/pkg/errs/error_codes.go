/*
Package errs provides custom error types and application-level error code constants.

These codes identify failures of the HTTP surface (credential issuing, room listing, connection
upgrades). The realtime space protocol itself never reports errors to clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect (e.g., syntax error).
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRequestEntityTooLarge indicates that the request body size exceeded the server limit.
	ErrRequestEntityTooLarge = 1006

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007
)

// 2xxx: Space and Media Errors
const (
	// ErrSpaceUnavailable indicates that the space event loop is shutting down or did not answer in time.
	ErrSpaceUnavailable = 2101

	// ErrMediaTokenFailed indicates that a media-session credential could not be signed.
	ErrMediaTokenFailed = 2301
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000
)
