// Package game implements the live room session: the connection
// lifecycle, the roster and settings state machine, and the commands a
// client can issue while in a room.
package game

import "fmt"

// ErrorCode classifies a session error.
type ErrorCode string

const (
	// CodePermissionDenied marks a host-only command issued without
	// host authority. Delivered through the event stream.
	CodePermissionDenied ErrorCode = "permission_denied"
	// CodeInvalidArgument marks a command rejected before sending.
	CodeInvalidArgument ErrorCode = "invalid_argument"
	// CodeConnection marks a transport or handshake failure.
	CodeConnection ErrorCode = "connection"
	// CodeRateLimited marks a join attempt rejected because the
	// address resolver saw too many requests.
	CodeRateLimited ErrorCode = "rate_limited"
	// CodeRoomNotFound marks a join attempt against a room the
	// address resolver could not find.
	CodeRoomNotFound ErrorCode = "room_not_found"
	// CodeServer marks an error frame pushed by the server.
	CodeServer ErrorCode = "server"
)

// Error is a session error with its classification.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// fatalServerErrors are server error tokens after which the session
// cannot continue and must leave.
var fatalServerErrors = map[string]bool{
	"invalid_params":       true,
	"password_wrong":       true,
	"room_full":            true,
	"players_xp_too_high":  true,
	"players_xp_too_low":   true,
	"guests_not_allowed":   true,
	"already_in_this_room": true,
	"room_not_found":       true,
	"avatar_data_invalid":  true,
}

// rateLimitPong is pushed when ping acknowledgements arrive too fast.
// It is noise, not an error.
const rateLimitPong = "rate_limit_pong"
