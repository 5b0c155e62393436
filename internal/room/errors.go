package room

import "errors"

var (
	// ErrRoomNotFound is returned for operations against an unknown room id.
	// It is the only error ever surfaced to a client, and only on join.
	ErrRoomNotFound = errors.New("room not found")

	// ErrNotAuthorized is returned when a non-host issues a control action.
	// Callers ignore it silently.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrUnknownParticipant is returned for a status update from an id that
	// is not a member of the room. Callers ignore it silently.
	ErrUnknownParticipant = errors.New("unknown participant")
)
