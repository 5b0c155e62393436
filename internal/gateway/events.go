package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/mcdev12/focusroom/internal/room"
	"github.com/mcdev12/focusroom/internal/timer"
)

// Event is the wire envelope, one JSON object per websocket text message in
// both directions.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound event names (participant -> server).
const (
	EventCreateRoom   = "createRoom"
	EventJoinRoom     = "joinRoom"
	EventHostAction   = "hostAction"
	EventUpdateStatus = "updateStatus"
	EventRefreshUsers = "refreshUsers"
)

// Outbound event names (server -> participant).
const (
	EventRoomCreated    = "roomCreated"
	EventRoomJoined     = "roomJoined"
	EventUserJoined     = "userJoined"
	EventTimerUpdate    = "timerUpdate"
	EventTimerEnded     = "timerEnded"
	EventStatusUpdated  = "statusUpdated"
	EventUsersRefreshed = "usersRefreshed"
	EventUserLeft       = "userLeft"
	EventRoomClosed     = "roomClosed"
	EventError          = "error"
)

// Host control actions.
const (
	ActionStart = "start"
	ActionPause = "pause"
	ActionReset = "reset"
	ActionNext  = "next"
)

// JoinRoomPayload is the inbound joinRoom payload.
type JoinRoomPayload struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

// HostActionPayload is the inbound hostAction payload.
type HostActionPayload struct {
	RoomID string `json:"roomId"`
	Action string `json:"action"`
}

// UpdateStatusPayload is the inbound updateStatus payload.
type UpdateStatusPayload struct {
	RoomID string `json:"roomId"`
	Status string `json:"status"`
}

// RoomCreatedPayload acknowledges room creation to the creator only.
type RoomCreatedPayload struct {
	RoomID string             `json:"roomId"`
	Users  []room.Participant `json:"users"`
	IsHost bool               `json:"isHost"`
}

// RoomJoinedPayload acknowledges a join to the joiner only, carrying the
// timer state so a late joiner syncs immediately.
type RoomJoinedPayload struct {
	RoomID     string             `json:"roomId"`
	Users      []room.Participant `json:"users"`
	IsHost     bool               `json:"isHost"`
	TimerState timer.State        `json:"timerState"`
}

// UsersPayload carries the full member list; used by userJoined, userLeft,
// statusUpdated and usersRefreshed.
type UsersPayload struct {
	Users []room.Participant `json:"users"`
}

// TimerUpdatePayload is the room-wide timer snapshot broadcast.
type TimerUpdatePayload struct {
	timer.State
	UserCount int `json:"userCount"`
}

// TimerEndedPayload tells the room which phase just ran out.
type TimerEndedPayload struct {
	Mode timer.Mode `json:"mode"`
}

// newEvent wraps a payload into the wire envelope. A nil payload produces
// an envelope with no data field (roomClosed).
func newEvent(name string, payload any) (Event, error) {
	ev := Event{Event: name}
	if payload == nil {
		return ev, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", name, err)
	}
	ev.Data = data
	return ev, nil
}
