package gateway

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/focusroom/internal/room"
	"github.com/mcdev12/focusroom/internal/timer"
)

// Emitter is the outbound half of the connection channel. The Session
// resolves state transitions; the Emitter owns delivery and the per-room
// connection pools. The Hub implements it over websockets; tests use an
// in-memory fake.
type Emitter interface {
	// ToConn delivers an event to a single connection.
	ToConn(connID string, ev Event)
	// ToRoom delivers an event to every connection joined to the room.
	ToRoom(roomID string, ev Event)
	// JoinRoom attaches a connection to a room's delivery pool.
	JoinRoom(connID, roomID string)
	// CloseRoom delivers ev to the room's remaining connections and then
	// detaches them, in that order, so roomClosed is the pool's last event.
	CloseRoom(roomID string, ev Event)
}

// Session binds inbound protocol events to registry, room and timer
// operations and owns the broadcast policy: creation/join acks go to the
// initiator only, everything else to the whole room. Control actions from
// anyone but the host, and most events against unknown rooms, are dropped
// silently.
type Session struct {
	registry *room.Registry
	emitter  Emitter
}

// NewSession creates a session gateway over the given registry and emitter.
func NewSession(registry *room.Registry, emitter Emitter) *Session {
	return &Session{
		registry: registry,
		emitter:  emitter,
	}
}

// HandleEvent dispatches one inbound message from a connection. Faults are
// contained here so a malformed or hostile message never takes down any
// other participant's session.
func (s *Session) HandleEvent(connID string, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("conn_id", connID).Msg("event handler panicked")
		}
	}()

	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		log.Debug().Err(err).Str("conn_id", connID).Msg("dropping malformed event")
		return
	}

	switch ev.Event {
	case EventCreateRoom:
		s.createRoom(connID, ev.Data)
	case EventJoinRoom:
		s.joinRoom(connID, ev.Data)
	case EventHostAction:
		s.hostAction(connID, ev.Data)
	case EventUpdateStatus:
		s.updateStatus(connID, ev.Data)
	case EventRefreshUsers:
		s.refreshUsers(connID, ev.Data)
	default:
		log.Debug().Str("event", ev.Event).Str("conn_id", connID).Msg("ignoring unknown event")
	}
}

// HandleDisconnect applies leave semantics for a departed connection: an
// ordinary member is removed and announced, a departing host tears the
// whole room down.
func (s *Session) HandleDisconnect(connID string) {
	rm, ok := s.registry.Locate(connID)
	if !ok {
		return
	}

	if rm.IsHost(connID) {
		// Cancel the tick task before the room leaves the registry so no
		// tick can fire against a removed room.
		rm.Timer.Stop()
		s.registry.Remove(rm.ID)
		ev, err := newEvent(EventRoomClosed, nil)
		if err != nil {
			return
		}
		s.emitter.CloseRoom(rm.ID, ev)
		log.Info().Str("room_id", rm.ID).Msg("room closed, host disconnected")
		return
	}

	users := rm.Leave(connID)
	s.registry.Forget(connID)
	s.broadcast(rm.ID, EventUserLeft, UsersPayload{Users: users})
}

// createRoom handles createRoom(username): the sender becomes host of a
// fresh room and receives the only acknowledgement.
func (s *Session) createRoom(connID string, data json.RawMessage) {
	var username string
	if err := json.Unmarshal(data, &username); err != nil {
		log.Debug().Err(err).Str("conn_id", connID).Msg("dropping malformed createRoom")
		return
	}

	host := room.Participant{ID: connID, Name: username, Status: room.StatusReady}
	rm := s.registry.CreateRoom(host, func(roomID string) timer.Sink {
		return &roomSink{session: s, roomID: roomID}
	})

	s.emitter.JoinRoom(connID, rm.ID)
	s.send(connID, EventRoomCreated, RoomCreatedPayload{
		RoomID: rm.ID,
		Users:  rm.Members(),
		IsHost: true,
	})
}

// joinRoom handles joinRoom({roomId, username}). The joiner gets a private
// ack with the timer state; the whole room, joiner included, gets the
// updated member list. An unknown room id is the one case that surfaces an
// error to the sender.
func (s *Session) joinRoom(connID string, data json.RawMessage) {
	var p JoinRoomPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Debug().Err(err).Str("conn_id", connID).Msg("dropping malformed joinRoom")
		return
	}

	// The pool attach runs inside the registry's join so a host disconnect
	// racing this join either rejects it outright or delivers its closing
	// broadcast to the already-attached joiner.
	rm, users, err := s.registry.Join(p.RoomID, room.Participant{
		ID:     connID,
		Name:   p.Username,
		Status: room.StatusReady,
	}, func() {
		s.emitter.JoinRoom(connID, p.RoomID)
	})
	if err != nil {
		s.send(connID, EventError, "Room not found")
		return
	}

	s.send(connID, EventRoomJoined, RoomJoinedPayload{
		RoomID:     rm.ID,
		Users:      users,
		IsHost:     false,
		TimerState: rm.Timer.State(),
	})
	s.broadcast(rm.ID, EventUserJoined, UsersPayload{Users: users})
}

// hostAction handles hostAction({roomId, action}). Unknown rooms and
// non-host senders are rejected silently; the resulting timer transitions
// broadcast through the room's sink.
func (s *Session) hostAction(connID string, data json.RawMessage) {
	var p HostActionPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Debug().Err(err).Str("conn_id", connID).Msg("dropping malformed hostAction")
		return
	}

	rm, ok := s.registry.Lookup(p.RoomID)
	if !ok {
		return
	}
	if err := rm.AuthorizeHost(connID); err != nil {
		log.Debug().Str("room_id", p.RoomID).Str("conn_id", connID).Str("action", p.Action).
			Msg("ignoring control action from non-host")
		return
	}

	switch p.Action {
	case ActionStart:
		rm.Timer.Start()
	case ActionPause:
		rm.Timer.Pause()
	case ActionReset:
		rm.Timer.Reset()
	case ActionNext:
		rm.Timer.Next()
	default:
		log.Debug().Str("action", p.Action).Str("room_id", p.RoomID).Msg("ignoring unknown host action")
	}
}

// updateStatus handles updateStatus({roomId, status}). Status values are
// stored and re-broadcast untouched; updates from ids that are not members
// are dropped.
func (s *Session) updateStatus(connID string, data json.RawMessage) {
	var p UpdateStatusPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Debug().Err(err).Str("conn_id", connID).Msg("dropping malformed updateStatus")
		return
	}

	rm, ok := s.registry.Lookup(p.RoomID)
	if !ok {
		return
	}
	users, err := rm.SetStatus(connID, room.Status(p.Status))
	if err != nil {
		return
	}
	s.broadcast(rm.ID, EventStatusUpdated, UsersPayload{Users: users})
}

// refreshUsers handles refreshUsers(roomId), a point-to-point resync for a
// client that suspects desync. Unknown rooms yield no response.
func (s *Session) refreshUsers(connID string, data json.RawMessage) {
	var roomID string
	if err := json.Unmarshal(data, &roomID); err != nil {
		log.Debug().Err(err).Str("conn_id", connID).Msg("dropping malformed refreshUsers")
		return
	}

	rm, ok := s.registry.Lookup(roomID)
	if !ok {
		return
	}
	s.send(connID, EventUsersRefreshed, UsersPayload{Users: rm.Members()})
}

func (s *Session) send(connID, name string, payload any) {
	ev, err := newEvent(name, payload)
	if err != nil {
		log.Error().Err(err).Str("event", name).Msg("failed to build event")
		return
	}
	s.emitter.ToConn(connID, ev)
}

func (s *Session) broadcast(roomID, name string, payload any) {
	ev, err := newEvent(name, payload)
	if err != nil {
		log.Error().Err(err).Str("event", name).Msg("failed to build event")
		return
	}
	s.emitter.ToRoom(roomID, ev)
}

// roomSink routes one room's timer emissions into the broadcast policy.
// TimerUpdated is called with the timer lock held, which keeps snapshot
// order consistent with transition order.
type roomSink struct {
	session *Session
	roomID  string
}

func (rs *roomSink) TimerUpdated(st timer.State) {
	count := 0
	if rm, ok := rs.session.registry.Lookup(rs.roomID); ok {
		count = rm.MemberCount()
	}
	rs.session.broadcast(rs.roomID, EventTimerUpdate, TimerUpdatePayload{
		State:     st,
		UserCount: count,
	})
}

func (rs *roomSink) TimerEnded(mode timer.Mode) {
	rs.session.broadcast(rs.roomID, EventTimerEnded, TimerEndedPayload{Mode: mode})
}
