package room

import (
	"sync"

	"github.com/mcdev12/focusroom/internal/timer"
)

// Room groups one host and their guests around a shared countdown timer.
// The host is the member that created the room; the role never transfers,
// and the room dies with the host's connection.
type Room struct {
	ID     string
	HostID string
	Timer  *timer.Timer

	mu      sync.RWMutex
	members []Participant
}

func newRoom(id string, host Participant, t *timer.Timer) *Room {
	return &Room{
		ID:      id,
		HostID:  host.ID,
		Timer:   t,
		members: []Participant{host},
	}
}

// Join appends a participant and returns the updated member list. Join
// order is preserved; there is no capacity limit.
func (r *Room) Join(p Participant) []Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members = append(r.members, p)
	return r.membersLocked()
}

// Leave removes the member with the given id and returns the updated list.
// Host departure is not handled here: the registry tears the room down
// instead of removing the host.
func (r *Room) Leave(participantID string) []Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, m := range r.members {
		if m.ID == participantID {
			r.members = append(r.members[:i], r.members[i+1:]...)
			break
		}
	}
	return r.membersLocked()
}

// SetStatus updates the named participant's status in place and returns the
// updated member list, or ErrUnknownParticipant if the id is not a member.
func (r *Room) SetStatus(participantID string, status Status) ([]Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.members {
		if r.members[i].ID == participantID {
			r.members[i].Status = status
			return r.membersLocked(), nil
		}
	}
	return nil, ErrUnknownParticipant
}

// IsHost reports whether the given participant created the room.
func (r *Room) IsHost(participantID string) bool {
	return r.HostID == participantID
}

// AuthorizeHost gates timer control actions to the host.
func (r *Room) AuthorizeHost(participantID string) error {
	if !r.IsHost(participantID) {
		return ErrNotAuthorized
	}
	return nil
}

// Members returns a copy of the member list in join order.
func (r *Room) Members() []Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.membersLocked()
}

// MemberCount returns the number of members currently in the room.
func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func (r *Room) membersLocked() []Participant {
	out := make([]Participant, len(r.members))
	copy(out, r.members)
	return out
}
