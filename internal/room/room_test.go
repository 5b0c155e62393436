package room

import (
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/focusroom/internal/timer"
)

type nopSink struct{}

func (nopSink) TimerUpdated(timer.State) {}
func (nopSink) TimerEnded(timer.Mode)    {}

func sinkFor(string) timer.Sink { return nopSink{} }

func TestRoom_JoinPreservesOrder(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry(clockwork.NewFakeClock())
	rm := reg.CreateRoom(Participant{ID: "c1", Name: "Alice", Status: StatusReady}, sinkFor)

	users := rm.Join(Participant{ID: "c2", Name: "Bob", Status: StatusReady})
	users = rm.Join(Participant{ID: "c3", Name: "Carol", Status: StatusReady})

	req.Len(users, 3)
	req.Equal("Alice", users[0].Name)
	req.Equal("Bob", users[1].Name)
	req.Equal("Carol", users[2].Name)
}

func TestRoom_LeaveRemovesMember(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry(clockwork.NewFakeClock())
	rm := reg.CreateRoom(Participant{ID: "c1", Name: "Alice", Status: StatusReady}, sinkFor)
	rm.Join(Participant{ID: "c2", Name: "Bob", Status: StatusReady})

	users := rm.Leave("c2")
	req.Len(users, 1)
	req.Equal("c1", users[0].ID)

	// Leaving twice is harmless.
	users = rm.Leave("c2")
	req.Len(users, 1)
}

func TestRoom_SetStatus(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry(clockwork.NewFakeClock())
	rm := reg.CreateRoom(Participant{ID: "c1", Name: "Alice", Status: StatusReady}, sinkFor)

	users, err := rm.SetStatus("c1", Status("FOCUSING"))
	req.NoError(err)
	req.Equal(Status("FOCUSING"), users[0].Status)

	_, err = rm.SetStatus("ghost", StatusReady)
	req.ErrorIs(err, ErrUnknownParticipant)
}

func TestRoom_HostAuthorization(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry(clockwork.NewFakeClock())
	rm := reg.CreateRoom(Participant{ID: "c1", Name: "Alice", Status: StatusReady}, sinkFor)
	rm.Join(Participant{ID: "c2", Name: "Bob", Status: StatusReady})

	req.True(rm.IsHost("c1"))
	req.False(rm.IsHost("c2"))
	req.NoError(rm.AuthorizeHost("c1"))
	req.ErrorIs(rm.AuthorizeHost("c2"), ErrNotAuthorized)
}

func TestRoom_MembersReturnsCopy(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry(clockwork.NewFakeClock())
	rm := reg.CreateRoom(Participant{ID: "c1", Name: "Alice", Status: StatusReady}, sinkFor)

	users := rm.Members()
	users[0].Name = "Mallory"
	req.Equal("Alice", rm.Members()[0].Name)
}
