package room

// Status describes what a participant is currently doing. The protocol
// treats it as opaque: whatever a client reports is stored and re-broadcast
// as-is.
type Status string

// StatusReady is the status every participant starts with.
const StatusReady Status = "READY"

// Participant is one connected member of a room. The ID is the connection
// identifier assigned by the channel on connect; it is unique per active
// connection and never reused.
type Participant struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status Status `json:"status"`
}
