package types

// ChangeType is the kind of a state change.
type ChangeType string

const (
	ChangeSet    ChangeType = "SET"
	ChangeDelete ChangeType = "DELETE"
)

// StateChange is a single address write observed on commit.
type StateChange struct {
	Type    ChangeType `cramberry:"1" json:"type"`
	Address string     `cramberry:"2" json:"address"`
	Value   []byte     `cramberry:"3" json:"value,omitempty"`
}

// StateChangeEvent is published once per committed batch, carrying only
// the changes that match a subscriber's address prefixes.
type StateChangeEvent struct {
	// Position of the batch in commit order, starting at 1.
	Sequence     uint64        `cramberry:"1" json:"sequence"`
	BatchID      string        `cramberry:"2" json:"batch_id"`
	StateChanges []StateChange `cramberry:"3" json:"state_changes"`
}
