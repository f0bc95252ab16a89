package models

import "fmt"

// Participant identifies one side of a match: either a human known to the
// platform or the synthetic opponent. The zero value is not a valid participant.
type Participant struct {
	id        string
	synthetic bool
}

// Synthetic is the single participant value used for the computer opponent.
var Synthetic = Participant{synthetic: true}

// Human wraps a platform-assigned participant identifier.
func Human(id string) Participant {
	return Participant{id: id}
}

// ID returns the platform identifier, or "" for the synthetic opponent.
func (p Participant) ID() string { return p.id }

func (p Participant) IsSynthetic() bool { return p.synthetic }

func (p Participant) IsHuman() bool { return !p.synthetic && p.id != "" }

func (p Participant) String() string {
	if p.synthetic {
		return "synthetic"
	}
	return fmt.Sprintf("human:%s", p.id)
}
