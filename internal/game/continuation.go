package game

import "github.com/google/uuid"

// Continuation is the typed payload of an in-flight multi-step interaction,
// keyed by the id of its PENDING ledger row. Each interaction kind carries
// exactly the state its follow-up steps need; there is no dispatch on
// action names. A continuation disappears when its row resolves or expires.
type Continuation interface {
	continuation()
}

// AshesPick waits for the actor to take one of the discard cards offered by
// Look Into the Ashes.
type AshesPick struct {
	Offered []uuid.UUID
}

// EscapeDelay waits for the actor to submit a full permutation of the
// discard cards offered by Delay the Murderer's Escape. The permutation is
// pushed onto the deck in reverse: the first id becomes the new deck top.
type EscapeDelay struct {
	Offered []uuid.UUID
}

// SecretReturn is the three-step And Then There Was One More saga. Secret
// is uuid.Nil until step two picks one of the revealed pool; Recipients is
// recorded at the same time and gates step three's choice.
type SecretReturn struct {
	Pool       []uuid.UUID
	Secret     uuid.UUID
	Recipients []uuid.UUID
}

// DetectiveEffect waits for the resolving request of a played detective
// set. For self-reveal and wildcard-transfer sets the Target, not the
// actor, must send the follow-up.
type DetectiveEffect struct {
	Archetype   Archetype
	Target      uuid.UUID
	Wildcard    bool
	SetPosition int
}

func (AshesPick) continuation()       {}
func (EscapeDelay) continuation()     {}
func (SecretReturn) continuation()    {}
func (DetectiveEffect) continuation() {}
