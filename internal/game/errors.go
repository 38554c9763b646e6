package game

// Code groups rejections into the four machine-readable families every
// client-facing surface reports. A short draw is not an error and never
// surfaces through this type.
type Code string

// Rejection families.
const (
	CodeNotFound  Code = "not_found"
	CodeForbidden Code = "forbidden"
	CodeConflict  Code = "conflict"
	CodeExpired   Code = "expired"
)

// Error is a rejection with a stable reason code. Validation errors are
// raised before any mutation is staged, so a returned *Error guarantees
// nothing was committed.
type Error struct {
	Code   Code
	Reason string
}

func (e *Error) Error() string { return string(e.Code) + ": " + e.Reason }

// Engine rejections.
var (
	ErrGameNotFound   = &Error{CodeNotFound, "game_not_found"}
	ErrPlayerNotFound = &Error{CodeNotFound, "player_not_found"}
	ErrCardNotFound   = &Error{CodeNotFound, "card_not_found"}
	ErrActionNotFound = &Error{CodeNotFound, "action_not_found"}
	ErrSecretNotFound = &Error{CodeNotFound, "secret_not_found"}

	ErrNotYourTurn       = &Error{CodeForbidden, "not_your_turn"}
	ErrActionNotOwned    = &Error{CodeForbidden, "action_not_owned"}
	ErrInvalidTargetSelf = &Error{CodeForbidden, "invalid_target_self"}

	ErrGameFinished      = &Error{CodeConflict, "game_finished"}
	ErrInvalidTransition = &Error{CodeConflict, "invalid_transition"}
	ErrWrongCard         = &Error{CodeConflict, "wrong_card"}
	ErrCardNotInHand     = &Error{CodeConflict, "card_not_in_hand"}
	ErrCardNotInPile     = &Error{CodeConflict, "card_not_in_pile"}
	ErrSetTooSmall       = &Error{CodeConflict, "set_too_small"}
	ErrSecretNotRevealed = &Error{CodeConflict, "secret_not_revealed"}
	ErrSecretNotHidden   = &Error{CodeConflict, "secret_not_hidden"}
	ErrActionResolved    = &Error{CodeConflict, "action_already_resolved"}
	ErrEmptyHand         = &Error{CodeConflict, "empty_hand"}
	ErrDiscardEmpty      = &Error{CodeConflict, "discard_pile_empty"}
	ErrNoRevealedSecrets = &Error{CodeConflict, "no_revealed_secrets"}
	ErrBadSelection      = &Error{CodeConflict, "bad_selection"}

	ErrActionExpired = &Error{CodeExpired, "action_expired"}
)
