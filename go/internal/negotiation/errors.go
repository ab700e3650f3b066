package negotiation

import "errors"

var (
	// ErrNotYourTurn is returned when the caller is not the party the order is waiting on
	ErrNotYourTurn = errors.New("not your turn")
	// ErrCannotCancelInProgress is returned when a withdrawal is attempted after the order left new/pending
	ErrCannotCancelInProgress = errors.New("cannot cancel in-progress order")
	// ErrInvalidCounter is returned for a counter-offer with a non-positive price or an out of range quantity
	ErrInvalidCounter = errors.New("invalid counter-offer")
	// ErrIllegalTransition is returned when the action does not apply to the current status
	ErrIllegalTransition = errors.New("illegal transition")
	// ErrTerminal is returned for any negotiation action on a finished order
	ErrTerminal = errors.New("order is finished")
	// ErrNotParticipant is returned when the user is neither buyer nor seller
	ErrNotParticipant = errors.New("user is not a party to this order")
)

// IsRejectedLocally reports whether err came from the local turn/transition
// checks, meaning nothing was sent to the marketplace.
func IsRejectedLocally(err error) bool {
	return errors.Is(err, ErrNotYourTurn) ||
		errors.Is(err, ErrCannotCancelInProgress) ||
		errors.Is(err, ErrInvalidCounter) ||
		errors.Is(err, ErrIllegalTransition) ||
		errors.Is(err, ErrTerminal) ||
		errors.Is(err, ErrNotParticipant)
}
