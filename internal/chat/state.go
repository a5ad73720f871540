package chat

import (
	"fmt"
	"slices"
)

var validTransitions = map[DeliveryState][]DeliveryState{
	Composing: {Pending},
	Pending:   {Sent, Failed},
	Failed:    {Pending},
	Sent:      {},
}

// ValidTransition reports whether a message may move from one delivery state to another.
func ValidTransition(from, to DeliveryState) bool {
	return slices.Contains(validTransitions[from], to)
}

// Transition returns an error when from -> to is not allowed.
func Transition(from, to DeliveryState) error {
	if !ValidTransition(from, to) {
		return fmt.Errorf("invalid delivery transition from %s to %s", from, to)
	}
	return nil
}
