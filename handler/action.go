package handler

import (
	"github.com/blockberries/cookiejar"
)

// Action is the closed set of operations on a cookie jar.
type Action uint8

const (
	// Increment adds the amount to the jar ("bake").
	Increment Action = iota + 1
	// Decrement removes the amount from the jar ("eat").
	Decrement
	// Reset empties the jar ("clear"). The amount is ignored.
	Reset
)

func (a Action) String() string {
	switch a {
	case Increment:
		return "increment"
	case Decrement:
		return "decrement"
	case Reset:
		return "reset"
	default:
		return "unknown"
	}
}

// ParseAction maps an action name onto the closed enum. The client verbs
// bake, eat and clear are accepted as aliases. Any other name rejects the
// transaction.
func ParseAction(name string) (Action, error) {
	switch name {
	case "increment", "bake":
		return Increment, nil
	case "decrement", "eat":
		return Decrement, nil
	case "reset", "clear":
		return Reset, nil
	default:
		return 0, cookiejar.NewInvalidTransaction("unknown action %q", name)
	}
}
