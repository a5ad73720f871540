package chat

import (
	"slices"
	"strconv"
)

// Less orders messages by creation time ascending, breaking ties by id.
func Less(a, b Message) bool {
	return Compare(a, b) < 0
}

// Compare returns -1, 0 or 1 following the thread order.
func Compare(a, b Message) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return CompareIDs(a.ID, b.ID)
}

// CompareIDs compares numerically when both ids are integers, lexically otherwise.
func CompareIDs(a, b string) int {
	ai, aErr := strconv.ParseInt(a, 10, 64)
	bi, bErr := strconv.ParseInt(b, 10, 64)
	if aErr == nil && bErr == nil {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		default:
			return 0
		}
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// SortMessages sorts msgs in thread order.
func SortMessages(msgs []Message) {
	slices.SortStableFunc(msgs, Compare)
}

// Newest returns a newest-first copy of msgs, which must already be in thread order.
func Newest(msgs []Message) []Message {
	out := slices.Clone(msgs)
	slices.Reverse(out)
	return out
}
