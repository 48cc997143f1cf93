package frontier

import "errors"

var (
	// ErrEmpty is returned by Dequeue when no eligible entry is pending.
	ErrEmpty = errors.New("frontier is empty")

	// ErrCorrupt is returned by Dequeue when the pending index disagrees
	// with the per-domain queues. The frontier should not be used after
	// this error.
	ErrCorrupt = errors.New("frontier state is corrupt")
)
