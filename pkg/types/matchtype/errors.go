package matchtype

import "errors"

var (
	// ErrLockBusy means another operation is in flight for the same user.
	// Callers should retry shortly; this is contention, not a fault.
	ErrLockBusy = errors.New("lock busy")

	// ErrLockMismatch means a release was attempted with a token that no
	// longer owns the lock (expired and re-acquired by someone else).
	ErrLockMismatch = errors.New("lock not held by this token")

	// ErrAlreadyPaired means the user already has an active conversation.
	ErrAlreadyPaired = errors.New("user already has an active pair")

	// ErrAlreadySearching means the user already has a queue entry.
	ErrAlreadySearching = errors.New("user is already searching")

	// ErrNothingToStop means the user has neither a queue entry nor an
	// active pair.
	ErrNothingToStop = errors.New("nothing to stop")

	// ErrPairEnded means the pair was already ended; ending again is a
	// no-op precondition failure, never a state change.
	ErrPairEnded = errors.New("pair already ended")

	// ErrPairNotFound means no pair exists with the given id.
	ErrPairNotFound = errors.New("pair not found")

	// ErrNotSearching means the user has no queue entry to act on.
	ErrNotSearching = errors.New("user is not searching")

	// ErrUserBlocked means the user is banned or soft-banned and may not
	// enter the queue.
	ErrUserBlocked = errors.New("user is blocked from matching")
)
