package notify

import (
	"errors"

	interrors "github.com/workloop/notify-go/internal/errors"
)

// ErrNotInitialized is returned by store operations before Initialize has
// established a signed-in user, or after sign-out.
var ErrNotInitialized = errors.New("engine not initialized for a user")

// ErrInvalidAction is returned by RespondToFriendRequest for actions other
// than ActionAccept and ActionDecline.
var ErrInvalidAction = errors.New("invalid friend request action")

// IsRecoverable reports whether err represents a transient failure worth
// retrying (network errors, timeouts, rate limits, server errors).
func IsRecoverable(err error) bool { return interrors.IsRecoverable(err) }

// IsIrrecoverable reports whether err represents a permanent failure that
// retrying cannot fix (client-side request errors other than 408/429).
func IsIrrecoverable(err error) bool { return interrors.IsIrrecoverable(err) }
