package types

import (
	"fmt"
	"net/http"
)

// ------------------------------
// Shared Interfaces
// ------------------------------

// HTTPClient interface for dependency injection
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ------------------------------
// Shared Errors
// ------------------------------

// ErrNotFound is returned when a looked-up entity does not exist.
var ErrNotFound = fmt.Errorf("entity not found")

// ------------------------------
// Validation
// ------------------------------

// ValidateIDPresent rejects empty identifiers before a request is issued.
func ValidateIDPresent(id, field string) error {
	if id == "" {
		return fmt.Errorf("%s must not be empty", field)
	}
	return nil
}

// ValidateKind rejects values outside the closed kind enumeration.
func ValidateKind(k Kind) error {
	switch k {
	case KindFriendRequestReceived, KindFriendRequestAccepted,
		KindCommentCreated, KindMessageReceived,
		KindOpportunityPosted, KindMentionCreated:
		return nil
	}
	return fmt.Errorf("unknown notification kind %q", k)
}

// ValidatePage rejects out-of-range paging parameters.
func ValidatePage(req PageRequest) error {
	if req.Limit <= 0 {
		return fmt.Errorf("limit must be > 0")
	}
	if req.Offset < 0 {
		return fmt.Errorf("offset must be >= 0")
	}
	return nil
}
