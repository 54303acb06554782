package types

// ------------------------------
// Request Types
// ------------------------------

// PageRequest bounds one notifications page fetch. Pages are newest first
// and never include cleared records.
type PageRequest struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ClearRequest scopes a clear command. An empty Kind clears every kind.
type ClearRequest struct {
	Kind Kind `json:"kind,omitempty"`
}

// FriendRequestUpdate mutates the friendship entity a notification points
// at, not the notification itself.
type FriendRequestUpdate struct {
	Status string `json:"status"`
}

// FriendRequestAction values accepted by the backend.
const (
	FriendRequestAccept  = "accepted"
	FriendRequestDecline = "declined"
)
