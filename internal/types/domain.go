package types

import "time"

// ------------------------------
// Core Domain Entities
// ------------------------------

// Kind is the closed set of notification kinds the platform emits. It
// determines how a consumer interprets a record's Metadata payload.
type Kind string

const (
	KindFriendRequestReceived Kind = "friend_request_received"
	KindFriendRequestAccepted Kind = "friend_request_accepted"
	KindCommentCreated        Kind = "comment_created"
	KindMessageReceived       Kind = "message_received"
	KindOpportunityPosted     Kind = "opportunity_posted"
	KindMentionCreated        Kind = "mention_created"
)

// ActorProfile is the minimal denormalized snapshot of the user who
// triggered a notification. All fields may be empty when the actor is
// unknown at observation time.
type ActorProfile struct {
	FullName     string `json:"fullName,omitempty"`
	Role         string `json:"role,omitempty"`
	Username     string `json:"username,omitempty"`
	AvatarURL    string `json:"avatarUrl,omitempty"`
	BaseLocation string `json:"baseLocation,omitempty"`
}

// NotificationRecord is one observed notification.
//
// ReadAt is set once the user has consumed the notification, SeenAt once it
// has been surfaced, and ClearedAt once the user has dismissed it from the
// list entirely. ClearedAt is terminal: a cleared record never re-enters
// the list.
type NotificationRecord struct {
	ID             string            `json:"id"`
	Kind           Kind              `json:"kind"`
	ActorID        string            `json:"actorId,omitempty"`
	SourceEntityID string            `json:"sourceEntityId,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	TargetURL      string            `json:"targetUrl,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	ReadAt         *time.Time        `json:"readAt,omitempty"`
	SeenAt         *time.Time        `json:"seenAt,omitempty"`
	ClearedAt      *time.Time        `json:"clearedAt,omitempty"`
	Actor          ActorProfile      `json:"actor"`
}

// Unread reports whether the record still counts toward the unread badge.
func (r NotificationRecord) Unread() bool {
	return r.ReadAt == nil && r.ClearedAt == nil
}

// Cleared reports whether the record has been dismissed.
func (r NotificationRecord) Cleared() bool {
	return r.ClearedAt != nil
}

// NotificationRow is the raw row shape delivered over the push channel and
// by the page fetch, before the actor profile has been resolved.
type NotificationRow struct {
	ID             string            `json:"id"`
	Kind           Kind              `json:"kind"`
	RecipientID    string            `json:"recipientId"`
	ActorID        string            `json:"actorId,omitempty"`
	SourceEntityID string            `json:"sourceEntityId,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	TargetURL      string            `json:"targetUrl,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	ReadAt         *time.Time        `json:"readAt,omitempty"`
	SeenAt         *time.Time        `json:"seenAt,omitempty"`
	ClearedAt      *time.Time        `json:"clearedAt,omitempty"`
}

// Record converts a row into a NotificationRecord carrying the given actor
// snapshot.
func (w NotificationRow) Record(actor ActorProfile) NotificationRecord {
	return NotificationRecord{
		ID:             w.ID,
		Kind:           w.Kind,
		ActorID:        w.ActorID,
		SourceEntityID: w.SourceEntityID,
		Metadata:       w.Metadata,
		TargetURL:      w.TargetURL,
		CreatedAt:      w.CreatedAt,
		ReadAt:         w.ReadAt,
		SeenAt:         w.SeenAt,
		ClearedAt:      w.ClearedAt,
		Actor:          actor,
	}
}

// ChangeEvent is one push-channel change for a notification row. New
// carries the row after the change; Old carries the row before it. A
// deletion arrives with Old set and New nil.
type ChangeEvent struct {
	New *NotificationRow `json:"new,omitempty"`
	Old *NotificationRow `json:"old,omitempty"`
}

// Row resolves the effective row for reconciliation. Deletions surface as
// the old row with ClearedAt forced, so the reconcile path removes them
// without a dedicated delete branch.
func (e ChangeEvent) Row(now time.Time) (NotificationRow, bool) {
	if e.New != nil {
		return *e.New, true
	}
	if e.Old != nil {
		row := *e.Old
		if row.ClearedAt == nil {
			row.ClearedAt = &now
		}
		return row, true
	}
	return NotificationRow{}, false
}
