package notify

import (
	"fmt"
	"sort"

	"github.com/workloop/notify-go/internal/types"
)

// HighlightedKind is the notification kind whose source entities are
// tracked in the pending-highlight set. Comment notifications flag their
// comment as newly-notified even after the notification itself is read.
const HighlightedKind = types.KindCommentCreated

// pageKey identifies one cached notifications page fetch.
func pageKey(userID string, pageSize int) string {
	return fmt.Sprintf("notifications:page:%s:%d:0", userID, pageSize)
}

// upsert merges one incoming record into list and returns the result,
// newest first. A record with ClearedAt set removes any existing record
// with the same ID; otherwise the record replaces its predecessor in place
// or is inserted. The input slice is not modified.
//
// upsert is pure with respect to (list, rec) so the pull, push, and
// optimistic-edit writers can all funnel through it: feeding the same
// record twice yields the same list.
func upsert(list []types.NotificationRecord, rec types.NotificationRecord) []types.NotificationRecord {
	out := make([]types.NotificationRecord, 0, len(list)+1)
	for _, existing := range list {
		if existing.ID != rec.ID {
			out = append(out, existing)
		}
	}
	if !rec.Cleared() {
		out = append(out, rec)
	}
	sortNewestFirst(out)
	return out
}

// sortNewestFirst restores the createdAt-descending order invariant.
func sortNewestFirst(list []types.NotificationRecord) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}

// countUnread derives the unread badge value from the list. The count is
// never stored as an independently mutated counter.
func countUnread(list []types.NotificationRecord) int {
	n := 0
	for _, rec := range list {
		if rec.Unread() {
			n++
		}
	}
	return n
}

// highlightKeys derives the pending-highlight membership from the list:
// source entity identifiers of currently unread, uncleared records of the
// highlighted kind.
func highlightKeys(list []types.NotificationRecord) map[string]struct{} {
	keys := make(map[string]struct{})
	for _, rec := range list {
		if rec.Kind == HighlightedKind && rec.Unread() && rec.SourceEntityID != "" {
			keys[rec.SourceEntityID] = struct{}{}
		}
	}
	return keys
}

// sameKeys reports whether two highlight sets have identical membership.
func sameKeys(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
