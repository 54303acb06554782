package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/workloop/notify-go/internal/actorcache"
	"github.com/workloop/notify-go/internal/requestcache"
	"github.com/workloop/notify-go/internal/types"
)

// backend is the remote fetch/command boundary the store depends on. The
// Engine provides the HTTP implementation; tests provide stubs.
type backend interface {
	FetchNotificationsPage(ctx context.Context, page types.PageRequest) ([]types.NotificationRow, error)
	MarkAllNotificationsRead(ctx context.Context) error
	MarkNotificationRead(ctx context.Context, notificationID string) error
	ClearNotifications(ctx context.Context, kind types.Kind) error
	UpdateFriendRequest(ctx context.Context, requestID, status string) error
	FetchUnseenOpportunityCount(ctx context.Context, since time.Time) (int, error)
}

// Store owns the canonical in-memory notification list, the derived unread
// count, and the pending-highlight set. Every writer (bulk pull, push
// event, optimistic local edit) funnels through the same reconciliation
// path, so the invariants hold regardless of arrival order:
//
//   - at most one record per ID
//   - sorted by createdAt descending after any mutation
//   - cleared records never appear
//   - unreadCount always equals count(readAt == nil && clearedAt == nil)
//   - highlight membership is recomputable from the list at any time
//
// All methods are safe for concurrent use; each runs to completion under
// one mutex, so reconciliation observes a consistent list.
type Store struct {
	log      zerolog.Logger
	clock    func() time.Time
	backend  backend
	requests *requestcache.Cache
	actors   *actorcache.Cache

	pageSize     int
	refreshTTL   time.Duration
	respondDelay time.Duration

	mu               sync.Mutex
	userID           string
	epoch            uint64
	records          []types.NotificationRecord
	unread           int
	highlights       map[string]struct{}
	highlightVersion uint64
	drawerOpen       bool
	delayedRefresh   *time.Timer
}

func newStore(b backend, requests *requestcache.Cache, actors *actorcache.Cache, cfg Config, log zerolog.Logger, clock func() time.Time) *Store {
	return &Store{
		log:          log.With().Str("component", "store").Logger(),
		clock:        clock,
		backend:      b,
		requests:     requests,
		actors:       actors,
		pageSize:     cfg.PageSize,
		refreshTTL:   cfg.RefreshTTL,
		respondDelay: cfg.RespondRefreshDelay,
		highlights:   make(map[string]struct{}),
	}
}

// Initialize establishes state for userID. It is a no-op when the store is
// already initialized for the same user, unless force is set (the reconnect
// and connectivity paths use force). An empty userID is sign-out: all state
// is dropped, caches cleared, and pending timers cancelled. Initialization
// always performs a cache-bypassing refresh.
func (s *Store) Initialize(ctx context.Context, userID string, force bool) error {
	s.mu.Lock()
	if userID == "" {
		s.teardownLocked()
		s.mu.Unlock()
		return nil
	}
	if s.userID == userID && !force {
		s.mu.Unlock()
		return nil
	}
	if s.userID != userID {
		// Switching users: never leak the previous user's records or actor
		// metadata into the new session.
		s.teardownLocked()
		s.userID = userID
	}
	s.mu.Unlock()

	s.log.Info().Str("user_id", userID).Bool("force", force).Msg("store initialized")
	return s.Refresh(ctx, true)
}

// teardownLocked drops all per-user state and renders in-flight callbacks
// inert by advancing the epoch.
func (s *Store) teardownLocked() {
	s.epoch++
	s.userID = ""
	s.records = nil
	s.unread = 0
	if len(s.highlights) > 0 {
		s.highlightVersion++
	}
	s.highlights = make(map[string]struct{})
	s.drawerOpen = false
	if s.delayedRefresh != nil {
		s.delayedRefresh.Stop()
		s.delayedRefresh = nil
	}
	s.requests.Clear()
	s.actors.Clear()
	unreadGauge.Set(0)
}

// Refresh pulls one newest-first page of non-cleared notifications through
// the request cache, replaces the in-memory list, and recomputes the unread
// count and highlight set from scratch. bypassCache forces a fresh fetch.
func (s *Store) Refresh(ctx context.Context, bypassCache bool) error {
	s.mu.Lock()
	userID, epoch := s.userID, s.epoch
	pageSize := s.pageSize
	s.mu.Unlock()
	if userID == "" {
		return ErrNotInitialized
	}

	key := pageKey(userID, pageSize)
	if bypassCache {
		s.requests.Invalidate(key)
	}
	rows, err := requestcache.Dedupe(ctx, s.requests, key, s.refreshTTL, func(ctx context.Context) ([]types.NotificationRow, error) {
		return s.backend.FetchNotificationsPage(ctx, types.PageRequest{Limit: pageSize})
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("notifications refresh failed")
		return err
	}
	refreshesTotal.Inc()

	records := make([]types.NotificationRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.Record(s.actors.Resolve(ctx, row.ActorID)))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || s.userID != userID {
		// The store was torn down or switched users while the fetch was in
		// flight; the result must not mutate the new state.
		return nil
	}
	sortNewestFirst(records)
	s.records = records
	s.recomputeLocked()
	return nil
}

// ApplyEvent normalizes one push-channel change event and feeds it through
// reconciliation. Events may arrive out of order relative to a concurrent
// pull; upsert-by-ID makes the merge idempotent.
func (s *Store) ApplyEvent(ctx context.Context, event types.ChangeEvent) {
	s.mu.Lock()
	userID, epoch := s.userID, s.epoch
	s.mu.Unlock()
	if userID == "" {
		return
	}

	row, ok := event.Row(s.clock())
	if !ok {
		return
	}
	if row.RecipientID != "" && row.RecipientID != userID {
		return
	}
	rec := row.Record(s.actors.Resolve(ctx, row.ActorID))
	eventsReceivedTotal.WithLabelValues(string(rec.Kind)).Inc()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || s.userID != userID {
		return
	}
	s.applyLocked(rec)
}

// applyLocked is the reconciliation chokepoint: upsert-by-ID, re-sort, then
// recompute the derived unread count and highlight membership. The cached
// page predates the event, so it must not satisfy a later non-forced
// refresh.
func (s *Store) applyLocked(rec types.NotificationRecord) {
	s.records = upsert(s.records, rec)
	s.invalidatePageLocked()
	s.recomputeLocked()
}

// recomputeLocked re-derives unread count and highlight membership from the
// current list, bumping the highlight version only on an actual membership
// change.
func (s *Store) recomputeLocked() {
	s.unread = countUnread(s.records)
	unreadGauge.Set(float64(s.unread))

	next := highlightKeys(s.records)
	if !sameKeys(s.highlights, next) {
		s.highlights = next
		s.highlightVersion++
	}
}

// MarkAllRead issues the remote command and, only on success, sets
// readAt/seenAt locally for every record that does not already carry them.
// An existing earlier readAt is never overwritten. On failure the local
// list is left unchanged and the error surfaces to the caller.
func (s *Store) MarkAllRead(ctx context.Context) error {
	s.mu.Lock()
	userID, epoch := s.userID, s.epoch
	s.mu.Unlock()
	if userID == "" {
		return ErrNotInitialized
	}

	if err := s.backend.MarkAllNotificationsRead(ctx); err != nil {
		s.log.Warn().Err(err).Msg("mark all read failed")
		return err
	}

	now := s.clock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || s.userID != userID {
		return nil
	}
	for i := range s.records {
		if s.records[i].ReadAt == nil {
			t := now
			s.records[i].ReadAt = &t
		}
		if s.records[i].SeenAt == nil {
			t := now
			s.records[i].SeenAt = &t
		}
	}
	s.invalidatePageLocked()
	s.recomputeLocked()
	return nil
}

// MarkRead marks a single notification read, confirmed remotely first.
func (s *Store) MarkRead(ctx context.Context, notificationID string) error {
	s.mu.Lock()
	userID, epoch := s.userID, s.epoch
	s.mu.Unlock()
	if userID == "" {
		return ErrNotInitialized
	}

	if err := s.backend.MarkNotificationRead(ctx, notificationID); err != nil {
		return err
	}

	now := s.clock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || s.userID != userID {
		return nil
	}
	for i := range s.records {
		if s.records[i].ID != notificationID {
			continue
		}
		if s.records[i].ReadAt == nil {
			t := now
			s.records[i].ReadAt = &t
		}
		if s.records[i].SeenAt == nil {
			t := now
			s.records[i].SeenAt = &t
		}
	}
	s.invalidatePageLocked()
	s.recomputeLocked()
	return nil
}

// ClearByKind issues the remote clear command scoped to kind and, on
// success, removes all local records of that kind. Highlight membership is
// recomputed from the surviving records.
func (s *Store) ClearByKind(ctx context.Context, kind types.Kind) error {
	s.mu.Lock()
	userID, epoch := s.userID, s.epoch
	s.mu.Unlock()
	if userID == "" {
		return ErrNotInitialized
	}

	if err := s.backend.ClearNotifications(ctx, kind); err != nil {
		s.log.Warn().Err(err).Str("kind", string(kind)).Msg("clear failed")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || s.userID != userID {
		return nil
	}
	kept := s.records[:0]
	for _, rec := range s.records {
		if kind != "" && rec.Kind != kind {
			kept = append(kept, rec)
		}
	}
	s.records = kept
	s.invalidatePageLocked()
	s.recomputeLocked()
	return nil
}

// ClaimHighlights returns the pending-highlight entity identifiers and
// atomically empties the set, so a consumer displaying them does not
// re-display them on the next render pass.
func (s *Store) ClaimHighlights() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.highlights) == 0 {
		return nil
	}
	keys := make([]string, 0, len(s.highlights))
	for k := range s.highlights {
		keys = append(keys, k)
	}
	s.highlights = make(map[string]struct{})
	s.highlightVersion++
	return keys
}

// RespondToFriendRequest performs the remote state change on the friendship
// entity the notification points at, optimistically removing any local
// notification whose sourceEntityId matches. A short delayed forced refresh
// reconciles with server-side side effects that are not synchronous with
// the command, such as a trigger-created follow-up notification.
func (s *Store) RespondToFriendRequest(ctx context.Context, sourceID, action string) error {
	if action != types.FriendRequestAccept && action != types.FriendRequestDecline {
		return ErrInvalidAction
	}
	s.mu.Lock()
	userID, epoch := s.userID, s.epoch
	s.mu.Unlock()
	if userID == "" {
		return ErrNotInitialized
	}

	// Optimistic removal before the command resolves; the delayed refresh
	// restores the record if the command fails.
	s.mu.Lock()
	if s.epoch == epoch {
		s.removeBySourceLocked("", sourceID)
	}
	s.mu.Unlock()

	err := s.backend.UpdateFriendRequest(ctx, sourceID, action)
	s.scheduleForcedRefresh(epoch)
	if err != nil {
		s.log.Warn().Err(err).Str("source_id", sourceID).Msg("friend request update failed")
		return err
	}
	return nil
}

// DismissBySource removes notifications matching (kind, sourceID) locally
// with no remote call. Used when a consumer already knows, from a separate
// confirmed mutation, that such notifications are stale.
func (s *Store) DismissBySource(kind types.Kind, sourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeBySourceLocked(kind, sourceID)
}

// removeBySourceLocked drops records whose source entity matches. An empty
// kind matches every kind.
func (s *Store) removeBySourceLocked(kind types.Kind, sourceID string) {
	if sourceID == "" {
		return
	}
	kept := s.records[:0]
	for _, rec := range s.records {
		if rec.SourceEntityID == sourceID && (kind == "" || rec.Kind == kind) {
			continue
		}
		kept = append(kept, rec)
	}
	s.records = kept
	s.invalidatePageLocked()
	s.recomputeLocked()
}

// invalidatePageLocked drops the cached page after a local mutation so a
// non-bypassing refresh cannot serve pre-mutation rows.
func (s *Store) invalidatePageLocked() {
	if s.userID != "" {
		s.requests.Invalidate(pageKey(s.userID, s.pageSize))
	}
}

// scheduleForcedRefresh arms the delayed reconciliation refresh, replacing
// any previously pending one.
func (s *Store) scheduleForcedRefresh(epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return
	}
	if s.delayedRefresh != nil {
		s.delayedRefresh.Stop()
	}
	s.delayedRefresh = time.AfterFunc(s.respondDelay, func() {
		s.mu.Lock()
		stale := s.epoch != epoch
		s.mu.Unlock()
		if stale {
			return
		}
		if err := s.Refresh(context.Background(), true); err != nil {
			s.log.Debug().Err(err).Msg("delayed refresh failed")
		}
	})
}

// ToggleDrawer flips the drawer-open flag and reports the new state. A
// refresh is triggered when the drawer opens.
func (s *Store) ToggleDrawer(ctx context.Context) bool {
	s.mu.Lock()
	s.drawerOpen = !s.drawerOpen
	open := s.drawerOpen
	s.mu.Unlock()

	if open {
		if err := s.Refresh(ctx, false); err != nil {
			s.log.Debug().Err(err).Msg("drawer refresh failed")
		}
	}
	return open
}

// Notifications returns a copy of the current list, newest first.
func (s *Store) Notifications() []types.NotificationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.NotificationRecord, len(s.records))
	copy(out, s.records)
	return out
}

// UnreadCount returns the derived unread badge value.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// HighlightVersion returns the monotonically increasing highlight set
// version. Consumers compare versions instead of set identity to detect
// changes.
func (s *Store) HighlightVersion() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.highlightVersion
}

// Highlights returns the pending-highlight keys without claiming them.
func (s *Store) Highlights() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.highlights))
	for k := range s.highlights {
		keys = append(keys, k)
	}
	return keys
}

// DrawerOpen reports whether the drawer flag is set.
func (s *Store) DrawerOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drawerOpen
}

// UserID returns the user the store is initialized for, or "".
func (s *Store) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}
