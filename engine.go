// Package notify keeps a local, orderable cache of notification records
// consistent with the WorkLoop backend under three independent update
// paths: bulk pull, server-initiated push events over a long-lived
// subscription, and optimistic local mutation.
package notify

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/workloop/notify-go/internal/actorcache"
	"github.com/workloop/notify-go/internal/api"
	"github.com/workloop/notify-go/internal/realtime"
	"github.com/workloop/notify-go/internal/requestcache"
	"github.com/workloop/notify-go/internal/types"
)

// NotificationRecord and friends are re-exported so consumers never import
// internal packages.
type (
	NotificationRecord = types.NotificationRecord
	ActorProfile       = types.ActorProfile
	Kind               = types.Kind
	ChangeEvent        = types.ChangeEvent
)

// Re-exported kind constants.
const (
	KindFriendRequestReceived = types.KindFriendRequestReceived
	KindFriendRequestAccepted = types.KindFriendRequestAccepted
	KindCommentCreated        = types.KindCommentCreated
	KindMessageReceived       = types.KindMessageReceived
	KindOpportunityPosted     = types.KindOpportunityPosted
	KindMentionCreated        = types.KindMentionCreated
)

// Friend request actions accepted by RespondToFriendRequest.
const (
	ActionAccept  = types.FriendRequestAccept
	ActionDecline = types.FriendRequestDecline
)

// Engine is the notification synchronization engine: one explicitly
// constructed instance per session, initialized per signed-in user and
// disposed with Close. It composes the store, the push-channel lifecycle
// manager, and the two caches, and owns the HTTP boundary to the backend.
type Engine struct {
	baseURL   string
	apiKey    string
	sessionID string
	http      *http.Client
	log       zerolog.Logger
	cfg       Config
	clock     func() time.Time
	dialer    realtime.Dialer

	requests *requestcache.Cache
	actors   *actorcache.Cache
	store    *Store
	channel  *ChannelManager
	badge    *OpportunityBadge

	closedOnce uint32
}

// New constructs an Engine for the given backend base URL and API key.
// Additional options can be provided via functional arguments.
func New(baseURL, apiKey string, opts ...Option) *Engine {
	if baseURL == "" {
		panic("baseURL cannot be empty")
	}
	if apiKey == "" {
		panic("apiKey cannot be empty")
	}

	cfg, err := loadConfig()
	if err != nil {
		panic(err)
	}

	e := &Engine{
		baseURL:   baseURL,
		apiKey:    apiKey,
		sessionID: uuid.NewString(),
		http:      &http.Client{Timeout: 30 * time.Second},
		log:       log.Logger,
		cfg:       cfg,
		clock:     time.Now,
	}

	// Auto-enable debug via env variable without changing code.
	if debugLoggingRequested() {
		opts = append(opts, WithDebugLogging(true))
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			panic(err)
		}
	}

	// Wrap the transport so every request carries the Authorization header.
	e.wrapTransportWithAPIKey()

	if e.dialer == nil {
		e.dialer = &realtime.WSDialer{
			BaseURL:   baseURL,
			Token:     apiKey,
			SessionID: e.sessionID,
		}
	}

	be := &httpBackend{http: e.http, baseURL: e.baseURL}
	e.requests = requestcache.New(requestcache.WithClock(e.clock))
	e.actors = actorcache.New(
		func(ctx context.Context, actorID string) (*types.ActorProfile, error) {
			return api.FetchActorProfile(ctx, e.http, e.baseURL, actorID)
		},
		actorcache.WithTTL(cfg.ActorProfileTTL),
		actorcache.WithClock(e.clock),
		actorcache.WithLogger(e.log),
	)
	e.store = newStore(be, e.requests, e.actors, cfg, e.log, e.clock)
	e.channel = newChannelManager(e.dialer, e.store, cfg, e.log)
	e.channel.onResubscribed = func() {
		// The channel may have missed events while down; a cache-bypassing
		// refresh replays the authoritative page.
		if err := e.store.Refresh(context.Background(), true); err != nil {
			e.log.Debug().Err(err).Msg("post-reconnect refresh failed")
		}
	}
	e.badge = newOpportunityBadge(be, e.requests, cfg, e.clock)

	return e
}

// Initialize establishes engine state for userID: a cache-bypassing full
// refresh followed by the push subscription. An empty userID is sign-out:
// subscription closed, timers cancelled, caches and store state cleared.
// Switching users tears down the previous user's state first.
func (e *Engine) Initialize(ctx context.Context, userID string) error {
	if userID == "" {
		e.channel.Disconnect()
		e.badge.reset()
		return e.store.Initialize(ctx, "", false)
	}
	if err := e.store.Initialize(ctx, userID, false); err != nil {
		// The subscription still opens so push events recover the state the
		// failed refresh could not establish.
		e.channel.Connect(userID)
		return err
	}
	e.channel.Connect(userID)
	return nil
}

// Close disposes the engine. Safe to call multiple times.
func (e *Engine) Close() error {
	if !atomic.CompareAndSwapUint32(&e.closedOnce, 0, 1) {
		return nil
	}
	return e.Initialize(context.Background(), "")
}

// wrapTransportWithAPIKey wraps the HTTP client's transport to add the
// Authorization header to all requests using the configured API key.
func (e *Engine) wrapTransportWithAPIKey() {
	baseTransport := e.http.Transport
	if baseTransport == nil {
		baseTransport = http.DefaultTransport
	}
	e.http.Transport = &apiKeyTransport{
		base:   baseTransport,
		apiKey: e.apiKey,
	}
}

// apiKeyTransport wraps an http.RoundTripper to add the Authorization
// header automatically.
type apiKeyTransport struct {
	base   http.RoundTripper
	apiKey string
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	cloned.Header.Set("Authorization", "Bearer "+t.apiKey)
	return t.base.RoundTrip(cloned)
}

// --------------------------------------------------------------------
// Store operations - delegated
// --------------------------------------------------------------------

// Refresh pulls the latest notifications page. bypassCache forces a fetch
// even when a cached page is still fresh.
func (e *Engine) Refresh(ctx context.Context, bypassCache bool) error {
	return e.store.Refresh(ctx, bypassCache)
}

// Notifications returns the current list, newest first.
func (e *Engine) Notifications() []NotificationRecord { return e.store.Notifications() }

// UnreadCount returns the derived unread badge value.
func (e *Engine) UnreadCount() int { return e.store.UnreadCount() }

// MarkAllRead marks every notification read, remote first.
func (e *Engine) MarkAllRead(ctx context.Context) error { return e.store.MarkAllRead(ctx) }

// MarkRead marks one notification read, remote first.
func (e *Engine) MarkRead(ctx context.Context, notificationID string) error {
	return e.store.MarkRead(ctx, notificationID)
}

// ClearByKind clears notifications of one kind, remote first.
func (e *Engine) ClearByKind(ctx context.Context, kind Kind) error {
	return e.store.ClearByKind(ctx, kind)
}

// ClaimHighlights returns and empties the pending-highlight set.
func (e *Engine) ClaimHighlights() []string { return e.store.ClaimHighlights() }

// HighlightVersion returns the highlight set version counter.
func (e *Engine) HighlightVersion() uint64 { return e.store.HighlightVersion() }

// RespondToFriendRequest accepts or declines the friend request behind a
// notification, optimistically removing the matching notifications.
func (e *Engine) RespondToFriendRequest(ctx context.Context, sourceID, action string) error {
	return e.store.RespondToFriendRequest(ctx, sourceID, action)
}

// DismissBySource removes matching notifications locally with no remote
// call.
func (e *Engine) DismissBySource(kind Kind, sourceID string) {
	e.store.DismissBySource(kind, sourceID)
}

// ToggleDrawer flips the drawer flag, refreshing when it opens.
func (e *Engine) ToggleDrawer(ctx context.Context) bool { return e.store.ToggleDrawer(ctx) }

// UnseenOpportunities returns the unseen opportunity badge count.
func (e *Engine) UnseenOpportunities(ctx context.Context) (int, error) {
	return e.badge.Count(ctx, e.store.UserID())
}

// MarkOpportunitiesSeen resets the opportunity badge watermark.
func (e *Engine) MarkOpportunitiesSeen() { e.badge.MarkSeen(e.store.UserID()) }

// Phase returns the push-channel connection phase.
func (e *Engine) Phase() Phase { return e.channel.Phase() }

// --------------------------------------------------------------------
// HTTP backend
// --------------------------------------------------------------------

// httpBackend implements the remote fetch/command boundary over the
// platform's HTTP API.
type httpBackend struct {
	http    *http.Client
	baseURL string
}

func (b *httpBackend) FetchNotificationsPage(ctx context.Context, page types.PageRequest) ([]types.NotificationRow, error) {
	return api.FetchNotificationsPage(ctx, b.http, b.baseURL, page)
}

func (b *httpBackend) MarkAllNotificationsRead(ctx context.Context) error {
	return api.MarkAllNotificationsRead(ctx, b.http, b.baseURL)
}

func (b *httpBackend) MarkNotificationRead(ctx context.Context, notificationID string) error {
	return api.MarkNotificationRead(ctx, b.http, b.baseURL, notificationID)
}

func (b *httpBackend) ClearNotifications(ctx context.Context, kind types.Kind) error {
	return api.ClearNotifications(ctx, b.http, b.baseURL, kind)
}

func (b *httpBackend) UpdateFriendRequest(ctx context.Context, requestID, status string) error {
	return api.UpdateFriendRequest(ctx, b.http, b.baseURL, requestID, status)
}

func (b *httpBackend) FetchUnseenOpportunityCount(ctx context.Context, since time.Time) (int, error) {
	return api.FetchUnseenOpportunityCount(ctx, b.http, b.baseURL, since)
}
