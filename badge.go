package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/workloop/notify-go/internal/requestcache"
)

// OpportunityBadge tracks the unseen-opportunities counter shown next to
// the opportunities board entry. It is a watermark counter, not a
// notification list: the backend counts postings newer than the user's
// last visit and the watermark advances locally when the board is opened.
type OpportunityBadge struct {
	backend  backend
	requests *requestcache.Cache
	ttl      time.Duration
	clock    func() time.Time

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

func newOpportunityBadge(b backend, requests *requestcache.Cache, cfg Config, clock func() time.Time) *OpportunityBadge {
	return &OpportunityBadge{
		backend:  b,
		requests: requests,
		ttl:      cfg.RefreshTTL,
		clock:    clock,
		lastSeen: make(map[string]time.Time),
	}
}

// Count returns the number of opportunities posted since the user last
// opened the board. Results are cached alongside notification pages and
// deduplicated across concurrent callers.
func (ob *OpportunityBadge) Count(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, ErrNotInitialized
	}
	ob.mu.Lock()
	since := ob.lastSeen[userID]
	ob.mu.Unlock()

	key := fmt.Sprintf("opportunities:unseen:%s:%d", userID, since.Unix())
	return requestcache.Dedupe(ctx, ob.requests, key, ob.ttl, func(ctx context.Context) (int, error) {
		return ob.backend.FetchUnseenOpportunityCount(ctx, since)
	})
}

// MarkSeen advances the user's watermark to now, zeroing the badge until
// new opportunities are posted.
func (ob *OpportunityBadge) MarkSeen(userID string) {
	if userID == "" {
		return
	}
	ob.mu.Lock()
	ob.lastSeen[userID] = ob.clock()
	ob.mu.Unlock()
}

// reset drops all watermarks. Called on sign-out.
func (ob *OpportunityBadge) reset() {
	ob.mu.Lock()
	ob.lastSeen = make(map[string]time.Time)
	ob.mu.Unlock()
}
