package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	sdkerrors "github.com/workloop/notify-go/internal/errors"
	"github.com/workloop/notify-go/internal/types"
)

// FetchUnseenOpportunityCount returns the number of opportunity postings
// created after since that the user has not yet viewed.
func FetchUnseenOpportunityCount(ctx context.Context, httpClient types.HTTPClient, baseURL string, since time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	endpoint := fmt.Sprintf("%s/v1/opportunities/unseen-count", baseURL)
	if !since.IsZero() {
		endpoint = fmt.Sprintf("%s?since=%s", endpoint, since.UTC().Format(time.RFC3339))
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return 0, sdkerrors.NewNetworkError("fetch unseen opportunity count", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, classify(resp, "fetch unseen opportunity count")
	}

	var out types.OpportunityCountResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	return out.Count, nil
}
