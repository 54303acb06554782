package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	sdkerrors "github.com/workloop/notify-go/internal/errors"
	"github.com/workloop/notify-go/internal/types"
)

// FetchActorProfile retrieves the minimal profile snapshot for actorID.
// Returns types.ErrNotFound when the actor no longer exists.
func FetchActorProfile(ctx context.Context, httpClient types.HTTPClient, baseURL, actorID string) (*types.ActorProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := types.ValidateIDPresent(actorID, "actorId"); err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/v1/profiles/%s/summary", baseURL, url.PathEscape(actorID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, sdkerrors.NewNetworkError("fetch actor profile", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, types.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classify(resp, "fetch actor profile")
	}

	var out types.ActorProfileResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Profile, nil
}
