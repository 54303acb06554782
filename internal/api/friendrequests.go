package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	sdkerrors "github.com/workloop/notify-go/internal/errors"
	"github.com/workloop/notify-go/internal/types"
)

// UpdateFriendRequest mutates the friendship entity a notification points
// at. This is the only write the engine performs on a related entity rather
// than a notification row.
func UpdateFriendRequest(ctx context.Context, httpClient types.HTTPClient, baseURL, requestID, status string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := types.ValidateIDPresent(requestID, "requestId"); err != nil {
		return err
	}
	if status != types.FriendRequestAccept && status != types.FriendRequestDecline {
		return fmt.Errorf("unknown friend request status %q", status)
	}
	body, err := json.Marshal(types.FriendRequestUpdate{Status: status})
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/v1/friend-requests/%s", baseURL, url.PathEscape(requestID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return sdkerrors.NewNetworkError("update friend request", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return classify(resp, "update friend request")
	}
	return nil
}
