package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	sdkerrors "github.com/workloop/notify-go/internal/errors"
	"github.com/workloop/notify-go/internal/types"
)

// FetchNotificationsPage retrieves one newest-first page of non-cleared
// notifications for the signed-in user.
func FetchNotificationsPage(ctx context.Context, httpClient types.HTTPClient, baseURL string, page types.PageRequest) ([]types.NotificationRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := types.ValidatePage(page); err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/v1/notifications?limit=%d&offset=%d", baseURL, page.Limit, page.Offset)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, sdkerrors.NewNetworkError("fetch notifications page", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, classify(resp, "fetch notifications page")
	}

	var out types.PageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Notifications, nil
}

// MarkAllNotificationsRead issues the server-side "mark all read" command.
func MarkAllNotificationsRead(ctx context.Context, httpClient types.HTTPClient, baseURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/v1/notifications/read-all", baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return sdkerrors.NewNetworkError("mark all read", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return classify(resp, "mark all read")
	}
	return nil
}

// MarkNotificationRead marks a single notification as read.
func MarkNotificationRead(ctx context.Context, httpClient types.HTTPClient, baseURL, notificationID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := types.ValidateIDPresent(notificationID, "notificationId"); err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/v1/notifications/%s/read", baseURL, url.PathEscape(notificationID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return sdkerrors.NewNetworkError("mark read", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return classify(resp, "mark read")
	}
	return nil
}

// ClearNotifications issues the server-side clear command, optionally
// scoped to one kind.
func ClearNotifications(ctx context.Context, httpClient types.HTTPClient, baseURL string, kind types.Kind) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if kind != "" {
		if err := types.ValidateKind(kind); err != nil {
			return err
		}
	}
	body, err := json.Marshal(types.ClearRequest{Kind: kind})
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/v1/notifications/clear", baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return sdkerrors.NewNetworkError("clear notifications", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return classify(resp, "clear notifications")
	}
	return nil
}

// classify drains the response body into a classified error.
func classify(resp *http.Response, operation string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return sdkerrors.NewHTTPError(resp.StatusCode, string(body), operation)
}
