package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sdkerrors "github.com/workloop/notify-go/internal/errors"
	"github.com/workloop/notify-go/internal/types"
)

func TestFetchNotificationsPage_Success(t *testing.T) {
	t.Parallel()
	resp := types.PageResponse{
		Notifications: []types.NotificationRow{{ID: "n1", Kind: types.KindCommentCreated}},
		Count:         1,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/notifications" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("limit"); got != "20" {
			t.Errorf("limit = %s", got)
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()
	got, err := FetchNotificationsPage(context.Background(), srv.Client(), srv.URL, types.PageRequest{Limit: 20})
	if err != nil || len(got) != 1 || got[0].ID != "n1" {
		t.Fatalf("FetchNotificationsPage unexpected: got=%+v err=%v", got, err)
	}
}

func TestFetchNotificationsPage_InvalidPage(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	if _, err := FetchNotificationsPage(context.Background(), srv.Client(), srv.URL, types.PageRequest{Limit: 0}); err == nil {
		t.Fatal("expected validation error for zero limit")
	}
	if _, err := FetchNotificationsPage(context.Background(), srv.Client(), srv.URL, types.PageRequest{Limit: 10, Offset: -1}); err == nil {
		t.Fatal("expected validation error for negative offset")
	}
}

func TestFetchNotificationsPage_ServerErrorIsRecoverable(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	_, err := FetchNotificationsPage(context.Background(), srv.Client(), srv.URL, types.PageRequest{Limit: 20})
	if err == nil {
		t.Fatal("expected error for 503")
	}
	if !sdkerrors.IsRecoverable(err) {
		t.Fatalf("503 should classify as recoverable, got %v", err)
	}
}

func TestFetchNotificationsPage_ClientErrorIsIrrecoverable(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()
	_, err := FetchNotificationsPage(context.Background(), srv.Client(), srv.URL, types.PageRequest{Limit: 20})
	if !sdkerrors.IsIrrecoverable(err) {
		t.Fatalf("400 should classify as irrecoverable, got %v", err)
	}
}

func TestMarkAllNotificationsRead_Success(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/notifications/read-all" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	if err := MarkAllNotificationsRead(context.Background(), srv.Client(), srv.URL); err != nil {
		t.Fatalf("MarkAllNotificationsRead error: %v", err)
	}
}

func TestMarkNotificationRead_Success(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/notifications/n1/read" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	if err := MarkNotificationRead(context.Background(), srv.Client(), srv.URL, "n1"); err != nil {
		t.Fatalf("MarkNotificationRead error: %v", err)
	}
}

func TestMarkNotificationRead_EmptyID(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	if err := MarkNotificationRead(context.Background(), srv.Client(), srv.URL, ""); err == nil {
		t.Fatal("expected validation error for empty id")
	}
}

func TestClearNotifications_ScopedKind(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req types.ClearRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Kind != types.KindCommentCreated {
			t.Errorf("kind = %q", req.Kind)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	if err := ClearNotifications(context.Background(), srv.Client(), srv.URL, types.KindCommentCreated); err != nil {
		t.Fatalf("ClearNotifications error: %v", err)
	}
}

func TestClearNotifications_AllKinds(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	if err := ClearNotifications(context.Background(), srv.Client(), srv.URL, ""); err != nil {
		t.Fatalf("ClearNotifications all error: %v", err)
	}
}

func TestClearNotifications_UnknownKind(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	if err := ClearNotifications(context.Background(), srv.Client(), srv.URL, "bogus"); err == nil {
		t.Fatal("expected validation error for unknown kind")
	}
}

func TestCancelledContextShortCircuits(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not reach the server")
	}))
	defer srv.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := FetchNotificationsPage(ctx, srv.Client(), srv.URL, types.PageRequest{Limit: 20}); err == nil {
		t.Fatal("expected context error")
	}
	if err := MarkAllNotificationsRead(ctx, srv.Client(), srv.URL); err == nil {
		t.Fatal("expected context error")
	}
	// Give any stray request time to surface before the server closes.
	time.Sleep(10 * time.Millisecond)
}
