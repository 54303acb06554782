package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/workloop/notify-go/internal/types"
)

func TestFetchActorProfile_Success(t *testing.T) {
	t.Parallel()
	resp := types.ActorProfileResponse{Profile: &types.ActorProfile{
		FullName: "Ada Lovelace", Role: "engineer", Username: "ada",
	}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/profiles/actor-1/summary" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()
	got, err := FetchActorProfile(context.Background(), srv.Client(), srv.URL, "actor-1")
	if err != nil || got == nil || got.FullName != "Ada Lovelace" {
		t.Fatalf("FetchActorProfile unexpected: got=%+v err=%v", got, err)
	}
}

func TestFetchActorProfile_MissingActor(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	got, err := FetchActorProfile(context.Background(), srv.Client(), srv.URL, "ghost")
	if !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("missing actor: err = %v, want types.ErrNotFound", err)
	}
	if got != nil {
		t.Fatalf("missing actor: got = %+v, want nil", got)
	}
}

func TestFetchActorProfile_EmptyID(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	if _, err := FetchActorProfile(context.Background(), srv.Client(), srv.URL, ""); err == nil {
		t.Fatal("expected validation error for empty actor id")
	}
}
