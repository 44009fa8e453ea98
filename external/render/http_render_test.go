package render

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pomora/pomora/internal/render"
)

func TestStatusCard_Success(t *testing.T) {
	var gotPath string
	var gotInput render.StatusCardInput

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		gotPath = r.URL.Path
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("unexpected content type: %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotInput); err != nil {
			t.Fatalf("failed to decode payload: %v", err)
		}
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	}))
	defer server.Close()

	renderer := NewHTTPRenderer(server.URL)
	img, err := renderer.StatusCard(context.Background(), render.StatusCardInput{
		ChannelName:      "study-room",
		Stage:            "focus",
		RemainingSeconds: 1200,
		DurationSeconds:  3000,
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(img) != 4 {
		t.Fatalf("unexpected image size: %d", len(img))
	}
	if gotPath != "/status-card" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotInput.ChannelName != "study-room" || gotInput.RemainingSeconds != 1200 {
		t.Fatalf("unexpected payload: %+v", gotInput)
	}
}

func TestLeaderboardCard_Success(t *testing.T) {
	var gotPath string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte{0x89})
	}))
	defer server.Close()

	renderer := NewHTTPRenderer(server.URL)
	_, err := renderer.LeaderboardCard(context.Background(), render.LeaderboardCardInput{
		GuildName: "Focus Club",
		Timeframe: "weekly",
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if gotPath != "/leaderboard-card" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
}

func TestStatusCard_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	renderer := NewHTTPRenderer(server.URL)
	if _, err := renderer.StatusCard(context.Background(), render.StatusCardInput{}); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestStatusCard_EmptyBaseURL(t *testing.T) {
	renderer := NewHTTPRenderer("")
	if _, err := renderer.StatusCard(context.Background(), render.StatusCardInput{}); err == nil {
		t.Fatal("expected error for missing base url")
	}
}

func TestStatusCard_EmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	renderer := NewHTTPRenderer(server.URL)
	if _, err := renderer.StatusCard(context.Background(), render.StatusCardInput{}); err == nil {
		t.Fatal("expected error for empty image body")
	}
}
