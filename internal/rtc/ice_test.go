package rtc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pion/webrtc/v3"
)

func TestFetchTURNServers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token123" {
			t.Errorf("unexpected authorization header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"urls":"turn:turn.example.com:3478","username":"u","credential":"c"},
			{"urls":["turn:a.example.com:3478","turns:a.example.com:5349"],"username":"u2","credential":"c2"}
		]`))
	}))
	defer srv.Close()

	servers, err := fetchTURNServers(context.Background(), srv.Client(), srv.URL, "token123")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(servers) != 2 {
		t.Fatalf("expected 2 servers, got %d", len(servers))
	}
	if len(servers[0].URLs) != 1 || servers[0].URLs[0] != "turn:turn.example.com:3478" {
		t.Errorf("unexpected single-url server: %v", servers[0].URLs)
	}
	if servers[0].Username != "u" || servers[0].Credential != "c" {
		t.Errorf("credentials not carried over: %+v", servers[0])
	}
	if len(servers[1].URLs) != 2 {
		t.Errorf("expected 2 urls on the second server, got %v", servers[1].URLs)
	}
}

func TestFetchTURNServersErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	if _, err := fetchTURNServers(context.Background(), srv.Client(), srv.URL, ""); err == nil {
		t.Error("expected an error on a non-200 response")
	}
}

func TestBuildICEServers(t *testing.T) {
	stun := []string{"stun:stun.l.google.com:19302", "stun:stun1.l.google.com:19302"}

	t.Run("stun only", func(t *testing.T) {
		servers := buildICEServers(stun, nil)
		if len(servers) != 1 {
			t.Fatalf("expected 1 server entry, got %d", len(servers))
		}
		if len(servers[0].URLs) != 2 {
			t.Errorf("expected both stun urls grouped, got %v", servers[0].URLs)
		}
	})

	t.Run("stun plus turn", func(t *testing.T) {
		turn, err := fetchServersForTest(t)
		if err != nil {
			t.Fatal(err)
		}
		servers := buildICEServers(stun, turn)
		if len(servers) != 2 {
			t.Fatalf("expected stun entry plus turn entry, got %d", len(servers))
		}
	})

	t.Run("no stun", func(t *testing.T) {
		if servers := buildICEServers(nil, nil); len(servers) != 0 {
			t.Errorf("expected no servers, got %d", len(servers))
		}
	})
}

func fetchServersForTest(t *testing.T) ([]webrtc.ICEServer, error) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"urls":"turn:t.example.com:3478","username":"u","credential":"c"}]`))
	}))
	defer srv.Close()
	return fetchTURNServers(context.Background(), srv.Client(), srv.URL, "")
}
