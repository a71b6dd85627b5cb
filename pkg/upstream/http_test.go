package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"coralrelay/pkg/config"
	"coralrelay/pkg/relay"
	"coralrelay/pkg/types"
)

func newTestHTTPClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewHTTPClient(config.UpstreamConfig{ServerURL: server.URL + "/coral", RequestTimeoutSeconds: 2})
	if err != nil {
		t.Fatalf("NewHTTPClient error: %v", err)
	}

	return client
}

func TestNewHTTPClientRequiresServerURL(t *testing.T) {
	if _, err := NewHTTPClient(config.UpstreamConfig{}); err == nil {
		t.Fatal("expected error when server_url is missing")
	}
}

func TestHTTPClientHealth(t *testing.T) {
	client := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/coral/health" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"healthy":true,"version":"1.2.0","agents":3,"threads":1}`))
	})

	status, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health error: %v", err)
	}
	if !status.Healthy || status.Version != "1.2.0" || status.Agents != 3 {
		t.Fatalf("status = %+v", status)
	}
}

func TestHTTPClientHealthUnhealthyIsUnreachable(t *testing.T) {
	client := newTestHTTPClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"healthy":false}`))
	})

	_, err := client.Health(context.Background())
	if got := relay.CategoryFromError(err); got != relay.CategoryUnreachable {
		t.Fatalf("category = %q, want %q", got, relay.CategoryUnreachable)
	}
}

func TestHTTPClientRegisterAgentSendsBodyAndBearer(t *testing.T) {
	t.Setenv("CORAL_TEST_API_KEY", "secret")

	var got types.Agent
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/agents" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client, err := NewHTTPClient(config.UpstreamConfig{ServerURL: server.URL, APIKeyEnv: "CORAL_TEST_API_KEY"})
	if err != nil {
		t.Fatalf("NewHTTPClient error: %v", err)
	}

	if err := client.RegisterAgent(context.Background(), types.Agent{Name: "agent_x", Capabilities: []string{"search"}}); err != nil {
		t.Fatalf("RegisterAgent error: %v", err)
	}
	if got.Name != "agent_x" || len(got.Capabilities) != 1 || got.Capabilities[0] != "search" {
		t.Fatalf("upstream received %+v", got)
	}
}

func TestHTTPClientFailureCategories(t *testing.T) {
	client := newTestHTTPClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"nope"}`))
	})
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
		want relay.Category
	}{
		{name: "register", call: func() error { return client.RegisterAgent(ctx, types.Agent{Name: "a"}) }, want: relay.CategoryRegistrationFailed},
		{name: "send", call: func() error { return client.SendMessage(ctx, types.Message{Recipient: "a", Content: "x"}) }, want: relay.CategoryDeliveryFailed},
		{name: "list", call: func() error { _, err := client.ListAgents(ctx); return err }, want: relay.CategoryUnreachable},
		{name: "thread", call: func() error { _, err := client.CreateThread(ctx, types.Thread{ID: "t", Participants: []string{"a"}}); return err }, want: relay.CategoryThreadCreationFailed},
		{name: "health", call: func() error { _, err := client.Health(ctx); return err }, want: relay.CategoryUnreachable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()
			if got := relay.CategoryFromError(err); got != tc.want {
				t.Fatalf("category = %q, want %q (err=%v)", got, tc.want, err)
			}
			if !strings.Contains(relay.MessageFromError(err), "409") {
				t.Fatalf("message = %q, want status code", relay.MessageFromError(err))
			}
		})
	}
}

func TestHTTPClientDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	client := newTestHTTPClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	if err := client.SendMessage(context.Background(), types.Message{Recipient: "a", Content: "x"}); err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("upstream calls = %d, want 1", got)
	}
}

func TestHTTPClientCreateThreadUsesReturnedID(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{name: "network id", response: `{"id":"net-1"}`, want: "net-1"},
		{name: "echo requested id", response: `{}`, want: "req-1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
				var thread types.Thread
				_ = json.NewDecoder(r.Body).Decode(&thread)
				if thread.ID != "req-1" || len(thread.Participants) != 2 {
					t.Errorf("upstream received %+v", thread)
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tc.response))
			})

			id, err := client.CreateThread(context.Background(), types.Thread{ID: "req-1", Participants: []string{"a", "b"}})
			if err != nil {
				t.Fatalf("CreateThread error: %v", err)
			}
			if id != tc.want {
				t.Fatalf("id = %q, want %q", id, tc.want)
			}
		})
	}
}

func TestHTTPClientTimeoutIsUnreachable(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client, err := NewHTTPClient(config.UpstreamConfig{ServerURL: server.URL})
	if err != nil {
		t.Fatalf("NewHTTPClient error: %v", err)
	}
	client.requestTimeout = 50 * time.Millisecond

	_, err = client.ListAgents(context.Background())
	if got := relay.CategoryFromError(err); got != relay.CategoryUnreachable {
		t.Fatalf("category = %q, want %q", got, relay.CategoryUnreachable)
	}
}
