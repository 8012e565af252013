package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"overlay-server/core"
	"overlay-server/events"
	"overlay-server/handlers/api/overlays"
	"overlay-server/handlers/api/settings"
	"overlay-server/handlers/websocket"
	"overlay-server/stores/memory"
	"overlay-server/stream"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func newTestAPI(t *testing.T) (*httptest.Server, *events.Hub) {
	t.Helper()

	store := memory.NewOverlayStore()
	hub := events.NewHub()
	resolver := stream.NewResolver("http://media.local:8888", "https://cdn.example/default.mp4")

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Route("/overlays", func(r chi.Router) {
			r.Get("/events", websocket.HandleEvents(hub, func(*http.Request) bool { return true }))
			r.Get("/", overlays.HandleList(store))
			r.Post("/", overlays.HandleCreate(store, hub))
			r.Get("/{id}", overlays.HandleGet(store))
			r.Put("/{id}", overlays.HandleUpdate(store, hub))
			r.Delete("/{id}", overlays.HandleDelete(store, hub))
		})
		r.Get("/settings/stream-url", settings.HandleGetStreamURL(store, resolver))
		r.Post("/settings/stream-url", settings.HandleSetStreamURL(store, resolver, hub))
	})

	server := httptest.NewServer(r)
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})
	return server, hub
}

func TestClientOverlayLifecycle(t *testing.T) {
	server, _ := newTestAPI(t)
	client := NewClient(server.URL + "/api")
	ctx := context.Background()

	created, err := client.CreateOverlay(ctx, core.Draft{Name: "Score", Content: "1 - 0"})
	if err != nil {
		t.Fatalf("CreateOverlay failed: %v", err)
	}
	if created.ID == "" || created.Position != core.DefaultPosition {
		t.Errorf("created = %+v", created)
	}

	pos := core.Position{X: 300, Y: 120}
	if err := client.UpdateOverlay(ctx, created.ID, core.Patch{Position: &pos}); err != nil {
		t.Fatalf("UpdateOverlay failed: %v", err)
	}

	got, err := client.GetOverlay(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetOverlay failed: %v", err)
	}
	if got.Position != pos {
		t.Errorf("Position = %+v, want %+v", got.Position, pos)
	}

	list, err := client.ListOverlays(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListOverlays = %v, %v", list, err)
	}

	if err := client.DeleteOverlay(ctx, created.ID); err != nil {
		t.Fatalf("DeleteOverlay failed: %v", err)
	}
	list, err = client.ListOverlays(ctx)
	if err != nil || len(list) != 0 {
		t.Errorf("Expected empty list, got %v, %v", list, err)
	}
}

func TestClientErrorMapping(t *testing.T) {
	server, _ := newTestAPI(t)
	client := NewClient(server.URL + "/api")
	ctx := context.Background()

	_, err := client.CreateOverlay(ctx, core.Draft{Name: "Empty"})
	if !core.IsValidation(err) {
		t.Errorf("Expected ValidationError, got %v", err)
	}

	err = client.UpdateOverlay(ctx, "missing", core.Patch{Visible: new(bool)})
	if !core.IsNotFound(err) {
		t.Errorf("Expected NotFoundError, got %v", err)
	}

	if err := client.DeleteOverlay(ctx, "missing"); !core.IsNotFound(err) {
		t.Errorf("Expected NotFoundError, got %v", err)
	}
}

func TestClientTransportErrors(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer failing.Close()

	_, err := NewClient(failing.URL).ListOverlays(context.Background())
	if !core.IsTransport(err) {
		t.Errorf("Expected TransportError for 502, got %v", err)
	}

	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()
	_, err = NewClient(closed.URL).ListOverlays(context.Background())
	if !core.IsTransport(err) {
		t.Errorf("Expected TransportError for refused connection, got %v", err)
	}
}

func TestClientSendsHeaders(t *testing.T) {
	var gotAuth, gotOrigin string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotOrigin = r.Header.Get(core.OriginHeader)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"overlays":null}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, WithToken("secret-token"), WithOrigin("tab-1"))
	list, err := client.ListOverlays(context.Background())
	if err != nil {
		t.Fatalf("ListOverlays failed: %v", err)
	}
	if list == nil {
		t.Error("Expected empty slice, got nil")
	}
	if gotAuth != "Bearer secret-token" || gotOrigin != "tab-1" {
		t.Errorf("headers = %q, %q", gotAuth, gotOrigin)
	}
	if client.Origin() != "tab-1" {
		t.Errorf("Origin() = %q", client.Origin())
	}
}

func TestClientStreamSettings(t *testing.T) {
	server, _ := newTestAPI(t)
	client := NewClient(server.URL + "/api")
	ctx := context.Background()

	settings, err := client.GetStreamSettings(ctx)
	if err != nil {
		t.Fatalf("GetStreamSettings failed: %v", err)
	}
	if settings.Stream.URL != "https://cdn.example/default.mp4" {
		t.Errorf("Expected default stream, got %+v", settings)
	}

	settings, err = client.SetStreamURL(ctx, "rtsp://camera.local/live")
	if err != nil {
		t.Fatalf("SetStreamURL failed: %v", err)
	}
	if settings.Stream.Kind != stream.KindConverted || settings.Stream.URL != "http://media.local:8888/live/index.m3u8" {
		t.Errorf("stream = %+v", settings.Stream)
	}

	if _, err := client.SetStreamURL(ctx, ""); !core.IsValidation(err) {
		t.Errorf("Expected ValidationError for empty url, got %v", err)
	}
}

func TestClientSubscribe(t *testing.T) {
	server, hub := newTestAPI(t)
	writer := NewClient(server.URL+"/api", WithOrigin("writer"))
	reader := NewClient(server.URL + "/api")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed, err := reader.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Subscription never reached the hub")
		}
		time.Sleep(5 * time.Millisecond)
	}

	created, err := writer.CreateOverlay(context.Background(), core.Draft{Name: "Live", Content: "LIVE"})
	if err != nil {
		t.Fatalf("CreateOverlay failed: %v", err)
	}

	select {
	case event := <-feed:
		if event.Type != core.ChangeCreated || event.OverlayID != created.ID || event.Origin != "writer" {
			t.Errorf("event = %+v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("No change event received")
	}

	cancel()
	select {
	case _, ok := <-feed:
		if ok {
			t.Error("Expected feed to close after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Feed did not close after cancel")
	}
}
