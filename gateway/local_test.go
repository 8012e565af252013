package gateway

import (
	"context"
	"errors"
	"overlay-server/canvas"
	"overlay-server/core"
	"overlay-server/stores/memory"
	"sync"
	"testing"
)

var _ canvas.Gateway = (*Local)(nil)
var _ canvas.Gateway = (*Client)(nil)

type recordingPublisher struct {
	mu     sync.Mutex
	events []core.ChangeEvent
}

func (p *recordingPublisher) Publish(event core.ChangeEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

type brokenStore struct {
	core.OverlayStore
}

func (brokenStore) List(ctx context.Context) ([]core.Overlay, error) {
	return nil, errors.New("disk full")
}

func TestLocalPublishesChanges(t *testing.T) {
	publisher := &recordingPublisher{}
	local := NewLocal(memory.NewOverlayStore(), publisher, "cli")
	ctx := context.Background()

	overlay, err := local.CreateOverlay(ctx, core.Draft{Name: "Breaking", Content: "BREAKING"})
	if err != nil {
		t.Fatalf("CreateOverlay failed: %v", err)
	}
	hidden := false
	if err := local.UpdateOverlay(ctx, overlay.ID, core.Patch{Visible: &hidden}); err != nil {
		t.Fatalf("UpdateOverlay failed: %v", err)
	}
	if err := local.DeleteOverlay(ctx, overlay.ID); err != nil {
		t.Fatalf("DeleteOverlay failed: %v", err)
	}

	want := []core.ChangeType{core.ChangeCreated, core.ChangeUpdated, core.ChangeDeleted}
	if len(publisher.events) != len(want) {
		t.Fatalf("Expected %d events, got %d", len(want), len(publisher.events))
	}
	for i, event := range publisher.events {
		if event.Type != want[i] || event.OverlayID != overlay.ID || event.Origin != "cli" {
			t.Errorf("event %d = %+v", i, event)
		}
	}
}

func TestLocalKeepsErrorKinds(t *testing.T) {
	publisher := &recordingPublisher{}
	local := NewLocal(memory.NewOverlayStore(), publisher, "cli")
	ctx := context.Background()

	if _, err := local.CreateOverlay(ctx, core.Draft{}); !core.IsValidation(err) {
		t.Errorf("Expected ValidationError, got %v", err)
	}
	if err := local.DeleteOverlay(ctx, "missing"); !core.IsNotFound(err) {
		t.Errorf("Expected NotFoundError, got %v", err)
	}
	if len(publisher.events) != 0 {
		t.Errorf("Failed writes published %d events", len(publisher.events))
	}

	broken := NewLocal(brokenStore{}, nil, "cli")
	if _, err := broken.ListOverlays(ctx); !core.IsTransport(err) {
		t.Errorf("Expected TransportError, got %v", err)
	}
}

func TestLocalDrivesSession(t *testing.T) {
	store := memory.NewOverlayStore()
	local := NewLocal(store, nil, "cli")
	ctx := context.Background()

	seed, err := store.Create(ctx, core.Draft{Name: "Logo", Content: "LOGO"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	session := canvas.NewSession(canvas.NewStore(), local, canvas.Options{})
	defer session.Close()

	if err := session.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	session.CommitPosition(seed.ID, core.Position{X: 400, Y: 200})
	session.Wait()

	saved, err := store.Get(ctx, seed.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if saved.Position != (core.Position{X: 400, Y: 200}) {
		t.Errorf("Position = %+v", saved.Position)
	}
}
