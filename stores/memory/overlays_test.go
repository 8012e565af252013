package memory

import (
	"context"
	"overlay-server/core"
	"sync"
	"testing"
)

func TestNewOverlayStore(t *testing.T) {
	store := NewOverlayStore()
	if store == nil {
		t.Fatal("NewOverlayStore() returned nil")
	}
}

func TestCreate_Success(t *testing.T) {
	store := NewOverlayStore()
	ctx := context.Background()

	overlay, err := store.Create(ctx, core.Draft{Name: "Title", Content: "Breaking news"})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	// ULIDs are 26 characters
	if len(overlay.ID) != 26 {
		t.Errorf("Create() returned invalid ID length: got %d, want 26", len(overlay.ID))
	}
	if overlay.Position != core.DefaultPosition || overlay.Size != core.DefaultSize {
		t.Errorf("Create() did not apply default geometry: %+v", overlay)
	}
	if overlay.CreatedAt.IsZero() {
		t.Error("Create() did not set CreatedAt")
	}
}

func TestCreate_MissingContent(t *testing.T) {
	store := NewOverlayStore()
	ctx := context.Background()

	_, err := store.Create(ctx, core.Draft{Name: "Title"})
	if !core.IsValidation(err) {
		t.Fatalf("Create() error = %v, want validation error", err)
	}

	overlays, _ := store.List(ctx)
	if len(overlays) != 0 {
		t.Errorf("failed create left %d overlays behind", len(overlays))
	}
}

func TestGet_NotFound(t *testing.T) {
	store := NewOverlayStore()

	_, err := store.Get(context.Background(), "nonexistent-id")
	if !core.IsNotFound(err) {
		t.Fatalf("Get() error = %v, want not found", err)
	}

	expectedError := "overlay with id nonexistent-id not found"
	if err.Error() != expectedError {
		t.Errorf("Get() error mismatch: got %q, want %q", err.Error(), expectedError)
	}
}

func TestList_CreationOrder(t *testing.T) {
	store := NewOverlayStore()
	ctx := context.Background()

	ids := make([]string, 5)
	for i := range ids {
		overlay, err := store.Create(ctx, core.Draft{Name: "n", Content: string(rune('a' + i))})
		if err != nil {
			t.Fatalf("Create() failed for overlay %d: %v", i, err)
		}
		ids[i] = overlay.ID
	}

	overlays, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(overlays) != len(ids) {
		t.Fatalf("List() returned %d overlays, want %d", len(overlays), len(ids))
	}
	for i, overlay := range overlays {
		if overlay.ID != ids[i] {
			t.Errorf("List()[%d] = %s, want %s", i, overlay.ID, ids[i])
		}
	}
}

func TestUpdate_MergesAndBumpsVersion(t *testing.T) {
	store := NewOverlayStore()
	ctx := context.Background()

	created, _ := store.Create(ctx, core.Draft{
		Name:    "Title",
		Content: "Hello",
		Style:   core.Style{Color: "red"},
	})

	pos := core.Position{X: 600, Y: 400}
	updated, err := store.Update(ctx, created.ID, core.Patch{Position: &pos})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	if updated.Position != pos {
		t.Errorf("Position = %v, want %v", updated.Position, pos)
	}
	if updated.Content != "Hello" || updated.Style.Color != "red" {
		t.Errorf("Update() clobbered other fields: %+v", updated)
	}
	if updated.Version != created.Version+1 {
		t.Errorf("Version = %d, want %d", updated.Version, created.Version+1)
	}
}

func TestUpdate_Errors(t *testing.T) {
	store := NewOverlayStore()
	ctx := context.Background()
	created, _ := store.Create(ctx, core.Draft{Name: "Title", Content: "Hello"})

	pos := core.Position{X: 1, Y: 1}
	if _, err := store.Update(ctx, "missing", core.Patch{Position: &pos}); !core.IsNotFound(err) {
		t.Errorf("Update() on unknown id error = %v, want not found", err)
	}

	bad := core.Size{Width: -1, Height: 10}
	if _, err := store.Update(ctx, created.ID, core.Patch{Size: &bad}); !core.IsValidation(err) {
		t.Errorf("Update() with bad size error = %v, want validation", err)
	}
}

func TestDelete(t *testing.T) {
	store := NewOverlayStore()
	ctx := context.Background()
	created, _ := store.Create(ctx, core.Draft{Name: "Title", Content: "Hello"})

	if err := store.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := store.Get(ctx, created.ID); !core.IsNotFound(err) {
		t.Errorf("Get() after delete error = %v, want not found", err)
	}
	if err := store.Delete(ctx, created.ID); !core.IsNotFound(err) {
		t.Errorf("second Delete() error = %v, want not found", err)
	}
}

func TestStreamURL(t *testing.T) {
	store := NewOverlayStore()
	ctx := context.Background()

	url, err := store.GetStreamURL(ctx)
	if err != nil || url != "" {
		t.Fatalf("GetStreamURL() = %q, %v; want empty", url, err)
	}

	if err := store.SetStreamURL(ctx, "rtsp://camera/stream"); err != nil {
		t.Fatalf("SetStreamURL() failed: %v", err)
	}
	url, _ = store.GetStreamURL(ctx)
	if url != "rtsp://camera/stream" {
		t.Errorf("GetStreamURL() = %q", url)
	}
}

func TestConcurrentUpdates(t *testing.T) {
	store := NewOverlayStore()
	ctx := context.Background()
	created, _ := store.Create(ctx, core.Draft{Name: "Title", Content: "Hello"})

	numWriters := 10
	var wg sync.WaitGroup
	for i := 0; i < numWriters; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			pos := core.Position{X: float64(index), Y: float64(index)}
			if _, err := store.Update(ctx, created.ID, core.Patch{Position: &pos}); err != nil {
				t.Errorf("Concurrent Update() failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	final, _ := store.Get(ctx, created.ID)
	if final.Version != int64(1+numWriters) {
		t.Errorf("Version = %d, want %d", final.Version, 1+numWriters)
	}
}
