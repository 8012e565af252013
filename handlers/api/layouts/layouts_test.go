package layouts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"overlay-server/core"
	"overlay-server/stores/memory"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

// Mock layout store for testing
type mockLayoutStore struct {
	layouts   map[string]*core.Layout
	order     []string
	createErr error
	listErr   error
}

func newMockLayoutStore() *mockLayoutStore {
	return &mockLayoutStore{layouts: make(map[string]*core.Layout)}
}

func (m *mockLayoutStore) CreateLayout(ctx context.Context, name string, entries []core.LayoutEntry) (string, error) {
	if m.createErr != nil {
		return "", m.createErr
	}
	id := fmt.Sprintf("layout-%d", len(m.order))
	m.layouts[id] = &core.Layout{ID: id, Name: name, CreatedAt: 123456789, Entries: entries}
	m.order = append(m.order, id)
	return id, nil
}

func (m *mockLayoutStore) ListLayouts(ctx context.Context) ([]core.Layout, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var result []core.Layout
	for i := len(m.order) - 1; i >= 0; i-- {
		if layout, ok := m.layouts[m.order[i]]; ok {
			result = append(result, core.Layout{ID: layout.ID, Name: layout.Name, CreatedAt: layout.CreatedAt})
		}
	}
	return result, nil
}

func (m *mockLayoutStore) GetLayout(ctx context.Context, id string) (*core.Layout, error) {
	layout, ok := m.layouts[id]
	if !ok {
		return nil, &core.LayoutNotFoundError{ID: id}
	}
	return layout, nil
}

func (m *mockLayoutStore) DeleteLayout(ctx context.Context, id string) error {
	if _, ok := m.layouts[id]; !ok {
		return &core.LayoutNotFoundError{ID: id}
	}
	delete(m.layouts, id)
	return nil
}

type recordingPublisher struct {
	events []core.ChangeEvent
}

func (p *recordingPublisher) Publish(event core.ChangeEvent) {
	p.events = append(p.events, event)
}

func withLayoutID(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("layoutId", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestHandleCreateLayout_Success(t *testing.T) {
	layouts := newMockLayoutStore()
	overlays := memory.NewOverlayStore()
	overlays.Create(context.Background(), core.Draft{Name: "a", Content: "a"})
	overlays.Create(context.Background(), core.Draft{Name: "b", Content: "b"})

	req := httptest.NewRequest(http.MethodPost, "/api/layouts", strings.NewReader(`{"name":"Opening"}`))
	rec := httptest.NewRecorder()
	HandleCreateLayout(layouts, overlays)(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("Status code mismatch: got %d, want %d", rec.Code, http.StatusCreated)
	}

	var response CreateLayoutResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.ID == "" || response.Entries != 2 {
		t.Errorf("response = %+v", response)
	}
	if layouts.layouts[response.ID].Name != "Opening" {
		t.Errorf("stored name = %q", layouts.layouts[response.ID].Name)
	}
}

func TestHandleCreateLayout_Errors(t *testing.T) {
	failing := newMockLayoutStore()
	failing.createErr = fmt.Errorf("database error")

	tests := []struct {
		name   string
		store  *mockLayoutStore
		body   string
		status int
	}{
		{"missing name", newMockLayoutStore(), `{"name":" "}`, http.StatusBadRequest},
		{"invalid json", newMockLayoutStore(), `invalid json`, http.StatusBadRequest},
		{"store error", failing, `{"name":"x"}`, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/layouts", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			HandleCreateLayout(tt.store, memory.NewOverlayStore())(rec, req)

			if rec.Code != tt.status {
				t.Errorf("Status code mismatch: got %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestHandleListLayouts(t *testing.T) {
	layouts := newMockLayoutStore()

	rec := httptest.NewRecorder()
	HandleListLayouts(layouts)(rec, httptest.NewRequest(http.MethodGet, "/api/layouts", http.NoBody))
	if !strings.Contains(rec.Body.String(), `"layouts":[]`) {
		t.Errorf("empty list should encode as [], got %s", rec.Body.String())
	}

	layouts.CreateLayout(context.Background(), "first", nil)
	layouts.CreateLayout(context.Background(), "second", nil)

	rec = httptest.NewRecorder()
	HandleListLayouts(layouts)(rec, httptest.NewRequest(http.MethodGet, "/api/layouts", http.NoBody))

	var response ListLayoutsResponse
	json.NewDecoder(rec.Body).Decode(&response)
	if len(response.Layouts) != 2 || response.Layouts[0].Name != "second" {
		t.Errorf("Layouts = %+v", response.Layouts)
	}
}

func TestHandleGetAndDeleteLayout(t *testing.T) {
	layouts := newMockLayoutStore()
	id, _ := layouts.CreateLayout(context.Background(), "first", []core.LayoutEntry{{OverlayID: "a"}})

	rec := httptest.NewRecorder()
	HandleGetLayout(layouts)(rec, withLayoutID(httptest.NewRequest(http.MethodGet, "/api/layouts/"+id, http.NoBody), id))
	if rec.Code != http.StatusOK {
		t.Fatalf("Status code mismatch: got %d, want %d", rec.Code, http.StatusOK)
	}

	rec = httptest.NewRecorder()
	HandleDeleteLayout(layouts)(rec, withLayoutID(httptest.NewRequest(http.MethodDelete, "/api/layouts/"+id, http.NoBody), id))
	if rec.Code != http.StatusNoContent {
		t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusNoContent)
	}

	rec = httptest.NewRecorder()
	HandleGetLayout(layouts)(rec, withLayoutID(httptest.NewRequest(http.MethodGet, "/api/layouts/"+id, http.NoBody), id))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusNotFound)
	}

	rec = httptest.NewRecorder()
	HandleDeleteLayout(layouts)(rec, withLayoutID(httptest.NewRequest(http.MethodDelete, "/api/layouts/"+id, http.NoBody), id))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleApplyLayout(t *testing.T) {
	ctx := context.Background()
	layouts := newMockLayoutStore()
	overlays := memory.NewOverlayStore()
	publisher := &recordingPublisher{}

	kept, _ := overlays.Create(ctx, core.Draft{Name: "kept", Content: "a"})
	gone, _ := overlays.Create(ctx, core.Draft{Name: "gone", Content: "b"})

	current, _ := overlays.List(ctx)
	id, _ := layouts.CreateLayout(ctx, "Opening", core.CaptureLayout(current))

	// Rearrange after the capture, then delete one overlay.
	moved := core.Position{X: 400, Y: 300}
	hidden := false
	overlays.Update(ctx, kept.ID, core.Patch{Position: &moved, Visible: &hidden})
	overlays.Delete(ctx, gone.ID)

	req := withLayoutID(httptest.NewRequest(http.MethodPost, "/api/layouts/"+id+"/apply", http.NoBody), id)
	rec := httptest.NewRecorder()
	HandleApplyLayout(layouts, overlays, publisher)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status code mismatch: got %d, want %d", rec.Code, http.StatusOK)
	}

	var response ApplyLayoutResponse
	json.NewDecoder(rec.Body).Decode(&response)
	if len(response.Applied) != 1 || response.Applied[0] != kept.ID {
		t.Errorf("Applied = %v", response.Applied)
	}
	if len(response.Skipped) != 1 || response.Skipped[0] != gone.ID {
		t.Errorf("Skipped = %v", response.Skipped)
	}

	restored, _ := overlays.Get(ctx, kept.ID)
	if restored.Position != core.DefaultPosition || !restored.Visible {
		t.Errorf("overlay not restored: %+v", restored)
	}
	if len(publisher.events) != 1 || publisher.events[0].OverlayID != kept.ID {
		t.Errorf("events = %+v", publisher.events)
	}
}

func TestHandleApplyLayout_NotFound(t *testing.T) {
	req := withLayoutID(httptest.NewRequest(http.MethodPost, "/api/layouts/missing/apply", http.NoBody), "missing")
	rec := httptest.NewRecorder()

	HandleApplyLayout(newMockLayoutStore(), memory.NewOverlayStore(), nil)(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusNotFound)
	}
}
