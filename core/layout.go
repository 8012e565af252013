package core

import (
	"context"
	"fmt"
)

type (
	// LayoutEntry is the captured geometry and visibility of one overlay.
	LayoutEntry struct {
		OverlayID string   `json:"overlayId"`
		Position  Position `json:"position"`
		Size      Size     `json:"size"`
		Visible   bool     `json:"isVisible"`
	}

	// Layout is a named capture of the whole catalog's arrangement.
	Layout struct {
		ID        string        `json:"id"`
		Name      string        `json:"name"`
		CreatedAt int64         `json:"createdAt"`
		Entries   []LayoutEntry `json:"entries,omitempty"`
	}

	LayoutStore interface {
		CreateLayout(ctx context.Context, name string, entries []LayoutEntry) (string, error)
		ListLayouts(ctx context.Context) ([]Layout, error)
		GetLayout(ctx context.Context, id string) (*Layout, error)
		DeleteLayout(ctx context.Context, id string) error
	}
)

// LayoutNotFoundError reports an unknown layout id.
type LayoutNotFoundError struct {
	ID string
}

func (e *LayoutNotFoundError) Error() string {
	return fmt.Sprintf("layout with id %s not found", e.ID)
}

// CaptureLayout records the arrangement of overlays.
func CaptureLayout(overlays []Overlay) []LayoutEntry {
	entries := make([]LayoutEntry, 0, len(overlays))
	for _, o := range overlays {
		entries = append(entries, LayoutEntry{
			OverlayID: o.ID,
			Position:  o.Position,
			Size:      o.Size,
			Visible:   o.Visible,
		})
	}
	return entries
}

// Patch returns the update that restores e.
func (e LayoutEntry) Patch() Patch {
	pos, size, visible := e.Position, e.Size, e.Visible
	return Patch{Position: &pos, Size: &size, Visible: &visible}
}
