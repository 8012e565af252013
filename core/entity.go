package core

import (
	"context"
	"strings"
	"time"
)

type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// ParseKind accepts "logo" as an older spelling of "image".
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return KindText, true
	case "image", "logo":
		return KindImage, true
	}
	return "", false
}

// Default geometry for a new overlay.
var (
	DefaultPosition = Position{X: 50, Y: 50}
	DefaultSize     = Size{Width: 200, Height: 100}
)

type (
	// Overlay is a positioned text or image element composited over the video.
	Overlay struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Kind      Kind      `json:"type"`
		Content   string    `json:"content"`
		Position  Position  `json:"position"`
		Size      Size      `json:"size"`
		Style     Style     `json:"style"`
		Visible   bool      `json:"isVisible"`
		Version   int64     `json:"version"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	// Draft is what a client submits to create an overlay. Nil pointers take defaults.
	Draft struct {
		Name     string    `json:"name"`
		Kind     string    `json:"type"`
		Content  string    `json:"content"`
		Position *Position `json:"position,omitempty"`
		Size     *Size     `json:"size,omitempty"`
		Style    Style     `json:"style"`
		Visible  *bool     `json:"isVisible,omitempty"`
	}

	// Patch carries a partial update. Only non-nil fields are applied.
	Patch struct {
		Name     *string   `json:"name,omitempty"`
		Content  *string   `json:"content,omitempty"`
		Position *Position `json:"position,omitempty"`
		Size     *Size     `json:"size,omitempty"`
		Style    *Style    `json:"style,omitempty"`
		Visible  *bool     `json:"isVisible,omitempty"`
	}

	OverlayStore interface {
		Create(ctx context.Context, draft Draft) (*Overlay, error)
		List(ctx context.Context) ([]Overlay, error)
		Get(ctx context.Context, id string) (*Overlay, error)
		Update(ctx context.Context, id string, patch Patch) (*Overlay, error)
		Delete(ctx context.Context, id string) error
	}

	SettingsStore interface {
		// GetStreamURL returns "" when no stream has been configured.
		GetStreamURL(ctx context.Context) (string, error)
		SetStreamURL(ctx context.Context, url string) error
	}
)

// Rect returns the overlay's bounding box.
func (o Overlay) Rect() Rect {
	return Rect{Position: o.Position, Size: o.Size}
}

// Validate checks the fields a create request must carry.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if strings.TrimSpace(d.Content) == "" {
		return &ValidationError{Field: "content", Reason: "is required"}
	}
	if _, ok := ParseKind(d.Kind); !ok {
		return &ValidationError{Field: "type", Reason: "must be text or image"}
	}
	if d.Position != nil && !d.Position.Valid() {
		return &ValidationError{Field: "position", Reason: "must be non-negative"}
	}
	if d.Size != nil && !d.Size.Valid() {
		return &ValidationError{Field: "size", Reason: "must be positive"}
	}
	return nil
}

// Build validates d and returns the overlay it describes, without id or timestamps.
func (d Draft) Build() (Overlay, error) {
	if err := d.Validate(); err != nil {
		return Overlay{}, err
	}
	kind, _ := ParseKind(d.Kind)
	o := Overlay{
		Name:     strings.TrimSpace(d.Name),
		Kind:     kind,
		Content:  d.Content,
		Position: DefaultPosition,
		Size:     DefaultSize,
		Style:    d.Style,
		Visible:  true,
		Version:  1,
	}
	if d.Position != nil {
		o.Position = *d.Position
	}
	if d.Size != nil {
		o.Size = *d.Size
	}
	if d.Visible != nil {
		o.Visible = *d.Visible
	}
	return o, nil
}

func (p Patch) Empty() bool {
	return p.Name == nil && p.Content == nil && p.Position == nil &&
		p.Size == nil && p.Style == nil && p.Visible == nil
}

// Validate rejects values that would break an overlay's invariants.
func (p Patch) Validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if p.Content != nil && strings.TrimSpace(*p.Content) == "" {
		return &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if p.Position != nil && !p.Position.Valid() {
		return &ValidationError{Field: "position", Reason: "must be non-negative"}
	}
	if p.Size != nil && !p.Size.Valid() {
		return &ValidationError{Field: "size", Reason: "must be positive"}
	}
	return nil
}

// Apply merges p into o field by field. Fields p does not set are left alone,
// and a style patch only replaces the attributes it names.
func (p Patch) Apply(o *Overlay) {
	if p.Name != nil {
		o.Name = *p.Name
	}
	if p.Content != nil {
		o.Content = *p.Content
	}
	if p.Position != nil {
		o.Position = *p.Position
	}
	if p.Size != nil {
		o.Size = *p.Size
	}
	if p.Style != nil {
		o.Style = o.Style.Merge(*p.Style)
	}
	if p.Visible != nil {
		o.Visible = *p.Visible
	}
}
