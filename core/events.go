package core

type ChangeType string

const (
	ChangeCreated  ChangeType = "created"
	ChangeUpdated  ChangeType = "updated"
	ChangeDeleted  ChangeType = "deleted"
	ChangeSettings ChangeType = "settings"
)

type (
	// ChangeEvent announces a committed change to the saved catalog or settings.
	ChangeEvent struct {
		Type      ChangeType `json:"type"`
		OverlayID string     `json:"overlayId,omitempty"`
		Overlay   *Overlay   `json:"overlay,omitempty"`
		Origin    string     `json:"origin,omitempty"`
	}

	ChangePublisher interface {
		Publish(event ChangeEvent)
	}
)

// OriginHeader lets a client tag its own writes so it can recognise their echoes.
const OriginHeader = "X-Overlay-Origin"
