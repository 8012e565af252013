package gateway

import (
	"context"
	"overlay-server/core"
)

// Local serves the engine straight from an OverlayStore, without HTTP.
// Changes are announced on publisher when one is given.
type Local struct {
	store     core.OverlayStore
	publisher core.ChangePublisher
	origin    string
}

func NewLocal(store core.OverlayStore, publisher core.ChangePublisher, origin string) *Local {
	return &Local{store: store, publisher: publisher, origin: origin}
}

// storeError keeps the engine's error taxonomy: anything that is not a
// validation or lookup failure counts as the service being unavailable.
func storeError(op string, err error) error {
	if err == nil || core.IsValidation(err) || core.IsNotFound(err) {
		return err
	}
	return &core.TransportError{Op: op, Err: err}
}

func (l *Local) publish(event core.ChangeEvent) {
	if l.publisher == nil {
		return
	}
	event.Origin = l.origin
	l.publisher.Publish(event)
}

func (l *Local) CreateOverlay(ctx context.Context, draft core.Draft) (*core.Overlay, error) {
	overlay, err := l.store.Create(ctx, draft)
	if err != nil {
		return nil, storeError("create overlay", err)
	}
	l.publish(core.ChangeEvent{Type: core.ChangeCreated, OverlayID: overlay.ID, Overlay: overlay})
	return overlay, nil
}

func (l *Local) ListOverlays(ctx context.Context) ([]core.Overlay, error) {
	overlays, err := l.store.List(ctx)
	return overlays, storeError("list overlays", err)
}

func (l *Local) UpdateOverlay(ctx context.Context, id string, patch core.Patch) error {
	overlay, err := l.store.Update(ctx, id, patch)
	if err != nil {
		return storeError("update overlay", err)
	}
	l.publish(core.ChangeEvent{Type: core.ChangeUpdated, OverlayID: id, Overlay: overlay})
	return nil
}

func (l *Local) DeleteOverlay(ctx context.Context, id string) error {
	if err := l.store.Delete(ctx, id); err != nil {
		return storeError("delete overlay", err)
	}
	l.publish(core.ChangeEvent{Type: core.ChangeDeleted, OverlayID: id})
	return nil
}
