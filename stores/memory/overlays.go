package memory

import (
	"context"
	"overlay-server/core"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

type overlayStore struct {
	mu        sync.RWMutex
	overlays  map[string]core.Overlay
	streamURL string
}

func NewOverlayStore() *overlayStore {
	return &overlayStore{
		overlays: make(map[string]core.Overlay),
	}
}

func (s *overlayStore) Create(ctx context.Context, draft core.Draft) (*core.Overlay, error) {
	overlay, err := draft.Build()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	overlay.ID = ulid.Make().String()
	overlay.CreatedAt = now
	overlay.UpdatedAt = now

	s.mu.Lock()
	s.overlays[overlay.ID] = overlay
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"overlay_id": overlay.ID,
		"type":       overlay.Kind,
	}).Info("Overlay created successfully")

	return &overlay, nil
}

func (s *overlayStore) List(ctx context.Context) ([]core.Overlay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	overlays := make([]core.Overlay, 0, len(s.overlays))
	for _, overlay := range s.overlays {
		overlays = append(overlays, overlay)
	}

	// ULIDs sort in creation order.
	sort.Slice(overlays, func(i, j int) bool {
		return overlays[i].ID < overlays[j].ID
	})

	return overlays, nil
}

func (s *overlayStore) Get(ctx context.Context, id string) (*core.Overlay, error) {
	log := logrus.WithField("overlay_id", id)

	s.mu.RLock()
	overlay, ok := s.overlays[id]
	s.mu.RUnlock()

	if !ok {
		log.Warn("Overlay with specified ID not found")
		return nil, &core.NotFoundError{ID: id}
	}

	log.Debug("Overlay retrieved successfully")
	return &overlay, nil
}

func (s *overlayStore) Update(ctx context.Context, id string, patch core.Patch) (*core.Overlay, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	log := logrus.WithField("overlay_id", id)

	s.mu.Lock()
	defer s.mu.Unlock()

	overlay, ok := s.overlays[id]
	if !ok {
		log.Warn("Overlay with specified ID not found")
		return nil, &core.NotFoundError{ID: id}
	}

	patch.Apply(&overlay)
	overlay.Version++
	overlay.UpdatedAt = time.Now().UTC()
	s.overlays[id] = overlay

	log.WithField("version", overlay.Version).Info("Overlay updated successfully")
	return &overlay, nil
}

func (s *overlayStore) Delete(ctx context.Context, id string) error {
	log := logrus.WithField("overlay_id", id)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.overlays[id]; !ok {
		log.Warn("Overlay with specified ID not found")
		return &core.NotFoundError{ID: id}
	}

	delete(s.overlays, id)
	log.Info("Overlay deleted successfully")
	return nil
}

func (s *overlayStore) GetStreamURL(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streamURL, nil
}

func (s *overlayStore) SetStreamURL(ctx context.Context, url string) error {
	s.mu.Lock()
	s.streamURL = url
	s.mu.Unlock()

	logrus.WithField("stream_url", url).Info("Stream URL saved")
	return nil
}
