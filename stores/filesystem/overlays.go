package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"overlay-server/core"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

const (
	overlaysDir  = "overlays"
	settingsFile = "settings.json"
)

type fsStore struct {
	basePath string
	// serialises read-modify-write cycles on overlay files
	mu sync.Mutex
}

type settings struct {
	StreamURL string `json:"streamUrl"`
}

// NewOverlayStore creates a filesystem-based store rooted at basePath.
func NewOverlayStore(basePath string) *fsStore {
	if err := os.MkdirAll(filepath.Join(basePath, overlaysDir), 0755); err != nil {
		log.Fatalf("failed to create base directory: %v", err)
	}
	return &fsStore{basePath: basePath}
}

func validID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`) && filepath.Base(id) == id
}

func (s *fsStore) overlayPath(id string) string {
	return filepath.Join(s.basePath, overlaysDir, id+".json")
}

func (s *fsStore) read(id string) (*core.Overlay, error) {
	if !validID(id) {
		return nil, &core.NotFoundError{ID: id}
	}

	data, err := os.ReadFile(s.overlayPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &core.NotFoundError{ID: id}
		}
		return nil, err
	}

	var overlay core.Overlay
	if err := json.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("decode overlay %s: %w", id, err)
	}
	return &overlay, nil
}

func (s *fsStore) write(overlay *core.Overlay) error {
	data, err := json.Marshal(overlay)
	if err != nil {
		return err
	}

	// Write then rename so a crash never leaves a half-written file behind.
	tmp := s.overlayPath(overlay.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.overlayPath(overlay.ID))
}

func (s *fsStore) Create(ctx context.Context, draft core.Draft) (*core.Overlay, error) {
	overlay, err := draft.Build()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	overlay.ID = ulid.Make().String()
	overlay.CreatedAt = now
	overlay.UpdatedAt = now

	log := logrus.WithFields(logrus.Fields{
		"overlay_id": overlay.ID,
		"file_path":  s.overlayPath(overlay.ID),
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(&overlay); err != nil {
		log.WithError(err).Error("Failed to create overlay")
		return nil, err
	}

	log.Info("Overlay created successfully")
	return &overlay, nil
}

func (s *fsStore) List(ctx context.Context) ([]core.Overlay, error) {
	dir := filepath.Join(s.basePath, overlaysDir)
	log := logrus.WithField("path", dir)

	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []core.Overlay{}, nil
		}
		log.WithError(err).Error("Failed to read overlay directory")
		return nil, err
	}

	overlays := make([]core.Overlay, 0, len(files))
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		id := strings.TrimSuffix(file.Name(), ".json")
		overlay, err := s.read(id)
		if err != nil {
			log.WithError(err).Warnf("Failed to read overlay file %s, skipping", file.Name())
			continue
		}
		overlays = append(overlays, *overlay)
	}

	sort.Slice(overlays, func(i, j int) bool {
		return overlays[i].ID < overlays[j].ID
	})

	log.Debugf("Listed %d overlays", len(overlays))
	return overlays, nil
}

func (s *fsStore) Get(ctx context.Context, id string) (*core.Overlay, error) {
	overlay, err := s.read(id)
	if err != nil {
		logrus.WithField("overlay_id", id).WithError(err).Warn("Failed to retrieve overlay")
		return nil, err
	}
	return overlay, nil
}

func (s *fsStore) Update(ctx context.Context, id string, patch core.Patch) (*core.Overlay, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	log := logrus.WithField("overlay_id", id)

	s.mu.Lock()
	defer s.mu.Unlock()

	overlay, err := s.read(id)
	if err != nil {
		log.WithError(err).Warn("Failed to load overlay for update")
		return nil, err
	}

	patch.Apply(overlay)
	overlay.Version++
	overlay.UpdatedAt = time.Now().UTC()

	if err := s.write(overlay); err != nil {
		log.WithError(err).Error("Failed to write overlay file")
		return nil, err
	}

	log.WithField("version", overlay.Version).Info("Overlay updated successfully")
	return overlay, nil
}

func (s *fsStore) Delete(ctx context.Context, id string) error {
	log := logrus.WithField("overlay_id", id)
	if !validID(id) {
		return &core.NotFoundError{ID: id}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.overlayPath(id)); err != nil {
		if os.IsNotExist(err) {
			log.Warn("Overlay file not found for deletion")
			return &core.NotFoundError{ID: id}
		}
		log.WithError(err).Error("Failed to delete overlay file")
		return err
	}

	log.Info("Overlay deleted successfully")
	return nil
}

func (s *fsStore) GetStreamURL(ctx context.Context) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.basePath, settingsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	var cfg settings
	if err := json.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("decode settings: %w", err)
	}
	return cfg.StreamURL, nil
}

func (s *fsStore) SetStreamURL(ctx context.Context, url string) error {
	data, err := json.Marshal(settings{StreamURL: url})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(filepath.Join(s.basePath, settingsFile), data, 0644); err != nil {
		logrus.WithError(err).Error("Failed to write settings file")
		return err
	}

	logrus.WithField("stream_url", url).Info("Stream URL saved")
	return nil
}
