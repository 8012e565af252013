package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"overlay-server/core"
	"time"

	stdlog "log"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

const DefaultMaxLayouts = 10

type overlayStore struct {
	db         *sql.DB
	maxLayouts int
}

func NewOverlayStore(dataSourceName string) *overlayStore {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		stdlog.Fatal(err)
	}
	// sqlite allows a single writer; one connection avoids SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	overlaysTable := `CREATE TABLE IF NOT EXISTS overlays (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		content TEXT NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		width REAL NOT NULL,
		height REAL NOT NULL,
		style TEXT,
		is_visible INTEGER NOT NULL DEFAULT 1,
		version INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);`
	if _, err = db.Exec(overlaysTable); err != nil {
		stdlog.Fatal(err)
	}

	settingsTable := `CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT
	);`
	if _, err = db.Exec(settingsTable); err != nil {
		stdlog.Fatal(err)
	}

	layoutsTable := `CREATE TABLE IF NOT EXISTS layouts (
		id TEXT PRIMARY KEY,
		name TEXT,
		created_at INTEGER NOT NULL,
		data BLOB NOT NULL
	);`
	if _, err = db.Exec(layoutsTable); err != nil {
		stdlog.Fatal(err)
	}

	logrus.WithField("driver", driverName).Debug("sqlite store ready")
	return &overlayStore{db: db, maxLayouts: DefaultMaxLayouts}
}

// SetMaxLayouts bounds how many layouts are kept; the oldest are evicted first.
func (s *overlayStore) SetMaxLayouts(n int) {
	if n < 1 {
		n = DefaultMaxLayouts
	}
	s.maxLayouts = n
}

func (s *overlayStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

const overlayColumns = "id, name, type, content, x, y, width, height, style, is_visible, version, created_at, updated_at"

func scanOverlay(row rowScanner) (*core.Overlay, error) {
	var (
		overlay            core.Overlay
		kind               string
		style              sql.NullString
		visible            int
		createdAt, updated int64
	)
	err := row.Scan(&overlay.ID, &overlay.Name, &kind, &overlay.Content,
		&overlay.Position.X, &overlay.Position.Y, &overlay.Size.Width, &overlay.Size.Height,
		&style, &visible, &overlay.Version, &createdAt, &updated)
	if err != nil {
		return nil, err
	}

	overlay.Kind = core.Kind(kind)
	overlay.Visible = visible != 0
	overlay.CreatedAt = time.UnixMilli(createdAt).UTC()
	overlay.UpdatedAt = time.UnixMilli(updated).UTC()
	if style.Valid && style.String != "" {
		if err := json.Unmarshal([]byte(style.String), &overlay.Style); err != nil {
			return nil, err
		}
	}
	return &overlay, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *overlayStore) Create(ctx context.Context, draft core.Draft) (*core.Overlay, error) {
	overlay, err := draft.Build()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	overlay.ID = ulid.Make().String()
	overlay.CreatedAt = now
	overlay.UpdatedAt = now

	log := logrus.WithFields(logrus.Fields{
		"overlay_id": overlay.ID,
		"type":       overlay.Kind,
	})

	style, err := json.Marshal(overlay.Style)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO overlays ("+overlayColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		overlay.ID, overlay.Name, string(overlay.Kind), overlay.Content,
		overlay.Position.X, overlay.Position.Y, overlay.Size.Width, overlay.Size.Height,
		string(style), boolToInt(overlay.Visible), overlay.Version, now.UnixMilli(), now.UnixMilli())
	if err != nil {
		log.WithError(err).Error("Failed to create overlay")
		return nil, err
	}

	log.Info("Overlay created successfully")
	return &overlay, nil
}

func (s *overlayStore) List(ctx context.Context) ([]core.Overlay, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+overlayColumns+" FROM overlays ORDER BY id ASC")
	if err != nil {
		logrus.WithError(err).Error("Failed to list overlays")
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			logrus.WithError(cerr).Warn("Failed to close overlay rows")
		}
	}()

	overlays := []core.Overlay{}
	for rows.Next() {
		overlay, err := scanOverlay(rows)
		if err != nil {
			logrus.WithError(err).Error("Failed to scan overlay")
			continue
		}
		overlays = append(overlays, *overlay)
	}
	return overlays, rows.Err()
}

func (s *overlayStore) Get(ctx context.Context, id string) (*core.Overlay, error) {
	log := logrus.WithField("overlay_id", id)
	log.Debug("Retrieving overlay by ID")

	overlay, err := scanOverlay(s.db.QueryRowContext(ctx, "SELECT "+overlayColumns+" FROM overlays WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("Overlay with specified ID not found")
			return nil, &core.NotFoundError{ID: id}
		}
		log.WithError(err).Error("Failed to retrieve overlay")
		return nil, err
	}
	return overlay, nil
}

func (s *overlayStore) Update(ctx context.Context, id string, patch core.Patch) (*core.Overlay, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	log := logrus.WithField("overlay_id", id)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	overlay, err := scanOverlay(tx.QueryRowContext(ctx, "SELECT "+overlayColumns+" FROM overlays WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("Overlay with specified ID not found")
			return nil, &core.NotFoundError{ID: id}
		}
		return nil, err
	}

	patch.Apply(overlay)
	overlay.Version++
	overlay.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)

	style, err := json.Marshal(overlay.Style)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE overlays SET name = ?, content = ?, x = ?, y = ?, width = ?, height = ?, style = ?, is_visible = ?, version = ?, updated_at = ? WHERE id = ?",
		overlay.Name, overlay.Content, overlay.Position.X, overlay.Position.Y,
		overlay.Size.Width, overlay.Size.Height, string(style), boolToInt(overlay.Visible),
		overlay.Version, overlay.UpdatedAt.UnixMilli(), id)
	if err != nil {
		log.WithError(err).Error("Failed to update overlay")
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.WithField("version", overlay.Version).Info("Overlay updated successfully")
	return overlay, nil
}

func (s *overlayStore) Delete(ctx context.Context, id string) error {
	log := logrus.WithField("overlay_id", id)

	result, err := s.db.ExecContext(ctx, "DELETE FROM overlays WHERE id = ?", id)
	if err != nil {
		log.WithError(err).Error("Failed to delete overlay")
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &core.NotFoundError{ID: id}
	}

	log.Info("Overlay deleted successfully")
	return nil
}

const streamURLKey = "stream_url"

func (s *overlayStore) GetStreamURL(ctx context.Context) (string, error) {
	var url string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", streamURLKey).Scan(&url)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return url, err
}

func (s *overlayStore) SetStreamURL(ctx context.Context, url string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		streamURLKey, url)
	if err != nil {
		logrus.WithError(err).Error("Failed to save stream URL")
		return err
	}

	logrus.WithField("stream_url", url).Info("Stream URL saved")
	return nil
}
