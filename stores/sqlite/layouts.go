package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"overlay-server/core"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// CreateLayout stores a named arrangement, evicting the oldest layouts once
// the limit is reached.
func (s *overlayStore) CreateLayout(ctx context.Context, name string, entries []core.LayoutEntry) (string, error) {
	id := ulid.Make().String()
	createdAt := time.Now().UnixMilli()

	log := logrus.WithFields(logrus.Fields{
		"layout_id": id,
		"entries":   len(entries),
	})

	data, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM layouts").Scan(&count); err != nil {
		log.WithError(err).Error("Failed to count layouts")
		return "", err
	}

	if excess := count - s.maxLayouts + 1; excess > 0 {
		_, err = tx.ExecContext(ctx,
			"DELETE FROM layouts WHERE id IN (SELECT id FROM layouts ORDER BY created_at ASC, id ASC LIMIT ?)",
			excess)
		if err != nil {
			log.WithError(err).Error("Failed to evict oldest layout")
			return "", err
		}
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO layouts (id, name, created_at, data) VALUES (?, ?, ?, ?)",
		id, name, createdAt, data)
	if err != nil {
		log.WithError(err).Error("Failed to create layout")
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}

	log.Info("Layout created successfully")
	return id, nil
}

// ListLayouts returns layout metadata, newest first, without entries.
func (s *overlayStore) ListLayouts(ctx context.Context) ([]core.Layout, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, created_at FROM layouts ORDER BY created_at DESC, id DESC")
	if err != nil {
		logrus.WithError(err).Error("Failed to list layouts")
		return nil, err
	}
	defer rows.Close()

	layouts := []core.Layout{}
	for rows.Next() {
		var layout core.Layout
		var name sql.NullString
		if err := rows.Scan(&layout.ID, &name, &layout.CreatedAt); err != nil {
			logrus.WithError(err).Error("Failed to scan layout")
			continue
		}
		layout.Name = name.String
		layouts = append(layouts, layout)
	}
	return layouts, rows.Err()
}

func (s *overlayStore) GetLayout(ctx context.Context, id string) (*core.Layout, error) {
	var (
		layout core.Layout
		name   sql.NullString
		data   []byte
	)
	err := s.db.QueryRowContext(ctx, "SELECT id, name, created_at, data FROM layouts WHERE id = ?", id).
		Scan(&layout.ID, &name, &layout.CreatedAt, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &core.LayoutNotFoundError{ID: id}
		}
		return nil, err
	}

	layout.Name = name.String
	if err := json.Unmarshal(data, &layout.Entries); err != nil {
		return nil, fmt.Errorf("decode layout %s: %w", id, err)
	}
	return &layout, nil
}

func (s *overlayStore) DeleteLayout(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM layouts WHERE id = ?", id)
	if err != nil {
		logrus.WithField("layout_id", id).WithError(err).Error("Failed to delete layout")
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &core.LayoutNotFoundError{ID: id}
	}
	return nil
}
