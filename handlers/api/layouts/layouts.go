package layouts

import (
	"encoding/json"
	"net/http"
	"overlay-server/core"
	"overlay-server/handlers/api"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type (
	CreateLayoutRequest struct {
		Name string `json:"name"`
	}

	CreateLayoutResponse struct {
		ID      string `json:"id"`
		Entries int    `json:"entries"`
	}

	ListLayoutsResponse struct {
		Layouts []core.Layout `json:"layouts"`
	}

	LayoutResponse struct {
		Layout *core.Layout `json:"layout"`
	}

	ApplyLayoutResponse struct {
		Applied []string `json:"applied"`
		Skipped []string `json:"skipped"`
	}
)

// HandleCreateLayout captures the current geometry and visibility of every
// overlay under a name.
func HandleCreateLayout(layouts core.LayoutStore, overlays core.OverlayStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateLayoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.BadRequest(w, r, err)
			return
		}

		name := strings.TrimSpace(req.Name)
		if name == "" {
			api.Fail(w, r, &core.ValidationError{Field: "name", Reason: "is required"}, "")
			return
		}

		current, err := overlays.List(r.Context())
		if err != nil {
			api.Fail(w, r, err, "Failed to list overlays")
			return
		}

		entries := core.CaptureLayout(current)
		id, err := layouts.CreateLayout(r.Context(), name, entries)
		if err != nil {
			api.Fail(w, r, err, "Failed to create layout")
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, CreateLayoutResponse{ID: id, Entries: len(entries)})
	}
}

// HandleListLayouts lists saved layouts, newest first, without their entries.
func HandleListLayouts(layouts core.LayoutStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := layouts.ListLayouts(r.Context())
		if err != nil {
			api.Fail(w, r, err, "Failed to list layouts")
			return
		}

		if list == nil {
			list = []core.Layout{}
		}

		render.JSON(w, r, ListLayoutsResponse{Layouts: list})
	}
}

func HandleGetLayout(layouts core.LayoutStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		layout, err := layouts.GetLayout(r.Context(), chi.URLParam(r, "layoutId"))
		if err != nil {
			api.Fail(w, r, err, "Failed to get layout")
			return
		}

		render.JSON(w, r, LayoutResponse{Layout: layout})
	}
}

func HandleDeleteLayout(layouts core.LayoutStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := layouts.DeleteLayout(r.Context(), chi.URLParam(r, "layoutId")); err != nil {
			api.Fail(w, r, err, "Failed to delete layout")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleApplyLayout writes a layout's geometry back onto the overlays it
// captured. Overlays deleted since the capture are skipped.
func HandleApplyLayout(layouts core.LayoutStore, overlays core.OverlayStore, publisher core.ChangePublisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		layoutID := chi.URLParam(r, "layoutId")

		layout, err := layouts.GetLayout(r.Context(), layoutID)
		if err != nil {
			api.Fail(w, r, err, "Failed to get layout")
			return
		}

		response := ApplyLayoutResponse{Applied: []string{}, Skipped: []string{}}
		for _, entry := range layout.Entries {
			overlay, err := overlays.Update(r.Context(), entry.OverlayID, entry.Patch())
			if err != nil {
				if core.IsNotFound(err) || core.IsValidation(err) {
					response.Skipped = append(response.Skipped, entry.OverlayID)
					continue
				}
				api.Fail(w, r, err, "Failed to apply layout")
				return
			}

			response.Applied = append(response.Applied, entry.OverlayID)
			if publisher != nil {
				publisher.Publish(core.ChangeEvent{
					Type:      core.ChangeUpdated,
					OverlayID: overlay.ID,
					Overlay:   overlay,
					Origin:    r.Header.Get(core.OriginHeader),
				})
			}
		}

		logrus.WithFields(logrus.Fields{
			"layout_id": layoutID,
			"applied":   len(response.Applied),
			"skipped":   len(response.Skipped),
		}).Info("Layout applied")

		render.JSON(w, r, response)
	}
}
