package overlays

import (
	"encoding/json"
	"net/http"
	"overlay-server/core"
	"overlay-server/handlers/api"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type (
	OverlayResponse struct {
		Message string        `json:"message,omitempty"`
		Overlay *core.Overlay `json:"overlay"`
	}

	ListResponse struct {
		Overlays []core.Overlay `json:"overlays"`
	}

	MessageResponse struct {
		Message string `json:"message"`
	}
)

func publish(publisher core.ChangePublisher, r *http.Request, event core.ChangeEvent) {
	if publisher == nil {
		return
	}
	event.Origin = r.Header.Get(core.OriginHeader)
	publisher.Publish(event)
}

// HandleCreate saves a new overlay from a draft.
func HandleCreate(store core.OverlayStore, publisher core.ChangePublisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var draft core.Draft
		if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
			api.BadRequest(w, r, err)
			return
		}

		overlay, err := store.Create(r.Context(), draft)
		if err != nil {
			api.Fail(w, r, err, "Failed to create overlay")
			return
		}

		publish(publisher, r, core.ChangeEvent{Type: core.ChangeCreated, OverlayID: overlay.ID, Overlay: overlay})

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, OverlayResponse{Message: "Overlay created successfully", Overlay: overlay})
	}
}

func HandleList(store core.OverlayStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		overlays, err := store.List(r.Context())
		if err != nil {
			api.Fail(w, r, err, "Failed to list overlays")
			return
		}

		if overlays == nil {
			overlays = []core.Overlay{}
		}

		render.JSON(w, r, ListResponse{Overlays: overlays})
	}
}

func HandleGet(store core.OverlayStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		overlay, err := store.Get(r.Context(), id)
		if err != nil {
			api.Fail(w, r, err, "Failed to get overlay")
			return
		}

		render.JSON(w, r, OverlayResponse{Overlay: overlay})
	}
}

// HandleUpdate merges the fields present in the body into the overlay.
func HandleUpdate(store core.OverlayStore, publisher core.ChangePublisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var patch core.Patch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			api.BadRequest(w, r, err)
			return
		}
		if patch.Empty() {
			api.Fail(w, r, &core.ValidationError{Field: "body", Reason: "has no fields to update"}, "")
			return
		}

		overlay, err := store.Update(r.Context(), id, patch)
		if err != nil {
			api.Fail(w, r, err, "Failed to update overlay")
			return
		}

		logrus.WithFields(logrus.Fields{
			"overlay_id": id,
			"version":    overlay.Version,
		}).Debug("Overlay update served")
		publish(publisher, r, core.ChangeEvent{Type: core.ChangeUpdated, OverlayID: id, Overlay: overlay})

		render.JSON(w, r, OverlayResponse{Message: "Overlay updated successfully", Overlay: overlay})
	}
}

func HandleDelete(store core.OverlayStore, publisher core.ChangePublisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		if err := store.Delete(r.Context(), id); err != nil {
			api.Fail(w, r, err, "Failed to delete overlay")
			return
		}

		publish(publisher, r, core.ChangeEvent{Type: core.ChangeDeleted, OverlayID: id})

		render.JSON(w, r, MessageResponse{Message: "Overlay deleted successfully"})
	}
}
