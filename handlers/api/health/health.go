package health

import (
	"net/http"
	"overlay-server/core"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type (
	// ViewerCounter reports how many realtime clients are connected.
	ViewerCounter interface {
		Viewers() int
	}

	Response struct {
		Status   string `json:"status"`
		Database string `json:"database"`
		Viewers  int    `json:"viewers"`
	}
)

// HandleHealth reports whether the store answers. A failing store yields 503
// with status "degraded".
func HandleHealth(store core.OverlayStore, viewers ViewerCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := Response{Status: "ok", Database: "connected"}
		if viewers != nil {
			response.Viewers = viewers.Viewers()
		}

		if _, err := store.List(r.Context()); err != nil {
			logrus.WithField("error", err).Warn("Health check: store unavailable")
			response.Status = "degraded"
			response.Database = "disconnected"
			render.Status(r, http.StatusServiceUnavailable)
		}

		render.JSON(w, r, response)
	}
}
