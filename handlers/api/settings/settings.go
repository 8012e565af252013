package settings

import (
	"encoding/json"
	"net/http"
	"overlay-server/core"
	"overlay-server/handlers/api"
	"overlay-server/stream"
	"strings"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type (
	StreamSettings struct {
		StreamURL string        `json:"streamUrl"`
		RTSPURL   string        `json:"rtspUrl,omitempty"`
		Stream    stream.Stream `json:"stream"`
	}

	SettingsResponse struct {
		Message  string         `json:"message,omitempty"`
		Settings StreamSettings `json:"settings"`
	}

	SetStreamURLRequest struct {
		StreamURL string `json:"streamUrl"`
		RTSPURL   string `json:"rtspUrl"`
	}
)

// legacy selects the older /settings/rtsp shape, which names the field rtspUrl.
func respond(w http.ResponseWriter, r *http.Request, resolver stream.Resolver, url, message string, legacy bool) {
	settings := StreamSettings{StreamURL: url, Stream: resolver.Resolve(url)}
	if legacy {
		settings.RTSPURL = url
	}
	render.JSON(w, r, SettingsResponse{Message: message, Settings: settings})
}

func handleGet(store core.SettingsStore, resolver stream.Resolver, legacy bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url, err := store.GetStreamURL(r.Context())
		if err != nil {
			api.Fail(w, r, err, "Failed to get stream settings")
			return
		}
		respond(w, r, resolver, url, "", legacy)
	}
}

func handleSet(store core.SettingsStore, resolver stream.Resolver, publisher core.ChangePublisher, legacy bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SetStreamURLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.BadRequest(w, r, err)
			return
		}

		url := strings.TrimSpace(req.StreamURL)
		field := "streamUrl"
		if legacy {
			url, field = strings.TrimSpace(req.RTSPURL), "rtspUrl"
		}
		if url == "" {
			api.Fail(w, r, &core.ValidationError{Field: field, Reason: "is required"}, "")
			return
		}

		if err := store.SetStreamURL(r.Context(), url); err != nil {
			api.Fail(w, r, err, "Failed to save stream settings")
			return
		}

		logrus.WithField("stream_url", url).Info("Stream settings updated")
		if publisher != nil {
			publisher.Publish(core.ChangeEvent{Type: core.ChangeSettings, Origin: r.Header.Get(core.OriginHeader)})
		}

		respond(w, r, resolver, url, "Settings saved successfully", legacy)
	}
}

// HandleGetStreamURL returns the configured stream URL and how to play it.
// An unset URL resolves to the default sample stream.
func HandleGetStreamURL(store core.SettingsStore, resolver stream.Resolver) http.HandlerFunc {
	return handleGet(store, resolver, false)
}

func HandleSetStreamURL(store core.SettingsStore, resolver stream.Resolver, publisher core.ChangePublisher) http.HandlerFunc {
	return handleSet(store, resolver, publisher, false)
}

// HandleGetRTSP serves older players that still read rtspUrl.
func HandleGetRTSP(store core.SettingsStore, resolver stream.Resolver) http.HandlerFunc {
	return handleGet(store, resolver, true)
}

func HandleSetRTSP(store core.SettingsStore, resolver stream.Resolver, publisher core.ChangePublisher) http.HandlerFunc {
	return handleSet(store, resolver, publisher, true)
}
