package api

import (
	"errors"
	"net/http"
	"overlay-server/core"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error  string `json:"error"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Fail writes err as a JSON error: 400 for validation failures, 404 for
// unknown ids and 500 with message for anything else.
func Fail(w http.ResponseWriter, r *http.Request, err error, message string) {
	var validation *core.ValidationError
	switch {
	case errors.As(err, &validation):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: err.Error(), Field: validation.Field, Reason: validation.Reason})
	case core.IsNotFound(err):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, ErrorResponse{Error: err.Error()})
	default:
		logrus.WithField("error", err).Error(message)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{Error: message})
	}
}

// BadRequest reports a body that could not be decoded.
func BadRequest(w http.ResponseWriter, r *http.Request, err error) {
	logrus.WithField("error", err).Debug("Failed to decode request")
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, ErrorResponse{Error: "Invalid request body"})
}
