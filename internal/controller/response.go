package controller

import (
    "encoding/json"
    "errors"
    "net/http"

    "github.com/rs/zerolog"

    appErrors "github.com/unclebandit/leopard-outreach/internal/errors"
)

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    json.NewEncoder(w).Encode(v)
}

func WriteMessage(w http.ResponseWriter, status int, msg string) {
    WriteJSON(w, status, map[string]string{"error": msg})
}

// WriteError maps domain errors to status codes. Anything unrecognised is
// logged and reported as a 500 without its details.
func WriteError(w http.ResponseWriter, logger zerolog.Logger, err error) {
    var (
        validation *appErrors.ValidationError
        notFound   *appErrors.ErrCampaignNotFound
        transition *appErrors.InvalidTransitionError
        config     *appErrors.ConfigurationError
    )
    switch {
    case errors.As(err, &validation):
        WriteMessage(w, http.StatusBadRequest, validation.Error())
    case errors.As(err, &notFound):
        WriteMessage(w, http.StatusNotFound, notFound.Error())
    case errors.As(err, &transition):
        WriteMessage(w, http.StatusConflict, transition.Error())
    case errors.As(err, &config):
        WriteMessage(w, http.StatusConflict, config.Error())
    default:
        logger.Error().Err(err).Msg("request failed")
        WriteMessage(w, http.StatusInternalServerError, "internal error")
    }
}
