package httpinterface

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-notary/internal/core/application"
	"github.com/tdex-network/tdex-notary/internal/core/application/pubsub"
	"github.com/tdex-network/tdex-notary/internal/core/domain"
	"github.com/tdex-network/tdex-notary/pkg/explorer"
	"github.com/tdex-network/tdex-notary/pkg/fingerprint"
)

var errTransactionNotFound = errors.New("transaction not tracked")

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Debug("http: failed to write response")
	}
}

// writeError replies with the status matching the error. Errors not
// classified as client or not-found ones are replied with fallbackStatus.
func writeError(w http.ResponseWriter, err error, fallbackStatus int) {
	status := statusFromError(err, fallbackStatus)
	if status >= http.StatusInternalServerError {
		log.WithError(err).Warn("http: request failed")
	} else {
		log.WithError(err).Debug("http: bad request")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// parseIntParam parses an optional non negative query param, 0 if missing.
func parseIntParam(str string) (int, error) {
	if len(str) <= 0 {
		return 0, nil
	}
	n, err := strconv.Atoi(str)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid number %s", str)
	}
	return n, nil
}

func statusFromError(err error, fallbackStatus int) int {
	var queryErr *application.QueryError
	var readErr *fingerprint.ReadError

	switch {
	case errors.Is(err, fingerprint.ErrInvalidDigest),
		errors.Is(err, application.ErrMissingAddress),
		errors.Is(err, application.ErrMissingTxID),
		errors.Is(err, application.ErrUploadCancelled),
		errors.Is(err, pubsub.ErrInvalidTopic),
		errors.As(err, &readErr):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, explorer.ErrTransactionNotFound),
		errors.Is(err, errTransactionNotFound):
		return http.StatusNotFound
	case errors.Is(err, application.ErrSessionSettled):
		return http.StatusConflict
	case errors.Is(err, application.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &queryErr),
		errors.Is(err, explorer.ErrInvalidResponse):
		return http.StatusBadGateway
	default:
		return fallbackStatus
	}
}
