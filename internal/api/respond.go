package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/CMZCoder/CommerzioS-sub000/internal/database"
	"github.com/CMZCoder/CommerzioS-sub000/internal/service"
)

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeServiceError maps domain errors onto HTTP statuses. Unknown errors are
// treated as bad input: the services validate before they touch storage, and
// storage failures come through as the sentinel errors above.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, database.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot unavailable")
	case errors.Is(err, database.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid transition")
	case errors.Is(err, database.ErrDuplicateHold):
		writeError(w, http.StatusConflict, "payment already held")
	case errors.Is(err, database.ErrDisputeAlreadyOpen):
		writeError(w, http.StatusConflict, "dispute already open")
	case errors.Is(err, database.ErrAlreadyResolved):
		writeError(w, http.StatusConflict, "dispute already resolved")
	case errors.Is(err, database.ErrConcurrentModification):
		writeError(w, http.StatusConflict, "concurrent modification, retry")
	case errors.Is(err, database.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, database.ErrLedgerCorrupt):
		writeError(w, http.StatusInternalServerError, "internal error")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, service.ErrNotParticipant):
		writeError(w, http.StatusForbidden, "forbidden")
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}
