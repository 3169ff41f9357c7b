package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bimakw/ledger-analyzer/internal/domain/entities"
)

const dateLayout = "2006-01-02"

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string             `json:"error"`
	Kind  entities.ErrorKind `json:"kind,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

// respondServiceError maps a pipeline error onto its HTTP status
func respondServiceError(w http.ResponseWriter, err error) {
	kind := entities.KindOf(err)
	respondJSON(w, statusForKind(kind), ErrorResponse{Error: err.Error(), Kind: kind})
}

func statusForKind(kind entities.ErrorKind) int {
	switch kind {
	case entities.KindInvalidAddress, entities.KindInvalidRequest:
		return http.StatusBadRequest
	case entities.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// parseDate accepts RFC3339 or a bare date. A bare end date covers the whole day.
func parseDate(s string, endOfDay bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, errors.New("dates must be RFC3339 or YYYY-MM-DD, got " + s)
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return t, nil
}

// parseDateRange parses an optional start/end pair; zero values select defaults downstream
func parseDateRange(start, end string) (entities.DateRange, error) {
	from, err := parseDate(start, false)
	if err != nil {
		return entities.DateRange{}, err
	}
	to, err := parseDate(end, true)
	if err != nil {
		return entities.DateRange{}, err
	}
	return entities.DateRange{Start: from, End: to}, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
