package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/profitpilot/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeKindError writes an error response that also names the error kind.
func writeKindError(w http.ResponseWriter, status int, kind model.ErrorKind, message string) {
	writeJSON(w, status, errorResponse{
		Error:  message,
		Kind:   string(kind),
		Action: string(kind.Action()),
	})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind,omitempty"`
	Action string `json:"action,omitempty"`
}

// SessionResponse is the JSON representation of a session snapshot.
type SessionResponse struct {
	Status          string `json:"status"`
	Label           string `json:"label"`
	Message         string `json:"message,omitempty"`
	ErrorKind       string `json:"error_kind,omitempty"`
	Action          string `json:"action,omitempty"`
	StopUnconfirmed bool   `json:"stop_unconfirmed"`
	Busy            bool   `json:"busy"`
	CanStart        bool   `json:"can_start"`
	CanStop         bool   `json:"can_stop"`
	UpdatedAt       string `json:"updated_at"`
}

// EventResponse is one message on the session event stream.
type EventResponse struct {
	Type        string          `json:"type"`
	OperationID string          `json:"operation_id,omitempty"`
	Session     SessionResponse `json:"session"`
	ErrorKind   string          `json:"error_kind,omitempty"`
	Message     string          `json:"message,omitempty"`
	At          string          `json:"at"`
}

// BrokersResponse lists broker names.
type BrokersResponse struct {
	Brokers []string `json:"brokers"`
}

// ServersResponse lists the servers of one broker.
type ServersResponse struct {
	Broker  string   `json:"broker"`
	Servers []string `json:"servers"`
}

// HealthResponse is the JSON representation of a health check.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// LoginRequest is the expected JSON body for POST /api/v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// toSessionResponse converts a domain snapshot to its JSON representation.
func toSessionResponse(s model.SessionSnapshot) SessionResponse {
	return SessionResponse{
		Status:          string(s.Status),
		Label:           s.Label,
		Message:         s.Message,
		ErrorKind:       string(s.ErrorKind),
		Action:          string(s.Action),
		StopUnconfirmed: s.StopUnconfirmed,
		Busy:            s.Busy,
		CanStart:        s.CanStart(),
		CanStop:         s.CanStop(),
		UpdatedAt:       s.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// toEventResponse converts a session event to its JSON representation.
func toEventResponse(ev model.SessionEvent) EventResponse {
	return EventResponse{
		Type:        string(ev.Type),
		OperationID: ev.OperationID,
		Session:     toSessionResponse(ev.Snapshot),
		ErrorKind:   string(ev.ErrorKind),
		Message:     ev.Message,
		At:          ev.At.UTC().Format(time.RFC3339),
	}
}
