package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ericfisherdev/profitpilot/internal/adapter/driving/form"
	"github.com/ericfisherdev/profitpilot/internal/application"
	"github.com/ericfisherdev/profitpilot/internal/domain/model"
)

// Handler is the HTTP driving adapter that serves the JSON API and the
// session event stream.
type Handler struct {
	session *application.SessionController
	auth    *application.AuthService
	logger  *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	session *application.SessionController,
	auth *application.AuthService,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		session: session,
		auth:    auth,
		logger:  logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("GET /api/v1/session", h.GetSession)
	mux.HandleFunc("POST /api/v1/session/start", h.StartSession)
	mux.HandleFunc("POST /api/v1/session/stop", h.StopSession)
	mux.HandleFunc("GET /api/v1/session/events", h.SessionEvents)
	mux.HandleFunc("GET /api/v1/brokers", h.ListBrokers)
	mux.HandleFunc("GET /api/v1/brokers/{broker}/servers", h.ListServers)
	mux.HandleFunc("POST /api/v1/brokers/refresh", h.RefreshBrokers)
	mux.HandleFunc("POST /api/v1/auth/login", h.Login)
	mux.HandleFunc("POST /api/v1/auth/logout", h.Logout)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// GetSession returns the current session snapshot.
func (h *Handler) GetSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toSessionResponse(h.session.CurrentState()))
}

// StartSession validates the start form and runs the start protocol. The
// response carries the settled state; a remote failure is reported as a
// Failed session, not as an HTTP error.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req form.TradingForm
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	params, err := req.Parameters(h.session.Catalog())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	state, err := h.session.RequestStart(r.Context(), params)
	if err != nil {
		h.writeRejection(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(state))
}

// StopSession runs the stop protocol.
func (h *Handler) StopSession(w http.ResponseWriter, r *http.Request) {
	state, err := h.session.RequestStop(r.Context())
	if err != nil {
		h.writeRejection(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(state))
}

// ListBrokers returns the broker names of the cached catalog.
func (h *Handler) ListBrokers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, BrokersResponse{Brokers: h.session.Catalog().Brokers()})
}

// ListServers returns the servers offered by one broker.
func (h *Handler) ListServers(w http.ResponseWriter, r *http.Request) {
	broker := r.PathValue("broker")

	servers := h.session.Catalog().Servers(broker)
	if servers == nil {
		writeError(w, http.StatusNotFound, "broker not found")
		return
	}

	writeJSON(w, http.StatusOK, ServersResponse{Broker: broker, Servers: servers})
}

// RefreshBrokers fetches the catalog again and returns the broker names.
func (h *Handler) RefreshBrokers(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.session.RefreshCatalog(r.Context())
	if err != nil {
		writeKindError(w, http.StatusBadGateway, model.KindCatalogUnavailable, model.MsgCatalogUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, BrokersResponse{Brokers: catalog.Brokers()})
}

// Login exchanges email and password for a stored credential.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.auth.Login(r.Context(), req.Email, req.Password); err != nil {
		if errors.Is(err, application.ErrMissingLogin) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeRemoteError(w, "login failed", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Logout invalidates the credential and clears local session state.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context()); err != nil {
		if errors.Is(err, application.ErrBusy) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.writeRemoteError(w, "logout failed", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// writeRejection maps a controller rejection to its status code.
func (h *Handler) writeRejection(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, application.ErrMissingParameters):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, application.ErrBusy), errors.Is(err, application.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("unexpected session rejection", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// writeRemoteError writes a classified remote failure with its user-facing
// message. Anything else is logged and reported as a 500.
func (h *Handler) writeRemoteError(w http.ResponseWriter, msg string, err error) {
	var te *model.TradingError
	if !errors.As(err, &te) {
		h.logger.Error(msg, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	status := http.StatusBadGateway
	switch te.Kind {
	case model.KindInvalidCredentials, model.KindAuthExpired:
		status = http.StatusUnauthorized
	case model.KindNotFound:
		status = http.StatusNotFound
	}

	h.logger.Warn(msg, "kind", te.Kind, "status_code", te.StatusCode)
	writeKindError(w, status, te.Kind, te.Message)
}
