package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/po-console/internal/platform/httpx"
	"github.com/odyssey-erp/po-console/internal/shared"
)

// Handler wires the session hand-off endpoints.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		csrfManager:    csrf,
	}
}

// MountRoutes registers session routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/session", h.show)
	r.Post("/session", h.start)
	r.Delete("/session", h.end)
}

type sessionView struct {
	Authenticated bool           `json:"authenticated"`
	Tenant        *shared.Tenant `json:"tenant,omitempty"`
	CSRFToken     string         `json:"csrfToken"`
}

// show reports the session state. Unauthenticated callers still get a CSRF
// token so the login hand-off can be posted.
func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	token, err := h.csrfManager.EnsureToken(r.Context(), sess)
	if err != nil {
		h.logger.Error("ensure csrf token", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	view := sessionView{CSRFToken: token}
	if tenant, err := shared.TenantFromSession(sess); err == nil {
		view.Authenticated = true
		view.Tenant = &tenant
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	var in HandOff
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenant, err := h.service.Start(r.Context(), sess, in)
	if err != nil {
		h.logger.Warn("session hand-off", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	token, err := h.csrfManager.Rotate(r.Context(), sess)
	if err != nil {
		h.logger.Error("rotate csrf token", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("session started", slog.String("tenant", tenant.TenantID), slog.String("user", tenant.UserID))
	httpx.JSON(w, http.StatusOK, sessionView{Authenticated: true, Tenant: &tenant, CSRFToken: token})
}

func (h *Handler) end(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		h.service.End(r.Context(), sess)
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}
