package websocket

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"massupload/internal/config"
	apierrors "massupload/internal/errors"
	"massupload/internal/infrastructure"
)

// Handler upgrades HTTP requests to websocket connections for one user.
// The user comes from the X-User-ID header or, for browsers that cannot
// set headers on the upgrade, from the user query parameter.
type Handler struct {
	hub      *Hub
	cfg      config.WebSocketConfig
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates the upgrade handler. An empty allowedOrigins list
// accepts same-host origins only; "*" accepts any origin.
func NewHandler(hub *Hub, cfg config.WebSocketConfig, allowedOrigins []string, logger *slog.Logger) *Handler {
	return &Handler{
		hub: hub,
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger.With(slog.String("component", "websocket.handler")),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user := r.Header.Get("X-User-ID")
	if user == "" {
		user = r.URL.Query().Get("user")
	}
	if user == "" {
		apierrors.WriteError(w, apierrors.ErrMissingUser)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written the HTTP error
		h.logger.WarnContext(r.Context(), "websocket upgrade failed",
			slog.String("user", user),
			slog.String("error", err.Error()))
		return
	}

	client := NewClient(h.hub, conn, user, infrastructure.GetTraceID(r.Context()), h.cfg, h.logger)
	if err := h.hub.Register(client); err != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}
