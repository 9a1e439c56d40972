package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"Wulin-Chronicle/server/internal/faction"
	"Wulin-Chronicle/server/internal/game"
	"Wulin-Chronicle/server/internal/interfaces"
	"Wulin-Chronicle/server/internal/prompts"
	"Wulin-Chronicle/server/internal/state"
)

const maxBodySize = 1 << 16

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type Handler struct {
	logger    zerolog.Logger
	session   *game.Session
	factions  *faction.System
	templates *prompts.TemplateEngine
	hub       *StateHub
}

func NewHandler(logger zerolog.Logger, session *game.Session, factions *faction.System, templates *prompts.TemplateEngine, hub *StateHub) *Handler {
	return &Handler{
		logger:    logger.With().Str("component", "web").Logger(),
		session:   session,
		factions:  factions,
		templates: templates,
		hub:       hub,
	}
}

// Router mounts the game API. Scene calls may wait on the LLM, so the
// request timeout is generous.
func (h *Handler) Router(requestTimeout time.Duration) http.Handler {
	if requestTimeout <= 0 {
		requestTimeout = 2 * time.Minute
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)
	r.Use(corsMiddleware)

	r.Get("/health", h.health)
	r.Get("/ws", h.stream)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Get("/state", h.getState)
		r.Post("/scene/next", h.nextScene)
		r.Post("/scene/choose", h.choose)
		r.Post("/travel", h.travel)
		r.Post("/command", h.command)
		r.Get("/factions", h.getFactions)
		r.Get("/wars", h.getWars)
		r.Get("/templates", h.listTemplates)
		r.Get("/templates/{name}", h.exportTemplate)
	})
	return r
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": "wulin-chronicle"})
}

func (h *Handler) getState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"state":  state.Serialize(h.session.State()),
		"scene":  h.session.Scene(),
		"tone":   h.session.Tone(),
		"legacy": h.session.LegacySummary(),
	})
}

func (h *Handler) nextScene(w http.ResponseWriter, r *http.Request) {
	scene, err := h.session.NextScene(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scene)
}

func (h *Handler) choose(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index int `json:"index"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	outcome, err := h.session.Choose(r.Context(), req.Index)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *Handler) travel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Direction string `json:"direction"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	loc, err := h.session.Travel(r.Context(), state.Direction(req.Direction))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func (h *Handler) command(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	cmd, err := ParseCommand(req.Text)
	if err != nil {
		h.writeError(w, err)
		return
	}
	reply, err := runCommand(r.Context(), h.session, cmd)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (h *Handler) getFactions(w http.ResponseWriter, r *http.Request) {
	factions, err := h.factions.Factions(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	relationships, err := h.factions.Relationships(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"factions": factions, "relationships": relationships})
}

func (h *Handler) getWars(w http.ResponseWriter, r *http.Request) {
	wars, err := h.factions.Wars(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(wars))
	for _, war := range wars {
		out = append(out, map[string]any{
			"subject":   war.Subject,
			"timestamp": war.Timestamp,
			"details":   war.GetDetails(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"wars": out})
}

func (h *Handler) listTemplates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"templates": h.templates.Names()})
}

// exportTemplate returns a template in the JSON form the overrides directory
// accepts.
func (h *Handler) exportTemplate(w http.ResponseWriter, r *http.Request) {
	exported, err := h.templates.ExportTemplate(chi.URLParam(r, "name"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(exported))
}

func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	client := &Client{ID: uuid.NewString(), Conn: conn, Send: make(chan []byte, 64)}
	if msg, err := stateMessage(h.session.State()); err == nil {
		client.Send <- msg
	}
	h.hub.register <- client

	go h.hub.writePump(client)
	h.hub.readPump(client)
}

// writeError maps session errors onto status codes.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, game.ErrNoScene):
		status = http.StatusConflict
	case errors.Is(err, interfaces.ErrSlotNotFound),
		errors.Is(err, prompts.ErrUnknownTemplate):
		status = http.StatusNotFound
	case errors.Is(err, state.ErrInvalidSnapshot):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, game.ErrInvalidChoice),
		errors.Is(err, game.ErrUnknownTone),
		errors.Is(err, game.ErrInvalidSlot),
		errors.Is(err, game.ErrNoExit),
		errors.Is(err, game.ErrNotEnoughGold),
		errors.Is(err, game.ErrMissingItem),
		errors.Is(err, errNotACommand),
		errors.Is(err, errUnknownCommand),
		errors.Is(err, errMissingArg),
		errors.Is(err, errBadArg):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.logger.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
