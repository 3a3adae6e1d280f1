package console

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"livestream-console/internal/overlay"
	"livestream-console/internal/platform/config"
	"livestream-console/internal/platform/logger"
	"livestream-console/internal/platform/metrics"
	"livestream-console/internal/remote"
	"livestream-console/internal/stream"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handler exposes the console over HTTP using go-chi.
type Handler struct {
	console *Console
	hub     *Hub
	presets []config.Preset
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler. Metrics may be nil to disable metric
// recording (e.g. in tests).
func NewHandler(c *Console, hub *Hub, presets []config.Preset, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{console: c, hub: hub, presets: presets, log: log, metrics: m}
}

// Router builds the console's routes with request id, logging and metrics middleware.
func (h *Handler) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logger.RequestLogger(h.log))
	r.Use(metrics.RequestMiddleware(h.metrics))

	if h.metrics != nil {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			h.metrics.Handler(func() {
				h.metrics.SetOverlays(len(h.console.Overlays()))
				h.metrics.SetWebsocketClients(h.hub.Clients())
			}).ServeHTTP(w, r)
		})
	}
	r.Get("/ws", h.hub.ServeWS)
	r.Get("/state", h.GetState)
	r.Get("/presets", h.GetPresets)
	r.Put("/container", h.PutContainer)
	r.Post("/source", h.PostSource)
	r.Route("/player", func(r chi.Router) {
		r.Post("/play", h.Play)
		r.Post("/pause", h.Pause)
		r.Put("/volume", h.PutVolume)
	})
	r.Route("/overlays", func(r chi.Router) {
		r.Get("/", h.ListOverlays)
		r.Post("/", h.CreateOverlay)
		r.Post("/reload", h.ReloadOverlays)
		r.Route("/{id}", func(r chi.Router) {
			r.Put("/", h.UpdateOverlay)
			r.Delete("/", h.DeleteOverlay)
			r.Post("/toggle", h.ToggleOverlay)
		})
	})
	r.Post("/pointer", h.Pointer)
	return r
}

type response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, response{Success: true, Data: data})
}

// writeError maps sentinel errors onto status codes. Anything unrecognised is
// a backend failure.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadGateway
	var apiErr *remote.APIError
	switch {
	case errors.Is(err, overlay.ErrInvalid), errors.Is(err, stream.ErrVolumeRange):
		status = http.StatusBadRequest
	case errors.Is(err, overlay.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrGestureActive), errors.Is(err, stream.ErrNoSource):
		status = http.StatusConflict
	case errors.Is(err, ErrConfirmationRequired):
		status = http.StatusPreconditionRequired
	case errors.As(err, &apiErr):
		h.log.Warn("backend call failed",
			slog.String("op", apiErr.Op),
			slog.Int("status", apiErr.Status),
			slog.String("error", apiErr.Message))
	default:
		h.log.Error("request failed", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
	}
	writeJSON(w, status, response{Error: err.Error()})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(overlay.ErrInvalid, err)
	}
	return nil
}

// GetState handles GET /state.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, h.console.Snapshot())
}

// GetPresets handles GET /presets.
func (h *Handler) GetPresets(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, h.presets)
}

// PutContainer handles PUT /container. Body: {"left":0,"top":0,"width":800,"height":450}.
func (h *Handler) PutContainer(w http.ResponseWriter, r *http.Request) {
	var rect overlay.Rect
	if err := decode(r, &rect); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.console.SetContainer(rect)
	writeData(w, http.StatusOK, rect)
}

// PostSource handles POST /source. Body: {"url":"rtsp://..."}. Playback
// problems are reported in the returned status, not as an HTTP error.
func (h *Handler) PostSource(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL string `json:"url"`
	}
	if err := decode(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, h.console.SetSource(r.Context(), body.URL))
}

// Play handles POST /player/play.
func (h *Handler) Play(w http.ResponseWriter, r *http.Request) {
	if err := h.console.Play(); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, h.console.Snapshot().Player)
}

// Pause handles POST /player/pause.
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	h.console.Pause()
	writeData(w, http.StatusOK, h.console.Snapshot().Player)
}

// PutVolume handles PUT /player/volume. Body: {"volume":0.5}.
func (h *Handler) PutVolume(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Volume *float64 `json:"volume"`
	}
	if err := decode(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	if body.Volume == nil {
		h.writeError(w, r, stream.ErrVolumeRange)
		return
	}
	if err := h.console.SetVolume(*body.Volume); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, h.console.Snapshot().Player)
}

// ListOverlays handles GET /overlays. Hidden overlays are included.
func (h *Handler) ListOverlays(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, h.console.Overlays())
}

// CreateOverlay handles POST /overlays. Omitted fields take the form defaults.
func (h *Handler) CreateOverlay(w http.ResponseWriter, r *http.Request) {
	d := overlay.NewDraft()
	if err := decode(r, &d); err != nil {
		h.writeError(w, r, err)
		return
	}
	o, err := h.console.CreateOverlay(r.Context(), d)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, o)
}

// UpdateOverlay handles PUT /overlays/{id}. The body is a partial overlay.
func (h *Handler) UpdateOverlay(w http.ResponseWriter, r *http.Request) {
	var p overlay.Patch
	if err := decode(r, &p); err != nil {
		h.writeError(w, r, err)
		return
	}
	o, err := h.console.UpdateOverlay(r.Context(), overlay.ID(chi.URLParam(r, "id")), p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, o)
}

// DeleteOverlay handles DELETE /overlays/{id}?confirm=true.
func (h *Handler) DeleteOverlay(w http.ResponseWriter, r *http.Request) {
	id := overlay.ID(chi.URLParam(r, "id"))
	confirmed := r.URL.Query().Get("confirm") == "true"
	if err := h.console.DeleteOverlay(r.Context(), id, confirmed); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.log.Info("overlay deleted", slog.String("id", string(id)))
	writeData(w, http.StatusOK, nil)
}

// ToggleOverlay handles POST /overlays/{id}/toggle.
func (h *Handler) ToggleOverlay(w http.ResponseWriter, r *http.Request) {
	o, err := h.console.ToggleVisible(r.Context(), overlay.ID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, o)
}

// ReloadOverlays handles POST /overlays/reload.
func (h *Handler) ReloadOverlays(w http.ResponseWriter, r *http.Request) {
	if err := h.console.Reload(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, h.console.Overlays())
}

// PointerEvent is a pointer sample in page coordinates. Type is one of
// down, move, up or cancel (window blur).
type PointerEvent struct {
	Type   string     `json:"type"`
	X      float64    `json:"x"`
	Y      float64    `json:"y"`
	Target overlay.ID `json:"target,omitempty"`
	Handle bool       `json:"handle,omitempty"`
}

// Pointer handles POST /pointer.
func (h *Handler) Pointer(w http.ResponseWriter, r *http.Request) {
	var ev PointerEvent
	if err := decode(r, &ev); err != nil {
		h.writeError(w, r, err)
		return
	}
	p := overlay.Point{X: ev.X, Y: ev.Y}

	switch ev.Type {
	case "down":
		id, err := h.console.PointerDown(Press{Point: p, Target: ev.Target, Handle: ev.Handle})
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, map[string]overlay.ID{"id": id})
		return
	case "move":
		h.console.PointerMove(p)
	case "up":
		if err := h.console.PointerUp(r.Context(), p); err != nil {
			h.writeError(w, r, err)
			return
		}
	case "cancel":
		h.console.Blur()
	default:
		writeJSON(w, http.StatusBadRequest, response{Error: "unknown pointer event " + ev.Type})
		return
	}
	writeData(w, http.StatusOK, nil)
}
