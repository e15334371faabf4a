// Package handlers exposes the HTTP API: health, the SSE acquisition
// stream, and synchronous transcript endpoints.
package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-scribe/cache"
	"github.com/nijaru/yt-scribe/config"
	"github.com/nijaru/yt-scribe/errors"
	"github.com/nijaru/yt-scribe/middleware"
	"github.com/nijaru/yt-scribe/models"
	"github.com/nijaru/yt-scribe/services/transcript"
	"github.com/nijaru/yt-scribe/sse"
	"github.com/nijaru/yt-scribe/validation"
)

const healthTimeout = 5 * time.Second

// Prober reports whether a dependency is reachable. Health probes run
// with a short deadline so a dead dependency cannot hang the endpoint.
type Prober func(ctx context.Context) bool

type Handler struct {
	service *transcript.Service
	cache   *cache.Cache
	probes  map[string]Prober
	cfg     *config.Config
	log     *logrus.Logger
}

func New(service *transcript.Service, c *cache.Cache, probes map[string]Prober, cfg *config.Config, log *logrus.Logger) *Handler {
	return &Handler{
		service: service,
		cache:   c,
		probes:  probes,
		cfg:     cfg,
		log:     log,
	}
}

// Register mounts all routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("GET /api/v1/videos/{id}/stream", h.StreamTranscript)
	mux.HandleFunc("POST /api/v1/transcripts", h.CreateTranscript)
	mux.HandleFunc("GET /api/v1/transcripts/{id}", h.GetTranscript)
}

// Health reports liveness and per-dependency reachability. The
// endpoint answers 200 even when optional dependencies are down; the
// component map carries the detail.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	components := make(map[string]string, len(h.probes))
	for name, probe := range h.probes {
		if probe(ctx) {
			components[name] = "up"
		} else {
			components[name] = "down"
		}
	}

	h.respondJSON(w, r, http.StatusOK, map[string]any{
		"status":     "ok",
		"version":    h.cfg.Version,
		"components": components,
	})
}

// StreamTranscript runs an acquisition and delivers it as SSE frames.
// The id path segment accepts a bare video ID or an escaped watch URL.
func (h *Handler) StreamTranscript(w http.ResponseWriter, r *http.Request) {
	videoID, err := validation.ParseVideoID(r.PathValue("id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	log := middleware.GetLogger(r.Context())

	writer, err := sse.NewWriter(w, log)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	events, err := h.service.Acquire(r.Context(), videoID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if err := writer.Stream(r.Context(), events, h.cfg.Delivery.KeepAliveInterval); err != nil {
		log.WithError(err).Debug("Event stream ended early")
	}
}

// CreateTranscript acquires a transcript and responds with the whole
// of it once the pipeline finishes.
func (h *Handler) CreateTranscript(w http.ResponseWriter, r *http.Request) {
	var req models.TranscriptRequest
	if err := readJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	input := req.VideoID
	if input == "" {
		input = req.URL
	}
	videoID, err := validation.ParseVideoID(input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resp, err := h.service.AcquireSync(r.Context(), videoID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, resp)
}

// GetTranscript is a cache-only read; it never triggers acquisition.
func (h *Handler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	const op = "Handler.GetTranscript"

	videoID, err := validation.ParseVideoID(r.PathValue("id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	entry, ok := h.cache.Get(r.Context(), videoID)
	if !ok {
		h.respondError(w, r, errors.NotFound(op, nil, "transcript not found"))
		return
	}
	h.respondJSON(w, r, http.StatusOK, models.NewTranscriptResponse(entry, true))
}

type errorBody struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

type errorResponse struct {
	Error     errorBody `json:"error"`
	RequestID string    `json:"request_id,omitempty"`
}

func (h *Handler) respondJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		middleware.GetLogger(r.Context()).WithError(err).Error("Failed to encode response")
	}
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.CodeInternal
	status := http.StatusInternalServerError
	message := "Internal server error"

	var app *errors.AppError
	if stderrors.As(err, &app) {
		code = app.Code
		status = app.HTTPStatus()
		message = app.Message
	}

	entry := middleware.GetLogger(r.Context()).WithError(err).WithField("status", status)
	if status >= 500 {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	h.respondJSON(w, r, status, errorResponse{
		Error:     errorBody{Code: code, Message: message},
		RequestID: middleware.GetRequestID(r.Context()),
	})
}

func readJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.InvalidInput("readJSON", err, "invalid JSON body")
	}
	return nil
}
