package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/moonlitpsych/medical-transcript-diarizer/internal/config"
	"github.com/moonlitpsych/medical-transcript-diarizer/internal/media"
	"github.com/moonlitpsych/medical-transcript-diarizer/internal/model"
	"github.com/moonlitpsych/medical-transcript-diarizer/internal/transcribe"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
)

type Transcriber interface {
	Transcribe(ctx context.Context, payload media.Payload, opts transcribe.Options) (model.Transcript, error)
	TranscribeEnhanced(ctx context.Context, payload media.Payload, opts transcribe.Options) (model.Transcript, error)
	TranscribeText(ctx context.Context, text string, opts transcribe.Options) (model.Transcript, error)
}

type WebhookDeliverer interface {
	Configured() bool
	Deliver(ctx context.Context, transcript model.Transcript) error
}

type UpstreamChecker interface {
	CheckModels(ctx context.Context) error
}

type MetricsObserver interface {
	ObserveHTTP(route, method string, status int, duration time.Duration)
	IncWebhookFailure()
}

type Dependencies struct {
	Transcriber    Transcriber
	Webhook        WebhookDeliverer
	Upstream       UpstreamChecker
	Metrics        MetricsObserver
	MetricsHandler http.Handler
}

type server struct {
	cfg          config.Config
	logger       *slog.Logger
	transcriber  Transcriber
	webhook      WebhookDeliverer
	upstream     UpstreamChecker
	metrics      MetricsObserver
	metricsRoute http.Handler
}

type ctxKey string

const (
	requestIDHeader  = "X-Request-Id"
	requestIDContext = ctxKey("request_id")
	maxJSONBodyBytes = 4 << 20

	patientIDHeader        = "x-patient-id"
	consultationDateHeader = "x-consultation-date"

	// When a caller omits Content-Type entirely the body is treated as an
	// m4a upload (the iOS Shortcut sender's format) and accepted, so the
	// validation below always runs against a concrete mime type.
	defaultContentType = "audio/m4a"
)

func NewServer(cfg config.Config, logger *slog.Logger, deps Dependencies) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Transcriber == nil || deps.Webhook == nil || deps.Upstream == nil {
		panic("httpapi: all dependencies are required")
	}

	s := &server{
		cfg:          cfg,
		logger:       logger,
		transcriber:  deps.Transcriber,
		webhook:      deps.Webhook,
		upstream:     deps.Upstream,
		metrics:      deps.Metrics,
		metricsRoute: deps.MetricsHandler,
	}

	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusNotFound, "not_found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
	})

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", patientIDHeader, consultationDateHeader},
		MaxAge:         300,
	}))
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if s.metricsRoute != nil {
		r.Handle("/metrics", s.metricsRoute)
	}

	// CORS preflights carrying Access-Control-Request-Method are answered
	// by the cors middleware; this covers bare OPTIONS probes. Preflight
	// answers 200 even when ingest is gated off.
	r.Options("/ingest", s.handlePreflight)

	r.Group(func(r chi.Router) {
		r.Use(s.gateMiddleware)
		r.Use(s.authMiddleware)

		r.Post("/ingest", s.handleIngest)

		r.Route("/v1/transcribe", func(r chi.Router) {
			r.Post("/enhanced", s.handleTranscribeEnhanced)
			r.Post("/text", s.handleTranscribeText)
		})
	})

	return r
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.HealthResponse{OK: true})
}

func (s *server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.upstream.CheckModels(ctx); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "not_ready", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, model.ReadyResponse{OK: true, ServiceName: "medical-transcript-diarizer"})
}

func (s *server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", strings.Join([]string{"Authorization", "Content-Type", patientIDHeader, consultationDateHeader}, ", "))
	w.WriteHeader(http.StatusOK)
}

func (s *server) handleIngest(w http.ResponseWriter, r *http.Request) {
	payload, opts, ok := s.readMediaBody(w, r)
	if !ok {
		return
	}

	transcript, err := s.transcriber.Transcribe(r.Context(), payload, opts)
	if err != nil {
		s.logger.Error("transcription failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		s.writeError(w, http.StatusInternalServerError, "ingest_failed", err.Error())
		return
	}

	s.forwardToWebhook(r.Context(), transcript)
	writeJSON(w, http.StatusOK, model.IngestResponse{Status: "ok", Transcript: transcript})
}

func (s *server) handleTranscribeEnhanced(w http.ResponseWriter, r *http.Request) {
	payload, opts, ok := s.readMediaBody(w, r)
	if !ok {
		return
	}

	transcript, err := s.transcriber.TranscribeEnhanced(r.Context(), payload, opts)
	if err != nil {
		s.logger.Error("enhanced transcription failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		s.writeError(w, http.StatusInternalServerError, "transcribe_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, model.IngestResponse{Status: "ok", Transcript: transcript})
}

func (s *server) handleTranscribeText(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	defer func() { _ = r.Body.Close() }()

	var req model.TextTranscribeRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		s.handleJSONDecodeError(w, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.writeError(w, http.StatusBadRequest, "text is required", "")
		return
	}

	transcript, err := s.transcriber.TranscribeText(r.Context(), req.Text, transcribe.Options{
		PatientID:        req.PatientID,
		ConsultationDate: req.ConsultationDate,
	})
	if err != nil {
		s.logger.Error("text transcription failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		s.writeError(w, http.StatusInternalServerError, "transcribe_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, model.IngestResponse{Status: "ok", Transcript: transcript})
}

// readMediaBody runs the shared front half of the media endpoints: mime
// validation, size-capped buffering, base64 encoding, and header metadata
// extraction. On failure it writes the response and returns ok=false.
func (s *server) readMediaBody(w http.ResponseWriter, r *http.Request) (media.Payload, transcribe.Options, bool) {
	contentType := strings.TrimSpace(r.Header.Get("Content-Type"))
	if contentType == "" {
		contentType = defaultContentType
	}
	if !media.SupportedMimeType(contentType) {
		s.writeError(w, http.StatusUnsupportedMediaType, "Invalid content type. Must be audio/* or video/*", "")
		return media.Payload{}, transcribe.Options{}, false
	}

	body, err := media.ReadAll(r.Body, s.cfg.MaxUploadBytes)
	switch {
	case errors.Is(err, media.ErrTooLarge):
		msg := fmt.Sprintf("File too large. Maximum size is %dMB", s.cfg.MaxUploadBytes/(1024*1024))
		if r.ContentLength > 0 {
			msg += fmt.Sprintf(". Received: %.1fMB", float64(r.ContentLength)/(1024*1024))
		}
		s.writeError(w, http.StatusRequestEntityTooLarge, msg, "")
		return media.Payload{}, transcribe.Options{}, false
	case errors.Is(err, media.ErrEmpty):
		s.writeError(w, http.StatusBadRequest, "Empty file received", "")
		return media.Payload{}, transcribe.Options{}, false
	case err != nil:
		s.writeError(w, http.StatusBadRequest, "Failed to read request body", "")
		return media.Payload{}, transcribe.Options{}, false
	}

	opts := transcribe.Options{
		PatientID:        strings.TrimSpace(r.Header.Get(patientIDHeader)),
		ConsultationDate: strings.TrimSpace(r.Header.Get(consultationDateHeader)),
	}
	return media.NewPayload(contentType, body), opts, true
}

// forwardToWebhook is best-effort: a failed delivery is logged and counted
// but never changes the HTTP outcome of the ingest.
func (s *server) forwardToWebhook(ctx context.Context, transcript model.Transcript) {
	if !s.webhook.Configured() {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.WebhookTimeout)
	defer cancel()
	if err := s.webhook.Deliver(ctx, transcript); err != nil {
		s.logger.Error("webhook delivery failed", "request_id", requestIDFromContext(ctx), "error", err)
		if s.metrics != nil {
			s.metrics.IncWebhookFailure()
		}
	}
}

func (s *server) handleJSONDecodeError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		s.writeError(w, http.StatusRequestEntityTooLarge, "JSON body too large", "")
		return
	}
	s.writeError(w, http.StatusBadRequest, "Invalid JSON body", "")
}

func (s *server) writeError(w http.ResponseWriter, status int, errMsg, detail string) {
	writeJSON(w, status, model.ErrorResponse{Error: errMsg, Message: detail})
}

func (s *server) gateMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.IngestEnabled {
			s.writeError(w, http.StatusServiceUnavailable, "Ingest endpoint is disabled", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authMiddleware compares the bearer token against INGEST_TOKEN. With no
// token configured, no request can ever authenticate.
func (s *server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := extractBearerToken(r.Header.Get("Authorization"))
		if !ok || s.cfg.IngestToken == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.IngestToken)) != 1 {
			s.writeError(w, http.StatusUnauthorized, "Unauthorized", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		ctx := context.WithValue(r.Context(), requestIDContext, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		duration := time.Since(started)
		if s.metrics != nil {
			s.metrics.ObserveHTTP(route, r.Method, status, duration)
		}

		s.logger.Info("http_request",
			"request_id", requestIDFromContext(r.Context()),
			"method", r.Method,
			"route", route,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", duration.Milliseconds(),
		)
	})
}

func (s *server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", "request_id", requestIDFromContext(r.Context()), "panic", rec)
				s.writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func requestIDFromContext(ctx context.Context) string {
	value, _ := ctx.Value(requestIDContext).(string)
	return value
}

func extractBearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", false
	}
	return token, true
}
