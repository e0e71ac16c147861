package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/moonlitpsych/medical-transcript-diarizer/internal/config"
	"github.com/moonlitpsych/medical-transcript-diarizer/internal/media"
	"github.com/moonlitpsych/medical-transcript-diarizer/internal/model"
	"github.com/moonlitpsych/medical-transcript-diarizer/internal/transcribe"
)

func validTranscript() model.Transcript {
	return model.Transcript{
		PatientID:        "P-9",
		ConsultationDate: "2026-04-02",
		Entries: []model.Entry{
			{Speaker: "Doctor", Line: "Hello", Timestamp: "00:00:01"},
			{Speaker: "Patient", Line: "Hi", Timestamp: "00:00:02"},
		},
	}
}

type stubTranscriber struct {
	transcript model.Transcript
	err        error

	calls   int
	method  string
	payload media.Payload
	text    string
	opts    transcribe.Options
}

func (s *stubTranscriber) Transcribe(_ context.Context, payload media.Payload, opts transcribe.Options) (model.Transcript, error) {
	s.calls++
	s.method = "basic"
	s.payload = payload
	s.opts = opts
	return s.transcript, s.err
}

func (s *stubTranscriber) TranscribeEnhanced(_ context.Context, payload media.Payload, opts transcribe.Options) (model.Transcript, error) {
	s.calls++
	s.method = "enhanced"
	s.payload = payload
	s.opts = opts
	return s.transcript, s.err
}

func (s *stubTranscriber) TranscribeText(_ context.Context, text string, opts transcribe.Options) (model.Transcript, error) {
	s.calls++
	s.method = "text"
	s.text = text
	s.opts = opts
	return s.transcript, s.err
}

type stubWebhook struct {
	configured bool
	err        error
	calls      int
	got        model.Transcript
}

func (s *stubWebhook) Configured() bool { return s.configured }

func (s *stubWebhook) Deliver(_ context.Context, transcript model.Transcript) error {
	s.calls++
	s.got = transcript
	return s.err
}

type stubUpstream struct{ err error }

func (s stubUpstream) CheckModels(context.Context) error { return s.err }

func testConfig() config.Config {
	return config.Config{
		IngestEnabled:  true,
		IngestToken:    "abc123",
		MaxUploadBytes: 1024 * 1024,
		WebhookTimeout: time.Second,
	}
}

func newTestHandler(t *testing.T, cfg config.Config, deps Dependencies) http.Handler {
	t.Helper()
	if deps.Transcriber == nil {
		deps.Transcriber = &stubTranscriber{transcript: validTranscript()}
	}
	if deps.Webhook == nil {
		deps.Webhook = &stubWebhook{}
	}
	if deps.Upstream == nil {
		deps.Upstream = stubUpstream{}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(cfg, logger, deps)
}

func ingestRequest(body []byte, mutate func(*http.Request)) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/ingest", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer abc123")
	req.Header.Set("Content-Type", "audio/m4a")
	if mutate != nil {
		mutate(req)
	}
	return req
}

func TestIngestSuccess(t *testing.T) {
	tr := &stubTranscriber{transcript: validTranscript()}
	h := newTestHandler(t, testConfig(), Dependencies{Transcriber: tr})

	body := bytes.Repeat([]byte{0xab}, 10*1024)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, ingestRequest(body, nil))

	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", w.Code, w.Body.String())
	}

	if tr.calls != 1 || tr.method != "basic" {
		t.Fatalf("expected one basic transcription, got %d %q", tr.calls, tr.method)
	}
	if tr.payload.MimeType != "audio/m4a" {
		t.Fatalf("unexpected mime: %q", tr.payload.MimeType)
	}
	if tr.payload.Data != base64.StdEncoding.EncodeToString(body) {
		t.Fatal("payload is not the base64 of the uploaded bytes")
	}

	var resp model.IngestResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ok" || len(resp.Transcript.Entries) != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestIngestForwardsMetadataHeaders(t *testing.T) {
	tr := &stubTranscriber{transcript: validTranscript()}
	h := newTestHandler(t, testConfig(), Dependencies{Transcriber: tr})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, ingestRequest([]byte("audio"), func(r *http.Request) {
		r.Header.Set("x-patient-id", "P-9")
		r.Header.Set("x-consultation-date", "2026-04-02")
	}))

	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", w.Code, w.Body.String())
	}
	if tr.opts.PatientID != "P-9" || tr.opts.ConsultationDate != "2026-04-02" {
		t.Fatalf("metadata headers not forwarded: %+v", tr.opts)
	}
}

func TestIngestDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.IngestEnabled = false
	h := newTestHandler(t, cfg, Dependencies{})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, ingestRequest([]byte("audio"), nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Ingest endpoint is disabled") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestIngestAuth(t *testing.T) {
	cases := []struct {
		name   string
		token  string
		mutate func(*http.Request)
	}{
		{name: "missing header", mutate: func(r *http.Request) { r.Header.Del("Authorization") }},
		{name: "wrong scheme", mutate: func(r *http.Request) { r.Header.Set("Authorization", "Basic abc123") }},
		{name: "wrong token", mutate: func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }},
		{name: "empty token", mutate: func(r *http.Request) { r.Header.Set("Authorization", "Bearer ") }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := &stubTranscriber{transcript: validTranscript()}
			h := newTestHandler(t, testConfig(), Dependencies{Transcriber: tr})

			w := httptest.NewRecorder()
			h.ServeHTTP(w, ingestRequest([]byte("audio"), tc.mutate))

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("unexpected status: %d body=%s", w.Code, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), "Unauthorized") {
				t.Fatalf("unexpected body: %s", w.Body.String())
			}
			if tr.calls != 0 {
				t.Fatal("transcriber must not run on auth failure")
			}
		})
	}
}

func TestIngestFailsClosedWithoutConfiguredToken(t *testing.T) {
	cfg := testConfig()
	cfg.IngestToken = ""
	h := newTestHandler(t, cfg, Dependencies{})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, ingestRequest([]byte("audio"), nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unconfigured token must fail closed, got %d", w.Code)
	}
}

func TestIngestInvalidContentType(t *testing.T) {
	h := newTestHandler(t, testConfig(), Dependencies{})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, ingestRequest([]byte("audio"), func(r *http.Request) {
		r.Header.Set("Content-Type", "application/json")
	}))

	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("unexpected status: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Invalid content type") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestIngestAbsentContentTypeTreatedAsM4A(t *testing.T) {
	tr := &stubTranscriber{transcript: validTranscript()}
	h := newTestHandler(t, testConfig(), Dependencies{Transcriber: tr})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, ingestRequest([]byte("audio"), func(r *http.Request) {
		r.Header.Del("Content-Type")
	}))

	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", w.Code, w.Body.String())
	}
	if tr.payload.MimeType != "audio/m4a" {
		t.Fatalf("absent content type should default to audio/m4a, got %q", tr.payload.MimeType)
	}
}

func TestIngestEmptyBody(t *testing.T) {
	h := newTestHandler(t, testConfig(), Dependencies{})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, ingestRequest(nil, nil))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Empty file received") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestIngestSizeBoundary(t *testing.T) {
	cfg := testConfig()
	cfg.MaxUploadBytes = 1024

	t.Run("at limit accepted", func(t *testing.T) {
		h := newTestHandler(t, cfg, Dependencies{})
		w := httptest.NewRecorder()
		h.ServeHTTP(w, ingestRequest(bytes.Repeat([]byte{0x01}, 1024), nil))
		if w.Code != http.StatusOK {
			t.Fatalf("body at the limit must be accepted, got %d", w.Code)
		}
	})

	t.Run("one byte over rejected", func(t *testing.T) {
		tr := &stubTranscriber{transcript: validTranscript()}
		h := newTestHandler(t, cfg, Dependencies{Transcriber: tr})
		w := httptest.NewRecorder()
		h.ServeHTTP(w, ingestRequest(bytes.Repeat([]byte{0x01}, 1025), nil))
		if w.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("unexpected status: %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "File too large") {
			t.Fatalf("unexpected body: %s", w.Body.String())
		}
		if tr.calls != 0 {
			t.Fatal("transcriber must not run on oversized body")
		}
	})
}

func TestIngestTranscriberErrorIs500(t *testing.T) {
	tr := &stubTranscriber{err: errors.New("generate transcript: upstream request failed with status 429")}
	h := newTestHandler(t, testConfig(), Dependencies{Transcriber: tr})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, ingestRequest([]byte("audio"), nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", w.Code)
	}

	var resp model.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Error != "ingest_failed" {
		t.Fatalf("unexpected error code: %q", resp.Error)
	}
	if !strings.Contains(resp.Message, "status 429") {
		t.Fatalf("inner message not carried: %q", resp.Message)
	}
}

func TestIngestMalformedModelOutputIs500(t *testing.T) {
	tr := &stubTranscriber{err: transcribe.ErrMalformedResponse}
	h := newTestHandler(t, testConfig(), Dependencies{Transcriber: tr})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, ingestRequest([]byte("audio"), nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "invalid transcript format") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestIngestDeliversToWebhook(t *testing.T) {
	wh := &stubWebhook{configured: true}
	h := newTestHandler(t, testConfig(), Dependencies{Webhook: wh})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, ingestRequest([]byte("audio"), nil))

	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", w.Code)
	}
	if wh.calls != 1 {
		t.Fatalf("expected one webhook delivery, got %d", wh.calls)
	}
	if wh.got.PatientID != "P-9" {
		t.Fatalf("unexpected webhook transcript: %+v", wh.got)
	}
}

func TestIngestWebhookFailureStill200(t *testing.T) {
	wh := &stubWebhook{configured: true, err: errors.New("connection refused")}
	h := newTestHandler(t, testConfig(), Dependencies{Webhook: wh})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, ingestRequest([]byte("audio"), nil))

	if w.Code != http.StatusOK {
		t.Fatalf("webhook failure must not change the response, got %d", w.Code)
	}
	if wh.calls != 1 {
		t.Fatalf("expected one delivery attempt, got %d", wh.calls)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestIngestSkipsUnconfiguredWebhook(t *testing.T) {
	wh := &stubWebhook{configured: false}
	h := newTestHandler(t, testConfig(), Dependencies{Webhook: wh})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, ingestRequest([]byte("audio"), nil))

	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", w.Code)
	}
	if wh.calls != 0 {
		t.Fatal("webhook must not be called when unconfigured")
	}
}

func TestIngestPreflight(t *testing.T) {
	cfg := testConfig()
	cfg.IngestEnabled = false // preflight answers regardless of the gate
	h := newTestHandler(t, cfg, Dependencies{})

	req := httptest.NewRequest(http.MethodOptions, "/ingest", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("missing CORS origin header, got %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, "x-patient-id") {
		t.Fatalf("metadata headers not allowed: %q", got)
	}
}

func TestTranscribeTextSuccess(t *testing.T) {
	tr := &stubTranscriber{transcript: validTranscript()}
	h := newTestHandler(t, testConfig(), Dependencies{Transcriber: tr})

	body := `{"text":"Speaker 1: hello","patientId":"P-9","consultationDate":"2026-04-02"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/transcribe/text", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer abc123")
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", w.Code, w.Body.String())
	}
	if tr.method != "text" || tr.text != "Speaker 1: hello" {
		t.Fatalf("unexpected transcriber call: %q %q", tr.method, tr.text)
	}
	if tr.opts.PatientID != "P-9" {
		t.Fatalf("metadata not forwarded: %+v", tr.opts)
	}
}

func TestTranscribeTextRequiresText(t *testing.T) {
	h := newTestHandler(t, testConfig(), Dependencies{})

	req := httptest.NewRequest(http.MethodPost, "/v1/transcribe/text", strings.NewReader(`{"text":"  "}`))
	req.Header.Set("Authorization", "Bearer abc123")
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", w.Code)
	}
}

func TestTranscribeTextRequiresAuth(t *testing.T) {
	h := newTestHandler(t, testConfig(), Dependencies{})

	req := httptest.NewRequest(http.MethodPost, "/v1/transcribe/text", strings.NewReader(`{"text":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", w.Code)
	}
}

func TestTranscribeEnhancedReturnsMSE(t *testing.T) {
	enhanced := validTranscript()
	enhanced.MentalStatusExam = &model.MentalStatusExam{
		Appearance: "well groomed",
		Behavior:   "cooperative",
		Affect:     "restricted",
		Speech:     "soft",
	}
	tr := &stubTranscriber{transcript: enhanced}
	h := newTestHandler(t, testConfig(), Dependencies{Transcriber: tr})

	req := httptest.NewRequest(http.MethodPost, "/v1/transcribe/enhanced", bytes.NewReader([]byte("video")))
	req.Header.Set("Authorization", "Bearer abc123")
	req.Header.Set("Content-Type", "video/mp4")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", w.Code, w.Body.String())
	}
	if tr.method != "enhanced" {
		t.Fatalf("unexpected transcriber call: %q", tr.method)
	}
	if !strings.Contains(w.Body.String(), `"mentalStatusExam"`) {
		t.Fatalf("MSE missing from response: %s", w.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	h := newTestHandler(t, testConfig(), Dependencies{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok":true`) {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestReadyzReportsUpstreamFailure(t *testing.T) {
	h := newTestHandler(t, testConfig(), Dependencies{Upstream: stubUpstream{err: errors.New("boom")}})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: %d", w.Code)
	}
}
