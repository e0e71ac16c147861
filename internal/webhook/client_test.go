package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/moonlitpsych/medical-transcript-diarizer/internal/model"
)

func sampleTranscript() model.Transcript {
	return model.Transcript{
		PatientID:        "P-1",
		ConsultationDate: "2026-02-01",
		Entries:          []model.Entry{{Speaker: "Doctor", Line: "Hello", Timestamp: "00:00:01"}},
	}
}

func TestDeliverPostsCompletedPayload(t *testing.T) {
	var received model.WebhookPayload
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Fatalf("unexpected content type: %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c := New(ts.URL, ts.Client())
	if err := c.Deliver(context.Background(), sampleTranscript()); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	if received.Status != "completed" {
		t.Fatalf("unexpected status: %q", received.Status)
	}
	if received.Transcript.PatientID != "P-1" || len(received.Transcript.Entries) != 1 {
		t.Fatalf("unexpected transcript: %+v", received.Transcript)
	}
}

func TestDeliverNon2xxIsError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer ts.Close()

	c := New(ts.URL, ts.Client())
	err := c.Deliver(context.Background(), sampleTranscript())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Fatalf("error should carry status: %v", err)
	}
}

func TestConfigured(t *testing.T) {
	if New("", nil).Configured() {
		t.Fatal("empty URL should not be configured")
	}
	if !New("http://example.com/hook", nil).Configured() {
		t.Fatal("expected configured client")
	}
}
