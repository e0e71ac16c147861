// Package transcribe builds schema-constrained generation requests for a
// consultation recording or pasted transcript and validates the model's
// answer into a Transcript.
package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/moonlitpsych/medical-transcript-diarizer/internal/media"
	"github.com/moonlitpsych/medical-transcript-diarizer/internal/model"
	"github.com/moonlitpsych/medical-transcript-diarizer/internal/upstream/gemini"
)

// DefaultPatientID is used when the caller supplies no patient identifier.
const DefaultPatientID = "UNKNOWN"

// ErrMalformedResponse means the model answered, but not with a parseable
// transcript. There is no partial-result recovery; the call is a total loss.
var ErrMalformedResponse = errors.New("invalid transcript format received from model")

type Generator interface {
	GenerateContent(ctx context.Context, model string, req gemini.GenerateRequest) (string, error)
}

// Options carries optional caller-supplied metadata. Empty fields fall back
// to DefaultPatientID and the current date.
type Options struct {
	PatientID        string
	ConsultationDate string
}

type Service struct {
	client        Generator
	basicModel    string
	enhancedModel string
	timeout       time.Duration
	now           func() time.Time
}

func New(client Generator, basicModel, enhancedModel string, timeout time.Duration) *Service {
	return &Service{
		client:        client,
		basicModel:    strings.TrimSpace(basicModel),
		enhancedModel: strings.TrimSpace(enhancedModel),
		timeout:       timeout,
		now:           time.Now,
	}
}

// Transcribe diarizes a recording into the basic transcript shape.
//
// The payload's mime type must already be audio/* or video/* and its size
// already under the upload ceiling; both are enforced at the HTTP boundary
// before media is ever encoded.
func (s *Service) Transcribe(ctx context.Context, payload media.Payload, opts Options) (model.Transcript, error) {
	patientID, consultationDate := s.resolveOptions(opts)

	temperature := 0.2
	req := gemini.GenerateRequest{
		Contents: []gemini.Content{{
			Role: "user",
			Parts: []gemini.Part{
				{Text: basicPrompt(patientID, consultationDate)},
				{InlineData: &gemini.Blob{MIMEType: payload.MimeType, Data: payload.Data}},
			},
		}},
		GenerationConfig: &gemini.GenerationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   BasicSchema(),
			Temperature:      &temperature,
		},
	}

	return s.generate(ctx, s.basicModel, req)
}

// TranscribeEnhanced diarizes a recording and additionally extracts a mental
// status exam and clinical observations. Meant for video; audio is accepted
// but yields thin observational data.
func (s *Service) TranscribeEnhanced(ctx context.Context, payload media.Payload, opts Options) (model.Transcript, error) {
	patientID, consultationDate := s.resolveOptions(opts)

	req := gemini.GenerateRequest{
		Contents: []gemini.Content{{
			Role: "user",
			Parts: []gemini.Part{
				{Text: enhancedPrompt(patientID, consultationDate)},
				{InlineData: &gemini.Blob{MIMEType: payload.MimeType, Data: payload.Data}},
			},
		}},
		GenerationConfig: &gemini.GenerationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   EnhancedSchema(),
		},
	}

	return s.generate(ctx, s.enhancedModel, req)
}

// TranscribeText attributes speakers in a pasted plain-text transcript,
// estimating timestamps where the source has none.
func (s *Service) TranscribeText(ctx context.Context, text string, opts Options) (model.Transcript, error) {
	patientID, consultationDate := s.resolveOptions(opts)

	temperature := 0.2
	req := gemini.GenerateRequest{
		Contents: []gemini.Content{{
			Role:  "user",
			Parts: []gemini.Part{{Text: textPrompt(patientID, consultationDate, text)}},
		}},
		GenerationConfig: &gemini.GenerationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   BasicSchema(),
			Temperature:      &temperature,
		},
	}

	return s.generate(ctx, s.basicModel, req)
}

func (s *Service) generate(ctx context.Context, modelName string, req gemini.GenerateRequest) (model.Transcript, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// Exactly one attempt; retry policy belongs to the caller, if anywhere.
	text, err := s.client.GenerateContent(ctx, modelName, req)
	if err != nil {
		return model.Transcript{}, fmt.Errorf("generate transcript: %w", err)
	}

	var transcript model.Transcript
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &transcript); err != nil {
		return model.Transcript{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := transcript.Validate(); err != nil {
		return model.Transcript{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return transcript, nil
}

func (s *Service) resolveOptions(opts Options) (patientID, consultationDate string) {
	patientID = strings.TrimSpace(opts.PatientID)
	if patientID == "" {
		patientID = DefaultPatientID
	}
	consultationDate = strings.TrimSpace(opts.ConsultationDate)
	if consultationDate == "" {
		consultationDate = s.now().UTC().Format("2006-01-02")
	}
	return patientID, consultationDate
}
