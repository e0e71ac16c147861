package model

// ErrorResponse is the uniform error envelope for every non-2xx response.
// Message carries diagnostic detail for generic failures and is omitted when
// the error string alone is specific enough.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type HealthResponse struct {
	OK bool `json:"ok"`
}

type ReadyResponse struct {
	OK          bool   `json:"ok"`
	ServiceName string `json:"service_name,omitempty"`
}

// IngestResponse is returned for every successful transcription, regardless
// of which endpoint produced it.
type IngestResponse struct {
	Status     string     `json:"status"`
	Transcript Transcript `json:"transcript"`
}

// TextTranscribeRequest is the JSON body for the pasted-transcript path.
type TextTranscribeRequest struct {
	Text             string `json:"text"`
	PatientID        string `json:"patientId,omitempty"`
	ConsultationDate string `json:"consultationDate,omitempty"`
}

// WebhookPayload is what gets POSTed to the configured scribe webhook after
// a successful ingest.
type WebhookPayload struct {
	Status     string     `json:"status"`
	Transcript Transcript `json:"transcript"`
}
