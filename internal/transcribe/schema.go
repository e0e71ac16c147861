package transcribe

import "github.com/moonlitpsych/medical-transcript-diarizer/internal/upstream/gemini"

// The response schemas handed to the model. Pushing structure into the
// request means response handling only has to check presence and array-ness,
// not scrape JSON out of prose.

func transcriptEntrySchema() *gemini.Schema {
	return &gemini.Schema{
		Type: gemini.TypeObject,
		Properties: map[string]*gemini.Schema{
			"speaker": {
				Type:        gemini.TypeString,
				Description: `The speaker of the line, either "Doctor" or "Patient".`,
			},
			"line": {
				Type:        gemini.TypeString,
				Description: "The transcribed dialogue text.",
			},
			"timestamp": {
				Type:        gemini.TypeString,
				Description: "Timestamp of when the line was spoken, in HH:MM:SS format.",
			},
		},
		Required: []string{"speaker", "line", "timestamp"},
	}
}

func basicSchemaProperties() map[string]*gemini.Schema {
	return map[string]*gemini.Schema{
		"patientId": {
			Type:        gemini.TypeString,
			Description: "The unique identifier for the patient.",
		},
		"consultationDate": {
			Type:        gemini.TypeString,
			Description: "The date of the consultation in YYYY-MM-DD format.",
		},
		"transcript": {
			Type:        gemini.TypeArray,
			Description: "An array of transcript entries, each containing a speaker, their dialogue, and a timestamp.",
			Items:       transcriptEntrySchema(),
		},
	}
}

// BasicSchema constrains output to patient metadata plus the diarized
// transcript.
func BasicSchema() *gemini.Schema {
	return &gemini.Schema{
		Type:       gemini.TypeObject,
		Properties: basicSchemaProperties(),
		Required:   []string{"patientId", "consultationDate", "transcript"},
	}
}

// EnhancedSchema extends the basic schema with a required mental status exam
// and optional timestamped clinical observations.
func EnhancedSchema() *gemini.Schema {
	props := basicSchemaProperties()
	props["mentalStatusExam"] = &gemini.Schema{
		Type:        gemini.TypeObject,
		Description: "Mental Status Exam observations from video analysis",
		Properties: map[string]*gemini.Schema{
			"appearance": {
				Type:        gemini.TypeString,
				Description: "Observations about grooming, hygiene, dress appropriateness",
			},
			"behavior": {
				Type:        gemini.TypeString,
				Description: "Psychomotor activity, eye contact, cooperation, gestures",
			},
			"affect": {
				Type:        gemini.TypeString,
				Description: "Range, appropriateness, intensity, and quality of emotional expression",
			},
			"speech": {
				Type:        gemini.TypeString,
				Description: "Rate, volume, articulation, fluency of speech",
			},
		},
	}
	props["clinicalObservations"] = &gemini.Schema{
		Type:        gemini.TypeArray,
		Description: "Notable clinical observations with timestamps",
		Items: &gemini.Schema{
			Type: gemini.TypeObject,
			Properties: map[string]*gemini.Schema{
				"timestamp": {
					Type:        gemini.TypeString,
					Description: "When the observation occurred",
				},
				"observation": {
					Type:        gemini.TypeString,
					Description: "The clinical observation",
				},
			},
		},
	}
	return &gemini.Schema{
		Type:       gemini.TypeObject,
		Properties: props,
		Required:   []string{"patientId", "consultationDate", "transcript", "mentalStatusExam"},
	}
}
