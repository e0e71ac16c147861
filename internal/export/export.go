// Package export renders a transcript into its two download encodings: a
// round-trippable JSON document and the flat "scribe" text the downstream
// documentation tool ingests.
package export

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/moonlitpsych/medical-transcript-diarizer/internal/model"
)

// ToJSON pretty-prints the full transcript. Parsing the output reproduces an
// equal structure.
func ToJSON(t model.Transcript) ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// ToScribeText flattens a transcript to "Speaker: line" dialogue with a
// metadata header. Timestamps, the mental status exam, and clinical
// observations are dropped; the scribe consumer only takes flat dialogue.
func ToScribeText(t model.Transcript) string {
	lines := make([]string, 0, 3+2*len(t.Entries))
	lines = append(lines, "Date: "+t.ConsultationDate)
	lines = append(lines, "Patient ID: "+t.PatientID)
	lines = append(lines, "")
	for _, entry := range t.Entries {
		lines = append(lines, entry.Speaker+": "+entry.Line)
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// FileName builds the download name <date>_<patientId>_transcript.<ext>.
// Date and patient ID arrive as opaque header strings, so both are sanitized
// before they end up in a filesystem path.
func FileName(t model.Transcript, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	return fmt.Sprintf("%s_%s_transcript.%s", sanitize(t.ConsultationDate), sanitize(t.PatientID), ext)
}

const maxComponentLen = 64

func sanitize(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
		if b.Len() >= maxComponentLen {
			break
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}
