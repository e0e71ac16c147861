package model

import "errors"

// Entry is a single diarized line of dialogue. Entries are ordered
// chronologically; the order they arrive in is the order they were spoken.
type Entry struct {
	Speaker   string `json:"speaker"`
	Line      string `json:"line"`
	Timestamp string `json:"timestamp"`
}

// MentalStatusExam holds objective observations across the four MSE axes.
// All four fields are produced together or the exam is absent entirely.
type MentalStatusExam struct {
	Appearance string `json:"appearance"`
	Behavior   string `json:"behavior"`
	Affect     string `json:"affect"`
	Speech     string `json:"speech"`
}

// ClinicalObservation is a timestamped notable moment from a session.
type ClinicalObservation struct {
	Timestamp   string `json:"timestamp"`
	Observation string `json:"observation"`
}

// Transcript is a full consultation transcript. The basic form carries only
// patient metadata and dialogue; the enhanced form additionally carries a
// mental status exam and clinical observations. The two are discriminated by
// MentalStatusExam being non-nil, not by separate types.
type Transcript struct {
	PatientID            string                `json:"patientId"`
	ConsultationDate     string                `json:"consultationDate"`
	Entries              []Entry               `json:"transcript"`
	MentalStatusExam     *MentalStatusExam     `json:"mentalStatusExam,omitempty"`
	ClinicalObservations []ClinicalObservation `json:"clinicalObservations,omitempty"`
}

// Enhanced reports whether the transcript carries mental status exam data.
func (t Transcript) Enhanced() bool {
	return t.MentalStatusExam != nil
}

var ErrEmptyTranscript = errors.New("transcript has no entries")

// Validate checks the structural invariant that holds for every transcript
// produced by the upstream model: a non-empty ordered list of entries. An
// empty list is an error, never a valid empty result.
func (t Transcript) Validate() error {
	if len(t.Entries) == 0 {
		return ErrEmptyTranscript
	}
	return nil
}
