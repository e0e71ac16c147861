package transcribe

import "fmt"

func basicPrompt(patientID, consultationDate string) string {
	return fmt.Sprintf(`You are an expert medical transcriptionist AI. Your task is to analyze this audio/video of a doctor-patient consultation. Create a complete and accurate transcript.

- Identify the two primary speakers and label them as "Doctor" and "Patient".
- Include timestamps for each line of dialogue in HH:MM:SS format.
- The patient's ID is %s and the consultation date is %s.
- Format the entire output as a single JSON object that adheres to the provided schema. Do not include any other text or markdown formatting outside of the JSON object.`, patientID, consultationDate)
}

func enhancedPrompt(patientID, consultationDate string) string {
	return fmt.Sprintf(`You are an expert medical transcriptionist and clinical observer AI. Your task is to analyze this video of a doctor-patient psychiatric consultation and provide comprehensive documentation.

ANALYSIS REQUIREMENTS:

1. TRANSCRIPT - Create a complete speaker-diarized transcript:
   - Identify the two primary speakers and label them as "Doctor" and "Patient"
   - Include timestamps for each line of dialogue in HH:MM:SS format
   - Capture all spoken content accurately

2. MENTAL STATUS EXAM - Document objective observations:

   APPEARANCE:
   - Grooming and hygiene
   - Dress and attire appropriateness
   - Physical presentation
   - Notable features

   BEHAVIOR:
   - Eye contact (good, poor, avoidant, intense)
   - Psychomotor activity (normal, agitated, restless, slowed)
   - Cooperation and engagement level
   - Posture and body positioning
   - Gestures and mannerisms

   AFFECT:
   - Range (full, restricted, blunted, flat)
   - Appropriateness to content
   - Intensity (normal, heightened, diminished)
   - Quality (euthymic, anxious, sad, irritable, euphoric)
   - Congruence with mood

   SPEECH:
   - Rate (normal, pressured, slow)
   - Volume (normal, loud, soft)
   - Articulation and clarity
   - Fluency and coherence

3. CLINICAL OBSERVATIONS - Note significant moments:
   - Visible distress or emotional reactions
   - Changes in demeanor during session
   - Non-verbal cues that inform clinical understanding
   - Therapeutic alliance indicators

PATIENT INFORMATION:
- Patient ID: %s
- Consultation Date: %s

FORMAT: Return a single JSON object matching the provided schema. Be objective, clinical, and thorough in observations.`, patientID, consultationDate)
}

func textPrompt(patientID, consultationDate, rawTranscript string) string {
	return fmt.Sprintf(`You are an expert medical transcriptionist AI. Below is a raw plain-text transcript of a doctor-patient consultation. Reformat it into a structured, speaker-diarized transcript.

- Attribute every line to either "Doctor" or "Patient".
- Keep lines in their original order. Do not drop, merge, or invent dialogue.
- Use timestamps present in the source text; estimate in HH:MM:SS format where absent.
- The patient's ID is %s and the consultation date is %s.
- Format the entire output as a single JSON object that adheres to the provided schema. Do not include any other text or markdown formatting outside of the JSON object.

RAW TRANSCRIPT:
%s`, patientID, consultationDate, rawTranscript)
}
