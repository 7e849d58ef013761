package extraction

import (
	"strconv"
	"strings"
)

const prescriptionSystem = "You are a medical prescription reader. Return ONLY a JSON object, no prose and no markdown."

const prescriptionShape = `{
  "doctorName": "string",
  "date": "YYYY-MM-DD",
  "medicines": [
    {
      "medicationName": "string",
      "dosage": {"morning": 0, "noon": 0, "afternoon": 0, "night": 0},
      "instructions": "string",
      "frequency": "string (optional)",
      "duration": "string (optional)"
    }
  ],
  "notes": "string"
}`

func buildPrescriptionPrompt(today string) string {
	parts := []string{
		"Read the attached prescription image and extract every medicine it lists.",
		"Respond with JSON in exactly this shape:",
		prescriptionShape,
		"Dosage values are the number of units taken at that time of day; use 0 when a time is not prescribed.",
		"Decode common shorthand: OD is once daily, BD is twice daily, TDS is three times daily, QID is four times daily, HS is at bedtime, SOS is when required.",
		"A pattern such as 1-0-1 means morning, afternoon and night.",
		"Put food timing and special directions in instructions.",
		"If the date is not visible use " + today + ".",
		"Omit frequency and duration when they are not written. Never output null.",
	}
	return strings.Join(parts, "\n")
}

const reportSystem = "You are a medical report analyst. Return ONLY a JSON object, no prose and no markdown."

const reportShape = `{
  "reportType": "string, e.g. Blood Test, Discharge Summary, X-Ray Report",
  "patientName": "string",
  "doctorName": "string",
  "hospitalName": "string",
  "date": "YYYY-MM-DD",
  "vitalSigns": {"bloodPressure": "", "heartRate": "", "temperature": "", "weight": "", "height": "", "respiratoryRate": "", "oxygenSaturation": ""},
  "labResults": [{"testName": "", "value": "", "unit": "", "referenceRange": "", "status": "Normal|High|Low|Critical"}],
  "findings": [{"category": "", "finding": "", "severity": "Mild|Moderate|Severe"}],
  "diagnosis": ["string"],
  "recommendations": ["string"],
  "summary": "a short plain-language summary for the patient",
  "nextAppointment": "string"
}`

func buildReportPrompt(text string) string {
	var b strings.Builder
	if text == "" {
		b.WriteString("Analyze the attached medical report image.\n")
	} else {
		b.WriteString("Analyze the following medical report text.\n\n")
		b.WriteString(text)
		b.WriteString("\n\n")
	}
	b.WriteString("Respond with JSON in exactly this shape:\n")
	b.WriteString(reportShape)
	b.WriteString("\nAll values are strings, including numeric measurements. Include units where they are shown.")
	b.WriteString("\nOmit any field or section the report does not contain. Never output null.")
	return b.String()
}

const symptomsSystem = "You are a careful medical triage assistant. You do not diagnose; you describe possibilities and advise when to seek care. Return ONLY a JSON object."

const symptomsShape = `{
  "summary": "string",
  "possibleConditions": [{"name": "string", "likelihood": "Low|Medium|High", "description": "string"}],
  "severity": "Mild|Moderate|Severe|Emergency",
  "recommendations": ["string"],
  "selfCare": ["string"],
  "whenToSeeDoctor": "string",
  "disclaimer": "string"
}`

func buildSymptomsPrompt(in SymptomsInput) string {
	var b strings.Builder
	b.WriteString("Symptoms: ")
	b.WriteString(strings.TrimSpace(in.Symptoms))
	b.WriteString("\n")
	if in.Age > 0 {
		b.WriteString("Age: " + strconv.Itoa(in.Age) + "\n")
	}
	if g := strings.TrimSpace(in.Gender); g != "" {
		b.WriteString("Gender: " + g + "\n")
	}
	if d := strings.TrimSpace(in.Duration); d != "" {
		b.WriteString("Duration: " + d + "\n")
	}
	b.WriteString("\nRespond with JSON in exactly this shape:\n")
	b.WriteString(symptomsShape)
	b.WriteString("\nUse severity Emergency only for symptoms that need immediate emergency care.")
	return b.String()
}
