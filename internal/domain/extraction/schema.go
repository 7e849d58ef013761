package extraction

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/medvault/medvault/pkg/records"
)

const reportSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "required": ["reportType"],
  "properties": {
    "reportType":      {"type": "string", "minLength": 1},
    "patientName":     {"type": "string"},
    "doctorName":      {"type": "string"},
    "hospitalName":    {"type": "string"},
    "date":            {"type": "string"},
    "summary":         {"type": "string"},
    "nextAppointment": {"type": "string"},
    "vitalSigns": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "bloodPressure":    {"type": "string"},
        "heartRate":        {"type": "string"},
        "temperature":      {"type": "string"},
        "weight":           {"type": "string"},
        "height":           {"type": "string"},
        "respiratoryRate":  {"type": "string"},
        "oxygenSaturation": {"type": "string"}
      }
    },
    "labResults": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["testName", "value"],
        "properties": {
          "testName":       {"type": "string", "minLength": 1},
          "value":          {"type": "string"},
          "unit":           {"type": "string"},
          "referenceRange": {"type": "string"},
          "status":         {"enum": ["Normal", "High", "Low", "Critical"]}
        }
      }
    },
    "findings": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["category"],
        "properties": {
          "category": {"type": "string", "minLength": 1},
          "finding":  {"type": "string"},
          "severity": {"enum": ["Mild", "Moderate", "Severe"]}
        }
      }
    },
    "diagnosis":       {"type": "array", "items": {"type": "string"}},
    "recommendations": {"type": "array", "items": {"type": "string"}}
  }
}`

var reportSchema = jsonschema.MustCompileString("medical_report.json", reportSchemaJSON)

var (
	reportStringFields = []string{"reportType", "patientName", "doctorName", "hospitalName", "date", "summary", "nextAppointment"}
	vitalSignFields    = []string{"bloodPressure", "heartRate", "temperature", "weight", "height", "respiratoryRate", "oxygenSaturation"}
	labStringFields    = []string{"testName", "value", "unit", "referenceRange"}
	labStatuses        = []string{records.LabStatusNormal, records.LabStatusHigh, records.LabStatusLow, records.LabStatusCritical}
	findingSeverities  = []string{records.SeverityMild, records.SeverityModerate, records.SeveritySevere}
)

// sanitizeReport applies the lenient fixes models commonly need before
// schema validation:
//   - unknown keys and nulls are dropped
//   - numbers are coerced to strings where the record holds text
//   - status and severity are matched case-insensitively; unknown values are dropped
//   - a missing reportType becomes the general report type
//   - a lab result without a value gets "" (pending results come back null)
//   - lab results without a testName and findings without a category are dropped
//
// It returns the names of the keys it dropped.
func sanitizeReport(m map[string]any) (map[string]any, []string) {
	out := make(map[string]any, len(m))
	var dropped []string

	for _, k := range reportStringFields {
		if s, ok := coerceString(m[k]); ok && s != "" {
			out[k] = s
		} else if _, present := m[k]; present {
			dropped = append(dropped, k)
		}
	}
	if _, ok := out["reportType"]; !ok {
		out["reportType"] = records.DefaultReportType
	}

	if vs, ok := m["vitalSigns"].(map[string]any); ok {
		clean := map[string]any{}
		for _, k := range vitalSignFields {
			if s, ok := coerceString(vs[k]); ok && s != "" {
				clean[k] = s
			}
		}
		if len(clean) > 0 {
			out["vitalSigns"] = clean
		}
	}

	if items, ok := m["labResults"].([]any); ok {
		clean := make([]any, 0, len(items))
		for _, it := range items {
			lab, ok := it.(map[string]any)
			if !ok {
				continue
			}
			row := map[string]any{}
			for _, k := range labStringFields {
				if s, ok := coerceString(lab[k]); ok {
					row[k] = s
				}
			}
			if name, _ := row["testName"].(string); name == "" {
				continue
			}
			if _, ok := row["value"]; !ok {
				row["value"] = ""
			}
			if s, ok := lab["status"].(string); ok {
				if st := canonical(s, labStatuses); st != "" {
					row["status"] = st
				}
			}
			clean = append(clean, row)
		}
		out["labResults"] = clean
	}

	if items, ok := m["findings"].([]any); ok {
		clean := make([]any, 0, len(items))
		for _, it := range items {
			f, ok := it.(map[string]any)
			if !ok {
				continue
			}
			category, _ := coerceString(f["category"])
			if category == "" {
				continue
			}
			row := map[string]any{"category": category}
			if s, ok := coerceString(f["finding"]); ok && s != "" {
				row["finding"] = s
			}
			if s, ok := f["severity"].(string); ok {
				if sev := canonical(s, findingSeverities); sev != "" {
					row["severity"] = sev
				}
			}
			clean = append(clean, row)
		}
		out["findings"] = clean
	}

	for _, k := range []string{"diagnosis", "recommendations"} {
		items, ok := m[k].([]any)
		if !ok {
			continue
		}
		clean := make([]any, 0, len(items))
		for _, it := range items {
			if s, ok := coerceString(it); ok && s != "" {
				clean = append(clean, s)
			}
		}
		out[k] = clean
	}

	for k := range m {
		if _, kept := out[k]; !kept && !contains(dropped, k) {
			dropped = append(dropped, k)
		}
	}
	return out, dropped
}

// decodeReport sanitizes, validates and decodes a model object into a report.
func decodeReport(m map[string]any) (*records.UniversalMedicalReport, []string, error) {
	clean, dropped := sanitizeReport(m)
	if err := reportSchema.Validate(clean); err != nil {
		return nil, dropped, fmt.Errorf("report does not match schema: %w", err)
	}
	b, err := json.Marshal(clean)
	if err != nil {
		return nil, dropped, fmt.Errorf("encode report: %w", err)
	}
	var r records.UniversalMedicalReport
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, dropped, fmt.Errorf("decode report: %w", err)
	}
	return &r, dropped, nil
}

func coerceString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

func canonical(s string, allowed []string) string {
	s = strings.TrimSpace(s)
	for _, a := range allowed {
		if strings.EqualFold(s, a) {
			return a
		}
	}
	return ""
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
