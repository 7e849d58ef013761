package extraction

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/medvault/medvault/internal/platform/apierr"
	"github.com/medvault/medvault/internal/platform/llm"
	"github.com/medvault/medvault/pkg/records"
)

// Function names, used as the Op of returned errors and as route names.
const (
	OpExtractPrescription  = "extract-prescription"
	OpExtractMedicalReport = "extract-medical-report"
	OpAnalyzeSymptoms      = "analyze-symptoms"
)

// Provider is a configured model backend. KeyEnv names the setting that
// holds its API key and is reported when the key is missing.
type Provider struct {
	Name      string
	KeyEnv    string
	Generator llm.Generator
}

// ImageInput is an inline image as sent by clients: base64 without the
// data URL prefix, plus its mime type.
type ImageInput struct {
	ImageData string `json:"imageData"`
	MIMEType  string `json:"mimeType"`
}

// ReportInput carries either an image or pasted report text.
type ReportInput struct {
	ImageData   string `json:"imageData"`
	MIMEType    string `json:"mimeType"`
	TextContent string `json:"textContent"`
}

type SymptomsInput struct {
	Symptoms string `json:"symptoms"`
	Age      int    `json:"age,omitempty"`
	Gender   string `json:"gender,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// Service runs the extraction pipeline: one model call per request, JSON
// extraction from the model text, then validation and normalization.
type Service struct {
	extractor Provider
	symptoms  Provider
	now       func() time.Time
	logger    zerolog.Logger
}

// NewService wires the provider used for image and report extraction and the
// one used for symptom analysis. They may be the same provider.
func NewService(extractor, symptoms Provider, logger zerolog.Logger) *Service {
	return &Service{
		extractor: extractor,
		symptoms:  symptoms,
		now:       time.Now,
		logger:    logger.With().Str("component", "extraction").Logger(),
	}
}

// SetClock replaces the clock used for the default prescription date.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) ExtractPrescription(ctx context.Context, in ImageInput) (*records.ExtractedPrescriptionData, error) {
	const op = OpExtractPrescription
	if strings.TrimSpace(in.ImageData) == "" || strings.TrimSpace(in.MIMEType) == "" {
		return nil, apierr.Input(op, "Missing imageData or mimeType")
	}
	img, err := decodeImage(in.ImageData, in.MIMEType)
	if err != nil {
		return nil, apierr.Input(op, "Invalid imageData encoding")
	}

	today := s.now().Format(records.DateLayout)
	m, err := s.generateObject(ctx, op, s.extractor, llm.Request{
		System: prescriptionSystem,
		Prompt: buildPrescriptionPrompt(today),
		Image:  img,
		JSON:   true,
	})
	if err != nil {
		return nil, err
	}

	p := records.NormalizePrescription(m, today)
	s.logger.Debug().Str("op", op).Int("medicines", len(p.Medicines)).Msg("prescription extracted")
	return &p, nil
}

func (s *Service) ExtractMedicalReport(ctx context.Context, in ReportInput) (*records.UniversalMedicalReport, error) {
	const op = OpExtractMedicalReport
	text := strings.TrimSpace(in.TextContent)
	hasImage := strings.TrimSpace(in.ImageData) != "" && strings.TrimSpace(in.MIMEType) != ""
	if !hasImage && text == "" {
		return nil, apierr.Input(op, "Provide either imageData with mimeType or textContent")
	}

	req := llm.Request{System: reportSystem, JSON: true}
	if hasImage {
		img, err := decodeImage(in.ImageData, in.MIMEType)
		if err != nil {
			return nil, apierr.Input(op, "Invalid imageData encoding")
		}
		req.Image = img
		req.Prompt = buildReportPrompt("")
	} else {
		req.Prompt = buildReportPrompt(text)
	}

	m, err := s.generateObject(ctx, op, s.extractor, req)
	if err != nil {
		return nil, err
	}

	report, dropped, err := decodeReport(m)
	if err != nil {
		s.logger.Warn().Err(err).Str("op", op).Strs("dropped", dropped).Msg("model report rejected")
		return nil, &apierr.Error{Kind: apierr.KindResponseShape, Op: op, Err: err}
	}
	if len(dropped) > 0 {
		s.logger.Debug().Str("op", op).Strs("dropped", dropped).Msg("report sanitized")
	}
	return report, nil
}

func (s *Service) AnalyzeSymptoms(ctx context.Context, in SymptomsInput) (*records.SymptomAnalysis, error) {
	const op = OpAnalyzeSymptoms
	if strings.TrimSpace(in.Symptoms) == "" {
		return nil, apierr.Input(op, "Missing symptoms")
	}

	m, err := s.generateObject(ctx, op, s.symptoms, llm.Request{
		System: symptomsSystem,
		Prompt: buildSymptomsPrompt(in),
		JSON:   true,
	})
	if err != nil {
		return nil, err
	}

	a := records.NormalizeSymptomAnalysis(m)
	s.logger.Debug().Str("op", op).Str("severity", a.Severity).Int("conditions", len(a.PossibleConditions)).Msg("symptoms analyzed")
	return &a, nil
}

// generateObject makes the single upstream call and pulls the JSON object out
// of the reply, classifying every failure.
func (s *Service) generateObject(ctx context.Context, op string, p Provider, req llm.Request) (map[string]any, error) {
	if p.Generator == nil {
		return nil, &apierr.Error{Kind: apierr.KindConfig, Op: op, Err: fmt.Errorf("%s is not set: %w", p.KeyEnv, llm.ErrNotConfigured)}
	}

	text, err := p.Generator.Generate(ctx, req)
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			s.logger.Error().Str("op", op).Str("provider", p.Name).Msgf("%s is not set", p.KeyEnv)
			return nil, &apierr.Error{Kind: apierr.KindConfig, Op: op, Err: fmt.Errorf("%s is not set: %w", p.KeyEnv, err)}
		}
		ev := s.logger.Error().Err(err).Str("op", op).Str("provider", p.Name)
		var se *llm.StatusError
		if errors.As(err, &se) {
			ev = ev.Int("status", se.StatusCode).Str("body", se.Body)
		}
		ev.Msg("provider call failed")
		return nil, &apierr.Error{Kind: apierr.KindUpstream, Op: op, Err: err}
	}

	m, err := extractJSONObject(text)
	if err != nil {
		s.logger.Warn().Err(err).Str("op", op).Str("provider", p.Name).Int("chars", len(text)).Msg("unusable model response")
		return nil, &apierr.Error{Kind: apierr.KindResponseShape, Op: op, Err: err}
	}
	return m, nil
}

// decodeImage accepts standard or unpadded base64. A data URL prefix sent by
// mistake is tolerated.
func decodeImage(data, mimeType string) (*llm.Image, error) {
	data = strings.TrimSpace(data)
	if strings.HasPrefix(data, "data:") {
		if i := strings.Index(data, ","); i >= 0 {
			data = data[i+1:]
		}
	}
	b, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		b, err = base64.RawStdEncoding.DecodeString(data)
		if err != nil {
			return nil, err
		}
	}
	if len(b) == 0 {
		return nil, errors.New("empty image")
	}
	return &llm.Image{Data: b, MIMEType: strings.TrimSpace(mimeType)}, nil
}
