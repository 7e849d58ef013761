// Package vaultclient calls a medvault server: the extraction functions and
// the medical report store.
package vaultclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medvault/medvault/pkg/records"
)

const (
	functionsPath = "/functions/v1/"
	reportsPath   = "/api/v1/medical-reports"
)

// ErrEmptyInput is returned before any request when there is nothing to send.
var ErrEmptyInput = errors.New("vaultclient: empty input")

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
	Details    string
	Kind       string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s (status %d): %s", e.Message, e.StatusCode, e.Details)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	// AccessToken is sent as a bearer token when set.
	AccessToken string
	// Now supplies the date used to default a prescription's date.
	Now func() time.Time
}

func New(baseURL, accessToken string) *Client {
	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		HTTPClient:  &http.Client{Timeout: 2 * time.Minute},
		AccessToken: accessToken,
		Now:         time.Now,
	}
}

type SymptomsInput struct {
	Symptoms string `json:"symptoms"`
	Age      int    `json:"age,omitempty"`
	Gender   string `json:"gender,omitempty"`
	Duration string `json:"duration,omitempty"`
}

type SaveReportInput struct {
	FamilyMemberID *uuid.UUID                         `json:"familyMemberId,omitempty"`
	ImageURL       string                             `json:"imageUrl,omitempty"`
	ReportType     string                             `json:"reportType,omitempty"`
	Prescription   *records.ExtractedPrescriptionData `json:"prescription,omitempty"`
	Report         *records.UniversalMedicalReport    `json:"report,omitempty"`
}

// SavedReport is a stored medical_reports row.
type SavedReport struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	FamilyMemberID *uuid.UUID      `json:"family_member_id,omitempty"`
	ImageURL       *string         `json:"image_url,omitempty"`
	ReportType     string          `json:"report_type"`
	PatientName    *string         `json:"patient_name,omitempty"`
	DoctorName     *string         `json:"doctor_name,omitempty"`
	HospitalName   *string         `json:"hospital_name,omitempty"`
	ReportDate     *string         `json:"report_date,omitempty"`
	ExtractedData  json.RawMessage `json:"extracted_data"`
	CreatedAt      time.Time       `json:"created_at"`
}

type imageBody struct {
	ImageData string `json:"imageData"`
	MIMEType  string `json:"mimeType"`
}

// ExtractPrescription reads a prescription image. The server's answer is
// normalized again so callers can rely on every field being present.
func (c *Client) ExtractPrescription(ctx context.Context, img EncodedImage) (*records.ExtractedPrescriptionData, error) {
	if img.Base64 == "" || img.MIMEType == "" {
		return nil, ErrEmptyInput
	}
	var raw map[string]any
	if err := c.do(ctx, functionsPath+"extract-prescription", imageBody{img.Base64, img.MIMEType}, &raw); err != nil {
		return nil, err
	}
	p := records.NormalizePrescription(raw, c.now().Format(records.DateLayout))
	return &p, nil
}

// ExtractMedicalReport returns the server's report as is.
func (c *Client) ExtractMedicalReport(ctx context.Context, img EncodedImage) (*records.UniversalMedicalReport, error) {
	if img.Base64 == "" || img.MIMEType == "" {
		return nil, ErrEmptyInput
	}
	var r records.UniversalMedicalReport
	if err := c.do(ctx, functionsPath+"extract-medical-report", imageBody{img.Base64, img.MIMEType}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) ExtractMedicalReportText(ctx context.Context, text string) (*records.UniversalMedicalReport, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	var r records.UniversalMedicalReport
	body := map[string]string{"textContent": text}
	if err := c.do(ctx, functionsPath+"extract-medical-report", body, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) AnalyzeSymptoms(ctx context.Context, in SymptomsInput) (*records.SymptomAnalysis, error) {
	if strings.TrimSpace(in.Symptoms) == "" {
		return nil, ErrEmptyInput
	}
	var raw map[string]any
	if err := c.do(ctx, functionsPath+"analyze-symptoms", in, &raw); err != nil {
		return nil, err
	}
	a := records.NormalizeSymptomAnalysis(raw)
	return &a, nil
}

// SaveReport stores an extraction result. It requires AccessToken unless the
// server runs in development mode.
func (c *Client) SaveReport(ctx context.Context, in SaveReportInput) (*SavedReport, error) {
	if in.Prescription == nil && in.Report == nil {
		return nil, ErrEmptyInput
	}
	var out SavedReport
	if err := c.do(ctx, reportsPath, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) do(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.BaseURL, "/")+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(status int, data []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var body struct {
		Error   string `json:"error"`
		Details string `json:"details"`
		Kind    string `json:"kind"`
		// echo.HTTPError renders as {"message": ...}
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		apiErr.Message = body.Error
		if apiErr.Message == "" {
			apiErr.Message = body.Message
		}
		apiErr.Details = body.Details
		apiErr.Kind = body.Kind
	}
	if apiErr.Message == "" {
		apiErr.Message = fmt.Sprintf("request failed with status %d", status)
	}
	return apiErr
}
