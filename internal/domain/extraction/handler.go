package extraction

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medvault/medvault/internal/platform/apierr"
)

// Headers sent on every function response, preflight included.
const (
	corsAllowOrigin  = "*"
	corsAllowHeaders = "authorization, x-client-info, apikey, content-type"
)

// Generic messages returned alongside the failure details.
const (
	msgPrescriptionFailed = "Failed to extract prescription data"
	msgReportFailed       = "Failed to extract medical report"
	msgSymptomsFailed     = "Failed to analyze symptoms"
)

// OutcomeObserver is told how each function call ended: "ok" or the
// failure kind.
type OutcomeObserver interface {
	ObserveExtraction(op, outcome string)
}

type Handler struct {
	svc      *Service
	observer OutcomeObserver
	logger   zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// SetObserver registers o to receive call outcomes.
func (h *Handler) SetObserver(o OutcomeObserver) {
	h.observer = o
}

func (h *Handler) observe(op, outcome string) {
	if h.observer != nil {
		h.observer.ObserveExtraction(op, outcome)
	}
}

// RegisterRoutes mounts the functions on g, normally /functions/v1. Each
// path answers POST and an unconditional OPTIONS preflight. mw runs after
// CORS, so its rejections still carry the CORS headers.
func (h *Handler) RegisterRoutes(g *echo.Group, mw ...echo.MiddlewareFunc) {
	g.Use(CORS)
	g.Use(mw...)

	g.POST("/"+OpExtractPrescription, h.ExtractPrescription)
	g.POST("/"+OpExtractMedicalReport, h.ExtractMedicalReport)
	g.POST("/"+OpAnalyzeSymptoms, h.AnalyzeSymptoms)

	for _, op := range []string{OpExtractPrescription, OpExtractMedicalReport, OpAnalyzeSymptoms} {
		g.OPTIONS("/"+op, Preflight)
	}
}

// CORS adds the permissive function headers to every response.
func CORS(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		hdr := c.Response().Header()
		hdr.Set(echo.HeaderAccessControlAllowOrigin, corsAllowOrigin)
		hdr.Set(echo.HeaderAccessControlAllowHeaders, corsAllowHeaders)
		return next(c)
	}
}

// Preflight answers OPTIONS with 200 "ok".
func Preflight(c echo.Context) error {
	hdr := c.Response().Header()
	hdr.Set(echo.HeaderAccessControlAllowOrigin, corsAllowOrigin)
	hdr.Set(echo.HeaderAccessControlAllowHeaders, corsAllowHeaders)
	hdr.Set(echo.HeaderAccessControlAllowMethods, "POST, OPTIONS")
	return c.String(http.StatusOK, "ok")
}

func (h *Handler) ExtractPrescription(c echo.Context) error {
	var in ImageInput
	if err := c.Bind(&in); err != nil {
		return h.badBody(c, OpExtractPrescription)
	}
	p, err := h.svc.ExtractPrescription(c.Request().Context(), in)
	if err != nil {
		return h.fail(c, OpExtractPrescription, msgPrescriptionFailed, err)
	}
	h.observe(OpExtractPrescription, "ok")
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ExtractMedicalReport(c echo.Context) error {
	var in ReportInput
	if err := c.Bind(&in); err != nil {
		return h.badBody(c, OpExtractMedicalReport)
	}
	r, err := h.svc.ExtractMedicalReport(c.Request().Context(), in)
	if err != nil {
		return h.fail(c, OpExtractMedicalReport, msgReportFailed, err)
	}
	h.observe(OpExtractMedicalReport, "ok")
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) AnalyzeSymptoms(c echo.Context) error {
	var in SymptomsInput
	if err := c.Bind(&in); err != nil {
		return h.badBody(c, OpAnalyzeSymptoms)
	}
	a, err := h.svc.AnalyzeSymptoms(c.Request().Context(), in)
	if err != nil {
		return h.fail(c, OpAnalyzeSymptoms, msgSymptomsFailed, err)
	}
	h.observe(OpAnalyzeSymptoms, "ok")
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) badBody(c echo.Context, op string) error {
	h.observe(op, string(apierr.KindInput))
	return c.JSON(http.StatusBadRequest, apierr.Response{Error: "Invalid JSON body"})
}

// fail writes err as an apierr.Response. Errors that are not
// *apierr.Error are treated as upstream failures. A call cut off by the request
// deadline answers 504 with the same body.
func (h *Handler) fail(c echo.Context, op, generic string, err error) error {
	var e *apierr.Error
	if !errors.As(err, &e) {
		e = &apierr.Error{Kind: apierr.KindUpstream, Op: op, Err: err}
	}
	h.observe(op, string(e.Kind))
	if e.Kind == apierr.KindInput {
		return c.JSON(http.StatusBadRequest, apierr.Response{Error: e.Err.Error()})
	}

	status := e.Kind.HTTPStatus()
	if errors.Is(e.Err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}
	h.logger.Error().Err(e.Err).
		Str("op", e.Op).
		Str("kind", string(e.Kind)).
		Int("status", status).
		Str("path", c.Path()).
		Msg("function failed")
	return c.JSON(status, apierr.Response{
		Error:   generic,
		Details: e.Err.Error(),
		Kind:    e.Kind,
	})
}
