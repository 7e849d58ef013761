package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medvault/medvault/internal/platform/auth"
)

// AuditEntry records one access to health data: who, what, when, from where.
type AuditEntry struct {
	UserID         string
	Resource       string
	RecordID       string
	FamilyMemberID string
	Action         string // read, list, create, extract
	IPAddress      string
	UserAgent      string
	Path           string
	Method         string
	Timestamp      time.Time
	RequestID      string
	StatusCode     int
}

// AuditRecorder persists audit entries somewhere other than the log.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit emits a "phi_access" log line for every request under /api/v1/ and
// /functions/v1/ after the handler runs, and hands the same entry to each
// recorder. Preflight requests are not audited.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path

			if req.Method == http.MethodOptions || !isAuditablePath(path) {
				return next(c)
			}

			err := next(c)

			status := responseStatus(c, err)
			resource, recordID := splitResourcePath(path)
			entry := AuditEntry{
				Timestamp:      time.Now().UTC(),
				Path:           path,
				Method:         req.Method,
				IPAddress:      c.RealIP(),
				UserAgent:      req.UserAgent(),
				StatusCode:     status,
				RequestID:      RequestIDFrom(c),
				Resource:       resource,
				RecordID:       recordID,
				FamilyMemberID: c.QueryParam("family_member_id"),
				Action:         auditAction(path, req.Method, recordID),
			}
			// Auth middleware further down replaces the request.
			if uid, ok := auth.UserIDFromContext(c.Request().Context()); ok {
				entry.UserID = uid.String()
			}

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "phi_audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Str("resource", entry.Resource).
				Str("record_id", entry.RecordID).
				Str("family_member_id", entry.FamilyMemberID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("phi_access")

			return err
		}
	}
}

func isAuditablePath(path string) bool {
	return strings.HasPrefix(path, "/api/v1/") || strings.HasPrefix(path, FunctionsPrefix)
}

func auditAction(path, method, recordID string) string {
	if strings.HasPrefix(path, FunctionsPrefix) {
		return "extract"
	}
	switch method {
	case http.MethodGet, http.MethodHead:
		if recordID == "" {
			return "list"
		}
		return "read"
	case http.MethodPost:
		return "create"
	default:
		return strings.ToLower(method)
	}
}

// splitResourcePath maps
//
//	/api/v1/medical-reports/<uuid> -> medical-reports, <uuid>
//	/functions/v1/analyze-symptoms -> analyze-symptoms, ""
func splitResourcePath(path string) (resource, id string) {
	rest := strings.TrimPrefix(strings.TrimPrefix(path, "/api/v1/"), FunctionsPrefix)
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	resource = segments[0]
	if resource == "" {
		resource = "unknown"
	}
	if len(segments) > 1 {
		if _, err := uuid.Parse(segments[1]); err == nil {
			id = segments[1]
		}
	}
	return resource, id
}
