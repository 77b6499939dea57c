package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// AuditEntry records who touched which patient record and how.
type AuditEntry struct {
	UserID     string
	UserRoles  []string
	Resource   string
	PatientLBP string
	Action     string // read, search, create, update, delete
	Method     string
	Path       string
	IPAddress  string
	RequestID  string
	StatusCode int
	Timestamp  time.Time
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

// Audit emits one "patient_access" log line per request under /api/v1/patients,
// attributed to the gateway identity when present. An optional recorder
// receives the same entry.
func Audit(logger zerolog.Logger, recorder AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			if !isAuditablePath(path) {
				return next(c)
			}

			err := next(c)

			entry := AuditEntry{
				Timestamp:  time.Now().UTC(),
				Resource:   "patient",
				Method:     req.Method,
				Path:       path,
				IPAddress:  c.RealIP(),
				StatusCode: responseStatus(c, err),
				PatientLBP: patientLBP(path),
			}
			entry.Action = actionFor(req.Method, entry.PatientLBP)
			if id, ok := IdentityFromContext(req.Context()); ok {
				entry.UserID = id.UserID
				entry.UserRoles = id.Roles
			}
			entry.RequestID, _ = c.Get("request_id").(string)

			if recorder != nil {
				if recErr := recorder.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("resource", entry.Resource).
				Str("lbp", entry.PatientLBP).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("patient_access")

			return err
		}
	}
}

func isAuditablePath(path string) bool {
	return path == "/api/v1/patients" || strings.HasPrefix(path, "/api/v1/patients/")
}

func actionFor(method, lbp string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	}
	if lbp == "" {
		return "search"
	}
	return "read"
}

// patientLBP pulls the lbp out of /api/v1/patients/<lbp>.
func patientLBP(path string) string {
	rest := strings.TrimPrefix(path, "/api/v1/patients/")
	if rest == path {
		return ""
	}
	seg, _, _ := strings.Cut(rest, "/")
	if _, err := uuid.Parse(seg); err != nil {
		return ""
	}
	return seg
}
