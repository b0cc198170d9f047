package audit

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/baliwag-egov/civreg/internal/middleware"
)

// Log appends an audit entry, extracting actor and request ID from the
// context if not already set on the record.
//
// Error handling: audit writes must never block the primary operation, so
// failures are logged via slog and swallowed. Callers that require
// fail-closed semantics should call Repository.Append directly.
func Log(ctx context.Context, repo Repository, rec Record) {
	if repo == nil {
		slog.ErrorContext(ctx, "audit append skipped", "error", ErrNilRepository)
		return
	}

	if rec.Actor == "" {
		rec.Actor = middleware.GetIdentity(ctx).UserID
	}
	if rec.RequestID == "" {
		rec.RequestID = middleware.GetRequestID(ctx)
	}

	if _, err := repo.Append(rec); err != nil {
		slog.ErrorContext(ctx, "audit append failed",
			"entity_type", rec.EntityType,
			"entity_id", rec.EntityID,
			"action", rec.Action,
			"error", err)
	}
}

// LogFromRequest appends an audit entry with HTTP request metadata
// (IP address and user agent) in addition to the context fields.
func LogFromRequest(r *http.Request, repo Repository, rec Record) {
	rec.IPAddress = extractIPAddress(r)
	rec.UserAgent = r.UserAgent()
	Log(r.Context(), repo, rec)
}

// extractIPAddress extracts the client IP address from an HTTP request.
// It checks X-Forwarded-For, X-Real-IP, and RemoteAddr in that order,
// stripping the port when present.
func extractIPAddress(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		var firstIP string
		if idx := strings.Index(xff, ","); idx != -1 {
			firstIP = strings.TrimSpace(xff[:idx])
		} else {
			firstIP = strings.TrimSpace(xff)
		}
		if firstIP != "" {
			host, _, err := net.SplitHostPort(firstIP)
			if err != nil {
				return firstIP
			}
			return host
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		xri = strings.TrimSpace(xri)
		host, _, err := net.SplitHostPort(xri)
		if err != nil {
			return xri
		}
		return host
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
