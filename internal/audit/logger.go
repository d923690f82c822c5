// Package audit records security events to the audit_logs table and mirrors them to telemetry.
package audit

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"member-service/internal/audit/domain"
	auditrepo "member-service/internal/audit/repository"
	"member-service/internal/telemetry"
	telemetrydomain "member-service/internal/telemetry/domain"
)

// IPExtractor returns the client IP from the request context (e.g. gRPC metadata or peer).
type IPExtractor func(context.Context) string

// AuditLogger writes a single audit event with explicit action/resource. Used by the auth and passkey services.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, userID, action, resource, metadata string)
}

// Logger implements AuditLogger using the audit repository, an optional IP extractor and an
// optional telemetry mirror.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
	mirror      telemetry.EventEmitter
	now         func() time.Time
}

// NewLogger returns an AuditLogger that persists to repo and uses ipExtractor for client IP.
// ipExtractor may be nil; then IP is recorded as "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor) *Logger {
	return &Logger{repo: repo, ipExtractor: ipExtractor, now: time.Now}
}

// WithMirror makes every logged event also go to emitter asynchronously.
func (l *Logger) WithMirror(emitter telemetry.EventEmitter) *Logger {
	l.mirror = emitter
	return l
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, userID, action, resource, metadata string) {
	ip := "unknown"
	if l.ipExtractor != nil {
		ip = l.ipExtractor(ctx)
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: l.now().UTC(),
	}
	if l.repo != nil {
		if err := l.repo.Create(ctx, entry); err != nil {
			log.Printf("audit: failed to log event %s/%s: %v", action, resource, err)
		}
	}
	telemetry.EmitAsync(l.mirror, toEvent(entry))
}

func toEvent(entry *domain.AuditLog) *telemetrydomain.Event {
	meta := map[string]string{"resource": entry.Resource, "ip": entry.IP}
	if entry.Metadata != "" {
		meta["detail"] = entry.Metadata
	}
	raw, _ := json.Marshal(meta)
	return &telemetrydomain.Event{
		UserID:    entry.UserID,
		EventType: entry.Action,
		Source:    "audit",
		Metadata:  raw,
		CreatedAt: entry.CreatedAt,
	}
}
