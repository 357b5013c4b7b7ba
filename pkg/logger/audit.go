package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent represents one security-relevant state transition: a login
// gate, a recovery step, a block or an unblock.
type AuditEvent struct {
	EventType     string
	Login         string
	Email         string
	IPAddress     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger emits one structured entry per flow branch so the whole
// login/recovery state machine is reconstructible from logs.
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{logger: logger}
}

// LogAuthAttempt logs login flow transitions
func (al *AuditLogger) LogAuthAttempt(event AuditEvent) {
	al.log("auth", event)
}

// LogRecoveryAttempt logs forgot-password / reset flow transitions
func (al *AuditLogger) LogRecoveryAttempt(event AuditEvent) {
	al.log("recovery", event)
}

// LogBlockEvent logs escalations and auto-unblocks
func (al *AuditLogger) LogBlockEvent(eventType, email string, until *time.Time) {
	attrs := []slog.Attr{
		slog.String("audit_type", "blocking"),
		slog.String("event_type", eventType),
		slog.String("email", SanitizedEmail(email)),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	if until != nil {
		attrs = append(attrs, slog.Time("blocked_until", *until))
	}

	al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
}

// LogAccountAction logs general account actions (registration, activation,
// password change, logout)
func (al *AuditLogger) LogAccountAction(eventType, login string, metadata map[string]string) {
	attrs := []slog.Attr{
		slog.String("audit_type", "account"),
		slog.String("event_type", eventType),
		slog.String("login", login),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	for key, val := range metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
}

func (al *AuditLogger) log(auditType string, event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", auditType),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.Login != "" {
		attrs = append(attrs, slog.String("login", event.Login))
	}
	if event.Email != "" {
		attrs = append(attrs, slog.String("email", SanitizedEmail(event.Email)))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}
