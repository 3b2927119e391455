package goSession

import (
	"context"
	"io"

	"github.com/MrEthical07/goSession/internal/audit"
)

// Audit event types emitted by the Engine.
const (
	AuditLoginSuccess       = "login_success"
	AuditLoginFailure       = "login_failure"
	AuditClientLoginSuccess = "client_login_success"
	AuditClientLoginFailure = "client_login_failure"
	AuditRefreshSuccess     = "refresh_success"
	AuditRefreshInvalid     = "refresh_invalid"
	AuditRefreshFailure     = "refresh_failure"
	AuditRegisterSuccess    = "register_success"
	AuditRegisterFailure    = "register_failure"
	AuditLogout             = "logout"
	AuditRateLimited        = "rate_limited"
)

type (
	// AuditEvent is one security-relevant occurrence.
	AuditEvent = audit.Event
	// AuditSink receives audit events from the dispatcher goroutine.
	AuditSink = audit.Sink
	// NoOpSink drops audit events.
	NoOpSink = audit.NoOpSink
	// ChannelSink writes audit events into a buffered channel.
	ChannelSink = audit.ChannelSink
	// JSONWriterSink writes one JSON object per event.
	JSONWriterSink = audit.JSONWriterSink
	// MultiSink fans one event out to several sinks.
	MultiSink = audit.MultiSink
)

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// SlogSink writes audit events through a [Logger] at info level, failures
// at warn level.
type SlogSink struct {
	logger Logger
}

func NewSlogSink(l Logger) *SlogSink {
	if l == nil {
		l = NopLogger{}
	}
	return &SlogSink{logger: l}
}

func (s *SlogSink) Emit(ctx context.Context, event AuditEvent) {
	args := []any{
		"event_type", event.EventType,
		"success", event.Success,
	}
	if event.SubjectID != 0 {
		args = append(args, "subject_id", event.SubjectID)
	}
	if event.SubjectName != "" {
		args = append(args, "subject_name", event.SubjectName)
	}
	if event.IP != "" {
		args = append(args, "ip", event.IP)
	}
	if event.Error != "" {
		args = append(args, "error", event.Error)
	}
	for k, v := range event.Metadata {
		args = append(args, "meta_"+k, v)
	}

	if event.Success {
		s.logger.Info(ctx, "audit", args...)
		return
	}
	s.logger.Warn(ctx, "audit", args...)
}
