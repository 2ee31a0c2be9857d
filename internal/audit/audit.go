package audit

import (
	"context"
	"log/slog"
	"strings"
)

const (
	KindRegister         = "account.register"
	KindAccountUpdate    = "account.update"
	KindAccountDelete    = "account.delete"
	KindSignIn           = "session.signin"
	KindSignOut          = "session.signout"
	KindTokenLogin       = "token.login"
	KindPINSet           = "pin.set"
	KindPINVerify        = "pin.verify"
	KindSuperuserCreated = "admin.superuser_created"

	OutcomeSuccess = "success"
	OutcomeDenied  = "denied"
)

// Event describes a security-relevant action. It never carries passwords,
// PINs or session tokens.
type Event struct {
	Kind      string
	AccountID int64
	Phone     string
	Outcome   string
	Reason    string
}

// Recorder delivers audit events to downstream systems.
type Recorder interface {
	Record(ctx context.Context, event Event)
}

// LoggerRecorder writes audit events to a structured logger with the phone number masked.
type LoggerRecorder struct {
	logger *slog.Logger
}

// NewLoggerRecorder constructs a logging recorder.
func NewLoggerRecorder(logger *slog.Logger) *LoggerRecorder {
	return &LoggerRecorder{logger: logger}
}

// Record writes the event to the structured logger.
func (r *LoggerRecorder) Record(ctx context.Context, event Event) {
	if r == nil || r.logger == nil {
		return
	}
	attrs := []slog.Attr{
		slog.String("kind", event.Kind),
		slog.String("outcome", event.Outcome),
	}
	if event.AccountID != 0 {
		attrs = append(attrs, slog.Int64("account_id", event.AccountID))
	}
	if event.Phone != "" {
		attrs = append(attrs, slog.String("phone", MaskPhone(event.Phone)))
	}
	if event.Reason != "" {
		attrs = append(attrs, slog.String("reason", event.Reason))
	}
	r.logger.LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
}

// Nop discards events.
type Nop struct{}

func (Nop) Record(context.Context, Event) {}

// MaskPhone keeps the last four digits of a phone number.
func MaskPhone(phone string) string {
	const visible = 4
	if len(phone) <= visible {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-visible) + phone[len(phone)-visible:]
}
