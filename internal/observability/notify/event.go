// Package notify delivers operator alerts about session failures.
package notify

import (
	"context"
	"time"
)

// Alert kinds emitted by the session manager.
const (
	KindForcedSignOut   = "forced_sign_out"
	KindAuthCheckFailed = "auth_check_failed"
)

// SessionAlert describes a session failure worth surfacing to an operator.
type SessionAlert struct {
	Kind       string
	Username   string
	Trigger    string
	Error      string
	ErrorClass string
	OccurredAt time.Time
	Metadata   map[string]string
}

// Sink describes a destination capable of consuming session alerts.
type Sink interface {
	SendSessionAlert(ctx context.Context, alert SessionAlert) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, alert SessionAlert) error

// SendSessionAlert implements the Sink interface.
func (f SinkFunc) SendSessionAlert(ctx context.Context, alert SessionAlert) error {
	if f == nil {
		return nil
	}
	return f(ctx, alert)
}
