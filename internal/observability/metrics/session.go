package metrics

import (
	"time"

	obserrors "github.com/target/ledgerly/internal/observability/errors"
	"github.com/target/ledgerly/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Metric names.
const (
	nameTransition  = "session.transition"
	nameBootstrap   = "session.bootstrap.duration"
	nameAPICall     = "api.call"
	nameAPIDuration = "api.duration"
	nameRefresh     = "session.refresh"
)

// TransitionMetric captures a session status change.
type TransitionMetric struct {
	From    string
	To      string
	Trigger string
}

// EmitTransition emits a counter for a status transition.
func EmitTransition(sink statsd.Sink, in TransitionMetric) {
	if sink == nil {
		return
	}
	sink.Count(nameTransition, 1, map[string]string{
		"from":    in.From,
		"to":      in.To,
		"trigger": in.Trigger,
	})
}

// EmitBootstrap records how long the bootstrap sequence took and where it ended.
func EmitBootstrap(sink statsd.Sink, status string, d time.Duration) {
	if sink == nil {
		return
	}
	sink.Timing(nameBootstrap, d, map[string]string{"status": status})
}

// APICallMetric captures a single remote call.
type APICallMetric struct {
	Endpoint string
	Result   string
	Duration time.Duration
	Err      error
}

// EmitAPICall emits standardised remote call metrics.
func EmitAPICall(sink statsd.Sink, in APICallMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"endpoint": in.Endpoint,
		"result":   in.Result,
	}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count(nameAPICall, 1, tags)
	if in.Duration > 0 {
		sink.Timing(nameAPIDuration, in.Duration, map[string]string{"endpoint": in.Endpoint})
	}
}

// EmitRefresh counts refresh outcomes; shared marks callers that joined an in-flight refresh.
func EmitRefresh(sink statsd.Sink, outcome string, shared bool) {
	if sink == nil {
		return
	}
	s := "false"
	if shared {
		s = "true"
	}
	sink.Count(nameRefresh, 1, map[string]string{"outcome": outcome, "shared": s})
}
