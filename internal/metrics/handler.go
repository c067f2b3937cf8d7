package metrics

import (
	"context"
	"time"

	"ravepay/internal/rave"
)

// EventHandler feeds rave session events into the prometheus collectors.
type EventHandler struct{}

var _ rave.EventHandler = EventHandler{}

func (EventHandler) OnInit(_ context.Context, h *rave.Handoff) {
	RaveInitTotal.WithLabelValues(h.Get(rave.KeyCurrency)).Inc()
}

func (EventHandler) OnRequery(context.Context, string) {}

func (EventHandler) OnRequeryAttempt(context.Context, string, int) {
	RaveRequeryAttempts.Inc()
}

func (EventHandler) OnRequeryResult(_ context.Context, res *rave.RequeryResult) {
	RaveRequeryResults.WithLabelValues(res.Status.String()).Inc()
}

func (EventHandler) OnVerify(_ context.Context, res *rave.VerifyResult, elapsed time.Duration) {
	status := res.Status.String()
	RaveVerifyResults.WithLabelValues(status).Inc()
	RaveVerifyDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}
