package rave

import (
	"context"
	"time"

	"ravepay/internal/logger"

	"go.uber.org/zap"
)

// EventHandler observes a payment session. Hooks run synchronously on the
// calling goroutine and must not block.
type EventHandler interface {
	OnInit(ctx context.Context, h *Handoff)
	OnRequery(ctx context.Context, txRef string)
	OnRequeryAttempt(ctx context.Context, txRef string, attempt int)
	OnRequeryResult(ctx context.Context, res *RequeryResult)
	OnVerify(ctx context.Context, res *VerifyResult, elapsed time.Duration)
}

// NopHandler ignores every event. Embed it to implement a subset of hooks.
type NopHandler struct{}

func (NopHandler) OnInit(context.Context, *Handoff) {}
func (NopHandler) OnRequery(context.Context, string) {}
func (NopHandler) OnRequeryAttempt(context.Context, string, int) {}
func (NopHandler) OnRequeryResult(context.Context, *RequeryResult) {}
func (NopHandler) OnVerify(context.Context, *VerifyResult, time.Duration) {}

// MultiHandler fans every event out to each handler in order.
type MultiHandler []EventHandler

func (m MultiHandler) OnInit(ctx context.Context, h *Handoff) {
	for _, eh := range m {
		eh.OnInit(ctx, h)
	}
}

func (m MultiHandler) OnRequery(ctx context.Context, txRef string) {
	for _, eh := range m {
		eh.OnRequery(ctx, txRef)
	}
}

func (m MultiHandler) OnRequeryAttempt(ctx context.Context, txRef string, attempt int) {
	for _, eh := range m {
		eh.OnRequeryAttempt(ctx, txRef, attempt)
	}
}

func (m MultiHandler) OnRequeryResult(ctx context.Context, res *RequeryResult) {
	for _, eh := range m {
		eh.OnRequeryResult(ctx, res)
	}
}

func (m MultiHandler) OnVerify(ctx context.Context, res *VerifyResult, elapsed time.Duration) {
	for _, eh := range m {
		eh.OnVerify(ctx, res, elapsed)
	}
}

// LogHandler writes session events to the request scoped zap logger.
type LogHandler struct{}

func eventLogger(ctx context.Context, txRef string) *zap.Logger {
	if txRef == "" {
		return logger.FromCtx(ctx)
	}
	return logger.FromCtx(logger.WithTxRef(ctx, txRef))
}

func (LogHandler) OnInit(ctx context.Context, h *Handoff) {
	eventLogger(ctx, h.TxRef()).Info("payment initialized",
		zap.String("amount", h.Get(KeyAmount)),
		zap.String("currency", h.Get(KeyCurrency)),
		zap.Int("meta", len(h.Meta)),
	)
}

func (LogHandler) OnRequery(ctx context.Context, txRef string) {
	eventLogger(ctx, txRef).Info("requerying transaction")
}

func (LogHandler) OnRequeryAttempt(ctx context.Context, txRef string, attempt int) {
	eventLogger(ctx, txRef).Debug("requery attempt", zap.Int("attempt", attempt))
}

func (LogHandler) OnRequeryResult(ctx context.Context, res *RequeryResult) {
	log := eventLogger(ctx, res.TxRef).With(
		zap.Stringer("status", res.Status),
		zap.Int("attempts", res.Attempts),
	)

	switch res.Status {
	case RequerySuccessful:
		log.Info("requeried a successful transaction")
	case RequeryFailed:
		log.Warn("requeried a failed transaction")
	case RequeryGaveUp:
		log.Warn("transaction still undecided, recheck asynchronously")
	case RequeryGatewayError:
		log.Error("requery call returned error", zap.ByteString("response", res.RawError))
	}
}

func (LogHandler) OnVerify(ctx context.Context, res *VerifyResult, elapsed time.Duration) {
	var txRef string
	if res.Requery != nil {
		txRef = res.Requery.TxRef
	}

	log := eventLogger(ctx, txRef).With(
		zap.Stringer("status", res.Status),
		zap.String("expected_amount", res.ExpectedAmount.String()),
		zap.String("expected_currency", res.ExpectedCurrency),
		zap.Duration("elapsed", elapsed),
	)
	if res.Data != nil {
		log = log.With(
			zap.String("amount", res.Data.Amount.String()),
			zap.String("currency", res.Data.Currency),
			zap.String("charge_response", res.Data.FlwMeta.ChargeResponse),
		)
	}

	switch res.Status {
	case VerifyVerified:
		log.Info("payment verified")
	case VerifyDeclined:
		log.Warn("payment declined")
	case VerifyMismatch:
		log.Error("payment amount or currency mismatch")
	default:
		log.Warn("payment unresolved")
	}
}
