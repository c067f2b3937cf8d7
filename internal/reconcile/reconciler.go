package reconcile

import (
	"context"
	"sort"
	"time"

	"ravepay/internal/logger"
	"ravepay/internal/metrics"
	"ravepay/internal/rave"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Requerier is the part of rave.Client the reconciler needs.
type Requerier interface {
	Requery(ctx context.Context, txRef string) (*rave.RequeryResult, error)
}

// ResolvedFunc receives a transaction once the gateway reports a final state.
type ResolvedFunc func(ctx context.Context, res *rave.RequeryResult)

// Reconciler rechecks transactions whose synchronous requery gave up. Pending
// references are dropped after ttl even if they never resolve.
type Reconciler struct {
	rq         Requerier
	pending    *cache.Cache
	interval   time.Duration
	onResolved ResolvedFunc
}

func NewReconciler(rq Requerier, interval, ttl time.Duration, onResolved ResolvedFunc) *Reconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if onResolved == nil {
		onResolved = func(context.Context, *rave.RequeryResult) {}
	}

	r := &Reconciler{
		rq:         rq,
		pending:    cache.New(ttl, interval),
		interval:   interval,
		onResolved: onResolved,
	}
	r.pending.OnEvicted(func(txRef string, _ interface{}) {
		logger.L().Debug("reconcile entry removed", zap.String("txref", txRef))
		metrics.RaveReconcilePending.Set(float64(r.pending.ItemCount()))
	})
	return r
}

// Enqueue schedules txRef for rechecking. Enqueuing an already pending
// reference keeps its original deadline.
func (r *Reconciler) Enqueue(txRef string) {
	if txRef == "" {
		return
	}
	if err := r.pending.Add(txRef, time.Now(), cache.DefaultExpiration); err != nil {
		return
	}
	logger.L().Info("transaction queued for reconciliation", zap.String("txref", txRef))
	metrics.RaveReconcilePending.Set(float64(r.pending.ItemCount()))
}

// Pending lists the references still waiting, sorted.
func (r *Reconciler) Pending() []string {
	items := r.pending.Items()
	refs := make([]string, 0, len(items))
	for ref := range items {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

func (r *Reconciler) Start(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.tick(ctx)
		}
	}
}

func (r *Reconciler) tick(ctx context.Context) {
	for _, txRef := range r.Pending() {
		if ctx.Err() != nil {
			return
		}

		rctx := logger.WithTxRef(ctx, txRef)
		log := logger.FromCtx(rctx)

		res, err := r.rq.Requery(rctx, txRef)
		if err != nil {
			log.Warn("reconcile requery failed", zap.Error(err))
			continue
		}
		if res.Status == rave.RequeryGatewayError {
			log.Warn("reconcile requery rejected by gateway, keeping transaction queued",
				zap.ByteString("response", res.RawError))
			continue
		}
		if !res.Final() {
			continue
		}

		// Delete fires OnEvicted, which refreshes the gauge.
		r.pending.Delete(txRef)
		log.Info("transaction reconciled", zap.Stringer("status", res.Status))
		r.onResolved(rctx, res)
	}
}
