package shipment

import (
	"context"
	"time"

	domain "github.com/zenshop/orderengine/internal/domain/shipment"
	"github.com/zenshop/orderengine/internal/observability"
)

// Sweeper periodically reports shipments that sat in pending past a
// threshold, so operations can chase the warehouse.
type Sweeper struct {
	shipments domain.Repository
	threshold time.Duration
	interval  time.Duration
	log       observability.Logger
}

func NewSweeper(shipments domain.Repository, threshold, interval time.Duration, tel observability.Observability) *Sweeper {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Sweeper{
		shipments: shipments,
		threshold: threshold,
		interval:  interval,
		log:       tel.Logger().With(observability.F("component", "shipment-sweeper")),
	}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("sweeper_started",
		observability.F("threshold", w.threshold.String()),
		observability.F("interval", w.interval.String()),
	)
	for {
		select {
		case <-ctx.Done():
			w.log.Info("sweeper_stopped")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep logs every shipment still pending past the threshold.
func (w *Sweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-w.threshold)
	delayed, err := w.shipments.ListPendingOlderThan(ctx, cutoff)
	if err != nil {
		w.log.Error("sweep_failed", observability.F("error", err.Error()))
		return
	}
	for _, sh := range delayed {
		w.log.Warn("shipment_delayed",
			observability.F("shipment_id", sh.ID),
			observability.F("order_id", sh.OrderID),
			observability.F("pending_since", sh.CreatedAt.Format(time.RFC3339)),
		)
	}
	if len(delayed) > 0 {
		w.log.Info("sweep_done", observability.F("delayed_count", len(delayed)))
	}
}
