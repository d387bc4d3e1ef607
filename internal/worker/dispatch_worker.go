package worker

import (
	"context"
	"delivery-dispatch-service/internal/domain"
	"log/slog"
	"time"
)

// Dispatcher is the part of the engine the worker drives.
type Dispatcher interface {
	CloseBatch(ctx context.Context, slot domain.TimeSlot) ([]domain.Route, error)
	CloseAllBatches(ctx context.Context) (int, error)
	SweepStale(ctx context.Context) (int, error)
	SweepAbandoned(ctx context.Context) (int, error)
	Triggers() <-chan domain.TimeSlot
}

// DispatchWorker closes batches on a timer or when a slot pool fills up, and
// sweeps stale and abandoned routes.
type DispatchWorker struct {
	dispatcher    Dispatcher
	batchInterval time.Duration
	sweepInterval time.Duration
	log           *slog.Logger
}

func NewDispatchWorker(d Dispatcher, batchInterval, sweepInterval time.Duration, log *slog.Logger) *DispatchWorker {
	if batchInterval <= 0 {
		batchInterval = time.Minute
	}
	if sweepInterval <= 0 {
		sweepInterval = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &DispatchWorker{
		dispatcher:    d,
		batchInterval: batchInterval,
		sweepInterval: sweepInterval,
		log:           log,
	}
}

// Start runs until ctx is cancelled.
func (w *DispatchWorker) Start(ctx context.Context) {
	w.log.Info("starting dispatch worker", "batch_interval", w.batchInterval, "sweep_interval", w.sweepInterval)

	batch := time.NewTicker(w.batchInterval)
	defer batch.Stop()
	sweep := time.NewTicker(w.sweepInterval)
	defer sweep.Stop()

	triggers := w.dispatcher.Triggers()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("dispatch worker stopped")
			return
		case slot := <-triggers:
			w.closeSlot(ctx, slot)
		case <-batch.C:
			w.closeAll(ctx)
		case <-sweep.C:
			w.sweep(ctx)
		}
	}
}

func (w *DispatchWorker) closeSlot(ctx context.Context, slot domain.TimeSlot) {
	routes, err := w.dispatcher.CloseBatch(ctx, slot)
	if err != nil {
		w.log.Error("batch close failed", "slot", slot, "error", err)
		return
	}
	if len(routes) > 0 {
		w.log.Info("pool threshold batch", "slot", slot, "routes", len(routes))
	}
}

func (w *DispatchWorker) closeAll(ctx context.Context) {
	n, err := w.dispatcher.CloseAllBatches(ctx)
	if err != nil {
		// Orders of failed slots are back in their pools for the next tick.
		w.log.Error("batch processing failed", "routes", n, "error", err)
		return
	}
	if n > 0 {
		w.log.Info("scheduled batch", "routes", n)
	}
}

func (w *DispatchWorker) sweep(ctx context.Context) {
	if n, err := w.dispatcher.SweepStale(ctx); err != nil {
		w.log.Error("stale sweep failed", "error", err)
	} else if n > 0 {
		w.log.Info("stale routes handled", "routes", n)
	}

	if n, err := w.dispatcher.SweepAbandoned(ctx); err != nil {
		w.log.Error("abandonment sweep failed", "error", err)
	} else if n > 0 {
		w.log.Warn("abandoned routes reverted", "routes", n)
	}
}
