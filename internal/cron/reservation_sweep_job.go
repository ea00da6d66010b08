package cron

import (
	"context"
	"fmt"

	"github.com/skshopping/shop-backend/pkg/logger"
)

const defaultSweepBatchSize = 200

type lapsedCanceler interface {
	CancelLapsed(ctx context.Context, limit int) (int, error)
}

type ReservationSweepJobParams struct {
	Logger    *logger.Logger
	Orders    lapsedCanceler
	BatchSize int
}

// NewReservationSweepJob cancels unpaid orders whose stock hold ran out, so
// they show up as canceled instead of lingering as not_shipped_out. Availability
// is correct without it; the sweep only tidies the order history.
func NewReservationSweepJob(params ReservationSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatchSize
	}
	return &reservationSweepJob{logg: params.Logger, orders: params.Orders, batch: batch}, nil
}

type reservationSweepJob struct {
	logg   *logger.Logger
	orders lapsedCanceler
	batch  int
}

func (j *reservationSweepJob) Name() string { return "reservation-sweep" }

func (j *reservationSweepJob) Run(ctx context.Context) error {
	canceled, err := j.orders.CancelLapsed(ctx, j.batch)
	logCtx := j.logg.WithFields(ctx, map[string]any{"canceled": canceled, "batch_size": j.batch})
	if err != nil {
		return fmt.Errorf("reservation sweep: %w", err)
	}
	if canceled == j.batch {
		j.logg.Warn(logCtx, "cron.reservation_sweep_batch_full")
		return nil
	}
	j.logg.Info(logCtx, "cron.reservation_sweep")
	return nil
}
