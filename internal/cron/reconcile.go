package cron

import (
	"context"
	"fmt"

	"github.com/scribewell/plugin-gateway/internal/payments"
	"github.com/scribewell/plugin-gateway/pkg/logger"
)

// ReconcileJob sweeps confirmed payment intents for missing credit grants and
// repairs them.
type ReconcileJob struct {
	payments payments.Service
	logg     *logger.Logger
}

// NewReconcileJob wires the payment reconciliation sweep.
func NewReconcileJob(paymentSvc payments.Service, logg *logger.Logger) (*ReconcileJob, error) {
	if paymentSvc == nil {
		return nil, fmt.Errorf("payment service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &ReconcileJob{payments: paymentSvc, logg: logg}, nil
}

func (j *ReconcileJob) Name() string { return "payment_reconcile" }

func (j *ReconcileJob) Run(ctx context.Context) error {
	repaired, err := j.payments.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("reconcile sweep: %w", err)
	}
	if repaired > 0 {
		j.logg.Warn(j.logg.WithField(ctx, "repaired", repaired), "reconcile sweep issued missing grants")
	}
	return nil
}
