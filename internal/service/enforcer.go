package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"netinventory/internal/logging"
)

// TriggerScheduled labels policy runs started by the enforcer
const TriggerScheduled = "scheduled"

// PolicyEnforcer applies the configured traffic cap on a fixed interval
type PolicyEnforcer struct {
	svc      *InventoryService
	interval time.Duration
	log      logrus.FieldLogger
}

// NewPolicyEnforcer creates an enforcer. An interval of zero or less
// disables it.
func NewPolicyEnforcer(svc *InventoryService, interval time.Duration, log logrus.FieldLogger) *PolicyEnforcer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &PolicyEnforcer{
		svc:      svc,
		interval: interval,
		log:      logging.Component(log, "enforcer"),
	}
}

// Enabled reports whether Run will do anything
func (e *PolicyEnforcer) Enabled() bool {
	return e.interval > 0
}

// Run blocks until ctx is cancelled. Failed runs are logged and retried on
// the next tick.
func (e *PolicyEnforcer) Run(ctx context.Context) {
	if !e.Enabled() {
		return
	}

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.log.WithField("interval", e.interval).Info("policy enforcer started")
	for {
		select {
		case <-ctx.Done():
			e.log.Info("policy enforcer stopped")
			return
		case <-ticker.C:
			affected, err := e.svc.ApplyDefaultPolicy(ctx, TriggerScheduled)
			if err != nil {
				e.log.WithError(err).Warn("scheduled policy run failed")
				continue
			}
			if len(affected) > 0 {
				e.log.WithField("suspended", len(affected)).Info("scheduled policy run suspended endpoints")
			}
		}
	}
}
