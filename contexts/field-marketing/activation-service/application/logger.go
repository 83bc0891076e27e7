package application

import (
	"log/slog"
	"time"

	"fieldops/contexts/field-marketing/activation-service/domain/entities"
	"fieldops/contexts/field-marketing/activation-service/ports"
)

const ModuleName = "field-marketing/activation-service"

// ResolveLogger guarantees a non-nil logger for application/worker code paths.
func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

func ResolveMetrics(metrics ports.Metrics) ports.Metrics {
	if metrics == nil {
		return NoopMetrics{}
	}
	return metrics
}

type NoopMetrics struct{}

func (NoopMetrics) ActivationTransitioned(entities.ActivationStatus, entities.ActivationStatus) {}
func (NoopMetrics) CampaignStatusChanged(entities.CampaignStatus)                               {}
func (NoopMetrics) SchedulingConflictDetected(int)                                              {}
func (NoopMetrics) ExpirySwept(int, int, time.Duration)                                         {}
func (NoopMetrics) PositionsSampled(int)                                                        {}
func (NoopMetrics) OutboxRelayed(int, int)                                                      {}
