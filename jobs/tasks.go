package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/alm-erp/alm-erp/internal/banking"
	"github.com/alm-erp/alm-erp/internal/fx"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeRatesRefresh triggers the daily BCV rate refresh.
	TaskTypeRatesRefresh = "fx:rates_refresh"
	// TaskTypeBankSync triggers the periodic bank statement pull.
	TaskTypeBankSync = "banking:sync"
)

// RatesRefreshPayload carries scheduling metadata for a refresh run.
type RatesRefreshPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewRatesRefreshTask constructs an Asynq task for the rate refresh.
func NewRatesRefreshTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(RatesRefreshPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeRatesRefresh, body, asynq.Queue(QueueDefault)), nil
}

// RatesRefreshHandler builds the handler for TaskTypeRatesRefresh. A summary
// with failures is logged, not retried: the next scheduled run picks up.
func RatesRefreshHandler(service *fx.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload RatesRefreshPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		summary, err := service.RefreshAll(ctx)
		if err != nil {
			return err
		}
		logger.Info("scheduled rate refresh done",
			slog.Int("succeeded", summary.Succeeded()),
			slog.Int("failed", summary.Failed()))
		return nil
	}
}

// BankSyncPayload selects the company and lookback window for one pull.
type BankSyncPayload struct {
	CompanyID    int64 `json:"company_id"`
	LookbackDays int   `json:"lookback_days"`
}

// NewBankSyncTask constructs an Asynq task for the bank pull.
func NewBankSyncTask(payload BankSyncPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeBankSync, body, asynq.Queue(QueueDefault)), nil
}

// BankSyncHandler builds the handler for TaskTypeBankSync. The sync itself is
// idempotent, so retrying a transient failure is safe.
func BankSyncHandler(service *banking.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload BankSyncPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.LookbackDays <= 0 {
			payload.LookbackDays = 7
		}
		to := time.Now()
		from := to.AddDate(0, 0, -payload.LookbackDays)
		summary, err := service.SyncRange(ctx, payload.CompanyID, from, to)
		if err != nil {
			return err
		}
		logger.Info("scheduled bank sync done",
			slog.String("run_id", summary.RunID),
			slog.Int("succeeded", summary.Succeeded()),
			slog.Int("failed", summary.Failed()))
		return nil
	}
}
