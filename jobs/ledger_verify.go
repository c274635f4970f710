package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	jobmetrics "github.com/meridian-books/meridian/internal/jobs"
	"github.com/meridian-books/meridian/internal/periods"
	"github.com/meridian-books/meridian/internal/replay"
	"github.com/meridian-books/meridian/internal/shared"
)

// LedgerVerifier replays each hard-locked period and compares its
// fingerprint against the checkpoint recorded when the verifier first saw
// the period locked. A locked period is immutable, so any change in its
// fingerprint means the log was silently altered.
type LedgerVerifier struct {
	replayer    *replay.Engine
	periods     periods.Repository
	checkpoints *redis.Client
	audit       shared.AuditPort
	logger      *slog.Logger
	metrics     *jobmetrics.Metrics
}

func NewLedgerVerifier(replayer *replay.Engine, repo periods.Repository, checkpoints *redis.Client, audit shared.AuditPort, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerVerifier {
	return &LedgerVerifier{
		replayer:    replayer,
		periods:     repo,
		checkpoints: checkpoints,
		audit:       audit,
		logger:      logger,
		metrics:     metrics,
	}
}

// HandleTask processes TaskLedgerVerify tasks.
func (v *LedgerVerifier) HandleTask(ctx context.Context, t *asynq.Task) error {
	var payload LedgerVerifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := v.metrics.Track("ledger_verify")
	if payload.CompanyID != "" {
		return tracker.End(v.Verify(ctx, payload.CompanyID))
	}
	return tracker.End(v.VerifyAll(ctx))
}

// VerifyAll sweeps every company that has period locks on record.
func (v *LedgerVerifier) VerifyAll(ctx context.Context) error {
	companies, err := v.periods.ListCompanies(ctx)
	if err != nil {
		return fmt.Errorf("jobs: list companies: %w", err)
	}
	for _, companyID := range companies {
		if err := v.Verify(ctx, companyID); err != nil {
			return err
		}
	}
	return nil
}

// Verify checks every hard-locked period of the company.
func (v *LedgerVerifier) Verify(ctx context.Context, companyID string) error {
	locked, err := v.periods.List(ctx, companyID)
	if err != nil {
		return fmt.Errorf("jobs: list periods: %w", err)
	}
	for _, period := range locked {
		if period.State != periods.StateHardLocked {
			continue
		}
		res, err := v.replayer.Replay(ctx, companyID, replay.Options{
			From: period.StartDate,
			To:   period.EndDate,
		})
		if err != nil {
			return fmt.Errorf("jobs: replay %s: %w", period.PeriodID, err)
		}

		key := "ledgerfp:" + period.PeriodID
		known, err := v.checkpoints.Get(ctx, key).Result()
		switch {
		case err == redis.Nil:
			if err := v.checkpoints.Set(ctx, key, res.Fingerprint, 0).Err(); err != nil {
				return fmt.Errorf("jobs: save checkpoint %s: %w", key, err)
			}
			v.logger.Info("fingerprint checkpoint recorded",
				slog.String("company", companyID),
				slog.String("period", period.PeriodID))
		case err != nil:
			return fmt.Errorf("jobs: load checkpoint %s: %w", key, err)
		case known != res.Fingerprint:
			v.metrics.AddMismatch(companyID)
			if v.audit != nil {
				_ = v.audit.Record(ctx, shared.AuditLog{
					CompanyID: companyID,
					Action:    "ledger.verify.mismatch",
					Entity:    "period",
					EntityID:  period.PeriodID,
					Meta: map[string]any{
						"expected": known,
						"actual":   res.Fingerprint,
					},
				})
			}
			v.logger.Error("locked period fingerprint changed",
				slog.String("company", companyID),
				slog.String("period", period.PeriodID))
			return fmt.Errorf("jobs: %w for locked period %s", replay.ErrFingerprintMismatch, period.PeriodID)
		}
	}
	return nil
}
