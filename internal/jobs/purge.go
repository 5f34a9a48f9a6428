package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/formledger/formledger-backend/internal/common"
	"github.com/formledger/formledger-backend/internal/domain"
	"github.com/formledger/formledger-backend/internal/repository"
	"github.com/formledger/formledger-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	purgeRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "formledger_purge_runs_total",
		Help: "Number of completed WIP purge runs.",
	})
	purgeDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "formledger_purge_versions_deleted_total",
		Help: "Number of WIP versions deleted by the purge job.",
	})
	purgeFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "formledger_purge_item_failures_total",
		Help: "Number of per-item failures during purge runs.",
	})
)

// ItemFailure records one failed deletion inside a run.
type ItemFailure struct {
	OrderID       string `json:"order_id"`
	VersionNumber int    `json:"version_number"`
	Reason        string `json:"reason"`
}

// RunSummary reports the outcome of one purge run.
type RunSummary struct {
	RunID           string        `json:"run_id"`
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration_ns"`
	OrdersExamined  int           `json:"orders_examined"`
	VersionsDeleted int           `json:"versions_deleted"`
	Failures        []ItemFailure `json:"failures"`
}

// RunLock serializes purge runs. TryAcquire returns a release func, or
// common.ErrPurgeRunning when another run holds the lock.
type RunLock interface {
	TryAcquire(ctx context.Context, runID string) (release func(), err error)
}

// LocalRunLock is the in-process run lock, used when no Redis lease is
// configured (single-instance deployments).
type LocalRunLock struct {
	mu sync.Mutex
}

// NewLocalRunLock creates a new LocalRunLock
func NewLocalRunLock() *LocalRunLock { return &LocalRunLock{} }

func (l *LocalRunLock) TryAcquire(_ context.Context, _ string) (func(), error) {
	if !l.mu.TryLock() {
		return nil, common.ErrPurgeRunning
	}
	return l.mu.Unlock, nil
}

// PurgeEngine reclaims storage held by superseded WIP versions. A WIP version
// is garbage only once something newer exists for the same order, so the
// order's current latest version is never deleted, even when it is WIP.
type PurgeEngine struct {
	store repository.VersionRepository
	lock  RunLock
}

// NewPurgeEngine creates a new PurgeEngine
func NewPurgeEngine(store repository.VersionRepository, lock RunLock) *PurgeEngine {
	return &PurgeEngine{store: store, lock: lock}
}

// Run executes one purge pass over the candidate snapshot taken at run start.
// Orders are processed independently: a failure in one order's group is
// recorded and never aborts the rest. Only lock acquisition and the initial
// snapshot read are run-level errors. The context is honored between order
// groups; deletions inside a group finish before the run stops.
func (e *PurgeEngine) Run(ctx context.Context) (*RunSummary, error) {
	runID := uuid.NewString()
	log := logger.WithRunID(runID)

	release, err := e.lock.TryAcquire(ctx, runID)
	if err != nil {
		return nil, err
	}
	defer release()

	groups, err := e.store.GroupWipByOrder()
	if err != nil {
		return nil, fmt.Errorf("read purge candidate snapshot: %w", err)
	}

	summary := &RunSummary{
		RunID:     runID,
		StartedAt: time.Now(),
		Failures:  []ItemFailure{},
	}
	log.Info().Int("candidate_orders", len(groups)).Msg("purge run started")

	for _, group := range groups {
		if ctx.Err() != nil {
			log.Warn().Err(ctx.Err()).Msg("purge run interrupted")
			break
		}
		summary.OrdersExamined++
		e.purgeOrder(log, group, summary)
	}

	summary.Duration = time.Since(summary.StartedAt)
	purgeRunsTotal.Inc()
	log.Info().
		Int("orders_examined", summary.OrdersExamined).
		Int("versions_deleted", summary.VersionsDeleted).
		Int("failures", len(summary.Failures)).
		Dur("duration", summary.Duration).
		Msg("purge run finished")

	return summary, nil
}

// purgeOrder deletes one order's superseded WIP versions. Each deletion is its
// own transaction; a single failure is logged, counted, and skipped.
func (e *PurgeEngine) purgeOrder(log zerolog.Logger, group domain.WipGroup, summary *RunSummary) {
	latest, err := e.store.FindLatest(group.OrderID)
	if err != nil {
		log.Error().Err(err).Str("order_id", group.OrderID).Msg("purge: latest version lookup failed")
		summary.Failures = append(summary.Failures, ItemFailure{
			OrderID: group.OrderID,
			Reason:  fmt.Sprintf("latest lookup: %v", err),
		})
		purgeFailuresTotal.Inc()
		return
	}

	for _, versionNumber := range group.VersionNumbers {
		// The latest version is retained even when WIP: it is the order's
		// most recent draft, not garbage.
		if versionNumber == latest.VersionNumber {
			continue
		}

		err := e.store.DeleteWipVersion(group.OrderID, versionNumber)
		switch {
		case err == nil:
			summary.VersionsDeleted++
			purgeDeletedTotal.Inc()
		case errors.Is(err, common.ErrNotFound):
			// Already gone (e.g. an overlapping snapshot beat us to it);
			// absence is the desired end state, not a failure.
			log.Debug().
				Str("order_id", group.OrderID).
				Int("version_number", versionNumber).
				Msg("purge: version already absent")
		default:
			log.Error().Err(err).
				Str("order_id", group.OrderID).
				Int("version_number", versionNumber).
				Msg("purge: deletion failed")
			summary.Failures = append(summary.Failures, ItemFailure{
				OrderID:       group.OrderID,
				VersionNumber: versionNumber,
				Reason:        err.Error(),
			})
			purgeFailuresTotal.Inc()
		}
	}
}
