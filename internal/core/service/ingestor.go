package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/stokd/supply-ingest/internal/core/domain"
	"github.com/stokd/supply-ingest/internal/port"
)

const (
	lockKeyPrefix  = "product-supply-lock:"
	cleanupTimeout = 3 * time.Second
)

// LockKey is the lease key serializing all ingestion attempts for a product.
func LockKey(productID int64) string {
	return fmt.Sprintf("%s%d", lockKeyPrefix, productID)
}

// Ingestor runs one supply event through lock acquisition, validation,
// existence check and persistence, and reports the terminal outcome. Soft
// outcomes are absorbed here; only infrastructure faults carry an error for
// the bus adapter to act on.
type Ingestor struct {
	locker      port.Locker
	repo        port.InventoryRepository
	notifier    port.Notifier
	logger      *zap.Logger
	repoTimeout time.Duration
}

func NewIngestor(
	locker port.Locker,
	repo port.InventoryRepository,
	notifier port.Notifier,
	logger *zap.Logger,
	repoTimeout time.Duration,
) *Ingestor {
	return &Ingestor{
		locker:      locker,
		repo:        repo,
		notifier:    notifier,
		logger:      logger,
		repoTimeout: repoTimeout,
	}
}

// Process handles a single event. The lease, once held, is released on every
// return path; the notification sink is invoked on every terminal state.
func (s *Ingestor) Process(ctx context.Context, ev domain.SupplyAddedEvent) domain.Result {
	logger := s.logger.With(
		zap.Int64("product_id", ev.ProductID),
		zap.String("event_id", ev.EventID),
	)

	lease, err := s.locker.Acquire(ctx, LockKey(ev.ProductID))
	if err != nil {
		if errors.Is(err, port.ErrLockNotAcquired) {
			logger.Warn("could not acquire lock for product supply")
			return s.finish(ctx, logger, ev, domain.Result{
				Outcome: domain.OutcomeLockFailed,
				Detail:  "lock wait window elapsed",
			})
		}
		logger.Error("lock service failure", zap.Error(err))
		return s.finish(ctx, logger, ev, domain.Result{
			Outcome: domain.OutcomeFaulted,
			Detail:  err.Error(),
			Err:     fmt.Errorf("acquire lock: %w", err),
		})
	}
	defer func() {
		// Release must survive shutdown cancellation; otherwise the lease
		// blocks this product until the TTL expires.
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		logger.Debug("releasing product supply lock")
		if relErr := lease.Release(relCtx); relErr != nil {
			logger.Warn("lease release failed, lease will expire by TTL", zap.Error(relErr))
		}
	}()

	if res := ValidateSupplyEvent(ev); !res.Valid {
		logger.Warn(res.FirstError)
		return s.finish(ctx, logger, ev, domain.Result{
			Outcome: domain.OutcomeValidationFailed,
			Detail:  res.FirstError,
		})
	}

	// Each repository call gets its own timeout budget; a slow existence
	// check must not eat into the insert's window.
	existsCtx, cancelExists := context.WithTimeout(ctx, s.repoTimeout)
	exists, err := s.repo.ProductExists(existsCtx, ev.ProductID)
	cancelExists()
	if err != nil {
		logger.Error("product existence check failed", zap.Error(err))
		return s.finish(ctx, logger, ev, domain.Result{
			Outcome: domain.OutcomeFaulted,
			Detail:  err.Error(),
			Err:     fmt.Errorf("check product: %w", err),
		})
	}
	if !exists {
		logger.Warn("specified product is not found")
		return s.finish(ctx, logger, ev, domain.Result{
			Outcome: domain.OutcomeProductNotFound,
			Detail:  "Specified product is not found",
		})
	}

	createCtx, cancelCreate := context.WithTimeout(ctx, s.repoTimeout)
	defer cancelCreate()

	supply := domain.NewProductSupply(ev)
	if err := s.repo.CreateSupply(createCtx, &supply); err != nil {
		switch {
		case errors.Is(err, port.ErrProductNotFound):
			// Product vanished between the check and the insert; the
			// foreign-key backstop caught it.
			logger.Warn("specified product is not found")
			return s.finish(ctx, logger, ev, domain.Result{
				Outcome: domain.OutcomeProductNotFound,
				Detail:  "Specified product is not found",
			})
		case errors.Is(err, port.ErrDuplicateEvent):
			logger.Info("supply already recorded for this event, skipping")
			return s.finish(ctx, logger, ev, domain.Result{
				Outcome: domain.OutcomeDuplicate,
				Detail:  "supply already recorded",
			})
		default:
			logger.Error("supply persistence failed", zap.Error(err))
			return s.finish(ctx, logger, ev, domain.Result{
				Outcome: domain.OutcomeFaulted,
				Detail:  err.Error(),
				Err:     fmt.Errorf("persist supply: %w", err),
			})
		}
	}

	logger.Info("product supply recorded",
		zap.Int64("supply_id", supply.ID),
		zap.Int("quantity", supply.Quantity),
	)
	return s.finish(ctx, logger, ev, domain.Result{Outcome: domain.OutcomePersisted})
}

// finish invokes the notification sink and returns the result unchanged.
// Sink failures are logged, never escalated.
func (s *Ingestor) finish(ctx context.Context, logger *zap.Logger, ev domain.SupplyAddedEvent, res domain.Result) domain.Result {
	nCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	n := domain.Notification{
		Outcome:   res.Outcome,
		ProductID: ev.ProductID,
		Detail:    res.Detail,
	}
	if err := s.notifier.Notify(nCtx, n); err != nil {
		logger.Warn("notification delivery failed", zap.Error(err))
	}
	return res
}
