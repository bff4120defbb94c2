// Package levelsync implements the scheduled job that recomputes every
// member's level from their stored counters and repairs records whose level
// fell behind, typically after missed events or a calculator change.
package levelsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rafaello-cc/levelbot/internal/database/types"
	"github.com/rafaello-cc/levelbot/internal/progression"
	"github.com/rafaello-cc/levelbot/internal/worker/core"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// guildConcurrency bounds how many guilds one pass processes in parallel.
const guildConcurrency = 4

// Store is the progression storage surface the job needs.
type Store interface {
	GuildIDs(ctx context.Context) ([]uint64, error)
	ListByGuild(ctx context.Context, guildID uint64) ([]*types.MemberProgression, error)
	Get(ctx context.Context, guildID, memberID uint64) (*types.MemberProgression, error)
	RaiseLevelIfHigher(ctx context.Context, guildID, memberID uint64, level int) error
}

// Notifier announces level-ups discovered during reconciliation.
type Notifier interface {
	NotifyLevelUp(ctx context.Context, guildID, memberID uint64, level int) error
}

// Worker reconciles stored levels on a fixed interval.
type Worker struct {
	store    Store
	notifier Notifier
	locks    *progression.RecordLock
	reporter *core.StatusReporter
	interval time.Duration
	logger   *zap.Logger
}

// New creates a new level sync job.
func New(
	store Store,
	notifier Notifier,
	locks *progression.RecordLock,
	reporter *core.StatusReporter,
	interval time.Duration,
	logger *zap.Logger,
) *Worker {
	return &Worker{
		store:    store,
		notifier: notifier,
		locks:    locks,
		reporter: reporter,
		interval: interval,
		logger:   logger.Named("level_sync"),
	}
}

// Start runs reconciliation passes until the context is canceled.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Level sync job started",
		zap.String("jobID", w.reporter.GetJobID()),
		zap.Duration("interval", w.interval))
	w.reporter.Start(ctx)

	defer w.reporter.Stop()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := w.RunPass(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}

			w.logger.Error("Level sync pass failed", zap.Error(err))
			w.reporter.SetHealthy(false)

			continue
		}

		w.reporter.SetHealthy(true)
		w.reporter.UpdateStatus("Waiting for next pass", 100)
	}
}

// RunPass recomputes levels for every stored progression record once. Levels
// are only ever raised; a record whose stored level already matches its
// counters is left untouched, which makes the pass idempotent.
func (w *Worker) RunPass(ctx context.Context) error {
	guildIDs, err := w.store.GuildIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list guilds: %w", err)
	}

	w.reporter.UpdateStatus("Reconciling levels", 0)

	p := pool.New().WithContext(ctx).WithMaxGoroutines(guildConcurrency)

	for _, guildID := range guildIDs {
		p.Go(func(ctx context.Context) error {
			return w.processGuild(ctx, guildID)
		})
	}

	return p.Wait()
}

func (w *Worker) processGuild(ctx context.Context, guildID uint64) error {
	records, err := w.store.ListByGuild(ctx, guildID)
	if err != nil {
		w.logger.Error("Failed to list guild records",
			zap.Uint64("guildID", guildID),
			zap.Error(err))

		return nil
	}

	raised := 0

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return err
		}

		if w.reconcileMember(ctx, guildID, record.MemberID) {
			raised++
		}
	}

	if raised > 0 {
		w.logger.Info("Reconciled guild levels",
			zap.Uint64("guildID", guildID),
			zap.Int("raised", raised))
	}

	return nil
}

// reconcileMember recomputes one member's level and reports whether it was
// raised. The record lock serializes the read-modify-write against message
// handlers and the tenure job.
func (w *Worker) reconcileMember(ctx context.Context, guildID, memberID uint64) bool {
	unlock := w.locks.Lock(guildID, memberID)
	defer unlock()

	record, err := w.store.Get(ctx, guildID, memberID)
	if err != nil {
		w.logger.Error("Failed to load record",
			zap.Uint64("guildID", guildID),
			zap.Uint64("memberID", memberID),
			zap.Error(err))

		return false
	}

	computed := progression.Calculate(record.MessageCount, record.XP, record.DaysOnServer)
	if computed <= record.Level {
		return false
	}

	if err := w.store.RaiseLevelIfHigher(ctx, guildID, memberID, computed); err != nil {
		w.logger.Error("Failed to raise level",
			zap.Uint64("guildID", guildID),
			zap.Uint64("memberID", memberID),
			zap.Error(err))

		return false
	}

	if computed > progression.GraduationLevel {
		if err := w.notifier.NotifyLevelUp(ctx, guildID, memberID, computed); err != nil {
			w.logger.Warn("Failed to deliver level-up notification",
				zap.Uint64("guildID", guildID),
				zap.Uint64("memberID", memberID),
				zap.Error(err))
		}
	}

	return true
}
