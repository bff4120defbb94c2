// Package tenure implements the scheduled job that advances every member's
// days-on-server counter, pays out tenure XP, and raises levels that the new
// XP unlocks.
package tenure

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
	Update(ctx context.Context, guildID, memberID uint64, fields types.ProgressionFields) error
	RaiseLevelIfHigher(ctx context.Context, guildID, memberID uint64, level int) error
}

// Notifier announces level-ups caused by tenure advancement.
type Notifier interface {
	NotifyLevelUp(ctx context.Context, guildID, memberID uint64, level int) error
}

// Worker advances member tenure on a fixed interval.
type Worker struct {
	store    Store
	notifier Notifier
	locks    *progression.RecordLock
	reporter *core.StatusReporter
	interval time.Duration
	logger   *zap.Logger
}

// New creates a new tenure job.
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
		logger:   logger.Named("tenure"),
	}
}

// Start runs tenure passes until the context is canceled.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Tenure job started",
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

			w.logger.Error("Tenure pass failed", zap.Error(err))
			w.reporter.SetHealthy(false)

			continue
		}

		w.reporter.SetHealthy(true)
		w.reporter.UpdateStatus("Waiting for next pass", 100)
	}
}

// RunPass advances tenure for every stored progression record once. Guilds
// are processed concurrently; failures on individual records are logged and
// skipped so one bad record never stalls the rest of the pass.
func (w *Worker) RunPass(ctx context.Context) error {
	guildIDs, err := w.store.GuildIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list guilds: %w", err)
	}

	w.reporter.UpdateStatus("Advancing tenure", 0)

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

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return err
		}

		w.advanceMember(ctx, guildID, record.MemberID)
	}

	w.logger.Debug("Advanced guild tenure",
		zap.Uint64("guildID", guildID),
		zap.Int("members", len(records)))

	return nil
}

// advanceMember adds one day of tenure to a single member. The record lock
// serializes this read-modify-write against message handlers and the level
// sync job touching the same record.
func (w *Worker) advanceMember(ctx context.Context, guildID, memberID uint64) {
	unlock := w.locks.Lock(guildID, memberID)
	defer unlock()

	record, err := w.store.Get(ctx, guildID, memberID)
	if err != nil {
		w.logger.Error("Failed to load record",
			zap.Uint64("guildID", guildID),
			zap.Uint64("memberID", memberID),
			zap.Error(err))

		return
	}

	newDays := record.DaysOnServer + 1
	newXP := record.XP + progression.TenureXPGain(record.DaysOnServer, newDays)

	err = w.store.Update(ctx, guildID, memberID, types.ProgressionFields{
		DaysOnServer: &newDays,
		XP:           &newXP,
	})
	if err != nil {
		w.logger.Error("Failed to update record",
			zap.Uint64("guildID", guildID),
			zap.Uint64("memberID", memberID),
			zap.Error(err))

		return
	}

	computed := progression.Calculate(record.MessageCount, newXP, newDays)
	if computed <= record.Level {
		return
	}

	if err := w.store.RaiseLevelIfHigher(ctx, guildID, memberID, computed); err != nil {
		w.logger.Error("Failed to raise level",
			zap.Uint64("guildID", guildID),
			zap.Uint64("memberID", memberID),
			zap.Error(err))

		return
	}

	// Levels inside the message regime change silently; announcements only
	// start once a member has graduated.
	if computed > progression.GraduationLevel {
		if err := w.notifier.NotifyLevelUp(ctx, guildID, memberID, computed); err != nil {
			w.logger.Warn("Failed to deliver level-up notification",
				zap.Uint64("guildID", guildID),
				zap.Uint64("memberID", memberID),
				zap.Error(err))
		}
	}
}
