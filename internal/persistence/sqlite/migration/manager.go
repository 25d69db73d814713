package migration

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type manager struct {
	scanner  Scanner
	executor Executor
	logger   *slog.Logger
}

// NewManager returns a Manager. A nil logger discards output.
func NewManager(scanner Scanner, executor Executor, logger *slog.Logger) Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &manager{scanner: scanner, executor: executor, logger: logger.With(slog.String("component", "migration"))}
}

// RunMigrations applies pending migrations one by one, each in its own
// transaction, and stops at the first failure.
func (m *manager) RunMigrations(ctx context.Context) error {
	start := time.Now()
	pending, err := m.PendingMigrations(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "migration scan failed", slog.Any("error", err))
		return err
	}
	if len(pending) == 0 {
		m.logger.DebugContext(ctx, "schema up to date")
		return nil
	}

	for i, mig := range pending {
		logger := m.logger.With(
			slog.String("version", mig.Version),
			slog.String("description", mig.Description),
		)
		logger.InfoContext(ctx, "applying migration", slog.Int("step", i+1), slog.Int("total", len(pending)))

		began := time.Now()
		if err := m.executor.ExecuteMigration(ctx, mig); err != nil {
			logger.ErrorContext(ctx, "migration failed", slog.Any("error", err))
			return NewMigrationError(mig.Version, mig.FilePath, "execute migration", fmt.Errorf("%w: %v", ErrMigrationFailed, err))
		}
		elapsed := time.Since(began)
		if err := m.executor.RecordMigration(ctx, mig, elapsed); err != nil {
			logger.ErrorContext(ctx, "recording migration failed", slog.Any("error", err))
			return NewMigrationError(mig.Version, mig.FilePath, "record migration", err)
		}
		logger.InfoContext(ctx, "migration applied", slog.Duration("elapsed", elapsed))
	}

	m.logger.InfoContext(ctx, "migrations complete",
		slog.Int("applied", len(pending)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// PendingMigrations validates the sequence against applied rows and returns
// the migrations that still need to run.
func (m *manager) PendingMigrations(ctx context.Context) ([]Migration, error) {
	available, err := m.scanner.ScanMigrations()
	if err != nil {
		return nil, fmt.Errorf("scan migrations: %w", err)
	}
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return nil, fmt.Errorf("initialize version table: %w", err)
	}
	applied, err := m.executor.AppliedMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	if err := validateSequence(available, applied); err != nil {
		return nil, err
	}

	done := make(map[int]struct{}, len(applied))
	for _, a := range applied {
		done[versionNumber(a.Version)] = struct{}{}
	}
	var pending []Migration
	for _, mig := range available {
		if _, ok := done[versionNumber(mig.Version)]; !ok {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

// Status reports the current version and pending work.
func (m *manager) Status(ctx context.Context) (*Status, error) {
	pending, err := m.PendingMigrations(ctx)
	if err != nil {
		return nil, err
	}
	applied, err := m.executor.AppliedMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	status := &Status{
		PendingCount:      len(pending),
		AppliedMigrations: applied,
		PendingMigrations: pending,
	}
	if len(applied) > 0 {
		status.CurrentVersion = applied[len(applied)-1].Version
	}
	return status, nil
}

// validateSequence rejects gaps between available versions, applied versions
// without a file and files modified after they were applied.
func validateSequence(available []Migration, applied []AppliedMigration) error {
	byVersion := make(map[int]Migration, len(available))
	for _, mig := range available {
		byVersion[versionNumber(mig.Version)] = mig
	}
	if len(available) > 0 {
		first := versionNumber(available[0].Version)
		last := versionNumber(available[len(available)-1].Version)
		for v := first; v <= last; v++ {
			if _, ok := byVersion[v]; !ok {
				return fmt.Errorf("%w: missing migration version %03d", ErrVersionConflict, v)
			}
		}
	}
	for _, a := range applied {
		mig, ok := byVersion[versionNumber(a.Version)]
		if !ok {
			return fmt.Errorf("%w: applied migration %s has no file", ErrVersionConflict, a.Version)
		}
		if a.Checksum != "" && a.Checksum != mig.Checksum {
			return NewMigrationError(mig.Version, mig.FilePath, "verify checksum", ErrChecksumMismatch)
		}
	}
	return nil
}
