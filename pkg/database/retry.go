package database

import (
	"context"
	"time"
)

// RetryConfig controls how reads issued outside a transaction are retried
// after transient connectivity failures.
type RetryConfig struct {
	Attempts int
	Delay    time.Duration
}

func (db *DatabaseInstance) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	return db.withReadRetry(ctx, func() error {
		return db.DB.GetContext(ctx, dest, query, args...)
	})
}

func (db *DatabaseInstance) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	return db.withReadRetry(ctx, func() error {
		return db.DB.SelectContext(ctx, dest, query, args...)
	})
}

func (db *DatabaseInstance) withReadRetry(ctx context.Context, read func() error) error {
	attempts := db.retry.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = read()
		if err == nil || !IsTransient(err) || attempt == attempts {
			return err
		}

		db.logger.WithContext(ctx).WithError(err).WithField("attempt", attempt).
			Warnf("Transient database error, retrying read in %s (attempt %d/%d)", db.retry.Delay, attempt, attempts)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(db.retry.Delay):
		}
	}

	return err
}
