package repository

import (
	"context"
	"errors"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	readAttempts = 5
	readDelay    = 50 * time.Millisecond
	readMaxDelay = 2 * time.Second
)

// isBusy reports whether err is a transient lock conflict from sqlite
func isBusy(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

// withRetry runs fn, retrying while sqlite reports the database as busy
func withRetry(ctx context.Context, logger *zap.Logger, op string, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(readAttempts),
		retry.Delay(readDelay),
		retry.MaxDelay(readMaxDelay),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(readDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isBusy),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("database busy, retrying",
				zap.String("op", op),
				zap.Uint("attempt", n+1),
				zap.Error(err),
			)
		}),
	)
}
