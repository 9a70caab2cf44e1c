// Package storage connects the optional export storage with retries
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/UnendingLoop/TextWatermark/internal/config"
	"github.com/UnendingLoop/TextWatermark/internal/storage/miniostorage"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

// DefaultConnectStrategy - стартовая стратегия подключения к хранилищу
var DefaultConnectStrategy = retry.Strategy{
	Attempts: 5,
	Delay:    2 * time.Second,
	Backoff:  2,
}

// Connector opens one connection attempt.
type Connector[T any] func(ctx context.Context) (T, error)

// ConnectWithRetries calls connect until it succeeds, the attempts run out or
// ctx is cancelled. Delay grows by Backoff after every failure.
func ConnectWithRetries[T any](ctx context.Context, strategy retry.Strategy, connect Connector[T]) (T, error) {
	var res T
	if strategy.Attempts < 1 {
		strategy.Attempts = 1
	}

	attempt := 0
	err := retry.DoContext(ctx, strategy, func() error {
		attempt++
		zlog.Logger.Info().Int("attempt", attempt).Msg("Connecting to export storage...")
		conn, err := connect(ctx)
		if err != nil {
			zlog.Logger.Warn().Err(err).Int("attempt", attempt).Msg("Failed to connect export storage")
			return err
		}
		res = conn
		return nil
	})
	if err != nil {
		var zero T
		return zero, fmt.Errorf("export storage unreachable after %d attempts: %w", attempt, err)
	}

	zlog.Logger.Info().Msg("Successfully connected export storage!")
	return res, nil
}

// NewExportStorage connects MinIO described by cfg.
func NewExportStorage(ctx context.Context, cfg config.StorageConfig, strategy retry.Strategy) (*miniostorage.MinioExportStorage, error) {
	return ConnectWithRetries(ctx, strategy, func(ctx context.Context) (*miniostorage.MinioExportStorage, error) {
		return miniostorage.NewMinioClient(ctx, cfg)
	})
}
