package main

import (
	"context"
	"time"

	"github.com/UnendingLoop/TextWatermark/internal/transport"
)

// WatermarkAPIService - всё, что нужно main от сервиса: ручки и фоновая чистка сессий
type WatermarkAPIService interface {
	transport.SessionService
	ReapIdle(ctx context.Context, ttl time.Duration) int
}
