package binance

import "time"

const (
	baseReconnectDelay = 500 * time.Millisecond
	maxReconnectDelay  = 30 * time.Second
)

// reconnectDelay is baseReconnectDelay * 2^attempt, capped at maxReconnectDelay.
func reconnectDelay(attempt int) time.Duration {
	if attempt < 0 {
		return baseReconnectDelay
	}
	if attempt > 30 {
		return maxReconnectDelay
	}
	delay := baseReconnectDelay * time.Duration(1<<attempt)
	if delay > maxReconnectDelay {
		return maxReconnectDelay
	}
	return delay
}
