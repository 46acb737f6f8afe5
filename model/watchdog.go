package model

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrStalled = errors.New("no bridge activity")

// watchStall reports ErrStalled when lastEvent is older than limit. It stops
// quietly once stop is closed or ctx ends.
func watchStall(ctx context.Context, lastEvent func() time.Time, limit time.Duration, stop <-chan struct{}) <-chan error {
	out := make(chan error, 1)
	tick := max(limit/4, time.Millisecond)
	go func() {
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				if idle := time.Since(lastEvent()); idle > limit {
					out <- fmt.Errorf("%w for %s", ErrStalled, idle.Round(time.Millisecond))
					return
				}
			}
		}
	}()
	return out
}
