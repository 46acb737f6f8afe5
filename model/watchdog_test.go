package model

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchStallFires(t *testing.T) {
	last := time.Now()
	stop := make(chan struct{})
	defer close(stop)

	errc := watchStall(context.Background(), func() time.Time { return last }, 20*time.Millisecond, stop)
	select {
	case err := <-errc:
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrStalled)
	case <-time.After(2 * time.Second):
		t.Fatal("watchdog did not report the stall")
	}
}

func TestWatchStallQuietWhileActive(t *testing.T) {
	var last atomic.Int64
	last.Store(time.Now().UnixNano())
	stop := make(chan struct{})

	errc := watchStall(context.Background(), func() time.Time { return time.Unix(0, last.Load()) }, 50*time.Millisecond, stop)

	deadline := time.After(200 * time.Millisecond)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
loop:
	for {
		select {
		case <-ticker.C:
			last.Store(time.Now().UnixNano())
		case err := <-errc:
			t.Fatalf("unexpected stall: %v", err)
		case <-deadline:
			break loop
		}
	}
	close(stop)

	select {
	case err := <-errc:
		t.Fatalf("unexpected stall after stop: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatchStallStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stale := time.Now().Add(-time.Hour)

	errc := watchStall(ctx, func() time.Time { return stale }, 10*time.Millisecond, make(chan struct{}))
	select {
	case err := <-errc:
		t.Fatalf("cancelled watchdog reported %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}
