package events

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func startReturns(t *testing.T, c *Consumer, ctx context.Context) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		c.Start(ctx, func(*Envelope) {})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return")
	}
}

func TestStartStopsOnCancelledContext(t *testing.T) {
	c := NewConsumer([]string{"127.0.0.1:1"}, "events", "test", zap.NewNop().Sugar())
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	startReturns(t, c, ctx)
}

func TestStartStopsOnClosedReader(t *testing.T) {
	c := NewConsumer([]string{"127.0.0.1:1"}, "events", "test", zap.NewNop().Sugar())
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	startReturns(t, c, context.Background())
}
