package worker

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sync-hire/backend/pkg/queue"
)

// Run must back off between dequeue attempts when Redis is unreachable
// instead of hammering it in a hot loop.
func TestRun_BacksOffOnDequeueErrors(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	logger := zap.New(core)

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1", // nothing listens here
		DialTimeout: 10 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	p := NewCompletionProcessor(nil, queue.NewQueue(rdb, logger), logger)
	p.backoff = 25 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}

	attempts := logs.FilterMessage("dequeue failed").Len()
	require.GreaterOrEqual(t, attempts, 1)
	require.LessOrEqual(t, attempts, 10, "dequeue errors must be paced by the backoff")
}
