package worker

import (
	"context"
	"sync"
	"time"

	"github.com/Shopify/sarama"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// DefaultConcurrency is the worker pool size.
const DefaultConcurrency = 10

// Pool runs a fixed number of long-lived consumer group members
// sharing one group id, so the broker distributes the topic's
// partitions across them. Each member owns its client and processes
// its claims sequentially; members run in parallel.
type Pool struct {
	Addrs   []string
	GroupID string
	Topics  []string
	Size    int
	Config  *sarama.Config
	Handler sarama.ConsumerGroupHandler
	Log     *zap.Logger
}

// Run starts the pool and blocks until ctx closes and all members
// have stopped. Member errors are logged and retried with exponential
// backoff; they never propagate out of the pool.
func (p *Pool) Run(ctx context.Context) {
	size := p.Size
	if size <= 0 {
		size = DefaultConcurrency
	}
	var wg sync.WaitGroup
	for i := 0; i < size; i++ {
		wg.Add(1)
		go func(member int) {
			defer wg.Done()
			p.runMember(ctx, member)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) runMember(ctx context.Context, member int) {
	log := p.Log.With(zap.Int("member", member))
	group, err := sarama.NewConsumerGroup(p.Addrs, p.GroupID, p.Config)
	if err != nil {
		log.Error("Failed to create consumer group member", zap.Error(err))
		return
	}
	defer func() {
		if err := group.Close(); err != nil {
			log.Error("Failed to close consumer group member", zap.Error(err))
		}
	}()
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0 // retry forever
	for ctx.Err() == nil {
		// Consume returns on rebalance; that is not an error.
		if err := group.Consume(ctx, p.Topics, p.Handler); err != nil {
			log.Error("Consumer session failed", zap.Error(err))
			if !sleep(ctx, bo.NextBackOff()) {
				return
			}
			continue
		}
		bo.Reset()
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
