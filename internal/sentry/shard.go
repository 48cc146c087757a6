package sentry

import (
	"context"
	"hash/fnv"
	"sync"
)

// shardPool serializes work per baseline key while letting distinct keys
// proceed in parallel. Each shard is one goroutine draining its own queue,
// so an EWMA read-modify-write for a key can never interleave with another
// update to the same key. Batch upserts and streaming updates go through
// the same pool, which also removes batch-vs-streaming write races.
//
// The shard key is storeID|area|eventType, deliberately coarser than the
// baseline key (which adds the time window) and than the hysteresis key
// (camera): everything belonging to one logical monitored entity lands on
// one worker, so cross-worker ordering bugs cannot arise between a key's
// baseline and its hysteresis state.
type shardPool struct {
	shards []chan func()
	wg     sync.WaitGroup
	once   sync.Once
}

// newShardPool starts n workers with the given per-shard queue depth.
func newShardPool(n, queueDepth int) *shardPool {
	if n <= 0 {
		n = 16
	}
	if queueDepth <= 0 {
		queueDepth = 256
	}

	p := &shardPool{shards: make([]chan func(), n)}
	for i := range p.shards {
		ch := make(chan func(), queueDepth)
		p.shards[i] = ch
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for task := range ch {
				task()
			}
		}()
	}
	return p
}

// shardKey builds the serialization key for a logical monitored entity.
func shardKey(storeID, area string, eventType string) string {
	return storeID + "|" + area + "|" + eventType
}

// Submit enqueues fn on the worker owning key, blocking if that worker's
// queue is full. Returns ctx.Err() without enqueueing if ctx is done first.
func (p *shardPool) Submit(ctx context.Context, key string, fn func()) error {
	h := fnv.New32a()
	h.Write([]byte(key))
	ch := p.shards[h.Sum32()%uint32(len(p.shards))]

	select {
	case ch <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains all queues and stops the workers. Submit must not be called
// after Close.
func (p *shardPool) Close() {
	p.once.Do(func() {
		for _, ch := range p.shards {
			close(ch)
		}
	})
	p.wg.Wait()
}

// QueueDepth returns the total number of queued tasks across shards.
func (p *shardPool) QueueDepth() int {
	total := 0
	for _, ch := range p.shards {
		total += len(ch)
	}
	return total
}
