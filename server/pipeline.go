package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/fedforumdev/fedforum/server/telemetry"
)

// queueDepth bounds how many activities can wait for delivery. A full
// queue fails the enqueue synchronously rather than blocking the
// request handler.
const queueDepth = 256

// QueuedItem is an activity awaiting delivery. Prepare runs on the
// pipeline worker at send time, which is where fan-out targets expand to
// concrete inbox requests; follower-set changes between enqueue and send
// are picked up naturally. Receive is called once per delivered request.
type QueuedItem interface {
	fmt.Stringer
	Prepare(ctx context.Context) ([]*http.Request, error)
	Receive(resp *http.Response)
}

// OutputPipeline is an asynchronous delivery channel for outbound
// activities. Enqueueing is decoupled from delivery so a user-facing
// request never blocks on remote-peer reachability. Retry with backoff
// is the concern of a per-destination delivery queue behind this; the
// pipeline's contract is accept-for-eventual-delivery.
type OutputPipeline struct {
	client   http.Client
	pipeline chan QueuedItem
	wg       sync.WaitGroup
}

func NewPipeline() *OutputPipeline {
	return &OutputPipeline{
		client:   http.Client{Timeout: 30 * time.Second},
		pipeline: make(chan QueuedItem, queueDepth),
	}
}

// Queue hands an activity to the pipeline. Failure here is fatal to the
// caller's operation; failure after this point is not.
func (p *OutputPipeline) Queue(item QueuedItem) error {
	if p == nil || p.pipeline == nil {
		panic("no pipeline channel")
	}
	select {
	case p.pipeline <- item:
		p.wg.Add(1)
		telemetry.Trace("queued %s", item)
		return nil
	default:
		return fmt.Errorf("delivery queue full, dropping %s", item)
	}
}

// Run waits for queued items and delivers them.
// Expected to be run in a goroutine.
func (p *OutputPipeline) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item := <-p.pipeline:
			p.deliver(ctx, item)
			p.wg.Done()
		}
	}
}

func (p *OutputPipeline) deliver(ctx context.Context, item QueuedItem) {
	requests, err := item.Prepare(ctx)
	if err != nil {
		telemetry.Error(err, "preparing %s", item)
		return
	}
	for _, r := range requests {
		resp, err := p.client.Do(r)
		if err != nil {
			telemetry.Error(err, "delivering %s to %s", item, r.URL)
			continue
		}
		item.Receive(resp)
		resp.Body.Close()
		telemetry.Increment("deliveries", 1)
	}
}

// Flush blocks until everything queued so far has been handled.
// Used by tests.
func (p *OutputPipeline) Flush() {
	p.wg.Wait()
}
