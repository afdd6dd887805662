package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetwise/fleet-api/internal/core/domain"
	"github.com/fleetwise/fleet-api/internal/core/ports"
	"github.com/fleetwise/fleet-api/internal/pkg/metrics"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
	recordTimeout  = 5 * time.Second
)

// Dispatcher records session events in the background. Events are sharded
// by account id onto a fixed set of workers so each account's trail is
// written in order. Enqueue never blocks: when a worker's buffer is full the
// event is dropped and counted.
type Dispatcher struct {
	workers  []chan domain.SessionEvent
	recorder ports.SessionEventRecorder
	log      zerolog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, recorder ports.SessionEventRecorder, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers:  make([]chan domain.SessionEvent, numWorkers),
		recorder: recorder,
		log:      log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.SessionEvent, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Writes use ctx values but outlive its
// cancellation; call Close to stop the workers.
func (d *Dispatcher) Start(ctx context.Context) {
	base := context.WithoutCancel(ctx)
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(base, i, ch)
	}
}

// Enqueue hands event to the worker responsible for its account.
func (d *Dispatcher) Enqueue(event domain.SessionEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	kind := string(event.Kind)
	if d.closed {
		metrics.AuditEventsTotal.WithLabelValues(kind, "dropped").Inc()
		return
	}

	idx := d.shardIndex(event.AccountID)
	select {
	case d.workers[idx] <- event:
		metrics.AuditQueueDepth.WithLabelValues(strconv.Itoa(idx)).Inc()
	default:
		metrics.AuditEventsTotal.WithLabelValues(kind, "dropped").Inc()
		d.log.Warn().
			Str("account_id", event.AccountID).
			Str("kind", kind).
			Int("worker_id", idx).
			Msg("audit queue full, event dropped")
	}
}

// Close stops accepting events and waits until the workers have drained
// their buffers or ctx expires.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, ch := range d.workers {
			close(ch)
		}
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// shardIndex maps an account id deterministically to a worker index.
func (d *Dispatcher) shardIndex(accountID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(accountID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.SessionEvent) {
	defer d.wg.Done()
	depth := metrics.AuditQueueDepth.WithLabelValues(strconv.Itoa(id))

	for event := range ch {
		depth.Dec()
		d.record(ctx, id, event)
	}
}

func (d *Dispatcher) record(ctx context.Context, worker int, event domain.SessionEvent) {
	ctx, cancel := context.WithTimeout(ctx, recordTimeout)
	defer cancel()

	kind := string(event.Kind)
	if err := d.recorder.InsertSessionEvent(ctx, event); err != nil {
		metrics.AuditEventsTotal.WithLabelValues(kind, "failed").Inc()
		d.log.Error().Err(err).
			Str("account_id", event.AccountID).
			Str("kind", kind).
			Int("worker_id", worker).
			Msg("session event recording failed")
		return
	}
	metrics.AuditEventsTotal.WithLabelValues(kind, "recorded").Inc()
}

var _ ports.SessionAuditor = (*Dispatcher)(nil)
