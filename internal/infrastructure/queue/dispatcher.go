package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/projexia/projexia/internal/api/metrics"
	"github.com/projexia/projexia/internal/core/domain"
	"github.com/projexia/projexia/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
	recordTimeout  = 5 * time.Second
)

// Dispatcher routes activity entries to a fixed set of workers using
// consistent hashing on the project id, guaranteeing per-project ordering.
type Dispatcher struct {
	workers []chan domain.Activity
	service ports.ActivityService
	log     zerolog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, service ports.ActivityService, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan domain.Activity, numWorkers),
		service: service,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.Activity, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers run until Close drains them.
func (d *Dispatcher) Start() {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(i, ch)
	}
}

// Publish hands a to the worker responsible for its project. It never blocks
// the caller: when the worker channel is full the entry is dropped and counted.
func (d *Dispatcher) Publish(a domain.Activity) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		metrics.ActivityErrorsTotal.WithLabelValues("dropped").Inc()
		return
	}

	idx := d.shardIndex(a.ProjectID)
	select {
	case d.workers[idx] <- a:
		metrics.ActivityQueueDepth.WithLabelValues(strconv.Itoa(idx)).Inc()
	default:
		metrics.ActivityErrorsTotal.WithLabelValues("dropped").Inc()
		d.log.Warn().
			Str("project_id", a.ProjectID).
			Str("kind", string(a.Kind)).
			Int("worker_id", idx).
			Msg("activity queue full, entry dropped")
	}
}

// Close stops accepting entries and waits until queued ones are written or
// ctx expires.
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

// shardIndex maps a project id deterministically to a worker index.
func (d *Dispatcher) shardIndex(projectID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(projectID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(id int, ch <-chan domain.Activity) {
	defer d.wg.Done()
	label := strconv.Itoa(id)

	for a := range ch {
		metrics.ActivityQueueDepth.WithLabelValues(label).Dec()
		start := time.Now()

		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		err := d.service.Record(ctx, a)
		cancel()

		metrics.ActivityProcessingDuration.WithLabelValues(string(a.Kind)).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.ActivityErrorsTotal.WithLabelValues("insert_failed").Inc()
			d.log.Error().Err(err).
				Str("project_id", a.ProjectID).
				Str("kind", string(a.Kind)).
				Int("worker_id", id).
				Msg("activity processing failed")
			continue
		}
		metrics.ActivityRecordedTotal.WithLabelValues(string(a.Kind)).Inc()
	}
}
