package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	flushAttempts   = 5
	flushRetryDelay = 100 * time.Millisecond
)

// SinkConfig configures the fingerprint write sink.
type SinkConfig struct {
	Store         *Store
	BatchSize     int           // Flush after N records (default: 1000)
	FlushInterval time.Duration // Or after duration (default: 5s)
	QueueSize     int           // Buffer size (default: 4096)
	Logger        *slog.Logger
}

// Sink serializes fingerprint writes from concurrent workers into
// batched upserts. Each flush is one transaction, retried with backoff
// when the database is briefly busy. A flush that still fails poisons
// the sink: the error surfaces on subsequent Sends and on Stop, and
// later batches are discarded so blocked senders can finish.
type Sink struct {
	store  *Store
	logger *slog.Logger

	// Configuration
	batchSize     int
	flushInterval time.Duration

	// Internal state
	queue   chan FingerprintRecord
	batch   []FingerprintRecord
	batchMu sync.Mutex
	flushCh chan struct{} // Signal to flush immediately

	// First flush failure
	err   error
	errMu sync.Mutex

	// Lifecycle
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewSink creates a new fingerprint write sink.
func NewSink(cfg SinkConfig) *Sink {
	// Apply defaults
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	// Never let one statement blow the SQLite variable budget.
	if limit := batchRows(2); cfg.BatchSize > limit {
		cfg.BatchSize = limit
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 4096
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Sink{
		store:         cfg.Store,
		logger:        cfg.Logger,
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		queue:         make(chan FingerprintRecord, cfg.QueueSize),
		batch:         make([]FingerprintRecord, 0, cfg.BatchSize),
		flushCh:       make(chan struct{}, 1),
	}
}

// Start begins processing fingerprint records.
func (s *Sink) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.runBatcher()
}

// Stop gracefully shuts down the sink, flushing remaining records, and
// returns the first flush failure if any occurred.
func (s *Sink) Stop() error {
	s.stopOnce.Do(func() {
		s.logger.Debug("stopping fingerprint sink, flushing remaining records")

		// Close queue to stop accepting new records and signal shutdown
		close(s.queue)

		// Wait for batcher to finish (it will flush remaining)
		s.wg.Wait()

		// Now cancel context
		s.cancel()
	})
	return s.Err()
}

// Send queues a fingerprint record, blocking when the queue is full.
// Returns the sink's poisoning error if a flush has already failed.
func (s *Sink) Send(rec FingerprintRecord) (err error) {
	// Recover from send on closed channel
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink closed")
		}
	}()

	if err := s.Err(); err != nil {
		return err
	}

	select {
	case s.queue <- rec:
		return nil
	case <-s.ctx.Done():
		return fmt.Errorf("sink closed")
	}
}

// Flush forces an immediate flush of the current batch.
func (s *Sink) Flush() {
	select {
	case s.flushCh <- struct{}{}:
	default:
		// Flush already pending
	}
}

// Err returns the first flush failure, or nil.
func (s *Sink) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// fail records the first flush failure.
func (s *Sink) fail(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// runBatcher collects records and flushes on size/time triggers.
func (s *Sink) runBatcher() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case rec, ok := <-s.queue:
			if !ok {
				// Queue closed, flush remaining and exit
				s.flushBatch()
				return
			}
			s.addToBatch(rec)

		case <-ticker.C:
			s.flushBatch()

		case <-s.flushCh:
			s.flushBatch()
		}
	}
}

// addToBatch adds a record to the current batch, flushing if full.
func (s *Sink) addToBatch(rec FingerprintRecord) {
	s.batchMu.Lock()
	s.batch = append(s.batch, rec)
	shouldFlush := len(s.batch) >= s.batchSize
	s.batchMu.Unlock()

	if shouldFlush {
		s.flushBatch()
	}
}

// flushBatch writes the current batch in one transaction.
func (s *Sink) flushBatch() {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return
	}
	recs := s.batch
	s.batch = make([]FingerprintRecord, 0, s.batchSize)
	s.batchMu.Unlock()

	// Once poisoned, keep draining so senders aren't blocked, but write
	// nothing more.
	if s.Err() != nil {
		return
	}

	s.logger.Debug("flushing fingerprint batch", "count", len(recs))

	err := retry.Do(
		func() error {
			return s.store.UpsertFingerprints(s.ctx, recs)
		},
		retry.Context(s.ctx),
		retry.Attempts(flushAttempts),
		retry.Delay(flushRetryDelay),
	)
	if err != nil {
		s.logger.Error("fingerprint batch flush failed",
			"count", len(recs),
			"error", err)
		s.fail(fmt.Errorf("failed to flush fingerprint batch: %w", err))
	}
}
