package commandqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harun/iattom/internal/observability"
	"github.com/harun/iattom/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

const (
	tracerName           = "iattom/commandqueue"
	defaultMaxConcurrent = 32
)

// ErrClosed is returned when a task is scheduled after Close
var ErrClosed = errors.New("command queue is closed")

// Task is one unit of work in a lane
type Task func(ctx context.Context) error

// taskRecord tracks a task's execution state
type taskRecord struct {
	id         string
	task       Task
	ctx        context.Context
	enqueuedAt time.Time
	result     chan error // nil for Submit
}

// laneState is the FIFO of one key
type laneState struct {
	key     string
	queue   []*taskRecord
	running bool
}

// Options configures a Queue
type Options struct {
	// MaxConcurrent caps tasks running across all lanes (default: 32)
	MaxConcurrent int
}

// Queue provides lane-based task serialization
type Queue struct {
	mu        sync.Mutex
	lanes     map[string]*laneState
	taskIDSeq uint64
	closed    bool

	// slots holds one token per running task
	slots chan struct{}

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger
}

// New creates an empty Queue
func New(opts Options, logger zerolog.Logger) *Queue {
	observability.EnsureRegistered()

	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = defaultMaxConcurrent
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		lanes:  make(map[string]*laneState),
		slots:  make(chan struct{}, opts.MaxConcurrent),
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With().Str("component", "commandqueue").Logger(),
	}
}

// Enqueue runs task in lane key and waits for its result
func (q *Queue) Enqueue(ctx context.Context, key string, task Task) error {
	record, err := q.schedule(ctx, key, task, true)
	if err != nil {
		return err
	}
	select {
	case err := <-record.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit schedules task in lane key without waiting. The task keeps the
// values of ctx but not its cancellation, so it outlives the caller.
func (q *Queue) Submit(ctx context.Context, key string, task Task) error {
	_, err := q.schedule(context.WithoutCancel(ctx), key, task, false)
	return err
}

func (q *Queue) schedule(ctx context.Context, key string, task Task, wait bool) (*taskRecord, error) {
	if task == nil {
		return nil, fmt.Errorf("task cannot be nil")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrClosed
	}

	q.taskIDSeq++
	record := &taskRecord{
		id:         fmt.Sprintf("%s-%d", key, q.taskIDSeq),
		task:       task,
		ctx:        ctx,
		enqueuedAt: time.Now(),
	}
	if wait {
		record.result = make(chan error, 1)
	}

	ls, ok := q.lanes[key]
	if !ok {
		ls = &laneState{key: key}
		q.lanes[key] = ls
		observability.SetActiveLanes(len(q.lanes))
	}
	ls.queue = append(ls.queue, record)

	q.logger.Debug().
		Str("lane", key).
		Str("task_id", record.id).
		Int("queue_size", len(ls.queue)).
		Msg("Task enqueued")

	if !ls.running {
		ls.running = true
		q.wg.Add(1)
		go q.drain(ls)
	}
	return record, nil
}

// drain executes the lane until it is empty, then releases it
func (q *Queue) drain(ls *laneState) {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		if len(ls.queue) == 0 {
			ls.running = false
			delete(q.lanes, ls.key)
			observability.SetActiveLanes(len(q.lanes))
			q.mu.Unlock()
			return
		}
		record := ls.queue[0]
		ls.queue[0] = nil
		ls.queue = ls.queue[1:]
		q.mu.Unlock()

		q.slots <- struct{}{}
		q.execute(ls.key, record)
		<-q.slots
	}
}

func (q *Queue) execute(key string, record *taskRecord) {
	ctx, span := tracing.StartSpan(record.ctx, tracerName, "commandqueue.execute_task",
		attribute.String("lane", key),
		attribute.String("task_id", record.id),
	)
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, q.logger)

	runCtx, cancel := context.WithCancel(ctx)
	stopCancel := context.AfterFunc(q.ctx, cancel)
	defer func() {
		stopCancel()
		cancel()
	}()

	start := time.Now()
	err := run(runCtx, record.task)
	duration := time.Since(start)

	if err != nil {
		tracing.RecordError(span, err)
		logger.Error().
			Str("lane", key).
			Str("task_id", record.id).
			Dur("duration", duration).
			Err(err).
			Msg("Task failed")
	} else {
		logger.Debug().
			Str("lane", key).
			Str("task_id", record.id).
			Dur("wait", start.Sub(record.enqueuedAt)).
			Dur("duration", duration).
			Msg("Task completed")
	}
	observability.RecordLaneTask(err == nil)

	if record.result != nil {
		record.result <- err
	}
}

func run(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task(ctx)
}

// Lanes returns the number of lanes with pending or running work
func (q *Queue) Lanes() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lanes)
}

// QueueSize returns the number of tasks waiting in lane key
func (q *Queue) QueueSize(key string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if ls, ok := q.lanes[key]; ok {
		return len(ls.queue)
	}
	return 0
}

// Close rejects new tasks and waits for queued ones. When ctx expires first,
// running tasks are cancelled and ctx.Err() is returned.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		q.logger.Info().Msg("Command queue drained")
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		q.logger.Warn().Msg("Command queue closed before draining")
		return ctx.Err()
	}
}
