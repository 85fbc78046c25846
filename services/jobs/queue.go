package jobsvc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/shule/core"
)

var (
	ErrQueueFull    = core.ErrJobQueueFull
	ErrQueueClosed  = errors.New("job queue is closed")
	ErrJobNotDone   = core.ErrJobNotDone
	ErrJobNoResult  = core.ErrJobNoResult
	retryBaseDelay  = time.Second
	maxRetryBackoff = time.Minute
)

type (
	entry struct {
		mu     sync.Mutex
		info   core.JobInfo
		result *core.JobResult
	}

	task struct {
		id string
		fn core.JobFunc
	}

	// Queue runs jobs on a fixed pool of workers.
	// Job statuses & results are kept in memory and expire after conf.Jobs.ResultTTL.
	Queue struct {
		workers     int
		maxAttempts int
		logger      core.Logger

		store *cache.Cache
		tasks chan task

		mu     sync.RWMutex
		closed bool
		group  *errgroup.Group
		cancel context.CancelFunc
	}
)

var _ core.JobQueue = (*Queue)(nil)

func NewQueue(conf *core.Config, logger core.Logger) *Queue {
	workers := conf.Jobs.Workers
	if workers < 1 {
		workers = 1
	}
	attempts := conf.Jobs.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	size := conf.Jobs.QueueSize
	if size < 1 {
		size = 100
	}
	ttl := conf.Jobs.ResultTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Queue{
		workers:     workers,
		maxAttempts: attempts,
		logger:      logger,
		store:       cache.New(ttl, 10*time.Minute),
		tasks:       make(chan task, size),
	}
}

// Start launches the workers. They stop when ctx is done or the queue is shut down.
func (q *Queue) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)

	q.mu.Lock()
	q.group = g
	q.cancel = cancel
	q.mu.Unlock()

	for i := 0; i < q.workers; i++ {
		g.Go(func() error {
			q.work(ctx)
			return nil
		})
	}
}

// Shutdown stops accepting jobs and waits for the queued ones to complete, or for ctx to be done.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.tasks)
	g, cancel := q.group, q.cancel
	q.mu.Unlock()

	if g == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()
	select {
	case <-done:
		cancel()
		return nil
	case <-ctx.Done():
		cancel()
		return errors.Wrap(ctx.Err(), "waiting for jobs")
	}
}

func (q *Queue) Enqueue(name string, fn core.JobFunc) (string, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return "", ErrQueueClosed
	}

	id := uuid.New().String()
	e := &entry{info: core.JobInfo{
		ID:         id,
		Name:       name,
		Status:     core.JobScheduled,
		EnqueuedAt: core.NowFunc(),
	}}
	q.store.Set(id, e, cache.DefaultExpiration)

	select {
	case q.tasks <- task{id: id, fn: fn}:
		return id, nil
	default:
		q.store.Delete(id)
		return "", ErrQueueFull
	}
}

func (q *Queue) entry(id string) (*entry, error) {
	v, ok := q.store.Get(id)
	if !ok {
		return nil, core.ErrJobNotFound
	}
	return v.(*entry), nil
}

func (q *Queue) Status(id string) (core.JobInfo, error) {
	e, err := q.entry(id)
	if err != nil {
		return core.JobInfo{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.info, nil
}

func (q *Queue) Result(id string) (*core.JobResult, error) {
	e, err := q.entry(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.info.Status != core.JobCompleted {
		return nil, ErrJobNotDone
	}
	if e.result == nil {
		return nil, ErrJobNoResult
	}
	return e.result, nil
}

// update applies fn to the job entry and refreshes its expiration.
func (q *Queue) update(id string, fn func(e *entry)) {
	e, err := q.entry(id)
	if err != nil {
		return // expired
	}
	e.mu.Lock()
	fn(e)
	e.mu.Unlock()
	q.store.Set(id, e, cache.DefaultExpiration)
}

func (q *Queue) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-q.tasks:
			if !ok {
				return
			}
			q.run(ctx, t)
		}
	}
}

// run executes the task, retrying failed attempts with an exponential backoff.
func (q *Queue) run(ctx context.Context, t task) {
	now := core.NowFunc()
	q.update(t.id, func(e *entry) {
		e.info.Status = core.JobProcessing
		e.info.StartedAt = &now
	})

	var (
		result *core.JobResult
		err    error
	)
	for attempt := 1; attempt <= q.maxAttempts; attempt++ {
		q.update(t.id, func(e *entry) { e.info.Attempts = attempt })

		result, err = q.attempt(ctx, t)
		if err == nil || ctx.Err() != nil || attempt == q.maxAttempts {
			break
		}
		q.logger.Warn(fmt.Sprintf("job %s attempt %d failed", t.id, attempt), err)

		delay := retryBaseDelay << (attempt - 1)
		if delay > maxRetryBackoff {
			delay = maxRetryBackoff
		}
		select {
		case <-ctx.Done():
		case <-time.After(delay):
		}
	}

	finished := core.NowFunc()
	q.update(t.id, func(e *entry) {
		e.info.FinishedAt = &finished
		if err != nil {
			e.info.Status = core.JobFailed
			e.info.Error = err.Error()
			return
		}
		e.info.Status = core.JobCompleted
		e.info.Error = ""
		e.result = result
		e.info.HasResult = result != nil
	})
	if err != nil {
		q.logger.Error(fmt.Sprintf("job %s failed", t.id), err)
	}
}

// attempt runs the job once, turning a panic into an error.
func (q *Queue) attempt(ctx context.Context, t task) (res *core.JobResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("job panicked: %v", p)
		}
	}()
	return t.fn(ctx)
}

// QueueMock runs jobs synchronously on Enqueue.
type QueueMock struct {
	*Queue
}

func NewQueueMock(logger core.Logger) *QueueMock {
	conf := core.NewTestConfig()
	conf.Jobs.MaxAttempts = 1
	return &QueueMock{Queue: NewQueue(conf, logger)}
}

func (q *QueueMock) Enqueue(name string, fn core.JobFunc) (string, error) {
	id := uuid.New().String()
	q.store.Set(id, &entry{info: core.JobInfo{
		ID:         id,
		Name:       name,
		Status:     core.JobScheduled,
		EnqueuedAt: core.NowFunc(),
	}}, cache.DefaultExpiration)
	q.run(context.Background(), task{id: id, fn: fn})
	return id, nil
}
