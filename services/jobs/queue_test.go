package jobsvc

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/services/logger"
)

func newTestQueue(t *testing.T, mutate func(conf *core.Config)) *Queue {
	t.Helper()
	conf := core.NewTestConfig()
	if mutate != nil {
		mutate(conf)
	}
	return NewQueue(conf, logsvc.NewTestLogger())
}

func waitFor(t *testing.T, q *Queue, id string, status core.JobStatus) core.JobInfo {
	t.Helper()
	var info core.JobInfo
	require.Eventually(t, func() bool {
		var err error
		info, err = q.Status(id)
		return err == nil && info.Status == status
	}, 2*time.Second, 5*time.Millisecond)
	return info
}

func TestQueue_Run(t *testing.T) {
	q := newTestQueue(t, nil)
	q.Start(context.Background())
	defer func() { _ = q.Shutdown(context.Background()) }()

	id, err := q.Enqueue("report", func(ctx context.Context) (*core.JobResult, error) {
		return &core.JobResult{Filename: "cards.zip", ContentType: "application/zip", Content: []byte("zip")}, nil
	})
	require.NoError(t, err)

	info := waitFor(t, q, id, core.JobCompleted)
	assert.Equal(t, "report", info.Name)
	assert.Equal(t, 1, info.Attempts)
	assert.True(t, info.HasResult)
	assert.NotNil(t, info.StartedAt)
	assert.NotNil(t, info.FinishedAt)

	res, err := q.Result(id)
	require.NoError(t, err)
	assert.Equal(t, "cards.zip", res.Filename)

	noResult, err := q.Enqueue("emails", func(ctx context.Context) (*core.JobResult, error) { return nil, nil })
	require.NoError(t, err)
	waitFor(t, q, noResult, core.JobCompleted)
	_, err = q.Result(noResult)
	assert.Equal(t, ErrJobNoResult, err)

	_, err = q.Status("unknown")
	assert.Equal(t, core.ErrJobNotFound, err)
}

func TestQueue_Retry(t *testing.T) {
	defer func(d time.Duration) { retryBaseDelay = d }(retryBaseDelay)
	retryBaseDelay = time.Millisecond

	q := newTestQueue(t, func(conf *core.Config) { conf.Jobs.MaxAttempts = 3 })
	q.Start(context.Background())
	defer func() { _ = q.Shutdown(context.Background()) }()

	var calls int32
	flaky, err := q.Enqueue("flaky", func(ctx context.Context) (*core.JobResult, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, errors.New("smtp timeout")
		}
		return nil, nil
	})
	require.NoError(t, err)
	info := waitFor(t, q, flaky, core.JobCompleted)
	assert.Equal(t, 2, info.Attempts)
	assert.Empty(t, info.Error)

	broken, err := q.Enqueue("broken", func(ctx context.Context) (*core.JobResult, error) {
		panic("boom")
	})
	require.NoError(t, err)
	info = waitFor(t, q, broken, core.JobFailed)
	assert.Equal(t, 3, info.Attempts)
	assert.Contains(t, info.Error, "boom")
}

func TestQueue_NotDone(t *testing.T) {
	q := newTestQueue(t, func(conf *core.Config) { conf.Jobs.QueueSize = 1 })

	id, err := q.Enqueue("first", func(ctx context.Context) (*core.JobResult, error) { return nil, nil })
	require.NoError(t, err)
	info, err := q.Status(id)
	require.NoError(t, err)
	assert.Equal(t, core.JobScheduled, info.Status)
	_, err = q.Result(id)
	assert.Equal(t, ErrJobNotDone, err)

	// no worker: the buffer is full
	_, err = q.Enqueue("second", func(ctx context.Context) (*core.JobResult, error) { return nil, nil })
	assert.Equal(t, ErrQueueFull, err)
}

func TestQueue_Shutdown(t *testing.T) {
	q := newTestQueue(t, func(conf *core.Config) { conf.Jobs.Workers = 1 })
	q.Start(context.Background())

	var done int32
	for i := 0; i < 3; i++ {
		_, err := q.Enqueue("slow", func(ctx context.Context) (*core.JobResult, error) {
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&done, 1)
			return nil, nil
		})
		require.NoError(t, err)
	}

	require.NoError(t, q.Shutdown(context.Background()))
	assert.Equal(t, int32(3), atomic.LoadInt32(&done))

	_, err := q.Enqueue("late", func(ctx context.Context) (*core.JobResult, error) { return nil, nil })
	assert.Equal(t, ErrQueueClosed, err)
	assert.NoError(t, q.Shutdown(context.Background()))
}

func TestQueueMock(t *testing.T) {
	q := NewQueueMock(logsvc.NewTestLogger())

	id, err := q.Enqueue("sync", func(ctx context.Context) (*core.JobResult, error) {
		return nil, errors.New("no parent phone")
	})
	require.NoError(t, err)
	info, err := q.Status(id)
	require.NoError(t, err)
	assert.Equal(t, core.JobFailed, info.Status)
	assert.Equal(t, "no parent phone", info.Error)
}
