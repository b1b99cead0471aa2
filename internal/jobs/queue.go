package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/banshee-data/thermal.report/internal/monitoring"
)

// Runner executes one job, writing progress lines through logf as they
// are produced. A non-nil error marks the job failed.
type Runner interface {
	Run(ctx context.Context, job *Job, logf func(format string, v ...any)) error
}

// Queue dispatches queued jobs to a fixed pool of workers. Each job's
// log output is buffered and broadcast to any number of live followers.
type Queue struct {
	store   *Store
	runner  Runner
	workers int

	pending chan string

	mu   sync.Mutex
	logs map[string]*logBuffer

	wg sync.WaitGroup
}

// NewQueue builds a queue over store using runner. workers below 1 is
// treated as 1.
func NewQueue(store *Store, runner Runner, workers int) *Queue {
	if workers < 1 {
		workers = 1
	}
	return &Queue{
		store:   store,
		runner:  runner,
		workers: workers,
		pending: make(chan string, 128),
		logs:    make(map[string]*logBuffer),
	}
}

// Start launches the worker pool and re-dispatches every job a
// previous process left unfinished, whether it died mid-run or before
// the job was ever picked up. Workers exit when ctx is cancelled; Wait
// blocks until they have.
func (q *Queue) Start(ctx context.Context) error {
	stuck, err := q.store.RequeueStuck()
	if err != nil {
		return fmt.Errorf("requeue stuck jobs: %w", err)
	}
	for _, id := range stuck {
		monitoring.Logf("[JobQueue] Recovered unfinished job %s", id)
		q.enqueue(id)
	}

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
	monitoring.Logf("[JobQueue] Started %d workers", q.workers)
	return nil
}

// Wait blocks until all workers have exited.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// Submit registers a new job and hands it to the pool.
func (q *Queue) Submit(j *Job) error {
	if err := q.store.Insert(j); err != nil {
		return err
	}
	q.enqueue(j.ID)
	monitoring.Logf("[JobQueue] Queued job %s input=%s", j.ID, j.InputPath)
	return nil
}

func (q *Queue) enqueue(id string) {
	// Make the buffer visible before the job can start so an immediate
	// log follower never misses the replay.
	q.buffer(id)
	q.pending <- id
}

// buffer returns (creating if needed) the log buffer for a job.
func (q *Queue) buffer(id string) *logBuffer {
	q.mu.Lock()
	defer q.mu.Unlock()
	b, ok := q.logs[id]
	if !ok {
		b = newLogBuffer()
		q.logs[id] = b
	}
	return b
}

// SubscribeLogs returns the job's log so far plus a channel of
// subsequent lines. Unknown jobs get an empty replay and a closed
// channel.
func (q *Queue) SubscribeLogs(id string) (string, []string, chan string) {
	q.mu.Lock()
	b, ok := q.logs[id]
	q.mu.Unlock()
	if !ok {
		if j, err := q.store.GetJob(id); err == nil && j.Terminal() {
			// Finished before this process started; nothing buffered.
			ch := make(chan string)
			close(ch)
			return "", nil, ch
		}
		b = q.buffer(id)
	}
	return b.Subscribe()
}

// UnsubscribeLogs detaches a follower registered via SubscribeLogs.
func (q *Queue) UnsubscribeLogs(jobID, subID string) {
	q.mu.Lock()
	b, ok := q.logs[jobID]
	q.mu.Unlock()
	if ok && subID != "" {
		b.Unsubscribe(subID)
	}
}

func (q *Queue) worker(ctx context.Context, n int) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-q.pending:
			q.runOne(ctx, n, id)
		}
	}
}

func (q *Queue) runOne(ctx context.Context, n int, id string) {
	job, err := q.store.GetJob(id)
	if err != nil {
		monitoring.Logf("[JobQueue] worker %d: cannot load job %s: %v", n, id, err)
		return
	}

	buf := q.buffer(id)
	logf := func(format string, v ...any) {
		buf.Append(fmt.Sprintf(format, v...))
	}

	if err := q.store.MarkRunning(id); err != nil {
		monitoring.Logf("[JobQueue] worker %d: cannot mark job %s running: %v", n, id, err)
		return
	}
	monitoring.Logf("[JobQueue] worker %d: running job %s", n, id)

	runErr := q.runner.Run(ctx, job, logf)
	if runErr != nil && ctx.Err() != nil {
		// Shutdown killed the processor, not the job itself. Leave the
		// record in running state; startup recovery requeues it.
		monitoring.Logf("[JobQueue] worker %d: job %s interrupted by shutdown", n, id)
		buf.CloseAll()
		return
	}
	if runErr != nil {
		logf("ERROR: %v", runErr)
		if err := q.store.MarkError(id, runErr.Error()); err != nil {
			monitoring.Logf("[JobQueue] worker %d: cannot mark job %s failed: %v", n, id, err)
		}
		monitoring.Logf("[JobQueue] worker %d: job %s failed: %v", n, id, runErr)
	} else {
		if err := q.store.MarkDone(id); err != nil {
			monitoring.Logf("[JobQueue] worker %d: cannot mark job %s done: %v", n, id, err)
		}
		monitoring.Logf("[JobQueue] worker %d: job %s done", n, id)
	}
	buf.CloseAll()
}
