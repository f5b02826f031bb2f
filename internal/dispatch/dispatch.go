package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"mediaconv/internal/model"
)

var ErrInvalidPoolSize = errors.New("pool size must be >= 1")

// Executor runs a single job to completion. It reports failures through the
// returned result; a panic is recovered by the engine and recorded as a
// failed result for that job. report may be called any number of times
// before Execute returns; later calls are ignored.
type Executor interface {
	Execute(ctx context.Context, spec model.JobSpec, report func(model.JobProgress)) model.JobResult
}

type ExecutorFunc func(ctx context.Context, spec model.JobSpec, report func(model.JobProgress)) model.JobResult

func (f ExecutorFunc) Execute(ctx context.Context, spec model.JobSpec, report func(model.JobProgress)) model.JobResult {
	return f(ctx, spec, report)
}

type Options struct {
	PoolSize  int
	SessionID string
	Observer  Observer
	Logger    hclog.Logger
}

type eventKind int

const (
	eventStarted eventKind = iota
	eventProgress
	eventDone
)

type event struct {
	kind     eventKind
	index    int
	progress model.JobProgress
	result   model.JobResult
}

// Run executes every job on a pool of at most opts.PoolSize goroutines and
// blocks until each submitted job has a result.
//
// Jobs are handed out in slice order. Results are recorded in completion
// order by a single coordinator, which is also the only caller of the
// observer. Cancelling ctx stops handing out pending jobs; jobs already
// running are given a context that ignores the cancellation so external
// tools are never killed halfway through an output file. Pending jobs that
// were never handed out are listed in Summary.Cancelled.
func Run(ctx context.Context, specs []model.JobSpec, exec Executor, opts Options) (Summary, error) {
	if opts.PoolSize < 1 {
		return Summary{}, fmt.Errorf("%w (got %d)", ErrInvalidPoolSize, opts.PoolSize)
	}
	if exec == nil {
		return Summary{}, errors.New("executor is required")
	}
	obs := opts.Observer
	if obs == nil {
		obs = NopObserver{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	startedAt := time.Now()
	sum := Summary{
		SessionID: sessionID,
		PoolSize:  opts.PoolSize,
		Total:     len(specs),
		Succeeded: []model.JobResult{},
		Failed:    []model.JobResult{},
		Results:   make([]model.JobResult, 0, len(specs)),
		StartedAt: startedAt,
	}

	jobs := make([]model.Job, len(specs))
	for i, spec := range specs {
		jobs[i] = model.Job{Index: i, Slot: SlotLabel(i, opts.PoolSize), Spec: spec}
		if err := model.TransitionJobStatus(&jobs[i], model.StatusPending, ""); err != nil {
			return Summary{}, err
		}
	}

	workers := min(opts.PoolSize, len(specs))
	obs.OnSessionStart(SessionInfo{ID: sessionID, Total: len(specs), PoolSize: opts.PoolSize, Workers: workers})
	logger.Debug("session opened", "session", sessionID, "jobs", len(specs), "pool_size", opts.PoolSize)

	if len(specs) == 0 {
		sum.FinishedAt = startedAt
		obs.OnSessionEnd(sum)
		return sum, nil
	}

	jobCh := make(chan model.Job)
	events := make(chan event, workers*8)
	fed := make(chan int, 1)
	runCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	workerFn := func() {
		defer wg.Done()
		for job := range jobCh {
			events <- event{kind: eventStarted, index: job.Index}
			index := job.Index
			// report calls that outlive Execute are dropped; events may
			// already be closed by then.
			var mu sync.Mutex
			finished := false
			report := func(p model.JobProgress) {
				mu.Lock()
				defer mu.Unlock()
				if finished {
					return
				}
				select {
				case events <- event{kind: eventProgress, index: index, progress: p}:
				default:
				}
			}
			res := safeExecute(runCtx, exec, job, report)
			mu.Lock()
			finished = true
			mu.Unlock()
			events <- event{kind: eventDone, index: job.Index, result: res}
		}
	}
	for w := 1; w <= workers; w++ {
		wg.Add(1)
		go workerFn()
	}

	go func() {
		defer close(jobCh)
		n := 0
		defer func() { fed <- n }()
		for _, job := range jobs {
			if ctx.Err() != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case jobCh <- job:
				n++
			}
		}
	}()

	go func() {
		wg.Wait()
		close(events)
	}()

	completed := 0
	active := 0
	lastRecorded := time.Time{}
	for ev := range events {
		job := &jobs[ev.index]
		switch ev.kind {
		case eventStarted:
			if err := model.TransitionJobStatus(job, model.StatusRunning, ""); err != nil {
				logger.Error("job state", "error", err)
			}
			active++
			if active > sum.MaxActive {
				sum.MaxActive = active
			}
			logger.Debug("job started", "slot", job.Slot, "file", job.Spec.Filename())
			obs.OnJobStart(*job)
		case eventProgress:
			if job.Status != model.StatusRunning {
				continue
			}
			obs.OnJobProgress(*job, ev.progress)
		case eventDone:
			active--
			completed++
			res := ev.result
			to := model.StatusFailed
			if res.Succeeded {
				to = model.StatusSucceeded
			}
			if err := model.TransitionJobStatus(job, to, res.Err); err != nil {
				logger.Error("job state", "error", err)
			}
			sum.Results = append(sum.Results, res)
			if res.Succeeded {
				sum.Succeeded = append(sum.Succeeded, res)
			} else {
				sum.Failed = append(sum.Failed, res)
			}
			lastRecorded = time.Now()
			if res.Succeeded {
				logger.Debug("job succeeded", "slot", res.Slot, "file", res.Filename, "elapsed", res.Elapsed)
			} else {
				logger.Warn("job failed", "slot", res.Slot, "file", res.Filename, "error", res.Err)
			}
			obs.OnJobDone(completed, len(specs), res)
		}
	}

	sum.Submitted = <-fed
	for _, job := range jobs {
		if job.Status == model.StatusPending {
			sum.Cancelled = append(sum.Cancelled, job.Spec)
		}
	}
	if lastRecorded.IsZero() {
		lastRecorded = time.Now()
	}
	sum.FinishedAt = lastRecorded
	sum.Elapsed = lastRecorded.Sub(startedAt)

	logger.Debug("session closed", "session", sessionID,
		"succeeded", len(sum.Succeeded), "failed", len(sum.Failed), "cancelled", len(sum.Cancelled), "elapsed", sum.Elapsed)
	obs.OnSessionEnd(sum)
	return sum, nil
}

func safeExecute(ctx context.Context, exec Executor, job model.Job, report func(model.JobProgress)) (res model.JobResult) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = model.JobResult{
				Succeeded: false,
				Elapsed:   time.Since(started),
				Err:       fmt.Sprintf("job fault: %v", r),
			}
		}
		if res.Filename == "" {
			res.Filename = job.Spec.Filename()
		}
		if res.InputPath == "" {
			res.InputPath = job.Spec.InputPath
		}
		if res.Format == "" {
			res.Format = job.Spec.Format
		}
		if res.Elapsed <= 0 {
			res.Elapsed = time.Since(started)
		}
		res.Slot = job.Slot
	}()
	return exec.Execute(ctx, job.Spec, report)
}
