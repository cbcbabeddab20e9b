package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"newsbrief/internal/config"
	"newsbrief/internal/pipeline"
	"newsbrief/internal/queue"
)

// Dequeuer blocks until the next task is available.
type Dequeuer interface {
	Dequeue(ctx context.Context) (queue.Task, error)
}

// Runner executes orchestrator operations. *pipeline.Orchestrator satisfies it.
type Runner interface {
	DiscoverAll(ctx context.Context) pipeline.DiscoveryReport
	ProcessOne(ctx context.Context, rawURL string, sum pipeline.Summarizer) pipeline.Outcome
	RetryFailed(ctx context.Context, sum pipeline.Summarizer) (pipeline.RetryReport, error)
	Cleanup(ctx context.Context) (int, error)
}

// EngineFactory builds a fresh summarization engine for a slot.
type EngineFactory func() pipeline.Summarizer

// Status of a finished task.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Result is reported for every dequeued task.
type Result struct {
	TaskID   string
	Name     string
	Status   Status
	Message  string
	Duration time.Duration
}

// Pool runs Concurrency worker slots against one queue. Each slot owns an
// engine and replaces it after MaxTasksPerWorker tasks.
type Pool struct {
	queue     Dequeuer
	runner    Runner
	newEngine EngineFactory
	logger    *zap.Logger

	concurrency int
	maxTasks    int
	timeLimit   time.Duration

	// onResult is called after every task when set.
	onResult func(Result)
}

func NewPool(q Dequeuer, runner Runner, newEngine EngineFactory, cfg config.WorkerConfig, logger *zap.Logger) *Pool {
	p := &Pool{
		queue:       q,
		runner:      runner,
		newEngine:   newEngine,
		logger:      logger,
		concurrency: cfg.Concurrency,
		maxTasks:    cfg.MaxTasksPerWorker,
		timeLimit:   cfg.TaskTimeLimit,
	}
	if p.concurrency <= 0 {
		p.concurrency = 1
	}
	return p
}

// OnResult registers a callback invoked after each task.
func (p *Pool) OnResult(fn func(Result)) {
	p.onResult = fn
}

// Start runs the slots and blocks until ctx is cancelled and every slot
// has returned.
func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("Worker pool started. Waiting for jobs...", zap.Int("concurrency", p.concurrency))

	var wg sync.WaitGroup
	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			p.runSlot(ctx, slot)
		}(i)
	}
	wg.Wait()

	p.logger.Info("Worker pool shut down")
}

func (p *Pool) runSlot(ctx context.Context, slot int) {
	logger := p.logger.With(zap.Int("slot", slot))

	var (
		engine  pipeline.Summarizer
		handled int
	)
	for {
		// Wait for job (blocking call to Redis)
		task, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("Worker slot shutting down")
				return
			}
			logger.Error("Queue error", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		if engine == nil || (p.maxTasks > 0 && handled >= p.maxTasks) {
			if engine != nil {
				logger.Info("Recycling summarization engine", zap.Int("tasks", handled))
			}
			engine = p.newEngine()
			handled = 0
		}

		res := p.processJob(ctx, logger, engine, task)
		handled++
		if res.Status == StatusFailed && res.Message == errTimeLimit {
			// the abandoned task may still hold the engine
			engine = nil
		}
		if p.onResult != nil {
			p.onResult(res)
		}
	}
}

const errTimeLimit = "task exceeded its time limit"

func (p *Pool) processJob(ctx context.Context, slotLogger *zap.Logger, engine pipeline.Summarizer, task queue.Task) Result {
	logger := slotLogger.With(zap.String("job_id", task.ID.String()), zap.String("task", task.Name))
	logger.Info("Processing started")
	start := time.Now()

	tctx := ctx
	cancel := func() {}
	if p.timeLimit > 0 {
		tctx, cancel = context.WithTimeout(ctx, p.timeLimit)
	}
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		done <- p.dispatch(tctx, logger, engine, task)
	}()

	var res Result
	select {
	case res = <-done:
	case <-tctx.Done():
		if ctx.Err() != nil {
			res = p.failJob(logger, "worker shut down before the task finished")
		} else {
			res = p.failJob(logger, errTimeLimit)
		}
	}
	res.TaskID = task.ID.String()
	res.Name = task.Name
	res.Duration = time.Since(start)

	logger.Info("Processing finished",
		zap.String("status", string(res.Status)),
		zap.String("result", res.Message),
		zap.Duration("took", res.Duration))
	return res
}

// dispatch maps a task name onto an orchestrator operation.
func (p *Pool) dispatch(ctx context.Context, logger *zap.Logger, engine pipeline.Summarizer, task queue.Task) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = p.failJob(logger, fmt.Sprintf("task panicked: %v", r))
		}
	}()

	switch task.Name {
	case queue.TaskDiscoverSites:
		report := p.runner.DiscoverAll(ctx)
		return Result{
			Status:  StatusSucceeded,
			Message: fmt.Sprintf("Discovered %d articles, queued %d for processing", report.Discovered, report.Enqueued),
		}

	case queue.TaskProcessURL:
		url := task.Args[queue.ArgURL]
		if url == "" {
			return p.failJob(logger, "missing url argument")
		}
		out := p.runner.ProcessOne(ctx, url, engine)
		status := StatusSucceeded
		if out.Kind == pipeline.KindError || out.Kind == pipeline.KindFailed {
			status = StatusFailed
		}
		return Result{Status: status, Message: out.Message}

	case queue.TaskRetryFailed:
		report, err := p.runner.RetryFailed(ctx, engine)
		if err != nil {
			return p.failJob(logger, err.Error())
		}
		return Result{Status: StatusSucceeded, Message: report.String()}

	case queue.TaskCleanupFailed:
		n, err := p.runner.Cleanup(ctx)
		if err != nil {
			return p.failJob(logger, err.Error())
		}
		return Result{Status: StatusSucceeded, Message: fmt.Sprintf("Cleaned up %d old articles", n)}

	default:
		return p.failJob(logger, fmt.Sprintf("unknown task %q", task.Name))
	}
}

func (p *Pool) failJob(logger *zap.Logger, msg string) Result {
	logger.Error("Job failed", zap.String("reason", msg))
	return Result{Status: StatusFailed, Message: msg}
}
