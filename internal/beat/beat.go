package beat

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"newsbrief/internal/config"
	"newsbrief/internal/pipeline"
	"newsbrief/internal/queue"
)

// enqueueTimeout bounds a single LPUSH from a cron callback.
const enqueueTimeout = 10 * time.Second

// Entry describes one scheduled trigger.
type Entry struct {
	Task string    `json:"task"`
	Spec string    `json:"spec"`
	Next time.Time `json:"next"`
}

// Beat enqueues the periodic tasks on their cron schedules.
type Beat struct {
	cron   *cron.Cron
	queue  pipeline.Enqueuer
	logger *zap.Logger
	specs  map[cron.EntryID]Entry
}

// New registers every non-empty spec in sched. Specs use the standard five
// field syntax or descriptors such as "@every 1h" and "@daily".
func New(q pipeline.Enqueuer, sched config.ScheduleConfig, logger *zap.Logger) (*Beat, error) {
	b := &Beat{
		cron:   cron.New(cron.WithLogger(cronLogger{logger.Sugar()})),
		queue:  q,
		logger: logger,
		specs:  map[cron.EntryID]Entry{},
	}

	for _, e := range []struct{ task, spec string }{
		{queue.TaskDiscoverSites, sched.Discover},
		{queue.TaskRetryFailed, sched.Retry},
		{queue.TaskCleanupFailed, sched.Cleanup},
	} {
		if e.spec == "" {
			continue
		}
		task := e.task
		id, err := b.cron.AddFunc(e.spec, func() { b.fire(task) })
		if err != nil {
			return nil, fmt.Errorf("failed to add cron job %s: %w", task, err)
		}
		b.specs[id] = Entry{Task: task, Spec: e.spec}
	}
	return b, nil
}

func (b *Beat) fire(task string) {
	ctx, cancel := context.WithTimeout(context.Background(), enqueueTimeout)
	defer cancel()

	h, err := b.queue.Enqueue(ctx, task, nil)
	if err != nil {
		b.logger.Error("Cron enqueue failed", zap.String("task", task), zap.Error(err))
		return
	}
	b.logger.Info("Cron triggered", zap.String("task", task), zap.String("job_id", h.ID.String()))
}

func (b *Beat) Start() {
	b.cron.Start()
	for _, e := range b.Entries() {
		b.logger.Info("Cron job scheduled", zap.String("task", e.Task), zap.String("spec", e.Spec))
	}
}

// Stop halts the schedule and waits for running callbacks.
func (b *Beat) Stop() {
	<-b.cron.Stop().Done()
}

// Entries lists the registered triggers with their next run time.
func (b *Beat) Entries() []Entry {
	var out []Entry
	for _, ce := range b.cron.Entries() {
		e, ok := b.specs[ce.ID]
		if !ok {
			continue
		}
		e.Next = ce.Next
		out = append(out, e)
	}
	return out
}

// cronLogger routes cron's own logging into zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
