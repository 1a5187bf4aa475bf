package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const taskTimeout = 10 * time.Minute

// Scheduler fires a check cycle on a cron schedule and once at start-up.
// A single worker drains the queue so scheduled cycles never overlap; a
// trigger that arrives while the queue is full is dropped.
type Scheduler struct {
	cycle     CycleRunner
	cron      *cron.Cron
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	taskQueue chan TaskInterface
}

func NewScheduler(cycle CycleRunner, schedule string, location *time.Location) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		cycle:     cycle,
		cron:      cron.New(cron.WithLocation(location)),
		ctx:       ctx,
		cancel:    cancel,
		taskQueue: make(chan TaskInterface, 1),
	}

	if _, err := s.cron.AddFunc(schedule, func() { s.enqueueCheck("schedule") }); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.worker()

	s.enqueueCheck("startup")
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) enqueueCheck(trigger string) {
	if err := s.EnqueueTask(NewCheckFeedTask(s.cycle, trigger)); err != nil {
		slog.Warn("Failed to enqueue CheckFeedTask", "trigger", trigger, "error", err)
	}
}

func (s *Scheduler) worker() {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(task)

		case <-s.ctx.Done():
			return
		}
	}
}

// executeTask runs a task once. Failed cycles are not retried here; the item
// stays unmarked and the next trigger picks it up again.
func (s *Scheduler) executeTask(task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	if err := task.Execute(taskCtx); err != nil {
		slog.Error("Worker task execution failed",
			"type", string(task.GetType()),
			"id", task.GetID(),
			"trigger", task.GetTrigger(),
			"duration", task.GetDuration(),
			"error", err)
	}
}
