package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

type CheckFeedTask struct {
	Task
	cycle CycleRunner
}

func NewCheckFeedTask(cycle CycleRunner, trigger string) *CheckFeedTask {
	return &CheckFeedTask{
		Task:  NewTask(TaskTypeCheckFeed, trigger),
		cycle: cycle,
	}
}

func (t *CheckFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	res, err := t.cycle.Run(ctx)
	if err != nil {
		return fmt.Errorf("check cycle %s ended in %s: %w", res.ID, res.State, err)
	}

	slog.Info("Task completed",
		"type", "CheckFeed",
		"trigger", t.Trigger,
		"cycle_id", res.ID,
		"duration", t.GetDuration(),
		"state", res.State,
		"item_id", res.ItemID,
		"strategy", res.Strategy,
		"chunks", res.Chunks)

	return nil
}
