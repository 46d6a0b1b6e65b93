package runtime

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
)

func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// Task is a long-running component (HTTP server, publisher, consumer) that
// returns once ctx is cancelled.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// RunTasks starts every task and waits for all of them. The first task to fail
// cancels the others; its error is returned.
func RunTasks(ctx context.Context, logger *slog.Logger, tasks ...Task) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		if task.Run == nil {
			continue
		}
		g.Go(func() error {
			logger.Info("task starting", "task", task.Name)
			err := task.Run(ctx)
			if err != nil {
				logger.Error("task failed", "task", task.Name, "err", err)
				return err
			}
			logger.Info("task stopped", "task", task.Name)
			return nil
		})
	}
	return g.Wait()
}
