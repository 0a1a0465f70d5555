package tasks

import (
	"context"
	"fmt"
	"slices"
	"time"
)

// newBackendHealthTask checks that the inference backend answers and still
// serves the configured chat model.
func newBackendHealthTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "backend_health")

	return func(ctx context.Context) error {
		startTime := time.Now()

		names, err := deps.Client.ListModels(ctx)
		duration := time.Since(startTime)
		if err != nil {
			log.ErrorContext(ctx, "Inference backend unreachable", "error", err, "duration", duration)
			return fmt.Errorf("backend health check failed: %w", err)
		}

		model := deps.Config.Model.Name
		if !slices.Contains(names, model) {
			log.WarnContext(ctx, "Configured model is not available on the backend", "model", model, "available", len(names))
			return fmt.Errorf("model %q not available on backend", model)
		}

		log.InfoContext(ctx, "Inference backend healthy", "model", model, "available", len(names), "duration", duration)
		return nil
	}
}
