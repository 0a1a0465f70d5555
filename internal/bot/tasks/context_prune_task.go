package tasks

import (
	"context"
	"time"
)

// cooldownRetention is how many cooldown windows a record is kept for.
const cooldownRetention = 2

// newContextPruneTask drops conversation contexts nobody has touched for
// context.idle_ttl, and cooldown records older than twice the cooldown window.
// Records hold platform message timestamps while the cutoff uses the local
// clock; the extra window absorbs skew between the two. An expired record and
// a missing one gate identically.
func newContextPruneTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "context_prune")

	return func(ctx context.Context) error {
		startTime := time.Now()
		now := deps.now()

		var contexts int
		if ttl := deps.Config.Context.IdleTTL; ttl > 0 {
			contexts = deps.State.History.PruneIdle(now.Add(-ttl))
		}
		cooldowns := deps.State.Cooldowns.PruneBefore(now.Add(-cooldownRetention * deps.Config.Gate.Cooldown))

		log.InfoContext(ctx, "Pruned conversation state",
			"contexts_removed", contexts,
			"contexts_remaining", deps.State.History.Len(),
			"cooldowns_removed", cooldowns,
			"duration", time.Since(startTime))
		return nil
	}
}
