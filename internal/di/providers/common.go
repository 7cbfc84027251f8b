package providers

import "time"

const (
	// shutdownTimeout is the maximum time to wait for graceful shutdown of services.
	shutdownTimeout = 30 * time.Second

	// reindexTimeout bounds a full rebuild of the moderation index.
	reindexTimeout = 10 * time.Minute

	// cleanupInterval is how often expired sessions are pruned and Badger is compacted.
	cleanupInterval = 1 * time.Hour

	// workflowIdle is how long an unused workflow stays in memory.
	workflowIdle = 30 * time.Minute
)
