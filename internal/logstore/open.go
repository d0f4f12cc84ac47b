package logstore

import (
	"context"

	"gazette/internal/core"
	"gazette/internal/logger"
)

// Open picks the log store's backend once, per §4.9: a remote store if
// reachable at startup, otherwise a local file store. There is no runtime
// failover between the two for the life of the process.
func Open(redisAddr, localPath string, maxLogs int) (Store, error) {
	if maxLogs <= 0 {
		maxLogs = 1000
	}

	if redisAddr != "" {
		store, err := dialRedis(redisAddr, maxLogs)
		if err == nil {
			logger.Info("logstore: using remote backend", "addr", redisAddr)
			return store, nil
		}
		logger.Warn("logstore: remote backend unreachable, falling back to local file store", "error", err.Error())
	}

	return openLocal(localPath, maxLogs)
}

// Sink adapts a Store to the job runner's EventSink interface (a bare
// Record(core.LogEntry) method, satisfied structurally with no import of
// the jobs package).
type Sink struct {
	Store Store
}

func (s Sink) Record(entry core.LogEntry) {
	if err := s.Store.Append(context.Background(), entry); err != nil {
		logger.Warn("logstore: failed to record job event", "error", err.Error())
	}
}
