package cache

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RateLimitKey is the request counter of a worker for the window starting
// at window.
func RateLimitKey(workerID uuid.UUID, window time.Time) string {
	return fmt.Sprintf("ratelimit:%s:%d", workerID, window.Unix())
}

// PresenceSetKey is the sorted set of recently seen workers in a workspace.
func PresenceSetKey(workspaceID uuid.UUID) string {
	return fmt.Sprintf("presence:%s", workspaceID)
}

func LastSeenKey(workspaceID, workerID uuid.UUID) string {
	return fmt.Sprintf("presence:%s:lastseen:%s", workspaceID, workerID)
}
