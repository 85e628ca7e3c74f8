// Package broadcast defines the observer broadcast port (interface).
package broadcast

import "context"

// Broadcaster pushes typed events to connected observers (dashboards).
// This is a convenience stream only: the authoritative surface remains
// the pipeline status record polled through the store.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}
