// Package broadcast defines the port for pushing memory events to connected clients.
package broadcast

import "context"

// Broadcaster sends real-time events to the clients of one workspace.
type Broadcaster interface {
	// BroadcastEvent sends a typed event to every client of workspaceID.
	BroadcastEvent(ctx context.Context, workspaceID, eventType string, payload any)
}
