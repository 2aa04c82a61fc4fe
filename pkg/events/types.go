// Package events delivers task-store changes to streaming subscribers.
// A file watcher and in-process change hooks both feed the hub, which
// recomputes the active task view and broadcasts diffs.
package events

import (
	"time"

	"github.com/fieldgate/taskgen/pkg/models"
)

// Stream message types, written as the SSE event name.
const (
	TypeConnected    = "connected"
	TypeInit         = "init"
	TypeUpdate       = "update"
	TypeNotification = "notification"
	TypeHeartbeat    = "heartbeat"
)

// InitTaskLimit bounds how many active tasks init and update snapshots
// carry.
const InitTaskLimit = 50

// Message is one stream frame: the SSE event name plus its JSON payload.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// ConnectedPayload acknowledges a new subscription.
type ConnectedPayload struct {
	ClientID    string    `json:"clientId"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// SnapshotPayload carries the current generated-task view; used by both
// init and update messages. Delta is set only on updates.
type SnapshotPayload struct {
	Tasks       []models.TaskCard `json:"tasks"`
	ActiveTotal int               `json:"count"`
	Delta       int               `json:"delta,omitempty"`
	Truncated   bool              `json:"truncated,omitempty"`
}

// NotificationPayload announces newly generated tasks.
type NotificationPayload struct {
	Message  string `json:"message"`
	NewTasks int    `json:"newTasks"`
}

// HeartbeatPayload keeps idle connections alive.
type HeartbeatPayload struct {
	TS time.Time `json:"ts"`
}
