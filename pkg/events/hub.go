package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fieldgate/taskgen/pkg/models"
	"github.com/fieldgate/taskgen/pkg/store"
)

// subscriberQueueSize bounds each subscriber's outbound queue. A
// subscriber whose queue is full when a message is produced is dropped;
// broadcast never blocks on a slow consumer.
const subscriberQueueSize = 16

// HeartbeatInterval is how often idle connections get a keepalive frame.
const HeartbeatInterval = 30 * time.Second

// Subscriber is one attached stream client.
type Subscriber struct {
	ID string
	Ch chan Message
}

// Hub fans task-store changes out to subscribers. Every refresh
// recomputes the generated-task view from the store and compares its
// size against the last broadcast count.
type Hub struct {
	tasks *store.Store

	mu          sync.Mutex
	subscribers map[string]*Subscriber
	lastCount   int

	cancel context.CancelFunc
	done   chan struct{}

	now func() time.Time
}

// NewHub creates a hub over the given task store.
func NewHub(tasks *store.Store) *Hub {
	return &Hub{
		tasks:       tasks,
		subscribers: make(map[string]*Subscriber),
		now:         time.Now,
	}
}

// Start seeds the broadcast baseline and launches the heartbeat loop.
func (h *Hub) Start(ctx context.Context) {
	if h.cancel != nil {
		return
	}
	if snapshot, err := h.generatedSnapshot(); err != nil {
		slog.Warn("Initial task snapshot failed", "error", err)
	} else {
		h.mu.Lock()
		h.lastCount = snapshot.ActiveTotal
		h.mu.Unlock()
	}
	ctx, h.cancel = context.WithCancel(ctx)
	h.done = make(chan struct{})
	go h.heartbeatLoop(ctx)
	slog.Info("Event hub started", "heartbeat_interval", HeartbeatInterval)
}

// Stop ends the heartbeat loop and closes all subscriber channels.
func (h *Hub) Stop() {
	if h.cancel == nil {
		return
	}
	h.cancel()
	<-h.done
	h.cancel = nil

	h.mu.Lock()
	for id, sub := range h.subscribers {
		close(sub.Ch)
		delete(h.subscribers, id)
	}
	h.mu.Unlock()
	slog.Info("Event hub stopped")
}

// Subscribe attaches a new client and queues its connected + init
// frames. The caller must drain sub.Ch until Unsubscribe.
func (h *Hub) Subscribe() (*Subscriber, error) {
	snapshot, err := h.generatedSnapshot()
	if err != nil {
		return nil, err
	}

	sub := &Subscriber{
		ID: uuid.NewString(),
		Ch: make(chan Message, subscriberQueueSize),
	}
	sub.Ch <- Message{Type: TypeConnected, Payload: ConnectedPayload{
		ClientID:    sub.ID,
		ConnectedAt: h.now().UTC(),
	}}
	sub.Ch <- Message{Type: TypeInit, Payload: snapshot}

	h.mu.Lock()
	h.subscribers[sub.ID] = sub
	count := len(h.subscribers)
	h.mu.Unlock()

	slog.Debug("Stream subscriber attached", "client_id", sub.ID, "subscribers", count)
	return sub, nil
}

// Unsubscribe detaches a client and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	if _, ok := h.subscribers[sub.ID]; ok {
		delete(h.subscribers, sub.ID)
		close(sub.Ch)
	}
	count := len(h.subscribers)
	h.mu.Unlock()
	slog.Debug("Stream subscriber detached", "client_id", sub.ID, "subscribers", count)
}

// SubscriberCount returns the number of attached clients.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Refresh recomputes the generated-task view and, when its size changed
// since the last broadcast, emits an update to every subscriber plus a
// notification when the delta is positive. Wired to both the file
// watcher and the store's in-process change hook.
func (h *Hub) Refresh() {
	snapshot, err := h.generatedSnapshot()
	if err != nil {
		slog.Warn("Task snapshot refresh failed", "error", err)
		return
	}

	h.mu.Lock()
	delta := snapshot.ActiveTotal - h.lastCount
	h.lastCount = snapshot.ActiveTotal
	h.mu.Unlock()
	if delta == 0 {
		return
	}

	snapshot.Delta = delta
	h.broadcast(Message{Type: TypeUpdate, Payload: snapshot})
	if delta > 0 {
		h.broadcast(Message{Type: TypeNotification, Payload: NotificationPayload{
			Message:  fmt.Sprintf("%d new tasks generated", delta),
			NewTasks: delta,
		}})
	}
}

// generatedSnapshot builds the current generated-task view, truncated
// to the snapshot limit.
func (h *Hub) generatedSnapshot() (SnapshotPayload, error) {
	tasks, err := h.tasks.Load(models.TaskFilter{Status: models.StatusGenerated}, 0)
	if err != nil {
		return SnapshotPayload{}, err
	}
	snapshot := SnapshotPayload{Tasks: tasks, ActiveTotal: len(tasks)}
	if len(snapshot.Tasks) > InitTaskLimit {
		snapshot.Tasks = snapshot.Tasks[:InitTaskLimit]
		snapshot.Truncated = true
	}
	return snapshot, nil
}

// broadcast queues a message to every subscriber; any subscriber whose
// queue is full is dropped and its channel closed.
func (h *Hub) broadcast(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subscribers {
		select {
		case sub.Ch <- msg:
		default:
			delete(h.subscribers, id)
			close(sub.Ch)
			slog.Warn("Dropping slow stream subscriber", "client_id", id, "type", msg.Type)
		}
	}
}

func (h *Hub) heartbeatLoop(ctx context.Context) {
	defer close(h.done)
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.broadcast(Message{Type: TypeHeartbeat, Payload: HeartbeatPayload{
				TS: h.now().UTC(),
			}})
		}
	}
}
