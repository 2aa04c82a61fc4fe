package events

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldgate/taskgen/pkg/models"
	"github.com/fieldgate/taskgen/pkg/store"
)

func newHubWithStore(t *testing.T) (*Hub, *store.Store) {
	t.Helper()
	tasks, err := store.NewStore(t.TempDir())
	require.NoError(t, err)
	return NewHub(tasks), tasks
}

func saveTask(t *testing.T, tasks *store.Store, title string) models.TaskCard {
	t.Helper()
	task, err := models.NewTaskCard(time.Now().UTC(), models.TaskTypeErrorSpike,
		models.SeverityHigh, title, "description",
		models.Evidence{Summary: "evidence"},
		models.SuggestedFix{Approach: "investigate_and_fix"},
		[]string{"resolved"}, 0.8, "error_spike")
	require.NoError(t, err)
	task.ID = fmt.Sprintf("%s-%s", task.ID, title)
	require.NoError(t, tasks.Save(task))
	return task
}

// recv pulls the next message or fails the test after a timeout.
func recv(t *testing.T, ch chan Message) Message {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "channel closed")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestSubscribeQueuesConnectedThenInit(t *testing.T) {
	h, tasks := newHubWithStore(t)
	saveTask(t, tasks, "existing task")

	sub, err := h.Subscribe()
	require.NoError(t, err)
	defer h.Unsubscribe(sub)

	first := recv(t, sub.Ch)
	assert.Equal(t, TypeConnected, first.Type)
	connected, ok := first.Payload.(ConnectedPayload)
	require.True(t, ok)
	assert.Equal(t, sub.ID, connected.ClientID)

	second := recv(t, sub.Ch)
	assert.Equal(t, TypeInit, second.Type)
	snapshot, ok := second.Payload.(SnapshotPayload)
	require.True(t, ok)
	assert.Equal(t, 1, snapshot.ActiveTotal)
	assert.Len(t, snapshot.Tasks, 1)
	assert.False(t, snapshot.Truncated)
}

func TestRefreshBroadcastsUpdateAndNotification(t *testing.T) {
	h, tasks := newHubWithStore(t)
	h.lastCount = 0

	sub, err := h.Subscribe()
	require.NoError(t, err)
	defer h.Unsubscribe(sub)
	recv(t, sub.Ch) // connected
	recv(t, sub.Ch) // init

	saveTask(t, tasks, "finding one")
	saveTask(t, tasks, "finding two")
	h.Refresh()

	update := recv(t, sub.Ch)
	assert.Equal(t, TypeUpdate, update.Type)
	snapshot, ok := update.Payload.(SnapshotPayload)
	require.True(t, ok)
	assert.Equal(t, 2, snapshot.ActiveTotal)
	assert.Equal(t, 2, snapshot.Delta)

	note := recv(t, sub.Ch)
	assert.Equal(t, TypeNotification, note.Type)
	payload, ok := note.Payload.(NotificationPayload)
	require.True(t, ok)
	assert.Equal(t, "2 new tasks generated", payload.Message)
	assert.Equal(t, 2, payload.NewTasks)
}

func TestRefreshQuietWhenCountUnchanged(t *testing.T) {
	h, tasks := newHubWithStore(t)
	saveTask(t, tasks, "steady state")
	h.lastCount = 1

	sub, err := h.Subscribe()
	require.NoError(t, err)
	defer h.Unsubscribe(sub)
	recv(t, sub.Ch)
	recv(t, sub.Ch)

	h.Refresh()

	select {
	case msg := <-sub.Ch:
		t.Fatalf("unexpected message: %v", msg.Type)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRefreshNegativeDeltaSkipsNotification(t *testing.T) {
	h, tasks := newHubWithStore(t)
	task := saveTask(t, tasks, "soon approved")
	h.lastCount = 1

	sub, err := h.Subscribe()
	require.NoError(t, err)
	defer h.Unsubscribe(sub)
	recv(t, sub.Ch)
	recv(t, sub.Ch)

	// Approval removes the task from the generated view.
	_, err = tasks.Approve(task.ID)
	require.NoError(t, err)
	h.Refresh()

	update := recv(t, sub.Ch)
	assert.Equal(t, TypeUpdate, update.Type)
	snapshot, ok := update.Payload.(SnapshotPayload)
	require.True(t, ok)
	assert.Equal(t, -1, snapshot.Delta)

	select {
	case msg := <-sub.Ch:
		t.Fatalf("unexpected message after update: %v", msg.Type)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBroadcastDropsSlowSubscriber(t *testing.T) {
	h, tasks := newHubWithStore(t)
	h.lastCount = 0

	sub, err := h.Subscribe()
	require.NoError(t, err)
	// Never drained: connected + init already occupy the queue; fill the rest.
	for i := 0; i < subscriberQueueSize-2; i++ {
		sub.Ch <- Message{Type: TypeHeartbeat}
	}

	saveTask(t, tasks, "overflow trigger")
	h.Refresh()

	assert.Zero(t, h.SubscriberCount())
	// The dropped subscriber's channel is closed once drained.
	for range sub.Ch {
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	h, _ := newHubWithStore(t)

	sub, err := h.Subscribe()
	require.NoError(t, err)
	assert.Equal(t, 1, h.SubscriberCount())

	h.Unsubscribe(sub)
	h.Unsubscribe(sub)
	assert.Zero(t, h.SubscriberCount())
}
