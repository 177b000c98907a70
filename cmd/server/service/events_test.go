package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/duette-app/duette/cmd/server/models"
	"github.com/duette-app/duette/common/logger"
	"github.com/duette-app/duette/common/objectkey"
	"github.com/duette-app/duette/common/objectstore"
	"github.com/duette-app/duette/common/queue"
	"github.com/duette-app/duette/common/redis"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHub struct {
	mu   sync.Mutex
	sent [][]byte
}

func (h *fakeHub) Broadcast(data []byte) {
	h.mu.Lock()
	h.sent = append(h.sent, data)
	h.mu.Unlock()
}

func (h *fakeHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sent)
}

type failingHandler struct{}

func (failingHandler) Name() string { return "failing" }
func (failingHandler) Handle(ctx context.Context, e models.CatalogEvent) error {
	return errors.New("boom")
}

func TestJanitorDeletesDuetteObjects(t *testing.T) {
	store := objectstore.NewMemoryStore()
	ctx := context.Background()
	videoID, d1, d2 := uuid.New(), uuid.New(), uuid.New()

	for _, key := range []string{
		objectkey.Video(videoID.String()),
		objectkey.Duette(videoID.String(), d1.String()),
	} {
		_, err := store.Put(ctx, key, []byte("x"), "")
		require.NoError(t, err)
	}

	j := NewJanitor(store, logger.Discard())
	err := j.Handle(ctx, models.CatalogEvent{
		Type:      models.EventVideoDeleted,
		VideoID:   videoID,
		DuetteIDs: []uuid.UUID{d1, d2}, // d2 never uploaded
	})
	require.NoError(t, err)

	// the reference video object is left for the client workflow
	assert.Equal(t, []string{objectkey.Video(videoID.String())}, store.Keys())

	// other event types are ignored
	require.NoError(t, j.Handle(ctx, models.CatalogEvent{Type: models.EventVideoCreated, VideoID: videoID}))
	assert.Len(t, store.Keys(), 1)
}

func TestDispatcherRunsAllHandlers(t *testing.T) {
	hub := &fakeHub{}
	d := NewDispatcher(logger.Discard(), failingHandler{}, NewNotifier(nil, hub, logger.Discard()))

	data, _ := json.Marshal(models.CatalogEvent{Type: models.EventVideoCreated, VideoID: uuid.New()})
	err := d.HandleMessage(context.Background(), "k", data)

	assert.ErrorContains(t, err, "failing: boom")
	assert.Equal(t, 1, hub.count())

	assert.Error(t, d.HandleMessage(context.Background(), "k", []byte("{")))
}

func TestDispatcherSubscribesToQueue(t *testing.T) {
	q := queue.NewMemoryQueue(10, logger.Discard())
	defer q.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := &fakeHub{}
	require.NoError(t, NewDispatcher(logger.Discard(), NewNotifier(nil, hub, logger.Discard())).Start(ctx, q))

	data, _ := json.Marshal(models.CatalogEvent{Type: models.EventVideoCreated, VideoID: uuid.New()})
	require.NoError(t, q.Publish(ctx, TopicCatalogEvents, "k", data))

	assert.Eventually(t, func() bool { return hub.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestNotifierPublishesToRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := redis.Connect(context.Background(), mr.Addr(), "", 0, logger.Discard())
	require.NoError(t, err)
	defer client.Close()

	sub := client.GetUnderlying().Subscribe(context.Background(), EventsChannel)
	defer sub.Close()
	_, err = sub.Receive(context.Background())
	require.NoError(t, err)

	hub := &fakeHub{}
	n := NewNotifier(client, hub, logger.Discard())
	videoID := uuid.New()
	require.NoError(t, n.Handle(context.Background(), models.CatalogEvent{Type: models.EventVideoDeleted, VideoID: videoID}))

	select {
	case msg := <-sub.Channel():
		var e models.CatalogEvent
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &e))
		assert.Equal(t, videoID, e.VideoID)
	case <-time.After(2 * time.Second):
		t.Fatal("no redis message")
	}
	assert.Zero(t, hub.count(), "hub is fed by the relay when redis is on")
}
