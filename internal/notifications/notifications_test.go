package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"commentservice/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	name   string
	err    error
	events []Event
	closed bool
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Publish(ctx context.Context, evt Event) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("no deadline")
	}
	s.events = append(s.events, evt)
	return s.err
}

func (s *recordingSink) Close() error {
	s.closed = true
	return nil
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error { return nil }

func sampleComment() *models.Comment {
	return &models.Comment{ID: 9, PostID: "p1", AuthorID: "u1", AuthorName: "alice", Content: "hi", Status: models.CommentStatusVisible}
}

func TestNewEvent(t *testing.T) {
	evt := NewEvent(EventCommentCreated, sampleComment(), "u1")
	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, "p1", evt.PostID)
	assert.Equal(t, uint(9), evt.CommentID)
	assert.True(t, evt.ChangesCommentCount())
	assert.False(t, NewEvent(EventCommentLiked, sampleComment(), "u2").ChangesCommentCount())
	assert.NotEqual(t, evt.ID, NewEvent(EventCommentCreated, sampleComment(), "u1").ID)
}

func TestDispatcher_ContinuesPastFailingSink(t *testing.T) {
	failing := &recordingSink{name: "failing", err: errors.New("down")}
	ok := &recordingSink{name: "ok"}
	d := NewDispatcher(time.Second, failing, nil, ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Publish(ctx, NewEvent(EventCommentUpdated, sampleComment(), "u1"))

	assert.Len(t, failing.events, 1)
	assert.Len(t, ok.events, 1)

	require.NoError(t, d.Close())
	assert.True(t, failing.closed)
	assert.True(t, ok.closed)
}

func TestDispatcher_NilIsNoop(t *testing.T) {
	var d *Dispatcher
	d.Publish(context.Background(), Event{})
	assert.NoError(t, d.Close())
}

func TestRedisPublisher(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx := context.Background()

	sub := rdb.Subscribe(ctx, PostChannel("p1"))
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	pub := NewRedisPublisher(rdb)
	require.NoError(t, pub.Publish(ctx, NewEvent(EventCommentCreated, sampleComment(), "u1")))

	select {
	case msg := <-sub.Channel():
		var evt Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &evt))
		assert.Equal(t, EventCommentCreated, evt.Type)
		assert.Equal(t, uint(9), evt.CommentID)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}

	assert.NoError(t, NewRedisPublisher(nil).Publish(ctx, Event{}))
}

func TestKafkaPublisher(t *testing.T) {
	w := &fakeWriter{}
	pub := NewKafkaPublisher(w)

	require.NoError(t, pub.Publish(context.Background(), NewEvent(EventCommentLiked, sampleComment(), "u2")))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "p1", string(w.msgs[0].Key))
	assert.Equal(t, "event_type", w.msgs[0].Headers[0].Key)
	assert.Equal(t, "comment.liked", string(w.msgs[0].Headers[0].Value))

	w.err = errors.New("broker unavailable")
	assert.Error(t, pub.Publish(context.Background(), NewEvent(EventCommentLiked, sampleComment(), "u2")))
}

func TestNewKafkaWriter(t *testing.T) {
	w := NewKafkaWriter([]string{"localhost:9092"}, "comments.events")
	t.Cleanup(func() { _ = w.Close() })
	assert.Equal(t, "comments.events", w.Topic)
}

func TestPostServiceNotifier(t *testing.T) {
	var hits atomic.Int32
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		gotPath, gotMethod = r.URL.Path, r.Method
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	n := NewPostServiceNotifier(srv.URL+"/", srv.Client())
	ctx := context.Background()

	require.NoError(t, n.Publish(ctx, NewEvent(EventCommentCreated, sampleComment(), "u1")))
	assert.Equal(t, "/api/v1/posts/p1/update-comment-count", gotPath)
	assert.Equal(t, http.MethodPost, gotMethod)

	require.NoError(t, n.Publish(ctx, NewEvent(EventCommentLiked, sampleComment(), "u1")))
	assert.Equal(t, int32(1), hits.Load())
}

func TestPostServiceNotifier_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	n := NewPostServiceNotifier(srv.URL, srv.Client())
	err := n.Publish(context.Background(), NewEvent(EventCommentDeleted, sampleComment(), "u1"))
	assert.ErrorContains(t, err, "502")
}
