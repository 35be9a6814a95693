package kafka

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestProducerFlushesOnClose(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "order.created", 16)
	p.Start()

	p.Publish([]byte("o1"), []byte(`{"a":1}`))
	p.Publish([]byte("o2"), []byte(`{"a":2}`), kafka.Header{Key: "event_type", Value: []byte("OrderCreated")})
	p.Close()
	p.WaitClosed()

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "o1", string(w.msgs[0].Key))
	assert.Equal(t, "OrderCreated", string(w.msgs[1].Headers[0].Value))
	assert.True(t, w.closed)

	// publishing after close is dropped, not a panic
	assert.NotPanics(t, func() { p.Publish([]byte("o3"), nil) })
	assert.NotPanics(t, p.Close)
}

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func TestConsumerRetriesFailedMessageBeforeMovingOn(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{
		{Partition: 0, Offset: 1}, {Partition: 1, Offset: 7}, {Partition: 0, Offset: 2},
	}}
	c := newConsumer(r, "order.created", 2)
	c.retryMin, c.retryMax = time.Millisecond, 5*time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu    sync.Mutex
		calls = map[int64]int{}
		order []int64
	)
	done := make(chan error, 1)
	go func() {
		done <- c.Start(ctx, func(_ context.Context, m kafka.Message) error {
			mu.Lock()
			defer mu.Unlock()
			calls[m.Offset]++
			order = append(order, m.Offset)
			if m.Offset == 1 && calls[1] < 3 {
				return errors.New("db down")
			}
			return nil
		})
	}()

	require.Eventually(t, func() bool { return len(r.commits()) == 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[int64]int{1: 3, 7: 1, 2: 1}, calls)
	assert.ElementsMatch(t, []int64{1, 7, 2}, r.commits())

	// offset 2 shares a partition with offset 1 and waits for it
	var partition0 []int64
	for _, off := range order {
		if off != 7 {
			partition0 = append(partition0, off)
		}
	}
	assert.Equal(t, []int64{1, 1, 1, 2}, partition0)
}

func TestConsumerStopsRetryingOnShutdown(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{{Offset: 1}}}
	c := newConsumer(r, "order.cancelled", 1)
	c.retryMin, c.retryMax = time.Millisecond, time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	var attempts atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- c.Start(ctx, func(context.Context, kafka.Message) error {
			attempts.Add(1)
			return errors.New("still down")
		})
	}()

	require.Eventually(t, func() bool { return attempts.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Empty(t, r.commits())
}

func TestUnwrapPayload(t *testing.T) {
	type payload struct {
		OrderID string `json:"order_id"`
	}
	p, err := UnwrapPayload[payload](MustMarshal(map[string]string{"order_id": "o1"}))
	require.NoError(t, err)
	assert.Equal(t, "o1", p.OrderID)

	_, err = UnwrapPayload[payload]([]byte("{"))
	assert.Error(t, err)
}
