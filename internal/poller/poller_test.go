package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	msgs chan kafka.Message

	mu        sync.Mutex
	committed []int64
	closed    bool
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	r := &fakeReader{msgs: make(chan kafka.Message, len(msgs))}
	for i, m := range msgs {
		m.Offset = int64(i)
		r.msgs <- m
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case m := <-r.msgs:
		return m, nil
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type fakeCart struct {
	mu       sync.Mutex
	cleared  []string
	failures int
}

func (c *fakeCart) Clear(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if userID == "" {
		return domain.ErrInvalidArgument
	}
	if c.failures > 0 {
		c.failures--
		return domain.ErrUnavailable
	}
	c.cleared = append(c.cleared, userID)
	return nil
}

func (c *fakeCart) users() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.cleared...)
}

func runPoller(t *testing.T, p *Poller) (cancel func()) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()
	return func() {
		cancelCtx()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("poller did not stop")
		}
	}
}

func TestPoller_ClearsCarts(t *testing.T) {
	reader := newFakeReader(
		kafka.Message{Value: []byte(`{"checkout_id":"ch1","user_id":"123","total_amount":"1"}`)},
		kafka.Message{Value: []byte(`{"checkout_id":"ch2","user_id":456}`)},
	)
	cart := &fakeCart{}
	p := NewPoller(cart, reader, nil)

	stop := runPoller(t, p)
	require.Eventually(t, func() bool { return len(reader.commits()) == 2 }, time.Second, 5*time.Millisecond)
	stop()

	assert.Equal(t, []string{"123", "456"}, cart.users())
	assert.Equal(t, []int64{0, 1}, reader.commits())
}

func TestPoller_SkipsMalformedMessages(t *testing.T) {
	reader := newFakeReader(
		kafka.Message{Value: []byte(`not json`)},
		kafka.Message{Value: []byte(`{"checkout_id":"ch1"}`)},
		kafka.Message{Value: []byte(`{"user_id":true}`)},
		kafka.Message{Value: []byte(`{"user_id":"  "}`)},
		kafka.Message{Value: []byte(`{"user_id":"ok"}`)},
	)
	cart := &fakeCart{}
	p := NewPoller(cart, reader, nil)

	stop := runPoller(t, p)
	require.Eventually(t, func() bool { return len(reader.commits()) == 5 }, time.Second, 5*time.Millisecond)
	stop()

	assert.Equal(t, []string{"ok"}, cart.users())
}

func TestPoller_RetriesWhileUnavailable(t *testing.T) {
	reader := newFakeReader(kafka.Message{Value: []byte(`{"user_id":"123"}`)})
	cart := &fakeCart{failures: 2}
	p := NewPoller(cart, reader, nil)
	p.backoff = time.Millisecond

	stop := runPoller(t, p)
	require.Eventually(t, func() bool { return len(reader.commits()) == 1 }, time.Second, 5*time.Millisecond)
	stop()

	assert.Equal(t, []string{"123"}, cart.users())
}

func TestPoller_StopsWithoutCommitWhenCancelledMidRetry(t *testing.T) {
	reader := newFakeReader(kafka.Message{Value: []byte(`{"user_id":"123"}`)})
	cart := &fakeCart{failures: 1 << 30}
	p := NewPoller(cart, reader, nil)
	p.backoff = time.Millisecond

	stop := runPoller(t, p)
	time.Sleep(20 * time.Millisecond)
	stop()

	assert.Empty(t, reader.commits())
}

func TestPoller_Close(t *testing.T) {
	reader := newFakeReader()
	NewPoller(&fakeCart{}, reader, nil).Close()
	assert.True(t, reader.closed)
}

func TestParseUserID(t *testing.T) {
	id, err := parseUserID([]byte(`{"user_id":"u-1"}`))
	require.NoError(t, err)
	assert.Equal(t, "u-1", id)

	id, err = parseUserID([]byte(`{"user_id":42}`))
	require.NoError(t, err)
	assert.Equal(t, "42", id)

	for _, payload := range []string{`{`, `{}`, `{"user_id":null}`, `{"user_id":[1]}`, `[]`} {
		_, err := parseUserID([]byte(payload))
		assert.Error(t, err, payload)
	}
}
