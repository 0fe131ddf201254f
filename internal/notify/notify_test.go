package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompose(t *testing.T) {
	day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	t.Run("request lists every hour", func(t *testing.T) {
		msg, err := Compose(Notice{
			Event:            EventRequested,
			To:               "provider@example.com",
			RecipientName:    "Pat",
			CounterpartyName: "Chris <script>",
			Day:              day,
			Hours:            []string{"09:00", "10:00"},
			TotalPrice:       50,
		})
		require.NoError(t, err)

		assert.Equal(t, "provider@example.com", msg.To)
		assert.Equal(t, "New booking request", msg.Subject)
		assert.Contains(t, msg.HTMLBody, "09:00, 10:00")
		assert.Contains(t, msg.HTMLBody, "Tue, 10 Jun 2025")
		assert.Contains(t, msg.HTMLBody, "50.00")
		assert.Contains(t, msg.HTMLBody, "Chris &lt;script&gt;")
	})

	t.Run("cancellation names who cancelled", func(t *testing.T) {
		msg, err := Compose(Notice{
			Event:       EventCancelled,
			To:          "client@example.com",
			Day:         day,
			Hours:       []string{"09:00"},
			CancelledBy: "provider",
		})
		require.NoError(t, err)
		assert.Contains(t, msg.HTMLBody, "cancelled by the provider")
	})

	t.Run("unknown event", func(t *testing.T) {
		_, err := Compose(Notice{Event: "paid", To: "x@example.com"})
		assert.Error(t, err)
	})

	t.Run("missing recipient", func(t *testing.T) {
		_, err := Compose(Notice{Event: EventConfirmed})
		assert.Error(t, err)
	})
}

type captureSender struct {
	got []Message
	err error
}

func (s *captureSender) Send(_ context.Context, msg Message) error {
	s.got = append(s.got, msg)
	return s.err
}

func TestHandleEmailTask(t *testing.T) {
	msg := Message{To: "a@example.com", Subject: "s", HTMLBody: "<p>b</p>"}
	task, err := NewEmailTask(msg)
	require.NoError(t, err)
	assert.Equal(t, TypeEmail, task.Type())

	var decoded Message
	require.NoError(t, json.Unmarshal(task.Payload(), &decoded))
	assert.Equal(t, msg, decoded)

	t.Run("delivers", func(t *testing.T) {
		s := &captureSender{}
		require.NoError(t, HandleEmailTask(s)(context.Background(), task))
		assert.Equal(t, []Message{msg}, s.got)
	})

	t.Run("sender failure is retried", func(t *testing.T) {
		s := &captureSender{err: errors.New("smtp down")}
		err := HandleEmailTask(s)(context.Background(), task)
		require.Error(t, err)
		assert.False(t, errors.Is(err, asynq.SkipRetry))
	})

	t.Run("bad payload is not retried", func(t *testing.T) {
		s := &captureSender{}
		err := HandleEmailTask(s)(context.Background(), asynq.NewTask(TypeEmail, []byte("{")))
		assert.ErrorIs(t, err, asynq.SkipRetry)
		assert.Empty(t, s.got)
	})
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	require.NoError(t, r.Notify(context.Background(), Message{To: "a"}))
	require.NoError(t, r.Notify(context.Background(), Message{To: "b"}))
	assert.Len(t, r.Messages(), 2)
	assert.Len(t, r.To("a"), 1)

	r.Err = errors.New("boom")
	assert.Error(t, r.Notify(context.Background(), Message{To: "c"}))
}
