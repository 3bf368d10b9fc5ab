package sender

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/crmbot/core/logger"
)

func chatCtx(chatID int64) context.Context {
	return logger.WithUpdateMeta(context.Background(), 1, chatID, chatID)
}

func TestDispatcherKeepsPerChatOrder(t *testing.T) {
	d := NewDispatcher(Options{QueueSize: 512, Workers: 4})

	var mu sync.Mutex
	got := make(map[int64][]int)
	for i := 0; i < 50; i++ {
		for _, chat := range []int64{101, 202, -303} {
			chat, i := chat, i
			require.NoError(t, d.Enqueue(chatCtx(chat), "send.text", "sendMessage", func() error {
				mu.Lock()
				got[chat] = append(got[chat], i)
				mu.Unlock()
				return nil
			}))
		}
	}
	d.Close()

	for chat, seq := range got {
		require.Len(t, seq, 50, chat)
		for i, v := range seq {
			assert.Equal(t, i, v, chat)
		}
	}
}

func TestDispatcherRetriesTransientErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})

	var calls atomic.Int32
	require.NoError(t, d.Enqueue(chatCtx(1), "send.text", "sendMessage", func() error {
		if calls.Add(1) < 3 {
			return &net.OpError{Op: "dial", Err: errors.New("connection refused")}
		}
		return nil
	}))
	d.Close()

	assert.Equal(t, int32(3), calls.Load())
	assert.Zero(t, d.ErrorCount())
}

func TestDispatcherCountsPermanentFailures(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 3, RetryBackoff: time.Millisecond})

	var calls atomic.Int32
	require.NoError(t, d.Enqueue(chatCtx(1), "send.text", "sendMessage", func() error {
		calls.Add(1)
		return &tele.Error{Code: 400, Description: "Bad Request: chat not found"}
	}))
	d.Close()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, uint64(1), d.ErrorCount())
}

func TestDispatcherClosed(t *testing.T) {
	d := NewDispatcher(Options{})
	d.Close()
	d.Close()
	err := d.Enqueue(context.Background(), "send.text", "sendMessage", func() error { return nil })
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestDispatcherQueueFull(t *testing.T) {
	d := NewDispatcher(Options{QueueSize: 1, Workers: 1})
	release := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, d.Enqueue(chatCtx(1), "a", "", func() error {
		close(started)
		<-release
		return nil
	}))
	<-started
	require.NoError(t, d.Enqueue(chatCtx(1), "b", "", func() error { return nil }))
	err := d.Enqueue(chatCtx(1), "c", "", func() error { return nil })
	assert.ErrorIs(t, err, ErrQueueFull)

	close(release)
	d.Close()
}

func TestSanitizeErrorMessage(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123456:AAbb-cc_DD/sendMessage": EOF`)
	assert.NotContains(t, SanitizeError(err), "AAbb")
	assert.Contains(t, SanitizeError(err), "bot<redacted>")
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, "timeout", classifyError(context.DeadlineExceeded))
	assert.Equal(t, "http_4xx", classifyError(&tele.Error{Code: 403}))
	assert.Equal(t, "dial", classifyError(&net.OpError{Op: "dial", Err: errors.New("refused")}))
	assert.Equal(t, "unknown", classifyError(errors.New("boom")))
}
