package middleware

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

type fakeContext struct {
	tele.Context
	upd   tele.Update
	store map[string]any
	sent  []any
}

func messageFrom(userID int64, text string) *fakeContext {
	return &fakeContext{upd: tele.Update{ID: 10, Message: &tele.Message{
		Text:   text,
		Sender: &tele.User{ID: userID, Username: "alice"},
		Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
	}}}
}

func callbackFrom(userID int64, data string) *fakeContext {
	return &fakeContext{upd: tele.Update{ID: 11, Callback: &tele.Callback{
		Data:   data,
		Sender: &tele.User{ID: userID},
	}}}
}

func (f *fakeContext) Update() tele.Update { return f.upd }
func (f *fakeContext) Callback() *tele.Callback { return f.upd.Callback }

func (f *fakeContext) Sender() *tele.User {
	switch {
	case f.upd.Callback != nil:
		return f.upd.Callback.Sender
	case f.upd.Message != nil:
		return f.upd.Message.Sender
	}
	return nil
}

func (f *fakeContext) Chat() *tele.Chat {
	if f.upd.Message != nil {
		return f.upd.Message.Chat
	}
	return nil
}

func (f *fakeContext) Text() string {
	if f.upd.Message != nil {
		return f.upd.Message.Text
	}
	return ""
}

func (f *fakeContext) Get(key string) interface{} { return f.store[key] }

func (f *fakeContext) Set(key string, val interface{}) {
	if f.store == nil {
		f.store = make(map[string]any)
	}
	f.store[key] = val
}

func (f *fakeContext) Send(what interface{}, _ ...interface{}) error {
	f.sent = append(f.sent, what)
	return nil
}

func ok(tele.Context) error { return nil }

func TestAdminOnlyMiddleware(t *testing.T) {
	rejected := 0
	reject := func(tele.Context) error { rejected++; return nil }
	called := 0
	next := func(tele.Context) error { called++; return nil }

	admin := AdminOnlyMiddleware(AdminOptions{AdminID: 1, OnReject: reject})(next)
	require.NoError(t, admin(messageFrom(1, "/sessions")))
	require.NoError(t, admin(messageFrom(2, "/sessions")))
	assert.Equal(t, 1, called)
	assert.Equal(t, 1, rejected)

	disabled := AdminOnlyMiddleware(AdminOptions{OnReject: reject})(next)
	require.NoError(t, disabled(messageFrom(1, "/sessions")))
	assert.Equal(t, 1, called)
	assert.Equal(t, 2, rejected)
}

func TestRateLimitMiddleware(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limited := 0
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Second,
		Exclude:   map[string]struct{}{"callback": {}},
		OnLimited: func(tele.Context) error { limited++; return nil },
		Now:       func() time.Time { return now },
	})
	passed := 0
	h := mw(func(tele.Context) error { passed++; return nil })

	require.NoError(t, h(messageFrom(7, "Acme")))
	require.NoError(t, h(messageFrom(7, "Acme")))
	require.NoError(t, h(callbackFrom(7, "\flead_sector|Healthcare")))
	require.NoError(t, h(messageFrom(8, "other user")))
	now = now.Add(2 * time.Second)
	require.NoError(t, h(messageFrom(7, "Acme")))

	assert.Equal(t, 4, passed)
	assert.Equal(t, 1, limited)
}

func TestRecoverMiddleware(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	err := h(messageFrom(1, "x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	sentinel := errors.New("handler failed")
	h = RecoverMiddleware(func(tele.Context) error { return sentinel })
	assert.ErrorIs(t, h(messageFrom(1, "x")), sentinel)
}

func TestMessageMetricsMiddleware(t *testing.T) {
	c := messageFrom(1, "/help")
	h := MessageMetricsMiddleware(func(c tele.Context) error {
		_ = c.Send("one")
		return c.Send("two", &tele.ReplyMarkup{})
	})
	require.NoError(t, h(c))

	msgs, kb := GetCounters(c)
	assert.Equal(t, 2, msgs)
	assert.True(t, kb)
	assert.Len(t, c.sent, 2)
}

func TestLoggerMiddlewareStoresRID(t *testing.T) {
	c := messageFrom(5, "secret123")
	require.NoError(t, LoggerMiddleware(ok)(c))
	assert.Equal(t, "10:5:5", c.Get("rid"))

	attrs := receiptAttrs(c)
	for _, a := range attrs {
		assert.NotEqual(t, "secret123", a.Value.String())
	}
}
