package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/crmbot/core/logger"
	"github.com/m3rciful/crmbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func sendAsync(c tele.Context, action, endpoint string, run func() error) error {
	disp := globalDispatcher.Load()
	if disp == nil {
		return run()
	}

	ctx := BuildContext(c)
	if err := disp.Enqueue(ctx, action, endpoint, run); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, "tg.sender", "queue.fallback",
				slog.String("status", "skip"),
				slog.String("action", action),
				slog.String("err", err.Error()),
			)
			return run()
		}
		return err
	}
	return nil
}

// SendText sends raw text (no parse mode) with an optional reply markup.
func SendText(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	return sendAsync(c, "send.text", "sendMessage", func() error {
		if markup != nil {
			return c.Send(text, markup)
		}
		return c.Send(text)
	})
}

// SendMD sends a message with Markdown parse mode and an optional reply markup.
func SendMD(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdown, ReplyMarkup: markup}
	return sendAsync(c, "send.md", "sendMessage", func() error {
		return c.Send(text, opts)
	})
}

// DropKeyboard removes the inline keyboard of the message a callback came from.
func DropKeyboard(c tele.Context) error {
	cb := c.Callback()
	if cb == nil || cb.Message == nil {
		return nil
	}
	msg := cb.Message
	return sendAsync(c, "edit.markup", "editMessageReplyMarkup", func() error {
		_, err := c.Bot().EditReplyMarkup(msg, nil)
		return err
	})
}
