package router

import (
	"time"

	tg "github.com/m3rciful/crmbot/core/telegram"
	"github.com/m3rciful/crmbot/core/telegram/callbacks"
	"github.com/m3rciful/crmbot/core/telegram/middleware"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// CallbackRoute returns the OnCallback route dispatching button presses by unique key
// through the registry. Every callback is answered so the client stops its spinner.
func CallbackRoute(reg *tg.Registry) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		if c.Callback() == nil {
			return nil
		}

		key, _ := callbacks.ParseCallbackData(c.Callback())
		name := "callback." + normalizeHandlerName(key)
		extras := []slog.Attr{slog.String("cb_key", key)}

		_ = c.Respond()

		cbHandler, ok := reg.GetCallback(key)
		if !ok {
			cbHandler = reg.CallbackNotFound()
			extras = append(extras, slog.String("cause", "not_found"))
		}
		return handleWithSummary(c, name, start, "", "", func() error {
			return cbHandler(c)
		}, extras...)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
