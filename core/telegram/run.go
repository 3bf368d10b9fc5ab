package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/m3rciful/crmbot/core/config"
	"github.com/m3rciful/crmbot/core/logger"
	tghelpers "github.com/m3rciful/crmbot/core/telegram/helpers"
	tgsender "github.com/m3rciful/crmbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Middleware describes a global bot middleware to be registered via bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route declares a single bot handler bound to an arbitrary endpoint.
// Endpoint values are passed directly to tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	HTTPClient HTTPClientOptions

	// DispatcherOptions are derived from Config.Sender when left zero.
	DispatcherOptions tgsender.Options
	Dispatcher        *tgsender.Dispatcher

	Middlewares []Middleware
	Routes      []Route

	DisableWebhookCleanup   bool
	DisableHelperDispatcher bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to lifecycle hooks.
type Runtime struct {
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// RunTelegram composes and runs a Telegram bot until ctx is done.
// A cancelled context is a clean shutdown and returns nil.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return errors.New("telegram: nil config provided")
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	cfg := opts.Config

	start := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.Telegram.Token,
		Poller:  BuildPoller(cfg),
		Client:  BuildHTTPClient(opts.HTTPClient),
		OnError: logBotError,
	})
	if err != nil {
		return fmt.Errorf("telegram: bot initialization failed: %w", redacted(err))
	}
	logMode(ctx, bot, cfg, logger.RoundMS(time.Since(start)))
	if _, polling := bot.Poller.(*tele.LongPoller); polling && !opts.DisableWebhookCleanup {
		removeWebhook(ctx, bot)
	}

	rt, release := startDispatcher(cfg, opts)
	defer release()

	wire(bot, opts)
	InitBotCommands(bot, opts.Registry)

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}

	runErr := serve(ctx, bot)

	if opts.OnStop != nil {
		if err := opts.OnStop(context.WithoutCancel(ctx), rt); err != nil {
			return err
		}
	}
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// SenderOptions maps the sender section of the config onto dispatcher options.
func SenderOptions(cfg coreconfig.SenderConfig) tgsender.Options {
	return tgsender.Options{
		QueueSize:    cfg.QueueSize,
		Workers:      cfg.Workers,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: time.Duration(cfg.RetryBackoffMS) * time.Millisecond,
	}
}

// startDispatcher builds the outbound dispatcher and, unless disabled, hands it
// to the send helpers. release drains it and detaches the helpers.
func startDispatcher(cfg *coreconfig.Config, opts RunOptions) (Runtime, func()) {
	d := opts.Dispatcher
	if d == nil {
		dopts := opts.DispatcherOptions
		if dopts == (tgsender.Options{}) {
			dopts = SenderOptions(cfg.Sender)
		}
		d = tgsender.NewDispatcher(dopts)
	}
	if !opts.DisableHelperDispatcher {
		tghelpers.SetDispatcher(d)
	}
	release := func() {
		d.Close()
		if !opts.DisableHelperDispatcher {
			tghelpers.SetDispatcher(nil)
		}
	}
	return Runtime{Dispatcher: d, Registry: opts.Registry}, release
}

func wire(bot *tele.Bot, opts RunOptions) {
	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, r := range opts.Routes {
		if r.Endpoint != nil && r.Handler != nil {
			bot.Handle(r.Endpoint, r.Handler)
		}
	}
}

// serve runs the poller until it stops on its own or ctx is done.
func serve(ctx context.Context, bot *tele.Bot) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		bot.Start()
	}()
	select {
	case <-ctx.Done():
		bot.Stop()
		<-done
		return ctx.Err()
	case <-done:
		return nil
	}
}

func logMode(ctx context.Context, bot *tele.Bot, cfg *coreconfig.Config, took time.Duration) {
	switch p := bot.Poller.(type) {
	case *tele.Webhook:
		logger.TG.LogAttrs(ctx, slog.LevelInfo, "webhook mode",
			slog.String("event", "mode"),
			slog.String("mode", "webhook"),
			slog.String("listen", p.Listen),
			slog.String("public_url", p.Endpoint.PublicURL),
			slog.Duration("duration", took),
		)
	default:
		logger.TG.LogAttrs(ctx, slog.LevelInfo, "polling mode",
			slog.String("event", "mode"),
			slog.String("mode", "polling"),
			slog.Duration("poll_timeout", longPollTimeout(cfg)),
			slog.Duration("duration", took),
		)
	}
}

// removeWebhook clears a webhook left by an earlier deployment so long polling receives updates.
func removeWebhook(ctx context.Context, bot *tele.Bot) {
	if err := bot.RemoveWebhook(false); err != nil {
		logger.TG.LogAttrs(ctx, slog.LevelWarn, "failed to delete webhook",
			slog.String("event", "delete_webhook"),
			slog.String("err", tgsender.SanitizeError(err)),
		)
		return
	}
	logger.TG.LogAttrs(ctx, slog.LevelInfo, "webhook deleted", slog.String("event", "delete_webhook"))
}

func logBotError(err error, c tele.Context) {
	ctx := context.Background()
	if c != nil {
		ctx = tghelpers.BuildContext(c)
	}
	logger.Error(ctx, "tg", "bot.error",
		slog.String("status", "fail"),
		slog.String("err", tgsender.SanitizeError(err)),
	)
}

// redacted strips the bot token from errors returned by telebot.
func redacted(err error) error {
	return errors.New(tgsender.SanitizeError(err))
}
