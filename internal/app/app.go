// Package app wires configuration, infrastructure and the bot together.
package app

import (
	"context"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/crmbot/core/bootstrap"
	"github.com/m3rciful/crmbot/core/logger"
	tg "github.com/m3rciful/crmbot/core/telegram"
	tghelpers "github.com/m3rciful/crmbot/core/telegram/helpers"
	"github.com/m3rciful/crmbot/core/telegram/state"
	"github.com/m3rciful/crmbot/internal/bot"
	"github.com/m3rciful/crmbot/internal/conversation"
	"github.com/m3rciful/crmbot/internal/crm"
	"github.com/m3rciful/crmbot/internal/journal"

	tele "gopkg.in/telebot.v4"
)

const msgRateLimited = "⏳ Slow down a little and try again."

// App holds the assembled bot.
type App struct {
	Config   *Config
	Sessions *state.MemoryManager
	Machine  *conversation.Machine
	Bot      *bot.Bot
	Registry *tg.Registry
	// Journal is nil when the database is disabled.
	Journal *journal.Store

	infra *bootstrap.Result
}

// Bootstrap initializes logging and the optional journal database, then assembles the App.
func Bootstrap(cfg *Config) (*App, error) {
	infra, err := bootstrap.Run(bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
		Migrate:  journal.Migrate,
	})
	if err != nil {
		return nil, err
	}
	a, err := New(cfg, infra.DB)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}
	a.infra = infra
	return a, nil
}

// New assembles the App over an already opened database, which may be nil.
func New(cfg *Config, db *sqlx.DB) (*App, error) {
	a := &App{
		Config:   cfg,
		Sessions: state.NewMemoryManager(state.MemoryOptions{TTL: cfg.Session.TTL()}),
		Registry: tg.NewRegistry(),
	}

	var rec conversation.Recorder
	var counter bot.Counter
	if db != nil {
		a.Journal = journal.NewStore(db)
		rec, counter = a.Journal, a.Journal
	}

	client := crm.NewClient(cfg.CRM.BaseURL, cfg.CRM.Secret,
		crm.WithTimeout(cfg.CRM.Timeout()),
		crm.WithSecretHeader(cfg.CRM.SecretHeader),
	)
	a.Machine = conversation.NewMachine(conversation.Config{
		Sessions: a.Sessions,
		Backend:  client,
		Journal:  rec,
		Options:  cfg.LeadOptions,
	})
	a.Bot = bot.New(bot.Config{
		Machine: a.Machine,
		Journal: counter,
		AdminID: cfg.Telegram.AdminID,
	})
	if err := a.Bot.Register(a.Registry); err != nil {
		return nil, err
	}

	logger.L.With("component", "app").Info("app assembled",
		slog.String("event", "assemble"),
		slog.Bool("journal", a.Journal != nil),
		slog.Duration("session_ttl", cfg.Session.TTL()),
		slog.Int("commands", len(a.Registry.CommandNames())),
	)
	return a, nil
}

// TelegramRunOptions describes how the bot runs.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	core := a.Config.CoreConfig()
	return tg.RunOptions{
		Config:      core,
		Registry:    a.Registry,
		Middlewares: tg.DefaultMiddlewares(core, rateLimited),
		Routes:      a.Bot.Routes(a.Registry),
		OnStart: func(ctx context.Context, _ tg.Runtime) error {
			go a.Sessions.RunSweeper(ctx, a.Config.Session.SweepInterval())
			return nil
		},
		OnStop: func(context.Context, tg.Runtime) error {
			return a.Close()
		},
	}, nil
}

// Close releases the database.
func (a *App) Close() error {
	return a.infra.Close()
}

func rateLimited(c tele.Context) error {
	if c.Callback() != nil {
		return c.Respond(&tele.CallbackResponse{Text: msgRateLimited})
	}
	return tghelpers.SendText(c, msgRateLimited, nil)
}
