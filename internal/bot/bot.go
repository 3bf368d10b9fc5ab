// Package bot adapts the conversation machine to Telegram.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/crmbot/core/logger"
	tg "github.com/m3rciful/crmbot/core/telegram"
	"github.com/m3rciful/crmbot/core/telegram/callbacks"
	"github.com/m3rciful/crmbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/crmbot/core/telegram/helpers"
	"github.com/m3rciful/crmbot/core/telegram/keyboard"
	"github.com/m3rciful/crmbot/core/telegram/router"
	"github.com/m3rciful/crmbot/core/telegram/ui"
	"github.com/m3rciful/crmbot/internal/conversation"

	tele "gopkg.in/telebot.v4"
)

// CmdSessions is the hidden admin diagnostics command.
const CmdSessions = "/sessions"

const msgDocument = "📄 I can only read text. Use /newlead to add a lead or /help to see all commands."

var descriptions = map[string]string{
	conversation.CmdStart:   "Start the bot",
	conversation.CmdHelp:    "Show available commands",
	conversation.CmdCancel:  "Cancel the current operation",
	conversation.CmdLink:    "Link your CRM account",
	conversation.CmdNewLead: "Capture a new lead",
	conversation.CmdStats:   "Show your lead statistics",
}

// Machine is the conversation engine driven by the bot.
type Machine interface {
	Command(ctx context.Context, id conversation.Identity, name string) conversation.Reply
	Handle(ctx context.Context, id conversation.Identity, ev conversation.Event) conversation.Reply
	InProgress(userID int64) bool
	Live() int
}

// Counter reports the journal size.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// Config wires a Bot.
type Config struct {
	Machine Machine
	// Journal is optional and only used by the admin report.
	Journal Counter
	AdminID int64
}

var (
	_ ui.FallbackProvider = (*Bot)(nil)
	_ router.FSM          = (*Bot)(nil)
)

// Bot owns the Telegram handlers.
type Bot struct {
	machine Machine
	journal Counter
	adminID int64
}

// New builds a Bot.
func New(cfg Config) *Bot {
	return &Bot{machine: cfg.Machine, journal: cfg.Journal, adminID: cfg.AdminID}
}

// Register adds the bot commands, one callback per keyboard step and the fallbacks to reg.
func (b *Bot) Register(reg *tg.Registry) error {
	for _, name := range conversation.Commands {
		if err := reg.RegisterCommand(name, commands.Command{
			Handler:     b.command(name),
			Description: descriptions[name],
		}); err != nil {
			return err
		}
	}
	if err := reg.RegisterCommand(CmdSessions, commands.Command{
		Handler:     b.sessions,
		Description: "Live sessions and journal size",
		AdminOnly:   true,
		Hidden:      true,
	}); err != nil {
		return err
	}
	for _, step := range conversation.CallbackSteps {
		if err := reg.RegisterCallback(string(step), b.callback); err != nil {
			return err
		}
	}
	reg.SetCallbackNotFound(b.UnknownCallback())
	reg.SetTextFallback(b.UnknownText())
	return nil
}

// Routes returns every route the bot serves, commands first.
func (b *Bot) Routes(reg *tg.Registry) []tg.Route {
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: b.adminID,
		// Non-admins get the same answer as for any unknown command.
		OnAdminReject: b.text,
	})
	routes = append(routes, router.CallbackRoute(reg))
	routes = append(routes, router.TextRoutes(b, reg, router.TextOptions{
		UnknownText:     b.UnknownText(),
		UnknownDocument: b.UnknownDocument(),
	})...)
	return routes
}

// InProgress reports whether userID is inside a flow.
func (b *Bot) InProgress(userID int64) bool {
	return b.machine.InProgress(userID)
}

// ManagerHandler feeds text to the machine while a flow is in progress.
func (b *Bot) ManagerHandler(c tele.Context) error {
	return b.text(c)
}

// UnknownText answers text outside any flow.
func (b *Bot) UnknownText() tele.HandlerFunc { return b.text }

// UnknownDocument answers files, which no step accepts.
func (b *Bot) UnknownDocument() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendText(c, msgDocument, nil)
	}
}

// UnknownCallback answers buttons with an unregistered key; the machine treats them as expired.
func (b *Bot) UnknownCallback() tele.HandlerFunc { return b.callback }

func (b *Bot) command(name string) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.WithHandler(c, strings.TrimPrefix(name, "/"))
		return render(c, b.machine.Command(ctx, identity(c), name))
	}
}

func (b *Bot) text(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	txt := c.Text()
	if strings.HasPrefix(strings.TrimSpace(txt), "/") {
		// Unknown slash commands never become field values.
		return render(c, b.machine.Command(ctx, identity(c), txt))
	}
	return render(c, b.machine.Handle(ctx, identity(c), conversation.TextEvent(txt)))
}

func (b *Bot) callback(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	key, payload := callbacks.ParseCallbackData(c.Callback())
	if err := tghelpers.DropKeyboard(c); err != nil {
		logger.Debug(ctx, "tg", "keyboard.drop",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
	return render(c, b.machine.Handle(ctx, identity(c), conversation.CallbackEvent(key, payload)))
}

func (b *Bot) sessions(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "sessions")
	report := fmt.Sprintf("Live sessions: %d", b.machine.Live())
	if b.journal != nil {
		n, err := b.journal.Count(ctx)
		if err != nil {
			report += "\nJournal: unavailable"
		} else {
			report += fmt.Sprintf("\nJournal entries: %d", n)
		}
	} else {
		report += "\nJournal: disabled"
	}
	return tghelpers.SendText(c, report, nil)
}

func identity(c tele.Context) conversation.Identity {
	u := c.Sender()
	if u == nil {
		return conversation.Identity{}
	}
	return conversation.Identity{UserID: u.ID, Username: u.Username}
}

func render(c tele.Context, r conversation.Reply) error {
	var markup *tele.ReplyMarkup
	if kb := r.Keyboard; kb != nil {
		markup = keyboard.InlineButtonsNPerRow(keyboard.Choices(kb.Key, kb.Options), kb.PerRow)
	}
	if r.Markdown {
		return tghelpers.SendMD(c, r.Text, markup)
	}
	return tghelpers.SendText(c, r.Text, markup)
}
