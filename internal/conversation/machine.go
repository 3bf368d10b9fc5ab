// Package conversation drives the bot dialogs: account linking and lead capture.
//
// The Machine is transport agnostic. It receives commands, text and button
// events for a platform identity, moves the user's session through the steps
// of a flow and returns the Reply to render.
package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/crmbot/core/logger"
	"github.com/m3rciful/crmbot/core/telegram/state"
	"github.com/m3rciful/crmbot/internal/crm"
	"github.com/m3rciful/crmbot/internal/journal"
)

// Backend is the part of the CRM the bot talks to.
type Backend interface {
	UserInfo(ctx context.Context, platformUserID string) (*crm.UserInfoResponse, error)
	LinkAccount(ctx context.Context, req crm.LinkRequest) (*crm.LinkResponse, error)
	CreateLead(ctx context.Context, req crm.LeadRequest) (*crm.LeadResponse, error)
	Stats(ctx context.Context, platformUserID string) (*crm.StatsResponse, error)
}

// Recorder persists terminal actions.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Identity is the platform user an event came from.
type Identity struct {
	UserID   int64
	Username string
}

// PlatformUserID renders the id the backend expects.
func (id Identity) PlatformUserID() string {
	return strconv.FormatInt(id.UserID, 10)
}

// EventKind tells text input from button presses.
type EventKind int

const (
	EventText EventKind = iota
	EventCallback
)

// Event is a non-command input.
type Event struct {
	Kind EventKind
	// Key is the callback unique; empty for text.
	Key   string
	Value string
}

// TextEvent builds a free-text event.
func TextEvent(value string) Event { return Event{Kind: EventText, Value: value} }

// CallbackEvent builds a button event.
func CallbackEvent(key, value string) Event {
	return Event{Kind: EventCallback, Key: key, Value: value}
}

// Commands recognised before step dispatch.
const (
	CmdStart   = "/start"
	CmdHelp    = "/help"
	CmdCancel  = "/cancel"
	CmdLink    = "/link"
	CmdNewLead = "/newlead"
	CmdStats   = "/stats"
)

// Commands lists the public commands in menu order.
var Commands = []string{CmdStart, CmdHelp, CmdCancel, CmdLink, CmdNewLead, CmdStats}

// Config wires a Machine.
type Config struct {
	Sessions state.Manager
	Backend  Backend
	// Journal is optional.
	Journal Recorder
	Options Options
}

// Machine is the conversational state machine.
type Machine struct {
	sessions state.Manager
	backend  Backend
	journal  Recorder
	opts     Options
}

// NewMachine builds a Machine.
func NewMachine(cfg Config) *Machine {
	return &Machine{
		sessions: cfg.Sessions,
		backend:  cfg.Backend,
		journal:  cfg.Journal,
		opts:     cfg.Options.Normalize(),
	}
}

// Sessions exposes the session manager.
func (m *Machine) Sessions() state.Manager { return m.sessions }

// InProgress reports whether userID has a live session.
func (m *Machine) InProgress(userID int64) bool { return m.sessions.InProgress(userID) }

// Live returns the number of stored sessions.
func (m *Machine) Live() int { return m.sessions.Len() }

// Command runs a bot command. Commands are valid in any step and either reset or clear the session.
func (m *Machine) Command(ctx context.Context, id Identity, name string) Reply {
	unlock := m.sessions.Lock(id.UserID)
	defer unlock()

	name = normalizeCommand(name)
	switch name {
	case CmdStart:
		m.sessions.Delete(id.UserID)
		return m.start(ctx, id)
	case CmdHelp:
		m.sessions.Delete(id.UserID)
		return replyMD(msgHelp)
	case CmdCancel:
		if m.sessions.Delete(id.UserID) {
			m.logTransition(ctx, "", state.StateIdle, "cancel")
			return replyText(msgCancelled)
		}
		return replyText(msgNothingCancel)
	case CmdLink:
		m.sessions.Start(id.UserID, StepLinkEmail)
		m.logTransition(ctx, state.StateIdle, StepLinkEmail, "command")
		return m.prompt(StepLinkEmail)
	case CmdNewLead:
		return m.newLead(ctx, id)
	case CmdStats:
		m.sessions.Delete(id.UserID)
		return m.stats(ctx, id)
	}
	return replyText(msgNudge)
}

// Handle applies a text or button event to the user's session.
func (m *Machine) Handle(ctx context.Context, id Identity, ev Event) Reply {
	unlock := m.sessions.Lock(id.UserID)
	defer unlock()

	sess, err := m.sessions.Get(id.UserID)
	if ev.Kind == EventCallback {
		if err != nil || !AcceptsCallback(sess.State) || ev.Key != string(sess.State) {
			logger.Debug(ctx, "flow", "callback.expired",
				slog.String("status", "skip"),
				slog.String("cb_key", ev.Key),
			)
			return replyText(msgExpired)
		}
	} else if err != nil {
		return replyText(msgNudge)
	}

	from := sess.State
	var res result
	switch FlowOf(sess.State) {
	case FlowLink:
		res = m.linkStep(sess, ev)
	case FlowLead:
		res = m.leadStep(sess, ev)
	default:
		return replyText(msgNudge)
	}

	switch res.action {
	case actionAuthenticate:
		m.sessions.Delete(id.UserID)
		m.logTransition(ctx, from, state.StateIdle, "authenticate")
		return m.authenticate(ctx, id, sess)
	case actionSubmit:
		m.sessions.Delete(id.UserID)
		m.logTransition(ctx, from, state.StateIdle, "submit")
		return m.submit(ctx, id, sess)
	}

	m.sessions.Put(id.UserID, sess)
	if sess.State != from {
		m.logTransition(ctx, from, sess.State, eventName(ev))
	}
	return res.reply
}

type action int

const (
	actionNone action = iota
	actionAuthenticate
	actionSubmit
)

// result is the outcome of one step handler: either a reply with the
// session updated in place, or a terminal action.
type result struct {
	reply  Reply
	action action
}

func advance(m *Machine, sess *state.Session, next Step) result {
	sess.State = next
	return result{reply: m.prompt(next)}
}

func (m *Machine) start(ctx context.Context, id Identity) Reply {
	resp, err := m.backend.UserInfo(ctx, id.PlatformUserID())
	if err != nil || !resp.Success || resp.User == nil {
		return welcome("")
	}
	return welcome(resp.User.Name)
}

func (m *Machine) newLead(ctx context.Context, id Identity) Reply {
	m.sessions.Delete(id.UserID)

	resp, err := m.backend.UserInfo(ctx, id.PlatformUserID())
	if err != nil {
		m.record(ctx, id, journal.ActionLeadRefuse, journal.OutcomeError, errDetail(err))
		return replyText(msgFailure)
	}
	if !resp.Success {
		m.record(ctx, id, journal.ActionLeadRefuse, journal.OutcomeRejected, resp.Message)
		return replyText(msgNotLinked)
	}

	m.sessions.Start(id.UserID, StepLeadCompany)
	m.logTransition(ctx, state.StateIdle, StepLeadCompany, "command")
	return m.prompt(StepLeadCompany)
}

func (m *Machine) stats(ctx context.Context, id Identity) Reply {
	resp, err := m.backend.Stats(ctx, id.PlatformUserID())
	if err != nil {
		return replyText(msgFailure)
	}
	if !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = "Statistics are not available."
		}
		return replyText("❌ " + msg + "\n\nMake sure your account is linked with /link.")
	}
	return statsSummary(resp)
}

func (m *Machine) record(ctx context.Context, id Identity, act, outcome, detail string) {
	if m.journal == nil {
		return
	}
	// The reply never depends on the journal.
	_ = m.journal.Record(ctx, journal.Entry{
		Platform:       crm.PlatformTelegram,
		PlatformUserID: id.PlatformUserID(),
		Action:         act,
		Outcome:        outcome,
		Detail:         logger.SanitizeLimit(detail, 512),
	})
}

func (m *Machine) logTransition(ctx context.Context, from, to Step, cause string) {
	logger.Debug(ctx, "flow", "flow.transition",
		slog.String("status", "ok"),
		slog.String("step", string(from)),
		slog.String("next_step", string(to)),
		slog.String("cause", cause),
	)
}

func eventName(ev Event) string {
	if ev.Kind == EventCallback {
		return "callback"
	}
	return "text"
}

func errDetail(err error) string {
	var apiErr *crm.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code()
	}
	return err.Error()
}

func normalizeCommand(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	// Drop arguments and the @botname suffix.
	if i := strings.IndexAny(name, " \t\n"); i >= 0 {
		name = name[:i]
	}
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	return strings.ToLower(name)
}
