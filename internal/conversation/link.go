package conversation

import (
	"context"
	"log/slog"
	"strings"

	"github.com/m3rciful/crmbot/core/logger"
	"github.com/m3rciful/crmbot/core/telegram/state"
	"github.com/m3rciful/crmbot/internal/crm"
	"github.com/m3rciful/crmbot/internal/journal"
)

func (m *Machine) linkStep(sess *state.Session, ev Event) result {
	value := strings.TrimSpace(ev.Value)
	if value == "" {
		return result{reply: m.reprompt(sess.State, msgEmptyValue)}
	}

	switch sess.State {
	case StepLinkEmail:
		sess.Data[keyLinkEmail] = value
		return advance(m, sess, StepLinkPassword)
	case StepLinkPassword:
		// Only held in the detached copy handed to authenticate.
		sess.Data[keyLinkPassword] = ev.Value
		return result{action: actionAuthenticate}
	}
	return result{reply: replyText(msgNudge)}
}

func (m *Machine) authenticate(ctx context.Context, id Identity, sess *state.Session) Reply {
	email, _ := sess.Value(keyLinkEmail)
	password, _ := sess.Value(keyLinkPassword)

	resp, err := m.backend.LinkAccount(ctx, crm.LinkRequest{
		Platform:         crm.PlatformTelegram,
		PlatformUserID:   id.PlatformUserID(),
		PlatformUsername: id.Username,
		Email:            email,
		Password:         password,
	})
	if err != nil {
		logger.Warn(ctx, "flow", "link.failed",
			slog.String("status", "error"),
			slog.String("err", err.Error()),
		)
		m.record(ctx, id, journal.ActionLink, journal.OutcomeError, errDetail(err))
		return replyText(msgFailure)
	}
	if !resp.Success {
		m.record(ctx, id, journal.ActionLink, journal.OutcomeRejected, resp.Message)
		return linkFailed(resp.Message)
	}
	m.record(ctx, id, journal.ActionLink, journal.OutcomeOK, email)
	return linkSucceeded(resp.User)
}
