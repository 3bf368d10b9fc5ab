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

func (m *Machine) leadStep(sess *state.Session, ev Event) result {
	if AcceptsCallback(sess.State) {
		if ev.Kind != EventCallback {
			return result{reply: m.reprompt(sess.State, msgChooseOption)}
		}
		return m.leadChoice(sess, ev.Value)
	}

	value := strings.TrimSpace(ev.Value)
	if ev.Kind != EventText || value == "" {
		return result{reply: m.reprompt(sess.State, msgEmptyValue)}
	}

	switch sess.State {
	case StepLeadCompany:
		sess.Data[keyCompany] = value
		return advance(m, sess, StepLeadSector)
	case StepLeadSectorCustom:
		sess.Data[keySectorCustom] = value
		return advance(m, sess, StepLeadTransaction)
	case StepLeadTransactionCustom:
		sess.Data[keyTransactionCustom] = value
		return advance(m, sess, StepLeadPOC)
	case StepLeadPOC:
		sess.Data[keyPOC] = value
		return advance(m, sess, StepLeadEmail)
	case StepLeadEmail:
		sess.Data[keyEmail] = value
		return advance(m, sess, StepLeadPhone)
	case StepLeadPhone:
		sess.Data[keyPhone] = value
		return advance(m, sess, StepLeadSourceType)
	case StepLeadInboundCustom:
		sess.Data[keyInboundSourceCustom] = value
		return result{action: actionSubmit}
	case StepLeadOutboundSource:
		sess.Data[keyOutboundSource] = value
		return result{action: actionSubmit}
	case StepLeadSector, StepLeadTransaction, StepLeadSourceType, StepLeadInboundSource:
		// Button steps are handled by leadChoice.
	}
	return result{reply: replyText(msgNudge)}
}

func (m *Machine) leadChoice(sess *state.Session, value string) result {
	switch sess.State {
	case StepLeadSector:
		if !contains(m.opts.Sectors, value) {
			return result{reply: m.reprompt(sess.State, msgChooseOption)}
		}
		sess.Data[keySector] = value
		if value == OptionOthers {
			return advance(m, sess, StepLeadSectorCustom)
		}
		delete(sess.Data, keySectorCustom)
		return advance(m, sess, StepLeadTransaction)
	case StepLeadTransaction:
		if !contains(m.opts.TransactionTypes, value) {
			return result{reply: m.reprompt(sess.State, msgChooseOption)}
		}
		sess.Data[keyTransaction] = value
		if value == OptionOthers {
			return advance(m, sess, StepLeadTransactionCustom)
		}
		delete(sess.Data, keyTransactionCustom)
		return advance(m, sess, StepLeadPOC)
	case StepLeadSourceType:
		switch value {
		case crm.SourceInbound:
			sess.Data[keySourceType] = value
			delete(sess.Data, keyOutboundSource)
			return advance(m, sess, StepLeadInboundSource)
		case crm.SourceOutbound:
			sess.Data[keySourceType] = value
			delete(sess.Data, keyInboundSource)
			delete(sess.Data, keyInboundSourceCustom)
			return advance(m, sess, StepLeadOutboundSource)
		}
		return result{reply: m.reprompt(sess.State, msgChooseOption)}
	case StepLeadInboundSource:
		if !contains(m.opts.InboundSources, value) {
			return result{reply: m.reprompt(sess.State, msgChooseOption)}
		}
		sess.Data[keyInboundSource] = value
		if value == OptionOthers {
			return advance(m, sess, StepLeadInboundCustom)
		}
		delete(sess.Data, keyInboundSourceCustom)
		return result{action: actionSubmit}
	}
	return result{reply: replyText(msgExpired)}
}

// leadRequest assembles the submission, applying custom overrides.
func leadRequest(id Identity, sess *state.Session) crm.LeadRequest {
	get := func(key string) string {
		v, _ := sess.Value(key)
		return v
	}
	override := func(choice, custom string) string {
		if get(choice) == OptionOthers {
			if v := get(custom); v != "" {
				return v
			}
		}
		return get(choice)
	}

	req := crm.LeadRequest{
		PlatformUserID:  id.PlatformUserID(),
		Platform:        crm.PlatformTelegram,
		CompanyName:     get(keyCompany),
		Sector:          override(keySector, keySectorCustom),
		TransactionType: override(keyTransaction, keyTransactionCustom),
		ClientPOC:       get(keyPOC),
		EmailID:         get(keyEmail),
		PhoneNumber:     get(keyPhone),
		SourceType:      get(keySourceType),
	}
	if req.SourceType == crm.SourceOutbound {
		req.OutboundSource = get(keyOutboundSource)
	} else {
		req.InboundSource = override(keyInboundSource, keyInboundSourceCustom)
	}
	return req
}

func (m *Machine) submit(ctx context.Context, id Identity, sess *state.Session) Reply {
	req := leadRequest(id, sess)

	resp, err := m.backend.CreateLead(ctx, req)
	if err != nil {
		logger.Warn(ctx, "flow", "lead.failed",
			slog.String("status", "error"),
			slog.String("err", err.Error()),
		)
		m.record(ctx, id, journal.ActionLeadSubmit, journal.OutcomeError, errDetail(err))
		return replyText(msgFailure)
	}
	if !resp.Success {
		m.record(ctx, id, journal.ActionLeadSubmit, journal.OutcomeRejected, resp.Message)
		return leadFailed(resp.Message)
	}
	m.record(ctx, id, journal.ActionLeadSubmit, journal.OutcomeOK, req.CompanyName)
	return leadSummary(req, resp.Lead)
}
