package conversation

import (
	"fmt"
	"strings"

	"github.com/m3rciful/crmbot/core/telegram/format"
	"github.com/m3rciful/crmbot/internal/crm"
)

// Keyboard is a set of inline choices. Key is the callback unique and equals
// the step that rendered it.
type Keyboard struct {
	Key     string
	Options []string
	PerRow  int
}

// Reply is what the bot sends back for one event.
type Reply struct {
	Text     string
	Markdown bool
	Keyboard *Keyboard
}

const (
	msgHelp = "🤖 *CRM Lead Bot*\n\n" +
		"/link - link your Telegram to your CRM account\n" +
		"/newlead - capture a new lead\n" +
		"/stats - your lead statistics\n" +
		"/cancel - abort the current operation\n" +
		"/help - show this message"

	msgNudge         = "I didn't catch that. Use /newlead to add a lead or /help to see all commands."
	msgExpired       = "⌛ This session has expired. Use /newlead or /link to start again."
	msgCancelled     = "❌ Operation cancelled."
	msgNothingCancel = "There is nothing to cancel."
	msgFailure       = "⚠️ Something went wrong while talking to the CRM. Please try again later."
	msgNotLinked     = "🔗 Your Telegram account is not linked yet. Use /link first."
	msgChooseOption  = "Please choose one of the options below."
	msgEmptyValue    = "This field cannot be empty."

	promptLinkEmail    = "📧 Enter the email of your CRM account:"
	promptLinkPassword = "🔑 Enter your CRM password:"
)

func replyText(text string) Reply { return Reply{Text: text} }

func replyMD(text string) Reply { return Reply{Text: text, Markdown: true} }

func welcome(name string) Reply {
	if name == "" {
		return replyMD("👋 *Welcome!*\n\nLink your CRM account with /link to start capturing leads.\n\n" + msgHelp)
	}
	return replyMD(fmt.Sprintf("👋 *Welcome back, %s!*\n\n%s", format.MD(name), msgHelp))
}

// prompt renders the question of a step.
func (m *Machine) prompt(step Step) Reply {
	switch step {
	case StepLinkEmail:
		return replyText(promptLinkEmail)
	case StepLinkPassword:
		return replyText(promptLinkPassword)
	case StepLeadCompany:
		return replyText("🏢 Enter the company name:")
	case StepLeadSector:
		return m.choice(step, "🏭 Select the sector:", m.opts.Sectors, 2)
	case StepLeadSectorCustom:
		return replyText("✏️ Enter the sector:")
	case StepLeadTransaction:
		return m.choice(step, "💼 Select the transaction type:", m.opts.TransactionTypes, 2)
	case StepLeadTransactionCustom:
		return replyText("✏️ Enter the transaction type:")
	case StepLeadPOC:
		return replyText("👤 Enter the client point of contact:")
	case StepLeadEmail:
		return replyText("📧 Enter the contact email:")
	case StepLeadPhone:
		return replyText("📞 Enter the contact phone number:")
	case StepLeadSourceType:
		return m.choice(step, "📥 Is this lead inbound or outbound?", sourceTypes, 2)
	case StepLeadInboundSource:
		return m.choice(step, "🔎 Select the inbound source:", m.opts.InboundSources, 2)
	case StepLeadInboundCustom:
		return replyText("✏️ Enter the inbound source:")
	case StepLeadOutboundSource:
		return replyText("📤 Describe the outbound source:")
	}
	return replyText(msgNudge)
}

func (m *Machine) choice(step Step, text string, options []string, perRow int) Reply {
	return Reply{
		Text:     text,
		Keyboard: &Keyboard{Key: string(step), Options: options, PerRow: perRow},
	}
}

// reprompt prefixes the step question with a short correction.
func (m *Machine) reprompt(step Step, note string) Reply {
	r := m.prompt(step)
	r.Text = note + "\n\n" + r.Text
	return r
}

func linkSucceeded(user *crm.User) Reply {
	name := "your account"
	if user != nil && user.Name != "" {
		name = user.Name
	}
	return replyMD(fmt.Sprintf("✅ *Account linked!*\n\nYou are now linked as *%s*.\nUse /newlead to capture a lead.", format.MD(name)))
}

func linkFailed(message string) Reply {
	if strings.TrimSpace(message) == "" {
		message = "Linking failed."
	}
	return replyText(fmt.Sprintf("❌ %s\n\nUse /link to try again.", message))
}

func leadFailed(message string) Reply {
	if strings.TrimSpace(message) == "" {
		message = "The lead could not be created."
	}
	return replyText(fmt.Sprintf("❌ %s\n\nUse /newlead to start again.", message))
}

// leadSummary renders the created lead, falling back to the submitted values.
func leadSummary(req crm.LeadRequest, lead *crm.Lead) Reply {
	if lead == nil {
		lead = &crm.Lead{
			CompanyName:     req.CompanyName,
			Sector:          req.Sector,
			TransactionType: req.TransactionType,
			ClientPOC:       req.ClientPOC,
			EmailID:         req.EmailID,
			PhoneNumber:     req.PhoneNumber,
			SourceType:      req.SourceType,
			InboundSource:   req.InboundSource,
			OutboundSource:  req.OutboundSource,
		}
	}
	source := lead.SourceType
	switch {
	case lead.InboundSource != "":
		source += " (" + lead.InboundSource + ")"
	case lead.OutboundSource != "":
		source += " (" + lead.OutboundSource + ")"
	}
	status := lead.Status
	if status == "" {
		status = "—"
	}

	var b strings.Builder
	b.WriteString("✅ *Lead created successfully!*\n\n")
	fmt.Fprintf(&b, "🏢 *Company:* %s\n", format.MD(lead.CompanyName))
	fmt.Fprintf(&b, "🏭 *Sector:* %s\n", format.MD(lead.DisplaySector()))
	fmt.Fprintf(&b, "💼 *Transaction:* %s\n", format.MD(lead.DisplayTransaction()))
	fmt.Fprintf(&b, "👤 *POC:* %s\n", format.MD(lead.ClientPOC))
	fmt.Fprintf(&b, "📧 *Email:* %s\n", format.MD(lead.EmailID))
	fmt.Fprintf(&b, "📞 *Phone:* %s\n", format.MD(lead.PhoneNumber))
	fmt.Fprintf(&b, "📥 *Source:* %s\n", format.MD(source))
	fmt.Fprintf(&b, "📊 *Status:* %s", format.MD(status))
	return replyMD(b.String())
}

func statsSummary(resp *crm.StatsResponse) Reply {
	var st crm.Stats
	if resp.Stats != nil {
		st = *resp.Stats
	}
	title := "📊 *Your lead statistics*"
	if resp.User != nil && resp.User.Name != "" {
		title = fmt.Sprintf("📊 *Lead statistics for %s*", format.MD(resp.User.Name))
	}
	return replyMD(fmt.Sprintf("%s\n\nTotal leads: *%d*\n• Initial Discussion: %d\n• NDA: %d\n• Engagement: %d\n\n✅ Converted to clients: *%d*",
		title, st.TotalLeads, st.ByStatus.InitialDiscussion, st.ByStatus.NDA, st.ByStatus.Engagement, st.Converted))
}
