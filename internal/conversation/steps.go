package conversation

import "github.com/m3rciful/crmbot/core/telegram/state"

// Step is a position in the linking or the lead-capture flow.
type Step = state.State

// Linking flow.
const (
	StepLinkEmail    Step = "link_email"
	StepLinkPassword Step = "link_password"
)

// Lead-capture flow.
const (
	StepLeadCompany           Step = "lead_company"
	StepLeadSector            Step = "lead_sector"
	StepLeadSectorCustom      Step = "lead_sector_custom"
	StepLeadTransaction       Step = "lead_transaction"
	StepLeadTransactionCustom Step = "lead_transaction_custom"
	StepLeadPOC               Step = "lead_poc"
	StepLeadEmail             Step = "lead_email"
	StepLeadPhone             Step = "lead_phone"
	StepLeadSourceType        Step = "lead_source_type"
	StepLeadInboundSource     Step = "lead_inbound_source"
	StepLeadInboundCustom     Step = "lead_inbound_source_custom"
	StepLeadOutboundSource    Step = "lead_outbound_source"
)

// Flow names the conversation a step belongs to.
type Flow string

const (
	FlowNone Flow = ""
	FlowLink Flow = "link"
	FlowLead Flow = "lead"
)

// LinkSteps lists the linking flow in order.
var LinkSteps = []Step{StepLinkEmail, StepLinkPassword}

// LeadSteps lists every lead-capture step.
var LeadSteps = []Step{
	StepLeadCompany,
	StepLeadSector,
	StepLeadSectorCustom,
	StepLeadTransaction,
	StepLeadTransactionCustom,
	StepLeadPOC,
	StepLeadEmail,
	StepLeadPhone,
	StepLeadSourceType,
	StepLeadInboundSource,
	StepLeadInboundCustom,
	StepLeadOutboundSource,
}

// FlowOf returns the flow owning step.
func FlowOf(step Step) Flow {
	switch step {
	case StepLinkEmail, StepLinkPassword:
		return FlowLink
	case StepLeadCompany, StepLeadSector, StepLeadSectorCustom, StepLeadTransaction,
		StepLeadTransactionCustom, StepLeadPOC, StepLeadEmail, StepLeadPhone,
		StepLeadSourceType, StepLeadInboundSource, StepLeadInboundCustom, StepLeadOutboundSource:
		return FlowLead
	}
	return FlowNone
}

// AcceptsCallback reports whether step waits for a button selection.
func AcceptsCallback(step Step) bool {
	switch step {
	case StepLeadSector, StepLeadTransaction, StepLeadSourceType, StepLeadInboundSource:
		return true
	}
	return false
}

// Session data keys.
const (
	keyLinkEmail           = "email"
	keyLinkPassword        = "password"
	keyCompany             = "company"
	keySector              = "sector"
	keySectorCustom        = "sector_custom"
	keyTransaction         = "transaction"
	keyTransactionCustom   = "transaction_custom"
	keyPOC                 = "poc"
	keyEmail               = "contact_email"
	keyPhone               = "phone"
	keySourceType          = "source_type"
	keyInboundSource       = "inbound_source"
	keyInboundSourceCustom = "inbound_source_custom"
	keyOutboundSource      = "outbound_source"
)

// CallbackSteps lists the steps that render a keyboard, in flow order.
// Each is also the unique key of its buttons.
var CallbackSteps = []Step{StepLeadSector, StepLeadTransaction, StepLeadSourceType, StepLeadInboundSource}
