package conversation

import (
	"strings"

	"github.com/m3rciful/crmbot/internal/crm"
)

// OptionOthers routes a selection to its free-text step.
const OptionOthers = "Others"

// Options holds the button choices offered by the lead flow.
type Options struct {
	Sectors          []string `yaml:"sectors"`
	TransactionTypes []string `yaml:"transaction_types"`
	InboundSources   []string `yaml:"inbound_sources"`
}

// DefaultOptions returns the stock choices.
func DefaultOptions() Options {
	return Options{
		Sectors: []string{
			"Technology", "Healthcare", "Financial Services", "Real Estate",
			"Manufacturing", "Consumer & Retail", "Energy & Infrastructure", OptionOthers,
		},
		TransactionTypes: []string{
			"M&A", "Fundraising", "Debt Syndication", "Strategic Advisory", "Valuation", OptionOthers,
		},
		InboundSources: []string{
			"LGT", "Website", "Referral", "LinkedIn", "Events", OptionOthers,
		},
	}
}

// Normalize fills empty lists from defaults, trims entries and keeps "Others" last.
func (o Options) Normalize() Options {
	def := DefaultOptions()
	return Options{
		Sectors:          normalizeList(o.Sectors, def.Sectors),
		TransactionTypes: normalizeList(o.TransactionTypes, def.TransactionTypes),
		InboundSources:   normalizeList(o.InboundSources, def.InboundSources),
	}
}

func normalizeList(list, fallback []string) []string {
	out := make([]string, 0, len(list)+1)
	seen := make(map[string]struct{}, len(list))
	for _, v := range list {
		v = strings.TrimSpace(v)
		if v == "" || strings.EqualFold(v, OptionOthers) {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return append([]string(nil), fallback...)
	}
	return append(out, OptionOthers)
}

// sourceTypes are fixed by the backend contract.
var sourceTypes = []string{crm.SourceInbound, crm.SourceOutbound}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
