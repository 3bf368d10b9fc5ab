package crm

// PlatformTelegram is the platform tag sent with every bot request.
const PlatformTelegram = "telegram"

// Source types accepted by the lead endpoint.
const (
	SourceInbound  = "Inbound"
	SourceOutbound = "Outbound"
)

// User is the CRM account bound to a platform identity.
type User struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Envelope is the common part of every backend answer.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// UserInfoResponse answers the link check.
type UserInfoResponse struct {
	Envelope
	User *User `json:"user,omitempty"`
}

// LinkRequest binds a platform identity to a CRM account.
type LinkRequest struct {
	Platform         string `json:"platform"`
	PlatformUserID   string `json:"platformUserId"`
	PlatformUsername string `json:"platformUsername"`
	Email            string `json:"email"`
	Password         string `json:"password"`
}

// LinkResponse answers LinkAccount.
type LinkResponse struct {
	Envelope
	User *User `json:"user,omitempty"`
}

// LeadRequest is the payload of the bot lead-creation endpoint.
// Exactly one of InboundSource and OutboundSource is set.
type LeadRequest struct {
	PlatformUserID  string `json:"platformUserId"`
	Platform        string `json:"platform"`
	CompanyName     string `json:"companyName"`
	Sector          string `json:"sector"`
	TransactionType string `json:"transactionType"`
	ClientPOC       string `json:"clientPoc"`
	EmailID         string `json:"emailId"`
	PhoneNumber     string `json:"phoneNumber"`
	SourceType      string `json:"sourceType"`
	InboundSource   string `json:"inboundSource,omitempty"`
	OutboundSource  string `json:"outboundSource,omitempty"`
}

// Lead is the record returned after creation.
type Lead struct {
	ID                    string `json:"id,omitempty"`
	CompanyName           string `json:"companyName"`
	Sector                string `json:"sector"`
	CustomSector          string `json:"customSector,omitempty"`
	TransactionType       string `json:"transactionType"`
	CustomTransactionType string `json:"customTransactionType,omitempty"`
	ClientPOC             string `json:"clientPoc"`
	EmailID               string `json:"emailId"`
	PhoneNumber           string `json:"phoneNumber"`
	SourceType            string `json:"sourceType"`
	InboundSource         string `json:"inboundSource,omitempty"`
	OutboundSource        string `json:"outboundSource,omitempty"`
	Status                string `json:"status"`
}

// DisplaySector prefers the custom sector when the backend reports one.
func (l *Lead) DisplaySector() string {
	if l.CustomSector != "" {
		return l.CustomSector
	}
	return l.Sector
}

// DisplayTransaction prefers the custom transaction type when present.
func (l *Lead) DisplayTransaction() string {
	if l.CustomTransactionType != "" {
		return l.CustomTransactionType
	}
	return l.TransactionType
}

// LeadResponse answers CreateLead.
type LeadResponse struct {
	Envelope
	Lead *Lead `json:"lead,omitempty"`
}

// StatusCounts breaks leads down by pipeline status.
type StatusCounts struct {
	InitialDiscussion int `json:"initialDiscussion"`
	NDA               int `json:"nda"`
	Engagement        int `json:"engagement"`
}

// Stats summarises the leads of a linked user.
type Stats struct {
	TotalLeads int          `json:"totalLeads"`
	ByStatus   StatusCounts `json:"byStatus"`
	Converted  int          `json:"converted"`
}

// StatsResponse answers Stats.
type StatsResponse struct {
	Envelope
	Stats *Stats `json:"stats,omitempty"`
	User  *User  `json:"user,omitempty"`
}
