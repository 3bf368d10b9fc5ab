package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/crmbot/core/telegram/state"
	"github.com/m3rciful/crmbot/internal/crm"
	"github.com/m3rciful/crmbot/internal/journal"
)

type fakeBackend struct {
	mu sync.Mutex

	linked  bool
	infoErr error

	linkResp *crm.LinkResponse
	linkErr  error
	leadResp *crm.LeadResponse
	leadErr  error

	links []crm.LinkRequest
	leads []crm.LeadRequest
	infos int
}

func (b *fakeBackend) UserInfo(_ context.Context, _ string) (*crm.UserInfoResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.infos++
	if b.infoErr != nil {
		return nil, b.infoErr
	}
	if !b.linked {
		return &crm.UserInfoResponse{Envelope: crm.Envelope{Message: "User not linked"}}, nil
	}
	return &crm.UserInfoResponse{Envelope: crm.Envelope{Success: true}, User: &crm.User{Name: "Alice"}}, nil
}

func (b *fakeBackend) LinkAccount(_ context.Context, req crm.LinkRequest) (*crm.LinkResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.links = append(b.links, req)
	if b.linkErr != nil {
		return nil, b.linkErr
	}
	if b.linkResp != nil {
		return b.linkResp, nil
	}
	return &crm.LinkResponse{Envelope: crm.Envelope{Success: true}, User: &crm.User{Name: "Alice"}}, nil
}

func (b *fakeBackend) CreateLead(_ context.Context, req crm.LeadRequest) (*crm.LeadResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.leads = append(b.leads, req)
	if b.leadErr != nil {
		return nil, b.leadErr
	}
	if b.leadResp != nil {
		return b.leadResp, nil
	}
	return &crm.LeadResponse{Envelope: crm.Envelope{Success: true}}, nil
}

func (b *fakeBackend) Stats(_ context.Context, _ string) (*crm.StatsResponse, error) {
	return &crm.StatsResponse{
		Envelope: crm.Envelope{Success: true},
		Stats:    &crm.Stats{TotalLeads: 5, ByStatus: crm.StatusCounts{InitialDiscussion: 2, NDA: 2, Engagement: 1}, Converted: 1},
		User:     &crm.User{Name: "Alice"},
	}, nil
}

type fakeJournal struct {
	entries []journal.Entry
	err     error
}

func (j *fakeJournal) Record(_ context.Context, e journal.Entry) error {
	j.entries = append(j.entries, e)
	return j.err
}

var alice = Identity{UserID: 42, Username: "alice"}

func newTestMachine(t *testing.T, b *fakeBackend) (*Machine, *state.MemoryManager, *fakeJournal) {
	t.Helper()
	sessions := state.NewMemoryManager(state.MemoryOptions{})
	j := &fakeJournal{}
	m := NewMachine(Config{Sessions: sessions, Backend: b, Journal: j})
	return m, sessions, j
}

func text(m *Machine, v string) Reply {
	return m.Handle(context.Background(), alice, TextEvent(v))
}

func tap(m *Machine, step Step, v string) Reply {
	return m.Handle(context.Background(), alice, CallbackEvent(string(step), v))
}

func command(m *Machine, name string) Reply {
	return m.Command(context.Background(), alice, name)
}

func TestLinkScenario(t *testing.T) {
	b := &fakeBackend{}
	m, sessions, j := newTestMachine(t, b)

	r := command(m, "/link")
	assert.Equal(t, promptLinkEmail, r.Text)
	assert.Equal(t, StepLinkEmail, sessions.GetState(alice.UserID))

	r = text(m, "alice@example.com")
	assert.Equal(t, promptLinkPassword, r.Text)

	r = text(m, "secret123")
	assert.Contains(t, r.Text, "Account linked")
	assert.Contains(t, r.Text, "Alice")

	require.Len(t, b.links, 1)
	assert.Equal(t, crm.LinkRequest{
		Platform:         crm.PlatformTelegram,
		PlatformUserID:   "42",
		PlatformUsername: "alice",
		Email:            "alice@example.com",
		Password:         "secret123",
	}, b.links[0])
	assert.False(t, sessions.InProgress(alice.UserID))

	require.Len(t, j.entries, 1)
	assert.Equal(t, journal.ActionLink, j.entries[0].Action)
	assert.Equal(t, journal.OutcomeOK, j.entries[0].Outcome)
	assert.NotContains(t, j.entries[0].Detail, "secret123")
}

func TestLinkRejectedSurfacesBackendMessage(t *testing.T) {
	b := &fakeBackend{linkResp: &crm.LinkResponse{Envelope: crm.Envelope{Message: "Invalid email or password"}}}
	m, sessions, j := newTestMachine(t, b)

	command(m, "/link")
	text(m, "alice@example.com")
	r := text(m, "wrong")

	assert.Contains(t, r.Text, "Invalid email or password")
	assert.Contains(t, r.Text, "/link")
	assert.False(t, sessions.InProgress(alice.UserID))
	require.Len(t, j.entries, 1)
	assert.Equal(t, journal.OutcomeRejected, j.entries[0].Outcome)
}

func TestLinkTransportFailure(t *testing.T) {
	b := &fakeBackend{linkErr: errors.New("dial tcp: connection refused")}
	m, sessions, j := newTestMachine(t, b)

	command(m, "/link")
	text(m, "alice@example.com")
	r := text(m, "secret123")

	assert.Equal(t, msgFailure, r.Text)
	assert.False(t, sessions.InProgress(alice.UserID))
	assert.Len(t, b.links, 1)
	require.Len(t, j.entries, 1)
	assert.Equal(t, journal.OutcomeError, j.entries[0].Outcome)
}

func TestNewLeadScenario(t *testing.T) {
	b := &fakeBackend{linked: true}
	m, sessions, j := newTestMachine(t, b)

	r := command(m, "/newlead")
	assert.Contains(t, r.Text, "company")
	text(m, "Acme Co")

	r = tap(m, StepLeadSector, "Healthcare")
	require.NotNil(t, r.Keyboard)
	assert.Equal(t, string(StepLeadTransaction), r.Keyboard.Key)

	tap(m, StepLeadTransaction, "M&A")
	text(m, "Jane Doe")
	text(m, "jane@acme.com")
	r = text(m, "555-1234")
	require.NotNil(t, r.Keyboard)
	assert.Equal(t, sourceTypes, r.Keyboard.Options)

	tap(m, StepLeadSourceType, "Inbound")
	r = tap(m, StepLeadInboundSource, "LGT")
	assert.True(t, r.Markdown)
	assert.Contains(t, r.Text, "Lead created successfully")

	require.Len(t, b.leads, 1)
	got := b.leads[0]
	assert.Equal(t, "Acme Co", got.CompanyName)
	assert.Equal(t, "Healthcare", got.Sector)
	assert.Equal(t, "M&A", got.TransactionType)
	assert.Equal(t, "Jane Doe", got.ClientPOC)
	assert.Equal(t, "jane@acme.com", got.EmailID)
	assert.Equal(t, "555-1234", got.PhoneNumber)
	assert.Equal(t, "Inbound", got.SourceType)
	assert.Equal(t, "LGT", got.InboundSource)
	assert.Empty(t, got.OutboundSource)
	assert.Equal(t, "42", got.PlatformUserID)
	assert.Equal(t, crm.PlatformTelegram, got.Platform)

	assert.False(t, sessions.InProgress(alice.UserID))
	require.Len(t, j.entries, 1)
	assert.Equal(t, journal.ActionLeadSubmit, j.entries[0].Action)
	assert.Equal(t, "Acme Co", j.entries[0].Detail)
}

func TestOthersRoutesToCustomSteps(t *testing.T) {
	b := &fakeBackend{linked: true}
	m, sessions, _ := newTestMachine(t, b)

	command(m, "/newlead")
	text(m, "Globex")

	r := tap(m, StepLeadSector, OptionOthers)
	assert.Nil(t, r.Keyboard)
	assert.Equal(t, StepLeadSectorCustom, sessions.GetState(alice.UserID))
	text(m, "Aerospace")

	tap(m, StepLeadTransaction, OptionOthers)
	assert.Equal(t, StepLeadTransactionCustom, sessions.GetState(alice.UserID))
	text(m, "Carve-out")
	assert.Equal(t, StepLeadPOC, sessions.GetState(alice.UserID))

	text(m, "Hank Scorpio")
	text(m, "hank@globex.com")
	text(m, "555-0000")
	tap(m, StepLeadSourceType, crm.SourceInbound)

	tap(m, StepLeadInboundSource, OptionOthers)
	assert.Equal(t, StepLeadInboundCustom, sessions.GetState(alice.UserID))
	assert.Empty(t, b.leads)
	text(m, "Podcast")

	require.Len(t, b.leads, 1)
	got := b.leads[0]
	assert.Equal(t, "Aerospace", got.Sector)
	assert.Equal(t, "Carve-out", got.TransactionType)
	assert.Equal(t, "Podcast", got.InboundSource)
	assert.Empty(t, got.OutboundSource)
}

func TestOutboundSkipsInboundSelection(t *testing.T) {
	b := &fakeBackend{linked: true}
	m, sessions, _ := newTestMachine(t, b)

	command(m, "/newlead")
	text(m, "Initech")
	tap(m, StepLeadSector, "Technology")
	tap(m, StepLeadTransaction, "Valuation")
	text(m, "Bill Lumbergh")
	text(m, "bill@initech.com")
	text(m, "555-9999")

	r := tap(m, StepLeadSourceType, crm.SourceOutbound)
	assert.Nil(t, r.Keyboard)
	assert.Equal(t, StepLeadOutboundSource, sessions.GetState(alice.UserID))

	r = tap(m, StepLeadInboundSource, "LGT")
	assert.Equal(t, msgExpired, r.Text)

	text(m, "Cold email campaign")
	require.Len(t, b.leads, 1)
	assert.Equal(t, crm.SourceOutbound, b.leads[0].SourceType)
	assert.Equal(t, "Cold email campaign", b.leads[0].OutboundSource)
	assert.Empty(t, b.leads[0].InboundSource)
}

func TestNewLeadRequiresLink(t *testing.T) {
	b := &fakeBackend{}
	m, sessions, j := newTestMachine(t, b)

	r := command(m, "/newlead")
	assert.Equal(t, msgNotLinked, r.Text)
	assert.False(t, sessions.InProgress(alice.UserID))

	r = text(m, "Acme Co")
	assert.Equal(t, msgNudge, r.Text)
	assert.Empty(t, b.leads)
	require.Len(t, j.entries, 1)
	assert.Equal(t, journal.ActionLeadRefuse, j.entries[0].Action)
}

func TestNewLeadCheckFailureClearsSession(t *testing.T) {
	b := &fakeBackend{infoErr: errors.New("timeout")}
	m, sessions, _ := newTestMachine(t, b)

	command(m, "/link")
	require.True(t, sessions.InProgress(alice.UserID))

	r := command(m, "/newlead")
	assert.Equal(t, msgFailure, r.Text)
	assert.False(t, sessions.InProgress(alice.UserID))
}

func TestReplayAfterSubmitNudges(t *testing.T) {
	b := &fakeBackend{linked: true}
	m, _, _ := newTestMachine(t, b)

	command(m, "/newlead")
	text(m, "Initech")
	tap(m, StepLeadSector, "Technology")
	tap(m, StepLeadTransaction, "Valuation")
	text(m, "Bill")
	text(m, "bill@initech.com")
	text(m, "555")
	tap(m, StepLeadSourceType, crm.SourceOutbound)
	text(m, "Conference")
	require.Len(t, b.leads, 1)

	r := text(m, "Conference")
	assert.Equal(t, msgNudge, r.Text)
	assert.Len(t, b.leads, 1)
}

func TestLeadBusinessFailure(t *testing.T) {
	b := &fakeBackend{linked: true, leadResp: &crm.LeadResponse{Envelope: crm.Envelope{Message: "Duplicate lead"}}}
	m, sessions, j := newTestMachine(t, b)

	command(m, "/newlead")
	text(m, "Initech")
	tap(m, StepLeadSector, "Technology")
	tap(m, StepLeadTransaction, "Valuation")
	text(m, "Bill")
	text(m, "bill@initech.com")
	text(m, "555")
	tap(m, StepLeadSourceType, crm.SourceOutbound)
	r := text(m, "Conference")

	assert.Contains(t, r.Text, "Duplicate lead")
	assert.Contains(t, r.Text, "/newlead")
	assert.False(t, sessions.InProgress(alice.UserID))
	require.Len(t, j.entries, 1)
	assert.Equal(t, journal.OutcomeRejected, j.entries[0].Outcome)
}

func TestCancel(t *testing.T) {
	b := &fakeBackend{linked: true}
	m, sessions, _ := newTestMachine(t, b)

	assert.Equal(t, msgNothingCancel, command(m, "/cancel").Text)

	command(m, "/newlead")
	text(m, "Acme Co")
	require.True(t, sessions.InProgress(alice.UserID))

	assert.Equal(t, msgCancelled, command(m, "/cancel").Text)
	assert.False(t, sessions.InProgress(alice.UserID))
	assert.Zero(t, sessions.Len())
}

func TestCancelFromEveryStep(t *testing.T) {
	b := &fakeBackend{linked: true}
	m, sessions, _ := newTestMachine(t, b)

	for _, step := range append(append([]Step{}, LinkSteps...), LeadSteps...) {
		sessions.Start(alice.UserID, step)
		assert.Equal(t, msgCancelled, command(m, "/cancel").Text, step)
		assert.False(t, sessions.InProgress(alice.UserID), step)
	}
}

func TestCommandsResetOrClear(t *testing.T) {
	b := &fakeBackend{linked: true}
	m, sessions, _ := newTestMachine(t, b)

	command(m, "/newlead")
	text(m, "Acme Co")
	command(m, "/link")
	assert.Equal(t, StepLinkEmail, sessions.GetState(alice.UserID))

	command(m, "/newlead")
	s, err := sessions.Get(alice.UserID)
	require.NoError(t, err)
	assert.Equal(t, StepLeadCompany, s.State)
	assert.Empty(t, s.Data)

	for _, name := range []string{"/start", "/help", "/stats"} {
		command(m, "/link")
		command(m, name)
		assert.False(t, sessions.InProgress(alice.UserID), name)
	}
}

func TestCommandNormalization(t *testing.T) {
	b := &fakeBackend{linked: true}
	m, sessions, _ := newTestMachine(t, b)

	command(m, "/LINK@crm_lead_bot extra")
	assert.Equal(t, StepLinkEmail, sessions.GetState(alice.UserID))
	assert.Equal(t, msgNudge, command(m, "/unknown").Text)
}

func TestStartGreetsLinkedUser(t *testing.T) {
	m, _, _ := newTestMachine(t, &fakeBackend{linked: true})
	r := command(m, "/start")
	assert.Contains(t, r.Text, "Welcome back, Alice")

	m, _, _ = newTestMachine(t, &fakeBackend{})
	r = command(m, "/start")
	assert.Contains(t, r.Text, "/link")
	assert.NotContains(t, r.Text, "Welcome back")
}

func TestStats(t *testing.T) {
	m, _, _ := newTestMachine(t, &fakeBackend{linked: true})
	r := command(m, "/stats")
	assert.True(t, r.Markdown)
	assert.Contains(t, r.Text, "Total leads: *5*")
	assert.Contains(t, r.Text, "NDA: 2")
	assert.Contains(t, r.Text, "Converted to clients: *1*")
}

func TestCallbackWithoutSessionExpires(t *testing.T) {
	m, sessions, _ := newTestMachine(t, &fakeBackend{linked: true})

	r := tap(m, StepLeadSector, "Healthcare")
	assert.Equal(t, msgExpired, r.Text)
	assert.Zero(t, sessions.Len())
}

func TestStaleKeyboardExpires(t *testing.T) {
	b := &fakeBackend{linked: true}
	m, sessions, _ := newTestMachine(t, b)

	command(m, "/newlead")
	text(m, "Acme Co")
	tap(m, StepLeadSector, "Healthcare")
	require.Equal(t, StepLeadTransaction, sessions.GetState(alice.UserID))

	r := tap(m, StepLeadSector, "Technology")
	assert.Equal(t, msgExpired, r.Text)
	assert.Equal(t, StepLeadTransaction, sessions.GetState(alice.UserID))

	command(m, "/link")
	r = tap(m, StepLinkEmail, "x")
	assert.Equal(t, msgExpired, r.Text)
	assert.Equal(t, StepLinkEmail, sessions.GetState(alice.UserID))
}

func TestTextAtButtonStepReprompts(t *testing.T) {
	m, sessions, _ := newTestMachine(t, &fakeBackend{linked: true})

	command(m, "/newlead")
	text(m, "Acme Co")
	r := text(m, "Healthcare")
	assert.True(t, strings.HasPrefix(r.Text, msgChooseOption))
	require.NotNil(t, r.Keyboard)
	assert.Equal(t, StepLeadSector, sessions.GetState(alice.UserID))

	r = tap(m, StepLeadSector, "Not a sector")
	assert.True(t, strings.HasPrefix(r.Text, msgChooseOption))
	assert.Equal(t, StepLeadSector, sessions.GetState(alice.UserID))
}

func TestEmptyTextReprompts(t *testing.T) {
	m, sessions, _ := newTestMachine(t, &fakeBackend{linked: true})

	command(m, "/newlead")
	r := text(m, "   ")
	assert.True(t, strings.HasPrefix(r.Text, msgEmptyValue))
	assert.Equal(t, StepLeadCompany, sessions.GetState(alice.UserID))
}

func TestTextOutsideFlowNudges(t *testing.T) {
	m, sessions, _ := newTestMachine(t, &fakeBackend{})
	assert.Equal(t, msgNudge, text(m, "hello").Text)
	assert.Zero(t, sessions.Len())
}

func TestUnknownStepNudgesAndKeepsSession(t *testing.T) {
	m, sessions, _ := newTestMachine(t, &fakeBackend{})
	sessions.Start(alice.UserID, Step("retired_step"))

	assert.Equal(t, msgNudge, text(m, "hello").Text)
	assert.Equal(t, Step("retired_step"), sessions.GetState(alice.UserID))
}

func TestEveryStepHasPromptAndFlow(t *testing.T) {
	m, _, _ := newTestMachine(t, &fakeBackend{})
	for _, step := range LinkSteps {
		assert.Equal(t, FlowLink, FlowOf(step), step)
		assert.NotEqual(t, msgNudge, m.prompt(step).Text, step)
	}
	for _, step := range LeadSteps {
		assert.Equal(t, FlowLead, FlowOf(step), step)
		r := m.prompt(step)
		assert.NotEqual(t, msgNudge, r.Text, step)
		assert.Equal(t, AcceptsCallback(step), r.Keyboard != nil, step)
	}
}

func TestJournalFailureDoesNotChangeReply(t *testing.T) {
	b := &fakeBackend{}
	sessions := state.NewMemoryManager(state.MemoryOptions{})
	m := NewMachine(Config{Sessions: sessions, Backend: b, Journal: &fakeJournal{err: errors.New("disk full")}})

	m.Command(context.Background(), alice, "/link")
	m.Handle(context.Background(), alice, TextEvent("alice@example.com"))
	r := m.Handle(context.Background(), alice, TextEvent("secret123"))
	assert.Contains(t, r.Text, "Account linked")
}

func TestConcurrentSubmitCallsBackendOnce(t *testing.T) {
	b := &fakeBackend{linked: true}
	m, _, _ := newTestMachine(t, b)

	command(m, "/newlead")
	text(m, "Initech")
	tap(m, StepLeadSector, "Technology")
	tap(m, StepLeadTransaction, "Valuation")
	text(m, "Bill")
	text(m, "bill@initech.com")
	text(m, "555")
	tap(m, StepLeadSourceType, crm.SourceInbound)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tap(m, StepLeadInboundSource, "LGT")
		}()
	}
	wg.Wait()
	assert.Len(t, b.leads, 1)
}
