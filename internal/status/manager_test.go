package status

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pomora/pomora/internal/config"
	"github.com/pomora/pomora/internal/discord"
	"github.com/pomora/pomora/internal/render"
	"github.com/pomora/pomora/internal/timer"
)

type fakeMessageRepo struct {
	mu      sync.Mutex
	stored  map[string]string
	getErr  error
	deletes int
	sets    int
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{stored: make(map[string]string)}
}

func (r *fakeMessageRepo) GetActiveMessage(_ context.Context, channelID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return "", r.getErr
	}
	return r.stored[channelID], nil
}

func (r *fakeMessageRepo) SetActiveMessage(_ context.Context, channelID, _, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets++
	r.stored[channelID] = messageID
	return nil
}

func (r *fakeMessageRepo) DeleteActiveMessage(_ context.Context, channelID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes++
	delete(r.stored, channelID)
	return nil
}

// fakeDiscord records a strictly sequential timeline of messaging calls so
// tests can assert FIFO ordering across overlapping invocations.
type fakeDiscord struct {
	mu          sync.Mutex
	timeline    []string
	sendGate    chan struct{}
	editErr     error
	channelName string
	renames     []string
	deleted     []string
	nextID      int
}

func (f *fakeDiscord) takeSendGate() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := f.sendGate
	f.sendGate = nil
	return gate
}

func (f *fakeDiscord) record(entry string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeline = append(f.timeline, entry)
}

func (f *fakeDiscord) calls(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, entry := range f.timeline {
		if strings.HasPrefix(entry, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeDiscord) Connect(_ context.Context) error { return nil }
func (f *fakeDiscord) Close() error                    { return nil }
func (f *fakeDiscord) Run() error                      { return nil }

func (f *fakeDiscord) RegisterVoiceStateUpdateHandler(_ func(discord.VoiceStateEvent)) {}
func (f *fakeDiscord) RegisterButtonHandler(_ func(discord.ButtonEvent))               {}
func (f *fakeDiscord) RegisterSettingsModalHandler(_ func(discord.SettingsModalEvent)) {}
func (f *fakeDiscord) RegisterMessageHandler(_ func(discord.MessageEvent))             {}
func (f *fakeDiscord) RegisterGuildJoinHandler(_ func(discord.GuildJoinEvent))         {}

func (f *fakeDiscord) GetBotUserID() (string, error) { return "bot-self", nil }

func (f *fakeDiscord) SendStatusMessage(channelID string, _ discord.StatusMessage) (string, error) {
	if gate := f.takeSendGate(); gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("msg-%d", f.nextID)
	f.timeline = append(f.timeline, "send:"+channelID+":"+id)
	return id, nil
}

func (f *fakeDiscord) EditStatusMessage(channelID, messageID string, _ discord.StatusMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeline = append(f.timeline, "edit:"+channelID+":"+messageID)
	return f.editErr
}

func (f *fakeDiscord) DeleteMessage(channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	f.timeline = append(f.timeline, "delete:"+channelID+":"+messageID)
	return nil
}

func (f *fakeDiscord) SendChannelMessage(_, _ string) error             { return nil }
func (f *fakeDiscord) SendEmbedMessage(_ string, _ discord.Embed) error { return nil }
func (f *fakeDiscord) SendChannelMessageWithFile(_ discord.FileMessage) error {
	return nil
}

func (f *fakeDiscord) RenameChannel(channelID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renames = append(f.renames, name)
	f.channelName = name
	f.timeline = append(f.timeline, "rename:"+channelID+":"+name)
	return nil
}

func (f *fakeDiscord) ChannelName(_ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.channelName == "" {
		return "Study Room", nil
	}
	return f.channelName, nil
}

func (f *fakeDiscord) GuildName(guildID string) (string, error) { return guildID, nil }
func (f *fakeDiscord) ListGuildIDs() ([]string, error)          { return nil, nil }

func (f *fakeDiscord) ResolveMember(_, userID string) (discord.MemberInfo, error) {
	return discord.MemberInfo{UserID: userID, DisplayName: userID}, nil
}

func (f *fakeDiscord) GetUserVoiceChannelID(_, _ string) (string, error) { return "", nil }
func (f *fakeDiscord) ListVoiceChannelParticipants(_, _ string) ([]discord.VoiceParticipant, error) {
	return nil, nil
}
func (f *fakeDiscord) DisconnectMember(_, _ string) error           { return nil }
func (f *fakeDiscord) FallbackTextChannel(_ string) (string, error) { return "", nil }
func (f *fakeDiscord) JoinVoiceChannel(_, _ string) (discord.VoiceConnection, error) {
	return nil, errors.New("no voice in tests")
}

type fakeRenderer struct {
	mu      sync.Mutex
	renders int
	err     error
}

func (r *fakeRenderer) StatusCard(_ context.Context, _ render.StatusCardInput) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.renders++
	return []byte{0x89, 'P', 'N', 'G'}, nil
}

func (r *fakeRenderer) LeaderboardCard(_ context.Context, _ render.LeaderboardCardInput) ([]byte, error) {
	return []byte{0x89, 'P', 'N', 'G'}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Env:                 "test",
		DiscordToken:        "token",
		DatabaseURL:         "db",
		RenderServiceURL:    "render",
		HealthPort:          8080,
		FocusMinutes:        50,
		BreakMinutes:        10,
		InactivityThreshold: 4,
		RenameThrottle:      5 * time.Minute,
		VoiceReadyTimeout:   10 * time.Second,
		PlaybackTimeout:     10 * time.Second,
		ReportHour:          20,
		CommandPrefix:       "!",
	}
}

func newTestManager(t *testing.T) (*Manager, *timer.Service, *fakeDiscord, *fakeMessageRepo, *fakeRenderer, *clockwork.FakeClock) {
	t.Helper()
	cfg := testConfig()
	clock := clockwork.NewFakeClock()
	timers := timer.NewService(cfg, clock)
	dc := &fakeDiscord{}
	repo := newFakeMessageRepo()
	renderer := &fakeRenderer{}
	return NewManager(cfg, timers, repo, dc, renderer, clock), timers, dc, repo, renderer, clock
}

func TestUpdate_NoRoomIsNoOp(t *testing.T) {
	m, _, dc, _, _, _ := newTestManager(t)

	<-m.UpdateStatusMessage("guild-1", "vc-404", true, false)

	if len(dc.timeline) != 0 {
		t.Fatalf("expected no discord calls, got %v", dc.timeline)
	}
}

func TestUpdate_SendsNewMessageAndPersistsID(t *testing.T) {
	m, timers, dc, repo, _, _ := newTestManager(t)
	timers.JoinRoom("user-1", "guild-1", "vc-1")

	<-m.UpdateStatusMessage("guild-1", "vc-1", true, false)

	if dc.calls("send:") != 1 {
		t.Fatalf("expected one send, got timeline %v", dc.timeline)
	}
	if repo.stored["vc-1"] != "msg-1" {
		t.Fatalf("expected persisted message id, got %q", repo.stored["vc-1"])
	}
}

func TestUpdate_EditsInPlaceOnSecondCall(t *testing.T) {
	m, timers, dc, _, _, _ := newTestManager(t)
	timers.JoinRoom("user-1", "guild-1", "vc-1")

	<-m.UpdateStatusMessage("guild-1", "vc-1", true, false)
	<-m.UpdateStatusMessage("guild-1", "vc-1", false, false)

	if dc.calls("send:") != 1 || dc.calls("edit:") != 1 {
		t.Fatalf("expected one send then one edit, got %v", dc.timeline)
	}
}

func TestUpdate_StrictCallOrderAcrossOverlap(t *testing.T) {
	m, timers, dc, _, _, _ := newTestManager(t)
	timers.JoinRoom("user-1", "guild-1", "vc-1")

	gate := make(chan struct{})
	dc.sendGate = gate

	first := m.UpdateStatusMessage("guild-1", "vc-1", true, false)
	second := m.UpdateStatusMessage("guild-1", "vc-1", false, false)

	// The second call's messaging work must not begin while the first is
	// still blocked inside its send.
	select {
	case <-second:
		t.Fatal("second update finished before first resolved")
	case <-time.After(20 * time.Millisecond):
	}
	if dc.calls("edit:") != 0 {
		t.Fatalf("second update started early: %v", dc.timeline)
	}

	close(gate)
	<-first
	<-second

	// Exactly one message exists: the overlapped call saw the first one's
	// identity and edited it instead of creating a duplicate.
	if dc.calls("send:") != 1 || dc.calls("edit:") != 1 {
		t.Fatalf("expected single message with follow-up edit, got %v", dc.timeline)
	}
}

func TestUpdate_OverlappingCallsProduceOneMessage(t *testing.T) {
	m, timers, dc, _, _, _ := newTestManager(t)
	timers.JoinRoom("user-1", "guild-1", "vc-1")

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-m.UpdateStatusMessage("guild-1", "vc-1", false, false)
		}()
	}
	wg.Wait()

	if dc.calls("send:") != 1 {
		t.Fatalf("expected exactly one sent message, got %d (%v)", dc.calls("send:"), dc.timeline)
	}
}

func TestUpdate_EditFailureFallsThroughToRecreate(t *testing.T) {
	m, timers, dc, repo, _, _ := newTestManager(t)
	timers.JoinRoom("user-1", "guild-1", "vc-1")

	<-m.UpdateStatusMessage("guild-1", "vc-1", true, false)
	dc.editErr = errors.New("message was deleted")

	<-m.UpdateStatusMessage("guild-1", "vc-1", false, false)

	if dc.calls("send:") != 2 {
		t.Fatalf("expected recreate after edit failure, got %v", dc.timeline)
	}
	if len(dc.deleted) != 1 || dc.deleted[0] != "msg-1" {
		t.Fatalf("expected stale message delete, got %v", dc.deleted)
	}
	if repo.stored["vc-1"] != "msg-2" {
		t.Fatalf("expected new persisted id, got %q", repo.stored["vc-1"])
	}
}

func TestUpdate_RecoversPersistedIDAfterRestart(t *testing.T) {
	m, timers, dc, repo, _, _ := newTestManager(t)
	timers.JoinRoom("user-1", "guild-1", "vc-1")
	repo.stored["vc-1"] = "msg-from-last-run"

	<-m.UpdateStatusMessage("guild-1", "vc-1", true, false)

	if dc.calls("edit:vc-1:msg-from-last-run") != 1 {
		t.Fatalf("expected edit of the persisted message, got %v", dc.timeline)
	}
	if dc.calls("send:") != 0 {
		t.Fatalf("expected no new message, got %v", dc.timeline)
	}
}

func TestUpdate_ForceNewReplacesExistingMessage(t *testing.T) {
	m, timers, dc, _, _, _ := newTestManager(t)
	timers.JoinRoom("user-1", "guild-1", "vc-1")

	<-m.UpdateStatusMessage("guild-1", "vc-1", true, false)
	<-m.UpdateStatusMessage("guild-1", "vc-1", true, true)

	if dc.calls("send:") != 2 {
		t.Fatalf("expected two sends under forceNew, got %v", dc.timeline)
	}
	if len(dc.deleted) != 1 {
		t.Fatalf("expected old message deleted, got %v", dc.deleted)
	}
}

func TestUpdate_RenameThrottled(t *testing.T) {
	m, timers, dc, _, _, _ := newTestManager(t)
	timers.JoinRoom("user-1", "guild-1", "vc-1")

	<-m.UpdateStatusMessage("guild-1", "vc-1", true, false)
	if len(dc.renames) != 1 {
		t.Fatalf("expected initial rename, got %v", dc.renames)
	}
	if dc.renames[0] != "Study Room | 50m FOCUS" {
		t.Fatalf("unexpected rename: %q", dc.renames[0])
	}

	<-m.UpdateStatusMessage("guild-1", "vc-1", false, false)
	if len(dc.renames) != 1 {
		t.Fatalf("rename inside throttle window must be skipped, got %v", dc.renames)
	}

	// Reopen the throttle window without touching the clock; the name is
	// unchanged (same remaining-minutes bucket), so the rename is still
	// skipped.
	m.mu.Lock()
	m.lastRenamed["vc-1"] = m.clock.Now().Add(-6 * time.Minute)
	m.mu.Unlock()
	<-m.UpdateStatusMessage("guild-1", "vc-1", false, false)
	if len(dc.renames) != 1 {
		t.Fatalf("unchanged name must not be re-applied, got %v", dc.renames)
	}
}

func TestUpdate_WarningLineListsAtRiskParticipants(t *testing.T) {
	m, _, _, _, _, _ := newTestManager(t)

	content := m.composeContent(timer.Snapshot{
		ChannelID:        "vc-1",
		GuildID:          "guild-1",
		Stage:            timer.StageFocus,
		RemainingSeconds: 100,
		DurationSeconds:  3000,
		Participants: []timer.Participant{
			{UserID: "user-1", MissedStages: 2},
			{UserID: "user-2"},
		},
	})

	if !strings.Contains(content, "Inactivity Warning") || !strings.Contains(content, "<@user-1>") {
		t.Fatalf("expected warning mentioning user-1, got %q", content)
	}
	if strings.Contains(content, "<@user-2>") {
		t.Fatalf("clean participant must not be warned: %q", content)
	}
}

func TestUpdate_RenderFailureStillSendsText(t *testing.T) {
	m, timers, dc, _, renderer, _ := newTestManager(t)
	timers.JoinRoom("user-1", "guild-1", "vc-1")
	renderer.err = errors.New("render service down")

	<-m.UpdateStatusMessage("guild-1", "vc-1", true, false)

	if dc.calls("send:") != 1 {
		t.Fatalf("text update must still go out, got %v", dc.timeline)
	}
}

func TestUpdate_ImageCachedUntilRefreshRequested(t *testing.T) {
	m, timers, _, _, renderer, _ := newTestManager(t)
	timers.JoinRoom("user-1", "guild-1", "vc-1")

	<-m.UpdateStatusMessage("guild-1", "vc-1", false, false)
	<-m.UpdateStatusMessage("guild-1", "vc-1", false, false)
	if renderer.renders != 1 {
		t.Fatalf("expected one render (cold cache), got %d", renderer.renders)
	}

	<-m.UpdateStatusMessage("guild-1", "vc-1", true, false)
	if renderer.renders != 2 {
		t.Fatalf("expected refresh render, got %d", renderer.renders)
	}
}

func TestCleanupRoom_RemovesMessageAndStopsClock(t *testing.T) {
	m, timers, dc, repo, _, _ := newTestManager(t)
	timers.JoinRoom("user-1", "guild-1", "vc-1")
	<-m.UpdateStatusMessage("guild-1", "vc-1", true, false)
	timers.LeaveRoom("user-1", "vc-1")

	<-m.CleanupRoom("guild-1", "vc-1")

	if len(dc.deleted) != 1 {
		t.Fatalf("expected status message deleted, got %v", dc.deleted)
	}
	if repo.stored["vc-1"] != "" {
		t.Fatalf("expected persisted id cleared, got %q", repo.stored["vc-1"])
	}
	if _, ok := timers.RoomSession("vc-1"); ok {
		t.Fatal("expected room to be stopped")
	}
}
