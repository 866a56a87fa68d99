package game

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Safizapi/bonk-bot/codec"
	"github.com/Safizapi/bonk-bot/events"
	"github.com/Safizapi/bonk-bot/transport"
	"github.com/Safizapi/bonk-bot/types"
)

const testTimeout = 2 * time.Second

type sentFrame struct {
	opcode int
	args   []json.RawMessage
}

// fakeTransport is an in-memory Transport: outbound frames are recorded
// and inbound frames are pushed by the test.
type fakeTransport struct {
	mu      sync.Mutex
	inbound chan transport.Message
	sent    []sentFrame
	sentCh  chan sentFrame
	closed  bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbound: make(chan transport.Message, 64),
		sentCh:  make(chan sentFrame, 64),
	}
}

func (t *fakeTransport) Connect(ctx context.Context) error { return nil }

func (t *fakeTransport) Emit(ctx context.Context, opcode int, args ...interface{}) error {
	raw := make([]json.RawMessage, 0, len(args))
	for _, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return err
		}
		raw = append(raw, b)
	}
	f := sentFrame{opcode: opcode, args: raw}
	t.mu.Lock()
	t.sent = append(t.sent, f)
	t.mu.Unlock()
	select {
	case t.sentCh <- f:
	default:
	}
	return nil
}

func (t *fakeTransport) Messages() <-chan transport.Message { return t.inbound }

func (t *fakeTransport) Close(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.inbound)
	}
	return nil
}

func (t *fakeTransport) push(tb testing.TB, opcode int, args ...interface{}) {
	tb.Helper()
	raw := make([]json.RawMessage, 0, len(args))
	for _, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			tb.Fatalf("marshal push arg: %v", err)
		}
		raw = append(raw, b)
	}
	t.inbound <- transport.Message{Opcode: opcode, Args: raw}
}

func (t *fakeTransport) sentFrames() []sentFrame {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]sentFrame(nil), t.sent...)
}

// waitFrame blocks until the transport records a frame with the given
// opcode, skipping others.
func waitFrame(tb testing.TB, tr *fakeTransport, opcode int) sentFrame {
	tb.Helper()
	deadline := time.After(testTimeout)
	for {
		select {
		case f := <-tr.sentCh:
			if f.opcode == opcode {
				return f
			}
		case <-deadline:
			tb.Fatalf("timed out waiting for outbound opcode %d", opcode)
		}
	}
}

type fakeAccount struct {
	mu       sync.Mutex
	username string
	guest    bool
	dbid     int
	level    int
	token    string
	xp       int
}

func (a *fakeAccount) Username() string { return a.username }
func (a *fakeAccount) Guest() bool      { return a.guest }
func (a *fakeAccount) DBID() int        { return a.dbid }
func (a *fakeAccount) Level() int       { return a.level }

func (a *fakeAccount) Token() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.token
}

func (a *fakeAccount) RotateToken(token string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.token = token
}

func (a *fakeAccount) SetXP(xp int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.xp = xp
}

func (a *fakeAccount) XP() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.xp
}

func (a *fakeAccount) Avatar() codec.Avatar { return codec.Avatar{BaseColor: codec.DefaultBaseColor} }

func newTestGame(t *testing.T) (*Game, *fakeTransport, *events.Bus, *fakeAccount) {
	t.Helper()
	tr := newFakeTransport()
	bus := events.NewBus()
	t.Cleanup(bus.Stop)
	acct := &fakeAccount{username: "tester", dbid: 1234, level: 12, token: "token-1", xp: 12100}
	g := New(acct, tr, bus)
	if err := g.Join(context.Background(), JoinOptions{Address: "room-addr", RoomName: "test room"}); err != nil {
		t.Fatalf("Join: %v", err)
	}
	t.Cleanup(func() { _ = g.Leave(context.Background()) })
	return g, tr, bus, acct
}

func watch(t *testing.T, bus *events.Bus, typ events.EventType) <-chan events.Event {
	t.Helper()
	ch := make(chan events.Event, 16)
	bus.Subscribe(typ, "test-"+string(typ), func(ctx context.Context, ev events.Event) error {
		ch <- ev
		return nil
	})
	return ch
}

func waitEvent(t *testing.T, ch <-chan events.Event) events.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for event")
		return events.Event{}
	}
}

func rosterEntryJSON(username string, team int) map[string]interface{} {
	return map[string]interface{}{
		"peerID":   username + "000000",
		"userName": username,
		"guest":    false,
		"level":    10,
		"ready":    false,
		"tabbed":   false,
		"team":     team,
		"avatar":   map[string]interface{}{"layers": []interface{}{}, "bc": codec.DefaultBaseColor},
	}
}

// pushRoster seeds a two-player room: another player hosting at slot 0,
// the session's own player at slot 1.
func pushRoster(t *testing.T, tr *fakeTransport, teamLock bool, hostTeam int) {
	t.Helper()
	tr.push(t, inRoster,
		1, // own short id
		0, // host short id
		[]interface{}{
			rosterEntryJSON("captain", hostTeam),
			rosterEntryJSON("tester", 1),
		},
		0,
		teamLock,
		123456,
		"bypass01",
		0,
	)
}

func TestRosterSnapshot(t *testing.T) {
	g, tr, bus, _ := newTestGame(t)
	connectCh := watch(t, bus, events.EventGameConnect)

	pushRoster(t, tr, true, 2)
	waitEvent(t, connectCh)

	players := g.Players()
	if len(players) != 2 {
		t.Fatalf("len(Players()) = %d, want 2", len(players))
	}
	if !players[0].IsHost || players[0].Username != "captain" {
		t.Errorf("players[0] = %+v, want host captain", players[0])
	}
	if !players[1].IsBot || players[1].ShortID != 1 {
		t.Errorf("players[1] = %+v, want own player at slot 1", players[1])
	}
	if g.Host() != players[0] {
		t.Error("Host() should be the slot the snapshot marked")
	}
	if g.IsHost() {
		t.Error("IsHost() = true for a joined session")
	}
	if !g.TeamLock() {
		t.Error("TeamLock() = false, want true")
	}
	if !g.TeamsEnabled() {
		t.Error("TeamsEnabled() = false, but a player sits on team 2")
	}
	if !g.Connected() {
		t.Error("Connected() = false after snapshot")
	}
	if got, want := g.JoinLink(), "https://bonk.io/123456bypass01"; got != want {
		t.Errorf("JoinLink() = %q, want %q", got, want)
	}
}

func TestRosterSkipsEmptySlots(t *testing.T) {
	g, tr, bus, _ := newTestGame(t)
	connectCh := watch(t, bus, events.EventGameConnect)

	tr.push(t, inRoster,
		2,
		0,
		[]interface{}{
			rosterEntryJSON("captain", 1),
			nil, // player already left
			rosterEntryJSON("tester", 1),
		},
		0,
		false,
		7,
		"xy",
		0,
	)
	waitEvent(t, connectCh)

	players := g.Players()
	if len(players) != 2 {
		t.Fatalf("len(Players()) = %d, want 2", len(players))
	}
	if players[1].ShortID != 2 {
		t.Errorf("second player ShortID = %d, want 2 (slot index, not list index)", players[1].ShortID)
	}
	if got, want := g.JoinLink(), "https://bonk.io/000007xy"; got != want {
		t.Errorf("JoinLink() = %q, want %q", got, want)
	}
}

func TestPlayerJoinAndLeave(t *testing.T) {
	g, tr, bus, _ := newTestGame(t)
	connectCh := watch(t, bus, events.EventGameConnect)
	joinCh := watch(t, bus, events.EventPlayerJoin)
	leaveCh := watch(t, bus, events.EventPlayerLeave)

	pushRoster(t, tr, false, 1)
	waitEvent(t, connectCh)

	tr.push(t, inPlayerJoin, 2, "abc000000", "newbie", true, 3, false,
		map[string]interface{}{"layers": []interface{}{}, "bc": 0})
	ev := waitEvent(t, joinCh)

	p, ok := ev.Payload.(*Player)
	if !ok {
		t.Fatalf("join payload = %T, want *Player", ev.Payload)
	}
	if p.Username != "newbie" || !p.IsGuest || p.Level != 3 {
		t.Errorf("joined player = %+v", p)
	}
	if p.Team != types.TeamFFA {
		t.Errorf("joined player team = %v, want FFA in an unlocked FFA room", p.Team)
	}
	if len(g.Players()) != 3 {
		t.Fatalf("len(Players()) = %d, want 3", len(g.Players()))
	}

	tr.push(t, inPlayerLeave, 2)
	waitEvent(t, leaveCh)
	if len(g.Players()) != 2 {
		t.Fatalf("len(Players()) = %d after leave, want 2", len(g.Players()))
	}
}

func TestJoinerLandsInSpectatorWhenTeamsOn(t *testing.T) {
	g, tr, bus, _ := newTestGame(t)
	connectCh := watch(t, bus, events.EventGameConnect)
	joinCh := watch(t, bus, events.EventPlayerJoin)

	pushRoster(t, tr, false, 2)
	waitEvent(t, connectCh)
	if !g.TeamsEnabled() {
		t.Fatal("precondition: teams should be on")
	}

	tr.push(t, inPlayerJoin, 2, "abc000000", "newbie", false, 9, false,
		map[string]interface{}{"layers": []interface{}{}, "bc": 0})
	ev := waitEvent(t, joinCh)
	if p := ev.Payload.(*Player); p.Team != types.TeamSpectator {
		t.Errorf("joined player team = %v, want spectator while teams are on", p.Team)
	}
}

func TestHostOnlyCommandDenied(t *testing.T) {
	g, tr, bus, _ := newTestGame(t)
	deniedCh := watch(t, bus, events.EventPermissionDenied)

	if err := g.SetRounds(context.Background(), 7); err != nil {
		t.Fatalf("SetRounds by non-host returned error %v, want denial via event stream", err)
	}

	ev := waitEvent(t, deniedCh)
	denied, ok := ev.Payload.(PermissionDenied)
	if !ok {
		t.Fatalf("payload = %T, want PermissionDenied", ev.Payload)
	}
	if denied.Command != "set_rounds" {
		t.Errorf("denied command = %q, want set_rounds", denied.Command)
	}
	if denied.Err == nil || denied.Err.Code != CodePermissionDenied {
		t.Errorf("denied error = %+v", denied.Err)
	}
	if g.Rounds() != 3 {
		t.Errorf("Rounds() = %d after denied command, want unchanged 3", g.Rounds())
	}
	for _, f := range tr.sentFrames() {
		if f.opcode == opSetRounds {
			t.Error("denied command still sent a frame")
		}
	}
}

func TestHostTransferEnablesCommands(t *testing.T) {
	g, tr, bus, _ := newTestGame(t)
	connectCh := watch(t, bus, events.EventGameConnect)
	hostCh := watch(t, bus, events.EventHostChange)

	pushRoster(t, tr, false, 1)
	waitEvent(t, connectCh)

	tr.push(t, inHostChange, map[string]interface{}{"oldHost": 0, "newHost": 1})
	ev := waitEvent(t, hostCh)

	transfer := ev.Payload.(HostTransfer)
	if transfer.NewHost.Username != "tester" {
		t.Fatalf("new host = %q, want tester", transfer.NewHost.Username)
	}
	if !g.IsHost() {
		t.Fatal("IsHost() = false after receiving authority")
	}

	if err := g.SetRounds(context.Background(), 7); err != nil {
		t.Fatalf("SetRounds as host: %v", err)
	}
	f := waitFrame(t, tr, opSetRounds)
	var body struct {
		W int `json:"w"`
	}
	if err := json.Unmarshal(f.args[0], &body); err != nil {
		t.Fatalf("unmarshal rounds frame: %v", err)
	}
	if body.W != 7 {
		t.Errorf("rounds frame w = %d, want 7", body.W)
	}
	if g.Rounds() != 7 {
		t.Errorf("Rounds() = %d, want 7", g.Rounds())
	}
}

func TestSelfBanLeavesRoom(t *testing.T) {
	g, tr, bus, _ := newTestGame(t)
	connectCh := watch(t, bus, events.EventGameConnect)
	banCh := watch(t, bus, events.EventPlayerBan)

	pushRoster(t, tr, false, 1)
	waitEvent(t, connectCh)

	tr.push(t, inKickBan, 1, false)
	ev := waitEvent(t, banCh)

	notice := ev.Payload.(KickNotice)
	if !notice.Self || !notice.Banned {
		t.Errorf("notice = %+v, want self ban", notice)
	}

	select {
	case <-g.Done():
	case <-time.After(testTimeout):
		t.Fatal("session did not shut down after being banned")
	}
	if !g.Banned() {
		t.Error("Banned() = false after ban")
	}
	if g.Connected() {
		t.Error("Connected() = true after ban")
	}
}

func TestOtherPlayerKickStays(t *testing.T) {
	g, tr, bus, _ := newTestGame(t)
	connectCh := watch(t, bus, events.EventGameConnect)
	kickCh := watch(t, bus, events.EventPlayerKick)

	pushRoster(t, tr, false, 1)
	waitEvent(t, connectCh)

	tr.push(t, inKickBan, 0, true)
	ev := waitEvent(t, kickCh)

	notice := ev.Payload.(KickNotice)
	if notice.Self || notice.Banned {
		t.Errorf("notice = %+v, want kick of another player", notice)
	}
	if !g.Connected() {
		t.Error("session left the room over someone else's kick")
	}
}

func TestFatalServerErrorLeaves(t *testing.T) {
	g, tr, bus, _ := newTestGame(t)
	errCh := watch(t, bus, events.EventError)

	tr.push(t, inError, "room_full")
	ev := waitEvent(t, errCh)

	serr := ev.Payload.(ServerError)
	if serr.Token != "room_full" || !serr.Fatal {
		t.Errorf("error payload = %+v", serr)
	}

	select {
	case <-g.Done():
	case <-time.After(testTimeout):
		t.Fatal("session did not shut down on fatal server error")
	}
}

func TestNonFatalServerErrorStays(t *testing.T) {
	g, tr, bus, _ := newTestGame(t)
	errCh := watch(t, bus, events.EventError)

	// A join must not be required: error frames can arrive at any time.
	tr.push(t, inError, "some_soft_warning")
	ev := waitEvent(t, errCh)

	if serr := ev.Payload.(ServerError); serr.Fatal {
		t.Errorf("unknown error token treated as fatal: %+v", serr)
	}
	select {
	case <-g.Done():
		t.Fatal("session shut down on a non-fatal error")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestXPGainRotatesToken(t *testing.T) {
	_, tr, bus, acct := newTestGame(t)
	xpCh := watch(t, bus, events.EventXPGain)

	tr.push(t, inXPGain, map[string]interface{}{"newXP": 12500, "newToken": "token-2"})
	ev := waitEvent(t, xpCh)

	if gain := ev.Payload.(XPGain); gain.NewXP != 12500 {
		t.Errorf("NewXP = %d, want 12500", gain.NewXP)
	}
	if acct.XP() != 12500 {
		t.Errorf("account xp = %d, want 12500", acct.XP())
	}
	if acct.Token() != "token-2" {
		t.Errorf("account token = %q, want rotated token-2", acct.Token())
	}
}

func TestPingAcknowledged(t *testing.T) {
	g, tr, bus, _ := newTestGame(t)
	connectCh := watch(t, bus, events.EventGameConnect)
	pingCh := watch(t, bus, events.EventPlayerPing)

	pushRoster(t, tr, false, 1)
	waitEvent(t, connectCh)

	tr.push(t, inPing, map[string]int{"0": 42, "1": 17}, 9)
	waitEvent(t, pingCh)
	waitEvent(t, pingCh)

	f := waitFrame(t, tr, opPingAck)
	var body struct {
		ID int `json:"id"`
	}
	if err := json.Unmarshal(f.args[0], &body); err != nil {
		t.Fatalf("unmarshal ping ack: %v", err)
	}
	if body.ID != 9 {
		t.Errorf("ping ack id = %d, want 9", body.ID)
	}
	if g.BotPing() != 17 {
		t.Errorf("BotPing() = %d, want 17", g.BotPing())
	}
}

func TestPingNotAcknowledgedWhileTabbed(t *testing.T) {
	g, tr, bus, _ := newTestGame(t)
	connectCh := watch(t, bus, events.EventGameConnect)
	pingCh := watch(t, bus, events.EventPlayerPing)

	pushRoster(t, tr, false, 1)
	waitEvent(t, connectCh)

	if err := g.SetTabbed(context.Background(), true); err != nil {
		t.Fatalf("SetTabbed: %v", err)
	}

	tr.push(t, inPing, map[string]int{"1": 30}, 10)
	waitEvent(t, pingCh)

	for _, f := range tr.sentFrames() {
		if f.opcode == opPingAck {
			t.Fatal("tabbed session acknowledged a ping")
		}
	}
}

func TestLobbySettingsEvents(t *testing.T) {
	g, tr, bus, _ := newTestGame(t)
	modeCh := watch(t, bus, events.EventModeChange)
	roundsCh := watch(t, bus, events.EventRoundsChange)
	lockCh := watch(t, bus, events.EventTeamLock)
	teamsCh := watch(t, bus, events.EventTeamsToggle)
	nameCh := watch(t, bus, events.EventRoomNameChange)
	passCh := watch(t, bus, events.EventRoomPassword)

	tr.push(t, inModeChange, "b", "ar")
	if ev := waitEvent(t, modeCh); ev.Payload.(ModeChange).Mode != types.ModeArrows {
		t.Errorf("mode = %+v, want arrows", ev.Payload)
	}
	if g.Mode() != types.ModeArrows {
		t.Errorf("Mode() = %+v, want arrows", g.Mode())
	}

	tr.push(t, inRoundsChange, 5)
	waitEvent(t, roundsCh)
	if g.Rounds() != 5 {
		t.Errorf("Rounds() = %d, want 5", g.Rounds())
	}

	tr.push(t, inTeamLock, true)
	waitEvent(t, lockCh)
	if !g.TeamLock() {
		t.Error("TeamLock() = false, want true")
	}

	tr.push(t, inTeamsToggle, true)
	waitEvent(t, teamsCh)
	if !g.TeamsEnabled() {
		t.Error("TeamsEnabled() = false, want true")
	}

	tr.push(t, inRoomName, "renamed room")
	waitEvent(t, nameCh)
	if g.RoomName() != "renamed room" {
		t.Errorf("RoomName() = %q, want renamed", g.RoomName())
	}

	tr.push(t, inRoomPass, 1)
	if ev := waitEvent(t, passCh); !ev.Payload.(RoomPasswordChange).Protected {
		t.Error("password flag 1 should report protected")
	}
}

func TestChatMessage(t *testing.T) {
	_, tr, bus, _ := newTestGame(t)
	connectCh := watch(t, bus, events.EventGameConnect)
	msgCh := watch(t, bus, events.EventMessage)

	pushRoster(t, tr, false, 1)
	waitEvent(t, connectCh)

	tr.push(t, inMessage, 0, "hello there")
	ev := waitEvent(t, msgCh)

	msg := ev.Payload.(Message)
	if msg.Author == nil || msg.Author.Username != "captain" {
		t.Errorf("author = %+v, want captain", msg.Author)
	}
	if msg.Content != "hello there" {
		t.Errorf("content = %q", msg.Content)
	}
}

func TestPlayerMoveDecoded(t *testing.T) {
	_, tr, bus, _ := newTestGame(t)
	connectCh := watch(t, bus, events.EventGameConnect)
	moveCh := watch(t, bus, events.EventPlayerMove)

	pushRoster(t, tr, false, 1)
	waitEvent(t, connectCh)

	tr.push(t, inPlayerMove, 0, map[string]interface{}{"i": 22, "f": 120, "c": 4})
	ev := waitEvent(t, moveCh)

	move := ev.Payload.(PlayerMove)
	want := []types.Input{types.InputHeavy, types.InputUp, types.InputRight}
	if len(move.Inputs) != len(want) {
		t.Fatalf("inputs = %v, want %v", move.Inputs, want)
	}
	for i := range want {
		if move.Inputs[i] != want[i] {
			t.Fatalf("inputs = %v, want %v", move.Inputs, want)
		}
	}
	if move.Frame != 120 || move.Sequence != 4 {
		t.Errorf("frame/seq = %d/%d, want 120/4", move.Frame, move.Sequence)
	}

	// Malformed move frames are relayed as-is by servers; they must be
	// swallowed without an event.
	tr.push(t, inPlayerMove, 0, map[string]interface{}{"i": 99, "f": 1, "c": 5})
	tr.push(t, inPlayerMove, 0, map[string]interface{}{"f": 1, "c": 6})
	select {
	case ev := <-moveCh:
		t.Fatalf("malformed move produced event %+v", ev.Payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHostLeaveClosesWhenNoSuccessor(t *testing.T) {
	g, tr, bus, _ := newTestGame(t)
	connectCh := watch(t, bus, events.EventGameConnect)
	closeCh := watch(t, bus, events.EventGameClose)

	pushRoster(t, tr, false, 1)
	waitEvent(t, connectCh)

	tr.push(t, inHostLeave, 0, -1, 0)
	waitEvent(t, closeCh)

	select {
	case <-g.Done():
	case <-time.After(testTimeout):
		t.Fatal("session did not shut down after the room closed")
	}
}

func TestHostLeaveTransfers(t *testing.T) {
	g, tr, bus, _ := newTestGame(t)
	connectCh := watch(t, bus, events.EventGameConnect)
	hostCh := watch(t, bus, events.EventHostLeave)

	pushRoster(t, tr, false, 1)
	waitEvent(t, connectCh)

	tr.push(t, inHostLeave, 0, 1, 0)
	ev := waitEvent(t, hostCh)

	transfer := ev.Payload.(HostTransfer)
	if transfer.NewHost.ShortID != 1 {
		t.Errorf("new host = %+v, want slot 1", transfer.NewHost)
	}
	if !g.IsHost() {
		t.Error("IsHost() = false after inheriting the room")
	}
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name string
		opts CreateOptions
	}{
		{"zero max players", CreateOptions{MaxPlayers: 0, Server: types.ServerWarsaw}},
		{"too many players", CreateOptions{MaxPlayers: 9, Server: types.ServerWarsaw}},
		{"min level above own", CreateOptions{MaxPlayers: 6, MinLevel: 99, MaxLevel: 99, Server: types.ServerWarsaw}},
		{"max level below own", CreateOptions{MaxPlayers: 6, MaxLevel: 1, Server: types.ServerWarsaw}},
		{"unknown server", CreateOptions{MaxPlayers: 6, MaxLevel: 99, Server: types.Server{APIName: "b2nowhere1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newFakeTransport()
			bus := events.NewBus()
			t.Cleanup(bus.Stop)
			g := New(&fakeAccount{username: "tester", level: 12}, tr, bus)

			err := g.Create(context.Background(), tt.opts)
			var gerr *Error
			if !errors.As(err, &gerr) || gerr.Code != CodeInvalidArgument {
				t.Fatalf("Create() = %v, want invalid argument", err)
			}
			if len(tr.sentFrames()) != 0 {
				t.Error("invalid options still reached the wire")
			}
		})
	}
}

func TestCreateSeedsOwnPlayer(t *testing.T) {
	tr := newFakeTransport()
	bus := events.NewBus()
	t.Cleanup(bus.Stop)
	g := New(&fakeAccount{username: "tester", dbid: 1234, level: 12, token: "token-1"}, tr, bus)
	t.Cleanup(func() { _ = g.Leave(context.Background()) })

	err := g.Create(context.Background(), CreateOptions{
		MaxPlayers: 6,
		MaxLevel:   99,
		Server:     types.ServerWarsaw,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	f := waitFrame(t, tr, opCreateRoom)
	var body map[string]interface{}
	if err := json.Unmarshal(f.args[0], &body); err != nil {
		t.Fatalf("unmarshal create frame: %v", err)
	}
	if body["roomName"] != "tester's game" {
		t.Errorf("roomName = %v, want default name", body["roomName"])
	}
	if body["version"] != float64(ProtocolVersion) {
		t.Errorf("version = %v, want %d", body["version"], ProtocolVersion)
	}
	if body["token"] != "token-1" {
		t.Errorf("token = %v", body["token"])
	}

	players := g.Players()
	if len(players) != 1 {
		t.Fatalf("len(Players()) = %d, want 1", len(players))
	}
	self := players[0]
	if !self.IsBot || !self.IsHost || self.ShortID != 0 {
		t.Errorf("self = %+v, want hosting slot 0", self)
	}
	if !g.IsHost() {
		t.Error("IsHost() = false after creating a room")
	}
	if g.RoomName() != "tester's game" {
		t.Errorf("RoomName() = %q", g.RoomName())
	}
}

func TestLeaveStopsKeepAlive(t *testing.T) {
	tr := newFakeTransport()
	bus := events.NewBus()
	t.Cleanup(bus.Stop)
	acct := &fakeAccount{username: "tester", dbid: 1234, level: 12, token: "token-1", xp: 12100}
	g := New(acct, tr, bus)
	g.keepAliveEvery = 5 * time.Millisecond

	if err := g.Join(context.Background(), JoinOptions{Address: "room-addr", RoomName: "test room"}); err != nil {
		t.Fatalf("Join: %v", err)
	}

	waitFrame(t, tr, opTimesync)

	if err := g.Leave(context.Background()); err != nil {
		t.Fatalf("Leave: %v", err)
	}

	// Let any tick already racing the shutdown land before counting.
	time.Sleep(20 * time.Millisecond)
	before := countTimesync(tr.sentFrames())

	time.Sleep(50 * time.Millisecond)
	if after := countTimesync(tr.sentFrames()); after != before {
		t.Fatalf("timesync frames kept flowing after leave: %d, then %d", before, after)
	}
}

func countTimesync(frames []sentFrame) int {
	n := 0
	for _, f := range frames {
		if f.opcode == opTimesync {
			n++
		}
	}
	return n
}

// failingTransport accepts the connect but rejects a chosen opcode.
type failingTransport struct {
	*fakeTransport
	failOpcode int
}

func (t *failingTransport) Emit(ctx context.Context, opcode int, args ...interface{}) error {
	if opcode == t.failOpcode {
		return errors.New("write refused")
	}
	return t.fakeTransport.Emit(ctx, opcode, args...)
}

func TestCreateClosesTransportOnSendFailure(t *testing.T) {
	tr := &failingTransport{fakeTransport: newFakeTransport(), failOpcode: opCreateRoom}
	bus := events.NewBus()
	t.Cleanup(bus.Stop)
	acct := &fakeAccount{username: "tester", dbid: 1234, level: 12, token: "token-1", xp: 12100}
	g := New(acct, tr, bus)

	err := g.Create(context.Background(), CreateOptions{
		MaxPlayers: 4,
		MaxLevel:   999,
		Server:     types.ServerWarsaw,
	})
	var gerr *Error
	if !errors.As(err, &gerr) || gerr.Code != CodeConnection {
		t.Fatalf("Create error = %v, want connection error", err)
	}

	tr.mu.Lock()
	closed := tr.closed
	tr.mu.Unlock()
	if !closed {
		t.Error("transport left open after the create handshake failed")
	}
}

func TestJoinClosesTransportOnSendFailure(t *testing.T) {
	tr := &failingTransport{fakeTransport: newFakeTransport(), failOpcode: opJoinRoom}
	bus := events.NewBus()
	t.Cleanup(bus.Stop)
	acct := &fakeAccount{username: "tester", dbid: 1234, level: 12, token: "token-1", xp: 12100}
	g := New(acct, tr, bus)

	err := g.Join(context.Background(), JoinOptions{Address: "room-addr"})
	var gerr *Error
	if !errors.As(err, &gerr) || gerr.Code != CodeConnection {
		t.Fatalf("Join error = %v, want connection error", err)
	}

	tr.mu.Lock()
	closed := tr.closed
	tr.mu.Unlock()
	if !closed {
		t.Error("transport left open after the join handshake failed")
	}
}
