package game

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Safizapi/bonk-bot/bonkmap"
	"github.com/Safizapi/bonk-bot/codec"
	"github.com/Safizapi/bonk-bot/events"
	"github.com/Safizapi/bonk-bot/logging"
	"github.com/Safizapi/bonk-bot/transport"
	"github.com/Safizapi/bonk-bot/types"
)

// ProtocolVersion is the room protocol revision this client speaks.
const ProtocolVersion = 49

// Outbound opcodes.
const (
	opPingAck       = 1
	opMoveInput     = 4
	opSetTeam       = 6
	opSetTeamLock   = 7
	opKickBan       = 9
	opChat          = 10
	opLobbyPush     = 11
	opCreateRoom    = 12
	opJoinRoom      = 13
	opSetReady      = 16
	opResetReady    = 17
	opTimesync      = 18
	opSetMode       = 20
	opSetRounds     = 21
	opSetMap        = 23
	opMoveToTeam    = 26
	opSuggestMap    = 27
	opBalance       = 29
	opSetTeams      = 32
	opRecord        = 33
	opGrantHost     = 34
	opFriendRequest = 35
	opXPTick        = 38
	opSetTabbed     = 44
	opCloseRoom     = 50
	opSetRoomName   = 52
	opSetRoomPass   = 53
)

// Inbound opcodes.
const (
	inPing           = 1
	inRoster         = 3
	inPlayerJoin     = 4
	inPlayerLeave    = 5
	inHostLeave      = 6
	inPlayerMove     = 7
	inPlayerReady    = 8
	inMatchAbort     = 13
	inMatchStart     = 15
	inError          = 16
	inTeamChange     = 18
	inTeamLock       = 19
	inMessage        = 20
	inLobbyLoad      = 21
	inKickBan        = 24
	inModeChange     = 26
	inRoundsChange   = 27
	inMapChange      = 29
	inAFKWarn        = 32
	inMapReqHost     = 33
	inMapReqClient   = 34
	inBalance        = 36
	inTeamsToggle    = 39
	inReplay         = 40
	inHostChange     = 41
	inFriendReq      = 42
	inCountdown      = 43
	inCountdownAbort = 44
	inLevelUp        = 45
	inXPGain         = 46
	inMatchInfo      = 48
	inJoinLink       = 49
	inTab            = 52
	inRoomName       = 58
	inRoomPass       = 59
)

const timesyncInterval = 5 * time.Second

// Account provides the identity a session connects with.
type Account interface {
	Username() string
	Guest() bool
	DBID() int
	Level() int
	Token() string
	RotateToken(token string)
	SetXP(xp int)
	Avatar() codec.Avatar
}

// FriendsAPI is the slice of the account API a session needs to back
// in-room friend acceptance with a real friend list entry.
type FriendsAPI interface {
	SendFriendRequest(ctx context.Context, username string) error
}

// CreateOptions control room creation.
type CreateOptions struct {
	Name       string
	MaxPlayers int
	Unlisted   bool
	Password   string
	MinLevel   int
	MaxLevel   int
	Server     types.Server
}

// JoinOptions control joining an existing room.
type JoinOptions struct {
	Address  string
	Password string
	Bypass   string
	RoomName string
}

// Game is a live room session.
type Game struct {
	account Account
	tr      transport.Transport
	bus     *events.Bus
	friends FriendsAPI
	log     zerolog.Logger

	mu           sync.RWMutex
	players      []*Player
	host         *Player
	match        *Match
	currentMap   bonkmap.Map
	mode         types.Mode
	rounds       int
	teams        bool
	teamLock     bool
	inLobby      bool
	isHost       bool
	banned       bool
	connected    bool
	tabbed       bool
	botReady     bool
	roomName     string
	roomPassword string
	joinLink     string
	botPing      int
	moveSeq      int

	// keepAliveEvery spaces the timesync frames. Shortened in tests.
	keepAliveEvery time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// Option configures a Game.
type Option func(*Game)

// WithFriendsAPI lets accepted in-room friend requests create real
// friend list entries.
func WithFriendsAPI(f FriendsAPI) Option {
	return func(g *Game) { g.friends = f }
}

// New builds an unconnected session.
func New(account Account, tr transport.Transport, bus *events.Bus, opts ...Option) *Game {
	g := &Game{
		account: account,
		tr:      tr,
		bus:     bus,
		log:     logging.Component("game"),
		mode:    types.ModeClassic,
		rounds:  3,
		inLobby: true,

		keepAliveEvery: timesyncInterval,

		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// peerIDAlphabet is shuffled to produce a fresh peer id per connection.
const peerIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func newPeerID() string {
	alph := []byte(peerIDAlphabet)
	rand.Shuffle(len(alph), func(i, j int) {
		alph[i], alph[j] = alph[j], alph[i]
	})
	return string(alph[:10]) + "000000"
}

// Create connects to a server and opens a new room there.
func (g *Game) Create(ctx context.Context, opts CreateOptions) error {
	if opts.MaxPlayers < 1 || opts.MaxPlayers > 8 {
		return &Error{Code: CodeInvalidArgument, Message: fmt.Sprintf("max players %d out of range 1..8", opts.MaxPlayers)}
	}
	if opts.MinLevel > g.account.Level() {
		return &Error{Code: CodeInvalidArgument, Message: "min level above own level"}
	}
	if opts.MaxLevel < g.account.Level() {
		return &Error{Code: CodeInvalidArgument, Message: "max level below own level"}
	}
	if !opts.Server.Valid() {
		return &Error{Code: CodeInvalidArgument, Message: fmt.Sprintf("unknown server %q", opts.Server.APIName)}
	}

	name := opts.Name
	if name == "" {
		name = fmt.Sprintf("%s's game", g.account.Username())
	}

	if err := g.tr.Connect(ctx); err != nil {
		return &Error{Code: CodeConnection, Message: err.Error()}
	}

	peerID := newPeerID()
	payload := map[string]interface{}{
		"peerID":     peerID,
		"roomName":   name,
		"maxPlayers": opts.MaxPlayers,
		"password":   opts.Password,
		"minLevel":   opts.MinLevel,
		"maxLevel":   opts.MaxLevel,
		"latitude":   opts.Server.Latitude,
		"longitude":  opts.Server.Longitude,
		"country":    opts.Server.Country,
		"version":    ProtocolVersion,
		"hidden":     boolToInt(opts.Unlisted),
		"quick":      false,
		"mode":       "custom",
		"avatar":     g.account.Avatar(),
	}
	if g.account.Guest() {
		payload["guest"] = true
		payload["dbid"] = 10_000_000 + rand.Intn(4_000_000)
		payload["guestName"] = g.account.Username()
	} else {
		payload["guest"] = false
		payload["dbid"] = g.account.DBID()
		payload["token"] = g.account.Token()
	}
	if err := g.tr.Emit(ctx, opCreateRoom, payload); err != nil {
		_ = g.tr.Close(ctx)
		return &Error{Code: CodeConnection, Message: err.Error()}
	}

	self := &Player{
		ShortID:  0,
		PeerID:   peerID,
		Username: g.account.Username(),
		IsGuest:  g.account.Guest(),
		Level:    g.account.Level(),
		IsBot:    true,
		IsHost:   true,
		Team:     types.TeamFFA,
		Avatar:   g.account.Avatar(),
		game:     g,
	}

	g.mu.Lock()
	g.players = []*Player{self}
	g.host = self
	g.isHost = true
	g.roomName = name
	g.roomPassword = opts.Password
	g.mu.Unlock()

	g.start()
	return nil
}

// Join connects to the server hosting a room and joins it.
func (g *Game) Join(ctx context.Context, opts JoinOptions) error {
	if err := g.tr.Connect(ctx); err != nil {
		return &Error{Code: CodeConnection, Message: err.Error()}
	}

	payload := map[string]interface{}{
		"joinID":       opts.Address,
		"roomPassword": opts.Password,
		"dbid":         2,
		"version":      ProtocolVersion,
		"peerID":       newPeerID(),
		"bypass":       opts.Bypass,
		"avatar":       g.account.Avatar(),
	}
	if g.account.Guest() {
		payload["guest"] = true
		payload["guestName"] = g.account.Username()
	} else {
		payload["guest"] = false
		payload["token"] = g.account.Token()
	}
	if err := g.tr.Emit(ctx, opJoinRoom, payload); err != nil {
		_ = g.tr.Close(ctx)
		return &Error{Code: CodeConnection, Message: err.Error()}
	}

	g.mu.Lock()
	g.roomName = opts.RoomName
	g.mu.Unlock()

	g.start()
	return nil
}

func (g *Game) start() {
	go g.run()
	go g.keepAlive()
}

// Leave disconnects from the room.
func (g *Game) Leave(ctx context.Context) error {
	var err error
	g.stopOnce.Do(func() {
		close(g.stopCh)
		g.mu.Lock()
		g.connected = false
		g.mu.Unlock()
		err = g.tr.Close(ctx)
	})
	return err
}

// Done returns a channel closed when the session has fully shut down.
func (g *Game) Done() <-chan struct{} { return g.done }

// run consumes inbound frames until the transport closes.
func (g *Game) run() {
	defer close(g.done)
	ctx := context.Background()
	for msg := range g.tr.Messages() {
		g.dispatch(ctx, msg)
	}
	g.Leave(ctx)
	g.publish(ctx, events.EventGameClose, g)
}

// keepAlive sends a timesync frame on a fixed cadence so the server
// does not drop an idle session.
func (g *Game) keepAlive() {
	ticker := time.NewTicker(g.keepAliveEvery)
	defer ticker.Stop()

	id := 1
	for {
		select {
		case <-ticker.C:
			// A tick can race the shutdown; never send after Leave.
			select {
			case <-g.stopCh:
				return
			default:
			}
			err := g.tr.Emit(context.Background(), opTimesync, map[string]interface{}{
				"jsonrpc": "2.0",
				"id":      id,
				"method":  "timesync",
			})
			if err != nil {
				return
			}
			id++
		case <-g.stopCh:
			return
		}
	}
}

func (g *Game) emit(ctx context.Context, opcode int, args ...interface{}) error {
	return g.tr.Emit(ctx, opcode, args...)
}

func (g *Game) publish(ctx context.Context, typ events.EventType, payload interface{}) {
	g.bus.Emit(ctx, events.Event{Type: typ, Source: "game", Payload: payload})
}

// hostCommand runs fn only when the session holds room authority.
// Without it the command is reported through the event stream and no
// state changes.
func (g *Game) hostCommand(ctx context.Context, name string, fn func() error) error {
	if !g.IsHost() {
		err := &Error{Code: CodePermissionDenied, Message: fmt.Sprintf("cannot %s: not the host", name)}
		g.publish(ctx, events.EventPermissionDenied, PermissionDenied{Command: name, Err: err})
		return nil
	}
	return fn()
}

func (g *Game) nextMoveSequence() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	seq := g.moveSeq
	g.moveSeq++
	return seq
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// State accessors.

func (g *Game) Players() []*Player {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]*Player(nil), g.players...)
}

func (g *Game) Host() *Player {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.host
}

func (g *Game) IsHost() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.isHost
}

func (g *Game) Connected() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.connected
}

func (g *Game) Banned() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.banned
}

func (g *Game) InLobby() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.inLobby
}

func (g *Game) Mode() types.Mode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.mode
}

func (g *Game) Rounds() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.rounds
}

func (g *Game) TeamLock() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.teamLock
}

func (g *Game) TeamsEnabled() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.teams
}

func (g *Game) RoomName() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.roomName
}

func (g *Game) JoinLink() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.joinLink
}

func (g *Game) CurrentMap() bonkmap.Map {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.currentMap
}

func (g *Game) CurrentMatch() *Match {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.match
}

func (g *Game) BotPing() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.botPing
}

func (g *Game) playerByShortID(shortID int) *Player {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, p := range g.players {
		if p.ShortID == shortID {
			return p
		}
	}
	return nil
}

func (g *Game) selfPlayer() *Player {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, p := range g.players {
		if p.IsBot {
			return p
		}
	}
	return nil
}

// Commands.

// SetTeam moves the session's own player to a team.
func (g *Game) SetTeam(ctx context.Context, team types.Team) error {
	if !team.Valid() {
		return &Error{Code: CodeInvalidArgument, Message: fmt.Sprintf("invalid team %d", int(team))}
	}
	return g.emit(ctx, opSetTeam, map[string]interface{}{"targetTeam": int(team)})
}

// SetTeamLock locks or unlocks free team switching. Host only.
func (g *Game) SetTeamLock(ctx context.Context, locked bool) error {
	return g.hostCommand(ctx, "set_team_lock", func() error {
		if err := g.emit(ctx, opSetTeamLock, map[string]interface{}{"teamLock": locked}); err != nil {
			return err
		}
		g.mu.Lock()
		g.teamLock = locked
		g.mu.Unlock()
		return nil
	})
}

// SendMessage sends a chat line.
func (g *Game) SendMessage(ctx context.Context, message string) error {
	return g.emit(ctx, opChat, map[string]interface{}{"message": message})
}

// SetReady toggles the session's own ready mark.
func (g *Game) SetReady(ctx context.Context, ready bool) error {
	if err := g.emit(ctx, opSetReady, map[string]interface{}{"ready": ready}); err != nil {
		return err
	}
	g.mu.Lock()
	g.botReady = ready
	g.mu.Unlock()
	return nil
}

// ResetAllReady clears every player's ready mark. Host only.
func (g *Game) ResetAllReady(ctx context.Context) error {
	return g.hostCommand(ctx, "reset_all_ready", func() error {
		if err := g.emit(ctx, opResetReady); err != nil {
			return err
		}
		g.mu.Lock()
		g.botReady = false
		for _, p := range g.players {
			p.Ready = false
		}
		g.mu.Unlock()
		return nil
	})
}

// SetMode changes the game mode. Host only.
func (g *Game) SetMode(ctx context.Context, mode types.Mode) error {
	if !mode.Valid() {
		return &Error{Code: CodeInvalidArgument, Message: fmt.Sprintf("invalid mode %q", mode.ShortName)}
	}
	return g.hostCommand(ctx, "set_mode", func() error {
		if err := g.emit(ctx, opSetMode, map[string]interface{}{"ga": mode.GA, "mo": mode.ShortName}); err != nil {
			return err
		}
		g.mu.Lock()
		g.mode = mode
		g.mu.Unlock()
		return nil
	})
}

// SetRounds changes the rounds-to-win setting. Host only.
func (g *Game) SetRounds(ctx context.Context, rounds int) error {
	return g.hostCommand(ctx, "set_rounds", func() error {
		if err := g.emit(ctx, opSetRounds, map[string]interface{}{"w": rounds}); err != nil {
			return err
		}
		g.mu.Lock()
		g.rounds = rounds
		g.mu.Unlock()
		return nil
	})
}

// SetMap loads a new map. Host only.
func (g *Game) SetMap(ctx context.Context, m bonkmap.Map) error {
	return g.hostCommand(ctx, "set_map", func() error {
		if err := g.emit(ctx, opSetMap, map[string]interface{}{"m": m.EncodedData()}); err != nil {
			return err
		}
		g.mu.Lock()
		g.currentMap = m
		g.mu.Unlock()
		return nil
	})
}

// SuggestMap suggests a map to the host.
func (g *Game) SuggestMap(ctx context.Context, m bonkmap.Map) error {
	return g.emit(ctx, opSuggestMap, map[string]interface{}{
		"m":         m.EncodedData(),
		"mapauthor": m.Author(),
		"mapname":   m.Name(),
	})
}

// SetTeams turns extended teams on or off. Host only.
func (g *Game) SetTeams(ctx context.Context, enabled bool) error {
	return g.hostCommand(ctx, "set_teams", func() error {
		if err := g.emit(ctx, opSetTeams, map[string]interface{}{"t": enabled}); err != nil {
			return err
		}
		g.mu.Lock()
		g.teams = enabled
		g.mu.Unlock()
		return nil
	})
}

// Record asks the server to record the last seconds of the round.
func (g *Game) Record(ctx context.Context) error {
	return g.emit(ctx, opRecord)
}

// GainXP requests an experience tick.
func (g *Game) GainXP(ctx context.Context) error {
	return g.emit(ctx, opXPTick)
}

// SetTabbed toggles the session's away status. A tabbed session does
// not acknowledge pings.
func (g *Game) SetTabbed(ctx context.Context, tabbed bool) error {
	if err := g.emit(ctx, opSetTabbed, map[string]interface{}{"out": tabbed}); err != nil {
		return err
	}
	g.mu.Lock()
	g.tabbed = tabbed
	g.mu.Unlock()
	return nil
}

// Close removes the room from the listing and leaves. Host only.
func (g *Game) Close(ctx context.Context) error {
	return g.hostCommand(ctx, "close", func() error {
		if err := g.emit(ctx, opCloseRoom); err != nil {
			return err
		}
		return g.Leave(ctx)
	})
}

// SetRoomName renames the room. Host only.
func (g *Game) SetRoomName(ctx context.Context, name string) error {
	return g.hostCommand(ctx, "set_room_name", func() error {
		if err := g.emit(ctx, opSetRoomName, map[string]interface{}{"newName": name}); err != nil {
			return err
		}
		g.mu.Lock()
		g.roomName = name
		g.mu.Unlock()
		return nil
	})
}

// SetRoomPassword sets or clears the room password. Host only.
func (g *Game) SetRoomPassword(ctx context.Context, password string) error {
	return g.hostCommand(ctx, "set_room_password", func() error {
		if err := g.emit(ctx, opSetRoomPass, map[string]interface{}{"newPass": password}); err != nil {
			return err
		}
		g.mu.Lock()
		g.roomPassword = password
		g.mu.Unlock()
		return nil
	})
}

func decodeArg(args []json.RawMessage, i int, v interface{}) error {
	if i >= len(args) {
		return fmt.Errorf("missing argument %d", i)
	}
	return json.Unmarshal(args[i], v)
}
