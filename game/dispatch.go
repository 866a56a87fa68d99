package game

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Safizapi/bonk-bot/bonkmap"
	"github.com/Safizapi/bonk-bot/codec"
	"github.com/Safizapi/bonk-bot/events"
	"github.com/Safizapi/bonk-bot/transport"
	"github.com/Safizapi/bonk-bot/types"
)

func (g *Game) dispatch(ctx context.Context, msg transport.Message) {
	var err error
	switch msg.Opcode {
	case inPing:
		err = g.onPing(ctx, msg.Args)
	case inRoster:
		err = g.onRoster(ctx, msg.Args)
	case inPlayerJoin:
		err = g.onPlayerJoin(ctx, msg.Args)
	case inPlayerLeave:
		err = g.onPlayerLeave(ctx, msg.Args)
	case inHostLeave:
		err = g.onHostLeave(ctx, msg.Args)
	case inPlayerMove:
		g.onPlayerMove(ctx, msg.Args)
	case inPlayerReady:
		err = g.onPlayerReady(ctx, msg.Args)
	case inMatchAbort:
		g.onMatchAbort(ctx)
	case inMatchStart:
		g.onMatchStart(ctx)
	case inError:
		err = g.onServerError(ctx, msg.Args)
	case inTeamChange:
		err = g.onTeamChange(ctx, msg.Args)
	case inTeamLock:
		err = g.onTeamLock(ctx, msg.Args)
	case inMessage:
		err = g.onMessage(ctx, msg.Args)
	case inLobbyLoad:
		err = g.onLobbyLoad(ctx, msg.Args)
	case inKickBan:
		err = g.onKickBan(ctx, msg.Args)
	case inModeChange:
		err = g.onModeChange(ctx, msg.Args)
	case inRoundsChange:
		err = g.onRoundsChange(ctx, msg.Args)
	case inMapChange:
		err = g.onMapChange(ctx, msg.Args)
	case inAFKWarn:
		g.publish(ctx, events.EventAFKWarn, g)
	case inMapReqHost:
		err = g.onMapRequestHost(ctx, msg.Args)
	case inMapReqClient:
		err = g.onMapRequestClient(ctx, msg.Args)
	case inBalance:
		err = g.onBalance(ctx, msg.Args)
	case inTeamsToggle:
		err = g.onTeamsToggle(ctx, msg.Args)
	case inReplay:
		err = g.onReplay(ctx, msg.Args)
	case inHostChange:
		err = g.onHostChange(ctx, msg.Args)
	case inFriendReq:
		err = g.onFriendRequest(ctx, msg.Args)
	case inCountdown:
		err = g.onCountdown(ctx, msg.Args)
	case inCountdownAbort:
		g.publish(ctx, events.EventCountdownAbort, g)
	case inLevelUp:
		err = g.onLevelUp(ctx, msg.Args)
	case inXPGain:
		err = g.onXPGain(ctx, msg.Args)
	case inMatchInfo:
		err = g.onMatchInfo(ctx, msg.Args)
	case inJoinLink:
		err = g.onJoinLink(ctx, msg.Args)
	case inTab:
		err = g.onTab(ctx, msg.Args)
	case inRoomName:
		err = g.onRoomName(ctx, msg.Args)
	case inRoomPass:
		err = g.onRoomPassword(ctx, msg.Args)
	default:
		g.log.Debug().Int("opcode", msg.Opcode).Msg("unhandled opcode")
	}
	if err != nil {
		g.log.Warn().Err(err).Int("opcode", msg.Opcode).Msg("failed to handle frame")
	}
}

func (g *Game) onPing(ctx context.Context, args []json.RawMessage) error {
	var pings map[string]int
	if err := decodeArg(args, 0, &pings); err != nil {
		return err
	}
	var pingID int
	if err := decodeArg(args, 1, &pingID); err != nil {
		return err
	}

	for sid, ping := range pings {
		shortID, err := strconv.Atoi(sid)
		if err != nil {
			continue
		}
		p := g.playerByShortID(shortID)
		if p == nil {
			continue
		}
		g.mu.Lock()
		p.Ping = ping
		if p.IsBot {
			g.botPing = ping
		}
		g.mu.Unlock()
		g.publish(ctx, events.EventPlayerPing, PlayerPing{Player: p, Ping: ping})
	}

	g.mu.RLock()
	tabbed := g.tabbed
	g.mu.RUnlock()
	if !tabbed {
		return g.emit(ctx, opPingAck, map[string]interface{}{"id": pingID})
	}
	return nil
}

// rosterEntry is one player slot in the initial roster snapshot. Slots
// of players that already left arrive as null.
type rosterEntry struct {
	PeerID   string          `json:"peerID"`
	UserName string          `json:"userName"`
	Guest    bool            `json:"guest"`
	Level    int             `json:"level"`
	Ready    bool            `json:"ready"`
	Tabbed   bool            `json:"tabbed"`
	Team     int             `json:"team"`
	Avatar   json.RawMessage `json:"avatar"`
}

func (g *Game) onRoster(ctx context.Context, args []json.RawMessage) error {
	var hostShortID int
	if err := decodeArg(args, 1, &hostShortID); err != nil {
		return err
	}
	var entries []*rosterEntry
	if err := decodeArg(args, 2, &entries); err != nil {
		return err
	}
	var teamLock bool
	if err := decodeArg(args, 4, &teamLock); err != nil {
		return err
	}
	var roomID int
	if err := decodeArg(args, 5, &roomID); err != nil {
		return err
	}
	var bypass string
	if err := decodeArg(args, 6, &bypass); err != nil {
		return err
	}

	players := make([]*Player, 0, len(entries))
	var host *Player
	teams := false
	for i, entry := range entries {
		if entry == nil {
			continue
		}
		team, err := types.TeamFromNumber(entry.Team)
		if err != nil {
			team = types.TeamSpectator
		}
		var avatar codec.Avatar
		if len(entry.Avatar) > 0 {
			_ = json.Unmarshal(entry.Avatar, &avatar)
		}
		p := &Player{
			ShortID:  i,
			PeerID:   entry.PeerID,
			Username: entry.UserName,
			IsGuest:  entry.Guest,
			Level:    entry.Level,
			IsBot:    i == len(entries)-1,
			IsHost:   i == hostShortID,
			Ready:    entry.Ready,
			Tabbed:   entry.Tabbed,
			Team:     team,
			Avatar:   avatar,
			game:     g,
		}
		if team > types.TeamFFA {
			teams = true
		}
		if p.IsHost {
			host = p
		}
		players = append(players, p)
	}

	g.mu.Lock()
	g.players = players
	g.host = host
	g.teamLock = teamLock
	g.teams = teams
	g.joinLink = fmt.Sprintf("https://bonk.io/%06d%s", roomID, bypass)
	g.connected = true
	if host != nil {
		g.isHost = host.IsBot
	}
	g.mu.Unlock()

	g.publish(ctx, events.EventGameConnect, g)
	return nil
}

func (g *Game) onPlayerJoin(ctx context.Context, args []json.RawMessage) error {
	var shortID int
	if err := decodeArg(args, 0, &shortID); err != nil {
		return err
	}
	var peerID, username string
	if err := decodeArg(args, 1, &peerID); err != nil {
		return err
	}
	if err := decodeArg(args, 2, &username); err != nil {
		return err
	}
	var isGuest bool
	if err := decodeArg(args, 3, &isGuest); err != nil {
		return err
	}
	var level int
	if err := decodeArg(args, 4, &level); err != nil {
		return err
	}
	var avatar codec.Avatar
	if len(args) > 6 {
		_ = json.Unmarshal(args[6], &avatar)
	}

	g.mu.Lock()
	team := types.TeamFFA
	if g.teamLock || g.teams {
		team = types.TeamSpectator
	}
	p := &Player{
		ShortID:  shortID,
		PeerID:   peerID,
		Username: username,
		IsGuest:  isGuest,
		Level:    level,
		Team:     team,
		Avatar:   avatar,
		game:     g,
	}
	g.players = append(g.players, p)
	isHost := g.isHost
	g.mu.Unlock()

	if isHost {
		if err := g.pushLobbyState(ctx, shortID); err != nil {
			g.log.Warn().Err(err).Msg("failed to push lobby state to joiner")
		}
	}

	g.publish(ctx, events.EventPlayerJoin, p)
	return nil
}

// pushLobbyState sends the authoritative game settings to a player that
// just joined. Only the host does this.
func (g *Game) pushLobbyState(ctx context.Context, shortID int) error {
	g.mu.RLock()
	m := g.currentMap
	rounds := g.rounds
	teamLock := g.teamLock
	teams := g.teams
	mode := g.mode
	g.mu.RUnlock()

	return g.emit(ctx, opLobbyPush, map[string]interface{}{
		"sid": shortID,
		"gs": map[string]interface{}{
			"map":    g.lobbyMapDocument(m),
			"gt":     2,
			"wl":     rounds,
			"q":      false,
			"tl":     teamLock,
			"tea":    teams,
			"ga":     mode.GA,
			"mo":     mode.ShortName,
			"bal":    []interface{}{},
			"GMMode": "",
		},
	})
}

// lobbyMapDocument produces the map document for a lobby push. Current
// and catalog maps decode fully; anything else gets a metadata-only
// stand-in so old-format maps do not break the join.
func (g *Game) lobbyMapDocument(m bonkmap.Map) interface{} {
	name, author, date := "nob_name", "nob_author", ""
	id, votesUp, votesDown := -1, 0, 0
	published := true

	switch v := m.(type) {
	case nil:
	case *bonkmap.AccountMap:
		if doc, err := v.Decode(); err == nil {
			return doc
		}
		name, author, date = v.MapName, v.AuthorName, v.CreationDate
		id, votesUp, votesDown = v.MapID, v.VotesUp, v.VotesDown
		published = v.Published
	case *bonkmap.CatalogMap:
		if doc, err := v.Decode(); err == nil {
			return doc
		}
		name, author, date = v.MapName, v.AuthorName, v.PublishedDate
		id, votesUp, votesDown = v.MapID, v.VotesUp, v.VotesDown
	default:
		name, author = m.Name(), m.Author()
	}

	return map[string]interface{}{
		"v": 13,
		"s": map[string]interface{}{
			"re": false, "nc": false, "pq": 1, "gd": 25, "fl": false,
		},
		"physics": map[string]interface{}{
			"shapes": []interface{}{}, "fixtures": []interface{}{}, "bodies": []interface{}{},
			"bro": []interface{}{}, "joints": []interface{}{}, "ppm": 12,
		},
		"spawns":   []interface{}{},
		"capZones": []interface{}{},
		"m": map[string]interface{}{
			"a": author, "n": name, "dbv": 2, "dbid": id,
			"authid": -1, "date": date, "rxid": 0, "rxn": "", "rxa": "",
			"rxdb": 1, "cr": []string{"\U0001F480"}, "pub": published,
			"mo": "", "vu": votesUp, "vd": votesDown,
		},
	}
}

func (g *Game) onPlayerLeave(ctx context.Context, args []json.RawMessage) error {
	var shortID int
	if err := decodeArg(args, 0, &shortID); err != nil {
		return err
	}
	p := g.playerByShortID(shortID)
	if p == nil {
		return fmt.Errorf("unknown player %d left", shortID)
	}

	g.mu.Lock()
	for i, other := range g.players {
		if other == p {
			g.players = append(g.players[:i], g.players[i+1:]...)
			break
		}
	}
	g.mu.Unlock()

	g.publish(ctx, events.EventPlayerLeave, p)
	return nil
}

func (g *Game) onHostLeave(ctx context.Context, args []json.RawMessage) error {
	var oldHostID, newHostID int
	if err := decodeArg(args, 0, &oldHostID); err != nil {
		return err
	}
	if err := decodeArg(args, 1, &newHostID); err != nil {
		return err
	}

	if newHostID == -1 {
		g.publish(ctx, events.EventGameClose, g)
		return g.Leave(ctx)
	}

	oldHost := g.playerByShortID(oldHostID)
	newHost := g.playerByShortID(newHostID)
	if oldHost == nil || newHost == nil {
		return fmt.Errorf("host transfer between unknown players %d -> %d", oldHostID, newHostID)
	}

	g.transferHost(oldHost, newHost)
	g.publish(ctx, events.EventHostLeave, HostTransfer{OldHost: oldHost, NewHost: newHost})
	return nil
}

func (g *Game) transferHost(oldHost, newHost *Player) {
	g.mu.Lock()
	defer g.mu.Unlock()
	oldHost.IsHost = false
	newHost.IsHost = true
	g.host = newHost
	if oldHost.IsBot && !newHost.IsBot {
		g.isHost = false
	} else if !oldHost.IsBot && newHost.IsBot {
		g.isHost = true
	}
}

// onPlayerMove swallows malformed frames: live servers relay whatever
// the sender produced.
func (g *Game) onPlayerMove(ctx context.Context, args []json.RawMessage) {
	var shortID int
	if err := decodeArg(args, 0, &shortID); err != nil {
		return
	}
	var move struct {
		I *int `json:"i"`
		F *int `json:"f"`
		C *int `json:"c"`
	}
	if err := decodeArg(args, 1, &move); err != nil {
		return
	}
	if move.I == nil || move.F == nil || move.C == nil {
		return
	}
	p := g.playerByShortID(shortID)
	if p == nil {
		return
	}
	inputs, err := types.InputsFromBits(*move.I)
	if err != nil {
		return
	}

	g.publish(ctx, events.EventPlayerMove, PlayerMove{
		Player:   p,
		Inputs:   inputs,
		Frame:    *move.F,
		Sequence: *move.C,
	})
}

func (g *Game) onPlayerReady(ctx context.Context, args []json.RawMessage) error {
	var shortID int
	if err := decodeArg(args, 0, &shortID); err != nil {
		return err
	}
	var ready bool
	if err := decodeArg(args, 1, &ready); err != nil {
		return err
	}
	p := g.playerByShortID(shortID)
	if p == nil {
		return fmt.Errorf("ready flag for unknown player %d", shortID)
	}

	g.mu.Lock()
	p.Ready = ready
	g.mu.Unlock()

	if ready {
		g.publish(ctx, events.EventPlayerReady, p)
	}
	return nil
}

func (g *Game) onMatchAbort(ctx context.Context) {
	g.mu.Lock()
	g.inLobby = true
	match := g.match
	g.mu.Unlock()
	g.publish(ctx, events.EventMatchAbort, match)
}

func (g *Game) onMatchStart(ctx context.Context) {
	g.mu.Lock()
	g.inLobby = false
	match := newMatch(g, g.currentMap, 0)
	g.match = match
	g.mu.Unlock()
	g.publish(ctx, events.EventMatchStart, match)
}

func (g *Game) onServerError(ctx context.Context, args []json.RawMessage) error {
	var token string
	if err := decodeArg(args, 0, &token); err != nil {
		return err
	}
	if token == rateLimitPong {
		return nil
	}

	fatal := fatalServerErrors[token]
	g.publish(ctx, events.EventError, ServerError{Token: token, Fatal: fatal})

	if fatal {
		return g.Leave(ctx)
	}
	return nil
}

func (g *Game) onTeamChange(ctx context.Context, args []json.RawMessage) error {
	var shortID, teamNumber int
	if err := decodeArg(args, 0, &shortID); err != nil {
		return err
	}
	if err := decodeArg(args, 1, &teamNumber); err != nil {
		return err
	}
	team, err := types.TeamFromNumber(teamNumber)
	if err != nil {
		return err
	}
	p := g.playerByShortID(shortID)
	if p == nil {
		return fmt.Errorf("team change for unknown player %d", shortID)
	}

	g.mu.Lock()
	p.Team = team
	g.mu.Unlock()

	g.publish(ctx, events.EventPlayerTeamChange, TeamChange{Player: p, Team: team})
	return nil
}

func (g *Game) onTeamLock(ctx context.Context, args []json.RawMessage) error {
	var locked bool
	if err := decodeArg(args, 0, &locked); err != nil {
		return err
	}
	g.mu.Lock()
	g.teamLock = locked
	g.mu.Unlock()
	g.publish(ctx, events.EventTeamLock, locked)
	return nil
}

func (g *Game) onMessage(ctx context.Context, args []json.RawMessage) error {
	var shortID int
	if err := decodeArg(args, 0, &shortID); err != nil {
		return err
	}
	var content string
	if err := decodeArg(args, 1, &content); err != nil {
		return err
	}
	author := g.playerByShortID(shortID)

	g.publish(ctx, events.EventMessage, Message{Author: author, Content: content})
	return nil
}

func (g *Game) onLobbyLoad(ctx context.Context, args []json.RawMessage) error {
	var data struct {
		Mo string `json:"mo"`
		TL bool   `json:"tl"`
		WL int    `json:"wl"`
	}
	if err := decodeArg(args, 0, &data); err != nil {
		return err
	}
	mode, err := types.ModeFromShortName(data.Mo)
	if err != nil {
		return err
	}

	g.mu.Lock()
	g.mode = mode
	g.teamLock = data.TL
	g.rounds = data.WL
	g.mu.Unlock()

	g.publish(ctx, events.EventLobbyLoad, g)
	return nil
}

func (g *Game) onKickBan(ctx context.Context, args []json.RawMessage) error {
	var shortID int
	if err := decodeArg(args, 0, &shortID); err != nil {
		return err
	}
	var kickOnly bool
	if err := decodeArg(args, 1, &kickOnly); err != nil {
		return err
	}
	p := g.playerByShortID(shortID)
	if p == nil {
		return fmt.Errorf("kick for unknown player %d", shortID)
	}

	notice := KickNotice{Player: p, Banned: !kickOnly, Self: p.IsBot}
	if kickOnly {
		g.publish(ctx, events.EventPlayerKick, notice)
	} else {
		g.publish(ctx, events.EventPlayerBan, notice)
	}

	if p.IsBot {
		if !kickOnly {
			g.mu.Lock()
			g.banned = true
			g.mu.Unlock()
		}
		return g.Leave(ctx)
	}
	return nil
}

func (g *Game) onModeChange(ctx context.Context, args []json.RawMessage) error {
	var short string
	if err := decodeArg(args, 1, &short); err != nil {
		return err
	}
	mode, err := types.ModeFromShortName(short)
	if err != nil {
		return err
	}

	g.mu.Lock()
	g.mode = mode
	g.mu.Unlock()

	g.publish(ctx, events.EventModeChange, ModeChange{Mode: mode})
	return nil
}

func (g *Game) onRoundsChange(ctx context.Context, args []json.RawMessage) error {
	var rounds int
	if err := decodeArg(args, 0, &rounds); err != nil {
		return err
	}
	g.mu.Lock()
	g.rounds = rounds
	g.mu.Unlock()
	g.publish(ctx, events.EventRoundsChange, RoundsChange{Rounds: rounds})
	return nil
}

func (g *Game) onMapChange(ctx context.Context, args []json.RawMessage) error {
	var blob string
	if err := decodeArg(args, 0, &blob); err != nil {
		return err
	}
	m, err := bonkmap.FromEncoded(blob)
	if err != nil {
		return err
	}

	g.mu.Lock()
	g.currentMap = m
	g.mu.Unlock()

	g.publish(ctx, events.EventMapChange, MapChange{Map: m})
	return nil
}

func (g *Game) onMapRequestHost(ctx context.Context, args []json.RawMessage) error {
	var blob string
	if err := decodeArg(args, 0, &blob); err != nil {
		return err
	}
	var shortID int
	if err := decodeArg(args, 1, &shortID); err != nil {
		return err
	}
	p := g.playerByShortID(shortID)

	g.publish(ctx, events.EventMapSuggestHost, &MapRequestHost{Player: p, LevelData: blob, game: g})
	return nil
}

func (g *Game) onMapRequestClient(ctx context.Context, args []json.RawMessage) error {
	var name, author string
	if err := decodeArg(args, 0, &name); err != nil {
		return err
	}
	if err := decodeArg(args, 1, &author); err != nil {
		return err
	}
	var shortID int
	if err := decodeArg(args, 2, &shortID); err != nil {
		return err
	}
	p := g.playerByShortID(shortID)

	g.publish(ctx, events.EventMapSuggestClient, MapRequestClient{Player: p, MapName: name, AuthorName: author})
	return nil
}

func (g *Game) onBalance(ctx context.Context, args []json.RawMessage) error {
	var shortID, percent int
	if err := decodeArg(args, 0, &shortID); err != nil {
		return err
	}
	if err := decodeArg(args, 1, &percent); err != nil {
		return err
	}
	p := g.playerByShortID(shortID)
	if p == nil {
		return fmt.Errorf("balance for unknown player %d", shortID)
	}

	g.mu.Lock()
	p.BalancedBy = percent
	g.mu.Unlock()

	g.publish(ctx, events.EventPlayerBalance, BalanceChange{Player: p, Percent: percent})
	return nil
}

func (g *Game) onTeamsToggle(ctx context.Context, args []json.RawMessage) error {
	var enabled bool
	if err := decodeArg(args, 0, &enabled); err != nil {
		return err
	}
	g.mu.Lock()
	g.teams = enabled
	g.mu.Unlock()
	g.publish(ctx, events.EventTeamsToggle, enabled)
	return nil
}

func (g *Game) onReplay(ctx context.Context, args []json.RawMessage) error {
	var shortID int
	if err := decodeArg(args, 0, &shortID); err != nil {
		return err
	}
	g.publish(ctx, events.EventReplay, g.playerByShortID(shortID))
	return nil
}

func (g *Game) onHostChange(ctx context.Context, args []json.RawMessage) error {
	var data struct {
		OldHost int `json:"oldHost"`
		NewHost int `json:"newHost"`
	}
	if err := decodeArg(args, 0, &data); err != nil {
		return err
	}
	oldHost := g.playerByShortID(data.OldHost)
	newHost := g.playerByShortID(data.NewHost)
	if oldHost == nil || newHost == nil {
		return fmt.Errorf("host change between unknown players %d -> %d", data.OldHost, data.NewHost)
	}

	g.transferHost(oldHost, newHost)
	g.publish(ctx, events.EventHostChange, HostTransfer{OldHost: oldHost, NewHost: newHost})
	return nil
}

func (g *Game) onFriendRequest(ctx context.Context, args []json.RawMessage) error {
	var shortID int
	if err := decodeArg(args, 0, &shortID); err != nil {
		return err
	}
	p := g.playerByShortID(shortID)
	if p == nil {
		return fmt.Errorf("friend request from unknown player %d", shortID)
	}
	g.publish(ctx, events.EventFriendRequest, &FriendRequest{Player: p, game: g})
	return nil
}

func (g *Game) onCountdown(ctx context.Context, args []json.RawMessage) error {
	var startsIn int
	if err := decodeArg(args, 0, &startsIn); err != nil {
		return err
	}
	g.publish(ctx, events.EventCountdown, Countdown{StartsIn: startsIn})
	return nil
}

func (g *Game) onLevelUp(ctx context.Context, args []json.RawMessage) error {
	var data struct {
		SID int `json:"sid"`
		LV  int `json:"lv"`
	}
	if err := decodeArg(args, 0, &data); err != nil {
		return err
	}
	p := g.playerByShortID(data.SID)
	if p == nil {
		return fmt.Errorf("level up for unknown player %d", data.SID)
	}

	g.mu.Lock()
	p.Level = data.LV
	g.mu.Unlock()

	g.publish(ctx, events.EventPlayerLevelUp, LevelUp{Player: p, Level: data.LV})
	return nil
}

func (g *Game) onXPGain(ctx context.Context, args []json.RawMessage) error {
	var data struct {
		NewXP    int    `json:"newXP"`
		NewToken string `json:"newToken"`
	}
	if err := decodeArg(args, 0, &data); err != nil {
		return err
	}

	g.account.SetXP(data.NewXP)
	if data.NewToken != "" {
		g.account.RotateToken(data.NewToken)
	}

	g.publish(ctx, events.EventXPGain, XPGain{NewXP: data.NewXP})
	return nil
}

func (g *Game) onMatchInfo(ctx context.Context, args []json.RawMessage) error {
	var data struct {
		FC int `json:"fc"`
	}
	if err := decodeArg(args, 0, &data); err != nil {
		return err
	}

	g.mu.Lock()
	g.match = newMatch(g, g.currentMap, data.FC)
	g.inLobby = false
	match := g.match
	g.mu.Unlock()

	g.publish(ctx, events.EventMatchInfo, match)
	return nil
}

func (g *Game) onJoinLink(ctx context.Context, args []json.RawMessage) error {
	var number int
	if err := decodeArg(args, 0, &number); err != nil {
		return err
	}
	var bypass string
	if err := decodeArg(args, 1, &bypass); err != nil {
		return err
	}

	g.mu.Lock()
	g.joinLink = fmt.Sprintf("https://bonk.io/%06d%s", number, bypass)
	g.connected = true
	g.mu.Unlock()

	g.publish(ctx, events.EventGameConnect, g)
	return nil
}

func (g *Game) onTab(ctx context.Context, args []json.RawMessage) error {
	var shortID int
	if err := decodeArg(args, 0, &shortID); err != nil {
		return err
	}
	var tabbed bool
	if err := decodeArg(args, 1, &tabbed); err != nil {
		return err
	}
	p := g.playerByShortID(shortID)
	if p == nil {
		return fmt.Errorf("tab status for unknown player %d", shortID)
	}

	g.mu.Lock()
	p.Tabbed = tabbed
	g.mu.Unlock()

	g.publish(ctx, events.EventPlayerTabbed, p)
	return nil
}

func (g *Game) onRoomName(ctx context.Context, args []json.RawMessage) error {
	var name string
	if err := decodeArg(args, 0, &name); err != nil {
		return err
	}
	g.mu.Lock()
	g.roomName = name
	g.mu.Unlock()
	g.publish(ctx, events.EventRoomNameChange, RoomNameChange{Name: name})
	return nil
}

func (g *Game) onRoomPassword(ctx context.Context, args []json.RawMessage) error {
	var flag int
	if err := decodeArg(args, 0, &flag); err != nil {
		return err
	}
	g.publish(ctx, events.EventRoomPassword, RoomPasswordChange{Protected: flag != 0})
	return nil
}
