// Package bonkbot is a client for the bonk.io multiplayer game: account
// and guest login, the room list and map catalogs over the account API,
// and live room sessions over the game's websocket protocol.
package bonkbot

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Safizapi/bonk-bot/codec"
	"github.com/Safizapi/bonk-bot/events"
	"github.com/Safizapi/bonk-bot/game"
	"github.com/Safizapi/bonk-bot/logging"
	"github.com/Safizapi/bonk-bot/transport"
)

// LoginError is a rejected login attempt.
type LoginError struct {
	Message string
}

func (e *LoginError) Error() string { return e.Message }

// Bot is a logged-in identity and the sessions opened with it.
type Bot struct {
	api *apiClient
	bus *events.Bus
	log zerolog.Logger

	username      string
	guest         bool
	dbid          int
	avatars       []codec.Avatar
	legacyFriends []string

	mu         sync.RWMutex
	token      string
	xp         int
	mainAvatar codec.Avatar
	games      []*game.Game
}

// BotOption configures a Bot at login time.
type BotOption func(*Bot)

// WithAPIBaseURL points the bot at a different account API host.
func WithAPIBaseURL(base string) BotOption {
	return func(b *Bot) { b.api = newAPIClient(base) }
}

func newBot(opts ...BotOption) *Bot {
	b := &Bot{
		api: newAPIClient(""),
		bus: events.NewBus(),
		log: logging.Component("bot"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Login authenticates a registered account and returns a bot bound
// to it.
func Login(ctx context.Context, username, password string, opts ...BotOption) (*Bot, error) {
	b := newBot(opts...)

	resp, err := b.api.login(ctx, username, password)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			switch apiErr.Token {
			case "username_fail":
				return nil, &LoginError{Message: fmt.Sprintf("unknown username %q", username)}
			case "password":
				return nil, &LoginError{Message: fmt.Sprintf("wrong password for account %q", username)}
			}
		}
		return nil, err
	}

	raw := []string{resp.Avatar1, resp.Avatar2, resp.Avatar3, resp.Avatar4, resp.Avatar5}
	avatars := make([]codec.Avatar, len(raw))
	for i, enc := range raw {
		av, err := codec.DecodeAvatar(enc)
		if err != nil {
			b.log.Warn().Err(err).Int("slot", i+1).Msg("undecodable account avatar, using default")
			av = codec.Avatar{BaseColor: codec.DefaultBaseColor}
		}
		avatars[i] = av
	}

	main := avatars[0]
	if n := resp.ActiveAvatarNumber; n >= 1 && n <= len(avatars) {
		main = avatars[n-1]
	}

	b.username = resp.Username
	b.dbid = resp.ID
	b.token = resp.Token
	b.xp = resp.XP
	b.avatars = avatars
	b.mainAvatar = main
	if resp.LegacyFriends != "" {
		b.legacyFriends = strings.Split(resp.LegacyFriends, "#")
	}

	b.log.Info().Str("username", b.username).Int("level", b.Level()).Msg("logged in")
	return b, nil
}

var guestNameForbidden = regexp.MustCompile(`[:;,.` + "`" + `~!@"'?#$%^&*()+=/|><\-]`)

// GuestLogin returns a bot with a guest identity. Guests cannot use the
// account API and the server may rename them on collision.
func GuestLogin(username string, opts ...BotOption) (*Bot, error) {
	if len(username) < 2 || len(username) > 15 ||
		guestNameForbidden.MatchString(username) || !isASCII(username) {
		return nil, &LoginError{
			Message: "guest name must be 2 to 15 ascii characters without punctuation",
		}
	}

	b := newBot(opts...)
	b.username = username
	b.guest = true
	b.mainAvatar = codec.Avatar{BaseColor: codec.DefaultBaseColor}
	return b, nil
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > 127 {
			return false
		}
	}
	return true
}

// Events is the bus all of the bot's sessions publish to.
func (b *Bot) Events() *events.Bus { return b.bus }

// On subscribes a handler to one event type.
func (b *Bot) On(typ events.EventType, name string, handler events.HandlerFunc) {
	b.bus.Subscribe(typ, name, handler)
}

func (b *Bot) Username() string { return b.username }
func (b *Bot) Guest() bool      { return b.guest }
func (b *Bot) DBID() int        { return b.dbid }

// Level derives the account level from its experience. Guests have no
// level.
func (b *Bot) Level() int {
	if b.guest {
		return 0
	}
	b.mu.RLock()
	xp := b.xp
	b.mu.RUnlock()
	return int(math.Sqrt(float64(xp)/100) + 1)
}

func (b *Bot) Token() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.token
}

// RotateToken replaces the session token. The server pushes a fresh one
// with experience ticks.
func (b *Bot) RotateToken(token string) {
	b.mu.Lock()
	b.token = token
	b.mu.Unlock()
}

func (b *Bot) XP() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.xp
}

func (b *Bot) SetXP(xp int) {
	b.mu.Lock()
	b.xp = xp
	b.mu.Unlock()
}

// Avatar returns the avatar sessions connect with.
func (b *Bot) Avatar() codec.Avatar {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.mainAvatar
}

// SetAvatar changes the avatar used by new sessions.
func (b *Bot) SetAvatar(av codec.Avatar) {
	b.mu.Lock()
	b.mainAvatar = av
	b.mu.Unlock()
}

// Avatars returns the five avatar slots of the account.
func (b *Bot) Avatars() []codec.Avatar {
	return append([]codec.Avatar(nil), b.avatars...)
}

// LegacyFriends returns the usernames imported from the original game.
func (b *Bot) LegacyFriends() []string {
	return append([]string(nil), b.legacyFriends...)
}

// AccountCreationDate estimates when the account was registered from
// its database id.
func (b *Bot) AccountCreationDate() string {
	return DBIDToDate(b.dbid)
}

// Games returns the bot's open sessions.
func (b *Bot) Games() []*game.Game {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]*game.Game(nil), b.games...)
}

func (b *Bot) track(g *game.Game) {
	b.mu.Lock()
	b.games = append(b.games, g)
	b.mu.Unlock()

	go func() {
		<-g.Done()
		b.mu.Lock()
		for i, other := range b.games {
			if other == g {
				b.games = append(b.games[:i], b.games[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
	}()
}

// Wait blocks until every open session has shut down.
func (b *Bot) Wait() {
	for {
		b.mu.RLock()
		var g *game.Game
		if len(b.games) > 0 {
			g = b.games[0]
		}
		b.mu.RUnlock()
		if g == nil {
			return
		}
		<-g.Done()
	}
}

// Stop leaves every open session and stops event delivery.
func (b *Bot) Stop(ctx context.Context) {
	for _, g := range b.Games() {
		if err := g.Leave(ctx); err != nil {
			b.log.Warn().Err(err).Msg("failed to leave session")
		}
	}
	b.Wait()
	b.bus.Stop()
}

func (b *Bot) newGame(server string) *game.Game {
	tr := transport.NewSocketIO(transport.ServerURL(server))
	return game.New(b, tr, b.bus, game.WithFriendsAPI(b))
}

// CreateGame hosts a new room.
func (b *Bot) CreateGame(ctx context.Context, opts game.CreateOptions) (*game.Game, error) {
	g := b.newGame(opts.Server.APIName)
	if err := g.Create(ctx, opts); err != nil {
		return nil, err
	}
	b.track(g)
	return g, nil
}

// JoinRoom joins a room from the room list.
func (b *Bot) JoinRoom(ctx context.Context, room *Room, password string) (*game.Game, error) {
	return b.joinByID(ctx, room.RoomID, room.Name, password)
}

// JoinGameByID joins a room whose listing id is already known, such as
// the room a friend is playing in.
func (b *Bot) JoinGameByID(ctx context.Context, roomID int, password string) (*game.Game, error) {
	return b.joinByID(ctx, roomID, "", password)
}

// rateLimitedToken is the address resolver's reply when a client asks
// too often.
const rateLimitedToken = "ratelimited"

func (b *Bot) joinByID(ctx context.Context, roomID int, roomName, password string) (*game.Game, error) {
	address, server, err := b.api.roomAddress(ctx, roomID)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			gerr := &game.Error{
				Code:    game.CodeRoomNotFound,
				Message: fmt.Sprintf("room %d: %s", roomID, apiErr.Token),
			}
			if apiErr.Token == rateLimitedToken {
				gerr.Code = game.CodeRateLimited
			}
			b.bus.Emit(ctx, events.Event{Type: events.EventError, Source: "bot", Payload: gerr})
			return nil, gerr
		}
		return nil, fmt.Errorf("failed to resolve room %d: %w", roomID, err)
	}

	g := b.newGame(server)
	err = g.Join(ctx, game.JoinOptions{
		Address:  address,
		Password: password,
		RoomName: roomName,
	})
	if err != nil {
		return nil, err
	}
	b.track(g)
	return g, nil
}

// joinLinkBody matches the script fragment a join link page embeds.
var joinLinkBody = regexp.MustCompile(
	`{"address":"(.*?)","roomname":"(.*?)","server":"(.*?)","passbypass":"(.*?)","r":"success"}`)

// JoinGameFromLink joins a room from a share link such as
// https://bonk.io/607883jdyrv.
func (b *Bot) JoinGameFromLink(ctx context.Context, link string) (*game.Game, error) {
	body, err := b.api.getText(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch join link: %w", err)
	}

	match := joinLinkBody.FindSubmatch(body)
	if match == nil {
		return nil, fmt.Errorf("join link %s does not point at a live room", link)
	}
	address, roomName, server, bypass := string(match[1]), string(match[2]), string(match[3]), string(match[4])

	g := b.newGame(server)
	err = g.Join(ctx, game.JoinOptions{
		Address:  address,
		Bypass:   bypass,
		RoomName: roomName,
	})
	if err != nil {
		return nil, err
	}
	b.track(g)
	return g, nil
}
