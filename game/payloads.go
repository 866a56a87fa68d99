package game

import (
	"context"

	"github.com/Safizapi/bonk-bot/bonkmap"
	"github.com/Safizapi/bonk-bot/types"
)

// Message is one chat line received in the room.
type Message struct {
	Author  *Player
	Content string
}

// PlayerMove is a decoded move frame from another player.
type PlayerMove struct {
	Player   *Player
	Inputs   []types.Input
	Frame    int
	Sequence int
}

// PlayerPing is a ping reading for one player.
type PlayerPing struct {
	Player *Player
	Ping   int
}

// TeamChange reports a player switching teams.
type TeamChange struct {
	Player *Player
	Team   types.Team
}

// BalanceChange reports a handicap applied to a player.
type BalanceChange struct {
	Player  *Player
	Percent int
}

// LevelUp reports a player reaching a new level.
type LevelUp struct {
	Player *Player
	Level  int
}

// XPGain reports the session account's new experience total.
type XPGain struct {
	NewXP int
}

// HostTransfer reports room authority moving between players.
type HostTransfer struct {
	OldHost *Player
	NewHost *Player
}

// KickNotice reports a player being kicked or banned. Self is set when
// the session's own player was the target.
type KickNotice struct {
	Player *Player
	Banned bool
	Self   bool
}

// ModeChange reports the room switching modes.
type ModeChange struct {
	Mode types.Mode
}

// RoundsChange reports a new rounds-to-win setting.
type RoundsChange struct {
	Rounds int
}

// MapChange reports the host loading a new map.
type MapChange struct {
	Map bonkmap.Map
}

// Countdown reports the pre-match countdown.
type Countdown struct {
	StartsIn int
}

// RoomNameChange reports the room being renamed.
type RoomNameChange struct {
	Name string
}

// RoomPasswordChange reports the room password being set or cleared.
type RoomPasswordChange struct {
	Protected bool
}

// MapRequestHost is a map suggestion as seen by the host: it carries
// the full blob and can be loaded directly.
type MapRequestHost struct {
	Player    *Player
	LevelData string

	game *Game
}

// Map decodes the suggested blob's metadata into a catalog entry.
func (r *MapRequestHost) Map() (bonkmap.Map, error) {
	return bonkmap.FromEncoded(r.LevelData)
}

// Load sets the suggested map as the room map.
func (r *MapRequestHost) Load(ctx context.Context) error {
	if err := r.game.emit(ctx, opSetMap, map[string]interface{}{"m": r.LevelData}); err != nil {
		return err
	}
	m, err := r.Map()
	if err != nil {
		return err
	}
	r.game.mu.Lock()
	r.game.currentMap = m
	r.game.mu.Unlock()
	return nil
}

// MapRequestClient is a map suggestion as seen by a non-host: name and
// author only.
type MapRequestClient struct {
	Player     *Player
	MapName    string
	AuthorName string
}

// FriendRequest is an in-room friend request from another player.
type FriendRequest struct {
	Player *Player

	game *Game
}

// Accept acknowledges the request in the room. When both sides are
// registered accounts the acceptance is also pushed to the friends API.
func (r *FriendRequest) Accept(ctx context.Context) error {
	if err := r.game.emit(ctx, opFriendRequest, map[string]interface{}{"id": r.Player.ShortID}); err != nil {
		return err
	}
	if r.game.friends != nil && !r.game.account.Guest() && !r.Player.IsGuest {
		return r.game.friends.SendFriendRequest(ctx, r.Player.Username)
	}
	return nil
}

// PermissionDenied is the payload of a denied host-only command.
type PermissionDenied struct {
	Command string
	Err     *Error
}

// ServerError is the payload of an error frame pushed by the server.
type ServerError struct {
	Token string
	Fatal bool
}
