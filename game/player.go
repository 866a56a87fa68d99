package game

import (
	"context"
	"fmt"

	"github.com/Safizapi/bonk-bot/codec"
	"github.com/Safizapi/bonk-bot/types"
)

// Player is one roster entry of a room session.
type Player struct {
	ShortID    int
	PeerID     string
	Username   string
	IsGuest    bool
	Level      int
	IsBot      bool
	IsHost     bool
	Ready      bool
	Tabbed     bool
	Team       types.Team
	Ping       int
	BalancedBy int
	Avatar     codec.Avatar

	game *Game
}

// Kick removes the player from the room. Host only.
func (p *Player) Kick(ctx context.Context) error {
	return p.game.hostCommand(ctx, "kick", func() error {
		return p.game.emit(ctx, opKickBan, map[string]interface{}{
			"banshortid": p.ShortID,
			"kickonly":   true,
		})
	})
}

// Ban removes the player and blocks them from rejoining. Host only.
func (p *Player) Ban(ctx context.Context) error {
	return p.game.hostCommand(ctx, "ban", func() error {
		return p.game.emit(ctx, opKickBan, map[string]interface{}{
			"banshortid": p.ShortID,
			"kickonly":   false,
		})
	})
}

// MoveToTeam puts the player on another team. Host only.
func (p *Player) MoveToTeam(ctx context.Context, team types.Team) error {
	if !team.Valid() {
		return &Error{Code: CodeInvalidArgument, Message: fmt.Sprintf("invalid team %d", int(team))}
	}
	return p.game.hostCommand(ctx, "move_to_team", func() error {
		return p.game.emit(ctx, opMoveToTeam, map[string]interface{}{
			"targetID":   p.ShortID,
			"targetTeam": int(team),
		})
	})
}

// Balance applies a handicap percentage in [-100, 100]. Host only.
func (p *Player) Balance(ctx context.Context, percent int) error {
	if percent < -100 || percent > 100 {
		return &Error{Code: CodeInvalidArgument, Message: fmt.Sprintf("balance %d out of range [-100, 100]", percent)}
	}
	return p.game.hostCommand(ctx, "balance", func() error {
		return p.game.emit(ctx, opBalance, map[string]interface{}{
			"sid": p.ShortID,
			"bal": percent,
		})
	})
}

// GiveHost hands room authority to the player. Host only.
func (p *Player) GiveHost(ctx context.Context) error {
	return p.game.hostCommand(ctx, "give_host", func() error {
		return p.game.emit(ctx, opGrantHost, map[string]interface{}{"id": p.ShortID})
	})
}

// SendFriendRequest sends an in-room friend request to the player.
func (p *Player) SendFriendRequest(ctx context.Context) error {
	return p.game.emit(ctx, opFriendRequest, map[string]interface{}{"id": p.ShortID})
}
