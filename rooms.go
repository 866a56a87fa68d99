package bonkbot

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/Safizapi/bonk-bot/game"
	"github.com/Safizapi/bonk-bot/types"
)

// Room is one entry from the public room list.
type Room struct {
	RoomID      int
	Name        string
	Players     int
	MaxPlayers  int
	HasPassword bool
	Mode        types.Mode
	MinLevel    int
	MaxLevel    int

	bot *Bot
}

// Join connects to the room.
func (r *Room) Join(ctx context.Context, password string) (*game.Game, error) {
	return r.bot.JoinRoom(ctx, r, password)
}

// FetchRooms returns the public room list.
func (b *Bot) FetchRooms(ctx context.Context) ([]*Room, error) {
	form := url.Values{
		"version": {strconv.Itoa(game.ProtocolVersion)},
		"gl":      {"n"},
		"token":   {""},
	}
	var out struct {
		Rooms []struct {
			ID         int    `json:"id"`
			RoomName   string `json:"roomname"`
			Players    int    `json:"players"`
			MaxPlayers int    `json:"maxplayers"`
			Password   int    `json:"password"`
			ModeMO     string `json:"mode_mo"`
			MinLevel   int    `json:"minlevel"`
			MaxLevel   int    `json:"maxlevel"`
		} `json:"rooms"`
	}
	if err := b.api.postForm(ctx, roomsPath, form, &out); err != nil {
		return nil, err
	}

	rooms := make([]*Room, 0, len(out.Rooms))
	for _, r := range out.Rooms {
		mode, err := types.ModeFromShortName(r.ModeMO)
		if err != nil {
			mode = types.ModeClassic
		}
		rooms = append(rooms, &Room{
			RoomID:      r.ID,
			Name:        r.RoomName,
			Players:     r.Players,
			MaxPlayers:  r.MaxPlayers,
			HasPassword: r.Password == 1,
			Mode:        mode,
			MinLevel:    r.MinLevel,
			MaxLevel:    r.MaxLevel,
			bot:         b,
		})
	}
	return rooms, nil
}

// Online is the current player count split by queue.
type Online struct {
	QuickClassic int `json:"quick_classic"`
	QuickArrows  int `json:"quick_arrows"`
	QuickGrapple int `json:"quick_grapple"`
	Custom       int `json:"custom"`
	QuickSimple  int `json:"quick_simple"`
	Total        int `json:"total"`
}

// FetchOnline returns how many players are on right now.
func (b *Bot) FetchOnline(ctx context.Context) (*Online, error) {
	body, err := b.api.getText(ctx, playerCountURL)
	if err != nil {
		return nil, err
	}
	var out struct {
		Bonk Online `json:"bonk"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return &out.Bonk, nil
}
