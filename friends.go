package bonkbot

import (
	"context"
	"net/url"
	"strconv"

	"github.com/Safizapi/bonk-bot/game"
)

// Friend is one confirmed entry in the account's friend list. RoomID is
// non-zero when the friend is currently in a public room.
type Friend struct {
	UserID   int
	Username string
	RoomID   int

	bot *Bot
}

// AccountCreationDate estimates when the friend's account was
// registered.
func (f *Friend) AccountCreationDate() string {
	return DBIDToDate(f.UserID)
}

// Unfriend removes the friend from the account's list.
func (f *Friend) Unfriend(ctx context.Context) error {
	return f.bot.api.friendsTask(ctx, f.bot.Token(), url.Values{
		"task":    {"unfriend"},
		"theirid": {strconv.Itoa(f.UserID)},
	}, nil)
}

// JoinGame joins the room the friend is playing in.
func (f *Friend) JoinGame(ctx context.Context) (*game.Game, error) {
	return f.bot.JoinGameByID(ctx, f.RoomID, "")
}

// IncomingRequest is a pending friend request sent to the account.
type IncomingRequest struct {
	UserID   int
	Username string
	Date     string

	bot *Bot
}

// Accept confirms the request.
func (r *IncomingRequest) Accept(ctx context.Context) error {
	return r.bot.api.friendsTask(ctx, r.bot.Token(), url.Values{
		"task":    {"accept"},
		"theirid": {strconv.Itoa(r.UserID)},
	}, nil)
}

// Decline deletes the request without confirming it.
func (r *IncomingRequest) Decline(ctx context.Context) error {
	return r.bot.api.friendsTask(ctx, r.bot.Token(), url.Values{
		"task":    {"deleterequest"},
		"theirid": {strconv.Itoa(r.UserID)},
	}, nil)
}

// FriendList is the account's friends and pending requests.
type FriendList struct {
	Friends  []*Friend
	Requests []*IncomingRequest
}

// FetchFriendList returns the account's friend list.
func (b *Bot) FetchFriendList(ctx context.Context) (*FriendList, error) {
	var out struct {
		Friends []struct {
			ID     int    `json:"id"`
			Name   string `json:"name"`
			RoomID int    `json:"roomid"`
		} `json:"friends"`
		Requests []struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
			Date string `json:"date"`
		} `json:"requests"`
	}
	err := b.api.friendsTask(ctx, b.Token(), url.Values{"task": {"getfriends"}}, &out)
	if err != nil {
		return nil, err
	}

	list := &FriendList{}
	for _, f := range out.Friends {
		list.Friends = append(list.Friends, &Friend{
			UserID:   f.ID,
			Username: f.Name,
			RoomID:   f.RoomID,
			bot:      b,
		})
	}
	for _, r := range out.Requests {
		list.Requests = append(list.Requests, &IncomingRequest{
			UserID:   r.ID,
			Username: r.Name,
			Date:     r.Date,
			bot:      b,
		})
	}
	return list, nil
}

// SendFriendRequest sends a friend request by username.
func (b *Bot) SendFriendRequest(ctx context.Context, username string) error {
	return b.api.friendsTask(ctx, b.Token(), url.Values{
		"task":      {"send"},
		"theirname": {username},
	}, nil)
}
