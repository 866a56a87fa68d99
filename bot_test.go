package bonkbot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Safizapi/bonk-bot/events"
	"github.com/Safizapi/bonk-bot/game"
)

// apiStub serves canned JSON per endpoint path and records the forms it
// received.
func apiStub(t *testing.T, replies map[string]interface{}) (*httptest.Server, *map[string]url.Values) {
	t.Helper()
	seen := make(map[string]url.Values)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		seen[r.URL.Path] = r.PostForm

		reply, ok := replies[r.URL.Path]
		if !ok {
			t.Errorf("unexpected request to %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		if err := json.NewEncoder(w).Encode(reply); err != nil {
			t.Errorf("encode reply: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func loginReply() map[string]interface{} {
	return map[string]interface{}{
		"token":              "tok-abc",
		"id":                 777000,
		"username":           "tester",
		"xp":                 12100,
		"avatar1":            "",
		"avatar2":            "",
		"avatar3":            "",
		"avatar4":            "",
		"avatar5":            "",
		"activeAvatarNumber": 2,
		"legacyFriends":      "oldpal#otherpal",
	}
}

func TestLogin(t *testing.T) {
	srv, seen := apiStub(t, map[string]interface{}{loginPath: loginReply()})

	bot, err := Login(context.Background(), "tester", "hunter2", WithAPIBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	t.Cleanup(func() { bot.Stop(context.Background()) })

	form := (*seen)[loginPath]
	if form.Get("username") != "tester" || form.Get("password") != "hunter2" {
		t.Errorf("login form = %v", form)
	}
	if form.Get("remember") != "false" {
		t.Errorf("remember = %q, want false", form.Get("remember"))
	}

	if bot.Username() != "tester" || bot.Guest() {
		t.Errorf("identity = %q guest=%v", bot.Username(), bot.Guest())
	}
	if bot.Token() != "tok-abc" || bot.DBID() != 777000 {
		t.Errorf("token/dbid = %q/%d", bot.Token(), bot.DBID())
	}
	// 12100 xp -> sqrt(121)+1 = 12
	if bot.Level() != 12 {
		t.Errorf("Level() = %d, want 12", bot.Level())
	}
	if got := bot.LegacyFriends(); len(got) != 2 || got[0] != "oldpal" {
		t.Errorf("LegacyFriends() = %v", got)
	}
	if len(bot.Avatars()) != 5 {
		t.Errorf("Avatars() has %d slots, want 5", len(bot.Avatars()))
	}
}

func TestLoginRejected(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"unknown username", "username_fail"},
		{"wrong password", "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := apiStub(t, map[string]interface{}{
				loginPath: map[string]string{"e": tt.token},
			})

			_, err := Login(context.Background(), "tester", "nope", WithAPIBaseURL(srv.URL))
			var lerr *LoginError
			if !errors.As(err, &lerr) {
				t.Fatalf("Login() error = %v, want LoginError", err)
			}
		})
	}
}

func TestGuestLoginValidation(t *testing.T) {
	tests := []struct {
		name     string
		username string
		ok       bool
	}{
		{"valid", "bonk_fan42", true},
		{"minimum length", "ab", true},
		{"maximum length", strings.Repeat("a", 15), true},
		{"too short", "a", false},
		{"too long", strings.Repeat("a", 16), false},
		{"punctuation", "so;rry", false},
		{"quote", `he"llo`, false},
		{"non ascii", "böt", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot, err := GuestLogin(tt.username)
			if tt.ok {
				if err != nil {
					t.Fatalf("GuestLogin(%q): %v", tt.username, err)
				}
				if !bot.Guest() || bot.Level() != 0 {
					t.Errorf("guest=%v level=%d, want guest at level 0", bot.Guest(), bot.Level())
				}
				bot.Stop(context.Background())
				return
			}
			var lerr *LoginError
			if !errors.As(err, &lerr) {
				t.Fatalf("GuestLogin(%q) = %v, want LoginError", tt.username, err)
			}
		})
	}
}

func TestFetchRooms(t *testing.T) {
	srv, seen := apiStub(t, map[string]interface{}{
		loginPath: loginReply(),
		roomsPath: map[string]interface{}{
			"rooms": []map[string]interface{}{
				{
					"id": 42, "roomname": "spikes only", "players": 3, "maxplayers": 8,
					"password": 1, "mode_mo": "ar", "minlevel": 5, "maxlevel": 99,
				},
				{
					"id": 43, "roomname": "chill", "players": 1, "maxplayers": 4,
					"password": 0, "mode_mo": "b", "minlevel": 0, "maxlevel": 999,
				},
			},
		},
	})

	bot, err := Login(context.Background(), "tester", "hunter2", WithAPIBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	t.Cleanup(func() { bot.Stop(context.Background()) })

	rooms, err := bot.FetchRooms(context.Background())
	if err != nil {
		t.Fatalf("FetchRooms: %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("len(rooms) = %d, want 2", len(rooms))
	}
	first := rooms[0]
	if first.Name != "spikes only" || !first.HasPassword || first.Mode.ShortName != "ar" {
		t.Errorf("rooms[0] = %+v", first)
	}
	if rooms[1].HasPassword {
		t.Error("rooms[1] should not be password protected")
	}
	if (*seen)[roomsPath].Get("gl") != "n" {
		t.Errorf("rooms form = %v", (*seen)[roomsPath])
	}
}

func TestFetchLegacyMaps(t *testing.T) {
	// The legacy endpoint answers with one url-encoded query string per
	// row: values carry + and %XX escapes, separators stay literal.
	row := "mapid0=1597734&mapname0=hammer+time&creationdate0=2011-07-02+12%3A00%3A31" +
		"&modifieddate0=2013-01-10+09%3A30%3A00&thumbsup0=12&thumbsdown0=3&score0=9" +
		"&authorname0=chaz&leveldata0=AAAA"
	srv, _ := apiStub(t, map[string]interface{}{
		loginPath:     loginReply(),
		legacyMapPath: map[string]string{"maps": row},
	})

	bot, err := Login(context.Background(), "tester", "hunter2", WithAPIBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	t.Cleanup(func() { bot.Stop(context.Background()) })

	maps, err := bot.FetchLegacyMaps(context.Background(), "hammer", true, true)
	if err != nil {
		t.Fatalf("FetchLegacyMaps: %v", err)
	}
	if len(maps) != 1 {
		t.Fatalf("len(maps) = %d, want 1", len(maps))
	}
	m := maps[0]
	if m.MapID != 1597734 || m.MapName != "hammer time" || m.AuthorName != "chaz" {
		t.Errorf("map = %+v", m)
	}
	if m.VotesUp != 12 || m.VotesDown != 3 {
		t.Errorf("votes = %d/%d, want 12/3", m.VotesUp, m.VotesDown)
	}
	if m.Blob != "AAAA" {
		t.Errorf("blob = %q", m.Blob)
	}
}

func TestFetchFriendList(t *testing.T) {
	srv, seen := apiStub(t, map[string]interface{}{
		loginPath: loginReply(),
		friendsPath: map[string]interface{}{
			"friends": []map[string]interface{}{
				{"id": 100, "name": "alex", "roomid": 55},
				{"id": 200, "name": "sam", "roomid": 0},
			},
			"requests": []map[string]interface{}{
				{"id": 300, "name": "stranger", "date": "2024-03-01"},
			},
		},
	})

	bot, err := Login(context.Background(), "tester", "hunter2", WithAPIBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	t.Cleanup(func() { bot.Stop(context.Background()) })

	list, err := bot.FetchFriendList(context.Background())
	if err != nil {
		t.Fatalf("FetchFriendList: %v", err)
	}
	if len(list.Friends) != 2 || len(list.Requests) != 1 {
		t.Fatalf("list = %d friends / %d requests", len(list.Friends), len(list.Requests))
	}
	if list.Friends[0].Username != "alex" || list.Friends[0].RoomID != 55 {
		t.Errorf("friend = %+v", list.Friends[0])
	}
	form := (*seen)[friendsPath]
	if form.Get("task") != "getfriends" || form.Get("token") != "tok-abc" {
		t.Errorf("friends form = %v", form)
	}

	if err := list.Requests[0].Accept(context.Background()); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	form = (*seen)[friendsPath]
	if form.Get("task") != "accept" || form.Get("theirid") != "300" {
		t.Errorf("accept form = %v", form)
	}

	if err := list.Friends[1].Unfriend(context.Background()); err != nil {
		t.Fatalf("Unfriend: %v", err)
	}
	form = (*seen)[friendsPath]
	if form.Get("task") != "unfriend" || form.Get("theirid") != "200" {
		t.Errorf("unfriend form = %v", form)
	}
}

func TestJoinByIDResolverErrors(t *testing.T) {
	cases := []struct {
		name  string
		token string
		code  game.ErrorCode
	}{
		{"rate limited", "ratelimited", game.CodeRateLimited},
		{"room gone", "roomnotfound", game.CodeRoomNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := apiStub(t, map[string]interface{}{
				roomAddressPath: map[string]interface{}{"e": tc.token},
			})

			bot, err := GuestLogin("tester", WithAPIBaseURL(srv.URL))
			if err != nil {
				t.Fatalf("GuestLogin: %v", err)
			}
			t.Cleanup(func() { bot.Stop(context.Background()) })

			errCh := make(chan events.Event, 1)
			bot.On(events.EventError, "test.joinError", func(ctx context.Context, ev events.Event) error {
				errCh <- ev
				return nil
			})

			_, err = bot.JoinGameByID(context.Background(), 123456, "")
			var gerr *game.Error
			if !errors.As(err, &gerr) {
				t.Fatalf("JoinGameByID error = %v, want *game.Error", err)
			}
			if gerr.Code != tc.code {
				t.Fatalf("error code = %s, want %s", gerr.Code, tc.code)
			}

			select {
			case ev := <-errCh:
				payload, ok := ev.Payload.(*game.Error)
				if !ok {
					t.Fatalf("error event payload = %#v, want *game.Error", ev.Payload)
				}
				if payload.Code != tc.code {
					t.Errorf("event error code = %s, want %s", payload.Code, tc.code)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("failed join produced no error event")
			}
		})
	}
}

func TestDeleteMap(t *testing.T) {
	srv, seen := apiStub(t, map[string]interface{}{
		loginPath:     loginReply(),
		mapDeletePath: map[string]interface{}{"r": "success"},
	})

	bot, err := Login(context.Background(), "tester", "hunter2", WithAPIBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	t.Cleanup(func() { bot.Stop(context.Background()) })

	if err := bot.DeleteMap(context.Background(), 9001); err != nil {
		t.Fatalf("DeleteMap: %v", err)
	}
	form := (*seen)[mapDeletePath]
	if form.Get("mapid") != "9001" || form.Get("token") != "tok-abc" {
		t.Errorf("delete form = %v", form)
	}
}

func TestAPIErrorToken(t *testing.T) {
	srv, _ := apiStub(t, map[string]interface{}{
		loginPath:     loginReply(),
		mapSearchPath: map[string]string{"e": "invalid_options"},
	})

	bot, err := Login(context.Background(), "tester", "hunter2", WithAPIBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	t.Cleanup(func() { bot.Stop(context.Background()) })

	_, err = bot.FetchMaps(context.Background(), "anything", false, false)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Token != "invalid_options" {
		t.Fatalf("FetchMaps() error = %v, want invalid_options token", err)
	}
}

func TestDBIDToDate(t *testing.T) {
	first := dbidAnchors[0]
	last := dbidAnchors[len(dbidAnchors)-1]

	if got, want := DBIDToDate(first.id-1), fmt.Sprintf("Before %s", first.date); got != want {
		t.Errorf("DBIDToDate(%d) = %q, want %q", first.id-1, got, want)
	}
	if got, want := DBIDToDate(last.id+1), fmt.Sprintf("After %s", last.date); got != want {
		t.Errorf("DBIDToDate(%d) = %q, want %q", last.id+1, got, want)
	}

	// An anchor id maps to its own date.
	if got := DBIDToDate(dbidAnchors[3].id); !strings.HasPrefix(got, dbidAnchors[3].date) {
		t.Errorf("DBIDToDate(anchor) = %q, want prefix %q", got, dbidAnchors[3].date)
	}

	// A midpoint id lands strictly between its bracketing anchors.
	lo, hi := dbidAnchors[3], dbidAnchors[4]
	mid := DBIDToDate((lo.id + hi.id) / 2)
	if mid <= lo.date || mid >= hi.date+" 23:59:59" {
		t.Errorf("DBIDToDate(midpoint) = %q, want between %s and %s", mid, lo.date, hi.date)
	}
}
