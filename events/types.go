// Package events defines the event types a room session emits and the
// bus that delivers them.
package events

// EventType identifies a room session event.
type EventType string

const (
	// Session lifecycle
	EventConnected   EventType = "connected"
	EventGameConnect EventType = "game_connect"
	EventGameClose   EventType = "game_close"
	EventError       EventType = "error"

	// Roster
	EventPlayerJoin    EventType = "player_join"
	EventPlayerLeave   EventType = "player_leave"
	EventHostLeave     EventType = "host_leave"
	EventHostChange    EventType = "host_change"
	EventPlayerKick    EventType = "player_kick"
	EventPlayerBan     EventType = "player_ban"
	EventPlayerBalance EventType = "player_balance"

	// Player state
	EventPlayerPing       EventType = "player_ping"
	EventPlayerReady      EventType = "player_ready"
	EventPlayerTeamChange EventType = "player_team_change"
	EventPlayerMove       EventType = "player_move"
	EventPlayerLevelUp    EventType = "player_level_up"
	EventXPGain           EventType = "xp_gain"
	EventAFKWarn          EventType = "afk_warn"
	EventPlayerTabbed     EventType = "player_tabbed"

	// Room settings
	EventTeamLock         EventType = "team_lock"
	EventTeamsToggle      EventType = "teams_toggle"
	EventModeChange       EventType = "mode_change"
	EventRoundsChange     EventType = "rounds_change"
	EventMapChange        EventType = "map_change"
	EventMapSuggestHost   EventType = "map_suggest_host"
	EventMapSuggestClient EventType = "map_suggest_client"
	EventRoomNameChange   EventType = "room_name_change"
	EventRoomPassword     EventType = "room_password_change"
	EventLobbyLoad        EventType = "lobby_load"

	// Match flow
	EventMatchStart     EventType = "match_start"
	EventMatchAbort     EventType = "match_abort"
	EventMatchInfo      EventType = "match_info"
	EventCountdown      EventType = "countdown"
	EventCountdownAbort EventType = "countdown_abort"
	EventReplay         EventType = "replay"

	// Social
	EventMessage       EventType = "message"
	EventFriendRequest EventType = "friend_request"

	// Command policy
	EventPermissionDenied EventType = "permission_denied"
)

// Event is a single session event.
type Event struct {
	Type    EventType
	Source  string
	Payload interface{}
}
