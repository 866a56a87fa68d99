// Package types defines the fixed enumerations of the bonk.io protocol:
// teams, game modes, servers and movement inputs, each carrying the
// token(s) the wire uses for it.
package types

import "fmt"

// Team is a player team slot. The numeric value is the wire code.
type Team int

const (
	TeamSpectator Team = 0
	TeamFFA       Team = 1
	TeamRed       Team = 2
	TeamBlue      Team = 3
	TeamGreen     Team = 4
	TeamYellow    Team = 5
)

var teamStrings = map[Team]string{
	TeamSpectator: "spectator",
	TeamFFA:       "ffa",
	TeamRed:       "red",
	TeamBlue:      "blue",
	TeamGreen:     "green",
	TeamYellow:    "yellow",
}

// String returns the lowercase name of the team.
func (t Team) String() string {
	if s, ok := teamStrings[t]; ok {
		return s
	}
	return fmt.Sprintf("team(%d)", int(t))
}

// Valid reports whether t is one of the six known teams.
func (t Team) Valid() bool {
	_, ok := teamStrings[t]
	return ok
}

// AllTeams lists every team in wire-code order.
var AllTeams = []Team{TeamSpectator, TeamFFA, TeamRed, TeamBlue, TeamGreen, TeamYellow}

// TeamFromNumber maps a wire team code to a Team.
func TeamFromNumber(number int) (Team, error) {
	t := Team(number)
	if !t.Valid() {
		return 0, fmt.Errorf("unknown team number %d", number)
	}
	return t, nil
}
