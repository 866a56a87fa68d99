package types

import "fmt"

// Mode is a game mode. Each mode carries the two tokens the wire uses for
// it: a coarse game-type code ("ga") and a short mode code ("mo").
type Mode struct {
	GA        string
	ShortName string
}

var (
	ModeClassic     = Mode{GA: "b", ShortName: "b"}
	ModeSimple      = Mode{GA: "b", ShortName: "bs"}
	ModeArrows      = Mode{GA: "b", ShortName: "ar"}
	ModeDeathArrows = Mode{GA: "b", ShortName: "ard"}
	ModeGrapple     = Mode{GA: "b", ShortName: "sp"}
	ModeVTOL        = Mode{GA: "b", ShortName: "v"}
	ModeFootball    = Mode{GA: "f", ShortName: "f"}
)

// AllModes lists every known mode.
var AllModes = []Mode{
	ModeClassic, ModeSimple, ModeArrows, ModeDeathArrows, ModeGrapple, ModeVTOL, ModeFootball,
}

var modeNames = map[string]string{
	"b":   "classic",
	"bs":  "simple",
	"ar":  "arrows",
	"ard": "death arrows",
	"sp":  "grapple",
	"v":   "vtol",
	"f":   "football",
}

// String returns a human-readable name for the mode.
func (m Mode) String() string {
	if s, ok := modeNames[m.ShortName]; ok {
		return s
	}
	return fmt.Sprintf("mode(%s)", m.ShortName)
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	for _, known := range AllModes {
		if known == m {
			return true
		}
	}
	return false
}

// ModeFromShortName maps a wire mode code to a Mode.
func ModeFromShortName(shortName string) (Mode, error) {
	for _, m := range AllModes {
		if m.ShortName == shortName {
			return m, nil
		}
	}
	return Mode{}, fmt.Errorf("unknown mode short name %q", shortName)
}
