package types

import "fmt"

// Input is a single match input flag. Flags combine bitwise into the
// value carried by move frames.
type Input int

const (
	InputNone    Input = 0
	InputLeft    Input = 1
	InputRight   Input = 2
	InputUp      Input = 4
	InputDown    Input = 8
	InputHeavy   Input = 16
	InputSpecial Input = 32
)

// AllInputs lists the individual input flags, excluding InputNone.
var AllInputs = []Input{InputLeft, InputRight, InputUp, InputDown, InputHeavy, InputSpecial}

var inputStrings = map[Input]string{
	InputNone:    "none",
	InputLeft:    "left",
	InputRight:   "right",
	InputUp:      "up",
	InputDown:    "down",
	InputHeavy:   "heavy",
	InputSpecial: "special",
}

func (i Input) String() string {
	if s, ok := inputStrings[i]; ok {
		return s
	}
	return fmt.Sprintf("input(%d)", int(i))
}

// directions maps the low 4 bits of a move frame to its held direction
// keys, in the order the live clients report them.
var directions = [16][]Input{
	0:  {},
	1:  {InputLeft},
	2:  {InputRight},
	3:  {InputLeft, InputRight},
	4:  {InputUp},
	5:  {InputUp, InputLeft},
	6:  {InputUp, InputRight},
	7:  {InputUp, InputLeft, InputRight},
	8:  {InputDown},
	9:  {InputDown, InputLeft},
	10: {InputDown, InputRight},
	11: {InputDown, InputLeft, InputRight},
	12: {InputUp, InputDown},
	13: {InputUp, InputDown, InputLeft},
	14: {InputUp, InputDown, InputRight},
	15: {InputUp, InputDown, InputLeft, InputRight},
}

// InputsFromBits decodes the combined bitmask carried by an inbound move
// frame into the list of held inputs. Heavy and special flags come first,
// then the direction keys.
func InputsFromBits(bits int) ([]Input, error) {
	if bits < 0 || bits > 63 {
		return nil, fmt.Errorf("move bits %d out of range", bits)
	}
	var held []Input
	rest := bits
	switch {
	case rest > 45:
		held = append(held, InputHeavy, InputSpecial)
		rest -= 48
	case rest >= 32:
		held = append(held, InputSpecial)
		rest -= 32
	case rest >= 16:
		held = append(held, InputHeavy)
		rest -= 16
	}
	if rest < 0 || rest > 15 {
		return nil, fmt.Errorf("move bits %d out of range", bits)
	}
	held = append(held, directions[rest]...)
	if len(held) == 0 {
		return []Input{}, nil
	}
	return held, nil
}

// Bits combines a set of inputs into the wire bitmask.
func Bits(inputs ...Input) int {
	bits := 0
	for _, in := range inputs {
		bits |= int(in)
	}
	return bits
}
