package game

import (
	"context"
	"sync"
	"time"

	"github.com/Safizapi/bonk-bot/bonkmap"
	"github.com/Safizapi/bonk-bot/types"
)

// Match is one live round. Frames tick at 30 per second from the
// match's start; a session that joined mid-round carries the frame
// offset the server reported.
type Match struct {
	game   *Game
	Map    bonkmap.Map
	start  time.Time
	offset int

	mu   sync.Mutex
	held []types.Input
}

func newMatch(g *Game, m bonkmap.Map, offset int) *Match {
	return &Match{game: g, Map: m, start: time.Now(), offset: offset}
}

// CurrentFrame returns the frame number the match is at right now.
func (m *Match) CurrentFrame() int {
	return int(time.Since(m.start).Seconds()*30) + m.offset
}

// Held returns the inputs currently pressed.
func (m *Match) Held() []types.Input {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.Input(nil), m.held...)
}

// Move presses the given inputs for the given duration, then releases
// them. Inputs already held by an overlapping Move stay pressed.
func (m *Match) Move(ctx context.Context, duration time.Duration, keys ...types.Input) error {
	m.mu.Lock()
	m.held = append(m.held, keys...)
	bits := types.Bits(m.held...)
	m.mu.Unlock()

	if err := m.sendMove(ctx, bits); err != nil {
		return err
	}

	select {
	case <-time.After(duration):
	case <-ctx.Done():
		// Still release the keys so the player does not run forever.
	}

	m.mu.Lock()
	for _, key := range keys {
		bits ^= int(key)
		m.held = removeInput(m.held, key)
	}
	m.mu.Unlock()

	return m.sendMove(ctx, bits)
}

func (m *Match) sendMove(ctx context.Context, bits int) error {
	seq := m.game.nextMoveSequence()
	return m.game.emit(ctx, opMoveInput, map[string]interface{}{
		"i": bits,
		"f": m.CurrentFrame(),
		"c": seq,
	})
}

// removeInput removes the first occurrence of key.
func removeInput(held []types.Input, key types.Input) []types.Input {
	for i, in := range held {
		if in == key {
			return append(held[:i], held[i+1:]...)
		}
	}
	return held
}
