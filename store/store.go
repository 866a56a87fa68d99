// Package store persists what the bot observes in rooms: a chat log
// and a register of players it has seen, in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/Safizapi/bonk-bot/events"
	"github.com/Safizapi/bonk-bot/game"
	"github.com/Safizapi/bonk-bot/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS chat_log (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	author  TEXT NOT NULL,
	guest   INTEGER NOT NULL DEFAULT 0,
	content TEXT NOT NULL,
	at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS seen_players (
	username   TEXT PRIMARY KEY,
	guest      INTEGER NOT NULL,
	level      INTEGER NOT NULL,
	first_seen TEXT NOT NULL,
	last_seen  TEXT NOT NULL,
	sightings  INTEGER NOT NULL DEFAULT 1
);
`

// Store wraps the SQLite database with thread-safe access.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
	log  zerolog.Logger
}

// Open opens or creates the database at the given path and applies the
// schema.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", dbPath, err)
	}

	// SQLite does not support concurrent writes.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	log := logging.Component("store")

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		log.Warn().Err(err).Msg("failed to enable WAL mode")
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("store opened")
	return &Store{db: db, path: dbPath, log: log}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Attach subscribes the store to session events so chat lines and
// player sightings are recorded as they happen.
func (s *Store) Attach(bus *events.Bus) {
	bus.Subscribe(events.EventMessage, "store.chat", s.onMessage)
	bus.Subscribe(events.EventPlayerJoin, "store.playerJoin", s.onPlayerJoin)
	bus.Subscribe(events.EventGameConnect, "store.roster", s.onRoster)
}

func (s *Store) onMessage(ctx context.Context, ev events.Event) error {
	msg, ok := ev.Payload.(game.Message)
	if !ok {
		return nil
	}
	author, guest := "", false
	if msg.Author != nil {
		author, guest = msg.Author.Username, msg.Author.IsGuest
	}
	return s.RecordMessage(author, guest, msg.Content)
}

func (s *Store) onPlayerJoin(ctx context.Context, ev events.Event) error {
	p, ok := ev.Payload.(*game.Player)
	if !ok {
		return nil
	}
	return s.RecordSighting(p.Username, p.IsGuest, p.Level)
}

func (s *Store) onRoster(ctx context.Context, ev events.Event) error {
	g, ok := ev.Payload.(*game.Game)
	if !ok {
		return nil
	}
	for _, p := range g.Players() {
		if err := s.RecordSighting(p.Username, p.IsGuest, p.Level); err != nil {
			return err
		}
	}
	return nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// RecordMessage appends one chat line to the log.
func (s *Store) RecordMessage(author string, guest bool, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		"INSERT INTO chat_log (author, guest, content, at) VALUES (?, ?, ?, ?)",
		author, guest, content, now())
	if err != nil {
		return fmt.Errorf("failed to record message: %w", err)
	}
	return nil
}

// RecordSighting upserts a player into the register.
func (s *Store) RecordSighting(username string, guest bool, level int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := now()
	_, err := s.db.Exec(`
		INSERT INTO seen_players (username, guest, level, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			level = excluded.level,
			last_seen = excluded.last_seen,
			sightings = sightings + 1`,
		username, guest, level, ts, ts)
	if err != nil {
		return fmt.Errorf("failed to record sighting: %w", err)
	}
	return nil
}

// ChatLine is one recorded chat message.
type ChatLine struct {
	Author  string
	Guest   bool
	Content string
	At      string
}

// RecentChat returns the latest chat lines, newest first.
func (s *Store) RecentChat(limit int) ([]ChatLine, error) {
	rows, err := s.db.Query(
		"SELECT author, guest, content, at FROM chat_log ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat log: %w", err)
	}
	defer rows.Close()

	var lines []ChatLine
	for rows.Next() {
		var l ChatLine
		if err := rows.Scan(&l.Author, &l.Guest, &l.Content, &l.At); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// SeenPlayer is one entry in the player register.
type SeenPlayer struct {
	Username  string
	Guest     bool
	Level     int
	FirstSeen string
	LastSeen  string
	Sightings int
}

// Player looks a player up by username. Returns sql.ErrNoRows when the
// player was never seen.
func (s *Store) Player(username string) (*SeenPlayer, error) {
	var p SeenPlayer
	err := s.db.QueryRow(
		"SELECT username, guest, level, first_seen, last_seen, sightings FROM seen_players WHERE username = ?",
		username).Scan(&p.Username, &p.Guest, &p.Level, &p.FirstSeen, &p.LastSeen, &p.Sightings)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Players returns the register ordered by most recently seen.
func (s *Store) Players(limit int) ([]SeenPlayer, error) {
	rows, err := s.db.Query(
		"SELECT username, guest, level, first_seen, last_seen, sightings FROM seen_players ORDER BY last_seen DESC LIMIT ?",
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query seen players: %w", err)
	}
	defer rows.Close()

	var players []SeenPlayer
	for rows.Next() {
		var p SeenPlayer
		if err := rows.Scan(&p.Username, &p.Guest, &p.Level, &p.FirstSeen, &p.LastSeen, &p.Sightings); err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, rows.Err()
}
