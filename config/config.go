// Package config handles configuration loading, validation, and
// persistence for a bot deployment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Safizapi/bonk-bot/logging"
)

const (
	DefaultConfigDir  = "config"
	DefaultConfigFile = "config.json"
)

// Config is the root configuration structure.
type Config struct {
	mu   sync.RWMutex
	path string

	Account Account        `json:"account"`
	Room    Room           `json:"room"`
	MQTT    MQTT           `json:"mqtt"`
	Store   Store          `json:"store"`
	Logging logging.Config `json:"logging"`
}

// Account holds the identity the bot signs in with. When Guest is set
// the credentials are ignored and GuestName is used instead.
type Account struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Guest     bool   `json:"guest"`
	GuestName string `json:"guest_name"`
}

// Room holds the defaults used when the bot creates a room.
type Room struct {
	Name       string `json:"name"`
	Server     string `json:"server"`
	MaxPlayers int    `json:"max_players"`
	Password   string `json:"password"`
	MinLevel   int    `json:"min_level"`
	MaxLevel   int    `json:"max_level"`
	Hidden     bool   `json:"hidden"`
}

// MQTT holds telemetry mirror settings.
type MQTT struct {
	Enabled   bool   `json:"enabled"`
	BrokerURL string `json:"broker_url"`
	Port      int    `json:"port"`
	UseTLS    bool   `json:"use_tls"`
	CertFile  string `json:"cert_file"`
	KeyFile   string `json:"key_file"`
	CAFile    string `json:"ca_file"`
	ClientID  string `json:"client_id"`
	Topic     string `json:"topic"`
}

// Store holds the session store settings.
type Store struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Account: Account{
			Guest:     true,
			GuestName: "bonkbot",
		},
		Room: Room{
			Name:       "bonkbot room",
			Server:     "b2warsaw1",
			MaxPlayers: 6,
			MinLevel:   0,
			MaxLevel:   999,
		},
		MQTT: MQTT{
			Port:  8883,
			Topic: "bonkbot/rooms",
		},
		Store: Store{
			Path: "bonkbot.db",
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load reads configuration from a JSON file, creating the default file
// when none exists yet.
func Load(configDir string) (*Config, error) {
	configPath := filepath.Join(configDir, DefaultConfigFile)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", configPath).Msg("config file not found, creating default")
			cfg := DefaultConfig()
			cfg.path = configPath
			if saveErr := cfg.Save(); saveErr != nil {
				return nil, fmt.Errorf("failed to save default config: %w", saveErr)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig() // start with defaults, then overlay
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	cfg.path = configPath
	log.Info().Str("path", configPath).Msg("configuration loaded")
	return cfg, nil
}

// Save writes the configuration back to its file.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", c.path, err)
	}
	return nil
}

// Validate checks the configuration for inconsistencies a bot cannot
// start with.
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.Account.Guest && (c.Account.Username == "" || c.Account.Password == "") {
		return fmt.Errorf("account login requires username and password")
	}
	if c.Room.MaxPlayers < 1 || c.Room.MaxPlayers > 8 {
		return fmt.Errorf("room max_players %d out of range 1..8", c.Room.MaxPlayers)
	}
	if c.MQTT.Enabled && c.MQTT.BrokerURL == "" {
		return fmt.Errorf("mqtt enabled without broker_url")
	}
	return nil
}
