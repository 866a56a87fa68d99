// Package telemetry mirrors room activity to an MQTT broker so
// dashboards and alerting can follow sessions without joining them.
package telemetry

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/Safizapi/bonk-bot/config"
	"github.com/Safizapi/bonk-bot/events"
	"github.com/Safizapi/bonk-bot/game"
	"github.com/Safizapi/bonk-bot/logging"
)

// Topic suffixes under the configured prefix.
const (
	topicRoster = "roster"
	topicChat   = "chat"
	topicMatch  = "match"
	topicErrors = "errors"
	topicAdmin  = "admin"
	topicStatus = "status"
)

// heartbeatInterval is how often the host heartbeat is published.
const heartbeatInterval = 60 * time.Second

// Publisher forwards session events to MQTT topics.
type Publisher struct {
	cfg    config.MQTT
	bus    *events.Bus
	client mqtt.Client
	log    zerolog.Logger
}

// NewPublisher builds a publisher from config. The broker is not dialed
// until Start.
func NewPublisher(cfg config.MQTT, bus *events.Bus) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("mqtt telemetry is disabled")
	}

	p := &Publisher{
		cfg: cfg,
		bus: bus,
		log: logging.Component("telemetry"),
	}

	opts := mqtt.NewClientOptions()
	scheme := "tcp"
	if cfg.UseTLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.BrokerURL, cfg.Port))

	if cfg.ClientID != "" {
		opts.SetClientID(cfg.ClientID)
	} else {
		hostname, _ := os.Hostname()
		opts.SetClientID(fmt.Sprintf("bonkbot-%s", hostname))
	}

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetCleanSession(false)

	if cfg.UseTLS {
		tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
		if cfg.CertFile != "" && cfg.KeyFile != "" {
			cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
			if err != nil {
				return nil, fmt.Errorf("failed to load mqtt client certificate: %w", err)
			}
			tlsConfig.Certificates = []tls.Certificate{cert}
		}
		if cfg.CAFile != "" {
			ca, err := os.ReadFile(cfg.CAFile)
			if err != nil {
				return nil, fmt.Errorf("failed to read mqtt ca file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(ca) {
				return nil, fmt.Errorf("mqtt ca file %s holds no certificates", cfg.CAFile)
			}
			tlsConfig.RootCAs = pool
		}
		opts.SetTLSConfig(tlsConfig)
	}

	opts.SetOnConnectHandler(func(mqtt.Client) {
		p.log.Info().Msg("mqtt connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.log.Warn().Err(err).Msg("mqtt connection lost")
	})

	p.client = mqtt.NewClient(opts)
	return p, nil
}

// Start connects to the broker and mirrors events until the context is
// cancelled.
func (p *Publisher) Start(ctx context.Context) error {
	p.log.Info().
		Str("broker", p.cfg.BrokerURL).
		Int("port", p.cfg.Port).
		Msg("connecting to mqtt broker")

	token := p.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect failed: %w", token.Error())
	}

	p.subscribeEvents()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	p.publish(topicStatus, hostStatus())

	for {
		select {
		case <-ticker.C:
			p.publish(topicStatus, hostStatus())
		case <-ctx.Done():
			p.publish(topicAdmin, map[string]interface{}{"event": "shutdown"})
			p.client.Disconnect(5000)
			p.log.Info().Msg("mqtt disconnected")
			return nil
		}
	}
}

// hostStatus gathers a host heartbeat for the status topic.
func hostStatus() map[string]interface{} {
	status := map[string]interface{}{
		"cpu_cores": runtime.NumCPU(),
	}

	if hostname, err := os.Hostname(); err == nil {
		status["hostname"] = hostname
	}
	if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
		status["cpu_percent"] = percentages[0]
	}
	if memInfo, err := mem.VirtualMemory(); err == nil {
		status["memory_used_mb"] = memInfo.Used / (1024 * 1024)
		status["memory_percent"] = memInfo.UsedPercent
	}

	return status
}

func (p *Publisher) subscribeEvents() {
	p.bus.Subscribe(events.EventGameConnect, "mqtt.connect", p.onRoomState("room_connected"))
	p.bus.Subscribe(events.EventGameClose, "mqtt.close", p.onRoomState("room_closed"))
	p.bus.Subscribe(events.EventPlayerJoin, "mqtt.join", p.onPlayer("player_joined"))
	p.bus.Subscribe(events.EventPlayerLeave, "mqtt.leave", p.onPlayer("player_left"))
	p.bus.Subscribe(events.EventMessage, "mqtt.chat", p.onChat)
	p.bus.Subscribe(events.EventMatchStart, "mqtt.matchStart", p.onMatch("match_started"))
	p.bus.Subscribe(events.EventMatchAbort, "mqtt.matchAbort", p.onMatch("match_aborted"))
	p.bus.Subscribe(events.EventHostChange, "mqtt.hostChange", p.onHostChange)
	p.bus.Subscribe(events.EventError, "mqtt.error", p.onError)
}

func (p *Publisher) publish(suffix string, payload interface{}) {
	if !p.client.IsConnected() {
		return
	}

	msg := map[string]interface{}{
		"payload":   payload,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		p.log.Warn().Err(err).Str("topic", suffix).Msg("failed to marshal mqtt message")
		return
	}

	topic := p.cfg.Topic + "/" + suffix
	token := p.client.Publish(topic, 1, false, data)
	go func() {
		token.Wait()
		if token.Error() != nil {
			p.log.Warn().Err(token.Error()).Str("topic", topic).Msg("mqtt publish failed")
		}
	}()
}

func playerSummary(pl *game.Player) map[string]interface{} {
	if pl == nil {
		return nil
	}
	return map[string]interface{}{
		"short_id": pl.ShortID,
		"username": pl.Username,
		"guest":    pl.IsGuest,
		"level":    pl.Level,
		"team":     pl.Team.String(),
	}
}

func (p *Publisher) onRoomState(name string) events.HandlerFunc {
	return func(ctx context.Context, ev events.Event) error {
		g, ok := ev.Payload.(*game.Game)
		if !ok {
			return nil
		}
		p.publish(topicRoster, map[string]interface{}{
			"event":     name,
			"room":      g.RoomName(),
			"join_link": g.JoinLink(),
			"players":   len(g.Players()),
		})
		return nil
	}
}

func (p *Publisher) onPlayer(name string) events.HandlerFunc {
	return func(ctx context.Context, ev events.Event) error {
		pl, ok := ev.Payload.(*game.Player)
		if !ok {
			return nil
		}
		p.publish(topicRoster, map[string]interface{}{
			"event":  name,
			"player": playerSummary(pl),
		})
		return nil
	}
}

func (p *Publisher) onChat(ctx context.Context, ev events.Event) error {
	msg, ok := ev.Payload.(game.Message)
	if !ok {
		return nil
	}
	p.publish(topicChat, map[string]interface{}{
		"author":  playerSummary(msg.Author),
		"content": msg.Content,
	})
	return nil
}

func (p *Publisher) onMatch(name string) events.HandlerFunc {
	return func(ctx context.Context, ev events.Event) error {
		p.publish(topicMatch, map[string]interface{}{"event": name})
		return nil
	}
}

func (p *Publisher) onHostChange(ctx context.Context, ev events.Event) error {
	transfer, ok := ev.Payload.(game.HostTransfer)
	if !ok {
		return nil
	}
	p.publish(topicRoster, map[string]interface{}{
		"event":    "host_changed",
		"old_host": playerSummary(transfer.OldHost),
		"new_host": playerSummary(transfer.NewHost),
	})
	return nil
}

func (p *Publisher) onError(ctx context.Context, ev events.Event) error {
	serr, ok := ev.Payload.(game.ServerError)
	if !ok {
		return nil
	}
	p.publish(topicErrors, map[string]interface{}{
		"token": serr.Token,
		"fatal": serr.Fatal,
	})
	return nil
}
