// bonkbot hosts a bonk.io room from a config file: it signs in, opens
// the room, answers chat, and optionally mirrors room activity to MQTT
// and a local SQLite store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"

	bonkbot "github.com/Safizapi/bonk-bot"
	"github.com/Safizapi/bonk-bot/config"
	"github.com/Safizapi/bonk-bot/events"
	"github.com/Safizapi/bonk-bot/game"
	"github.com/Safizapi/bonk-bot/logging"
	"github.com/Safizapi/bonk-bot/store"
	"github.com/Safizapi/bonk-bot/telemetry"
	"github.com/Safizapi/bonk-bot/types"
)

const appVersion = "1.0.0"

func main() {
	listRooms := flag.Bool("rooms", false, "list public rooms and exit")
	flag.Parse()

	if err := logging.Init(logging.DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info().
		Str("version", appVersion).
		Str("platform", runtime.GOOS).
		Msg("starting bonkbot")

	cfg, err := config.Load(config.DefaultConfigDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := logging.Init(cfg.Logging); err != nil {
		log.Warn().Err(err).Msg("failed to reconfigure logger, using defaults")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("configuration validation failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bot, err := login(ctx, cfg)
	if err != nil {
		var lerr *bonkbot.LoginError
		if errors.As(err, &lerr) {
			log.Fatal().Str("reason", lerr.Message).Msg("login rejected")
		}
		log.Fatal().Err(err).Msg("login failed")
	}

	if *listRooms {
		if err := printRooms(ctx, bot); err != nil {
			log.Fatal().Err(err).Msg("failed to fetch rooms")
		}
		return
	}

	var wg sync.WaitGroup

	if cfg.Store.Enabled {
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open store")
		}
		defer st.Close()
		st.Attach(bot.Events())
	}

	if cfg.MQTT.Enabled {
		pub, err := telemetry.NewPublisher(cfg.MQTT, bot.Events())
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize mqtt, telemetry disabled")
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := pub.Start(ctx); err != nil {
					log.Warn().Err(err).Msg("mqtt telemetry failed")
				}
			}()
		}
	}

	subscribeHandlers(bot)

	server, err := types.ServerFromAPIName(cfg.Room.Server)
	if err != nil {
		log.Fatal().Str("server", cfg.Room.Server).Msg("unknown server in config")
	}

	g, err := bot.CreateGame(ctx, game.CreateOptions{
		Name:       cfg.Room.Name,
		MaxPlayers: cfg.Room.MaxPlayers,
		Unlisted:   cfg.Room.Hidden,
		Password:   cfg.Room.Password,
		MinLevel:   cfg.Room.MinLevel,
		MaxLevel:   cfg.Room.MaxLevel,
		Server:     server,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create room")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case <-g.Done():
		log.Info().Msg("session ended")
	}

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	bot.Stop(shutdownCtx)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		log.Warn().Msg("shutdown timed out, forcing exit")
	}

	log.Info().Msg("bonkbot stopped")
}

func login(ctx context.Context, cfg *config.Config) (*bonkbot.Bot, error) {
	if cfg.Account.Guest {
		log.Info().Str("name", cfg.Account.GuestName).Msg("signing in as guest")
		return bonkbot.GuestLogin(cfg.Account.GuestName)
	}
	log.Info().Str("username", cfg.Account.Username).Msg("signing in")
	return bonkbot.Login(ctx, cfg.Account.Username, cfg.Account.Password)
}

// printRooms dumps the public room list as a table, together with the
// live player counts.
func printRooms(ctx context.Context, bot *bonkbot.Bot) error {
	rooms, err := bot.FetchRooms(ctx)
	if err != nil {
		return err
	}

	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"ID", "Name", "Players", "Mode", "Levels", "Password"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for _, r := range rooms {
		locked := "-"
		if r.HasPassword {
			locked = "yes"
		}
		tw.Append([]string{
			fmt.Sprintf("%d", r.RoomID),
			r.Name,
			fmt.Sprintf("%d/%d", r.Players, r.MaxPlayers),
			r.Mode.String(),
			fmt.Sprintf("%d-%d", r.MinLevel, r.MaxLevel),
			locked,
		})
	}
	tw.Render()

	online, err := bot.FetchOnline(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("\n%d players online (%d in custom rooms)\n", online.Total, online.Custom)
	return nil
}

// subscribeHandlers wires the bot's in-room behavior: greet joiners,
// share the join link, answer a few chat commands.
func subscribeHandlers(bot *bonkbot.Bot) {
	bot.On(events.EventGameConnect, "main.connect", func(ctx context.Context, ev events.Event) error {
		g, ok := ev.Payload.(*game.Game)
		if !ok {
			return nil
		}
		log.Info().
			Str("room", g.RoomName()).
			Str("join_link", g.JoinLink()).
			Msg("room is up")
		return nil
	})

	bot.On(events.EventPlayerJoin, "main.greet", func(ctx context.Context, ev events.Event) error {
		p, ok := ev.Payload.(*game.Player)
		if !ok {
			return nil
		}
		log.Info().Str("player", p.Username).Int("level", p.Level).Msg("player joined")
		return nil
	})

	bot.On(events.EventMessage, "main.commands", func(ctx context.Context, ev events.Event) error {
		msg, ok := ev.Payload.(game.Message)
		if !ok || msg.Author == nil || msg.Author.IsBot {
			return nil
		}
		for _, g := range bot.Games() {
			switch strings.TrimSpace(msg.Content) {
			case "!ping":
				return g.SendMessage(ctx, fmt.Sprintf("pong (%d ms)", g.BotPing()))
			case "!link":
				return g.SendMessage(ctx, g.JoinLink())
			}
		}
		return nil
	})

	bot.On(events.EventError, "main.errors", func(ctx context.Context, ev events.Event) error {
		serr, ok := ev.Payload.(game.ServerError)
		if !ok {
			return nil
		}
		log.Warn().Str("token", serr.Token).Bool("fatal", serr.Fatal).Msg("server error")
		return nil
	})
}
