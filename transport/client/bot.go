package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wricardo/roomgate/game/service"
)

// BotConfig describes a scripted player
type BotConfig struct {
	URL      string
	RoomID   string
	Name     string
	Moves    int
	Interval time.Duration
	Chat     bool
}

// Bot joins a room, wanders around it and optionally chats. It is used for
// smoke tests and load generation.
type Bot struct {
	cfg    BotConfig
	logger *slog.Logger
}

// NewBot creates a bot; Run does the work
func NewBot(cfg BotConfig, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	return &Bot{cfg: cfg, logger: logger.With("bot", cfg.Name)}
}

// Run plays until Moves updates have been sent or ctx is done, then leaves
func (b *Bot) Run(ctx context.Context) error {
	c, err := Dial(ctx, b.cfg.URL, b.logger)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := b.play(ctx, c); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return nil
	}
	return c.LeaveRoom(ctx, b.cfg.RoomID)
}

func (b *Bot) play(ctx context.Context, c *Client) error {
	joined, err := c.JoinRoom(ctx, b.cfg.RoomID, b.cfg.Name)
	if err != nil {
		return fmt.Errorf("join %s: %w", b.cfg.RoomID, err)
	}
	b.logger.Info("joined room", "room", joined.RoomID, "others", len(joined.Players))

	drainCtx, stopDrain := context.WithCancel(ctx)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		b.drain(drainCtx, c)
	}()
	// The caller may read from c once play returns.
	defer func() {
		stopDrain()
		<-drained
	}()

	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	for i := 0; b.cfg.Moves <= 0 || i < b.cfg.Moves; i++ {
		select {
		case <-ctx.Done():
			return nil
		case <-c.Done():
			return c.Err()
		case <-ticker.C:
		}

		if err := c.Move(b.cfg.RoomID, rand.Float64(), rand.Float64()); err != nil {
			return err
		}
		if b.cfg.Chat && i%5 == 0 {
			if err := c.Chat(b.cfg.RoomID, fmt.Sprintf("%s checking in (%d)", b.cfg.Name, i)); err != nil {
				return err
			}
		}
	}

	return nil
}

func (b *Bot) drain(ctx context.Context, c *Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.Events():
			if !ok {
				return
			}
			switch ev.Name {
			case service.EventPlayerJoined:
				var notice service.PlayerJoinedNotice
				if ev.Decode(&notice) == nil {
					b.logger.Info("player joined", "player", notice.Player.Name)
				}
			case service.EventChatMessage:
				var msg service.ChatBroadcast
				if ev.Decode(&msg) == nil {
					b.logger.Info("chat", "from", msg.PlayerName, "message", msg.Message)
				}
			case service.EventError:
				var msg service.ErrorMessage
				_ = ev.Decode(&msg)
				b.logger.Warn("server rejected event", "event", msg.Event, "error", msg.Message)
			default:
				b.logger.Debug("event", "name", ev.Name)
			}
		}
	}
}

// SwarmConfig runs several bots in one room
type SwarmConfig struct {
	BotConfig
	Count    int
	GameMode string
}

// RunSwarm runs Count bots in one room concurrently. When no room is given
// the first bot creates one and plays in it over the same connection, which
// stays open until every bot is done. The first bot error cancels the rest.
func RunSwarm(ctx context.Context, cfg SwarmConfig, logger *slog.Logger) (string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Count <= 0 {
		return "", errors.New("bot count must be positive")
	}

	roomID := cfg.RoomID
	var host *Client
	if roomID == "" {
		var err error
		host, err = Dial(ctx, cfg.URL, logger)
		if err != nil {
			return "", err
		}
		defer host.Close()

		roomID, err = host.CreateRoom(ctx, service.CreateRoomPayload{
			Title:          cfg.Name + "'s room",
			GameMode:       cfg.GameMode,
			MaxPlayerCount: cfg.Count,
			IsPublicGame:   true,
		})
		if err != nil {
			return "", fmt.Errorf("create room: %w", err)
		}
		logger.Info("created room", "room", roomID)
	}

	eg, ctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.Count; i++ {
		botCfg := cfg.BotConfig
		botCfg.RoomID = roomID
		botCfg.Name = fmt.Sprintf("%s-%d", cfg.Name, i+1)
		bot := NewBot(botCfg, logger)
		if i == 0 && host != nil {
			eg.Go(func() error { return bot.play(ctx, host) })
			continue
		}
		eg.Go(func() error { return bot.Run(ctx) })
	}
	return roomID, eg.Wait()
}
