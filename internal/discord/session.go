package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	apperrors "github.com/eternisai/assignment-relay/internal/errors"
	"github.com/eternisai/assignment-relay/internal/logger"
)

// Session wraps the Discord gateway connection used to deliver announcements.
//
// Channels can be resolved once the gateway has reported Ready for the first
// time. Messages are sent over REST, so a later gateway disconnect does not
// block delivery. A resumed session answers with RESUMED rather than READY;
// both mark the gateway connected again. The hook registered with OnReady
// runs on every Ready event.
type Session struct {
	dg        *discordgo.Session
	logger    *logger.Logger
	started   atomic.Bool
	connected atomic.Bool

	hookMu  sync.Mutex
	onReady func()
}

// NewSession creates a bot session. It does not connect; call Open.
func NewSession(token string, logger *logger.Logger) (*Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds

	s := &Session{
		dg:     dg,
		logger: logger.WithComponent("discord_session"),
	}
	dg.AddHandler(s.handleReady)
	dg.AddHandler(s.handleResumed)
	dg.AddHandler(s.handleDisconnect)

	return s, nil
}

// OnReady registers the hook invoked when the gateway session is ready.
func (s *Session) OnReady(fn func()) {
	s.hookMu.Lock()
	s.onReady = fn
	s.hookMu.Unlock()
}

// Open connects to the gateway.
func (s *Session) Open() error {
	if err := s.dg.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	return nil
}

// Close disconnects from the gateway.
func (s *Session) Close() error {
	s.connected.Store(false)
	return s.dg.Close()
}

// Ready reports whether the gateway connection is currently up.
func (s *Session) Ready() bool {
	return s.connected.Load()
}

func (s *Session) handleReady(_ *discordgo.Session, r *discordgo.Ready) {
	s.started.Store(true)
	s.connected.Store(true)

	user := "unknown"
	if r != nil && r.User != nil {
		user = r.User.String()
	}
	s.logger.Info("logged in to discord", slog.String("user", user))

	s.hookMu.Lock()
	hook := s.onReady
	s.hookMu.Unlock()
	if hook != nil {
		hook()
	}
}

func (s *Session) handleResumed(_ *discordgo.Session, _ *discordgo.Resumed) {
	s.connected.Store(true)
	s.logger.Info("discord gateway session resumed")
}

func (s *Session) handleDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	s.connected.Store(false)
	s.logger.Warn("discord gateway disconnected")
}

// ResolveChannel returns the ID of the channel to post into. It fails with
// errors.ErrChannelUnavailable before the first Ready or when Discord does
// not know the channel. A gateway disconnect after the first Ready does not
// make it fail; the state cache and REST lookup keep working.
func (s *Session) ResolveChannel(ctx context.Context, channelID string) (string, error) {
	if !s.started.Load() {
		return "", apperrors.ErrChannelUnavailable
	}

	if ch, err := s.dg.State.Channel(channelID); err == nil {
		return ch.ID, nil
	}

	ch, err := s.dg.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrChannelUnavailable, err)
	}
	return ch.ID, nil
}

// SendMessage posts content to the channel.
func (s *Session) SendMessage(ctx context.Context, channelID, content string) error {
	if _, err := s.dg.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to send discord message: %w", err)
	}
	return nil
}
