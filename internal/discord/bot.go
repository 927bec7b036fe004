// Package discord provides the optional Discord front end. The bot listens
// for mentions and a command prefix, hands the question to the chat agent,
// and posts the agent's answer back to the channel.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
)

// maxMessageLength is Discord's hard limit on message content.
const maxMessageLength = 2000

// answerTimeout bounds a single agent run, tool calls included.
const answerTimeout = 3 * time.Minute

// Config holds Discord bot configuration.
type Config struct {
	// Token is the Discord bot token.
	Token string `yaml:"token"`

	// Prefix triggers the bot in addition to direct mentions
	// (default "!mtg ").
	Prefix string `yaml:"prefix"`
}

// Bot owns the Discord gateway connection and forwards questions to the
// agent.
type Bot struct {
	session   *discordgo.Session
	agent     *Agent
	prefix    string
	closeOnce sync.Once
}

// New creates a Bot and registers the message handler. The gateway
// connection is opened by [Bot.Run].
func New(cfg Config, agent *Agent) (*Bot, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("discord: token must not be empty")
	}
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "!mtg "
	}

	b := &Bot{session: session, agent: agent, prefix: prefix}
	session.AddHandler(b.onMessage)
	return b, nil
}

// Run connects to the Discord gateway and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("discord: open session: %w", err)
	}
	slog.Info("discord bot connected", "user", b.session.State.User.Username)

	<-ctx.Done()
	return b.Close()
}

// Close disconnects from Discord.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		if err := b.session.Close(); err != nil {
			closeErr = fmt.Errorf("discord: close session: %w", err)
		}
		slog.Info("discord bot closed")
	})
	return closeErr
}

func (b *Bot) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}

	question, ok := extractQuestion(m.Message, s.State.User.ID, b.prefix)
	if !ok {
		return
	}

	// Typing indicator while the agent works. Best effort.
	if err := s.ChannelTyping(m.ChannelID); err != nil {
		slog.Debug("discord: typing indicator failed", "err", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), answerTimeout)
	defer cancel()

	answer, err := b.agent.Answer(ctx, question)
	if err != nil {
		slog.Error("discord: agent failed", "err", err)
		answer = "Sorry, something went wrong answering that. Try again in a moment."
	}
	if answer == "" {
		answer = "I don't have an answer for that one."
	}

	if _, err := s.ChannelMessageSendReply(m.ChannelID, truncate(answer, maxMessageLength), m.Reference()); err != nil {
		slog.Error("discord: send reply failed", "err", err)
	}
}

// extractQuestion decides whether a message addresses the bot and returns
// the question text with the mention or prefix stripped. Direct messages
// always address the bot.
func extractQuestion(m *discordgo.Message, botID, prefix string) (string, bool) {
	content := strings.TrimSpace(m.Content)

	for _, tag := range []string{"<@" + botID + ">", "<@!" + botID + ">"} {
		if strings.Contains(content, tag) {
			q := strings.TrimSpace(strings.ReplaceAll(content, tag, " "))
			return q, q != ""
		}
	}

	if strings.HasPrefix(content, prefix) {
		q := strings.TrimSpace(strings.TrimPrefix(content, prefix))
		return q, q != ""
	}

	// GuildID is empty for DMs.
	if m.GuildID == "" {
		return content, content != ""
	}

	return "", false
}

// truncate shortens s to at most limit characters, marking the cut.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	const marker = "\n… (truncated)"
	cut := limit - len(marker)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + marker
}
