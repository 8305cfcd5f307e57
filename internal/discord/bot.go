package discord

import (
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"

	"github.com/dana/mimic/internal/chat"
	"github.com/dana/mimic/internal/persona"
	"github.com/dana/mimic/internal/scheduler"
)

type Bot struct {
	session  *discordgo.Session
	orch     *chat.Orchestrator
	sessions *chat.Sessions
	personas *persona.Store
	sched    *scheduler.Scheduler
	manager  *Manager // nil on secondary connections
}

func NewBot(token string, orch *chat.Orchestrator, sessions *chat.Sessions, personas *persona.Store, sched *scheduler.Scheduler, manager *Manager) (*Bot, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating Discord session: %w", err)
	}

	bot := &Bot{session: s, orch: orch, sessions: sessions, personas: personas, sched: sched, manager: manager}
	s.AddHandler(bot.onMessage)
	s.Identify.Intents = discordgo.IntentsDirectMessages | discordgo.IntentsGuildMessages

	if err := s.Open(); err != nil {
		return nil, fmt.Errorf("opening Discord connection: %w", err)
	}

	log.Printf("Discord bot connected as %s", s.State.User.Username)
	return bot, nil
}

func (b *Bot) Close() {
	b.session.Close()
}
