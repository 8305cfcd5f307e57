package discord

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/tidwall/sjson"

	"github.com/dana/mimic/internal/chat"
)

func (b *Bot) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore own messages
	if m.Author.ID == s.State.User.ID {
		return
	}

	// Only respond to DMs or when mentioned
	isDM := m.GuildID == ""
	isMentioned := false
	for _, u := range m.Mentions {
		if u.ID == s.State.User.ID {
			isMentioned = true
			break
		}
	}
	if !isDM && !isMentioned {
		return
	}

	content := strings.TrimSpace(stripMention(m.Content, s.State.User.ID))
	if content == "" {
		return
	}

	if strings.HasPrefix(content, "!") {
		b.reply(s, m.ChannelID, b.handleCommand(m.Author.ID, content))
		return
	}

	// Show typing indicator
	s.ChannelTyping(m.ChannelID)

	reply, err := b.orch.Respond(context.Background(), chat.Request{
		PersonaID: b.sessions.Current(m.Author.ID),
		UserID:    m.Author.ID,
		Channel:   "discord_" + m.ChannelID,
		Message:   content,
	})
	if err != nil {
		log.Printf("discord: chat turn failed: %v", err)
		b.reply(s, m.ChannelID, "Something went wrong: "+err.Error())
		return
	}
	b.reply(s, m.ChannelID, reply.Content)
}

// handleCommand processes !persona and !task and returns the reply text.
func (b *Bot) handleCommand(userID, content string) string {
	fields := strings.Fields(content)
	switch fields[0] {
	case "!persona":
		if len(fields) == 1 {
			return b.personaSummary(userID)
		}
		return b.selectPersona(userID, fields[1])
	case "!task":
		if len(fields) < 3 {
			return "Usage: !task <type> <text>"
		}
		return b.createTask(userID, fields[1], strings.Join(fields[2:], " "))
	case "!bot":
		if b.manager == nil {
			return "Bot connections are not enabled here."
		}
		return b.handleBotCommand(userID, fields[1:])
	default:
		return "Unknown command. Try !persona, !task, or !bot."
	}
}

const botUsage = "Usage: !bot set <token> | start | stop | status | disable"

// handleBotCommand manages the user's own bot connection.
func (b *Bot) handleBotCommand(userID string, args []string) string {
	if len(args) == 0 {
		return botUsage
	}
	switch args[0] {
	case "set":
		if len(args) < 2 {
			return "Usage: !bot set <token>"
		}
		if err := b.manager.SetToken(userID, args[1]); err != nil {
			return "Could not store token: " + err.Error()
		}
		return "Token stored. Use !bot start to connect."
	case "start":
		if err := b.manager.Start(userID); err != nil {
			return "Could not start bot: " + err.Error()
		}
		return "Bot connection started."
	case "stop":
		if !b.manager.Stop(userID) {
			return "No bot connection running."
		}
		return "Bot connection stopped."
	case "status":
		running := b.manager.Running()
		if len(running) == 0 {
			return "No bot connections running."
		}
		return "Running connections: " + strings.Join(running, ", ")
	case "disable":
		if err := b.manager.Disable(userID); err != nil {
			return "Could not disable token: " + err.Error()
		}
		return "Token disabled."
	default:
		return botUsage
	}
}

func (b *Bot) personaSummary(userID string) string {
	current := b.sessions.Current(userID)
	personas, err := b.personas.List()
	if err != nil {
		return "Could not list personas: " + err.Error()
	}
	var b2 strings.Builder
	fmt.Fprintf(&b2, "Current persona: %s\nAvailable:", current)
	for _, p := range personas {
		fmt.Fprintf(&b2, "\n- %s: %s", p.ID, p.Name)
	}
	return b2.String()
}

func (b *Bot) selectPersona(userID, id string) string {
	p, err := b.personas.Get(id)
	if err != nil {
		return "Could not load persona: " + err.Error()
	}
	if p.ID != id {
		return fmt.Sprintf("No persona %q; staying on %s.", id, b.sessions.Current(userID))
	}
	b.sessions.Select(userID, p.ID)
	return fmt.Sprintf("Now chatting as %s.", p.Name)
}

func (b *Bot) createTask(userID, taskType, text string) string {
	payload, err := taskPayload(taskType, text)
	if err != nil {
		return err.Error()
	}
	task, err := b.sched.Create(b.sessions.Current(userID), userID, taskType, payload, "once")
	if err != nil {
		return "Could not create task: " + err.Error()
	}
	return fmt.Sprintf("Task %d (%s) scheduled.", task.ID, task.Type)
}

// taskPayload wraps the free-form text into the field each handler reads.
func taskPayload(taskType, text string) (string, error) {
	field := map[string]string{
		"chat":         "message",
		"web_search":   "query",
		"crypto_price": "coin",
		"reminder":     "text",
		"custom":       "action",
	}[taskType]
	if field == "" {
		return "", fmt.Errorf("unknown task type %q; use chat, web_search, crypto_price, reminder, or custom", taskType)
	}
	return sjson.Set("", field, text)
}

func (b *Bot) reply(s *discordgo.Session, channelID, text string) {
	// Discord has a 2000 char limit; split if needed
	for _, chunk := range splitMessage(text, 2000) {
		s.ChannelMessageSend(channelID, chunk)
	}
}

func stripMention(s, userID string) string {
	s = strings.ReplaceAll(s, "<@"+userID+">", "")
	s = strings.ReplaceAll(s, "<@!"+userID+">", "")
	return s
}

func splitMessage(s string, maxLen int) []string {
	if len(s) <= maxLen {
		return []string{s}
	}
	var chunks []string
	for len(s) > 0 {
		end := maxLen
		if end > len(s) {
			end = len(s)
		}
		// Try to split at a newline
		if idx := strings.LastIndex(s[:end], "\n"); idx > 0 {
			end = idx + 1
		}
		chunks = append(chunks, s[:end])
		s = s[end:]
	}
	return chunks
}
