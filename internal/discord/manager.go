package discord

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/dana/mimic/internal/db"
)

// Connection is a live bot session. *Bot satisfies it.
type Connection interface {
	Close()
}

// Manager runs one bot connection per user, using credentials from the
// bot token store.
type Manager struct {
	store   *db.DB
	connect func(token string) (Connection, error)

	mu     sync.Mutex
	active map[string]Connection
}

func NewManager(store *db.DB, connect func(token string) (Connection, error)) *Manager {
	return &Manager{store: store, connect: connect, active: make(map[string]Connection)}
}

// SetToken stores or replaces the user's discord credential and
// reactivates it.
func (m *Manager) SetToken(userID, token string) error {
	return m.store.SaveBotToken(userID, "discord", token)
}

// Disable stops any live connection and deactivates the stored
// credential.
func (m *Manager) Disable(userID string) error {
	m.Stop(userID)
	return m.store.DisableBotToken(userID, "discord")
}

// Start connects a bot for the user's stored discord credential. Already
// running is not an error.
func (m *Manager) Start(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.active[userID]; ok {
		return nil
	}

	tokens, err := m.store.BotTokens(userID)
	if err != nil {
		return fmt.Errorf("loading bot tokens: %w", err)
	}
	var token string
	for _, t := range tokens {
		if t.BotType == "discord" {
			token = t.Token
			break
		}
	}
	if token == "" {
		return fmt.Errorf("no active discord token for user %s", userID)
	}

	conn, err := m.connect(token)
	if err != nil {
		return fmt.Errorf("connecting bot for user %s: %w", userID, err)
	}
	if err := m.store.TouchBotToken(userID, "discord"); err != nil {
		log.Printf("discord: touching token for %s: %v", userID, err)
	}
	m.active[userID] = conn
	return nil
}

// Stop closes the user's connection. Reports whether one was running.
func (m *Manager) Stop(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn, ok := m.active[userID]
	if !ok {
		return false
	}
	conn.Close()
	delete(m.active, userID)
	return true
}

// Running lists users with a live connection, sorted.
func (m *Manager) Running() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]string, 0, len(m.active))
	for u := range m.active {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

// StopAll closes every connection.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for u, conn := range m.active {
		conn.Close()
		delete(m.active, u)
	}
}
