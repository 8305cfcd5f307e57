package db

import (
	"database/sql"
	"fmt"
)

type BotToken struct {
	ID        int64  `json:"id"`
	UserID    string `json:"user_id"`
	BotType   string `json:"bot_type"` // discord, telegram, whatsapp
	Token     string `json:"token"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	LastUsed  string `json:"last_used,omitempty"`
}

// SaveBotToken upserts a credential keyed by (user, platform) and
// reactivates it.
func (d *DB) SaveBotToken(userID, botType, token string) error {
	_, err := d.conn.Exec(
		`INSERT INTO bot_tokens (user_id, bot_type, token) VALUES (?, ?, ?)
		 ON CONFLICT(user_id, bot_type) DO UPDATE SET token = excluded.token, status = 'active'`,
		userID, botType, token,
	)
	if err != nil {
		return fmt.Errorf("saving bot token: %w", err)
	}
	return nil
}

// BotTokens returns all active credentials for a user.
func (d *DB) BotTokens(userID string) ([]BotToken, error) {
	rows, err := d.conn.Query(
		"SELECT id, user_id, bot_type, token, status, created_at, COALESCE(last_used,'') FROM bot_tokens WHERE user_id = ? AND status = 'active'",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing bot tokens: %w", err)
	}
	defer rows.Close()
	return scanBotTokens(rows)
}

// TouchBotToken stamps last_used.
func (d *DB) TouchBotToken(userID, botType string) error {
	_, err := d.conn.Exec(
		"UPDATE bot_tokens SET last_used = datetime('now') WHERE user_id = ? AND bot_type = ?",
		userID, botType,
	)
	if err != nil {
		return fmt.Errorf("touching bot token: %w", err)
	}
	return nil
}

// DisableBotToken deactivates a credential without deleting it.
func (d *DB) DisableBotToken(userID, botType string) error {
	_, err := d.conn.Exec(
		"UPDATE bot_tokens SET status = 'disabled' WHERE user_id = ? AND bot_type = ?",
		userID, botType,
	)
	if err != nil {
		return fmt.Errorf("disabling bot token: %w", err)
	}
	return nil
}

func scanBotTokens(rows *sql.Rows) ([]BotToken, error) {
	var out []BotToken
	for rows.Next() {
		var b BotToken
		if err := rows.Scan(&b.ID, &b.UserID, &b.BotType, &b.Token, &b.Status, &b.CreatedAt, &b.LastUsed); err != nil {
			return nil, fmt.Errorf("scanning bot token: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
