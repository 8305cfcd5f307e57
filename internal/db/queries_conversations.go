package db

import (
	"database/sql"
	"fmt"
)

type Conversation struct {
	ID        int64  `json:"id"`
	PersonaID string `json:"personality_id"`
	UserID    string `json:"user_id,omitempty"`
	Channel   string `json:"channel,omitempty"`
	Message   string `json:"message"`
	Response  string `json:"response"`
	Timestamp string `json:"timestamp"`
	Metadata  string `json:"metadata,omitempty"`
}

// SaveConversation appends one turn. Turns are never deduplicated, merged,
// or deleted by this layer.
func (d *DB) SaveConversation(personaID, userID, channel, message, response, metadata string) error {
	_, err := d.conn.Exec(
		"INSERT INTO conversations (personality_id, user_id, channel, message, response, metadata) VALUES (?, ?, ?, ?, ?, ?)",
		personaID, nullStr(userID), nullStr(channel), message, response, nullStr(metadata),
	)
	if err != nil {
		return fmt.Errorf("saving conversation: %w", err)
	}
	return nil
}

// ConversationHistory returns the most recent turns, newest first. Filter
// precedence: by user when userID is set, else by channel when channel is
// set, else persona-wide.
func (d *DB) ConversationHistory(personaID, userID, channel string, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	q := "SELECT id, personality_id, COALESCE(user_id,''), COALESCE(channel,''), message, response, timestamp, COALESCE(metadata,'') FROM conversations WHERE personality_id = ?"
	args := []any{personaID}
	switch {
	case userID != "":
		q += " AND user_id = ?"
		args = append(args, userID)
	case channel != "":
		q += " AND channel = ?"
		args = append(args, channel)
	}
	q += " ORDER BY timestamp DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := d.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()
	return scanConversations(rows)
}

// CountConversations reports the untruncated turn count for the same
// scoping rules as ConversationHistory without a channel filter.
func (d *DB) CountConversations(personaID, userID string) (int, error) {
	q := "SELECT COUNT(*) FROM conversations WHERE personality_id = ?"
	args := []any{personaID}
	if userID != "" {
		q += " AND user_id = ?"
		args = append(args, userID)
	}
	var n int
	if err := d.conn.QueryRow(q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting conversations: %w", err)
	}
	return n, nil
}

func scanConversations(rows *sql.Rows) ([]Conversation, error) {
	var out []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.PersonaID, &c.UserID, &c.Channel, &c.Message, &c.Response, &c.Timestamp, &c.Metadata); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
