package db

import (
	"database/sql"
	"fmt"
)

type Fact struct {
	ID           int64   `json:"id"`
	PersonaID    string  `json:"personality_id"`
	UserID       string  `json:"user_id,omitempty"`
	Key          string  `json:"key"`
	Value        string  `json:"value"`
	Importance   float64 `json:"importance"`
	Timestamp    string  `json:"timestamp"`
	LastAccessed string  `json:"last_accessed,omitempty"`
	AccessCount  int64   `json:"access_count"`
}

// Context is the aggregate read used to build a prompt: recent turns plus
// the highest-ranked facts, with untruncated totals for observability.
type Context struct {
	Turns      []Conversation `json:"conversations"`
	Facts      []Fact         `json:"memories"`
	TotalTurns int            `json:"total_conversations"`
	TotalFacts int            `json:"total_memories"`
}

// SaveFact upserts a fact keyed by (persona, key, user). A repeated write
// replaces value, importance, and timestamp without touching the access
// statistics. The IS comparison makes the NULL-user scope a single slot too.
func (d *DB) SaveFact(personaID, userID, key, value string, importance float64) error {
	var id int64
	err := d.conn.QueryRow(
		"SELECT id FROM memory_entries WHERE personality_id = ? AND key = ? AND user_id IS ?",
		personaID, key, nullStr(userID),
	).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		_, err = d.conn.Exec(
			"INSERT INTO memory_entries (personality_id, user_id, key, value, importance) VALUES (?, ?, ?, ?, ?)",
			personaID, nullStr(userID), key, value, importance,
		)
	case err == nil:
		_, err = d.conn.Exec(
			"UPDATE memory_entries SET value = ?, importance = ?, timestamp = datetime('now') WHERE id = ?",
			value, importance, id,
		)
	}
	if err != nil {
		return fmt.Errorf("saving fact %q: %w", key, err)
	}
	return nil
}

// Facts returns facts scoped to the user plus unscoped (NULL user) facts,
// ordered by importance then recency. An empty userID returns only the
// unscoped facts. A non-empty key narrows to that key.
func (d *DB) Facts(personaID, key, userID string) ([]Fact, error) {
	q := "SELECT id, personality_id, COALESCE(user_id,''), key, value, importance, timestamp, COALESCE(last_accessed,''), access_count FROM memory_entries WHERE personality_id = ? AND (user_id IS ? OR user_id IS NULL)"
	args := []any{personaID, nullStr(userID)}
	if key != "" {
		q += " AND key = ?"
		args = append(args, key)
	}
	q += " ORDER BY importance DESC, timestamp DESC"

	rows, err := d.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying facts: %w", err)
	}
	defer rows.Close()
	return scanFacts(rows)
}

// TouchFact records an access for ranking purposes.
func (d *DB) TouchFact(id int64) error {
	_, err := d.conn.Exec(
		"UPDATE memory_entries SET last_accessed = datetime('now'), access_count = access_count + 1 WHERE id = ?",
		id,
	)
	if err != nil {
		return fmt.Errorf("touching fact %d: %w", id, err)
	}
	return nil
}

// CountFacts reports the untruncated fact count visible to userID.
func (d *DB) CountFacts(personaID, userID string) (int, error) {
	var n int
	err := d.conn.QueryRow(
		"SELECT COUNT(*) FROM memory_entries WHERE personality_id = ? AND (user_id IS ? OR user_id IS NULL)",
		personaID, nullStr(userID),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting facts: %w", err)
	}
	return n, nil
}

// ContextFor combines recent turns and top facts for prompt building.
func (d *DB) ContextFor(personaID, userID string, maxTurns, maxFacts int) (*Context, error) {
	if maxTurns <= 0 {
		maxTurns = 20
	}
	if maxFacts <= 0 {
		maxFacts = 10
	}
	turns, err := d.ConversationHistory(personaID, userID, "", maxTurns)
	if err != nil {
		return nil, err
	}
	facts, err := d.Facts(personaID, "", userID)
	if err != nil {
		return nil, err
	}
	if len(facts) > maxFacts {
		facts = facts[:maxFacts]
	}
	totalTurns, err := d.CountConversations(personaID, userID)
	if err != nil {
		return nil, err
	}
	totalFacts, err := d.CountFacts(personaID, userID)
	if err != nil {
		return nil, err
	}
	return &Context{Turns: turns, Facts: facts, TotalTurns: totalTurns, TotalFacts: totalFacts}, nil
}

func scanFacts(rows *sql.Rows) ([]Fact, error) {
	var out []Fact
	for rows.Next() {
		var f Fact
		if err := rows.Scan(&f.ID, &f.PersonaID, &f.UserID, &f.Key, &f.Value, &f.Importance, &f.Timestamp, &f.LastAccessed, &f.AccessCount); err != nil {
			return nil, fmt.Errorf("scanning fact: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
