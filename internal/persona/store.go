package persona

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrNotFound  = errors.New("persona not found")
	ErrInvalidID = errors.New("invalid persona id")
	ErrProtected = errors.New("persona is protected")
	ErrConflict  = errors.New("persona already exists")
)

// protected personas are seeded at startup and can never be deleted or
// created over once their file exists.
var protected = map[string]bool{
	"default":    true,
	"developer":  true,
	"creative":   true,
	"analytical": true,
	"casual":     true,
}

// Store keeps one JSON file per persona under dir.
type Store struct {
	dir string
}

// NewStore opens a persona directory, creating it and seeding the default
// personas if absent. Seeding is idempotent and never overwrites.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating personas dir: %w", err)
	}
	s := &Store{dir: dir}
	if err := s.seedDefaults(); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns the persona for id, falling back to the default persona when
// id is unknown. It fails only if the default itself is missing or corrupt,
// which is a startup precondition violation.
func (s *Store) Get(id string) (*Persona, error) {
	p, err := s.read(id)
	if err == nil {
		return p, nil
	}
	if id == "default" {
		return nil, fmt.Errorf("default persona unavailable: %w", err)
	}
	return s.Get("default")
}

// List returns every readable persona on disk. Corrupt or unreadable
// entries are logged and skipped rather than aborting the listing.
func (s *Store) List() ([]*Persona, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading personas dir: %w", err)
	}
	var out []*Persona
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		p, err := s.read(id)
		if err != nil {
			log.Printf("persona: skipping %s: %v", e.Name(), err)
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Create stores a new persona. The id is derived from p.ID (or p.Name when
// the id is empty) and normalized to be filename-safe. Creating over a
// protected id fails once its file exists.
func (s *Store) Create(p *Persona) (*Persona, error) {
	src := p.ID
	if src == "" {
		src = p.Name
	}
	id := NormalizeID(src)
	if id == "" {
		return nil, fmt.Errorf("%w: derived empty id from %q", ErrInvalidID, src)
	}
	if protected[id] {
		if _, err := os.Stat(s.path(id)); err == nil {
			return nil, fmt.Errorf("%w: %s", ErrConflict, id)
		}
	}
	p.ID = id
	if err := s.write(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Update replaces an existing persona. The stored id always matches the
// file path, regardless of what the payload claims.
func (s *Store) Update(id string, p *Persona) (*Persona, error) {
	if _, err := os.Stat(s.path(id)); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	p.ID = id
	if err := s.write(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes a persona. Protected personas cannot be deleted. Returns
// false without error when no such persona exists.
func (s *Store) Delete(id string) (bool, error) {
	if protected[id] {
		return false, fmt.Errorf("%w: %s", ErrProtected, id)
	}
	err := os.Remove(s.path(id))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("deleting persona %s: %w", id, err)
	}
	return true, nil
}

// NormalizeID lowercases, converts spaces to underscores, and strips
// everything but letters, digits, underscore, and hyphen.
func NormalizeID(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *Store) read(id string) (*Persona, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return nil, fmt.Errorf("reading persona %s: %w", id, err)
	}
	var p Persona
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing persona %s: %w", id, err)
	}
	return &p, nil
}

func (s *Store) write(p *Persona) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding persona %s: %w", p.ID, err)
	}
	if err := os.WriteFile(s.path(p.ID), data, 0644); err != nil {
		return fmt.Errorf("writing persona %s: %w", p.ID, err)
	}
	return nil
}

func (s *Store) seedDefaults() error {
	for _, p := range defaultPersonas {
		path := s.path(p.ID)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := s.write(p); err != nil {
			return fmt.Errorf("seeding default personas: %w", err)
		}
	}
	return nil
}

var defaultPersonas = []*Persona{
	{
		ID:           "default",
		Name:         "Default Assistant",
		Description:  "Helpful and friendly AI assistant",
		SystemPrompt: "You are a helpful, friendly, and knowledgeable AI assistant.",
		Traits:       []string{"helpful", "friendly", "knowledgeable"},
	},
	{
		ID:          "developer",
		Name:        "Developer Assistant",
		Description: "Expert coding assistant",
		SystemPrompt: "You are an expert software developer and coding assistant. " +
			"You provide accurate code completions, explanations, and refactoring suggestions. " +
			"You understand context, project structure, and best practices. " +
			"You think step-by-step and provide clear, well-documented code.",
		Traits: []string{"technical", "precise", "code-focused", "context-aware"},
	},
	{
		ID:           "creative",
		Name:         "Creative Assistant",
		Description:  "Imaginative and artistic AI",
		SystemPrompt: "You are a creative and imaginative AI assistant. You think outside the box and provide unique, artistic perspectives.",
		Traits:       []string{"creative", "imaginative", "artistic", "innovative"},
	},
	{
		ID:           "analytical",
		Name:         "Analytical Assistant",
		Description:  "Logical and detail-oriented AI",
		SystemPrompt: "You are an analytical and detail-oriented AI assistant. You provide thorough, logical analysis and break down complex problems.",
		Traits:       []string{"analytical", "logical", "detailed", "thorough"},
	},
	{
		ID:           "casual",
		Name:         "Casual Friend",
		Description:  "Relaxed and conversational AI",
		SystemPrompt: "You are a casual, friendly AI assistant. You communicate in a relaxed, conversational manner.",
		Traits:       []string{"casual", "friendly", "conversational", "relaxed"},
	},
}
