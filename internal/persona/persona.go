package persona

// Persona is a named configuration governing a simulated conversational
// identity. Optional blocks are pointers so "not set" is distinguishable
// from "set but empty".
type Persona struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description,omitempty"`
	SystemPrompt string           `json:"system_prompt"`
	Traits       []string         `json:"traits,omitempty"`
	FewShot      bool             `json:"few_shot,omitempty"`
	Language     *Language        `json:"language,omitempty"`
	Culture      *CulturalContext `json:"cultural_context,omitempty"`
	Examples     *Examples        `json:"examples,omitempty"`
}

// Language describes which languages a persona speaks and how.
type Language struct {
	Primary       []string `json:"primary,omitempty"` // ordered by preference
	CodeSwitching bool     `json:"code_switching,omitempty"`
	Preference    string   `json:"preference,omitempty"` // free-text note
}

// CulturalContext carries free-text cultural flavor rendered into the
// system prompt in a fixed order.
type CulturalContext struct {
	Values             string `json:"values,omitempty"`
	Traditions         string `json:"traditions,omitempty"`
	CommunicationStyle string `json:"communication_style,omitempty"`
	GreetingStyle      string `json:"greeting_style,omitempty"`
	References         string `json:"references,omitempty"`
	EmojiPolicy        string `json:"emoji_policy,omitempty"`
}

// Examples are sample outputs used as few-shot exchanges.
type Examples struct {
	Greeting      string `json:"greeting,omitempty"`
	ResponseStyle string `json:"response_style,omitempty"`
}

// SpeaksPrimary reports whether lang is one of the persona's primary
// languages. Matching is exact and case-insensitive is not attempted;
// callers pass canonical language names.
func (p *Persona) SpeaksPrimary(lang string) bool {
	if p.Language == nil || lang == "" {
		return false
	}
	for _, l := range p.Language.Primary {
		if l == lang {
			return true
		}
	}
	return false
}
