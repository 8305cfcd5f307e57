package prompt

import (
	"fmt"
	"strings"

	"github.com/dana/mimic/internal/db"
	"github.com/dana/mimic/internal/llm"
	"github.com/dana/mimic/internal/persona"
)

// Input is everything a single composition needs. Compose is pure: the
// same Input always yields the same message list.
type Input struct {
	Persona   *persona.Persona
	Language  string // caller's preferred language, may be empty
	History   []llm.Message
	Snippets  []string // enrichment text, already formatted
	Message   string   // the new user message
}

// Compose builds the ordered message list for a generation call. The
// persona's system message, when a persona is supplied, is always the
// single first element; system-role entries in the supplied history are
// stripped so they can neither duplicate nor displace it. The new user
// message is always last, so the result is never empty.
func Compose(in Input) []llm.Message {
	var msgs []llm.Message

	if in.Persona != nil {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: SystemPrompt(in.Persona, in.Language)})
		if in.Persona.FewShot {
			msgs = append(msgs, fewShot(in.Persona)...)
		}
	}

	for _, m := range in.History {
		if m.Role == llm.RoleSystem {
			continue
		}
		msgs = append(msgs, m)
	}

	for _, s := range in.Snippets {
		if s == "" {
			continue
		}
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: s})
	}

	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: in.Message})
	return msgs
}

// SystemPrompt renders the persona into its system message: base prompt,
// then language instruction, traits, cultural clauses, and example
// clauses, each omitted when unset.
func SystemPrompt(p *persona.Persona, preferredLang string) string {
	var b strings.Builder
	b.WriteString(p.SystemPrompt)

	if preferredLang != "" && p.SpeaksPrimary(preferredLang) {
		fmt.Fprintf(&b, "\n\nRespond primarily in %s; use other languages only for brief asides.", preferredLang)
	}

	if len(p.Traits) > 0 {
		fmt.Fprintf(&b, "\n\nYour personality traits: %s.", strings.Join(p.Traits, ", "))
	}

	if c := p.Culture; c != nil {
		writeClause(&b, "Core values", c.Values)
		writeClause(&b, "Traditions", c.Traditions)
		writeClause(&b, "Communication style", c.CommunicationStyle)
		writeClause(&b, "Greeting style", c.GreetingStyle)
		writeClause(&b, "Cultural references", c.References)
		writeClause(&b, "Emoji usage", c.EmojiPolicy)
	}

	if e := p.Examples; e != nil {
		writeClause(&b, "Sample greeting", e.Greeting)
		writeClause(&b, "Sample response style", e.ResponseStyle)
	}

	return b.String()
}

func writeClause(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "\n%s: %s", label, value)
}

// fewShot produces up to two synthetic exchanges from the persona's
// examples. A pair is omitted when its example field is absent.
func fewShot(p *persona.Persona) []llm.Message {
	if p.Examples == nil {
		return nil
	}
	var msgs []llm.Message
	if p.Examples.Greeting != "" {
		msgs = append(msgs,
			llm.Message{Role: llm.RoleUser, Content: "hi"},
			llm.Message{Role: llm.RoleAssistant, Content: p.Examples.Greeting},
		)
	}
	if p.Examples.ResponseStyle != "" {
		msgs = append(msgs,
			llm.Message{Role: llm.RoleUser, Content: "how are you?"},
			llm.Message{Role: llm.RoleAssistant, Content: p.Examples.ResponseStyle},
		)
	}
	return msgs
}

// FromTurns converts stored turns (newest first, as the history query
// returns them) into oldest-first user/assistant message pairs.
func FromTurns(turns []db.Conversation) []llm.Message {
	msgs := make([]llm.Message, 0, len(turns)*2)
	for i := len(turns) - 1; i >= 0; i-- {
		msgs = append(msgs,
			llm.Message{Role: llm.RoleUser, Content: turns[i].Message},
			llm.Message{Role: llm.RoleAssistant, Content: turns[i].Response},
		)
	}
	return msgs
}
