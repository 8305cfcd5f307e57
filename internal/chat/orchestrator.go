package chat

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/tidwall/sjson"

	"github.com/dana/mimic/internal/db"
	"github.com/dana/mimic/internal/enrich"
	"github.com/dana/mimic/internal/llm"
	"github.com/dana/mimic/internal/persona"
	"github.com/dana/mimic/internal/prompt"
)

// Request is one inbound chat turn.
type Request struct {
	PersonaID string
	UserID    string
	Channel   string
	Message   string
	Language  string // preferred reply language, may be empty
	Model     string // overrides the configured model when set
}

// Reply is the completed turn.
type Reply struct {
	RequestID string
	PersonaID string
	Content   string
}

// Orchestrator drives a chat turn end to end: persona lookup, memory
// context, enrichment, prompt composition, generation, persistence.
type Orchestrator struct {
	personas *persona.Store
	store    *db.DB
	client   llm.Client
	enricher *enrich.Enricher
	maxTurns int
	maxFacts int
}

// NewOrchestrator wires the collaborators. enricher may be nil.
func NewOrchestrator(personas *persona.Store, store *db.DB, client llm.Client, enricher *enrich.Enricher) *Orchestrator {
	return &Orchestrator{
		personas: personas,
		store:    store,
		client:   client,
		enricher: enricher,
		maxTurns: 20,
		maxFacts: 10,
	}
}

// Respond produces and persists one turn. Generation failures come back
// as a single descriptive error naming the likely cause.
func (o *Orchestrator) Respond(ctx context.Context, req Request) (*Reply, error) {
	msgs, p, err := o.composeTurn(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := o.client.Complete(ctx, msgs, llm.Options{Model: req.Model})
	if err != nil {
		return nil, describeGenErr(err)
	}

	reply := &Reply{RequestID: uuid.NewString(), PersonaID: p.ID, Content: resp.Content}
	if err := o.persistTurn(req, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// RespondStream starts a streaming turn. The caller consumes the stream,
// accumulates the full text, and invokes finish to persist the turn.
func (o *Orchestrator) RespondStream(ctx context.Context, req Request) (*llm.Stream, func(full string) error, error) {
	msgs, p, err := o.composeTurn(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	stream, err := o.client.Stream(ctx, msgs, llm.Options{Model: req.Model})
	if err != nil {
		return nil, nil, describeGenErr(err)
	}

	finish := func(full string) error {
		return o.persistTurn(req, &Reply{RequestID: uuid.NewString(), PersonaID: p.ID, Content: full})
	}
	return stream, finish, nil
}

// composeTurn runs the synchronous front half of a turn: persona, memory,
// enrichment, composition.
func (o *Orchestrator) composeTurn(ctx context.Context, req Request) ([]llm.Message, *persona.Persona, error) {
	p, err := o.personas.Get(req.PersonaID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading persona: %w", err)
	}

	mem, err := o.store.ContextFor(p.ID, req.UserID, o.maxTurns, o.maxFacts)
	if err != nil {
		return nil, nil, fmt.Errorf("loading conversation context: %w", err)
	}

	history := prompt.FromTurns(mem.Turns)

	var snippets []string
	if o.enricher != nil {
		snippets = o.enricher.Snippets(ctx, req.Message)
	}
	snippets = append(snippets, factSnippet(mem.Facts)...)
	for _, f := range mem.Facts {
		if err := o.store.TouchFact(f.ID); err != nil {
			log.Printf("chat: recording fact access: %v", err)
		}
	}

	msgs := prompt.Compose(prompt.Input{
		Persona:  p,
		Language: req.Language,
		History:  history,
		Snippets: snippets,
		Message:  req.Message,
	})
	return msgs, p, nil
}

func (o *Orchestrator) persistTurn(req Request, reply *Reply) error {
	meta, _ := sjson.Set("", "request_id", reply.RequestID)
	if req.Model != "" {
		meta, _ = sjson.Set(meta, "model", req.Model)
	}
	if err := o.store.SaveConversation(reply.PersonaID, req.UserID, req.Channel, req.Message, reply.Content, meta); err != nil {
		return fmt.Errorf("saving conversation: %w", err)
	}
	return nil
}

// factSnippet renders remembered facts as one context block, or nothing.
func factSnippet(facts []db.Fact) []string {
	if len(facts) == 0 {
		return nil
	}
	block := "Things you remember:"
	for _, f := range facts {
		block += fmt.Sprintf("\n- %s: %s", f.Key, f.Value)
	}
	return []string{block}
}

func describeGenErr(err error) error {
	switch {
	case errors.Is(err, llm.ErrUnreachable):
		return fmt.Errorf("the generation backend is unreachable; is it running? (%w)", err)
	case errors.Is(err, llm.ErrTimeout):
		return fmt.Errorf("the generation backend timed out (%w)", err)
	case errors.Is(err, llm.ErrBadResponse):
		return fmt.Errorf("the generation backend returned an error (%w)", err)
	default:
		log.Printf("chat: unclassified generation error: %v", err)
		return fmt.Errorf("generation failed: %w", err)
	}
}
