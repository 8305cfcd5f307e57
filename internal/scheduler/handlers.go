package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/dana/mimic/internal/chat"
	"github.com/dana/mimic/internal/db"
	"github.com/dana/mimic/internal/enrich"
)

// Responder produces a chat reply for an autonomous turn.
type Responder interface {
	Respond(ctx context.Context, req chat.Request) (*chat.Reply, error)
}

// RegisterBuiltins installs the five default handlers. Nil collaborators
// leave their handler reporting "service not available" instead of
// crashing.
func RegisterBuiltins(s *Scheduler, responder Responder, search enrich.Searcher, price enrich.Pricer) {
	s.Register("chat", ChatHandler(responder))
	s.Register("web_search", WebSearchHandler(search))
	s.Register("crypto_price", CryptoPriceHandler(price))
	s.Register("reminder", ReminderHandler())
	s.Register("custom", CustomHandler())
}

// ChatHandler runs a full generation turn for the task's persona. The
// turn is persisted under the "autonomous_task" channel.
func ChatHandler(responder Responder) Handler {
	return HandlerFunc(func(ctx context.Context, task *db.Task) (string, error) {
		if responder == nil {
			return "", errors.New("chat service not available")
		}
		msg := gjson.Get(task.Payload, "message").String()
		if msg == "" {
			return "", errors.New("chat task has no message")
		}
		reply, err := responder.Respond(ctx, chat.Request{
			PersonaID: task.PersonaID,
			UserID:    task.UserID,
			Channel:   "autonomous_task",
			Message:   msg,
		})
		if err != nil {
			return "", err
		}
		return reply.Content, nil
	})
}

// WebSearchHandler runs the payload query through the search backend.
func WebSearchHandler(search enrich.Searcher) Handler {
	return HandlerFunc(func(ctx context.Context, task *db.Task) (string, error) {
		if search == nil {
			return "", errors.New("search service not available")
		}
		query := gjson.Get(task.Payload, "query").String()
		if query == "" {
			return "", errors.New("search task has no query")
		}
		return search.SearchAndFormat(ctx, query, 5)
	})
}

// CryptoPriceHandler looks up the payload coin, defaulting to bitcoin.
func CryptoPriceHandler(price enrich.Pricer) Handler {
	return HandlerFunc(func(ctx context.Context, task *db.Task) (string, error) {
		if price == nil {
			return "", errors.New("price service not available")
		}
		coin := gjson.Get(task.Payload, "coin").String()
		if coin == "" {
			coin = "bitcoin"
		}
		return price.PricesAndFormat(ctx, []string{coin}, []string{"usd"})
	})
}

// ReminderHandler echoes the reminder text as the result.
func ReminderHandler() Handler {
	return HandlerFunc(func(_ context.Context, task *db.Task) (string, error) {
		text := gjson.Get(task.Payload, "text").String()
		return fmt.Sprintf("Reminder: %s", text), nil
	})
}

// CustomHandler records the requested action without interpreting it.
func CustomHandler() Handler {
	return HandlerFunc(func(_ context.Context, task *db.Task) (string, error) {
		action := gjson.Get(task.Payload, "action").String()
		return fmt.Sprintf("Custom task executed: %s", action), nil
	})
}
