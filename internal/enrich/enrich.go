package enrich

import (
	"context"
	"log"
	"strings"
)

// Searcher and Pricer are the formatted lookups the enricher delegates to.
type Searcher interface {
	SearchAndFormat(ctx context.Context, query string, count int) (string, error)
}

type Pricer interface {
	PricesAndFormat(ctx context.Context, coinIDs, currencies []string) (string, error)
}

// Enricher gathers optional context snippets for a chat message. Lookups
// are best-effort: a failed backend is logged and its snippet omitted.
type Enricher struct {
	search Searcher
	price  Pricer
}

// New builds an enricher. Either collaborator may be nil, disabling that
// lookup.
func New(search Searcher, price Pricer) *Enricher {
	return &Enricher{search: search, price: price}
}

// Snippets returns zero or more formatted context blocks for the message.
func (e *Enricher) Snippets(ctx context.Context, msg string) []string {
	var out []string

	if e.search != nil {
		if query, ok := NeedsSearch(msg); ok {
			s, err := e.search.SearchAndFormat(ctx, query, 5)
			if err != nil {
				log.Printf("enrich: search for %q failed: %v", query, err)
			} else {
				out = append(out, s)
			}
		}
	}

	if e.price != nil {
		if coins, ok := NeedsPrice(msg); ok {
			s, err := e.price.PricesAndFormat(ctx, coins, []string{"usd"})
			if err != nil {
				log.Printf("enrich: price lookup for %v failed: %v", coins, err)
			} else {
				out = append(out, s)
			}
		}
	}

	return out
}

// searchTriggers are prefixes that carry an explicit lookup request; the
// remainder of the message becomes the query.
var searchTriggers = []string{
	"search for ",
	"search the web for ",
	"look up ",
	"google ",
	"find out ",
	"what is the latest on ",
	"latest news on ",
	"latest news about ",
}

// NeedsSearch reports whether the message asks for a web lookup and, if
// so, the query to run. Matching is case-insensitive; the query is
// sliced from the same trimmed string the trigger was located in.
func NeedsSearch(msg string) (string, bool) {
	trimmed := strings.TrimSpace(msg)
	lower := strings.ToLower(trimmed)
	for _, trig := range searchTriggers {
		if idx := strings.Index(lower, trig); idx >= 0 {
			query := strings.TrimSpace(trimmed[idx+len(trig):])
			query = strings.TrimRight(query, "?!.")
			if query != "" {
				return query, true
			}
		}
	}
	return "", false
}

// coinAliases maps mention spellings to CoinGecko coin ids.
var coinAliases = map[string]string{
	"bitcoin":  "bitcoin",
	"btc":      "bitcoin",
	"ethereum": "ethereum",
	"eth":      "ethereum",
	"dogecoin": "dogecoin",
	"doge":     "dogecoin",
	"solana":   "solana",
	"sol":      "solana",
	"cardano":  "cardano",
	"ada":      "cardano",
	"litecoin": "litecoin",
	"ltc":      "litecoin",
	"ripple":   "ripple",
	"xrp":      "ripple",
	"monero":   "monero",
	"xmr":      "monero",
}

var priceWords = []string{"price", "worth", "trading at", "how much is", "market cap", "cost of"}

// NeedsPrice reports whether the message asks about coin prices and which
// coins it mentions. Requires both a price-intent phrase and at least one
// known coin mention.
func NeedsPrice(msg string) ([]string, bool) {
	lower := strings.ToLower(msg)

	intent := false
	for _, w := range priceWords {
		if strings.Contains(lower, w) {
			intent = true
			break
		}
	}
	if !intent {
		return nil, false
	}

	seen := map[string]bool{}
	var coins []string
	for _, word := range strings.FieldsFunc(lower, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	}) {
		if id, ok := coinAliases[word]; ok && !seen[id] {
			seen[id] = true
			coins = append(coins, id)
		}
	}
	if len(coins) == 0 {
		return nil, false
	}
	return coins, true
}
