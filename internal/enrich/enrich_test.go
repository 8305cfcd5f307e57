package enrich

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestNeedsSearch(t *testing.T) {
	cases := []struct {
		msg   string
		query string
		ok    bool
	}{
		{"search for go generics", "go generics", true},
		{"  look up cats", "cats", true},
		{"\n\tsearch for go generics  ", "go generics", true},
		{"Can you look up the weather in Lisbon?", "the weather in Lisbon", true},
		{"what is the latest on the mars rover", "the mars rover", true},
		{"Search the web for quantum computing!", "quantum computing", true},
		{"tell me a joke", "", false},
		{"search for ", "", false},
		{"I was searching my pockets", "", false},
	}
	for _, c := range cases {
		query, ok := NeedsSearch(c.msg)
		if ok != c.ok || query != c.query {
			t.Errorf("NeedsSearch(%q) = %q, %v; want %q, %v", c.msg, query, ok, c.query, c.ok)
		}
	}
}

func TestNeedsPrice(t *testing.T) {
	cases := []struct {
		msg   string
		coins []string
		ok    bool
	}{
		{"what is the price of bitcoin?", []string{"bitcoin"}, true},
		{"how much is ETH worth", []string{"ethereum"}, true},
		{"BTC and eth price please", []string{"bitcoin", "ethereum"}, true},
		{"is doge trading at a high?", []string{"dogecoin"}, true},
		{"bitcoin is interesting technology", nil, false}, // no price intent
		{"what is the price of oranges", nil, false},      // no known coin
		{"btc btc btc price", []string{"bitcoin"}, true},  // deduplicated
	}
	for _, c := range cases {
		coins, ok := NeedsPrice(c.msg)
		if ok != c.ok || !reflect.DeepEqual(coins, c.coins) {
			t.Errorf("NeedsPrice(%q) = %v, %v; want %v, %v", c.msg, coins, ok, c.coins, c.ok)
		}
	}
}

type fakeSearcher struct {
	out string
	err error
}

func (f fakeSearcher) SearchAndFormat(_ context.Context, query string, _ int) (string, error) {
	return f.out, f.err
}

type fakePricer struct {
	out string
	err error
}

func (f fakePricer) PricesAndFormat(_ context.Context, _, _ []string) (string, error) {
	return f.out, f.err
}

func TestSnippets(t *testing.T) {
	e := New(fakeSearcher{out: "search block"}, fakePricer{out: "price block"})

	got := e.Snippets(context.Background(), "search for btc price news")
	if len(got) != 2 || got[0] != "search block" || got[1] != "price block" {
		t.Errorf("unexpected snippets: %v", got)
	}

	if got := e.Snippets(context.Background(), "hello there"); len(got) != 0 {
		t.Errorf("expected no snippets, got %v", got)
	}
}

func TestSnippetsBestEffort(t *testing.T) {
	e := New(fakeSearcher{err: errors.New("down")}, fakePricer{out: "price block"})

	got := e.Snippets(context.Background(), "search for bitcoin price")
	if len(got) != 1 || got[0] != "price block" {
		t.Errorf("failed search must be omitted, not fatal: %v", got)
	}
}

func TestSnippetsNilCollaborators(t *testing.T) {
	e := New(nil, nil)
	if got := e.Snippets(context.Background(), "search for bitcoin price"); len(got) != 0 {
		t.Errorf("nil collaborators must disable lookups, got %v", got)
	}
}
