package price

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	freeBaseURL = "https://api.coingecko.com/api/v3"
	proBaseURL  = "https://pro-api.coingecko.com/api/v3"
)

var (
	ErrUnreachable = errors.New("price backend unreachable")
	ErrBadResponse = errors.New("price backend returned a bad response")
)

// Quote is one coin's price snapshot in a single target currency.
type Quote struct {
	CoinID        string
	Currency      string
	Price         float64
	MarketCap     float64
	Volume24h     float64
	Change24h     float64
	LastUpdatedAt int64 // unix seconds, 0 when not reported
}

// CoinGeckoClient is a thin adapter over the CoinGecko simple-price API.
// An API key selects the pro endpoint; without one the free tier is used.
type CoinGeckoClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewCoinGecko(apiKey string) *CoinGeckoClient {
	base := freeBaseURL
	if apiKey != "" {
		base = proBaseURL
	}
	return &CoinGeckoClient{
		apiKey:  apiKey,
		baseURL: base,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// WithBaseURL overrides the API endpoint, for tests.
func (c *CoinGeckoClient) WithBaseURL(base string) *CoinGeckoClient {
	c.baseURL = strings.TrimRight(base, "/")
	return c
}

// Prices fetches quotes for the given coin ids in the given currencies.
func (c *CoinGeckoClient) Prices(ctx context.Context, coinIDs, currencies []string) ([]Quote, error) {
	if len(coinIDs) == 0 {
		return nil, nil
	}
	if len(currencies) == 0 {
		currencies = []string{"usd"}
	}

	q := url.Values{}
	q.Set("ids", strings.Join(coinIDs, ","))
	q.Set("vs_currencies", strings.Join(currencies, ","))
	q.Set("include_market_cap", "true")
	q.Set("include_24hr_vol", "true")
	q.Set("include_24hr_change", "true")
	q.Set("include_last_updated_at", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/simple/price?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building price request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("x-cg-pro-api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrBadResponse, resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrBadResponse)
	}

	var out []Quote
	for _, id := range coinIDs {
		coin := gjson.GetBytes(body, escapeKey(id))
		if !coin.Exists() {
			continue
		}
		for _, cur := range currencies {
			p := coin.Get(escapeKey(cur))
			if !p.Exists() {
				continue
			}
			out = append(out, Quote{
				CoinID:        id,
				Currency:      cur,
				Price:         p.Float(),
				MarketCap:     coin.Get(escapeKey(cur) + "_market_cap").Float(),
				Volume24h:     coin.Get(escapeKey(cur) + "_24h_vol").Float(),
				Change24h:     coin.Get(escapeKey(cur) + "_24h_change").Float(),
				LastUpdatedAt: coin.Get("last_updated_at").Int(),
			})
		}
	}
	return out, nil
}

// PricesAndFormat renders quotes as a readable block. Unknown coins are
// reported, not errored.
func (c *CoinGeckoClient) PricesAndFormat(ctx context.Context, coinIDs, currencies []string) (string, error) {
	quotes, err := c.Prices(ctx, coinIDs, currencies)
	if err != nil {
		return "", err
	}
	if len(quotes) == 0 {
		return fmt.Sprintf("No price data found for %s.", strings.Join(coinIDs, ", ")), nil
	}

	var b strings.Builder
	b.WriteString("Current prices:")
	for _, q := range quotes {
		cur := strings.ToUpper(q.Currency)
		fmt.Fprintf(&b, "\n%s: %.4f %s", q.CoinID, q.Price, cur)
		if q.Change24h != 0 {
			fmt.Fprintf(&b, " (%+.2f%% 24h)", q.Change24h)
		}
		if q.MarketCap > 0 {
			fmt.Fprintf(&b, ", market cap %.0f %s", q.MarketCap, cur)
		}
		if q.LastUpdatedAt > 0 {
			fmt.Fprintf(&b, ", updated %s", time.Unix(q.LastUpdatedAt, 0).UTC().Format("2006-01-02 15:04 UTC"))
		}
	}
	return b.String(), nil
}

// Health probes the ping endpoint.
func (c *CoinGeckoClient) Health(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ping", nil)
	if err != nil {
		return false
	}
	if c.apiKey != "" {
		req.Header.Set("x-cg-pro-api-key", c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// escapeKey quotes dots in coin ids so gjson treats them literally.
func escapeKey(k string) string {
	return strings.ReplaceAll(k, ".", `\.`)
}
