package currency

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/R3E-Network/tenant_portal/internal/httputil"
	"github.com/R3E-Network/tenant_portal/internal/logging"
)

// Provider returns the latest rate table for a base currency.
type Provider interface {
	Latest(ctx context.Context, base string) (Rates, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, base string) (Rates, error)

func (f ProviderFunc) Latest(ctx context.Context, base string) (Rates, error) {
	return f(ctx, base)
}

// StaticProvider serves a fixed table, rebased on demand.
type StaticProvider struct {
	rates Rates
}

// NewStaticProvider creates a provider backed by a fixed table.
func NewStaticProvider(rates Rates) *StaticProvider {
	if rates.Source == "" {
		rates.Source = "static"
	}
	return &StaticProvider{rates: rates}
}

func (p *StaticProvider) Latest(ctx context.Context, base string) (Rates, error) {
	return p.rates.Rebase(base)
}

// HTTPProvider fetches rates from an open.er-api.com compatible endpoint:
// GET {baseURL}/latest/{BASE} returning {"result","base_code","rates",...}.
type HTTPProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	log     *logging.Logger
}

// NewHTTPProvider creates an HTTP-backed provider.
func NewHTTPProvider(client *http.Client, baseURL, apiKey string, log *logging.Logger) (*HTTPProvider, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = logging.Default("fx-provider")
	}
	return &HTTPProvider{client: client, baseURL: baseURL, apiKey: apiKey, log: log}, nil
}

func (p *HTTPProvider) Latest(ctx context.Context, base string) (Rates, error) {
	base, err := NormalizeCode(base)
	if err != nil {
		return Rates{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/latest/"+url.PathEscape(base), nil)
	if err != nil {
		return Rates{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Rates{}, fmt.Errorf("fetch rates: %w", err)
	}
	body, err := httputil.ReadResponse(resp)
	if err != nil {
		return Rates{}, fmt.Errorf("fetch rates: %w", err)
	}

	return parseRates(body, base)
}

func parseRates(body []byte, base string) (Rates, error) {
	if !gjson.ValidBytes(body) {
		return Rates{}, fmt.Errorf("decode rates: invalid JSON")
	}
	doc := gjson.ParseBytes(body)
	if result := doc.Get("result"); result.Exists() && result.String() != "success" {
		return Rates{}, fmt.Errorf("rates provider error: %s", doc.Get("error-type").String())
	}
	if code := doc.Get("base_code"); code.Exists() && !strings.EqualFold(code.String(), base) {
		return Rates{}, fmt.Errorf("rates provider returned base %s, want %s", code.String(), base)
	}

	values := make(map[string]decimal.Decimal)
	var parseErr error
	doc.Get("rates").ForEach(func(key, value gjson.Result) bool {
		d, err := decimal.NewFromString(value.Raw)
		if err != nil {
			parseErr = fmt.Errorf("rate %s: %w", key.String(), err)
			return false
		}
		values[strings.ToUpper(key.String())] = d
		return true
	})
	if parseErr != nil {
		return Rates{}, parseErr
	}
	if len(values) == 0 {
		return Rates{}, fmt.Errorf("rates provider returned no rates")
	}
	delete(values, base)

	fetchedAt := time.Now().UTC()
	if ts := doc.Get("time_last_update_unix"); ts.Exists() {
		fetchedAt = time.Unix(ts.Int(), 0).UTC()
	}
	return Rates{Base: base, Values: values, FetchedAt: fetchedAt, Source: "http"}, nil
}
