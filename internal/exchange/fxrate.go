package exchange

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"kimchi/internal/model"
)

const fxSuccess = "success"

// ExchangeRateClient fetches the latest base/quote rate from an open.er-api.com style endpoint.
type ExchangeRateClient struct {
	logger   *slog.Logger
	http     *HTTPClient
	endpoint string
	base     string
	quote    string
	now      func() time.Time
}

// NewExchangeRateClient creates a new ExchangeRateClient.
func NewExchangeRateClient(logger *slog.Logger, client *HTTPClient, endpoint, base, quote string) *ExchangeRateClient {
	return &ExchangeRateClient{
		logger:   logger,
		http:     client,
		endpoint: strings.TrimRight(endpoint, "/"),
		base:     base,
		quote:    quote,
		now:      time.Now,
	}
}

func (e *ExchangeRateClient) GetName() string {
	return "open-er-api"
}

func (e *ExchangeRateClient) Source() model.Source {
	return model.SourceFX
}

// FetchQuote requires result == "success" and a numeric rates entry for the quote currency.
func (e *ExchangeRateClient) FetchQuote(ctx context.Context) (model.Quote, error) {
	body, err := e.http.GetJSON(ctx, e.endpoint+"/"+e.base)
	if err != nil {
		return model.Quote{}, &SourceError{Source: e.Source(), Provider: e.GetName(), Err: err}
	}

	rate, err := parseLatestRates(body, e.quote)
	if err != nil {
		return model.Quote{}, &SourceError{Source: e.Source(), Provider: e.GetName(), Err: err}
	}

	e.logger.Debug("ExchangeRateClient: fetched rate", "base", e.base, "quote", e.quote, "rate", rate)
	return model.Quote{
		Source:    e.Source(),
		Value:     rate,
		Currency:  e.quote,
		FetchedAt: e.now(),
	}, nil
}

func parseLatestRates(body []byte, quote string) (float64, error) {
	if !gjson.ValidBytes(body) {
		return 0, malformed("fx: invalid JSON")
	}
	doc := gjson.ParseBytes(body)
	if status := doc.Get("result"); status.String() != fxSuccess {
		return 0, malformed("fx: result %q", status.String())
	}
	rate := doc.Get("rates." + quote)
	if rate.Type != gjson.Number {
		return 0, malformed("fx: rates.%s missing or not a number", quote)
	}
	return checkFinite("fx", rate.Float())
}
