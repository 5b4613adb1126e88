package exchange

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
	"kimchi/internal/model"
)

// KrakenClient fetches the last trade price of one pair from the Kraken REST API.
// It can stand in for Binance as the international source.
type KrakenClient struct {
	logger   *slog.Logger
	http     *HTTPClient
	endpoint string
	pair     string
	currency string
	now      func() time.Time
}

// NewKrakenClient creates a new KrakenClient.
func NewKrakenClient(logger *slog.Logger, client *HTTPClient, endpoint, pair, currency string) *KrakenClient {
	return &KrakenClient{
		logger:   logger,
		http:     client,
		endpoint: endpoint,
		pair:     pair,
		currency: currency,
		now:      time.Now,
	}
}

func (k *KrakenClient) GetName() string {
	return "kraken"
}

func (k *KrakenClient) Source() model.Source {
	return model.SourceInternational
}

// FetchQuote reads the last trade price ("c"[0]) of the single result entry.
func (k *KrakenClient) FetchQuote(ctx context.Context) (model.Quote, error) {
	reqURL := k.endpoint + "?" + url.Values{"pair": {k.pair}}.Encode()
	body, err := k.http.GetJSON(ctx, reqURL)
	if err != nil {
		return model.Quote{}, &SourceError{Source: k.Source(), Provider: k.GetName(), Err: err}
	}

	price, err := parseKrakenTicker(body)
	if err != nil {
		return model.Quote{}, &SourceError{Source: k.Source(), Provider: k.GetName(), Err: err}
	}

	k.logger.Debug("KrakenClient: fetched price", "pair", k.pair, "price", price)
	return model.Quote{
		Source:    k.Source(),
		Value:     price,
		Currency:  k.currency,
		FetchedAt: k.now(),
	}, nil
}

func parseKrakenTicker(body []byte) (float64, error) {
	if !gjson.ValidBytes(body) {
		return 0, malformed("kraken: invalid JSON")
	}
	doc := gjson.ParseBytes(body)
	if errs := doc.Get("error"); errs.IsArray() && len(errs.Array()) > 0 {
		return 0, malformed("kraken: api error %s", errs.Array()[0].String())
	}

	// Kraken keys the result by its own pair name (XBTUSDT -> XBTUSDT, XBTUSD -> XXBTZUSD).
	var last gjson.Result
	doc.Get("result").ForEach(func(_, ticker gjson.Result) bool {
		last = ticker.Get("c.0")
		return false
	})
	if last.Type != gjson.String {
		return 0, malformed("kraken: last trade price missing")
	}
	price, err := strconv.ParseFloat(last.String(), 64)
	if err != nil {
		return 0, malformed("kraken: price %q: %v", last.String(), err)
	}
	return checkFinite("kraken", price)
}
