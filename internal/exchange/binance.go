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

// BinanceClient fetches the latest price of one symbol from the Binance REST API.
type BinanceClient struct {
	logger   *slog.Logger
	http     *HTTPClient
	endpoint string
	symbol   string
	currency string
	now      func() time.Time
}

// NewBinanceClient creates a new BinanceClient.
func NewBinanceClient(logger *slog.Logger, client *HTTPClient, endpoint, symbol, currency string) *BinanceClient {
	return &BinanceClient{
		logger:   logger,
		http:     client,
		endpoint: endpoint,
		symbol:   symbol,
		currency: currency,
		now:      time.Now,
	}
}

func (b *BinanceClient) GetName() string {
	return "binance"
}

func (b *BinanceClient) Source() model.Source {
	return model.SourceInternational
}

// FetchQuote parses the string-encoded price field of the ticker object.
func (b *BinanceClient) FetchQuote(ctx context.Context) (model.Quote, error) {
	reqURL := b.endpoint + "?" + url.Values{"symbol": {b.symbol}}.Encode()
	body, err := b.http.GetJSON(ctx, reqURL)
	if err != nil {
		return model.Quote{}, &SourceError{Source: b.Source(), Provider: b.GetName(), Err: err}
	}

	price, err := parseBinanceTicker(body)
	if err != nil {
		return model.Quote{}, &SourceError{Source: b.Source(), Provider: b.GetName(), Err: err}
	}

	b.logger.Debug("BinanceClient: fetched price", "symbol", b.symbol, "price", price)
	return model.Quote{
		Source:    b.Source(),
		Value:     price,
		Currency:  b.currency,
		FetchedAt: b.now(),
	}, nil
}

func parseBinanceTicker(body []byte) (float64, error) {
	if !gjson.ValidBytes(body) {
		return 0, malformed("binance: invalid JSON")
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return 0, malformed("binance: expected object, got %s", doc.Type)
	}
	field := doc.Get("price")
	switch field.Type {
	case gjson.String, gjson.Number:
	default:
		return 0, malformed("binance: price missing")
	}
	price, err := strconv.ParseFloat(field.String(), 64)
	if err != nil {
		return 0, malformed("binance: price %q: %v", field.String(), err)
	}
	return checkFinite("binance", price)
}
