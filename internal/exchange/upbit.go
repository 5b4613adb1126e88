package exchange

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"kimchi/internal/model"
)

// UpbitClient fetches the last trade price of one KRW market from Upbit.
type UpbitClient struct {
	logger   *slog.Logger
	http     *HTTPClient
	endpoint string
	market   string
	currency string
	now      func() time.Time
}

// NewUpbitClient creates a new UpbitClient.
func NewUpbitClient(logger *slog.Logger, client *HTTPClient, endpoint, market, currency string) *UpbitClient {
	return &UpbitClient{
		logger:   logger,
		http:     client,
		endpoint: endpoint,
		market:   market,
		currency: currency,
		now:      time.Now,
	}
}

func (u *UpbitClient) GetName() string {
	return "upbit"
}

func (u *UpbitClient) Source() model.Source {
	return model.SourceDomestic
}

// FetchQuote reads trade_price from the first element of the ticker array.
func (u *UpbitClient) FetchQuote(ctx context.Context) (model.Quote, error) {
	reqURL := u.endpoint + "?" + url.Values{"markets": {u.market}}.Encode()
	body, err := u.http.GetJSON(ctx, reqURL)
	if err != nil {
		return model.Quote{}, &SourceError{Source: u.Source(), Provider: u.GetName(), Err: err}
	}

	price, err := parseUpbitTicker(body)
	if err != nil {
		return model.Quote{}, &SourceError{Source: u.Source(), Provider: u.GetName(), Err: err}
	}

	u.logger.Debug("UpbitClient: fetched price", "market", u.market, "price", price)
	return model.Quote{
		Source:    u.Source(),
		Value:     price,
		Currency:  u.currency,
		FetchedAt: u.now(),
	}, nil
}

func parseUpbitTicker(body []byte) (float64, error) {
	if !gjson.ValidBytes(body) {
		return 0, malformed("upbit: invalid JSON")
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsArray() {
		return 0, malformed("upbit: expected array, got %s", doc.Type)
	}
	if len(doc.Array()) == 0 {
		return 0, malformed("upbit: empty ticker array")
	}
	field := doc.Get("0.trade_price")
	if field.Type != gjson.Number {
		return 0, malformed("upbit: trade_price missing or not a number")
	}
	return checkFinite("upbit", field.Float())
}
