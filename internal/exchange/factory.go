package exchange

import (
	"fmt"
	"log/slog"

	"kimchi/internal/config"
	"kimchi/internal/model"
)

// Sources groups the three quote sources one refresh cycle needs.
type Sources struct {
	Domestic      QuoteSource
	International QuoteSource
	FX            QuoteSource
}

// NewClient creates a new quote source based on the given provider name and configuration.
func NewClient(name string, logger *slog.Logger, client *HTTPClient, cfg config.SourceConfig) (QuoteSource, error) {
	switch name {
	case "upbit":
		return NewUpbitClient(logger, client, cfg.Endpoint, cfg.Market, cfg.Quote), nil
	case "binance":
		return NewBinanceClient(logger, client, cfg.Endpoint, cfg.Market, cfg.Quote), nil
	case "kraken":
		return NewKrakenClient(logger, client, cfg.Endpoint, cfg.Market, cfg.Quote), nil
	case "open-er-api":
		return NewExchangeRateClient(logger, client, cfg.Endpoint, cfg.Market, cfg.Quote), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
}

// NewSources builds the domestic, international and fx sources from configuration.
func NewSources(logger *slog.Logger, client *HTTPClient, cfg config.SourcesConfig) (Sources, error) {
	var (
		s   Sources
		err error
	)
	if s.Domestic, err = newSourceFor("domestic", logger, client, cfg.Domestic); err != nil {
		return Sources{}, err
	}
	if s.International, err = newSourceFor("international", logger, client, cfg.International); err != nil {
		return Sources{}, err
	}
	if s.FX, err = newSourceFor("fx", logger, client, cfg.FX); err != nil {
		return Sources{}, err
	}

	if s.Domestic.Source() != model.SourceDomestic || s.International.Source() != model.SourceInternational || s.FX.Source() != model.SourceFX {
		return Sources{}, fmt.Errorf("provider roles do not match: %s/%s/%s",
			s.Domestic.GetName(), s.International.GetName(), s.FX.GetName())
	}
	return s, nil
}

func newSourceFor(role string, logger *slog.Logger, client *HTTPClient, cfg config.SourceConfig) (QuoteSource, error) {
	src, err := NewClient(cfg.Provider, logger, client, cfg)
	if err != nil {
		return nil, fmt.Errorf("sources.%s: %w", role, err)
	}
	return src, nil
}
