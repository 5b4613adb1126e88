package exchange

import (
	"context"

	"kimchi/internal/model"
)

// QuoteSource defines the standard interface for all quote sources.
// A single FetchQuote call is a single attempt; implementations do not retry.
type QuoteSource interface {
	GetName() string
	Source() model.Source
	FetchQuote(ctx context.Context) (model.Quote, error)
}
