package api

import (
	"time"

	"kimchi/internal/model"
)

// QuoteView is the wire form of one quote.
type QuoteView struct {
	Value     float64   `json:"value"`
	Currency  string    `json:"currency,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// StateView is what the presentation layer renders.
// Error only ever carries the generic message.
type StateView struct {
	Generation    uint64     `json:"generation"`
	Loading       bool       `json:"loading"`
	InProgress    bool       `json:"in_progress"`
	Domestic      *QuoteView `json:"domestic,omitempty"`
	International *QuoteView `json:"international,omitempty"`
	FX            *QuoteView `json:"fx,omitempty"`
	Premium       string     `json:"premium,omitempty"`
	PremiumValue  *float64   `json:"premium_value,omitempty"`
	Error         string     `json:"error,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// NewStateView converts a snapshot.
func NewStateView(s model.CycleState) StateView {
	v := StateView{
		Generation:    s.Generation,
		Loading:       s.Loading(),
		InProgress:    s.InProgress,
		Domestic:      quoteView(s.Domestic),
		International: quoteView(s.International),
		FX:            quoteView(s.FX),
		Error:         s.ErrorMessage(),
	}
	if s.Premium != nil {
		value := s.Premium.Value
		v.Premium = s.Premium.Display
		v.PremiumValue = &value
	}
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		v.UpdatedAt = &t
	}
	return v
}

func quoteView(q *model.Quote) *QuoteView {
	if q == nil {
		return nil
	}
	return &QuoteView{Value: q.Value, Currency: q.Currency, FetchedAt: q.FetchedAt}
}
