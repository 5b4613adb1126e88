package model

import "time"

// Source identifies which upstream a Quote came from.
type Source string

const (
	SourceDomestic      Source = "domestic"
	SourceInternational Source = "international"
	SourceFX            Source = "fx"
)

// GenericErrorMessage is what the presentation layer shows for a failed cycle.
const GenericErrorMessage = "failed to load data"

// Quote represents a single value acquired from one source.
type Quote struct {
	Source     Source
	Value      float64
	Currency   string
	FetchedAt  time.Time
	Generation uint64
}

// PremiumResult is the computed kimchi premium for one cycle.
type PremiumResult struct {
	Value      float64
	Display    string
	ComputedAt time.Time
	Generation uint64
}

// CycleState is the latest known result of the refresh cycle.
// It is only ever replaced as a whole; never mutate a published value.
type CycleState struct {
	Generation    uint64
	Domestic      *Quote
	International *Quote
	FX            *Quote
	Premium       *PremiumResult
	Err           error
	InProgress    bool
	UpdatedAt     time.Time
}

// Loading reports whether no cycle has completed yet.
func (s CycleState) Loading() bool {
	return s.Generation == 0
}

// Fresh reports whether the state holds the result of a completed, successful cycle.
func (s CycleState) Fresh() bool {
	return !s.InProgress && s.Err == nil && s.Premium != nil && s.Premium.Generation == s.Generation
}

// ErrorMessage returns the user-facing error text, or "" when the last cycle succeeded.
func (s CycleState) ErrorMessage() string {
	if s.Err == nil {
		return ""
	}
	return GenericErrorMessage
}

// Quotes returns the non-nil quotes of the snapshot.
func (s CycleState) Quotes() []Quote {
	out := make([]Quote, 0, 3)
	for _, q := range []*Quote{s.Domestic, s.International, s.FX} {
		if q != nil {
			out = append(out, *q)
		}
	}
	return out
}
