package feed

import (
	"context"
	"errors"

	"github.com/lysyi3m/grocery-feed/app/catalog"
)

var (
	ErrInFlight        = errors.New("page fetch already in flight")
	ErrExhausted       = errors.New("feed exhausted")
	ErrStaleGeneration = errors.New("stale generation")
	ErrInvalidFilter   = errors.New("invalid filter")
	ErrClosed          = errors.New("engine closed")
)

// Source is the remote feed source contract the engine consumes. Page.Received
// is the raw record count and decides exhaustion.
type Source interface {
	FetchPage(ctx context.Context, req catalog.PageRequest) (catalog.Page, error)
}

type Filters struct {
	Search   string          `json:"search"`
	Category string          `json:"category"`
	Sort     catalog.SortKey `json:"sort"`
}

// State is a point-in-time copy of the engine's feed state.
type State struct {
	Generation uint64  `json:"generation"`
	Cursor     int     `json:"cursor"`
	PageSize   int     `json:"page_size"`
	Exhausted  bool    `json:"exhausted"`
	InFlight   bool    `json:"in_flight"`
	Filters    Filters `json:"filters"`
	Products   int     `json:"products"`
}

type Visible struct {
	Featured []catalog.Product `json:"featured"`
	Products []catalog.Product `json:"products"`
}

type Outcome string

const (
	OutcomeMerged    Outcome = "merged"
	OutcomeFailed    Outcome = "failed"
	OutcomeDiscarded Outcome = "discarded"
)

type PageResult struct {
	Generation uint64
	Page       int
	Outcome    Outcome
	Received   int
	Added      int
	Duplicates int
	Exhausted  bool
	Err        error
}
