package interfaces

import (
	"context"
	"signal-desk/src/models"
	"sync"
)

// -----------------------------------------------------------------------------
// IPriceSource interface for the per-category quote fetchers.
// -----------------------------------------------------------------------------

type IPriceSource interface {

	// Name returns the unique identifier of the source
	Name() string

	// -----------------------------------------------------------------------------

	// Category returns the instrument category this source covers
	Category() models.MInstrumentType

	// -----------------------------------------------------------------------------

	// FetchQuotes returns numeric quotes keyed by instrument id for one
	// refresh cycle. Instruments missing from the result fall back to the
	// simulator individually; a non-nil error means the whole cycle failed
	// and every instrument of the category falls back.
	FetchQuotes() (map[string]float64, error)

	// -----------------------------------------------------------------------------

	// Active reports whether the source should refresh at all right now
	// (the currency-pair source is inactive while the trading week is closed).
	Active() bool

	// -----------------------------------------------------------------------------

	// Start begins the periodic refresh loop
	// ctx: controls the lifecycle (cancellation stops the source)
	// out: channel the refreshed category entries are pushed to
	// wg: WaitGroup to signal when the source has fully stopped
	Start(ctx context.Context, out chan<- map[string]models.MLivePrice, wg *sync.WaitGroup) error

	// -----------------------------------------------------------------------------

	// Stop terminates the refresh loop (manual stop)
	Stop() error
}
