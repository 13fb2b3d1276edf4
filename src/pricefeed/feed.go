package pricefeed

import (
	"context"
	"fmt"
	"sync"

	"signal-desk/src/interfaces"
	"signal-desk/src/logger"
	"signal-desk/src/models"
	"signal-desk/src/utils"
)

// -----------------------------------------------------------------------------
// PriceFeed owns the live price book and the per-category sources. Sources
// run as independent periodic loops; the feed only manages their lifecycle.
// Nothing here ever surfaces an error to the session flow.
// -----------------------------------------------------------------------------

type PriceFeed struct {
	Book    *LivePriceBook
	Clock   *utils.MarketClock
	Sources map[string]interfaces.IPriceSource
	Logger  *logger.Logger

	mu         sync.Mutex
	ctx        context.Context
	cancelFunc context.CancelFunc
}

// -----------------------------------------------------------------------------

func NewPriceFeed(cfg *models.MConfig, netMgr interfaces.INetworkManager, clock *utils.MarketClock, log *logger.Logger) *PriceFeed {
	book := NewLivePriceBook(cfg.Instruments)

	byType := func(t models.MInstrumentType) []models.MInstrument {
		var out []models.MInstrument
		for _, inst := range cfg.Instruments {
			if inst.Type == t {
				out = append(out, inst)
			}
		}
		return out
	}

	feed := &PriceFeed{
		Book:    book,
		Clock:   clock,
		Sources: make(map[string]interfaces.IPriceSource),
		Logger:  log,
	}

	sources := []interfaces.IPriceSource{
		NewBinanceTickerSource(cfg, byType(models.InstrumentCrypto), netMgr, book),
		NewChainedQuoteSource(cfg, models.InstrumentForex, byType(models.InstrumentForex), netMgr, book, clock),
		NewChainedQuoteSource(cfg, models.InstrumentMetals, byType(models.InstrumentMetals), netMgr, book, clock),
	}
	for _, s := range sources {
		feed.Sources[s.Name()] = s
	}

	return feed
}

// -----------------------------------------------------------------------------

// Start starts all sources
func (f *PriceFeed) Start(parentCtx context.Context, out chan<- map[string]models.MLivePrice, wg *sync.WaitGroup) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ctx != nil {
		return fmt.Errorf("PriceFeed is already running")
	}

	ctx, cancel := context.WithCancel(parentCtx)
	f.ctx = ctx
	f.cancelFunc = cancel

	for _, src := range f.Sources {
		if err := src.Start(ctx, out, wg); err != nil {
			f.Logger.Error("Failed to start source %s: %v", src.Name(), err)
			return err
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

// Stop stops all sources gracefully by cancelling the internal context
func (f *PriceFeed) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ctx == nil {
		return nil // Already stopped
	}

	f.Logger.Info("Stopping PriceFeed...")

	if f.cancelFunc != nil {
		f.cancelFunc()
	}
	f.cancelFunc = nil
	f.ctx = nil

	return nil
}

// -----------------------------------------------------------------------------

// GetSource retrieves a source by name
func (f *PriceFeed) GetSource(name string) (interfaces.IPriceSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	source, exists := f.Sources[name]
	if !exists {
		return nil, fmt.Errorf("source %s not found", name)
	}
	return source, nil
}
