package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"signal-desk/src/helpers"
	"signal-desk/src/interfaces"
	"signal-desk/src/logger"
	"signal-desk/src/models"
	"signal-desk/src/utils"
)

// -----------------------------------------------------------------------------
// ChainedQuoteSource covers currency pairs and precious metals. The primary
// quote endpoint blocks browser-style cross-origin access, so every request
// goes through a content-forwarding proxy that wraps the upstream body in a
// {contents: "<json-string>"} envelope, requiring a second parse pass.
// -----------------------------------------------------------------------------

// Futures tickers for the metals catalog ids.
var metalsFutures = map[string]string{
	"m1": "GC=F",
	"m2": "SI=F",
	"m3": "PL=F",
	"m4": "PA=F",
}

// -----------------------------------------------------------------------------

type ChainedQuoteSource struct {
	Config      *models.MConfig
	Instruments []models.MInstrument
	Network     interfaces.INetworkManager
	Logger      *logger.Logger
	Book        *LivePriceBook
	Clock       *utils.MarketClock

	category models.MInstrumentType
	interval time.Duration
	tickers  map[string]string // instrument id -> upstream ticker

	cancelFunc context.CancelFunc
	isRunning  atomic.Bool
	mu         sync.Mutex
}

// -----------------------------------------------------------------------------

func NewChainedQuoteSource(cfg *models.MConfig, category models.MInstrumentType, instruments []models.MInstrument, netMgr interfaces.INetworkManager, book *LivePriceBook, clock *utils.MarketClock) *ChainedQuoteSource {
	s := &ChainedQuoteSource{
		Config:      cfg,
		Instruments: instruments,
		Network:     netMgr,
		Logger:      logger.NewLogger("PriceFeed-" + strings.ToLower(string(category))),
		Book:        book,
		Clock:       clock,
		category:    category,
		tickers:     make(map[string]string, len(instruments)),
	}

	switch category {
	case models.InstrumentMetals:
		s.interval = time.Duration(cfg.Feed.MetalsIntervalSeconds) * time.Second
		for _, inst := range instruments {
			if fut, ok := metalsFutures[inst.ID]; ok {
				s.tickers[inst.ID] = fut
			}
		}
	default:
		s.interval = time.Duration(cfg.Feed.ForexIntervalSeconds) * time.Second
		for _, inst := range instruments {
			s.tickers[inst.ID] = strings.ReplaceAll(inst.Name, "/", "") + "=X"
		}
	}

	return s
}

// -----------------------------------------------------------------------------

func (s *ChainedQuoteSource) Name() string { return "chained-" + strings.ToLower(string(s.category)) }

func (s *ChainedQuoteSource) Category() models.MInstrumentType { return s.category }

// Active is false for currency pairs while the trading week is closed.
// Metals carry no market-closed concept and always refresh.
func (s *ChainedQuoteSource) Active() bool {
	if s.category == models.InstrumentForex {
		return !s.Clock.ForexClosed()
	}
	return true
}

// -----------------------------------------------------------------------------

// Envelope of the content-forwarding proxy. Contents is the upstream body as
// a JSON string.
type forwarderEnvelope struct {
	Contents string `json:"contents"`
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// -----------------------------------------------------------------------------

// fetchQuote resolves a single ticker through the forwarder chain.
func (s *ChainedQuoteSource) fetchQuote(ticker string) (float64, error) {
	upstream := fmt.Sprintf(s.Config.Feed.ChartURL, ticker) + "?interval=1m&range=1d"
	wrapped := fmt.Sprintf(s.Config.Feed.ForwarderURL, url.QueryEscape(upstream))

	body, err := s.Network.Get(wrapped, nil)
	if err != nil {
		return 0, &helpers.SourceError{SignalDeskError: helpers.SignalDeskError{
			Message: "forwarder fetch failed for " + ticker,
			Cause:   err,
		}}
	}

	var env forwarderEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return 0, fmt.Errorf("envelope parse failed for %s: %w", ticker, err)
	}

	var resp chartResponse
	if err := json.Unmarshal([]byte(env.Contents), &resp); err != nil {
		return 0, fmt.Errorf("chart parse failed for %s: %w", ticker, err)
	}

	if resp.Chart.Error != nil {
		return 0, fmt.Errorf("chart api error for %s: %s", ticker, resp.Chart.Error.Code)
	}
	if len(resp.Chart.Result) == 0 {
		return 0, fmt.Errorf("no result in response for %s", ticker)
	}

	return resp.Chart.Result[0].Meta.RegularMarketPrice, nil
}

// -----------------------------------------------------------------------------

// FetchQuotes fans out one chained lookup per instrument, bounded by the
// configured concurrency. Individual failures leave the instrument out of
// the result; the cycle itself never fails.
func (s *ChainedQuoteSource) FetchQuotes() (map[string]float64, error) {
	quotes := make(map[string]float64, len(s.Instruments))
	var mu sync.Mutex
	var wg sync.WaitGroup

	sem := make(chan struct{}, s.Config.Network.ConcurrentRequests)

	for id, ticker := range s.tickers {
		wg.Add(1)
		go func(id, ticker string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			value, err := s.fetchQuote(ticker)
			if err != nil {
				s.Logger.Info("Quote failed for %s: %v", ticker, err)
				return
			}

			mu.Lock()
			quotes[id] = value
			mu.Unlock()
		}(id, ticker)
	}

	wg.Wait()
	return quotes, nil
}

// -----------------------------------------------------------------------------

// refresh runs one cycle: real quotes where available, simulation otherwise.
func (s *ChainedQuoteSource) refresh() map[string]models.MLivePrice {
	quotes, _ := s.FetchQuotes()

	updated := make(map[string]models.MLivePrice, len(s.Instruments))
	for _, inst := range s.Instruments {
		if value, ok := quotes[inst.ID]; ok {
			updated[inst.ID] = s.Book.ApplyQuote(inst, value, PrecisionFor(inst.Type))
			continue
		}
		updated[inst.ID] = s.Book.Simulate(inst)
	}

	return updated
}

// -----------------------------------------------------------------------------

// Start begins the refresh loop
func (s *ChainedQuoteSource) Start(parentCtx context.Context, out chan<- map[string]models.MLivePrice, wg *sync.WaitGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning.Load() {
		return fmt.Errorf("source %s is already running", s.Name())
	}

	ctx, cancel := context.WithCancel(parentCtx)
	s.cancelFunc = cancel
	s.isRunning.Store(true)

	wg.Add(1)
	go s.runLoop(ctx, out, wg)
	s.Logger.Info("Started ChainedQuoteSource %s (%d instruments)", s.Name(), len(s.Instruments))
	return nil
}

// -----------------------------------------------------------------------------

func (s *ChainedQuoteSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning.Load() {
		return fmt.Errorf("source %s is not running", s.Name())
	}

	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	s.isRunning.Store(false)
	return nil
}

// -----------------------------------------------------------------------------

func (s *ChainedQuoteSource) runLoop(ctx context.Context, out chan<- map[string]models.MLivePrice, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// While the week is closed there is nothing to refresh; the
			// serving layer exposes the reopening countdown instead.
			if !s.Active() {
				continue
			}

			updated := s.refresh()
			if len(updated) == 0 {
				continue
			}
			select {
			case out <- updated:
			case <-ctx.Done():
				return
			}
		}
	}
}
