package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"signal-desk/src/helpers"
	"signal-desk/src/interfaces"
	"signal-desk/src/logger"
	"signal-desk/src/models"
)

// -----------------------------------------------------------------------------
// BinanceTickerSource covers the digital-asset category with one bulk ticker
// request per cycle. Symbols are matched by the catalog name with the slash
// stripped (BTC/USDT -> BTCUSDT).
// -----------------------------------------------------------------------------

type BinanceTickerSource struct {
	Config      *models.MConfig
	Instruments []models.MInstrument
	Network     interfaces.INetworkManager
	Logger      *logger.Logger
	Book        *LivePriceBook

	cancelFunc context.CancelFunc
	isRunning  atomic.Bool
	mu         sync.Mutex
}

// -----------------------------------------------------------------------------

func NewBinanceTickerSource(cfg *models.MConfig, instruments []models.MInstrument, netMgr interfaces.INetworkManager, book *LivePriceBook) *BinanceTickerSource {
	return &BinanceTickerSource{
		Config:      cfg,
		Instruments: instruments,
		Network:     netMgr,
		Logger:      logger.NewLogger("PriceFeed-binance"),
		Book:        book,
	}
}

// -----------------------------------------------------------------------------

func (s *BinanceTickerSource) Name() string { return "binance" }

func (s *BinanceTickerSource) Category() models.MInstrumentType { return models.InstrumentCrypto }

// Active is always true: digital assets trade around the clock.
func (s *BinanceTickerSource) Active() bool { return true }

// -----------------------------------------------------------------------------

type tickerEntry struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// -----------------------------------------------------------------------------

// FetchQuotes pulls the bulk ticker and resolves catalog instruments by
// derived symbol key. Instruments absent from the response are simply left
// out of the result.
func (s *BinanceTickerSource) FetchQuotes() (map[string]float64, error) {
	body, err := s.Network.Get(s.Config.Feed.TickerURL, nil)
	if err != nil {
		return nil, &helpers.SourceError{SignalDeskError: helpers.SignalDeskError{
			Message: "bulk ticker fetch failed",
			Cause:   err,
		}}
	}

	var tickers []tickerEntry
	if err := json.Unmarshal(body, &tickers); err != nil {
		return nil, &helpers.SourceError{SignalDeskError: helpers.SignalDeskError{
			Message: "bulk ticker parse failed",
			Cause:   err,
		}}
	}

	bySymbol := make(map[string]string, len(tickers))
	for _, t := range tickers {
		bySymbol[t.Symbol] = t.Price
	}

	quotes := make(map[string]float64, len(s.Instruments))
	for _, inst := range s.Instruments {
		symbol := strings.ReplaceAll(inst.Name, "/", "")
		raw, ok := bySymbol[symbol]
		if !ok {
			continue
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			s.Logger.Info("Unparseable price for %s: %q", symbol, raw)
			continue
		}
		quotes[inst.ID] = value
	}

	return quotes, nil
}

// -----------------------------------------------------------------------------

// refresh runs one cycle: real quotes where available, simulation otherwise.
// Failures are isolated per instrument and never abort the cycle.
func (s *BinanceTickerSource) refresh() map[string]models.MLivePrice {
	quotes, err := s.FetchQuotes()
	if err != nil {
		s.Logger.Info("Cycle degraded to simulation: %v", err)
	}

	updated := make(map[string]models.MLivePrice, len(s.Instruments))
	for _, inst := range s.Instruments {
		if err == nil {
			if value, ok := quotes[inst.ID]; ok {
				updated[inst.ID] = s.Book.ApplyQuote(inst, value, PrecisionFor(inst.Type))
				continue
			}
		}
		updated[inst.ID] = s.Book.Simulate(inst)
	}

	return updated
}

// -----------------------------------------------------------------------------

// Start begins the refresh loop
func (s *BinanceTickerSource) Start(parentCtx context.Context, out chan<- map[string]models.MLivePrice, wg *sync.WaitGroup) error {
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
	s.Logger.Info("Started BinanceTickerSource (%d instruments)", len(s.Instruments))
	return nil
}

// -----------------------------------------------------------------------------

func (s *BinanceTickerSource) Stop() error {
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

func (s *BinanceTickerSource) runLoop(ctx context.Context, out chan<- map[string]models.MLivePrice, wg *sync.WaitGroup) {
	defer wg.Done()

	interval := time.Duration(s.Config.Feed.CryptoIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
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
